package llm

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/samber/lo"
)

// SuggestedQuestions are offered to users who do not know what to ask.
var SuggestedQuestions = []string{
	"Which product category is the most expensive?",
	"Which category has the highest customer satisfaction?",
	"Which price segment has the most products?",
}

// Suggestions returns the first n suggested questions, or all when n <= 0.
func Suggestions(n int) []string {
	if n <= 0 || n > len(SuggestedQuestions) {
		n = len(SuggestedQuestions)
	}
	return append([]string(nil), SuggestedQuestions[:n]...)
}

// ResolveModel maps user input to one of models. An exact (case-insensitive)
// match wins, otherwise the best fuzzy match is used.
func ResolveModel(name string, models []string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("model name must not be empty")
	}

	if m, ok := lo.Find(models, func(m string) bool { return strings.EqualFold(m, name) }); ok {
		return m, nil
	}

	matches := fuzzy.Find(name, models)
	if len(matches) == 0 {
		return "", fmt.Errorf("unknown model %q, available: %s", name, strings.Join(models, ", "))
	}
	return matches[0].Str, nil
}

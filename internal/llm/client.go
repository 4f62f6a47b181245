// Package llm answers business questions about a session's catalog using an
// OpenAI-compatible chat completion API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/shopinsight/shopinsight/internal/session"
	"go.uber.org/zap"
)

var (
	ErrEmptyQuestion = errors.New("question must not be empty")
	ErrNoChoices     = errors.New("chat completion returned no choices")
)

// ContextPrefix introduces the catalog summary sent ahead of every question.
const ContextPrefix = "Here is the product summary:\n"

// ChatCompleter is the part of the OpenAI client used here.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Recorder persists messages as they are exchanged.
type Recorder interface {
	RecordMessage(sessionID, role, content, model string) error
}

// Config configures NewClient.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	completer ChatCompleter
	recorder  Recorder
	logger    *zap.Logger
	timeout   time.Duration
}

// NewClient builds a client backed by the OpenAI API, or any compatible
// endpoint when BaseURL is set.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	c := NewClientWithCompleter(openai.NewClientWithConfig(clientConfig), logger)
	c.timeout = cfg.Timeout
	return c
}

// NewClientWithCompleter wraps an existing completer, mostly for tests.
func NewClientWithCompleter(completer ChatCompleter, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{completer: completer, logger: logger}
}

// WithRecorder returns the client with a recorder attached.
func (c *Client) WithRecorder(r Recorder) *Client {
	c.recorder = r
	return c
}

// BuildMessages assembles the request: the system prompt, the catalog
// context when there is one, then the question. Earlier turns are not sent.
func BuildMessages(systemPrompt, catalogContext, question string) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if catalogContext != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: ContextPrefix + catalogContext,
		})
	}
	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: question,
	})
}

// Ask sends question to the session's model and returns the reply. The
// question and reply are appended to the session only when the call succeeds.
func (c *Client) Ask(ctx context.Context, s *session.Session, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	request := openai.ChatCompletionRequest{
		Model:    s.Model,
		Messages: BuildMessages(s.SystemPrompt, s.Context, question),
	}

	start := time.Now()
	resp, err := c.completer.CreateChatCompletion(ctx, request)
	if err != nil {
		c.logger.Warn("chat completion failed",
			zap.String("session", s.ID),
			zap.String("model", s.Model),
			zap.Error(err),
		)
		return "", fmt.Errorf("chat completion with %s failed: %w", s.Model, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	answer := resp.Choices[0].Message.Content

	c.logger.Debug("chat completion",
		zap.String("session", s.ID),
		zap.String("model", s.Model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("elapsed", time.Since(start)),
	)

	s.Append(session.RoleUser, question)
	s.Append(session.RoleAssistant, answer)

	if c.recorder != nil {
		for _, m := range []session.Message{
			{Role: session.RoleUser, Content: question},
			{Role: session.RoleAssistant, Content: answer},
		} {
			if err := c.recorder.RecordMessage(s.ID, string(m.Role), m.Content, s.Model); err != nil {
				c.logger.Warn("failed to record chat message", zap.String("session", s.ID), zap.Error(err))
			}
		}
	}

	return answer, nil
}

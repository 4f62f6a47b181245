// Package session holds the per-user chat state: selected model, system
// prompt, the loaded catalog with its generated context, and the
// conversation transcript.
package session

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopinsight/shopinsight/internal/catalog"
)

// ErrNotFound is returned by stores when no session exists for an id.
var ErrNotFound = errors.New("session not found")

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session is the state of one conversation. It is not safe for concurrent
// mutation; stores hand out copies.
type Session struct {
	ID           string         `json:"id"`
	Model        string         `json:"model"`
	SystemPrompt string         `json:"system_prompt"`
	Context      string         `json:"context"`
	CatalogName  string         `json:"catalog_name"`
	Catalog      *catalog.Table `json:"catalog,omitempty"`
	History      []Message      `json:"history"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Options configure a new session.
type Options struct {
	Model        string
	SystemPrompt string
}

// New creates an empty session with a fresh id.
func New(opts Options) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:           uuid.NewString(),
		Model:        opts.Model,
		SystemPrompt: opts.SystemPrompt,
		History:      []Message{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// SetCatalog replaces the loaded catalog and regenerates the prompt context.
// The table is normalized first, so raw tables may be passed.
func (s *Session) SetCatalog(name string, t *catalog.Table) {
	normalized := catalog.Normalize(t)
	s.CatalogName = name
	s.Catalog = normalized
	s.Context = catalog.GenerateContext(normalized)
	s.touch()
}

// Append adds a message to the transcript.
func (s *Session) Append(role Role, content string) {
	s.History = append(s.History, Message{Role: role, Content: content})
	s.touch()
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []Message {
	return slices.Clone(s.History)
}

// Reset clears the transcript. Model, prompt and catalog are kept.
func (s *Session) Reset() {
	s.History = []Message{}
	s.touch()
}

// Clone returns a copy whose transcript can be modified independently.
// The catalog table is shared since it is never modified after SetCatalog.
func (s *Session) Clone() *Session {
	c := *s
	c.History = slices.Clone(s.History)
	if c.History == nil {
		c.History = []Message{}
	}
	return &c
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now().UTC()
}

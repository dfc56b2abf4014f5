// Package driver adapts model and embedding services to a small set of
// interfaces used by tasks and engines.
package driver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aristath/griptape/internal/artifact"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a prompt stack.
type Message struct {
	Role    string
	Content string
}

// PromptStack is the normalized request handed to a prompt driver.
type PromptStack struct {
	Messages []Message
}

// AddSystem appends a system message.
func (s *PromptStack) AddSystem(content string) {
	s.Messages = append(s.Messages, Message{Role: RoleSystem, Content: content})
}

// AddUser appends a user message.
func (s *PromptStack) AddUser(content string) {
	s.Messages = append(s.Messages, Message{Role: RoleUser, Content: content})
}

// AddAssistant appends an assistant message.
func (s *PromptStack) AddAssistant(content string) {
	s.Messages = append(s.Messages, Message{Role: RoleAssistant, Content: content})
}

// System returns all system messages joined by blank lines.
func (s PromptStack) System() string {
	var parts []string
	for _, m := range s.Messages {
		if m.Role == RoleSystem {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// LastUser returns the content of the most recent user message.
func (s PromptStack) LastUser() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// Transcript renders the non-system messages as a single prompt. A stack
// holding one user message renders as that message alone.
func (s PromptStack) Transcript() string {
	var convo []Message
	for _, m := range s.Messages {
		if m.Role != RoleSystem {
			convo = append(convo, m)
		}
	}
	if len(convo) == 1 && convo[0].Role == RoleUser {
		return convo[0].Content
	}

	var b strings.Builder
	for i, m := range convo {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch m.Role {
		case RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(m.Content)
	}
	return b.String()
}

// PromptDriver sends a prompt stack to a model and returns its answer.
type PromptDriver interface {
	Run(ctx context.Context, stack PromptStack) (*artifact.TextArtifact, error)
	Model() string
}

// StreamingPromptDriver can deliver the answer incrementally. onChunk is
// called for every fragment; the returned artifact holds the full answer.
type StreamingPromptDriver interface {
	PromptDriver
	Stream(ctx context.Context, stack PromptStack, onChunk func(chunk string)) (*artifact.TextArtifact, error)
}

// EmbeddingDriver turns text into a vector.
type EmbeddingDriver interface {
	EmbedChunk(ctx context.Context, text string) ([]float64, error)
	Model() string
}

// PermanentError marks a failure that retrying cannot fix (bad request,
// authentication, unparseable response).
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err in a PermanentError.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is marked permanent.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// Config selects and configures a driver.
type Config struct {
	Type         string // "echo", "cloud", "gemini", or "command"
	Model        string
	BaseURL      string
	APIKey       string
	Command      string   // CLI binary for "command" drivers
	Args         []string // Extra CLI args for "command" drivers
	WorkDir      string
	SessionID    string
	SystemPrompt string
	PromptFormat string // "transcript" (default) or "llama3" for "command" drivers
	Temperature  float64
	MaxTokens    int
	HTTPClient   *http.Client
}

// New creates a prompt driver based on cfg.Type.
func New(ctx context.Context, cfg Config, pm *ProcessManager) (PromptDriver, error) {
	switch cfg.Type {
	case "echo", "":
		return NewEchoPromptDriver(), nil
	case "cloud":
		return NewCloudPromptDriver(cfg), nil
	case "gemini":
		return NewGeminiPromptDriver(ctx, cfg)
	case "command":
		return NewCommandPromptDriver(cfg, pm)
	default:
		return nil, fmt.Errorf("unknown prompt driver type: %s", cfg.Type)
	}
}

// NewEmbedding creates an embedding driver based on cfg.Type.
func NewEmbedding(ctx context.Context, cfg Config) (EmbeddingDriver, error) {
	switch cfg.Type {
	case "echo", "hash", "":
		return NewHashEmbeddingDriver(0), nil
	case "cloud":
		return NewCloudEmbeddingDriver(cfg), nil
	case "gemini":
		return NewGeminiEmbeddingDriver(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown embedding driver type: %s", cfg.Type)
	}
}

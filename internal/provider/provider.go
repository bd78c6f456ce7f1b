// Package provider provides LLM provider abstraction for the Session Agent,
// using the Eino framework so the extractor can be driven against any
// OpenAI-compatible endpoint or Anthropic's native API without the agent
// caring which.
package provider

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Provider drives a single LLM backend through a persistent multi-turn
// conversation. Implementations wrap an Eino ToolCallingChatModel; the
// Session Agent never talks to the model SDK directly.
type Provider interface {
	// ID is the provider identifier used in settings.json ("claude",
	// "lmstudio", "openrouter", "gemini").
	ID() string

	// Generate posts history and returns the assistant's reply. It does not
	// stream: the extractor parses a complete XML response per turn.
	Generate(ctx context.Context, history []*schema.Message) (*schema.Message, error)

	// SessionID returns the provider-echoed session identifier from the most
	// recent Generate call, if the provider's wire protocol carries one (the
	// Claude persistent streaming session API does; OpenAI-compatible ones
	// do not, and the agent synthesizes one instead).
	SessionID() string
}

// ErrorClass taxonomizes provider failures per spec.md §7.
type ErrorClass int

const (
	// ErrOther is a failure that is neither clearly transient connectivity
	// nor a definite 4xx; the agent treats it the same as a 4xx (not
	// transient) so it never gets stuck retrying against the same backend.
	ErrOther ErrorClass = iota
	// ErrTransient is a connectivity failure (refused, timed out, DNS) that
	// should trigger provider fallback.
	ErrTransient
	// ErrClient4xx is a non-retryable client error; not transient.
	ErrClient4xx
)

// statusCoder is implemented by most LLM SDK error types (openai-go,
// anthropic-sdk-go) that carry the HTTP status of a failed call.
type statusCoder interface {
	StatusCode() int
}

// ClassifyError determines whether err is transient connectivity, a 4xx, or
// neither, per spec.md §7's taxonomy.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrOther
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		if sc.StatusCode() >= 400 && sc.StatusCode() < 500 {
			return ErrClient4xx
		}
		return ErrOther
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrTransient
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTransient
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "i/o timeout"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "eof"),
		strings.Contains(msg, "connection reset"):
		return ErrTransient
	}

	if code, ok := extractStatusCode(msg); ok && code >= 400 && code < 500 {
		return ErrClient4xx
	}
	return ErrOther
}

// extractStatusCode looks for a bare three-digit status substring in an
// error message produced by an SDK that stringifies its status rather than
// exposing it structurally.
func extractStatusCode(msg string) (int, bool) {
	for _, tok := range strings.Fields(msg) {
		tok = strings.Trim(tok, ":,()[]\"'")
		if len(tok) == 3 {
			if n, err := strconv.Atoi(tok); err == nil && n >= 100 && n < 600 {
				return n, true
			}
		}
	}
	return 0, false
}

func chatModelOptions(temperature float64) []model.Option {
	var opts []model.Option
	if temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(temperature)))
	}
	return opts
}

// systemMessage builds the turn-zero policy carrier for a conversation.
func systemMessage(content string) *schema.Message {
	return &schema.Message{Role: schema.System, Content: content}
}

// userMessage builds a user turn.
func userMessage(content string) *schema.Message {
	return &schema.Message{Role: schema.User, Content: content}
}

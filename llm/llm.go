// Package llm defines the language-model capability contract the agent
// orchestrator depends on. Concrete providers live behind the Provider
// interface; the orchestrator never talks to a vendor SDK directly.
package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/suviet/agent/types"
)

// ChatRequest is a single completion request.
type ChatRequest struct {
	Messages    []types.Message `json:"messages"`
	Model       string          `json:"model,omitempty"`
	Temperature float32         `json:"temperature,omitempty"`
	TopP        float32         `json:"top_p,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`

	// Timeout bounds the call. Zero means the provider default applies.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Provider is the capability interface for a chat language model.
type Provider interface {
	// Name identifies the provider for logging and metrics.
	Name() string

	// Complete returns the model's text reply for the request.
	Complete(ctx context.Context, req *ChatRequest) (string, error)

	// CompleteStructured completes the request and unmarshals the model's
	// JSON reply into out. Implementations must tolerate prose around the
	// JSON object (models rarely return bare JSON reliably).
	CompleteStructured(ctx context.Context, req *ChatRequest, out any) error
}

// WithTimeout derives a context bounded by req.Timeout, falling back to
// def when the request carries none.
func WithTimeout(ctx context.Context, req *ChatRequest, def time.Duration) (context.Context, context.CancelFunc) {
	d := req.Timeout
	if d <= 0 {
		d = def
	}
	return context.WithTimeout(ctx, d)
}

// ExtractJSON returns the first balanced {...} object in s, or s itself
// when no complete object is found. Models often wrap JSON in prose or
// code fences; this strips both.
func ExtractJSON(s string) string {
	start, depth := -1, 0
	for i, c := range s {
		if c == '{' {
			if start == -1 {
				start = i
			}
			depth++
		} else if c == '}' {
			depth--
			if depth == 0 && start != -1 {
				return s[start : i+1]
			}
		}
	}
	return s
}

// UnmarshalReply extracts the JSON object from a model reply and decodes
// it into out.
func UnmarshalReply(reply string, out any) error {
	return json.Unmarshal([]byte(ExtractJSON(reply)), out)
}

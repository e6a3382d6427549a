// Package llm classifies documents and extracts their fields with a language model.
package llm

import (
	"context"
	"errors"
)

// ErrProviderUnavailable is returned while the circuit breaker is open
var ErrProviderUnavailable = errors.New("llm provider unavailable")

// Provider is one LLM backend
type Provider interface {
	Name() string

	// Complete sends one system + user prompt pair and returns the model's text
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks that the backend is reachable and accepts our credentials
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is a single-turn prompt
type CompletionRequest struct {
	System      string
	Prompt      string
	Model       string // overrides the configured model
	MaxTokens   int
	Temperature float32

	// JSON asks for a JSON object reply where the backend supports it
	JSON bool
}

type CompletionResponse struct {
	Content    string
	Model      string
	TokensUsed int
}

// Config configures one provider
type Config struct {
	Provider    string // openai, anthropic, ollama; empty means offline
	Model       string
	APIKey      string
	BaseURL     string
	Timeout     int // seconds
	MaxTokens   int
	Temperature float32
	MaxRetries  int // extraction attempts per document

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// pick returns the first non-zero value
func pick[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

package ai

import (
	"context"
	"errors"
)

// CompletionRequest is a single prompt sent to a model.
type CompletionRequest struct {
	Prompt      string
	System      string
	Temperature float32
	MaxTokens   int
	// JSON asks the backend for a JSON-only answer where it supports that.
	JSON bool
}

// CompletionResponse is the model's answer.
type CompletionResponse struct {
	Text  string
	Usage TokenUsage
	Model string
}

// TokenUsage tracks costs.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int { return u.InputTokens + u.OutputTokens }

// ErrEmptyCompletion is returned when a backend answers without text.
var ErrEmptyCompletion = errors.New("ai: empty completion")

// StatusError is returned when a backend answers with a non-success HTTP status.
type StatusError struct {
	Provider   string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return e.Provider + " API returned status: " + e.Status
}

// Temporary reports whether retrying the call could succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// Provider is the interface for all AI backends.
type Provider interface {
	ID() string
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

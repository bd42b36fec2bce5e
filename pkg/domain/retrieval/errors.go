package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// FailureKind is how an adapter call failed. It selects the retry branch.
type FailureKind string

const (
	FailureTimeout         FailureKind = "timeout"
	FailureUnavailable     FailureKind = "unavailable"
	FailureInvalidInput    FailureKind = "invalid_input"
	FailureInvalidResponse FailureKind = "invalid_response"
)

// Error is the typed failure adapters surface.
type Error struct {
	Kind    FailureKind
	Adapter string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s adapter: %s", e.Adapter, e.Kind)
	}
	return fmt.Sprintf("%s adapter: %s: %v", e.Adapter, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a typed adapter error.
func NewError(kind FailureKind, adapter string, err error) *Error {
	return &Error{Kind: kind, Adapter: adapter, Err: err}
}

// Classify returns the failure kind of err. Untyped errors count as a
// timeout when they carry a deadline, otherwise as unavailable.
func Classify(err error) FailureKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	return FailureUnavailable
}

// Retryable reports whether a failure of this kind is worth another attempt.
func (k FailureKind) Retryable() bool {
	return k != FailureInvalidInput
}

// ReviewKind maps an adapter failure onto the engine's error kinds.
func (k FailureKind) ReviewKind() review.ErrorKind {
	switch k {
	case FailureTimeout:
		return review.KindAdapterTimeout
	case FailureInvalidInput:
		return review.KindAdapterInvalidInput
	case FailureInvalidResponse:
		return review.KindAdapterInvalidResponse
	default:
		return review.KindAdapterUnavailable
	}
}

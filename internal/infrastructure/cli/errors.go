package cli

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// CLIError wraps domain errors with user-facing messages and actionable hints.
type CLIError struct {
	Message  string
	Hint     string
	Err      error
	ExitCode int
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a CLIError with a default exit code of 1.
func NewCLIError(msg, hint string, err error) *CLIError {
	return &CLIError{
		Message:  msg,
		Hint:     hint,
		Err:      err,
		ExitCode: 1,
	}
}

// Exit codes.
const (
	ExitFailure      = 1
	ExitConfig       = 2
	ExitReviewFailed = 3
	ExitRegression   = 4
)

// ErrReviewFailed is returned by commands that gate on the review verdict.
var ErrReviewFailed = errors.New("review verdict is fail")

// ErrRegression is returned when an evaluation regressed against its baseline.
var ErrRegression = errors.New("evaluation regressed against baseline")

// MapError converts known domain errors into CLIErrors with actionable hints.
// Unmapped errors are returned as-is.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return err
	}

	var rerr *review.Error
	if errors.As(err, &rerr) && rerr.Kind == review.KindConfiguration {
		hint := "Check .smartreviewer/review.yaml and checks.yaml"
		if rerr.CheckItemID != "" {
			hint = fmt.Sprintf("Check item '%s' is not usable, run 'smartreviewer review checks' to list the catalogue", rerr.CheckItemID)
		}
		e := NewCLIError("invalid review configuration", hint, err)
		e.ExitCode = ExitConfig
		return e
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return NewCLIError("not found", "Run 'smartreviewer results list' to see stored results", err)
	case errors.Is(err, review.ErrRunTimeout):
		return NewCLIError("review run timed out", "Raise --run-timeout or run_timeout_sec in review.yaml", err)
	case errors.Is(err, ErrReviewFailed):
		e := NewCLIError("review failed", "Address the blocking findings and run the review again", err)
		e.ExitCode = ExitReviewFailed
		return e
	case errors.Is(err, ErrRegression):
		e := NewCLIError("evaluation regressed", "Compare the metric deltas against the baseline", err)
		e.ExitCode = ExitRegression
		return e
	}

	return err
}

package review

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a check item or run did not complete normally.
type ErrorKind string

const (
	KindConfiguration           ErrorKind = "configuration"
	KindAdapterTimeout          ErrorKind = "adapter_timeout"
	KindAdapterUnavailable      ErrorKind = "adapter_unavailable"
	KindAdapterInvalidInput     ErrorKind = "adapter_invalid_input"
	KindAdapterInvalidResponse  ErrorKind = "adapter_invalid_response"
	KindJudgmentTimeout         ErrorKind = "judgment_timeout"
	KindJudgmentInvalidResponse ErrorKind = "judgment_invalid_response"
	KindRunTimeout              ErrorKind = "run_timeout"
)

// Sentinels usable with errors.Is against any *Error of the same kind.
var (
	ErrConfiguration           = &Error{Kind: KindConfiguration}
	ErrAdapterTimeout          = &Error{Kind: KindAdapterTimeout}
	ErrAdapterUnavailable      = &Error{Kind: KindAdapterUnavailable}
	ErrAdapterInvalidResponse  = &Error{Kind: KindAdapterInvalidResponse}
	ErrJudgmentTimeout         = &Error{Kind: KindJudgmentTimeout}
	ErrJudgmentInvalidResponse = &Error{Kind: KindJudgmentInvalidResponse}
	ErrRunTimeout              = &Error{Kind: KindRunTimeout}
)

// Error is a typed failure scoped to a check item.
type Error struct {
	Kind        ErrorKind
	CheckItemID string
	Op          string
	Err         error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.CheckItemID != "" {
		msg = fmt.Sprintf("check %s: %s", e.CheckItemID, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so sentinels compare equal to any error of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewConfigurationError reports an invalid check item.
func NewConfigurationError(itemID string, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, CheckItemID: itemID, Op: "validate", Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the ErrorKind from err, or "" if err is not typed.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

package sdk

import (
	"errors"
	"fmt"
	"strings"
)

// SupportedSchemaMajor must equal the major part of the server's
// schema_version for Compatible to succeed.
const SupportedSchemaMajor = "1"

var (
	// ErrNoContent means the server answered a tool call with no content.
	ErrNoContent = errors.New("smartreviewer: empty tool result")
	// ErrIncompatibleSchema is wrapped by Compatible.
	ErrIncompatibleSchema = errors.New("smartreviewer: incompatible tool schema")
)

// ToolError carries the text of a tool call that reported failure.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("smartreviewer: %s failed: %s", e.Tool, e.Message)
}

// NotFound reports whether the server could not find the requested review
// or evaluation.
func (e *ToolError) NotFound() bool {
	return strings.Contains(strings.ToLower(e.Message), "not found")
}

// IsNotFound reports whether err means a missing review or evaluation.
// The server may send that as a tool error or as a JSON-RPC error, so any
// other error is judged by its message.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var te *ToolError
	if errors.As(err, &te) {
		return te.NotFound()
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

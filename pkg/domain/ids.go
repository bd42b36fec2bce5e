package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// idPattern matches stored result ids: uuids and short slugs, never paths.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// ResultID identifies a stored review or evaluation result.
type ResultID struct {
	value string
}

// NewResultID validates value as a result id.
func NewResultID(value string) (ResultID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return ResultID{}, fmt.Errorf("result ID cannot be empty")
	}
	if !idPattern.MatchString(value) {
		return ResultID{}, fmt.Errorf("invalid result ID format: %s", value)
	}
	return ResultID{value: value}, nil
}

// MustResultID creates a ResultID or panics if invalid. Use only in tests.
func MustResultID(value string) ResultID {
	id, err := NewResultID(value)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ResultID) String() string { return id.value }

func (id ResultID) IsZero() bool { return id.value == "" }

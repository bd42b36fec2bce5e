package domain_test

import (
	"testing"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain"
)

func TestResultID(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"uuid", "3f2b8c1e-1d2a-4c3b-9a8e-0f1e2d3c4b5a", false},
		{"slug", "baseline_v2", false},
		{"trimmed", "  rev-1 ", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"traversal", "../etc/passwd", true},
		{"separator", "a/b", true},
		{"leading dash", "-rev", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := domain.NewResultID(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewResultID(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if err == nil && id.IsZero() {
				t.Error("valid id should not be zero")
			}
		})
	}
}

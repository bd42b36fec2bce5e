package review

import (
	"errors"
	"fmt"
	"testing"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name       string
		severities []Severity
		want       Status
	}{
		{"empty", nil, StatusPass},
		{"info only", []Severity{SeverityInfo}, StatusWarning},
		{"minor only", []Severity{SeverityMinor, SeverityInfo}, StatusWarning},
		{"minor and major", []Severity{SeverityMinor, SeverityMajor}, StatusFail},
		{"critical", []Severity{SeverityCritical}, StatusFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var findings []Finding
			for i, s := range tt.severities {
				findings = append(findings, Finding{ID: fmt.Sprint(i), Severity: s})
			}
			if got := DeriveStatus(findings); got != tt.want {
				t.Errorf("DeriveStatus(%v) = %s, want %s", tt.severities, got, tt.want)
			}
		})
	}
}

func TestReviewResult_Summarize(t *testing.T) {
	r := &ReviewResult{
		Items: []ItemExecution{
			{CheckItemID: "a", Status: ItemPass, LLMCalls: 1},
			{CheckItemID: "b", Status: ItemFail, LLMCalls: 2},
			{CheckItemID: "c", Status: ItemError},
			{CheckItemID: "d", Status: ItemSkipped},
		},
		Findings: []Finding{
			{ID: "f1", CheckItemID: "b", Severity: SeverityCritical},
			{ID: "f2", CheckItemID: "b", Severity: SeverityMinor},
		},
		Metadata: Metadata{SectionsAnalyzed: 4},
	}
	r.Summarize()

	m := r.Metadata
	if m.ChecksExecuted != 3 || m.ChecksSkipped != 1 || m.ChecksErrored != 1 {
		t.Fatalf("unexpected counts: %+v", m)
	}
	if m.LLMCalls != 3 {
		t.Errorf("LLMCalls = %d, want 3", m.LLMCalls)
	}
	if m.TotalFindings != 2 || m.CriticalFindings != 1 {
		t.Errorf("finding counts = %d/%d, want 2/1", m.TotalFindings, m.CriticalFindings)
	}
	if m.SectionsAnalyzed != 4 {
		t.Errorf("SectionsAnalyzed = %d, want 4", m.SectionsAnalyzed)
	}
	if got := len(r.FindingsFor("b")); got != 2 {
		t.Errorf("FindingsFor(b) = %d, want 2", got)
	}
}

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &Error{Kind: KindAdapterTimeout, CheckItemID: "BD-001", Err: errors.New("slow")})
	if !errors.Is(err, ErrAdapterTimeout) {
		t.Fatal("expected errors.Is to match adapter timeout sentinel")
	}
	if errors.Is(err, ErrConfiguration) {
		t.Fatal("did not expect configuration match")
	}
	if got := KindOf(err); got != KindAdapterTimeout {
		t.Errorf("KindOf = %s, want %s", got, KindAdapterTimeout)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
}

func TestParseSeverity(t *testing.T) {
	tests := map[string]Severity{
		"critical": SeverityCritical,
		"high":     SeverityMajor,
		"warning":  SeverityMinor,
		"low":      SeverityInfo,
		"bogus":    SeverityMinor,
	}
	for in, want := range tests {
		if got := ParseSeverity(in); got != want {
			t.Errorf("ParseSeverity(%q) = %s, want %s", in, got, want)
		}
	}
}

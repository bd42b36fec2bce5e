package review

// Severity grades a finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
	SeverityInfo     Severity = "info"
)

// ParseSeverity accepts the engine's severities plus the aliases judgment
// models tend to answer with. Unknown values map to minor.
func ParseSeverity(s string) Severity {
	switch s {
	case "critical", "blocker":
		return SeverityCritical
	case "major", "high", "error":
		return SeverityMajor
	case "minor", "medium", "warning":
		return SeverityMinor
	case "info", "low", "note":
		return SeverityInfo
	default:
		return SeverityMinor
	}
}

// Blocking reports whether the severity fails a review.
func (s Severity) Blocking() bool {
	return s == SeverityCritical || s == SeverityMajor
}

// Finding is a concrete detected problem.
type Finding struct {
	ID                 string   `json:"id" yaml:"id"`
	CheckItemID        string   `json:"check_item_id" yaml:"check_item_id"`
	Severity           Severity `json:"severity" yaml:"severity"`
	Title              string   `json:"title,omitempty" yaml:"title,omitempty"`
	Message            string   `json:"message" yaml:"message"`
	Location           string   `json:"location,omitempty" yaml:"location,omitempty"`
	Confidence         *float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Evidence           string   `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	GuidelineReference string   `json:"guideline_reference,omitempty" yaml:"guideline_reference,omitempty"`
}

// Suggestion is a proposed remediation tied to exactly one finding.
type Suggestion struct {
	ID         string  `json:"id" yaml:"id"`
	FindingID  string  `json:"finding_id" yaml:"finding_id"`
	Title      string  `json:"title,omitempty" yaml:"title,omitempty"`
	Content    string  `json:"content" yaml:"content"`
	Example    string  `json:"example,omitempty" yaml:"example,omitempty"`
	Priority   int     `json:"priority" yaml:"priority"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

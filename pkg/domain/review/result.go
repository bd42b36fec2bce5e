package review

import "time"

// Status is the document-level verdict.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusWarning Status = "warning"
)

// DeriveStatus computes the overall verdict from finding severities:
// fail if any critical or major finding exists, warning if any finding
// exists, pass otherwise.
func DeriveStatus(findings []Finding) Status {
	status := StatusPass
	for _, f := range findings {
		if f.Severity.Blocking() {
			return StatusFail
		}
		status = StatusWarning
	}
	return status
}

// ItemStatus is the outcome of a single check item.
type ItemStatus string

const (
	ItemPass    ItemStatus = "pass"
	ItemFail    ItemStatus = "fail"
	ItemWarning ItemStatus = "warning"
	ItemError   ItemStatus = "error"
	ItemSkipped ItemStatus = "skipped"
)

// Omission records an adapter whose contribution was dropped.
type Omission struct {
	Adapter  string    `json:"adapter" yaml:"adapter"`
	Kind     ErrorKind `json:"kind" yaml:"kind"`
	Message  string    `json:"message" yaml:"message"`
	Attempts int       `json:"attempts" yaml:"attempts"`
}

// ItemExecution is the per-check-item execution metadata of a run.
type ItemExecution struct {
	CheckItemID     string         `json:"check_item_id" yaml:"check_item_id"`
	CheckItemName   string         `json:"check_item_name,omitempty" yaml:"check_item_name,omitempty"`
	Status          ItemStatus     `json:"status" yaml:"status"`
	Strategy        Strategy       `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Adapters        []string       `json:"adapters,omitempty" yaml:"adapters,omitempty"`
	Attempts        map[string]int `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	Retries         int            `json:"retries" yaml:"retries"`
	FallbackApplied bool           `json:"fallback_applied" yaml:"fallback_applied"`
	Omitted         []Omission     `json:"omitted,omitempty" yaml:"omitted,omitempty"`
	JudgmentRetries int            `json:"judgment_retries" yaml:"judgment_retries"`
	EvidenceRefs    []string       `json:"evidence_refs,omitempty" yaml:"evidence_refs,omitempty"`
	Rationale       string         `json:"rationale,omitempty" yaml:"rationale,omitempty"`
	ErrorKind       ErrorKind      `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error           string         `json:"error,omitempty" yaml:"error,omitempty"`
	Elapsed         time.Duration  `json:"elapsed_ns" yaml:"elapsed_ns"`
	LLMCalls        int            `json:"llm_calls" yaml:"llm_calls"`
}

// Metadata summarises a run.
type Metadata struct {
	ChecksExecuted   int `json:"checks_executed" yaml:"checks_executed"`
	ChecksPassed     int `json:"checks_passed" yaml:"checks_passed"`
	ChecksFailed     int `json:"checks_failed" yaml:"checks_failed"`
	ChecksWarning    int `json:"checks_warning" yaml:"checks_warning"`
	ChecksSkipped    int `json:"checks_skipped" yaml:"checks_skipped"`
	ChecksErrored    int `json:"checks_errored" yaml:"checks_errored"`
	TotalFindings    int `json:"total_findings" yaml:"total_findings"`
	CriticalFindings int `json:"critical_findings" yaml:"critical_findings"`
	LLMCalls         int `json:"llm_calls" yaml:"llm_calls"`
	SectionsAnalyzed int `json:"sections_analyzed" yaml:"sections_analyzed"`
}

// ReviewResult is the structured outcome of reviewing one document.
type ReviewResult struct {
	ID           string          `json:"id" yaml:"id"`
	DocumentID   string          `json:"document_id" yaml:"document_id"`
	DocumentType DocumentType    `json:"document_type,omitempty" yaml:"document_type,omitempty"`
	RunState     RunState        `json:"run_state" yaml:"run_state"`
	Status       Status          `json:"status" yaml:"status"`
	Findings     []Finding       `json:"findings" yaml:"findings"`
	Suggestions  []Suggestion    `json:"suggestions" yaml:"suggestions"`
	Items        []ItemExecution `json:"items" yaml:"items"`
	Metadata     Metadata        `json:"metadata" yaml:"metadata"`
	StartedAt    time.Time       `json:"started_at" yaml:"started_at"`
	CompletedAt  time.Time       `json:"completed_at" yaml:"completed_at"`
	Elapsed      time.Duration   `json:"elapsed_ns" yaml:"elapsed_ns"`
}

// Item returns the execution metadata for a check item id.
func (r *ReviewResult) Item(id string) (ItemExecution, bool) {
	for _, it := range r.Items {
		if it.CheckItemID == id {
			return it, true
		}
	}
	return ItemExecution{}, false
}

// FindingsFor returns the findings owned by a check item.
func (r *ReviewResult) FindingsFor(id string) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.CheckItemID == id {
			out = append(out, f)
		}
	}
	return out
}

// Summarize recomputes Metadata counts from Items and Findings.
func (r *ReviewResult) Summarize() {
	llm := 0
	m := Metadata{SectionsAnalyzed: r.Metadata.SectionsAnalyzed}
	for _, it := range r.Items {
		llm += it.LLMCalls
		switch it.Status {
		case ItemPass:
			m.ChecksPassed++
		case ItemFail:
			m.ChecksFailed++
		case ItemWarning:
			m.ChecksWarning++
		case ItemSkipped:
			m.ChecksSkipped++
			continue
		case ItemError:
			m.ChecksErrored++
		}
		m.ChecksExecuted++
	}
	m.LLMCalls = llm
	m.TotalFindings = len(r.Findings)
	for _, f := range r.Findings {
		if f.Severity == SeverityCritical {
			m.CriticalFindings++
		}
	}
	r.Metadata = m
}

// Progress is emitted after each check item of a run resolves.
type Progress struct {
	ReviewID      string     `json:"review_id"`
	DocumentID    string     `json:"document_id"`
	Completed     int        `json:"completed"`
	Total         int        `json:"total"`
	CurrentCheck  string     `json:"current_check"`
	CheckStatus   ItemStatus `json:"check_status"`
	Percent       float64    `json:"percent"`
	FindingsSoFar int        `json:"findings_so_far"`
	State         RunState   `json:"state"`
}

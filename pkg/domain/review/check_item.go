package review

import (
	"fmt"
	"strings"
)

// CheckType is the declared kind of a check item.
type CheckType string

const (
	TypeTerminology  CheckType = "terminology"
	TypeStyle        CheckType = "style"
	TypeCompliance   CheckType = "compliance"
	TypeTraceability CheckType = "traceability"
	TypeCoverage     CheckType = "coverage"
	TypeComposite    CheckType = "composite"
)

// Strategy names the retrieval strategy used for a check item.
type Strategy string

const (
	StrategyVector   Strategy = "vector"
	StrategyGraph    Strategy = "graph"
	StrategyOntology Strategy = "ontology"
	StrategyHybrid   Strategy = "hybrid"
)

// Priority ranks check items. It also drives the default severity of a
// finding the judgment did not detail.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// DocumentType identifies the kind of document a check item applies to.
type DocumentType string

const (
	DocBasicDesign DocumentType = "basic_design"
	DocTestPlan    DocumentType = "test_plan"
)

// Criteria is what the judgment call is asked to evaluate.
type Criteria struct {
	Prompt    string   `json:"prompt" yaml:"prompt"`
	Template  string   `json:"template,omitempty" yaml:"template,omitempty"`
	Threshold *float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

// CheckItem is a named, typed rule a document is evaluated against.
// It is treated as immutable once a run has started.
type CheckItem struct {
	ID                 string       `json:"id" yaml:"id"`
	Name               string       `json:"name" yaml:"name"`
	Description        string       `json:"description,omitempty" yaml:"description,omitempty"`
	Type               CheckType    `json:"type" yaml:"type"`
	ForceStrategy      Strategy     `json:"force_strategy,omitempty" yaml:"force_strategy,omitempty"`
	Priority           Priority     `json:"priority" yaml:"priority"`
	Criteria           Criteria     `json:"criteria" yaml:"criteria"`
	DocumentType       DocumentType `json:"document_type,omitempty" yaml:"document_type,omitempty"`
	GuidelineReference string       `json:"guideline_reference,omitempty" yaml:"guideline_reference,omitempty"`

	// Retrieval parameters. Empty values fall back to Name/Description.
	Query    string `json:"query,omitempty" yaml:"query,omitempty"`
	Entity   string `json:"entity,omitempty" yaml:"entity,omitempty"`
	Relation string `json:"relation,omitempty" yaml:"relation,omitempty"`
	Domain   string `json:"domain,omitempty" yaml:"domain,omitempty"`

	// When is an optional CEL expression deciding whether the item applies
	// to a given document.
	When string `json:"when,omitempty" yaml:"when,omitempty"`
}

// SearchQuery returns the text used for similarity search.
func (c CheckItem) SearchQuery() string {
	if c.Query != "" {
		return c.Query
	}
	if c.Description != "" {
		return strings.TrimSpace(c.Name + " " + c.Description)
	}
	return c.Name
}

// GraphEntity returns the start node for graph traversal.
func (c CheckItem) GraphEntity() string {
	if c.Entity != "" {
		return c.Entity
	}
	return c.ID
}

// OntologyDomain returns the ontology domain to check coverage against.
func (c CheckItem) OntologyDomain() string {
	if c.Domain != "" {
		return c.Domain
	}
	return string(c.DocumentType)
}

// Validate checks the fields a run depends on. Type and strategy checks
// live in the strategy selector so there is one table to maintain.
func (c CheckItem) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("check item id is required")
	}
	if c.Type == "" {
		return fmt.Errorf("check item %s: type is required", c.ID)
	}
	switch c.Priority {
	case "", PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
	default:
		return fmt.Errorf("check item %s: unknown priority %q", c.ID, c.Priority)
	}
	if t := c.Criteria.Threshold; t != nil && (*t < 0 || *t > 1) {
		return fmt.Errorf("check item %s: threshold %v out of range [0,1]", c.ID, *t)
	}
	return nil
}

// DefaultSeverity maps the item priority onto a finding severity.
func (c CheckItem) DefaultSeverity() Severity {
	switch c.Priority {
	case PriorityCritical:
		return SeverityCritical
	case PriorityHigh:
		return SeverityMajor
	case PriorityLow:
		return SeverityInfo
	default:
		return SeverityMinor
	}
}

// Package retrieval defines the contract between the review engine and the
// external retrieval backends: a vector index, a knowledge graph and an
// ontology reasoner. Each backend is a single blocking query.
package retrieval

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// Defaults applied when a query leaves a field unset.
const (
	DefaultTopK       = 10
	DefaultThreshold  = 0.5
	DefaultCollection = "guidelines"
	DefaultMaxDepth   = 2
	DefaultLimit      = 50
)

// Traversal is the graph walk order.
type Traversal string

const (
	TraversalBFS Traversal = "bfs"
	TraversalDFS Traversal = "dfs"
)

// CoverageCheck selects what the ontology reasoner verifies.
type CoverageCheck string

const (
	CheckCoverage  CoverageCheck = "coverage"
	CheckHierarchy CoverageCheck = "hierarchy"
	CheckRequired  CoverageCheck = "required"
)

type VectorQuery struct {
	Query      string            `json:"query"`
	TopK       int               `json:"top_k"`
	Threshold  float64           `json:"score_threshold"`
	Collection string            `json:"collection,omitempty"`
	Filter     map[string]string `json:"filters,omitempty"`
}

type GraphQuery struct {
	Entity    string    `json:"start_node_id"`
	Relation  string    `json:"relationship_type,omitempty"`
	MaxDepth  int       `json:"max_depth"`
	Traversal Traversal `json:"traversal"`
	Limit     int       `json:"limit"`
}

type OntologyQuery struct {
	DocumentID  string        `json:"document_id"`
	DocumentRef string        `json:"document_ref,omitempty"`
	Domain      string        `json:"domain"`
	CheckType   CoverageCheck `json:"check_type"`
}

// Response is what vector and graph backends return.
type Response struct {
	Fragments []review.EvidenceFragment `json:"fragments" yaml:"fragments"`
	TookMs    int64                     `json:"took_ms" yaml:"took_ms"`
}

// CoverageReport is what the ontology backend returns.
type CoverageReport struct {
	CoverageRate float64  `json:"coverage_rate" yaml:"coverage_rate"`
	MissingItems []string `json:"missing_items" yaml:"missing_items"`
	TookMs       int64    `json:"took_ms" yaml:"took_ms"`
}

// Fragments turns a coverage report into evidence: one summary fragment
// whose relevance grows with the gap, then one per missing item.
func (c *CoverageReport) Fragments(domain string) []review.EvidenceFragment {
	gap := review.Clamp01(1 - c.CoverageRate)
	out := []review.EvidenceFragment{{
		Source:      review.SourceOntology,
		ReferenceID: "coverage:" + domain,
		Relevance:   1,
		Text:        fmt.Sprintf("ontology coverage for %s is %.0f%% (%d missing)", domain, c.CoverageRate*100, len(c.MissingItems)),
	}}
	for _, m := range c.MissingItems {
		out = append(out, review.EvidenceFragment{
			Source:      review.SourceOntology,
			ReferenceID: "missing:" + m,
			Relevance:   gap,
			Text:        "missing required concept: " + m,
		})
	}
	return out
}

// VectorSearcher runs similarity search over indexed guideline chunks.
type VectorSearcher interface {
	SimilaritySearch(ctx context.Context, q VectorQuery) (*Response, error)
}

// GraphTraverser walks the knowledge graph from an entity.
type GraphTraverser interface {
	GraphTraverse(ctx context.Context, q GraphQuery) (*Response, error)
}

// OntologyChecker verifies a document against an ontology domain.
type OntologyChecker interface {
	OntologyCoverage(ctx context.Context, q OntologyQuery) (*CoverageReport, error)
}

// Backend is implemented by adapters that serve all three operations.
type Backend interface {
	VectorSearcher
	GraphTraverser
	OntologyChecker
}

// WithDefaults fills unset fields.
func (q VectorQuery) WithDefaults() VectorQuery {
	if q.TopK <= 0 {
		q.TopK = DefaultTopK
	}
	if q.Threshold <= 0 {
		q.Threshold = DefaultThreshold
	}
	if q.Collection == "" {
		q.Collection = DefaultCollection
	}
	return q
}

// WithDefaults fills unset fields.
func (q GraphQuery) WithDefaults() GraphQuery {
	if q.MaxDepth <= 0 {
		q.MaxDepth = DefaultMaxDepth
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Traversal == "" {
		q.Traversal = TraversalBFS
	}
	return q
}

// WithDefaults fills unset fields.
func (q OntologyQuery) WithDefaults() OntologyQuery {
	if q.CheckType == "" {
		q.CheckType = CheckCoverage
	}
	return q
}

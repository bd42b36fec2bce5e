// Package contract provides contract assertions every retrieval backend
// should satisfy, whatever transport it is reached through.
package contract

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/retrieval"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// Result captures the outcome of a single contract assertion.
type Result struct {
	Name    string
	Passed  bool
	Message string
}

func pass(name, format string, args ...any) Result {
	return Result{Name: name, Passed: true, Message: fmt.Sprintf(format, args...)}
}

func fail(name, format string, args ...any) Result {
	return Result{Name: name, Passed: false, Message: fmt.Sprintf(format, args...)}
}

func checkFragments(frags []review.EvidenceFragment, source review.SourceKind) error {
	for _, f := range frags {
		if f.ReferenceID == "" {
			return fmt.Errorf("fragment without reference id")
		}
		if f.Relevance < 0 || f.Relevance > 1 {
			return fmt.Errorf("fragment %s relevance %v outside [0,1]", f.ReferenceID, f.Relevance)
		}
		if f.Source != "" && f.Source != source {
			return fmt.Errorf("fragment %s has source %s, want %s", f.ReferenceID, f.Source, source)
		}
	}
	return nil
}

// AssertVectorSearch verifies a plain query succeeds within top_k with
// well-formed fragments.
func AssertVectorSearch(ctx context.Context, b retrieval.Backend) Result {
	const name = "VectorSearch"
	resp, err := b.SimilaritySearch(ctx, retrieval.VectorQuery{Query: "terminology consistency", TopK: 3, Threshold: 0.1})
	if err != nil {
		return fail(name, "SimilaritySearch failed: %v", err)
	}
	if resp == nil {
		return fail(name, "SimilaritySearch returned nil response")
	}
	if len(resp.Fragments) > 3 {
		return fail(name, "returned %d fragments for top_k 3", len(resp.Fragments))
	}
	if err := checkFragments(resp.Fragments, review.SourceVector); err != nil {
		return fail(name, "%v", err)
	}
	return pass(name, "returned %d fragments", len(resp.Fragments))
}

// AssertVectorRejectsEmptyQuery verifies an empty query is invalid input,
// which the orchestrator never retries.
func AssertVectorRejectsEmptyQuery(ctx context.Context, b retrieval.Backend) Result {
	const name = "VectorRejectsEmptyQuery"
	_, err := b.SimilaritySearch(ctx, retrieval.VectorQuery{})
	if err == nil {
		return fail(name, "expected an error for an empty query")
	}
	if kind := retrieval.Classify(err); kind != retrieval.FailureInvalidInput {
		return fail(name, "empty query failed as %s, want %s", kind, retrieval.FailureInvalidInput)
	}
	return pass(name, "empty query rejected: %v", err)
}

// AssertGraphLimit verifies traversal honours the node limit.
func AssertGraphLimit(ctx context.Context, b retrieval.Backend) Result {
	const name = "GraphLimit"
	resp, err := b.GraphTraverse(ctx, retrieval.GraphQuery{Entity: "REQ", MaxDepth: 1, Limit: 1})
	if err != nil {
		return fail(name, "GraphTraverse failed: %v", err)
	}
	if resp == nil {
		return fail(name, "GraphTraverse returned nil response")
	}
	if len(resp.Fragments) > 1 {
		return fail(name, "returned %d fragments for limit 1", len(resp.Fragments))
	}
	if err := checkFragments(resp.Fragments, review.SourceGraph); err != nil {
		return fail(name, "%v", err)
	}
	return pass(name, "returned %d fragments", len(resp.Fragments))
}

// AssertGraphRejectsEmptyEntity verifies traversal needs a start entity.
func AssertGraphRejectsEmptyEntity(ctx context.Context, b retrieval.Backend) Result {
	const name = "GraphRejectsEmptyEntity"
	_, err := b.GraphTraverse(ctx, retrieval.GraphQuery{})
	if err == nil {
		return fail(name, "expected an error for an empty start entity")
	}
	if kind := retrieval.Classify(err); kind != retrieval.FailureInvalidInput {
		return fail(name, "empty entity failed as %s, want %s", kind, retrieval.FailureInvalidInput)
	}
	return pass(name, "empty entity rejected: %v", err)
}

// AssertOntologyCoverage verifies the coverage rate is a fraction.
func AssertOntologyCoverage(ctx context.Context, b retrieval.Backend) Result {
	const name = "OntologyCoverage"
	report, err := b.OntologyCoverage(ctx, retrieval.OntologyQuery{DocumentID: "contract-doc", Domain: "basic_design"})
	if err != nil {
		return fail(name, "OntologyCoverage failed: %v", err)
	}
	if report == nil {
		return fail(name, "OntologyCoverage returned nil report")
	}
	if report.CoverageRate < 0 || report.CoverageRate > 1 {
		return fail(name, "coverage rate %v outside [0,1]", report.CoverageRate)
	}
	return pass(name, "coverage %.2f with %d missing items", report.CoverageRate, len(report.MissingItems))
}

// AssertCancelledContext checks how a backend treats a context that is
// already done. Backends that still answer are tolerated.
func AssertCancelledContext(ctx context.Context, b retrieval.Backend) Result {
	const name = "CancelledContext"
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err := b.SimilaritySearch(cctx, retrieval.VectorQuery{Query: "cancelled"})
	if err == nil {
		return pass(name, "cancelled call still answered (acceptable)")
	}
	if kind := retrieval.Classify(err); kind == retrieval.FailureInvalidInput {
		return fail(name, "cancellation reported as %s", kind)
	}
	return pass(name, "cancelled call failed: %v", err)
}

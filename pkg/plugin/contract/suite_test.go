package contract

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/retrieval"
	domainRetrieval "github.com/felixgeelhaar/smartreviewer/pkg/domain/retrieval"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

func fixtureBackend() *retrieval.FixtureBackend {
	return retrieval.NewFixtureBackend(&retrieval.Fixture{
		Vector: map[string][]review.EvidenceFragment{
			"terminology": {
				{Source: review.SourceVector, ReferenceID: "G-1", Relevance: 0.9},
				{Source: review.SourceVector, ReferenceID: "G-2", Relevance: 0.7},
			},
		},
		Graph: map[string][]review.EvidenceFragment{
			"REQ": {
				{Source: review.SourceGraph, ReferenceID: "REQ-1", Relevance: 1},
				{Source: review.SourceGraph, ReferenceID: "REQ-2", Relevance: 0.5},
			},
		},
	})
}

func TestContractSuite_FixturePasses(t *testing.T) {
	result := NewContractSuite().RunWithBackend(context.Background(), fixtureBackend())
	if result.Passed+result.Failed != len(result.Results) {
		t.Errorf("passed(%d) + failed(%d) != total(%d)", result.Passed, result.Failed, len(result.Results))
	}
	for _, r := range result.Results {
		if !r.Passed {
			t.Errorf("assertion %s failed: %s", r.Name, r.Message)
		}
	}
}

// brokenBackend fails every call as unavailable and ignores limits.
type brokenBackend struct{ tooMany bool }

func (b brokenBackend) SimilaritySearch(context.Context, domainRetrieval.VectorQuery) (*domainRetrieval.Response, error) {
	return nil, errors.New("down")
}

func (b brokenBackend) GraphTraverse(context.Context, domainRetrieval.GraphQuery) (*domainRetrieval.Response, error) {
	if b.tooMany {
		return &domainRetrieval.Response{Fragments: []review.EvidenceFragment{
			{ReferenceID: "a", Relevance: 1}, {ReferenceID: "b", Relevance: 2},
		}}, nil
	}
	return nil, errors.New("down")
}

func (b brokenBackend) OntologyCoverage(context.Context, domainRetrieval.OntologyQuery) (*domainRetrieval.CoverageReport, error) {
	return &domainRetrieval.CoverageReport{CoverageRate: 1.5}, nil
}

func TestContractSuite_ReportsViolations(t *testing.T) {
	result := NewContractSuite().RunWithBackend(context.Background(), brokenBackend{tooMany: true})
	failed := map[string]bool{}
	for _, r := range result.Results {
		if !r.Passed {
			failed[r.Name] = true
		}
	}
	for _, name := range []string{"VectorSearch", "VectorRejectsEmptyQuery", "GraphLimit", "GraphRejectsEmptyEntity", "OntologyCoverage"} {
		if !failed[name] {
			t.Errorf("%s should fail against a broken backend", name)
		}
	}
	if failed["CancelledContext"] {
		t.Error("CancelledContext should tolerate an unavailable error")
	}
}

func TestContractSuite_RunBinaryMissing(t *testing.T) {
	if _, err := NewContractSuite().RunBinary(context.Background(), "/nonexistent/plugin", nil); err == nil {
		t.Error("expected error for missing binary")
	}
}

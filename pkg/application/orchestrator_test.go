package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/retrieval"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

var compositeItem = review.CheckItem{ID: "BD-010", Name: "Overall consistency", Type: review.TypeComposite, Priority: review.PriorityHigh}

func TestRetrieve_RetriesTimeoutsThenSucceeds(t *testing.T) {
	b := newScriptedBackend().failWith(review.SourceGraph, timeoutErr(review.SourceGraph), timeoutErr(review.SourceGraph))
	b.frags[review.SourceGraph] = []review.EvidenceFragment{{ReferenceID: "g-1", Relevance: 0.7, Text: "linked"}}

	got, err := testOrchestrator(b).Retrieve(context.Background(), compositeItem, testDoc, []review.SourceKind{review.SourceGraph})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if got.Retries() != 2 {
		t.Errorf("Retries = %d, want 2", got.Retries())
	}
	if got.FallbackApplied {
		t.Error("FallbackApplied should be false when the adapter recovers")
	}
	if len(b.graphQs) != 3 {
		t.Fatalf("graph calls = %d, want 3", len(b.graphQs))
	}
	if b.graphQs[0].MaxDepth != b.graphQs[1].MaxDepth {
		t.Errorf("first retry should reuse parameters: %+v vs %+v", b.graphQs[0], b.graphQs[1])
	}
	if b.graphQs[2].MaxDepth != 1 || b.graphQs[2].Limit != retrieval.DefaultLimit/2 {
		t.Errorf("second retry should narrow scope, got %+v", b.graphQs[2])
	}
	if got.Fragments[0].Source != review.SourceGraph {
		t.Errorf("fragment source = %q, want graph", got.Fragments[0].Source)
	}
}

func TestRetrieve_InvalidInputIsNotRetried(t *testing.T) {
	b := newScriptedBackend().failWith(review.SourceVector, retrieval.NewError(retrieval.FailureInvalidInput, "vector", errors.New("bad query")))

	_, err := testOrchestrator(b).Retrieve(context.Background(), compositeItem, testDoc, []review.SourceKind{review.SourceVector})
	if review.KindOf(err) != review.KindAdapterInvalidInput {
		t.Fatalf("err kind = %q, want adapter_invalid_input", review.KindOf(err))
	}
	if n := b.callCount(review.SourceVector); n != 1 {
		t.Errorf("vector calls = %d, want 1", n)
	}
}

func TestRetrieve_InvalidInputSkipsBackoff(t *testing.T) {
	b := newScriptedBackend().failWith(review.SourceVector, retrieval.NewError(retrieval.FailureInvalidInput, "vector", errors.New("bad query")))
	o := NewOrchestrator(AdaptersFromBackend(b), RetrievalConfig{
		AdapterTimeout: time.Second,
		RetryDelay:     500 * time.Millisecond,
	}, discardLogger())

	start := time.Now()
	got, err := o.Retrieve(context.Background(), compositeItem, testDoc, []review.SourceKind{review.SourceVector})
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Errorf("Retrieve took %v, want no backoff after invalid input", elapsed)
	}
	if review.KindOf(err) != review.KindAdapterInvalidInput {
		t.Fatalf("err kind = %q, want adapter_invalid_input", review.KindOf(err))
	}
	if len(got.Omitted) != 1 || got.Omitted[0].Attempts != 1 {
		t.Errorf("omitted = %+v, want one attempt", got.Omitted)
	}
}

func TestRetrieve_OmitsFailingAdapter(t *testing.T) {
	b := newScriptedBackend().failWith(review.SourceVector, errAlways)
	b.frags[review.SourceGraph] = []review.EvidenceFragment{{ReferenceID: "g-1", Relevance: 0.5, Text: "g"}}

	got, err := testOrchestrator(b).Retrieve(context.Background(), compositeItem, testDoc, allSources)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !got.FallbackApplied {
		t.Error("FallbackApplied = false, want true")
	}
	if len(got.Omitted) != 1 || got.Omitted[0].Adapter != "vector" || got.Omitted[0].Attempts != maxAdapterAttempts {
		t.Errorf("Omitted = %+v, want vector after %d attempts", got.Omitted, maxAdapterAttempts)
	}
	for _, f := range got.Fragments {
		if f.Source == review.SourceVector {
			t.Errorf("omitted adapter contributed fragment %+v", f)
		}
	}
}

func TestRetrieve_AllFailReturnsFirstKind(t *testing.T) {
	b := newScriptedBackend().
		failWith(review.SourceVector, errAlways).
		failWith(review.SourceGraph, errAlways).
		failWith(review.SourceOntology, errAlways)

	got, err := testOrchestrator(b).Retrieve(context.Background(), compositeItem, testDoc, allSources)
	if !errors.Is(err, review.ErrAdapterUnavailable) {
		t.Fatalf("err = %v, want adapter_unavailable", err)
	}
	if got == nil || len(got.Omitted) != 3 {
		t.Fatalf("expected three omissions, got %+v", got)
	}
}

func TestRetrieve_RejectsUnattributedFragments(t *testing.T) {
	b := newScriptedBackend()
	b.frags[review.SourceVector] = []review.EvidenceFragment{{Relevance: 0.9, Text: "no ref"}}

	_, err := testOrchestrator(b).Retrieve(context.Background(), compositeItem, testDoc, []review.SourceKind{review.SourceVector})
	if review.KindOf(err) != review.KindAdapterInvalidResponse {
		t.Fatalf("err kind = %q, want adapter_invalid_response", review.KindOf(err))
	}
}

func TestRetrieve_NoSources(t *testing.T) {
	_, err := testOrchestrator(newScriptedBackend()).Retrieve(context.Background(), compositeItem, testDoc, nil)
	if !errors.Is(err, review.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration", err)
	}
}

func TestRetrieve_VectorFilterAndClamp(t *testing.T) {
	b := newScriptedBackend()
	b.frags[review.SourceVector] = []review.EvidenceFragment{{ReferenceID: "v", Relevance: 3}}

	got, err := testOrchestrator(b).Retrieve(context.Background(), compositeItem, testDoc, []review.SourceKind{review.SourceVector})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if got.Fragments[0].Relevance != 1 {
		t.Errorf("relevance = %v, want clamped to 1", got.Fragments[0].Relevance)
	}
	if b.vectorQs[0].Filter["document_type"] != string(review.DocBasicDesign) {
		t.Errorf("filter = %v, want document_type", b.vectorQs[0].Filter)
	}
}

func TestShrink(t *testing.T) {
	tests := []struct{ n, d, want int }{
		{10, 1, 10},
		{10, 2, 5},
		{1, 2, 1},
		{3, 2, 1},
	}
	for _, tt := range tests {
		if got := shrink(tt.n, tt.d); got != tt.want {
			t.Errorf("shrink(%d, %d) = %d, want %d", tt.n, tt.d, got, tt.want)
		}
	}
}

package application

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/retrieval"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// scriptedBackend answers each source with a scripted sequence of errors
// followed by its fragments.
type scriptedBackend struct {
	mu       sync.Mutex
	failures map[review.SourceKind][]error
	frags    map[review.SourceKind][]review.EvidenceFragment
	coverage *retrieval.CoverageReport
	calls    map[review.SourceKind]int
	vectorQs []retrieval.VectorQuery
	graphQs  []retrieval.GraphQuery
}

func newScriptedBackend() *scriptedBackend {
	return &scriptedBackend{
		failures: map[review.SourceKind][]error{},
		frags:    map[review.SourceKind][]review.EvidenceFragment{},
		coverage: &retrieval.CoverageReport{CoverageRate: 1},
		calls:    map[review.SourceKind]int{},
	}
}

func (b *scriptedBackend) failWith(src review.SourceKind, errs ...error) *scriptedBackend {
	b.failures[src] = append(b.failures[src], errs...)
	return b
}

func (b *scriptedBackend) next(src review.SourceKind) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[src]++
	n := b.calls[src]
	seq := b.failures[src]
	if n <= len(seq) {
		return seq[n-1]
	}
	if len(seq) > 0 && seq[len(seq)-1] == errAlways {
		return retrieval.NewError(retrieval.FailureUnavailable, string(src), errAlways)
	}
	return nil
}

func (b *scriptedBackend) callCount(src review.SourceKind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[src]
}

func (b *scriptedBackend) SimilaritySearch(_ context.Context, q retrieval.VectorQuery) (*retrieval.Response, error) {
	b.mu.Lock()
	b.vectorQs = append(b.vectorQs, q)
	b.mu.Unlock()
	if err := b.next(review.SourceVector); err != nil {
		return nil, err
	}
	return &retrieval.Response{Fragments: b.frags[review.SourceVector]}, nil
}

func (b *scriptedBackend) GraphTraverse(_ context.Context, q retrieval.GraphQuery) (*retrieval.Response, error) {
	b.mu.Lock()
	b.graphQs = append(b.graphQs, q)
	b.mu.Unlock()
	if err := b.next(review.SourceGraph); err != nil {
		return nil, err
	}
	return &retrieval.Response{Fragments: b.frags[review.SourceGraph]}, nil
}

func (b *scriptedBackend) OntologyCoverage(_ context.Context, _ retrieval.OntologyQuery) (*retrieval.CoverageReport, error) {
	if err := b.next(review.SourceOntology); err != nil {
		return nil, err
	}
	return b.coverage, nil
}

// errAlways as the last scripted failure keeps a source failing forever.
var errAlways = retrieval.NewError(retrieval.FailureUnavailable, "scripted", io.ErrUnexpectedEOF)

func timeoutErr(src review.SourceKind) error {
	return retrieval.NewError(retrieval.FailureTimeout, string(src), context.DeadlineExceeded)
}

// funcJudge adapts a function to Judge and records requests.
type funcJudge struct {
	mu   sync.Mutex
	reqs []JudgeRequest
	fn   func(ctx context.Context, req JudgeRequest) (*Judgment, error)
}

func (j *funcJudge) Judge(ctx context.Context, req JudgeRequest) (*Judgment, error) {
	j.mu.Lock()
	j.reqs = append(j.reqs, req)
	j.mu.Unlock()
	if j.fn == nil {
		return &Judgment{Verdict: VerdictPass, Rationale: "ok"}, nil
	}
	return j.fn(ctx, req)
}

func (j *funcJudge) requests() []JudgeRequest {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]JudgeRequest(nil), j.reqs...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOrchestrator(b *scriptedBackend) *Orchestrator {
	return NewOrchestrator(AdaptersFromBackend(b), RetrievalConfig{
		AdapterTimeout: time.Second,
		RetryDelay:     time.Millisecond,
	}, discardLogger())
}

func fixedEngine(b *scriptedBackend, j Judge, opts ...EngineOption) *Engine {
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	base := []EngineOption{
		WithClock(func() time.Time { return clock }),
		WithIDGenerator(func() string { return "rev-1" }),
	}
	return NewEngine(testOrchestrator(b), j, discardLogger(), append(base, opts...)...)
}

var testDoc = review.Document{
	ID:       "doc-1",
	Type:     review.DocBasicDesign,
	Title:    "Resident Portal Basic Design",
	Sections: []string{"1 Overview", "2 Architecture", "3 Security"},
}

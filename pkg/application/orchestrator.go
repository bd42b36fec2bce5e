package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/fortify/timeout"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/retrieval"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// maxAdapterAttempts is one call plus two retries.
const maxAdapterAttempts = 3

// Adapters bundles the retrieval backends. A nil field makes that source
// unavailable.
type Adapters struct {
	Vector   retrieval.VectorSearcher
	Graph    retrieval.GraphTraverser
	Ontology retrieval.OntologyChecker
}

// AdaptersFromBackend uses one backend for all three sources.
func AdaptersFromBackend(b retrieval.Backend) Adapters {
	return Adapters{Vector: b, Graph: b, Ontology: b}
}

// RetrievalConfig tunes adapter calls.
type RetrievalConfig struct {
	AdapterTimeout time.Duration
	RetryDelay     time.Duration
	TopK           int
	Threshold      float64
	MaxDepth       int
	Limit          int
	Collection     string
}

func (c RetrievalConfig) withDefaults() RetrievalConfig {
	if c.AdapterTimeout <= 0 {
		c.AdapterTimeout = 10 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 100 * time.Millisecond
	}
	if c.TopK <= 0 {
		c.TopK = retrieval.DefaultTopK
	}
	if c.Threshold <= 0 {
		c.Threshold = retrieval.DefaultThreshold
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = retrieval.DefaultMaxDepth
	}
	if c.Limit <= 0 {
		c.Limit = retrieval.DefaultLimit
	}
	if c.Collection == "" {
		c.Collection = retrieval.DefaultCollection
	}
	return c
}

// AdapterReport is the outcome of calling one adapter for one item.
type AdapterReport struct {
	Source    review.SourceKind
	Attempts  int
	Fragments int
	Err       error
}

// Retrieval is the merged output of every adapter selected for an item.
type Retrieval struct {
	Fragments       []review.EvidenceFragment
	Reports         []AdapterReport
	Omitted         []review.Omission
	FallbackApplied bool
}

// Retries is the number of attempts beyond the first, across adapters.
func (r *Retrieval) Retries() int {
	n := 0
	for _, rep := range r.Reports {
		if rep.Attempts > 1 {
			n += rep.Attempts - 1
		}
	}
	return n
}

// Attempts maps each adapter to the number of calls made.
func (r *Retrieval) Attempts() map[string]int {
	out := make(map[string]int, len(r.Reports))
	for _, rep := range r.Reports {
		out[string(rep.Source)] = rep.Attempts
	}
	return out
}

// Orchestrator fans one check item out to its adapters.
type Orchestrator struct {
	adapters Adapters
	cfg      RetrievalConfig
	logger   *slog.Logger
}

func NewOrchestrator(adapters Adapters, cfg RetrievalConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{adapters: adapters, cfg: cfg.withDefaults(), logger: logger}
}

// Retrieve calls every selected adapter concurrently. An adapter that keeps
// failing is omitted; only when all of them fail does Retrieve return an
// error, typed with the first failure in selection order.
func (o *Orchestrator) Retrieve(ctx context.Context, item review.CheckItem, doc review.Document, sources []review.SourceKind) (*Retrieval, error) {
	if len(sources) == 0 {
		return nil, review.NewConfigurationError(item.ID, "no retrieval adapters selected")
	}

	type branch struct {
		fragments []review.EvidenceFragment
		attempts  int
		err       error
	}
	results := make([]branch, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			frags, attempts, err := o.callWithRetry(ctx, src, item, doc)
			results[i] = branch{fragments: frags, attempts: attempts, err: err}
			return nil
		})
	}
	_ = g.Wait()

	out := &Retrieval{}
	var firstErr error
	for i, src := range sources {
		res := results[i]
		out.Reports = append(out.Reports, AdapterReport{Source: src, Attempts: res.attempts, Fragments: len(res.fragments), Err: res.err})
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			out.Omitted = append(out.Omitted, review.Omission{
				Adapter:  string(src),
				Kind:     retrieval.Classify(res.err).ReviewKind(),
				Message:  res.err.Error(),
				Attempts: res.attempts,
			})
			continue
		}
		out.Fragments = append(out.Fragments, res.fragments...)
	}

	if len(out.Omitted) == len(sources) {
		return out, &review.Error{
			Kind:        retrieval.Classify(firstErr).ReviewKind(),
			CheckItemID: item.ID,
			Op:          "retrieve",
			Err:         firstErr,
		}
	}
	if len(out.Omitted) > 0 {
		out.FallbackApplied = true
		for _, om := range out.Omitted {
			o.logger.Warn("retrieval adapter omitted",
				"check_item", item.ID, "adapter", om.Adapter, "kind", om.Kind, "attempts", om.Attempts)
		}
	}
	return out, nil
}

// callWithRetry makes up to three attempts. The third attempt halves the
// requested result count and depth. Invalid input is not retried.
func (o *Orchestrator) callWithRetry(ctx context.Context, src review.SourceKind, item review.CheckItem, doc review.Document) ([]review.EvidenceFragment, int, error) {
	attempts := 0
	var lastErr error

	r := retry.New[[]review.EvidenceFragment](retry.Config{
		MaxAttempts:   maxAdapterAttempts,
		InitialDelay:  o.cfg.RetryDelay,
		BackoffPolicy: retry.BackoffExponential,
		IsRetryable:   retryableFailure,
	})
	t := timeout.New[[]review.EvidenceFragment](timeout.Config{
		DefaultTimeout: o.cfg.AdapterTimeout,
	})

	frags, err := r.Do(ctx, func(ctx context.Context) ([]review.EvidenceFragment, error) {
		attempts++
		scope := 1
		if attempts >= maxAdapterAttempts {
			scope = 2
		}
		start := time.Now()
		out, err := t.Execute(ctx, o.cfg.AdapterTimeout, func(ctx context.Context) ([]review.EvidenceFragment, error) {
			return o.call(ctx, src, item, doc, scope)
		})
		if err != nil {
			lastErr = o.typed(src, err, time.Since(start))
			return nil, lastErr
		}
		return out, nil
	})
	if err != nil {
		if lastErr != nil {
			err = lastErr
		}
		if ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
			err = retrieval.NewError(retrieval.FailureTimeout, string(src), fmt.Errorf("%w: %v", ctx.Err(), err))
		}
		return nil, attempts, err
	}
	return frags, attempts, nil
}

func retryableFailure(err error) bool {
	return retrieval.Classify(err).Retryable()
}

// typed attaches a failure kind to untyped adapter errors. A call that ran
// for the whole attempt budget is a timeout whatever the error says.
func (o *Orchestrator) typed(src review.SourceKind, err error, elapsed time.Duration) error {
	var rerr *retrieval.Error
	if errors.As(err, &rerr) {
		return err
	}
	kind := retrieval.Classify(err)
	if elapsed >= o.cfg.AdapterTimeout {
		kind = retrieval.FailureTimeout
	}
	return retrieval.NewError(kind, string(src), err)
}

// call performs one adapter request. divisor shrinks count and depth.
func (o *Orchestrator) call(ctx context.Context, src review.SourceKind, item review.CheckItem, doc review.Document, divisor int) ([]review.EvidenceFragment, error) {
	switch src {
	case review.SourceVector:
		if o.adapters.Vector == nil {
			return nil, retrieval.NewError(retrieval.FailureUnavailable, string(src), errors.New("no vector adapter configured"))
		}
		resp, err := o.adapters.Vector.SimilaritySearch(ctx, retrieval.VectorQuery{
			Query:      item.SearchQuery(),
			TopK:       shrink(o.cfg.TopK, divisor),
			Threshold:  o.cfg.Threshold,
			Collection: o.cfg.Collection,
			Filter:     vectorFilter(doc),
		})
		if err != nil {
			return nil, err
		}
		return normalize(src, resp)

	case review.SourceGraph:
		if o.adapters.Graph == nil {
			return nil, retrieval.NewError(retrieval.FailureUnavailable, string(src), errors.New("no graph adapter configured"))
		}
		resp, err := o.adapters.Graph.GraphTraverse(ctx, retrieval.GraphQuery{
			Entity:    item.GraphEntity(),
			Relation:  item.Relation,
			MaxDepth:  shrink(o.cfg.MaxDepth, divisor),
			Traversal: retrieval.TraversalBFS,
			Limit:     shrink(o.cfg.Limit, divisor),
		})
		if err != nil {
			return nil, err
		}
		return normalize(src, resp)

	case review.SourceOntology:
		if o.adapters.Ontology == nil {
			return nil, retrieval.NewError(retrieval.FailureUnavailable, string(src), errors.New("no ontology adapter configured"))
		}
		domain := item.OntologyDomain()
		report, err := o.adapters.Ontology.OntologyCoverage(ctx, retrieval.OntologyQuery{
			DocumentID:  doc.ID,
			DocumentRef: doc.Ref,
			Domain:      domain,
			CheckType:   retrieval.CheckCoverage,
		})
		if err != nil {
			return nil, err
		}
		if report == nil {
			return nil, retrieval.NewError(retrieval.FailureInvalidResponse, string(src), errors.New("nil coverage report"))
		}
		return report.Fragments(domain), nil
	}
	return nil, retrieval.NewError(retrieval.FailureInvalidInput, string(src), fmt.Errorf("unknown source %q", src))
}

func vectorFilter(doc review.Document) map[string]string {
	if doc.Type == "" {
		return nil
	}
	return map[string]string{"document_type": string(doc.Type)}
}

func shrink(n, divisor int) int {
	if divisor <= 1 {
		return n
	}
	if n /= divisor; n < 1 {
		return 1
	}
	return n
}

// normalize stamps attribution, bounds relevance and rejects fragments
// that cannot be attributed.
func normalize(src review.SourceKind, resp *retrieval.Response) ([]review.EvidenceFragment, error) {
	if resp == nil {
		return nil, retrieval.NewError(retrieval.FailureInvalidResponse, string(src), errors.New("nil response"))
	}
	out := make([]review.EvidenceFragment, 0, len(resp.Fragments))
	for i, f := range resp.Fragments {
		if f.ReferenceID == "" {
			return nil, retrieval.NewError(retrieval.FailureInvalidResponse, string(src), fmt.Errorf("fragment %d has no reference id", i))
		}
		f.Source = src
		f.Relevance = review.Clamp01(f.Relevance)
		out = append(out, f)
	}
	return out, nil
}

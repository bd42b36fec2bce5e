package plugin

import (
	"context"
	"time"

	domainPlugin "github.com/felixgeelhaar/smartreviewer/pkg/domain/plugin"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/retrieval"
)

// Backend adapts a context-free Retriever to retrieval.Backend. A call
// whose context ends first is abandoned and reported as a timeout.
type Backend struct {
	r domainPlugin.Retriever
}

var _ retrieval.Backend = (*Backend)(nil)

func AsBackend(r domainPlugin.Retriever) *Backend {
	return &Backend{r: r}
}

func (b *Backend) SimilaritySearch(ctx context.Context, q retrieval.VectorQuery) (*retrieval.Response, error) {
	return await(ctx, "vector", func() (*retrieval.Response, error) { return b.r.Vector(q) })
}

func (b *Backend) GraphTraverse(ctx context.Context, q retrieval.GraphQuery) (*retrieval.Response, error) {
	return await(ctx, "graph", func() (*retrieval.Response, error) { return b.r.Graph(q) })
}

func (b *Backend) OntologyCoverage(ctx context.Context, q retrieval.OntologyQuery) (*retrieval.CoverageReport, error) {
	return await(ctx, "ontology", func() (*retrieval.CoverageReport, error) { return b.r.Ontology(q) })
}

func await[T any](ctx context.Context, source string, call func() (*T, error)) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, retrieval.NewError(retrieval.FailureTimeout, source, err)
	}
	type result struct {
		v   *T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := call()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		return nil, retrieval.NewError(retrieval.FailureTimeout, source, ctx.Err())
	}
}

// Retriever exposes a retrieval.Backend through the plugin interface,
// bounding every call with timeout. InitFunc, when set, handles Init.
type Retriever struct {
	Backend  retrieval.Backend
	Timeout  time.Duration
	InitFunc func(config map[string]string) error
}

var _ domainPlugin.Retriever = (*Retriever)(nil)

func (r *Retriever) Init(config map[string]string) error {
	if r.InitFunc == nil {
		return nil
	}
	return r.InitFunc(config)
}

func (r *Retriever) Vector(q retrieval.VectorQuery) (*retrieval.Response, error) {
	ctx, cancel := r.context()
	defer cancel()
	return r.Backend.SimilaritySearch(ctx, q)
}

func (r *Retriever) Graph(q retrieval.GraphQuery) (*retrieval.Response, error) {
	ctx, cancel := r.context()
	defer cancel()
	return r.Backend.GraphTraverse(ctx, q)
}

func (r *Retriever) Ontology(q retrieval.OntologyQuery) (*retrieval.CoverageReport, error) {
	ctx, cancel := r.context()
	defer cancel()
	return r.Backend.OntologyCoverage(ctx, q)
}

func (r *Retriever) context() (context.Context, context.CancelFunc) {
	if r.Timeout > 0 {
		return context.WithTimeout(context.Background(), r.Timeout)
	}
	return context.WithCancel(context.Background())
}

// Package retrieval holds the concrete retrieval backends: an in-memory
// fixture, a redis response cache, an MCP client adapter and a gRPC
// client and server.
package retrieval

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/retrieval"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// Fixture is the YAML document served by FixtureBackend. Vector entries
// are keyed by a keyword matched case-insensitively against the query,
// graph entries by start entity, ontology entries by domain. The key "*"
// matches anything.
type Fixture struct {
	Vector   map[string][]review.EvidenceFragment `yaml:"vector"`
	Graph    map[string][]review.EvidenceFragment `yaml:"graph"`
	Ontology map[string]retrieval.CoverageReport  `yaml:"ontology"`
	// Failures scripts failure kinds per source, consumed one per call.
	Failures map[string][]retrieval.FailureKind `yaml:"failures"`
	Latency  time.Duration                      `yaml:"latency"`
}

// LoadFixture reads a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	// #nosec G304 -- fixture path is user-configured
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	return &f, nil
}

// FixtureBackend serves canned evidence. It backs offline runs, the
// fixture plugin and the tests of the transport adapters.
type FixtureBackend struct {
	fixture *Fixture

	mu    sync.Mutex
	calls map[string]int
}

var _ retrieval.Backend = (*FixtureBackend)(nil)

func NewFixtureBackend(f *Fixture) *FixtureBackend {
	if f == nil {
		f = &Fixture{}
	}
	return &FixtureBackend{fixture: f, calls: map[string]int{}}
}

func (b *FixtureBackend) SimilaritySearch(ctx context.Context, q retrieval.VectorQuery) (*retrieval.Response, error) {
	start := time.Now()
	if err := b.enter(ctx, "vector"); err != nil {
		return nil, err
	}
	q = q.WithDefaults()
	if strings.TrimSpace(q.Query) == "" {
		return nil, retrieval.NewError(retrieval.FailureInvalidInput, "vector", fmt.Errorf("empty query"))
	}

	query := strings.ToLower(q.Query)
	var out []review.EvidenceFragment
	for key, frags := range b.fixture.Vector {
		if key != "*" && !strings.Contains(query, strings.ToLower(key)) {
			continue
		}
		for _, f := range frags {
			if f.Relevance >= q.Threshold {
				out = append(out, f)
			}
		}
	}
	out = rank(out)
	if len(out) > q.TopK {
		out = out[:q.TopK]
	}
	return &retrieval.Response{Fragments: out, TookMs: time.Since(start).Milliseconds()}, nil
}

func (b *FixtureBackend) GraphTraverse(ctx context.Context, q retrieval.GraphQuery) (*retrieval.Response, error) {
	start := time.Now()
	if err := b.enter(ctx, "graph"); err != nil {
		return nil, err
	}
	q = q.WithDefaults()
	if q.Entity == "" {
		return nil, retrieval.NewError(retrieval.FailureInvalidInput, "graph", fmt.Errorf("empty start entity"))
	}

	frags, ok := b.fixture.Graph[q.Entity]
	if !ok {
		frags = b.fixture.Graph["*"]
	}
	out := rank(append([]review.EvidenceFragment(nil), frags...))
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return &retrieval.Response{Fragments: out, TookMs: time.Since(start).Milliseconds()}, nil
}

func (b *FixtureBackend) OntologyCoverage(ctx context.Context, q retrieval.OntologyQuery) (*retrieval.CoverageReport, error) {
	start := time.Now()
	if err := b.enter(ctx, "ontology"); err != nil {
		return nil, err
	}
	report, ok := b.fixture.Ontology[q.Domain]
	if !ok {
		report, ok = b.fixture.Ontology["*"]
	}
	if !ok {
		report = retrieval.CoverageReport{CoverageRate: 1}
	}
	report.MissingItems = append([]string(nil), report.MissingItems...)
	report.TookMs = time.Since(start).Milliseconds()
	return &report, nil
}

// Calls returns how many requests a source received.
func (b *FixtureBackend) Calls(source string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[source]
}

// enter counts the call, applies latency and replays scripted failures.
func (b *FixtureBackend) enter(ctx context.Context, source string) error {
	b.mu.Lock()
	b.calls[source]++
	n := b.calls[source]
	b.mu.Unlock()

	if d := b.fixture.Latency; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return retrieval.NewError(retrieval.FailureTimeout, source, ctx.Err())
		}
	}
	if script := b.fixture.Failures[source]; n <= len(script) {
		kind := script[n-1]
		if kind != "" && kind != "ok" {
			return retrieval.NewError(kind, source, fmt.Errorf("scripted failure %d", n))
		}
	}
	return nil
}

func rank(frags []review.EvidenceFragment) []review.EvidenceFragment {
	sort.SliceStable(frags, func(i, j int) bool {
		if frags[i].Relevance != frags[j].Relevance {
			return frags[i].Relevance > frags[j].Relevance
		}
		return frags[i].ReferenceID < frags[j].ReferenceID
	})
	return frags
}

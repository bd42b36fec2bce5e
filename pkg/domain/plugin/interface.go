// Package plugin defines the contract for out-of-process retrieval
// backends served over hashicorp/go-plugin.
package plugin

import (
	"errors"
	"net/rpc"

	"github.com/hashicorp/go-plugin"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/retrieval"
)

// Retriever is the interface that plugins must implement. net/rpc has no
// context, so cancellation is handled on the host side.
type Retriever interface {
	// Init passes the plugin its configuration and checks connectivity.
	Init(config map[string]string) error

	Vector(q retrieval.VectorQuery) (*retrieval.Response, error)
	Graph(q retrieval.GraphQuery) (*retrieval.Response, error)
	Ontology(q retrieval.OntologyQuery) (*retrieval.CoverageReport, error)
}

// RetrieverPlugin is the implementation of plugin.Plugin so we can serve/consume this.
type RetrieverPlugin struct {
	Impl Retriever
}

func (p *RetrieverPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &RetrieverRPCServer{Impl: p.Impl}, nil
}

func (p *RetrieverPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RetrieverRPCClient{Client: c}, nil
}

// Failure carries a typed adapter failure across the rpc boundary, which
// would otherwise flatten it to a string.
type Failure struct {
	Kind    retrieval.FailureKind
	Message string
}

func (f *Failure) err(adapter string) error {
	if f == nil || f.Kind == "" {
		return nil
	}
	return retrieval.NewError(f.Kind, adapter, errors.New(f.Message))
}

func failureOf(err error) *Failure {
	if err == nil {
		return nil
	}
	return &Failure{Kind: retrieval.Classify(err), Message: err.Error()}
}

// ResponseReply is the rpc reply for vector and graph calls.
type ResponseReply struct {
	Response *retrieval.Response
	Failure  *Failure
}

// CoverageReply is the rpc reply for ontology calls.
type CoverageReply struct {
	Report  *retrieval.CoverageReport
	Failure *Failure
}

type RetrieverRPCClient struct{ Client *rpc.Client }

func (g *RetrieverRPCClient) Init(config map[string]string) error {
	var resp interface{}
	return g.Client.Call("Plugin.Init", config, &resp)
}

func (g *RetrieverRPCClient) Vector(q retrieval.VectorQuery) (*retrieval.Response, error) {
	var resp ResponseReply
	if err := g.Client.Call("Plugin.Vector", &q, &resp); err != nil {
		return nil, retrieval.NewError(retrieval.FailureUnavailable, "vector", err)
	}
	if err := resp.Failure.err("vector"); err != nil {
		return nil, err
	}
	return resp.Response, nil
}

func (g *RetrieverRPCClient) Graph(q retrieval.GraphQuery) (*retrieval.Response, error) {
	var resp ResponseReply
	if err := g.Client.Call("Plugin.Graph", &q, &resp); err != nil {
		return nil, retrieval.NewError(retrieval.FailureUnavailable, "graph", err)
	}
	if err := resp.Failure.err("graph"); err != nil {
		return nil, err
	}
	return resp.Response, nil
}

func (g *RetrieverRPCClient) Ontology(q retrieval.OntologyQuery) (*retrieval.CoverageReport, error) {
	var resp CoverageReply
	if err := g.Client.Call("Plugin.Ontology", &q, &resp); err != nil {
		return nil, retrieval.NewError(retrieval.FailureUnavailable, "ontology", err)
	}
	if err := resp.Failure.err("ontology"); err != nil {
		return nil, err
	}
	return resp.Report, nil
}

type RetrieverRPCServer struct{ Impl Retriever }

func (s *RetrieverRPCServer) Init(config map[string]string, resp *interface{}) error {
	return s.Impl.Init(config)
}

func (s *RetrieverRPCServer) Vector(q *retrieval.VectorQuery, resp *ResponseReply) error {
	out, err := s.Impl.Vector(*q)
	*resp = ResponseReply{Response: out, Failure: failureOf(err)}
	return nil
}

func (s *RetrieverRPCServer) Graph(q *retrieval.GraphQuery, resp *ResponseReply) error {
	out, err := s.Impl.Graph(*q)
	*resp = ResponseReply{Response: out, Failure: failureOf(err)}
	return nil
}

func (s *RetrieverRPCServer) Ontology(q *retrieval.OntologyQuery, resp *CoverageReply) error {
	out, err := s.Impl.Ontology(*q)
	*resp = CoverageReply{Report: out, Failure: failureOf(err)}
	return nil
}

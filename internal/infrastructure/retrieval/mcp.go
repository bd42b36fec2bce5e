package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/mcp-go/client"
	"github.com/felixgeelhaar/mcp-go/protocol"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/retrieval"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// Tool names served by the RAG and knowledge MCP servers.
const (
	ToolVectorSearch     = "vector_search"
	ToolTraverseGraph    = "traverse_graph"
	ToolOntologyCoverage = "check_ontology_coverage"
)

// DefaultMCPTimeout bounds a single MCP request.
const DefaultMCPTimeout = 30 * time.Second

// MCPServer describes how to reach one MCP server.
type MCPServer struct {
	Name      string            `yaml:"name"`
	Command   string            `yaml:"command"`
	Args      []string          `yaml:"args"`
	Env       map[string]string `yaml:"env"`
	Transport string            `yaml:"transport"` // stdio (default) or http
	URL       string            `yaml:"url"`
	Enabled   bool              `yaml:"enabled"`
	Timeout   time.Duration     `yaml:"timeout"`
}

// ToolCaller is the part of the mcp-go client the adapter needs.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args any) (*client.ToolResult, error)
}

var _ ToolCaller = (*client.Client)(nil)

// DialMCP starts or connects to server and performs the initialize
// handshake.
func DialMCP(ctx context.Context, server MCPServer) (*client.Client, error) {
	var (
		transport client.Transport
		err       error
	)
	switch server.Transport {
	case "", "stdio":
		if server.Command == "" {
			return nil, fmt.Errorf("mcp server %s: command is required", server.Name)
		}
		name, args := server.Command, server.Args
		if len(server.Env) > 0 {
			name, args = "env", envArgs(server.Env, server.Command, server.Args)
		}
		transport, err = client.NewStdioTransport(name, args...)
		if err != nil {
			return nil, fmt.Errorf("mcp server %s: %w", server.Name, err)
		}
	case "http":
		if server.URL == "" {
			return nil, fmt.Errorf("mcp server %s: url is required", server.Name)
		}
		transport = NewHTTPTransport(server.URL, nil)
	default:
		return nil, fmt.Errorf("mcp server %s: unsupported transport %q", server.Name, server.Transport)
	}

	timeout := server.Timeout
	if timeout <= 0 {
		timeout = DefaultMCPTimeout
	}
	c := client.New(transport, client.WithTimeout(timeout))
	if _, err := c.Initialize(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("mcp server %s: initialize: %w", server.Name, err)
	}
	return c, nil
}

func envArgs(env map[string]string, command string, args []string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(env)+1+len(args))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	out = append(out, command)
	return append(out, args...)
}

// HTTPTransport posts JSON-RPC requests to an MCP server's HTTP endpoint.
type HTTPTransport struct {
	url  string
	http *http.Client
}

var _ client.Transport = (*HTTPTransport)(nil)

func NewHTTPTransport(url string, hc *http.Client) *HTTPTransport {
	if hc == nil {
		hc = &http.Client{}
	}
	return &HTTPTransport{url: url, http: hc}
}

func (t *HTTPTransport) Send(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if req.IsNotification() || len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("mcp http status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var out protocol.Response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func (t *HTTPTransport) Close() error { return nil }

// MCPBackend serves retrieval through the RAG server (vector_search) and
// the knowledge server (traverse_graph, check_ontology_coverage).
type MCPBackend struct {
	rag       ToolCaller
	knowledge ToolCaller
}

var _ retrieval.Backend = (*MCPBackend)(nil)

// NewMCPBackend wires the two servers. knowledge may equal rag when one
// server exposes every tool.
func NewMCPBackend(rag, knowledge ToolCaller) *MCPBackend {
	if knowledge == nil {
		knowledge = rag
	}
	return &MCPBackend{rag: rag, knowledge: knowledge}
}

type toolEnvelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

type vectorPayload struct {
	toolEnvelope
	Results []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Text     string         `json:"text"`
		Metadata map[string]any `json:"metadata"`
	} `json:"results"`
}

type graphPayload struct {
	toolEnvelope
	Nodes []struct {
		ID         string         `json:"id"`
		Labels     []string       `json:"labels"`
		Properties map[string]any `json:"properties"`
	} `json:"nodes"`
}

type coveragePayload struct {
	toolEnvelope
	CoverageRate float64  `json:"coverage_rate"`
	MissingItems []string `json:"missing_items"`
}

func (b *MCPBackend) SimilaritySearch(ctx context.Context, q retrieval.VectorQuery) (*retrieval.Response, error) {
	start := time.Now()
	q = q.WithDefaults()
	if strings.TrimSpace(q.Query) == "" {
		return nil, retrieval.NewError(retrieval.FailureInvalidInput, "vector", fmt.Errorf("empty query"))
	}
	args := map[string]any{
		"query":           q.Query,
		"top_k":           q.TopK,
		"score_threshold": q.Threshold,
		"collection":      q.Collection,
	}
	if len(q.Filter) > 0 {
		args["filters"] = q.Filter
	}

	var p vectorPayload
	if err := callTool(ctx, b.rag, "vector", ToolVectorSearch, args, &p, &p.toolEnvelope); err != nil {
		return nil, err
	}
	frags := make([]review.EvidenceFragment, 0, len(p.Results))
	for _, r := range p.Results {
		if r.ID == "" {
			return nil, retrieval.NewError(retrieval.FailureInvalidResponse, "vector", fmt.Errorf("result without id"))
		}
		frags = append(frags, review.EvidenceFragment{
			Source:      review.SourceVector,
			ReferenceID: r.ID,
			Relevance:   review.Clamp01(r.Score),
			Text:        r.Text,
		})
	}
	return &retrieval.Response{Fragments: frags, TookMs: time.Since(start).Milliseconds()}, nil
}

func (b *MCPBackend) GraphTraverse(ctx context.Context, q retrieval.GraphQuery) (*retrieval.Response, error) {
	start := time.Now()
	q = q.WithDefaults()
	if q.Entity == "" {
		return nil, retrieval.NewError(retrieval.FailureInvalidInput, "graph", fmt.Errorf("empty start entity"))
	}
	args := map[string]any{
		"start_node_id": q.Entity,
		"max_depth":     q.MaxDepth,
		"traversal":     string(q.Traversal),
		"limit":         q.Limit,
	}
	if q.Relation != "" {
		args["relationship_type"] = q.Relation
		args["relationship_types"] = []string{q.Relation}
	}

	var p graphPayload
	if err := callTool(ctx, b.knowledge, "graph", ToolTraverseGraph, args, &p, &p.toolEnvelope); err != nil {
		return nil, err
	}
	frags := make([]review.EvidenceFragment, 0, len(p.Nodes))
	for i, n := range p.Nodes {
		if n.ID == "" {
			return nil, retrieval.NewError(retrieval.FailureInvalidResponse, "graph", fmt.Errorf("node without id"))
		}
		frags = append(frags, review.EvidenceFragment{
			Source:      review.SourceGraph,
			ReferenceID: n.ID,
			Relevance:   nodeRelevance(n.Properties, i),
			Text:        nodeText(n.ID, n.Labels, n.Properties),
		})
		if len(frags) == q.Limit {
			break
		}
	}
	return &retrieval.Response{Fragments: frags, TookMs: time.Since(start).Milliseconds()}, nil
}

func (b *MCPBackend) OntologyCoverage(ctx context.Context, q retrieval.OntologyQuery) (*retrieval.CoverageReport, error) {
	start := time.Now()
	q = q.WithDefaults()
	if q.Domain == "" {
		return nil, retrieval.NewError(retrieval.FailureInvalidInput, "ontology", fmt.Errorf("empty domain"))
	}
	args := map[string]any{
		"document_id": q.DocumentID,
		"domain":      q.Domain,
		"check_type":  string(q.CheckType),
	}
	if q.DocumentRef != "" {
		args["document_ref"] = q.DocumentRef
	}

	var p coveragePayload
	if err := callTool(ctx, b.knowledge, "ontology", ToolOntologyCoverage, args, &p, &p.toolEnvelope); err != nil {
		return nil, err
	}
	if p.CoverageRate < 0 || p.CoverageRate > 1 {
		return nil, retrieval.NewError(retrieval.FailureInvalidResponse, "ontology", fmt.Errorf("coverage rate %v out of range", p.CoverageRate))
	}
	return &retrieval.CoverageReport{
		CoverageRate: p.CoverageRate,
		MissingItems: p.MissingItems,
		TookMs:       time.Since(start).Milliseconds(),
	}, nil
}

// callTool invokes a tool and decodes its first text block into out.
// Transport failures are unavailable (or timeout on a deadline), tool
// errors are unavailable, and undecodable payloads are invalid responses.
func callTool(ctx context.Context, c ToolCaller, source, tool string, args map[string]any, out any, env *toolEnvelope) error {
	res, err := c.CallTool(ctx, tool, args)
	if err != nil {
		if ctx.Err() != nil {
			return retrieval.NewError(retrieval.FailureTimeout, source, err)
		}
		return retrieval.NewError(retrieval.FailureUnavailable, source, fmt.Errorf("call %s: %w", tool, err))
	}
	if res.IsError {
		msg := ""
		if len(res.Content) > 0 {
			msg = res.Content[0].Text
		}
		return retrieval.NewError(toolFailureKind(msg), source, fmt.Errorf("%s: %s", tool, msg))
	}
	if len(res.Content) == 0 {
		return retrieval.NewError(retrieval.FailureInvalidResponse, source, fmt.Errorf("%s returned no content", tool))
	}
	if err := json.Unmarshal([]byte(res.Content[0].Text), out); err != nil {
		return retrieval.NewError(retrieval.FailureInvalidResponse, source, fmt.Errorf("decode %s: %w", tool, err))
	}
	if env.Success != nil && !*env.Success {
		return retrieval.NewError(toolFailureKind(env.Error), source, fmt.Errorf("%s: %s", tool, env.Error))
	}
	return nil
}

func toolFailureKind(msg string) retrieval.FailureKind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "invalid"), strings.Contains(lower, "required"), strings.Contains(lower, "not found"):
		return retrieval.FailureInvalidInput
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "timed out"):
		return retrieval.FailureTimeout
	default:
		return retrieval.FailureUnavailable
	}
}

// nodeRelevance uses a numeric "relevance" or "score" property, otherwise
// decays with discovery order.
func nodeRelevance(props map[string]any, index int) float64 {
	for _, k := range []string{"relevance", "score"} {
		if v, ok := props[k].(float64); ok {
			return review.Clamp01(v)
		}
	}
	return 1 / float64(index+1)
}

func nodeText(id string, labels []string, props map[string]any) string {
	for _, k := range []string{"text", "description", "content", "name"} {
		if s, ok := props[k].(string); ok && s != "" {
			return s
		}
	}
	if len(labels) > 0 {
		return strings.Join(labels, ",") + " " + id
	}
	return id
}

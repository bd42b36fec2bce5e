package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/mcp-go/client"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/evaluation"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// Client is a typed Go client for the SmartReviewer MCP server.
type Client struct {
	mcp      *client.Client
	retryCfg retry.Config
	timeout  time.Duration
	opts     options
}

// NewClient creates a new SDK client wrapping the given MCP transport.
func NewClient(transport client.Transport, opts ...Option) *Client {
	o := buildOptions(opts)
	return &Client{
		mcp:     client.New(transport, client.WithTimeout(o.callTimeout)),
		timeout: o.callTimeout,
		opts:    o,
		retryCfg: retry.Config{
			MaxAttempts:   o.attempts,
			InitialDelay:  o.retryDelay,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
}

// Initialize performs the MCP initialize handshake.
func (c *Client) Initialize(ctx context.Context) (*client.ServerInfo, error) {
	return c.mcp.Initialize(ctx)
}

func (c *Client) Close() error {
	return c.mcp.Close()
}

// call invokes a tool with retry. Tool-level errors are not retried.
func (c *Client) call(ctx context.Context, tool string, args map[string]any) (*client.ToolResult, error) {
	r := retry.New[*client.ToolResult](c.retryCfg)
	result, err := r.Do(ctx, func(ctx context.Context) (*client.ToolResult, error) {
		return c.mcp.CallTool(ctx, tool, args)
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", tool, err)
	}
	if result.IsError {
		msg := ""
		if len(result.Content) > 0 {
			msg = result.Content[0].Text
		}
		return nil, &ToolError{Tool: tool, Message: msg}
	}
	return result, nil
}

// unmarshalText decodes Content[0].Text of a tool result as JSON.
func unmarshalText[T any](result *client.ToolResult) (*T, error) {
	text, err := textResult(result)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return &v, nil
}

func textResult(result *client.ToolResult) (string, error) {
	if len(result.Content) == 0 {
		return "", ErrNoContent
	}
	return result.Content[0].Text, nil
}

// --- Schema ---

// GetSchema reads the smartreviewer://schema resource.
func (c *Client) GetSchema(ctx context.Context) (*SchemaInfo, error) {
	rc, err := c.mcp.ReadResource(ctx, SchemaURI)
	if err != nil {
		return nil, fmt.Errorf("read schema resource: %w", err)
	}
	var info SchemaInfo
	if err := json.Unmarshal([]byte(rc.Text), &info); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	return &info, nil
}

// Compatible returns nil when the server schema major version matches
// SupportedSchemaMajor.
func (c *Client) Compatible(ctx context.Context) error {
	info, err := c.GetSchema(ctx)
	if err != nil {
		return fmt.Errorf("check compatibility: %w", err)
	}
	serverMajor := majorVersion(info.SchemaVersion)
	if serverMajor != SupportedSchemaMajor {
		return fmt.Errorf("%w: server %s, client supports %s.x",
			ErrIncompatibleSchema, info.SchemaVersion, SupportedSchemaMajor)
	}
	return nil
}

func majorVersion(v string) string {
	for i, ch := range v {
		if ch == '.' {
			return v[:i]
		}
	}
	return v
}

// --- Reviews ---

// RunReview reviews a document and returns the stored result.
func (c *Client) RunReview(ctx context.Context, req ReviewRequest) (*review.ReviewResult, error) {
	if req.DocumentPath == "" && req.Document == nil {
		return nil, fmt.Errorf("smartreviewer: document or document path is required")
	}
	res, err := c.call(ctx, "run_review", c.opts.withDefaults(req).args())
	if err != nil {
		return nil, err
	}
	return unmarshalText[review.ReviewResult](res)
}

// ListCheckItems returns the catalogue, optionally for one document type.
func (c *Client) ListCheckItems(ctx context.Context, docType review.DocumentType) ([]review.CheckItem, error) {
	args := map[string]any{}
	if docType != "" {
		args["document_type"] = string(docType)
	}
	res, err := c.call(ctx, "list_check_items", args)
	if err != nil {
		return nil, err
	}
	items, err := unmarshalText[[]review.CheckItem](res)
	if err != nil {
		return nil, err
	}
	return *items, nil
}

func (c *Client) GetResult(ctx context.Context, id string) (*review.ReviewResult, error) {
	res, err := c.call(ctx, "get_result", map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	return unmarshalText[review.ReviewResult](res)
}

// ListResults returns stored review summaries, newest first.
func (c *Client) ListResults(ctx context.Context) ([]domain.ResultSummary, error) {
	res, err := c.call(ctx, "list_results", nil)
	if err != nil {
		return nil, err
	}
	list, err := unmarshalText[[]domain.ResultSummary](res)
	if err != nil {
		return nil, err
	}
	return *list, nil
}

// --- Evaluations ---

func (c *Client) RunEvaluation(ctx context.Context, req EvaluationRequest) (*evaluation.Result, error) {
	if req.DatasetPath == "" {
		return nil, fmt.Errorf("smartreviewer: dataset path is required")
	}
	res, err := c.call(ctx, "run_evaluation", req.args())
	if err != nil {
		return nil, err
	}
	return unmarshalText[evaluation.Result](res)
}

func (c *Client) GetEvaluation(ctx context.Context, id string) (*evaluation.Result, error) {
	res, err := c.call(ctx, "get_evaluation", map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	return unmarshalText[evaluation.Result](res)
}

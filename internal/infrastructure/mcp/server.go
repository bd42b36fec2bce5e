package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/config"
	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/smartreviewer/pkg/application"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

type Server struct {
	mcpServer *mcp.Server
	services  *wiring.AppServices
	owned     bool
}

var (
	Version     = "dev"
	BuildCommit = "unknown"
	BuildDate   = "unknown"
)

// mcpErr returns a user-friendly error for MCP clients.
// Internal details are omitted, only the friendly message is returned.
func mcpErr(friendly string) error {
	return fmt.Errorf("%s", friendly)
}

// NewServer wires the workspace at root and registers the tools. The
// returned server owns the services and releases them on Close.
func NewServer(ctx context.Context, root string, logger *slog.Logger) (*Server, error) {
	services, err := wiring.BuildAppServices(ctx, root, logger)
	if err != nil {
		return nil, fmt.Errorf("build services: %w", err)
	}
	s := NewServerWith(services)
	s.owned = true
	return s, nil
}

// NewServerWith exposes already wired services.
func NewServerWith(services *wiring.AppServices) *Server {
	info := mcp.ServerInfo{
		Name:    "smartreviewer",
		Version: Version,
	}
	s := &Server{
		mcpServer: mcp.NewServer(info,
			mcp.WithTitle("SmartReviewer MCP Server"),
			mcp.WithDescription("SmartReviewer reviews design and test documents against check items using hybrid retrieval and LLM judgment."),
			mcp.WithWebsiteURL("https://github.com/felixgeelhaar/smartreviewer"),
			mcp.WithBuildInfo(BuildCommit, BuildDate),
			mcp.WithInstructions("List check items, run a review for a document, then fetch stored results. Use run_evaluation with a labelled dataset to measure accuracy against a baseline."),
		),
		services: services,
	}
	s.registerTools()
	s.registerSchemaResource()
	s.registerCatalogueResource()
	return s
}

// Close releases the services when the server built them.
func (s *Server) Close() error {
	if !s.owned {
		return nil
	}
	return s.services.Close()
}

type RunReviewArgs struct {
	DocumentPath string           `json:"document_path,omitempty" jsonschema:"description=Path to a markdown or yaml/json document relative to the workspace root"`
	Document     *review.Document `json:"document,omitempty" jsonschema:"description=Inline document with id and type and sections (used when document_path is empty)"`
	DocumentType string           `json:"document_type,omitempty" jsonschema:"description=Document type (basic_design or test_plan)"`
	CheckItems   []string         `json:"check_items,omitempty" jsonschema:"description=Check item ids to run; empty runs every item for the document type"`
	Parallelism  FlexInt          `json:"parallelism,omitempty" jsonschema:"description=Maximum check items evaluated concurrently"`
	TimeoutSec   FlexInt          `json:"timeout_sec,omitempty" jsonschema:"description=Whole-run timeout in seconds"`
}

type RunEvaluationArgs struct {
	DatasetPath       string   `json:"dataset_path" jsonschema:"description=Path to a labelled dataset (yaml or json) relative to the workspace root"`
	BaselineID        string   `json:"baseline_id,omitempty" jsonschema:"description=Stored baseline to compare against"`
	UseLatestBaseline FlexBool `json:"use_latest_baseline,omitempty" jsonschema:"description=Compare against the most recent stored baseline"`
	SaveBaseline      FlexBool `json:"save_baseline,omitempty" jsonschema:"description=Store this evaluation as a new baseline"`
	RepeatCount       FlexInt  `json:"repeat_count,omitempty" jsonschema:"description=Number of passes used to measure consistency"`
	Tolerance         *float64 `json:"tolerance,omitempty" jsonschema:"description=Allowed metric drop before a regression is reported"`
}

type ListCheckItemsArgs struct {
	DocumentType string `json:"document_type,omitempty" jsonschema:"description=Only items for this document type (basic_design or test_plan)"`
}

type IDArgs struct {
	ID string `json:"id" jsonschema:"description=Identifier of the stored result"`
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("run_review").
		Description("Review a document against check items and store the result").
		Handler(s.handleRunReview)

	s.mcpServer.Tool("run_evaluation").
		Description("Run a labelled dataset through the reviewer and report precision, recall, F1 and baseline regressions").
		Handler(s.handleRunEvaluation)

	s.mcpServer.Tool("list_check_items").
		Description("List the check items of the workspace catalogue").
		Handler(s.handleListCheckItems)

	s.mcpServer.Tool("get_result").
		Description("Retrieve a stored review result by id").
		Handler(s.handleGetResult)

	s.mcpServer.Tool("list_results").
		Description("List stored review results, newest first").
		Handler(s.handleListResults)

	s.mcpServer.Tool("get_evaluation").
		Description("Retrieve a stored evaluation by id").
		Handler(s.handleGetEvaluation)
}

func (s *Server) handleRunReview(ctx context.Context, args RunReviewArgs) (any, error) {
	doc, err := s.resolveDocument(args)
	if err != nil {
		return nil, err
	}

	opts := s.services.ReviewOptions()
	if args.Parallelism > 0 {
		opts.Parallelism = int(args.Parallelism)
	}
	if args.TimeoutSec > 0 {
		opts.RunTimeout = time.Duration(args.TimeoutSec) * time.Second
	}

	res, err := s.services.Reviews.Review(ctx, doc, args.CheckItems, opts)
	if err != nil {
		if errors.Is(err, review.ErrConfiguration) {
			return nil, mcpErr(err.Error())
		}
		if res == nil {
			return nil, mcpErr("Review failed. Check the retrieval backend and AI provider configuration.")
		}
		s.services.Logger.Warn("review finished with error", "review", res.ID, "error", err)
	}
	return res, nil
}

func (s *Server) resolveDocument(args RunReviewArgs) (review.Document, error) {
	docType := review.DocumentType(args.DocumentType)
	if args.DocumentPath != "" {
		doc, err := config.LoadDocument(s.workspacePath(args.DocumentPath), docType)
		if err != nil {
			return review.Document{}, mcpErr(fmt.Sprintf("Failed to load document '%s'. Use a markdown, yaml or json file.", args.DocumentPath))
		}
		return doc, nil
	}
	if args.Document == nil {
		return review.Document{}, mcpErr("Provide either document_path or document.")
	}
	doc := *args.Document
	if docType != "" {
		doc.Type = docType
	}
	if doc.ID == "" || doc.Type == "" {
		return review.Document{}, mcpErr("Inline documents need an id and a type.")
	}
	return doc, nil
}

func (s *Server) handleRunEvaluation(ctx context.Context, args RunEvaluationArgs) (any, error) {
	if strings.TrimSpace(args.DatasetPath) == "" {
		return nil, mcpErr("dataset_path is required.")
	}
	cases, err := config.LoadDataset(s.workspacePath(args.DatasetPath), s.services.Catalogue)
	if err != nil {
		return nil, mcpErr(fmt.Sprintf("Failed to load dataset '%s': %v", args.DatasetPath, err))
	}

	opts := s.services.EvalOptions()
	if args.RepeatCount > 0 {
		opts.RepeatCount = int(args.RepeatCount)
	}
	if args.Tolerance != nil {
		opts.Tolerance = *args.Tolerance
	}

	res, err := s.services.Reviews.Evaluate(ctx, cases, application.EvaluateRequest{
		BaselineID:        args.BaselineID,
		UseLatestBaseline: bool(args.UseLatestBaseline),
		SaveBaseline:      bool(args.SaveBaseline),
		Options:           opts,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, mcpErr(fmt.Sprintf("Baseline '%s' not found.", args.BaselineID))
		}
		if res == nil {
			return nil, mcpErr("Evaluation failed. Check the dataset and provider configuration.")
		}
		s.services.Logger.Warn("evaluation not fully stored", "evaluation", res.ID, "error", err)
	}
	return res, nil
}

func (s *Server) handleListCheckItems(ctx context.Context, args ListCheckItemsArgs) (any, error) {
	items := s.services.Catalogue.Filter(review.DocumentType(args.DocumentType), nil)
	if items == nil {
		items = []review.CheckItem{}
	}
	return items, nil
}

func (s *Server) handleGetResult(ctx context.Context, args IDArgs) (any, error) {
	res, err := s.services.Reviews.Result(ctx, args.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, mcpErr(fmt.Sprintf("Review result '%s' not found.", args.ID))
		}
		return nil, mcpErr("Failed to load review result.")
	}
	return res, nil
}

func (s *Server) handleListResults(ctx context.Context, args struct{}) (any, error) {
	list, err := s.services.Reviews.Results(ctx)
	if err != nil {
		return nil, mcpErr("Failed to list review results.")
	}
	if list == nil {
		list = []domain.ResultSummary{}
	}
	return list, nil
}

func (s *Server) handleGetEvaluation(ctx context.Context, args IDArgs) (any, error) {
	res, err := s.services.Reviews.Evaluation(ctx, args.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, mcpErr(fmt.Sprintf("Evaluation '%s' not found.", args.ID))
		}
		return nil, mcpErr("Failed to load evaluation.")
	}
	return res, nil
}

func (s *Server) workspacePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.services.Root, p)
}

// FlexBool accepts both boolean and string ("true"/"false") JSON values.
// MCP clients sometimes send string values for boolean fields.
type FlexBool bool

func (fb *FlexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*fb = FlexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*fb = FlexBool(s == "true" || s == "1" || s == "yes")
		return nil
	}
	return fmt.Errorf("expected boolean or string, got %s", string(data))
}

// FlexInt accepts both integer and string JSON values.
type FlexInt int

func (fi *FlexInt) UnmarshalJSON(data []byte) error {
	var i int
	if err := json.Unmarshal(data, &i); err == nil {
		*fi = FlexInt(i)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		var n int
		if _, err := fmt.Sscanf(s, "%d", &n); err == nil {
			*fi = FlexInt(n)
			return nil
		}
	}
	return fmt.Errorf("expected integer or string, got %s", string(data))
}

func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr, mcp.WithDefaultCORS())
}

func (s *Server) ServeWebSocket(ctx context.Context, addr string) error {
	return mcp.ServeWebSocket(ctx, s.mcpServer, addr)
}

// Serve dispatches on a transport name: stdio, http or ws.
func (s *Server) Serve(ctx context.Context, transport, addr string) error {
	switch transport {
	case "", "stdio":
		return s.ServeStdio(ctx)
	case "http":
		return s.ServeHTTP(ctx, addr)
	case "ws", "websocket":
		return s.ServeWebSocket(ctx, addr)
	default:
		return fmt.Errorf("unsupported transport %q (use stdio, http or ws)", transport)
	}
}

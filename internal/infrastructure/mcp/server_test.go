package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/retrieval"
	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/smartreviewer/pkg/ai"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/evaluation"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	t.Setenv("SMARTREVIEWER_AI_PROVIDER", "")
	t.Setenv("SMARTREVIEWER_AI_MODEL", "")
	root := t.TempDir()
	services, err := wiring.BuildAppServicesWith(context.Background(), root,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		wiring.Overrides{
			Provider: &ai.MockProvider{Model: "offline"},
			Backend:  retrieval.NewFixtureBackend(nil),
		})
	if err != nil {
		t.Fatalf("build services: %v", err)
	}
	t.Cleanup(func() { _ = services.Close() })
	return NewServerWith(services), root
}

func writeWorkspaceFile(t *testing.T, root, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestServer_RunReviewFromPath(t *testing.T) {
	s, root := newTestServer(t)
	writeWorkspaceFile(t, root, "design.md", "# Payments\n\n## Overview\n\ntext\n\n## Security\n")

	out, err := s.handleRunReview(context.Background(), RunReviewArgs{
		DocumentPath: "design.md",
		DocumentType: "basic_design",
		CheckItems:   []string{"BD-001", "BD-002"},
		Parallelism:  2,
	})
	if err != nil {
		t.Fatalf("run_review: %v", err)
	}
	res := out.(*review.ReviewResult)
	if res.DocumentID != "design" || len(res.Items) != 2 {
		t.Fatalf("result = doc %s items %d", res.DocumentID, len(res.Items))
	}

	got, err := s.handleGetResult(context.Background(), IDArgs{ID: res.ID})
	if err != nil || got.(*review.ReviewResult).ID != res.ID {
		t.Fatalf("get_result = %v, %v", got, err)
	}

	list, err := s.handleListResults(context.Background(), struct{}{})
	if err != nil {
		t.Fatal(err)
	}
	if summaries := list.([]domain.ResultSummary); len(summaries) != 1 || summaries[0].ID != res.ID {
		t.Errorf("list_results = %+v", summaries)
	}
}

func TestServer_RunReviewInline(t *testing.T) {
	s, _ := newTestServer(t)
	out, err := s.handleRunReview(context.Background(), RunReviewArgs{
		Document:     &review.Document{ID: "tp-1", Sections: []string{"1 Scope"}},
		DocumentType: "test_plan",
	})
	if err != nil {
		t.Fatalf("run_review: %v", err)
	}
	res := out.(*review.ReviewResult)
	if len(res.Items) != 10 {
		t.Errorf("items = %d, want every test_plan item", len(res.Items))
	}
}

func TestServer_RunReviewErrors(t *testing.T) {
	s, _ := newTestServer(t)
	tests := map[string]struct {
		args RunReviewArgs
		want string
	}{
		"no document":   {RunReviewArgs{}, "document_path or document"},
		"missing file":  {RunReviewArgs{DocumentPath: "nope.md"}, "Failed to load document"},
		"inline no id":  {RunReviewArgs{Document: &review.Document{Type: review.DocTestPlan}}, "id and a type"},
		"unknown check": {RunReviewArgs{Document: &review.Document{ID: "d", Type: review.DocBasicDesign}, CheckItems: []string{"ZZ-1"}}, "ZZ-1"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := s.handleRunReview(context.Background(), tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestServer_RunEvaluation(t *testing.T) {
	s, root := newTestServer(t)
	writeWorkspaceFile(t, root, "ds.yaml", `cases:
  - id: c1
    document: {id: d1, type: basic_design, sections: ["1 Overview"]}
    check_item_ids: [BD-001]
    expected: []
`)

	out, err := s.handleRunEvaluation(context.Background(), RunEvaluationArgs{DatasetPath: "ds.yaml", SaveBaseline: true})
	if err != nil {
		t.Fatalf("run_evaluation: %v", err)
	}
	first := out.(*evaluation.Result)
	if len(first.Cases) != 1 {
		t.Fatalf("cases = %d", len(first.Cases))
	}

	out, err = s.handleRunEvaluation(context.Background(), RunEvaluationArgs{DatasetPath: "ds.yaml", UseLatestBaseline: true})
	if err != nil {
		t.Fatal(err)
	}
	second := out.(*evaluation.Result)
	if second.Baseline == nil || second.Baseline.BaselineID != first.ID || second.Baseline.Regression {
		t.Errorf("baseline comparison = %+v", second.Baseline)
	}

	stored, err := s.handleGetEvaluation(context.Background(), IDArgs{ID: second.ID})
	if err != nil || stored.(*evaluation.Result).ID != second.ID {
		t.Errorf("get_evaluation = %v, %v", stored, err)
	}

	if _, err := s.handleRunEvaluation(context.Background(), RunEvaluationArgs{DatasetPath: "ds.yaml", BaselineID: "gone"}); err == nil {
		t.Error("expected missing baseline error")
	}
	if _, err := s.handleRunEvaluation(context.Background(), RunEvaluationArgs{}); err == nil {
		t.Error("expected dataset_path error")
	}
}

func TestServer_ListCheckItems(t *testing.T) {
	s, _ := newTestServer(t)
	out, _ := s.handleListCheckItems(context.Background(), ListCheckItemsArgs{DocumentType: "basic_design"})
	items := out.([]review.CheckItem)
	if len(items) != 10 || !strings.HasPrefix(items[0].ID, "BD-") {
		t.Errorf("items = %d first %s", len(items), items[0].ID)
	}
	out, _ = s.handleListCheckItems(context.Background(), ListCheckItemsArgs{})
	if n := len(out.([]review.CheckItem)); n != 20 {
		t.Errorf("all items = %d", n)
	}
}

func TestServer_NotFound(t *testing.T) {
	s, _ := newTestServer(t)
	if _, err := s.handleGetResult(context.Background(), IDArgs{ID: "missing"}); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("get_result err = %v", err)
	}
	if _, err := s.handleGetEvaluation(context.Background(), IDArgs{ID: "missing"}); err == nil {
		t.Error("expected get_evaluation error")
	}
}

func TestServer_ToolsRegistered(t *testing.T) {
	s, _ := newTestServer(t)
	want := map[string]bool{"run_review": false, "run_evaluation": false, "list_check_items": false, "get_result": false, "list_results": false, "get_evaluation": false}
	for _, tool := range s.mcpServer.Tools() {
		if _, ok := want[tool.Name]; ok {
			want[tool.Name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("tool %s not registered", name)
		}
	}
}

func TestServer_UnsupportedTransport(t *testing.T) {
	s, _ := newTestServer(t)
	if err := s.Serve(context.Background(), "sse", ""); err == nil {
		t.Fatal("expected error for unknown transport")
	}
}

func TestFlexValues(t *testing.T) {
	var args RunEvaluationArgs
	if err := json.Unmarshal([]byte(`{"dataset_path":"x","save_baseline":"true","repeat_count":"3"}`), &args); err != nil {
		t.Fatal(err)
	}
	if !bool(args.SaveBaseline) || args.RepeatCount != 3 {
		t.Errorf("args = %+v", args)
	}
	if err := json.Unmarshal([]byte(`{"repeat_count":{}}`), &args); err == nil {
		t.Error("expected error for object repeat_count")
	}
}

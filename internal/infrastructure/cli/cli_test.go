package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/retrieval"
	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/smartreviewer/pkg/ai"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/evaluation"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// newWorkspace points the CLI at a temp dir wired to an offline provider.
func newWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	old := buildServices
	buildServices = func(ctx context.Context, root string, logger *slog.Logger) (*wiring.AppServices, error) {
		return wiring.BuildAppServicesWith(ctx, root, logger, wiring.Overrides{
			Provider: &ai.MockProvider{Model: "offline"},
			Backend:  retrieval.NewFixtureBackend(nil),
		})
	}
	t.Cleanup(func() { buildServices = old })
	return root
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func run(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	resetFlags(RootCmd)
	var out, errOut bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&errOut)
	RootCmd.SetArgs(append([]string{"--project", root}, args...))
	err := RootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReviewRun_JSON(t *testing.T) {
	root := newWorkspace(t)
	writeFile(t, root, "design.md", "# Payments\n## Overview\n## Security\n")

	out, err := run(t, root, "review", "run", "design.md", "--type", "basic_design", "--checks", "BD-001,BD-002", "--json")
	if err != nil {
		t.Fatalf("review run: %v", err)
	}
	var res review.ReviewResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if res.DocumentID != "design" || len(res.Items) != 2 || res.Status != review.StatusPass {
		t.Errorf("result = %s %d %s", res.DocumentID, len(res.Items), res.Status)
	}

	out, err = run(t, root, "results", "list", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var list []domain.ResultSummary
	if err := json.Unmarshal([]byte(out), &list); err != nil || len(list) != 1 || list[0].ID != res.ID {
		t.Errorf("results list = %s (%v)", out, err)
	}

	out, err = run(t, root, "results", "show", res.ID)
	if err != nil || !strings.Contains(out, "BD-001") {
		t.Errorf("results show = %q, %v", out, err)
	}

	out, err = run(t, root, "history", "--subject", res.ID)
	if err != nil || !strings.Contains(out, "review.completed") {
		t.Errorf("history = %q, %v", out, err)
	}
	if out, err := run(t, root, "history", "verify"); err != nil || !strings.Contains(out, "intact") {
		t.Errorf("history verify = %q, %v", out, err)
	}
}

func TestReviewRun_Summary(t *testing.T) {
	root := newWorkspace(t)
	writeFile(t, root, "plan.md", "# Plan\n## Scope\n")

	out, err := run(t, root, "review", "run", "plan.md", "-t", "test_plan", "-q")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Review plan", "Checks: 10 run", "TP-010"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestReviewRun_Errors(t *testing.T) {
	root := newWorkspace(t)
	writeFile(t, root, "design.md", "# Design\n")

	_, err := run(t, root, "review", "run", "design.md")
	var cliErr *CLIError
	if !errors.As(err, &cliErr) || !strings.Contains(cliErr.Hint, "--type") {
		t.Errorf("missing type err = %v", err)
	}

	_, err = run(t, root, "review", "run", "design.md", "--type", "basic_design", "--checks", "NOPE-1")
	if mapped := MapError(err); !errors.As(mapped, &cliErr) || cliErr.ExitCode != ExitConfig {
		t.Errorf("unknown check err = %v", mapped)
	}

	if _, err := run(t, root, "review", "run", "missing.md", "--type", "basic_design"); err == nil {
		t.Error("expected error for a missing document")
	}
}

func TestReviewChecks(t *testing.T) {
	root := newWorkspace(t)
	out, err := run(t, root, "review", "checks", "--type", "basic_design", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var items []review.CheckItem
	if err := json.Unmarshal([]byte(out), &items); err != nil || len(items) != 10 {
		t.Errorf("checks = %d (%v)", len(items), err)
	}
}

func TestEvaluate_BaselineFlow(t *testing.T) {
	root := newWorkspace(t)
	writeFile(t, root, "ds.yaml", `cases:
  - id: c1
    document: {id: d1, type: basic_design, sections: ["1 Overview"]}
    check_item_ids: [BD-001, BD-002]
    expected: []
`)

	out, err := run(t, root, "evaluate", "ds.yaml", "--save-baseline", "--json")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	var first evaluation.Result
	if err := json.Unmarshal([]byte(out), &first); err != nil {
		t.Fatal(err)
	}
	if first.Counts.TN != 2 {
		t.Errorf("counts = %+v, want two true negatives", first.Counts)
	}

	out, err = run(t, root, "evaluate", "ds.yaml", "--latest-baseline", "--fail-on-regression")
	if err != nil {
		t.Fatalf("second evaluate: %v", err)
	}
	if !strings.Contains(out, "no regression") {
		t.Errorf("expected baseline comparison:\n%s", out)
	}

	if _, err := run(t, root, "results", "evaluation", first.ID); err != nil {
		t.Errorf("results evaluation: %v", err)
	}

	_, err = run(t, root, "evaluate", "ds.yaml", "--baseline", "no-such-baseline")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown baseline err = %v", err)
	}
}

func TestEvaluate_RegressionAgainstFile(t *testing.T) {
	root := newWorkspace(t)
	writeFile(t, root, "ds.yaml", `cases:
  - id: c1
    document: {id: d1, type: basic_design, sections: ["1 Overview"]}
    check_item_ids: [BD-001]
    expected:
      - {check_item_id: BD-001, location: "1 Overview"}
`)
	writeFile(t, root, "baseline.json", `{"id":"golden","metrics":{"precision":0.9,"recall":0.9,"f1":0.9,"accuracy":0.9}}`)

	out, err := run(t, root, "evaluate", "ds.yaml", "--baseline", "baseline.json", "--fail-on-regression")
	if !errors.Is(err, ErrRegression) {
		t.Fatalf("err = %v, want regression", err)
	}
	if !strings.Contains(out, "REGRESSION") {
		t.Errorf("output should flag the regression:\n%s", out)
	}
	var cliErr *CLIError
	if mapped := MapError(err); !errors.As(mapped, &cliErr) || cliErr.ExitCode != ExitRegression {
		t.Errorf("mapped = %v", mapped)
	}
}

func TestResultsShow_NotFound(t *testing.T) {
	root := newWorkspace(t)
	_, err := run(t, root, "results", "show", "nope")
	var cliErr *CLIError
	if mapped := MapError(err); !errors.As(mapped, &cliErr) || !strings.Contains(cliErr.Hint, "results list") {
		t.Errorf("mapped = %v", mapped)
	}
}

func TestInit(t *testing.T) {
	root := newWorkspace(t)
	out, err := run(t, root, "init", "--provider", "mock", "--model", "m")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "review.yaml") || !strings.Contains(out, "checks.yaml") {
		t.Errorf("init output = %s", out)
	}
	if _, err := os.Stat(filepath.Join(root, ".smartreviewer", "checks.yaml")); err != nil {
		t.Error(err)
	}

	out, err = run(t, root, "init")
	if err != nil || strings.Contains(out, "Wrote") {
		t.Errorf("second init = %q, %v", out, err)
	}
}

func TestWebhookCommands(t *testing.T) {
	root := newWorkspace(t)
	out, err := run(t, root, "webhook", "dead-letters")
	if err != nil || !strings.Contains(out, "No dead letters") {
		t.Errorf("dead-letters = %q, %v", out, err)
	}
	out, err = run(t, root, "webhook", "replay")
	if err != nil || !strings.Contains(out, "Delivered 0") {
		t.Errorf("replay = %q, %v", out, err)
	}
}

func TestPublish_Validation(t *testing.T) {
	root := newWorkspace(t)
	_, err := run(t, root, "publish", "r1", "--repo", "acme", "--pr", "1")
	var cliErr *CLIError
	if !errors.As(err, &cliErr) || cliErr.Message != "invalid pull request" {
		t.Errorf("bad repo err = %v", err)
	}
}

func TestPluginContract_BadConfig(t *testing.T) {
	root := newWorkspace(t)
	if _, err := run(t, root, "plugin", "contract", "/bin/true", "--config", "novalue"); err == nil {
		t.Error("expected key=value error")
	}
}

func TestVersion(t *testing.T) {
	root := newWorkspace(t)
	out, err := run(t, root, "version")
	if err != nil || !strings.HasPrefix(out, "smartreviewer dev") {
		t.Errorf("version = %q, %v", out, err)
	}
}

func TestServeMCP_OpenAPI(t *testing.T) {
	root := newWorkspace(t)
	out, err := run(t, root, "serve", "mcp", "--openapi")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"openapi": "3.0.3"`) || !strings.Contains(out, "/tools/run_review") {
		t.Errorf("openapi = %s", out)
	}
}

func TestDashboard_Skip(t *testing.T) {
	root := newWorkspace(t)
	t.Setenv("SMARTREVIEWER_SKIP_DASHBOARD_RUN", "true")
	if _, err := run(t, root, "dashboard"); err != nil {
		t.Errorf("dashboard: %v", err)
	}
}

func TestProjectPathMustExist(t *testing.T) {
	_ = newWorkspace(t)
	if _, err := run(t, filepath.Join(t.TempDir(), "missing"), "review", "checks"); err == nil {
		t.Error("expected error for a missing project path")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"error": slog.LevelError,
		"":      slog.LevelWarn,
		"bogus": slog.LevelWarn,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/evaluation"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	passStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func styleStatus(s string) string {
	switch s {
	case string(review.StatusPass):
		return passStyle.Render(s)
	case string(review.StatusWarning), string(review.ItemSkipped):
		return warnStyle.Render(s)
	case string(review.StatusFail), string(review.ItemError):
		return failStyle.Render(s)
	default:
		return s
	}
}

func styleSeverity(s review.Severity) string {
	switch s {
	case review.SeverityCritical, review.SeverityMajor:
		return failStyle.Render(string(s))
	case review.SeverityMinor:
		return warnStyle.Render(string(s))
	default:
		return dimStyle.Render(string(s))
	}
}

func renderResult(w io.Writer, res *review.ReviewResult) {
	fmt.Fprintf(w, "%s %s  %s\n", titleStyle.Render("Review"), res.DocumentID, styleStatus(string(res.Status)))
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("id %s, state %s, %s", res.ID, res.RunState, res.Elapsed.Round(time.Millisecond))))

	m := res.Metadata
	fmt.Fprintf(w, "\nChecks: %d run, %d passed, %d warning, %d failed, %d errored, %d skipped (%d LLM calls)\n",
		m.ChecksExecuted, m.ChecksPassed, m.ChecksWarning, m.ChecksFailed, m.ChecksErrored, m.ChecksSkipped, m.LLMCalls)

	fmt.Fprintln(w)
	for _, it := range res.Items {
		line := fmt.Sprintf("  %-8s %-8s", it.CheckItemID, styleStatus(string(it.Status)))
		if it.Strategy != "" {
			line += " " + dimStyle.Render(string(it.Strategy))
		}
		if it.FallbackApplied {
			line += dimStyle.Render(" (fallback)")
		}
		if it.Error != "" {
			line += " " + failStyle.Render(it.Error)
		}
		fmt.Fprintln(w, line)
		for _, om := range it.Omitted {
			fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("           omitted %s: %s", om.Adapter, om.Kind)))
		}
	}

	if len(res.Findings) > 0 {
		fmt.Fprintf(w, "\n%s\n", titleStyle.Render("Findings"))
		for _, f := range res.Findings {
			loc := ""
			if f.Location != "" {
				loc = dimStyle.Render(" @ " + f.Location)
			}
			fmt.Fprintf(w, "  [%s] %s %s%s\n", styleSeverity(f.Severity), f.CheckItemID, f.Message, loc)
		}
	}
	if len(res.Suggestions) > 0 {
		fmt.Fprintf(w, "\n%s\n", titleStyle.Render("Suggestions"))
		for _, s := range res.Suggestions {
			fmt.Fprintf(w, "  P%d %s: %s\n", s.Priority, s.FindingID, s.Content)
		}
	}
}

func renderEvaluation(w io.Writer, res *evaluation.Result) {
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render("Evaluation"), res.ID)
	c, m := res.Counts, res.Metrics
	fmt.Fprintf(w, "\nTP %d  FP %d  FN %d  TN %d\n", c.TP, c.FP, c.FN, c.TN)
	fmt.Fprintf(w, "precision %.3f  recall %.3f  f1 %.3f  accuracy %.3f\n", m.Precision, m.Recall, m.F1, m.Accuracy)
	if len(res.Repeats) > 1 {
		fmt.Fprintf(w, "consistency %.2f over %d passes\n", res.ConsistencyRate, len(res.Repeats))
	}
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("avg processing time %s", res.AvgProcessingTime.Round(time.Millisecond))))

	for _, cr := range res.Cases {
		status := styleStatus(string(cr.ReviewStatus))
		if cr.Error != "" {
			status = failStyle.Render("error: " + cr.Error)
		}
		fmt.Fprintf(w, "  %-20s acc %.2f  %s\n", cr.CaseID, cr.Accuracy, status)
	}

	if len(res.ErrorAnalysis) > 0 {
		fmt.Fprintf(w, "\n%s\n", titleStyle.Render("Errors by check item"))
		for _, ea := range res.ErrorAnalysis {
			fmt.Fprintf(w, "  %-8s FP %d  FN %d\n", ea.CheckItemID, ea.FalsePositives, ea.FalseNegatives)
		}
	}

	if b := res.Baseline; b != nil {
		fmt.Fprintf(w, "\nBaseline %s: Δprecision %+.3f  Δrecall %+.3f  Δf1 %+.3f\n",
			b.BaselineID, b.Delta.Precision, b.Delta.Recall, b.Delta.F1)
		if b.Regression {
			fmt.Fprintln(w, failStyle.Render("REGRESSION: "+strings.Join(b.Regressed, ", ")))
		} else {
			fmt.Fprintln(w, passStyle.Render("no regression"))
		}
	}
}

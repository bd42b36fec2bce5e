package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// ReviewOptions is the per-run policy. Zero fields take defaults.
type ReviewOptions struct {
	Parallelism    int           `json:"parallelism" yaml:"parallelism"`
	PerItemTimeout time.Duration `json:"per_item_timeout" yaml:"per_item_timeout"`
	RunTimeout     time.Duration `json:"run_timeout" yaml:"run_timeout"`
	ContextBudget  int           `json:"context_budget" yaml:"context_budget"`
	MaxTokens      int           `json:"max_tokens" yaml:"max_tokens"`
	MaxFindings    int           `json:"max_findings" yaml:"max_findings"`

	OnProgress func(review.Progress) `json:"-" yaml:"-"`
}

// DefaultReviewOptions mirrors the defaults used by the CLI.
func DefaultReviewOptions() ReviewOptions {
	return ReviewOptions{
		Parallelism:    5,
		PerItemTimeout: 180 * time.Second,
		RunTimeout:     300 * time.Second,
		ContextBudget:  8000,
		MaxTokens:      4096,
		MaxFindings:    100,
	}
}

func (o ReviewOptions) withDefaults() ReviewOptions {
	def := DefaultReviewOptions()
	if o.Parallelism <= 0 {
		o.Parallelism = def.Parallelism
	}
	if o.ContextBudget == 0 {
		o.ContextBudget = def.ContextBudget
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = def.MaxTokens
	}
	if o.MaxFindings <= 0 {
		o.MaxFindings = def.MaxFindings
	}
	return o
}

// Engine runs the review pipeline for one document at a time. It holds no
// per-run state, so one Engine serves concurrent runs.
type Engine struct {
	orchestrator  *Orchestrator
	judge         Judge
	applicability *Applicability
	logger        *slog.Logger
	now           func() time.Time
	newID         func() string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithApplicability enables check item `when` expressions.
func WithApplicability(a *Applicability) EngineOption {
	return func(e *Engine) { e.applicability = a }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator replaces the review id generator.
func WithIDGenerator(fn func() string) EngineOption {
	return func(e *Engine) { e.newID = fn }
}

func NewEngine(orchestrator *Orchestrator, judge Judge, logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		orchestrator: orchestrator,
		judge:        judge,
		logger:       logger,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, fn := range opts {
		fn(e)
	}
	return e
}

type itemOutcome struct {
	exec        review.ItemExecution
	findings    []review.Finding
	suggestions []review.Suggestion
}

// RunReview reviews doc against items. Per-item failures are recorded in
// the result and never abort siblings. When the run timeout expires,
// outstanding items are marked as errors and the result is still returned.
// Caller cancellation returns the partial result together with ctx.Err().
func (e *Engine) RunReview(ctx context.Context, doc review.Document, items []review.CheckItem, opts ReviewOptions) (*review.ReviewResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	reviewID := e.newID()
	fsm, err := review.NewRunStateMachine(reviewID)
	if err != nil {
		return nil, err
	}
	if err := fsm.Transition(review.EventStart); err != nil {
		return nil, err
	}

	start := e.now()
	runCtx, cancel := withOptionalTimeout(ctx, opts.RunTimeout)
	defer cancel()

	e.logger.Info("review started", "review_id", reviewID, "document", doc.ID, "checks", len(items), "parallelism", opts.Parallelism)

	validation := ValidateCheckItems(items)
	outcomes := make([]itemOutcome, len(items))
	progress := newProgressTracker(reviewID, doc.ID, len(items), opts.OnProgress)

	var g errgroup.Group
	g.SetLimit(opts.Parallelism)
	for i, item := range items {
		if err := validation[i]; err != nil {
			outcomes[i] = failedOutcome(item, err, 0)
			progress.advance(outcomes[i])
			continue
		}
		if e.applicability != nil && item.When != "" {
			if _, err := e.applicability.Compile(item.When); err != nil {
				outcomes[i] = failedOutcome(item, &review.Error{Kind: review.KindConfiguration, CheckItemID: item.ID, Op: "validate", Err: err}, 0)
				progress.advance(outcomes[i])
				continue
			}
		}
		g.Go(func() error {
			outcomes[i] = e.guardItem(runCtx, doc, item, opts)
			progress.advance(outcomes[i])
			return nil
		})
	}
	_ = g.Wait()

	result := &review.ReviewResult{
		ID:           reviewID,
		DocumentID:   doc.ID,
		DocumentType: doc.Type,
		Findings:     []review.Finding{},
		Suggestions:  []review.Suggestion{},
		Items:        make([]review.ItemExecution, 0, len(items)),
		Metadata:     review.Metadata{SectionsAnalyzed: len(doc.Sections)},
		StartedAt:    start,
	}

	kept := map[string]bool{}
	anyErrored := false
	for _, out := range outcomes {
		if out.exec.Status == review.ItemError {
			anyErrored = true
		}
		for _, f := range out.findings {
			if len(result.Findings) >= opts.MaxFindings {
				break
			}
			result.Findings = append(result.Findings, f)
			kept[f.ID] = true
		}
		for _, s := range out.suggestions {
			if kept[s.FindingID] {
				result.Suggestions = append(result.Suggestions, s)
			}
		}
		result.Items = append(result.Items, out.exec)
	}

	result.Status = review.DeriveStatus(result.Findings)
	result.Summarize()
	if err := fsm.Finish(anyErrored); err != nil {
		return nil, err
	}
	result.RunState = fsm.Current()
	result.CompletedAt = e.now()
	result.Elapsed = result.CompletedAt.Sub(start)

	e.logger.Info("review completed",
		"review_id", reviewID,
		"document", doc.ID,
		"state", result.RunState,
		"status", result.Status,
		"findings", len(result.Findings),
		"errored", result.Metadata.ChecksErrored,
		"elapsed", result.Elapsed)

	if errors.Is(ctx.Err(), context.Canceled) {
		return result, ctx.Err()
	}
	return result, nil
}

// guardItem stops waiting for an item once the run context is done or the
// per-item timeout expires, even if a collaborator ignores cancellation.
// A timed-out item is an adapter timeout while retrieval is still running
// and a judgment timeout once the judge has been called.
func (e *Engine) guardItem(runCtx context.Context, doc review.Document, item review.CheckItem, opts ReviewOptions) itemOutcome {
	if err := runCtx.Err(); err != nil {
		return failedOutcome(item, runAbort(item.ID, runCtx), 0)
	}

	itemCtx, cancel := withOptionalTimeout(runCtx, opts.PerItemTimeout)
	defer cancel()

	start := e.now()
	var judging atomic.Bool
	done := make(chan itemOutcome, 1)
	go func() { done <- e.runItem(itemCtx, doc, item, opts, &judging) }()

	select {
	case out := <-done:
		return out
	case <-itemCtx.Done():
		if runCtx.Err() != nil {
			e.logger.Warn("check item abandoned", "check_item", item.ID, "reason", runCtx.Err())
			return failedOutcome(item, runAbort(item.ID, runCtx), e.now().Sub(start))
		}
		err := itemTimeout(item.ID, judging.Load(), itemCtx.Err())
		e.logger.Warn("check item timed out", "check_item", item.ID, "kind", review.KindOf(err), "timeout", opts.PerItemTimeout)
		return failedOutcome(item, err, e.now().Sub(start))
	}
}

func itemTimeout(itemID string, judging bool, cause error) error {
	if judging {
		return &review.Error{Kind: review.KindJudgmentTimeout, CheckItemID: itemID, Op: "judge", Err: cause}
	}
	return &review.Error{Kind: review.KindAdapterTimeout, CheckItemID: itemID, Op: "retrieve", Err: cause}
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func runAbort(itemID string, runCtx context.Context) error {
	return &review.Error{Kind: review.KindRunTimeout, CheckItemID: itemID, Op: "run", Err: runCtx.Err()}
}

func (e *Engine) runItem(ctx context.Context, doc review.Document, item review.CheckItem, opts ReviewOptions, judging *atomic.Bool) itemOutcome {
	start := e.now()
	out := itemOutcome{exec: review.ItemExecution{CheckItemID: item.ID, CheckItemName: item.Name}}
	exec := &out.exec
	fail := func(err error) itemOutcome {
		failed := failedOutcome(item, err, e.now().Sub(start))
		failed.exec.Strategy = exec.Strategy
		failed.exec.Adapters = exec.Adapters
		failed.exec.Attempts = exec.Attempts
		failed.exec.Retries = exec.Retries
		failed.exec.Omitted = exec.Omitted
		failed.exec.FallbackApplied = exec.FallbackApplied
		failed.exec.JudgmentRetries = exec.JudgmentRetries
		failed.exec.LLMCalls = exec.LLMCalls
		e.logger.Warn("check item failed", "check_item", item.ID, "kind", failed.exec.ErrorKind, "error", err)
		return failed
	}

	if e.applicability != nil {
		ok, err := e.applicability.Applies(item, doc)
		if err != nil {
			return fail(&review.Error{Kind: review.KindConfiguration, CheckItemID: item.ID, Op: "applicability", Err: err})
		}
		if !ok {
			exec.Status = review.ItemSkipped
			exec.Elapsed = e.now().Sub(start)
			return out
		}
	}

	strategy, sources, err := SelectAdapters(item)
	if err != nil {
		return fail(err)
	}
	exec.Strategy = strategy
	for _, s := range sources {
		exec.Adapters = append(exec.Adapters, string(s))
	}

	retrieved, err := e.orchestrator.Retrieve(ctx, item, doc, sources)
	if retrieved != nil {
		exec.Attempts = retrieved.Attempts()
		exec.Retries = retrieved.Retries()
		exec.Omitted = retrieved.Omitted
		exec.FallbackApplied = retrieved.FallbackApplied
	}
	if err != nil {
		return fail(err)
	}

	evidence := Synthesize(retrieved.Fragments, opts.ContextBudget)
	judging.Store(true)
	judgment, err := e.judge.Judge(ctx, JudgeRequest{Item: item, Document: doc, Evidence: evidence, MaxTokens: opts.MaxTokens})
	exec.LLMCalls++
	if err != nil && ctx.Err() == nil {
		e.logger.Warn("judgment failed, retrying with reduced context", "check_item", item.ID, "error", err)
		exec.JudgmentRetries++
		evidence = Synthesize(retrieved.Fragments, reducedBudget(opts.ContextBudget, evidence))
		judgment, err = e.judge.Judge(ctx, JudgeRequest{Item: item, Document: doc, Evidence: evidence, MaxTokens: opts.MaxTokens / 2})
		exec.LLMCalls++
	}
	if err != nil {
		return fail(judgmentError(item.ID, err))
	}

	exec.EvidenceRefs = evidence.Refs
	exec.Rationale = judgment.Rationale
	out.findings, out.suggestions, exec.Status = normalizeJudgment(item, judgment)
	exec.Elapsed = e.now().Sub(start)
	return out
}

// reducedBudget halves the context for a judgment retry. An unbounded
// budget is halved from what the first attempt actually sent.
func reducedBudget(budget int, first EvidenceContext) int {
	if budget > 0 {
		return max(1, budget/2)
	}
	return max(1, utf8.RuneCountInString(first.Text)/2)
}

// judgmentError keeps typed errors and treats the rest as timeouts.
func judgmentError(itemID string, err error) error {
	if review.KindOf(err) != "" {
		return err
	}
	return &review.Error{Kind: review.KindJudgmentTimeout, CheckItemID: itemID, Op: "judge", Err: err}
}

func failedOutcome(item review.CheckItem, err error, elapsed time.Duration) itemOutcome {
	kind := review.KindOf(err)
	if kind == "" {
		kind = review.KindAdapterUnavailable
	}
	return itemOutcome{exec: review.ItemExecution{
		CheckItemID:   item.ID,
		CheckItemName: item.Name,
		Status:        review.ItemError,
		ErrorKind:     kind,
		Error:         err.Error(),
		Elapsed:       elapsed,
	}}
}

// normalizeJudgment turns a judgment into owned findings. A pass verdict
// yields no findings. A fail or warning verdict with no findings gets one
// synthesized from the rationale so the verdict is reflected in the status.
func normalizeJudgment(item review.CheckItem, j *Judgment) ([]review.Finding, []review.Suggestion, review.ItemStatus) {
	var status review.ItemStatus
	switch j.Verdict {
	case VerdictFail:
		status = review.ItemFail
	case VerdictWarning:
		status = review.ItemWarning
	default:
		return nil, nil, review.ItemPass
	}

	judged := j.Findings
	if len(judged) == 0 {
		sev := string(item.DefaultSeverity())
		if status == review.ItemWarning {
			sev = string(review.SeverityMinor)
		}
		msg := j.Rationale
		if msg == "" {
			msg = fmt.Sprintf("%s did not satisfy %s", item.Name, item.ID)
		}
		judged = []JudgedFinding{{Severity: sev, Title: item.Name, Message: msg}}
	}

	findings := make([]review.Finding, 0, len(judged))
	for n, jf := range judged {
		sev := item.DefaultSeverity()
		if jf.Severity != "" {
			sev = review.ParseSeverity(jf.Severity)
		}
		f := review.Finding{
			ID:                 fmt.Sprintf("F-%s-%d", item.ID, n+1),
			CheckItemID:        item.ID,
			Severity:           sev,
			Title:              jf.Title,
			Message:            jf.Message,
			Location:           jf.Location,
			Evidence:           jf.Evidence,
			GuidelineReference: jf.GuidelineReference,
		}
		if f.GuidelineReference == "" {
			f.GuidelineReference = item.GuidelineReference
		}
		if jf.Confidence != nil {
			c := review.Clamp01(*jf.Confidence)
			f.Confidence = &c
		}
		findings = append(findings, f)
	}

	var suggestions []review.Suggestion
	if s := j.Suggestion; s != nil && s.Content != "" {
		suggestions = append(suggestions, review.Suggestion{
			ID:         fmt.Sprintf("S-%s-1", item.ID),
			FindingID:  findings[0].ID,
			Title:      s.Title,
			Content:    s.Content,
			Example:    s.Example,
			Priority:   suggestionPriority(s.Priority, findings[0].Severity),
			Confidence: review.Clamp01(s.Confidence),
		})
	}
	return findings, suggestions, status
}

func suggestionPriority(p int, sev review.Severity) int {
	if p >= 1 && p <= 5 {
		return p
	}
	switch sev {
	case review.SeverityCritical:
		return 1
	case review.SeverityMajor:
		return 2
	case review.SeverityMinor:
		return 3
	default:
		return 4
	}
}

// progressTracker serialises progress callbacks.
type progressTracker struct {
	mu       sync.Mutex
	base     review.Progress
	findings int
	fn       func(review.Progress)
}

func newProgressTracker(reviewID, docID string, total int, fn func(review.Progress)) *progressTracker {
	return &progressTracker{
		base: review.Progress{ReviewID: reviewID, DocumentID: docID, Total: total, State: review.RunRunning},
		fn:   fn,
	}
}

func (p *progressTracker) advance(out itemOutcome) {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base.Completed++
	p.findings += len(out.findings)
	ev := p.base
	ev.CurrentCheck = out.exec.CheckItemID
	ev.CheckStatus = out.exec.Status
	ev.FindingsSoFar = p.findings
	if ev.Total > 0 {
		ev.Percent = float64(ev.Completed) / float64(ev.Total) * 100
	}
	p.fn(ev)
}

package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/evaluation"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// EvalOptions controls an evaluation run.
type EvalOptions struct {
	Parallelism int
	RepeatCount int
	Tolerance   float64
	Review      ReviewOptions
}

// Reviewer is the part of Engine the evaluator depends on.
type Reviewer interface {
	RunReview(ctx context.Context, doc review.Document, items []review.CheckItem, opts ReviewOptions) (*review.ReviewResult, error)
}

// Evaluator replays labelled cases through the engine and scores them.
type Evaluator struct {
	reviewer Reviewer
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

func NewEvaluator(reviewer Reviewer, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{reviewer: reviewer, logger: logger, now: time.Now, newID: uuid.NewString}
}

type pass struct {
	cases  []evaluation.CaseResult
	counts evaluation.Counts
	hash   string
}

// RunEvaluation reviews every case, aggregates the confusion matrix and
// compares against baseline when one is given. With RepeatCount > 1 the
// whole set is run again and the consistency rate reflects how many
// distinct result sets were produced. Reported metrics are from the first
// pass.
func (e *Evaluator) RunEvaluation(ctx context.Context, cases []evaluation.Case, baseline *evaluation.Result, opts EvalOptions) (*evaluation.Result, error) {
	if len(cases) == 0 {
		return nil, fmt.Errorf("evaluation requires at least one case")
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 2
	}
	if opts.RepeatCount <= 0 {
		opts.RepeatCount = 1
	}

	res := &evaluation.Result{ID: e.newID(), CreatedAt: e.now()}
	e.logger.Info("evaluation started", "evaluation_id", res.ID, "cases", len(cases), "repeat", opts.RepeatCount)

	var hashes []string
	for i := 0; i < opts.RepeatCount; i++ {
		p, err := e.runPass(ctx, cases, opts)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, p.hash)
		if i == 0 {
			res.Cases = p.cases
			res.Counts = p.counts
			res.Metrics = evaluation.Compute(p.counts)
		}
		if opts.RepeatCount > 1 {
			res.Repeats = append(res.Repeats, evaluation.Repeat{
				Index:       i + 1,
				Metrics:     evaluation.Compute(p.counts),
				ResultsHash: p.hash,
			})
		}
	}

	res.ConsistencyRate = evaluation.ConsistencyRate(hashes)
	res.ErrorAnalysis = evaluation.AnalyzeErrors(res.Cases)
	var total time.Duration
	for _, c := range res.Cases {
		total += c.ProcessingTime
	}
	res.AvgProcessingTime = total / time.Duration(len(res.Cases))

	if baseline != nil {
		cmp := evaluation.Compare(res.Metrics, baseline.Metrics, opts.Tolerance)
		cmp.BaselineID = baseline.ID
		res.Baseline = &cmp
		if cmp.Regression {
			e.logger.Warn("evaluation regressed", "evaluation_id", res.ID, "baseline", baseline.ID, "metrics", cmp.Regressed)
		}
	}

	e.logger.Info("evaluation completed",
		"evaluation_id", res.ID,
		"precision", res.Metrics.Precision,
		"recall", res.Metrics.Recall,
		"f1", res.Metrics.F1,
		"consistency", res.ConsistencyRate)
	return res, nil
}

func (e *Evaluator) runPass(ctx context.Context, cases []evaluation.Case, opts EvalOptions) (pass, error) {
	out := make([]evaluation.CaseResult, len(cases))
	hashes := make([]string, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallelism)
	for i, c := range cases {
		g.Go(func() error {
			cr, hash, err := e.runCase(gctx, c, opts.Review)
			if err != nil {
				return err
			}
			out[i] = cr
			hashes[i] = hash
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return pass{}, err
	}

	p := pass{cases: out}
	for _, c := range out {
		p.counts.Add(c.Counts)
	}
	p.hash = evaluation.CombineHashes(hashes)
	return p, nil
}

// runCase reviews one case. Only caller cancellation is fatal; a case
// whose review fails is scored with no findings.
func (e *Evaluator) runCase(ctx context.Context, c evaluation.Case, opts ReviewOptions) (evaluation.CaseResult, string, error) {
	start := e.now()
	rr, err := e.reviewer.RunReview(ctx, c.Document, c.CheckItems, opts)
	if err != nil && ctx.Err() != nil {
		return evaluation.CaseResult{}, "", ctx.Err()
	}

	cr := evaluation.CaseResult{CaseID: c.ID, DocumentID: c.Document.ID, ProcessingTime: e.now().Sub(start)}
	var findings []review.Finding
	var items []review.ItemExecution
	if err != nil {
		cr.Error = err.Error()
		e.logger.Warn("evaluation case failed", "case", c.ID, "error", err)
	}
	if rr != nil {
		cr.ReviewID = rr.ID
		cr.ReviewStatus = rr.Status
		findings = rr.Findings
		items = rr.Items
		for _, it := range rr.Items {
			if it.Status == review.ItemError {
				cr.ErroredItems = append(cr.ErroredItems, it.CheckItemID)
			}
		}
	}

	cr.Counts, cr.Items = evaluation.Match(c.CheckItems, findings, c.Expected)
	cr.Accuracy = evaluation.Compute(cr.Counts).Accuracy
	return cr, evaluation.HashFindings(c.Document.ID, findings, items), nil
}

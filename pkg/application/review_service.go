package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/evaluation"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/events"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// ReviewService is the entry point used by the CLI, the MCP server and the
// API: it resolves check items, runs the engine, persists results and
// emits lifecycle events.
type ReviewService struct {
	reviewer  Reviewer
	evaluator *Evaluator
	catalogue *review.Catalogue
	repo      domain.ResultRepository
	events    *events.Dispatcher
	logger    *slog.Logger
	actor     string
}

func NewReviewService(reviewer Reviewer, catalogue *review.Catalogue, repo domain.ResultRepository, dispatcher *events.Dispatcher, logger *slog.Logger) *ReviewService {
	if logger == nil {
		logger = slog.Default()
	}
	if catalogue == nil {
		catalogue = &review.Catalogue{}
	}
	return &ReviewService{
		reviewer:  reviewer,
		evaluator: NewEvaluator(reviewer, logger),
		catalogue: catalogue,
		repo:      repo,
		events:    dispatcher,
		logger:    logger,
		actor:     "cli",
	}
}

// WithActor sets the actor recorded on emitted events.
func (s *ReviewService) WithActor(actor string) *ReviewService {
	cp := *s
	cp.actor = actor
	return &cp
}

func (s *ReviewService) Catalogue() *review.Catalogue {
	return s.catalogue
}

// CheckItems selects the catalogue items for docType, restricted to ids
// when given. Unknown ids are a configuration error.
func (s *ReviewService) CheckItems(docType review.DocumentType, ids []string) ([]review.CheckItem, error) {
	for _, id := range ids {
		if _, ok := s.catalogue.Get(id); !ok {
			return nil, review.NewConfigurationError(id, "unknown check item")
		}
	}
	items := s.catalogue.Filter(docType, ids)
	if len(items) == 0 {
		return nil, review.NewConfigurationError("", "no check items apply to document type %q", docType)
	}
	return items, nil
}

// Review runs the catalogue checks for doc and stores the result. A run
// that produced a result is saved even when the engine also returned an
// error.
func (s *ReviewService) Review(ctx context.Context, doc review.Document, ids []string, opts ReviewOptions) (*review.ReviewResult, error) {
	items, err := s.CheckItems(doc.Type, ids)
	if err != nil {
		return nil, err
	}
	return s.ReviewItems(ctx, doc, items, opts)
}

// ReviewItems runs an explicit item list.
func (s *ReviewService) ReviewItems(ctx context.Context, doc review.Document, items []review.CheckItem, opts ReviewOptions) (*review.ReviewResult, error) {
	s.emit(ctx, &events.Event{
		Type:        events.ReviewStarted,
		SubjectID:   doc.ID,
		SubjectType: events.SubjectDocument,
		Metadata:    map[string]any{"document_type": string(doc.Type), "check_items": len(items)},
	})

	progress := opts.OnProgress
	opts.OnProgress = func(p review.Progress) {
		if progress != nil {
			progress(p)
		}
		s.emit(ctx, &events.Event{
			Type:        events.ReviewProgressed,
			SubjectID:   p.ReviewID,
			SubjectType: events.SubjectReview,
			Metadata: map[string]any{
				"completed":    p.Completed,
				"total":        p.Total,
				"check_item":   p.CurrentCheck,
				"check_status": string(p.CheckStatus),
			},
		})
	}

	res, runErr := s.reviewer.RunReview(ctx, doc, items, opts)
	if res == nil {
		return nil, runErr
	}

	if s.repo != nil {
		if err := s.repo.SaveReview(context.WithoutCancel(ctx), res); err != nil {
			return res, errors.Join(runErr, fmt.Errorf("save review: %w", err))
		}
	}

	typ := events.ReviewCompleted
	if res.RunState == review.RunPartiallyFailed {
		typ = events.ReviewPartialFailure
	}
	s.emit(ctx, &events.Event{
		Type:        typ,
		SubjectID:   res.ID,
		SubjectType: events.SubjectReview,
		Metadata: map[string]any{
			"document_id":    res.DocumentID,
			"status":         string(res.Status),
			"run_state":      string(res.RunState),
			"total_findings": res.Metadata.TotalFindings,
			"checks_errored": res.Metadata.ChecksErrored,
		},
	})
	return res, runErr
}

// EvaluateRequest selects the baseline and persistence of an evaluation.
type EvaluateRequest struct {
	// Baseline wins over BaselineID. With neither, the latest stored
	// baseline is used when UseLatestBaseline is set.
	Baseline          *evaluation.Result
	BaselineID        string
	UseLatestBaseline bool
	SaveBaseline      bool
	Options           EvalOptions
}

// Evaluate scores cases, compares against the selected baseline and stores
// the evaluation.
func (s *ReviewService) Evaluate(ctx context.Context, cases []evaluation.Case, req EvaluateRequest) (*evaluation.Result, error) {
	baseline, err := s.resolveBaseline(ctx, req)
	if err != nil {
		return nil, err
	}

	res, err := s.evaluator.RunEvaluation(ctx, cases, baseline, req.Options)
	if err != nil {
		return nil, err
	}

	if s.repo != nil {
		if err := s.repo.SaveEvaluation(ctx, res); err != nil {
			return res, fmt.Errorf("save evaluation: %w", err)
		}
		if req.SaveBaseline {
			if err := s.repo.SaveBaseline(ctx, res); err != nil {
				return res, fmt.Errorf("save baseline: %w", err)
			}
		}
	}

	meta := map[string]any{
		"cases":     len(res.Cases),
		"precision": res.Metrics.Precision,
		"recall":    res.Metrics.Recall,
		"f1":        res.Metrics.F1,
	}
	s.emit(ctx, &events.Event{Type: events.EvaluationCompleted, SubjectID: res.ID, SubjectType: events.SubjectEvaluation, Metadata: meta})
	if res.Baseline != nil && res.Baseline.Regression {
		s.emit(ctx, &events.Event{
			Type:        events.EvaluationRegressed,
			SubjectID:   res.ID,
			SubjectType: events.SubjectEvaluation,
			Metadata:    map[string]any{"baseline_id": res.Baseline.BaselineID, "regressed": res.Baseline.Regressed},
		})
	}
	return res, nil
}

func (s *ReviewService) resolveBaseline(ctx context.Context, req EvaluateRequest) (*evaluation.Result, error) {
	if req.Baseline != nil {
		return req.Baseline, nil
	}
	if s.repo == nil || (req.BaselineID == "" && !req.UseLatestBaseline) {
		return nil, nil
	}
	b, err := s.repo.LoadBaseline(ctx, req.BaselineID)
	if errors.Is(err, domain.ErrNotFound) && req.BaselineID == "" {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load baseline: %w", err)
	}
	return b, nil
}

func (s *ReviewService) Result(ctx context.Context, id string) (*review.ReviewResult, error) {
	if s.repo == nil {
		return nil, domain.ErrNotFound
	}
	return s.repo.LoadReview(ctx, id)
}

func (s *ReviewService) Results(ctx context.Context) ([]domain.ResultSummary, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.ListReviews(ctx)
}

func (s *ReviewService) Evaluation(ctx context.Context, id string) (*evaluation.Result, error) {
	if s.repo == nil {
		return nil, domain.ErrNotFound
	}
	return s.repo.LoadEvaluation(ctx, id)
}

// Published records that a result was posted somewhere outside the workspace.
func (s *ReviewService) Published(ctx context.Context, reviewID, target string) {
	s.emit(ctx, &events.Event{
		Type:        events.ResultPublished,
		SubjectID:   reviewID,
		SubjectType: events.SubjectReview,
		Metadata:    map[string]any{"target": target},
	})
}

// emit dispatches without failing the caller; handlers are side channels.
func (s *ReviewService) emit(ctx context.Context, e *events.Event) {
	if s.events == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	e.Actor = s.actor
	if err := s.events.Dispatch(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Warn("event handler failed", "event", e.Type, "subject", e.SubjectID, "error", err)
	}
}

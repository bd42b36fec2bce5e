package domain

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/evaluation"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// ErrNotFound is returned when a stored result does not exist.
var ErrNotFound = errors.New("result not found")

// ResultSummary is the listing view of a stored review.
type ResultSummary struct {
	ID          string          `json:"id"`
	DocumentID  string          `json:"document_id"`
	Status      review.Status   `json:"status"`
	RunState    review.RunState `json:"run_state"`
	Findings    int             `json:"findings"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Summarize builds the listing view of a result.
func Summarize(r *review.ReviewResult) ResultSummary {
	return ResultSummary{
		ID:          r.ID,
		DocumentID:  r.DocumentID,
		Status:      r.Status,
		RunState:    r.RunState,
		Findings:    len(r.Findings),
		CompletedAt: r.CompletedAt,
	}
}

// ResultRepository persists review results, evaluation results and
// evaluation baselines.
type ResultRepository interface {
	SaveReview(ctx context.Context, r *review.ReviewResult) error
	LoadReview(ctx context.Context, id string) (*review.ReviewResult, error)
	ListReviews(ctx context.Context) ([]ResultSummary, error)
	SaveEvaluation(ctx context.Context, r *evaluation.Result) error
	LoadEvaluation(ctx context.Context, id string) (*evaluation.Result, error)
	SaveBaseline(ctx context.Context, r *evaluation.Result) error
	// LoadBaseline returns the named baseline, or the latest when id is empty.
	LoadBaseline(ctx context.Context, id string) (*evaluation.Result, error)
}

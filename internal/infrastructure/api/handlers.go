package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/config"
	"github.com/felixgeelhaar/smartreviewer/pkg/application"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/evaluation"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// ReviewRequest is the body of POST /api/v1/reviews.
type ReviewRequest struct {
	DocumentPath string              `json:"document_path,omitempty"`
	Document     *review.Document    `json:"document,omitempty"`
	DocumentType review.DocumentType `json:"document_type,omitempty"`
	CheckItems   []string            `json:"check_items,omitempty"`
	Parallelism  int                 `json:"parallelism,omitempty"`
	TimeoutSec   int                 `json:"timeout_sec,omitempty"`
}

// EvaluationRequest is the body of POST /api/v1/evaluations. Cases may be
// sent inline or read from a dataset file in the workspace.
type EvaluationRequest struct {
	DatasetPath       string             `json:"dataset_path,omitempty"`
	Dataset           *config.Dataset    `json:"dataset,omitempty"`
	Baseline          *evaluation.Result `json:"baseline,omitempty"`
	BaselineID        string             `json:"baseline_id,omitempty"`
	UseLatestBaseline bool               `json:"use_latest_baseline,omitempty"`
	SaveBaseline      bool               `json:"save_baseline,omitempty"`
	RepeatCount       int                `json:"repeat_count,omitempty"`
	Tolerance         *float64           `json:"tolerance,omitempty"`
}

func (s *Server) listChecks(c *gin.Context) {
	items := s.services.Catalogue.Filter(review.DocumentType(c.Query("type")), nil)
	if items == nil {
		items = []review.CheckItem{}
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) runReview(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("invalid request: %v", err)})
		return
	}

	var doc review.Document
	switch {
	case req.DocumentPath != "":
		loaded, err := config.LoadDocument(s.workspacePath(req.DocumentPath), req.DocumentType)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		doc = loaded
	case req.Document != nil:
		doc = *req.Document
		if req.DocumentType != "" {
			doc.Type = req.DocumentType
		}
		if doc.ID == "" || doc.Type == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "document needs an id and a type"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"message": "document_path or document is required"})
		return
	}

	opts := s.services.ReviewOptions()
	if req.Parallelism > 0 {
		opts.Parallelism = req.Parallelism
	}
	if req.TimeoutSec > 0 {
		opts.RunTimeout = time.Duration(req.TimeoutSec) * time.Second
	}

	res, err := s.services.Reviews.Review(c.Request.Context(), doc, req.CheckItems, opts)
	if err != nil {
		if errors.Is(err, review.ErrConfiguration) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
			return
		}
		if res == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
			return
		}
		s.logger.Warn("review finished with error", "review", res.ID, "error", err)
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) listReviews(c *gin.Context) {
	list, err := s.services.Reviews.Results(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	if list == nil {
		list = []domain.ResultSummary{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getReview(c *gin.Context) {
	res, err := s.services.Reviews.Result(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.notFoundOr500(c, err, "review")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) runEvaluation(c *gin.Context) {
	var req EvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("invalid request: %v", err)})
		return
	}

	var (
		cases []evaluation.Case
		err   error
	)
	switch {
	case req.Dataset != nil:
		cases, err = req.Dataset.Resolve(s.services.Catalogue)
	case req.DatasetPath != "":
		cases, err = config.LoadDataset(s.workspacePath(req.DatasetPath), s.services.Catalogue)
	default:
		err = errors.New("dataset_path or dataset is required")
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	opts := s.services.EvalOptions()
	if req.RepeatCount > 0 {
		opts.RepeatCount = req.RepeatCount
	}
	if req.Tolerance != nil {
		opts.Tolerance = *req.Tolerance
	}
	res, err := s.services.Reviews.Evaluate(c.Request.Context(), cases, application.EvaluateRequest{
		Baseline:          req.Baseline,
		BaselineID:        req.BaselineID,
		UseLatestBaseline: req.UseLatestBaseline,
		SaveBaseline:      req.SaveBaseline,
		Options:           opts,
	})
	if err != nil {
		if res == nil {
			s.notFoundOr500(c, err, "baseline")
			return
		}
		s.logger.Warn("evaluation not fully stored", "evaluation", res.ID, "error", err)
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getEvaluation(c *gin.Context) {
	res, err := s.services.Reviews.Evaluation(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.notFoundOr500(c, err, "evaluation")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) notFoundOr500(c *gin.Context, err error, what string) {
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": what + " not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
}

func (s *Server) workspacePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.services.Root, p)
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/evaluation"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

const WorkspaceDir = ".smartreviewer"
const ConfigFile = "review.yaml"
const CatalogueFile = "checks.yaml"
const HistoryFile = "history.jsonl"
const DeadLetterFile = "deadletters.jsonl"

// Result kinds, one directory each under the workspace.
const (
	ReviewsDir     = "results"
	EvaluationsDir = "evaluations"
	BaselinesDir   = "baselines"
)

type FilesystemRepository struct {
	root        string
	retryConfig retry.Config
}

var _ domain.ResultRepository = (*FilesystemRepository)(nil)

func NewFilesystemRepository(root string) *FilesystemRepository {
	return &FilesystemRepository{
		root: root,
		retryConfig: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  10 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
}

// Root returns the workspace root directory.
func (r *FilesystemRepository) Root() string {
	return r.root
}

// Dir returns the .smartreviewer directory.
func (r *FilesystemRepository) Dir() string {
	return filepath.Join(r.root, WorkspaceDir)
}

// ResolvePath joins parts under the workspace directory and rejects
// anything that escapes it.
func (r *FilesystemRepository) ResolvePath(parts ...string) (string, error) {
	if len(parts) == 0 || parts[len(parts)-1] == "" {
		return "", fmt.Errorf("filename cannot be empty")
	}
	baseDir := r.Dir()
	cleanPath := filepath.Clean(filepath.Join(append([]string{baseDir}, parts...)...))
	if !strings.HasPrefix(cleanPath, baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid file path: %s", filepath.Join(parts...))
	}
	return cleanPath, nil
}

func (r *FilesystemRepository) Initialize() error {
	for _, dir := range []string{"", ReviewsDir, EvaluationsDir, BaselinesDir} {
		// G301: Use 0700 for directories
		if err := os.MkdirAll(filepath.Join(r.Dir(), dir), 0700); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", WorkspaceDir, err)
		}
	}
	return nil
}

func (r *FilesystemRepository) IsInitialized() bool {
	_, err := os.Stat(r.Dir())
	return err == nil
}

func (r *FilesystemRepository) SaveReview(_ context.Context, res *review.ReviewResult) error {
	return r.save(ReviewsDir, res.ID, res)
}

func (r *FilesystemRepository) LoadReview(ctx context.Context, id string) (*review.ReviewResult, error) {
	return load[review.ReviewResult](ctx, r, ReviewsDir, id)
}

// ListReviews returns stored reviews, most recent first.
func (r *FilesystemRepository) ListReviews(ctx context.Context) ([]domain.ResultSummary, error) {
	entries, err := os.ReadDir(filepath.Join(r.Dir(), ReviewsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list results: %w", err)
	}

	var out []domain.ResultSummary
	for _, e := range entries {
		id, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok {
			continue
		}
		res, err := r.LoadReview(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Summarize(res))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].CompletedAt.After(out[j].CompletedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *FilesystemRepository) SaveEvaluation(_ context.Context, res *evaluation.Result) error {
	return r.save(EvaluationsDir, res.ID, res)
}

func (r *FilesystemRepository) LoadEvaluation(ctx context.Context, id string) (*evaluation.Result, error) {
	return load[evaluation.Result](ctx, r, EvaluationsDir, id)
}

func (r *FilesystemRepository) SaveBaseline(_ context.Context, res *evaluation.Result) error {
	return r.save(BaselinesDir, res.ID, res)
}

func (r *FilesystemRepository) LoadBaseline(ctx context.Context, id string) (*evaluation.Result, error) {
	if id != "" {
		return load[evaluation.Result](ctx, r, BaselinesDir, id)
	}

	entries, err := os.ReadDir(filepath.Join(r.Dir(), BaselinesDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to list baselines: %w", err)
	}
	var latest *evaluation.Result
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok {
			continue
		}
		b, err := load[evaluation.Result](ctx, r, BaselinesDir, name)
		if err != nil {
			return nil, err
		}
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) {
			latest = b
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

func (r *FilesystemRepository) save(dir, id string, v any) error {
	rid, err := domain.NewResultID(id)
	if err != nil {
		return err
	}
	path, err := r.ResolvePath(dir, rid.String()+".json")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", dir, err)
	}
	// G306: Use 0600 for files
	return os.WriteFile(path, data, 0600)
}

// load reads a JSON document with a short retry for concurrent writers.
// A missing file is reported as domain.ErrNotFound without retrying.
func load[T any](ctx context.Context, r *FilesystemRepository, dir, id string) (*T, error) {
	rid, err := domain.NewResultID(id)
	if err != nil {
		return nil, err
	}
	path, err := r.ResolvePath(dir, rid.String()+".json")
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s %s: %w", dir, id, domain.ErrNotFound)
	}

	retryer := retry.New[*T](r.retryConfig)
	return retryer.Do(ctx, func(ctx context.Context) (*T, error) {
		// #nosec G304 -- Path is resolved and validated via ResolvePath
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", path, err)
		}
		return &v, nil
	})
}

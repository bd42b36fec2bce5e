package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/evaluation"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

func sampleReview(id string, at time.Time) *review.ReviewResult {
	return &review.ReviewResult{
		ID:         id,
		DocumentID: "doc-1",
		RunState:   review.RunCompleted,
		Status:     review.StatusFail,
		Findings: []review.Finding{{
			ID: "F-BD-001-1", CheckItemID: "BD-001", Severity: review.SeverityMajor, Message: "undefined term", Location: "1 Overview",
		}},
		Suggestions: []review.Suggestion{},
		Items:       []review.ItemExecution{{CheckItemID: "BD-001", Status: review.ItemFail, Attempts: map[string]int{"vector": 1}}},
		CompletedAt: at,
	}
}

func TestFilesystemRepository_ReviewRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewFilesystemRepository(t.TempDir())
	if repo.IsInitialized() {
		t.Fatal("fresh directory should not be initialized")
	}
	if err := repo.Initialize(); err != nil {
		t.Fatal(err)
	}

	want := sampleReview("rev-1", time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	if err := repo.SaveReview(ctx, want); err != nil {
		t.Fatalf("SaveReview: %v", err)
	}
	got, err := repo.LoadReview(ctx, "rev-1")
	if err != nil {
		t.Fatalf("LoadReview: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	info, err := os.Stat(filepath.Join(repo.Dir(), ReviewsDir, "rev-1.json"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o, want 0600", perm)
	}
}

func TestFilesystemRepository_ListReviewsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewFilesystemRepository(t.TempDir())
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := repo.SaveReview(ctx, sampleReview(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	list, err := repo.ListReviews(ctx)
	if err != nil {
		t.Fatalf("ListReviews: %v", err)
	}
	var ids []string
	for _, s := range list {
		ids = append(ids, s.ID)
	}
	if diff := cmp.Diff([]string{"c", "b", "a"}, ids); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	if list[0].Findings != 1 || list[0].Status != review.StatusFail {
		t.Errorf("summary = %+v", list[0])
	}
}

func TestFilesystemRepository_NotFoundAndInvalidID(t *testing.T) {
	ctx := context.Background()
	repo := NewFilesystemRepository(t.TempDir())

	if _, err := repo.LoadReview(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("LoadReview(missing) err = %v, want ErrNotFound", err)
	}
	if err := repo.SaveReview(ctx, sampleReview("../escape", time.Now())); err == nil {
		t.Error("SaveReview should reject a traversal id")
	}
	if list, err := repo.ListReviews(ctx); err != nil || len(list) != 0 {
		t.Errorf("ListReviews on empty workspace = %v, %v", list, err)
	}
}

func TestFilesystemRepository_Baselines(t *testing.T) {
	ctx := context.Background()
	repo := NewFilesystemRepository(t.TempDir())

	if _, err := repo.LoadBaseline(ctx, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("empty baseline dir err = %v, want ErrNotFound", err)
	}

	older := &evaluation.Result{ID: "b-old", Metrics: evaluation.Metrics{Precision: 0.8}, CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := &evaluation.Result{ID: "b-new", Metrics: evaluation.Metrics{Precision: 0.9}, CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
	for _, b := range []*evaluation.Result{newer, older} {
		if err := repo.SaveBaseline(ctx, b); err != nil {
			t.Fatal(err)
		}
	}

	latest, err := repo.LoadBaseline(ctx, "")
	if err != nil {
		t.Fatalf("LoadBaseline latest: %v", err)
	}
	if latest.ID != "b-new" {
		t.Errorf("latest = %s, want b-new", latest.ID)
	}
	named, err := repo.LoadBaseline(ctx, "b-old")
	if err != nil || named.Metrics.Precision != 0.8 {
		t.Errorf("LoadBaseline(b-old) = %+v, %v", named, err)
	}

	if err := repo.SaveEvaluation(ctx, older); err != nil {
		t.Fatal(err)
	}
	if ev, err := repo.LoadEvaluation(ctx, "b-old"); err != nil || ev.ID != "b-old" {
		t.Errorf("LoadEvaluation = %+v, %v", ev, err)
	}
}

func TestFilesystemRepository_ResolvePath(t *testing.T) {
	repo := NewFilesystemRepository("/work")
	tests := []struct {
		parts   []string
		wantErr bool
	}{
		{[]string{"review.yaml"}, false},
		{[]string{ReviewsDir, "x.json"}, false},
		{[]string{"../outside"}, true},
		{[]string{ReviewsDir, "../../etc"}, true},
		{[]string{""}, true},
	}
	for _, tt := range tests {
		_, err := repo.ResolvePath(tt.parts...)
		if (err != nil) != tt.wantErr {
			t.Errorf("ResolvePath(%v) err = %v, wantErr %v", tt.parts, err, tt.wantErr)
		}
	}
}

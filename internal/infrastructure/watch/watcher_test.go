package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]ChangeEvent
}

func (r *recorder) record(b []ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, b)
}

func (r *recorder) paths() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]bool{}
	for _, b := range r.batches {
		for _, e := range b {
			out[filepath.Base(e.Path)] = true
		}
	}
	return out
}

func startWatcher(t *testing.T, dir string, rec *recorder) context.CancelFunc {
	t.Helper()
	w, err := NewFSWatcher(50*time.Millisecond, nil, rec.record)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WatchRecursive(dir); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	return cancel
}

func TestFSWatcher_BatchesDocumentChanges(t *testing.T) {
	dir := t.TempDir()
	design := filepath.Join(dir, "design.md")
	if err := os.WriteFile(design, []byte("# Design"), 0600); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	cancel := startWatcher(t, dir, rec)
	defer cancel()

	if err := os.WriteFile(design, []byte("# Design\n## Scope"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "plan.yaml"), []byte("id: p"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0600); err != nil {
		t.Fatal(err)
	}

	time.Sleep(250 * time.Millisecond)
	cancel()

	got := rec.paths()
	if !got["design.md"] || !got["plan.yaml"] {
		t.Errorf("expected both documents, got %v", got)
	}
	if got["main.go"] {
		t.Error("non-document files must be filtered out")
	}
}

func TestFSWatcher_SkipsStateDirectory(t *testing.T) {
	dir := t.TempDir()
	state := filepath.Join(dir, ".smartreviewer")
	if err := os.MkdirAll(state, 0700); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	cancel := startWatcher(t, dir, rec)
	defer cancel()

	if err := os.WriteFile(filepath.Join(state, "result.json"), []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	cancel()

	if got := rec.paths(); len(got) != 0 {
		t.Errorf("state directory writes must not trigger, got %v", got)
	}
}

func TestFSWatcher_WatchesNewDirectories(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	cancel := startWatcher(t, dir, rec)
	defer cancel()

	sub := filepath.Join(dir, "plans")
	if err := os.Mkdir(sub, 0700); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(sub, "tp.md"), []byte("# TP"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	cancel()

	if !rec.paths()["tp.md"] {
		t.Error("expected change in new subdirectory")
	}
}

func TestFSWatcher_ContextCancellation(t *testing.T) {
	w, err := NewFSWatcher(50*time.Millisecond, nil, func([]ChangeEvent) {})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WatchRecursive(t.TempDir()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("watcher did not stop after context cancellation")
	}
}

func TestOpToChangeType(t *testing.T) {
	tests := map[fsnotify.Op]ChangeType{
		fsnotify.Create: ChangeCreate,
		fsnotify.Write:  ChangeWrite,
		fsnotify.Remove: ChangeRemove,
		fsnotify.Rename: ChangeRename,
		fsnotify.Chmod:  "",
	}
	for op, want := range tests {
		if got := opToChangeType(op); got != want {
			t.Errorf("opToChangeType(%v) = %q, want %q", op, got, want)
		}
	}
	if !(ChangeEvent{ChangeType: ChangeRename}).Removed() {
		t.Error("rename should count as removed")
	}
}

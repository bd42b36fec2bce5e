package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeType classifies a filesystem change.
type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeWrite  ChangeType = "write"
	ChangeRemove ChangeType = "remove"
	ChangeRename ChangeType = "rename"
)

// ChangeEvent represents a filesystem change to a document.
type ChangeEvent struct {
	Path       string
	ChangeType ChangeType
}

// Removed reports whether the document no longer exists at Path.
func (e ChangeEvent) Removed() bool {
	return e.ChangeType == ChangeRemove || e.ChangeType == ChangeRename
}

// FSWatcher watches a directory tree with fsnotify and delivers debounced
// batches of document changes.
type FSWatcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	filter   *PatternFilter
	onChange func([]ChangeEvent)
	logger   *slog.Logger
}

// NewFSWatcher creates a watcher. A nil filter uses the document defaults.
func NewFSWatcher(debounce time.Duration, filter *PatternFilter, onChange func([]ChangeEvent)) (*FSWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if debounce == 0 {
		debounce = 500 * time.Millisecond
	}
	if filter == nil {
		filter = NewPatternFilter(nil, nil)
	}
	return &FSWatcher{
		watcher:  w,
		debounce: debounce,
		filter:   filter,
		onChange: onChange,
		logger:   slog.Default(),
	}, nil
}

// WithLogger replaces the default logger.
func (w *FSWatcher) WithLogger(logger *slog.Logger) *FSWatcher {
	if logger != nil {
		w.logger = logger
	}
	return w
}

// WatchRecursive adds root and its subdirectories, skipping hidden ones
// such as the .smartreviewer state directory.
func (w *FSWatcher) WatchRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Run starts the event loop. It blocks until the context is cancelled.
func (w *FSWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	debouncer := NewDebouncer(w.debounce, func(batch []ChangeEvent) {
		if w.onChange != nil {
			w.onChange(batch)
		}
	})
	defer debouncer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			changeType := opToChangeType(event.Op)
			if changeType == "" {
				continue
			}

			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.WatchRecursive(event.Name); err != nil {
						w.logger.Warn("watch new directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			if !w.filter.Matches(event.Name) {
				continue
			}

			w.logger.Debug("document changed", "path", event.Name, "change", changeType)
			debouncer.Trigger(event.Name, ChangeEvent{Path: event.Name, ChangeType: changeType})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

func opToChangeType(op fsnotify.Op) ChangeType {
	switch {
	case op.Has(fsnotify.Create):
		return ChangeCreate
	case op.Has(fsnotify.Write):
		return ChangeWrite
	case op.Has(fsnotify.Remove):
		return ChangeRemove
	case op.Has(fsnotify.Rename):
		return ChangeRename
	default:
		return ""
	}
}

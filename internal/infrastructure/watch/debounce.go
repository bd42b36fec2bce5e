// Package watch re-runs reviews when documents in the workspace change.
package watch

import (
	"sort"
	"sync"
	"time"
)

// Debouncer collects keyed triggers and flushes them as one batch once the
// window passes without a new trigger. The latest value per key wins.
type Debouncer[T any] struct {
	window  time.Duration
	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]T
	flush   func([]T)
}

func NewDebouncer[T any](window time.Duration, flush func([]T)) *Debouncer[T] {
	return &Debouncer[T]{
		window:  window,
		pending: make(map[string]T),
		flush:   flush,
	}
}

// Trigger records v under key and restarts the window.
func (d *Debouncer[T]) Trigger(key string, v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending[key] = v
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *Debouncer[T]) fire() {
	d.mu.Lock()
	keys := make([]string, 0, len(d.pending))
	for k := range d.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	batch := make([]T, 0, len(keys))
	for _, k := range keys {
		batch = append(batch, d.pending[k])
	}
	d.pending = make(map[string]T)
	d.mu.Unlock()

	if len(batch) > 0 && d.flush != nil {
		d.flush(batch)
	}
}

// Stop cancels the pending flush and drops what was collected.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = make(map[string]T)
}

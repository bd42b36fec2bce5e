package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/events"
)

// FileHistory is a hash-chained JSON Lines log of review and evaluation
// events.
type FileHistory struct {
	mu       sync.RWMutex
	path     string
	basePath string
	lastHash string
}

// NewFileHistory opens the history under basePath. The directory is
// created on first write.
func NewFileHistory(basePath string) (*FileHistory, error) {
	h := &FileHistory{path: filepath.Join(basePath, HistoryFile), basePath: basePath}
	all, err := h.load()
	if err != nil {
		return nil, err
	}
	if len(all) > 0 {
		h.lastHash = all[len(all)-1].Hash
	}
	return h, nil
}

// Append chains event to the log, filling ID and Timestamp when unset.
func (h *FileHistory) Append(event *events.Event) (err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := os.MkdirAll(h.basePath, 0750); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	event.PrevHash = h.lastHash
	event.Hash = event.CalculateHash()

	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close history file: %w", cerr)
		}
	}()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	h.lastHash = event.Hash
	return nil
}

// Handle lets the history subscribe to a dispatcher.
func (h *FileHistory) Handle(_ context.Context, event *events.Event) error {
	return h.Append(event)
}

// LoadAll returns events in append order.
func (h *FileHistory) LoadAll() ([]*events.Event, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.load()
}

// LoadBySubject returns the events of one review or evaluation.
func (h *FileHistory) LoadBySubject(subjectID string) ([]*events.Event, error) {
	all, err := h.LoadAll()
	if err != nil {
		return nil, err
	}
	var out []*events.Event
	for _, e := range all {
		if e.SubjectID == subjectID {
			out = append(out, e)
		}
	}
	return out, nil
}

// VerifyIntegrity returns one message per broken link.
func (h *FileHistory) VerifyIntegrity() ([]string, error) {
	all, err := h.LoadAll()
	if err != nil {
		return nil, err
	}
	var violations []string
	lastHash := ""
	for i, e := range all {
		if e.PrevHash != lastHash {
			violations = append(violations, fmt.Sprintf("event %d (%s): prev hash mismatch", i, e.ID))
		}
		if e.Hash != e.CalculateHash() {
			violations = append(violations, fmt.Sprintf("event %d (%s): hash mismatch", i, e.ID))
		}
		lastHash = e.Hash
	}
	return violations, nil
}

func (h *FileHistory) load() ([]*events.Event, error) {
	f, err := os.Open(h.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	var out []*events.Event
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e events.Event
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		out = append(out, &e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return out, nil
}

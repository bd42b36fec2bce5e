package webhook

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/events"
)

// DeadLetterStore appends failed deliveries to a JSONL file in the
// workspace so they can be inspected and replayed.
type DeadLetterStore struct {
	path string
	mu   sync.Mutex
}

func NewDeadLetterStore(path string) *DeadLetterStore {
	return &DeadLetterStore{path: path}
}

func (s *DeadLetterStore) Append(dl events.DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open dead letter file: %w", err)
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// ReadAll returns every entry. Corrupt lines are skipped.
func (s *DeadLetterStore) ReadAll() ([]events.DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *DeadLetterStore) read() ([]events.DeadLetter, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []events.DeadLetter
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		var dl events.DeadLetter
		if err := json.Unmarshal(sc.Bytes(), &dl); err != nil {
			continue
		}
		entries = append(entries, dl)
	}
	return entries, sc.Err()
}

// Replay resends every entry with send and keeps only those that fail
// again. It returns how many were delivered.
func (s *DeadLetterStore) Replay(ctx context.Context, send func(context.Context, events.DeadLetter) error) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return 0, err
	}
	var remaining []events.DeadLetter
	delivered := 0
	for _, dl := range entries {
		if ctx.Err() != nil {
			remaining = append(remaining, dl)
			continue
		}
		if err := send(ctx, dl); err != nil {
			dl.Error = err.Error()
			dl.Attempts++
			remaining = append(remaining, dl)
			continue
		}
		delivered++
	}

	var buf bytes.Buffer
	for _, dl := range remaining {
		data, err := json.Marshal(dl)
		if err != nil {
			return delivered, fmt.Errorf("marshal dead letter: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(s.path, buf.Bytes(), 0600); err != nil {
		return delivered, fmt.Errorf("rewrite dead letter file: %w", err)
	}
	return delivered, nil
}

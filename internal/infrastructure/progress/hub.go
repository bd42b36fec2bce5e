// Package progress fans review progress out to live subscribers over
// websocket and server-sent events.
package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/events"
)

// Message types sent to subscribers.
const (
	TypeProgress  = "progress"
	TypeCompleted = "completed"
)

// Message is one update pushed to subscribers.
type Message struct {
	Type        string    `json:"type"`
	ReviewID    string    `json:"review_id"`
	Completed   int       `json:"completed,omitempty"`
	Total       int       `json:"total,omitempty"`
	CheckItem   string    `json:"check_item,omitempty"`
	CheckStatus string    `json:"check_status,omitempty"`
	Status      string    `json:"status,omitempty"`
	RunState    string    `json:"run_state,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type subscriber struct {
	ch       chan Message
	reviewID string
}

// Hub broadcasts messages to subscribers. Slow subscribers lose messages
// instead of blocking the review.
type Hub struct {
	mu      sync.RWMutex
	clients map[*subscriber]struct{}
	logger  *slog.Logger
	buffer  int
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{clients: make(map[*subscriber]struct{}), logger: logger, buffer: 64}
}

// Subscribe registers a subscriber, optionally restricted to one review.
// The returned function unsubscribes and closes the channel.
func (h *Hub) Subscribe(reviewID string) (<-chan Message, func()) {
	sub := &subscriber{ch: make(chan Message, h.buffer), reviewID: reviewID}
	h.mu.Lock()
	h.clients[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, sub)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Clients returns the number of live subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Publish(m Message) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.clients {
		if sub.reviewID != "" && sub.reviewID != m.ReviewID {
			continue
		}
		select {
		case sub.ch <- m:
		default:
			h.logger.Debug("progress subscriber lagging, dropped message", "review", m.ReviewID)
		}
	}
}

// Handle is an events.HandlerFunc translating review lifecycle events.
func (h *Hub) Handle(_ context.Context, e *events.Event) error {
	m := Message{ReviewID: e.SubjectID, Timestamp: e.Timestamp}
	switch e.Type {
	case events.ReviewProgressed:
		m.Type = TypeProgress
		m.Completed = intOf(e.Metadata["completed"])
		m.Total = intOf(e.Metadata["total"])
		m.CheckItem, _ = e.Metadata["check_item"].(string)
		m.CheckStatus, _ = e.Metadata["check_status"].(string)
	case events.ReviewCompleted, events.ReviewPartialFailure:
		m.Type = TypeCompleted
		m.Status, _ = e.Metadata["status"].(string)
		m.RunState, _ = e.Metadata["run_state"].(string)
	default:
		return nil
	}
	h.Publish(m)
	return nil
}

func intOf(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

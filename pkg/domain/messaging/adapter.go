// Package messaging defines chat notifications for review events.
package messaging

import (
	"context"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/events"
)

// MessageAdapter posts a human-readable rendering of an event to a chat
// channel.
type MessageAdapter interface {
	Send(ctx context.Context, event *events.Event) error
	Name() string
	Type() string
}

// AdapterConfig defines configuration for a messaging adapter.
type AdapterConfig struct {
	Name         string            `yaml:"name" json:"name"`
	Type         string            `yaml:"type" json:"type"` // "slack"
	URL          string            `yaml:"url" json:"url"`
	EventFilters []string          `yaml:"event_filters,omitempty" json:"event_filters,omitempty"`
	Enabled      bool              `yaml:"enabled" json:"enabled"`
	Options      map[string]string `yaml:"options,omitempty" json:"options,omitempty"`
}

// DefaultEvents are posted when an adapter has no filters. Chat channels
// only get outcomes, never progress.
var DefaultEvents = []string{
	events.ReviewCompleted,
	events.ReviewPartialFailure,
	events.EvaluationRegressed,
}

// Matches reports whether the adapter wants eventType.
func (c AdapterConfig) Matches(eventType string) bool {
	filters := c.EventFilters
	if len(filters) == 0 {
		filters = DefaultEvents
	}
	for _, f := range filters {
		if events.MatchesFilter(f, eventType) {
			return true
		}
	}
	return false
}

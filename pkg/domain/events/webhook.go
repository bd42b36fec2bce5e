package events

import (
	"strings"
	"time"
)

// WebhookEndpoint is one outgoing webhook from review.yaml. EventFilters
// holds exact types ("review.completed"), namespaces ("review.*") or
// Wildcard; empty means every event.
type WebhookEndpoint struct {
	Name         string        `yaml:"name" json:"name"`
	URL          string        `yaml:"url" json:"url"`
	Secret       string        `yaml:"secret,omitempty" json:"secret,omitempty"`
	EventFilters []string      `yaml:"event_filters,omitempty" json:"event_filters,omitempty"`
	MaxRetries   int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	RetryDelay   time.Duration `yaml:"retry_delay,omitempty" json:"retry_delay,omitempty"`
	Enabled      bool          `yaml:"enabled" json:"enabled"`
}

// Matches reports whether the endpoint wants events of this type.
func (ep WebhookEndpoint) Matches(eventType string) bool {
	if len(ep.EventFilters) == 0 {
		return true
	}
	for _, f := range ep.EventFilters {
		if MatchesFilter(f, eventType) {
			return true
		}
	}
	return false
}

// MatchesFilter applies one event filter to eventType.
func MatchesFilter(filter, eventType string) bool {
	switch {
	case filter == Wildcard || filter == eventType:
		return true
	case strings.HasSuffix(filter, ".*"):
		return strings.HasPrefix(eventType, strings.TrimSuffix(filter, "*"))
	default:
		return false
	}
}

// DeadLetter is a delivery that exhausted its retries. SubjectID is the
// review or evaluation the event was about.
type DeadLetter struct {
	Timestamp   time.Time `json:"timestamp"`
	WebhookName string    `json:"webhook_name"`
	URL         string    `json:"url"`
	EventType   string    `json:"event_type"`
	SubjectID   string    `json:"subject_id,omitempty"`
	Payload     string    `json:"payload"`
	Error       string    `json:"error"`
	Attempts    int       `json:"attempts"`
}

// Package messaging posts review outcomes to chat channels.
package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/events"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/messaging"
)

type registered struct {
	config  messaging.AdapterConfig
	adapter messaging.MessageAdapter
}

// Registry holds the enabled adapters and fans events out to them.
type Registry struct {
	adapters []registered
}

// NewRegistry builds the enabled adapters. Unknown types and enabled
// adapters without a URL are errors.
func NewRegistry(configs []messaging.AdapterConfig) (*Registry, error) {
	r := &Registry{}
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		if cfg.URL == "" {
			return nil, fmt.Errorf("messaging adapter %q has no url", cfg.Name)
		}
		adapter, err := createAdapter(cfg)
		if err != nil {
			return nil, fmt.Errorf("create adapter %q: %w", cfg.Name, err)
		}
		r.adapters = append(r.adapters, registered{config: cfg, adapter: adapter})
	}
	return r, nil
}

func (r *Registry) Adapters() []messaging.MessageAdapter {
	out := make([]messaging.MessageAdapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a.adapter)
	}
	return out
}

// Handle is an events.HandlerFunc sending e to every adapter whose filters
// match.
func (r *Registry) Handle(ctx context.Context, e *events.Event) error {
	var errs []error
	for _, a := range r.adapters {
		if !a.config.Matches(e.Type) {
			continue
		}
		if err := a.adapter.Send(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.config.Name, err))
		}
	}
	return errors.Join(errs...)
}

func createAdapter(cfg messaging.AdapterConfig) (messaging.MessageAdapter, error) {
	switch cfg.Type {
	case "slack":
		return NewSlackAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("unknown adapter type: %s", cfg.Type)
	}
}

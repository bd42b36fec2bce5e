package events

import (
	"context"
	"fmt"
	"sync"
)

// HandlerFunc handles one event.
type HandlerFunc func(ctx context.Context, event *Event) error

// Wildcard subscribes a handler to every event type.
const Wildcard = "*"

// Dispatcher fans events out to registered handlers in registration order.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	// ContinueOnError keeps dispatching after a handler fails.
	ContinueOnError bool
}

type namedHandler struct {
	name    string
	handler HandlerFunc
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string][]namedHandler)}
}

// Register subscribes handler to the given event types.
func (d *Dispatcher) Register(name string, handler HandlerFunc, eventTypes ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range eventTypes {
		d.handlers[t] = append(d.handlers[t], namedHandler{name: name, handler: handler})
	}
}

// Dispatch calls every handler for the event's type, then wildcard ones.
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) error {
	d.mu.RLock()
	var handlers []namedHandler
	handlers = append(handlers, d.handlers[event.Type]...)
	handlers = append(handlers, d.handlers[Wildcard]...)
	d.mu.RUnlock()

	var errs []error
	for _, nh := range handlers {
		if err := nh.handler(ctx, event); err != nil {
			herr := fmt.Errorf("handler %s failed for event %s: %w", nh.name, event.Type, err)
			if !d.ContinueOnError {
				return herr
			}
			errs = append(errs, herr)
		}
	}
	if len(errs) > 0 {
		return &DispatchError{Errors: errs}
	}
	return nil
}

// HandlerCount returns how many handlers an event of this type reaches.
func (d *Dispatcher) HandlerCount(eventType string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := len(d.handlers[eventType])
	if eventType != Wildcard {
		n += len(d.handlers[Wildcard])
	}
	return n
}

// DispatchError collects handler failures when ContinueOnError is set.
type DispatchError struct {
	Errors []error
}

func (e *DispatchError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("multiple dispatch errors (%d)", len(e.Errors))
}

func (e *DispatchError) Unwrap() []error { return e.Errors }

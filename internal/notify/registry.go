// internal/notify/registry.go
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Handler delivers an alert message over one channel.
type Handler func(ctx context.Context, message string) error

// Registry fans operator alerts out to named channels (e.g. "telegram",
// "log"). All registered channels receive every alert.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty alert registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a channel handler under the given name, replacing any
// previous handler with that name.
func (r *Registry) Register(name string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

// NotifyOperator delivers the summary to every registered channel. A
// failing channel does not stop the others; the errors are joined.
func (r *Registry) NotifyOperator(ctx context.Context, summary string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.handlers) == 0 {
		return errors.New("no alert channels registered")
	}

	var errs []error
	for name, handler := range r.handlers {
		if err := handler(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Package subscription implements the ordered fan-out of deltas to subscribers.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/statekit/internal/logging"
	"github.com/aretw0/statekit/pkg/domain"
)

type entry struct {
	id uint64
	fn domain.Subscriber
}

// Registry holds subscribers in registration order.
type Registry struct {
	mu      sync.RWMutex
	nextID  uint64
	entries []entry

	logger  *slog.Logger
	onError func(context.Context, *domain.SubscriberError)
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used to report failing subscribers.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithErrorHook registers a callback invoked for every failing subscriber, after logging.
func WithErrorHook(fn func(context.Context, *domain.SubscriberError)) Option {
	return func(r *Registry) {
		r.onError = fn
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		logger: logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe appends fn and returns a function that removes this registration.
// Registering the same function twice yields two independent registrations.
// The returned function is safe to call more than once.
func (r *Registry) Subscribe(fn domain.Subscriber) (unsubscribe func()) {
	if fn == nil {
		panic("subscription: nil subscriber")
	}

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.entries = append(r.entries, entry{id: id, fn: fn})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

func (r *Registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.id == id {
			// Copy instead of shifting in place: an in-flight Notify may still hold the old slice.
			next := make([]entry, 0, len(r.entries)-1)
			next = append(next, r.entries[:i]...)
			r.entries = append(next, r.entries[i+1:]...)
			return
		}
	}
}

// Len returns the number of live registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Notify calls every subscriber registered when the call starts, in registration order.
// Subscribers added or removed during the fan-out only affect the next Notify.
// It returns the number of subscribers that failed.
func (r *Registry) Notify(ctx context.Context, delta domain.Delta) int {
	r.mu.RLock()
	current := r.entries
	r.mu.RUnlock()

	failed := 0
	for _, e := range current {
		if err := r.call(ctx, e, delta); err != nil {
			failed++
			r.logger.Warn("subscriber failed",
				"subscription", err.SubscriptionID,
				"action", err.Action,
				"error", err)
			if r.onError != nil {
				r.onError(ctx, err)
			}
		}
	}
	return failed
}

func (r *Registry) call(ctx context.Context, e entry, delta domain.Delta) (serr *domain.SubscriberError) {
	defer func() {
		if p := recover(); p != nil {
			serr = &domain.SubscriberError{
				SubscriptionID: e.id,
				Action:         domain.ActionFromContext(ctx),
				Err:            fmt.Errorf("panic: %v", p),
				Panic:          p,
			}
		}
	}()

	if err := e.fn(ctx, delta); err != nil {
		return &domain.SubscriberError{
			SubscriptionID: e.id,
			Action:         domain.ActionFromContext(ctx),
			Err:            err,
		}
	}
	return nil
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/aretw0/statekit/internal/logging"
	"github.com/aretw0/statekit/pkg/diff"
	"github.com/aretw0/statekit/pkg/domain"
	"github.com/aretw0/statekit/pkg/subscription"
)

// Store owns one state graph and serializes every mutation of it.
type Store[S any] struct {
	state S

	// sem is the store-wide lock. A buffered channel lets acquisition honour ctx.
	sem chan struct{}

	subs   *subscription.Registry
	logger *slog.Logger
	hooks  []domain.LifecycleHooks

	mu      sync.RWMutex
	actions map[string]binding
}

type binding struct {
	async  bool
	invoke func(ctx context.Context, payload any) error
}

// New creates a store around initial, which must be a non-nil pointer or map
// so that handlers can mutate it in place.
func New[S any](initial S, opts ...Option) (*Store[S], error) {
	v := reflect.ValueOf(initial)
	if !v.IsValid() || (v.Kind() != reflect.Pointer && v.Kind() != reflect.Map) || v.IsNil() {
		return nil, domain.ErrStateNotMutable
	}

	o := options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.validator != nil {
		if err := o.validator(initial); err != nil {
			return nil, fmt.Errorf("invalid initial state: %w", err)
		}
	}

	s := &Store[S]{
		state:   initial,
		sem:     make(chan struct{}, 1),
		logger:  o.logger,
		hooks:   o.hooks,
		actions: make(map[string]binding),
	}
	s.subs = subscription.NewRegistry(
		subscription.WithLogger(o.logger),
		subscription.WithErrorHook(s.emitSubscriberError),
	)
	return s, nil
}

// MustNew is like New but panics on error.
func MustNew[S any](initial S, opts ...Option) *Store[S] {
	s, err := New(initial, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Get returns the live state. It is safe to use from subscribers and while no action
// runs concurrently; otherwise use Read or Snapshot.
func (s *Store[S]) Get() S {
	return s.state
}

// Read runs fn with the state while holding the store lock. fn must not mutate the state.
// Called from inside a critical section (a subscriber), it runs fn without re-locking.
func (s *Store[S]) Read(ctx context.Context, fn func(S) error) error {
	if holds(ctx, s) {
		return fn(s.state)
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	return fn(s.state)
}

// Snapshot returns a deep copy of the state.
func (s *Store[S]) Snapshot(ctx context.Context) (S, error) {
	var out S
	err := s.Read(ctx, func(state S) error {
		out = diff.Clone(state)
		return nil
	})
	return out, err
}

// Encode returns the JSON encoding of the current state.
func (s *Store[S]) Encode(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.Read(ctx, func(state S) error {
		var err error
		data, err = json.Marshal(state)
		return err
	})
	return data, err
}

// Subscribe registers fn for every non-empty delta and returns its unsubscribe function.
func (s *Store[S]) Subscribe(fn domain.Subscriber) func() {
	return s.subs.Subscribe(fn)
}

// SubscriberCount returns the number of live subscriptions.
func (s *Store[S]) SubscriberCount() int {
	return s.subs.Len()
}

func (s *Store[S]) acquire(ctx context.Context) error {
	if holds(ctx, s) {
		return domain.ErrReentrantAction
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store[S]) release() {
	<-s.sem
}

const (
	handoffSuccess = "success"
	handoffError   = "error"
)

// execute runs the critical section: snapshot, mutate, scoped diff, notify.
func (s *Store[S]) execute(ctx context.Context, name, handoff string, mutate func(S) (domain.Scope, error)) (err error) {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	ctx = domain.WithAction(enter(ctx, s), name)

	start := time.Now()
	ev := domain.ActionEvent{
		EventBase: domain.EventBase{Timestamp: start, Type: domain.EventActionStart},
		Action:    name,
		Async:     handoff != "",
		Handoff:   handoff,
	}
	s.emitStart(ctx, ev)
	defer func() {
		ev.Type = domain.EventActionEnd
		ev.Timestamp = time.Now()
		ev.Duration = time.Since(start)
		ev.Err = err
		s.emitEnd(ctx, ev)
	}()

	before := diff.Clone(s.state)
	scope, err := mutate(s.state)
	ev.Scope = scope
	if err != nil {
		s.logger.Warn("action handler failed", "action", name, "error", err)
		return &domain.HandlerError{Action: name, Err: err}
	}
	if scope.IsNoOp() {
		s.logger.Debug("action finished without changes", "action", name)
		return nil
	}

	delta, err := diff.Diff(before, s.state, scope)
	if err != nil {
		s.logger.Warn("action scope could not be diffed", "action", name, "scope", []string(scope), "error", err)
		return fmt.Errorf("action %q: %w", name, err)
	}
	ev.Changes = len(delta)
	if delta.IsEmpty() {
		s.logger.Debug("action finished without changes", "action", name)
		return nil
	}

	subscribers := s.subs.Len()
	failed := s.subs.Notify(ctx, delta)
	s.emitNotify(ctx, &domain.NotifyEvent{
		EventBase:   domain.EventBase{Timestamp: time.Now(), Type: domain.EventNotify},
		Action:      name,
		Subscribers: subscribers,
		Failed:      failed,
		Changes:     len(delta),
	})
	s.logger.Debug("action finished", "action", name, "changes", len(delta), "subscribers", subscribers)
	return nil
}

func (s *Store[S]) emitStart(ctx context.Context, ev domain.ActionEvent) {
	for _, h := range s.hooks {
		if h.OnActionStart != nil {
			h.OnActionStart(ctx, &ev)
		}
	}
}

func (s *Store[S]) emitEnd(ctx context.Context, ev domain.ActionEvent) {
	for _, h := range s.hooks {
		if h.OnActionEnd != nil {
			h.OnActionEnd(ctx, &ev)
		}
	}
}

func (s *Store[S]) emitNotify(ctx context.Context, ev *domain.NotifyEvent) {
	for _, h := range s.hooks {
		if h.OnNotify != nil {
			h.OnNotify(ctx, ev)
		}
	}
}

func (s *Store[S]) emitSubscriberError(ctx context.Context, err *domain.SubscriberError) {
	for _, h := range s.hooks {
		if h.OnSubscriberError != nil {
			h.OnSubscriberError(ctx, err)
		}
	}
}

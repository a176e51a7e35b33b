package store

import (
	"context"
	"fmt"

	"github.com/aretw0/statekit/pkg/domain"
)

// Handler mutates state in place and returns the scope it may have changed.
// Returning domain.NoOp skips diffing and notification entirely.
type Handler[S, P any] func(state S, payload P) (domain.Scope, error)

// Action is the bound, callable form of a Handler.
type Action[P any] func(ctx context.Context, payload P) error

// AsyncHandler is the read phase of an async action. It runs without the store lock
// and must only observe state through the Reader.
type AsyncHandler[S, P, R any] func(ctx context.Context, r Reader[S], payload P) (R, error)

// AsyncAction is the bound form of an async action. It blocks until the handoff finished;
// run it in a goroutine to overlap the read phase with other work.
type AsyncAction[P any] func(ctx context.Context, payload P) error

// Reader gives an async read phase race-free access to the state.
type Reader[S any] struct {
	s *Store[S]
}

// Read runs fn with the state while holding the store lock for fn's duration only.
func (r Reader[S]) Read(ctx context.Context, fn func(S) error) error {
	return r.s.Read(ctx, fn)
}

// DefineAction registers handler under name and returns the bound action.
// It panics if name is empty or already defined, like http.ServeMux.
func DefineAction[S, P any](s *Store[S], name string, handler Handler[S, P]) Action[P] {
	if handler == nil {
		panic("store: nil handler for action " + name)
	}

	action := func(ctx context.Context, payload P) error {
		return s.execute(ctx, name, "", func(state S) (domain.Scope, error) {
			return handler(state, payload)
		})
	}
	s.register(name, binding{
		invoke: func(ctx context.Context, payload any) error {
			p, err := decode[P](name, payload)
			if err != nil {
				return err
			}
			return action(ctx, p)
		},
	})
	return action
}

// DefineAsyncAction registers a two-phase action. handler runs first, outside the lock.
// Its result is handed to onSuccess, or its error to onError, and the chosen handoff runs
// through the same critical section as a synchronous action. Without onError, a failed
// read phase returns *domain.AsyncPhaseError and nothing is mutated.
//
// If ctx is done once the read phase succeeded, the handoff is skipped and ctx.Err() returned.
func DefineAsyncAction[S, P, R any](s *Store[S], name string, handler AsyncHandler[S, P, R], onSuccess Handler[S, R], onError Handler[S, error]) AsyncAction[P] {
	if handler == nil || onSuccess == nil {
		panic("store: nil handler for async action " + name)
	}

	action := func(ctx context.Context, payload P) error {
		if holds(ctx, s) {
			return domain.ErrReentrantAction
		}

		result, err := handler(ctx, Reader[S]{s: s}, payload)
		if err != nil {
			if onError == nil {
				s.logger.Warn("async action failed", "action", name, "error", err)
				return &domain.AsyncPhaseError{Action: name, Err: err}
			}
			return s.execute(ctx, name, handoffError, func(state S) (domain.Scope, error) {
				return onError(state, err)
			})
		}
		if err := ctx.Err(); err != nil {
			s.logger.Debug("async action cancelled before handoff", "action", name)
			return err
		}
		return s.execute(ctx, name, handoffSuccess, func(state S) (domain.Scope, error) {
			return onSuccess(state, result)
		})
	}
	s.register(name, binding{
		async: true,
		invoke: func(ctx context.Context, payload any) error {
			p, err := decode[P](name, payload)
			if err != nil {
				return err
			}
			return action(ctx, p)
		},
	})
	return action
}

func (s *Store[S]) register(name string, b binding) {
	if name == "" {
		panic("store: empty action name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.actions[name]; exists {
		panic(fmt.Sprintf("store: action %q already defined", name))
	}
	s.actions[name] = b
}

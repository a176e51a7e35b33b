// Package fanout coordinates groups of parallel tasks whose completion is observed through
// store deltas. Each fan-out is a set of named tasks; every task is resolved exactly once,
// and a completion callback fires when the last one resolves.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aretw0/statekit/pkg/diff"
	"github.com/aretw0/statekit/pkg/domain"
	"github.com/aretw0/statekit/pkg/store"
)

var (
	ErrFanoutExists    = errors.New("fanout already exists")
	ErrFanoutNotFound  = errors.New("fanout does not exist")
	ErrTaskNotFound    = errors.New("task not in fanout")
	ErrAlreadyResolved = errors.New("task already resolved")
	ErrNoTasks         = errors.New("fanout has no tasks")
	ErrInvalidName     = errors.New("fanout ids and task names must be non-empty and free of dots")
)

// TaskResult is the outcome reported for one task.
type TaskResult struct {
	Resolved bool `json:"resolved"`
	Success  bool `json:"success"`
	Result   any  `json:"result,omitempty"`
}

// Fanout is the recorded state of one fan-out.
type Fanout struct {
	Description string                 `json:"description"`
	Tasks       map[string]*TaskResult `json:"tasks"`
}

func (f *Fanout) complete() bool {
	for _, t := range f.Tasks {
		if !t.Resolved {
			return false
		}
	}
	return true
}

// Result is passed to the completion callback.
type Result struct {
	ID           string
	Description  string
	Tasks        map[string]TaskResult
	SuccessCount int
	FailureCount int
}

// AllSucceeded reports whether every task resolved successfully.
func (r Result) AllSucceeded() bool {
	return r.FailureCount == 0
}

// Resolve reports the outcome of one task.
type Resolve func(ctx context.Context, result TaskResult) error

type createPayload struct {
	ID          string
	Description string
	Tasks       []string
	OnComplete  func(Result)
}

type resolvePayload struct {
	ID     string
	Task   string
	Result TaskResult
}

// Registry tracks fan-outs in its own store.
type Registry struct {
	s       *store.Store[map[string]*Fanout]
	create  store.Action[createPayload]
	resolve store.Action[resolvePayload]
}

// NewRegistry creates an empty registry. opts configure the underlying store.
func NewRegistry(opts ...store.Option) *Registry {
	r := &Registry{s: store.MustNew(map[string]*Fanout{}, opts...)}
	r.create = store.DefineAction(r.s, "fanout_create", r.createFanout)
	r.resolve = store.DefineAction(r.s, "fanout_resolve", func(state map[string]*Fanout, p resolvePayload) (domain.Scope, error) {
		t, err := lookupTask(state, p.ID, p.Task)
		if err != nil {
			return nil, err
		}
		if t.Resolved {
			return nil, fmt.Errorf("%w: %q in fanout %q", ErrAlreadyResolved, p.Task, p.ID)
		}
		*t = p.Result
		t.Resolved = true
		return domain.ScopeOf(p.ID + ".tasks." + p.Task), nil
	})
	return r
}

// createFanout records the fan-out and installs its watcher in the same critical section,
// so no resolution can complete the fan-out before someone is watching it.
func (r *Registry) createFanout(state map[string]*Fanout, p createPayload) (domain.Scope, error) {
	if _, exists := state[p.ID]; exists {
		return nil, fmt.Errorf("%w: %q", ErrFanoutExists, p.ID)
	}
	f := &Fanout{Description: p.Description, Tasks: make(map[string]*TaskResult, len(p.Tasks))}
	for _, name := range p.Tasks {
		f.Tasks[name] = &TaskResult{}
	}
	state[p.ID] = f
	r.watch(p.ID, p.OnComplete)
	return domain.ScopeOf(p.ID), nil
}

// watch subscribes a watcher that fires onComplete once fan-out id has no unresolved task.
// Watchers only run inside critical sections, so unsubscribe is always assigned before use.
func (r *Registry) watch(id string, onComplete func(Result)) {
	var (
		once        sync.Once
		unsubscribe func()
	)
	unsubscribe = r.s.Subscribe(func(ctx context.Context, d domain.Delta) error {
		if !touches(d, id) {
			return nil
		}
		f := r.s.Get()[id]
		if f == nil || !f.complete() {
			return nil
		}
		once.Do(func() {
			unsubscribe()
			if onComplete != nil {
				onComplete(result(id, f))
			}
		})
		return nil
	})
}

// Store exposes the underlying store, for observers that want fan-out deltas.
func (r *Registry) Store() *store.Store[map[string]*Fanout] {
	return r.s
}

// Create starts a fan-out over tasks. onComplete is called exactly once, from inside the
// critical section of the resolution that completed the fan-out; it must not call back
// into the registry on the same goroutine.
//
// Fan-out ids and task names become path segments, so they must be non-empty and must
// not contain dots.
func (r *Registry) Create(ctx context.Context, id, description string, tasks []string, onComplete func(Result)) error {
	if len(tasks) == 0 {
		return fmt.Errorf("%w: %q", ErrNoTasks, id)
	}
	if !validName(id) {
		return fmt.Errorf("%w: fanout %q", ErrInvalidName, id)
	}
	for _, name := range tasks {
		if !validName(name) {
			return fmt.Errorf("%w: task %q in fanout %q", ErrInvalidName, name, id)
		}
	}
	err := r.create(ctx, createPayload{ID: id, Description: description, Tasks: tasks, OnComplete: onComplete})
	return unwrapHandler(err)
}

// Resolver returns the function that resolves task in fan-out id.
func (r *Registry) Resolver(id, task string) (Resolve, error) {
	err := r.s.Read(context.Background(), func(state map[string]*Fanout) error {
		_, err := lookupTask(state, id, task)
		return err
	})
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, res TaskResult) error {
		return unwrapHandler(r.resolve(ctx, resolvePayload{ID: id, Task: task, Result: res}))
	}, nil
}

// Status returns a copy of the recorded state of fan-out id.
func (r *Registry) Status(ctx context.Context, id string) (Fanout, error) {
	var out Fanout
	err := r.s.Read(ctx, func(state map[string]*Fanout) error {
		f, ok := state[id]
		if !ok {
			return fmt.Errorf("%w: %q", ErrFanoutNotFound, id)
		}
		out = *diff.Clone(f)
		return nil
	})
	return out, err
}

// Watchers returns the number of fan-outs still waiting for completion.
func (r *Registry) Watchers() int {
	return r.s.SubscriberCount()
}

func lookupTask(state map[string]*Fanout, id, task string) (*TaskResult, error) {
	f, ok := state[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFanoutNotFound, id)
	}
	t, ok := f.Tasks[task]
	if !ok {
		return nil, fmt.Errorf("%w: %q not in fanout %q", ErrTaskNotFound, task, id)
	}
	return t, nil
}

func validName(name string) bool {
	return name != "" && !strings.Contains(name, ".")
}

func touches(d domain.Delta, id string) bool {
	prefix := domain.Path{id}
	for _, c := range d {
		if c.Path.HasPrefix(prefix) {
			return true
		}
	}
	return false
}

func result(id string, f *Fanout) Result {
	res := Result{ID: id, Description: f.Description, Tasks: make(map[string]TaskResult, len(f.Tasks))}
	for name, t := range f.Tasks {
		res.Tasks[name] = *diff.Clone(t)
		if t.Success {
			res.SuccessCount++
		} else {
			res.FailureCount++
		}
	}
	return res
}

// unwrapHandler strips the store's HandlerError so callers see the registry's own errors.
func unwrapHandler(err error) error {
	var herr *domain.HandlerError
	if errors.As(err, &herr) {
		return herr.Err
	}
	return err
}

package domain

import (
	"errors"
	"fmt"
)

// ErrPathNotFound is returned when a scope path does not exist in the state.
var ErrPathNotFound = errors.New("path not found")

// ErrInvalidPath is returned when a scope path is syntactically malformed.
var ErrInvalidPath = errors.New("invalid path")

// ErrReentrantAction is returned when a subscriber invokes an action on the store that is notifying it.
var ErrReentrantAction = errors.New("action invoked from inside a store critical section")

// ErrUnknownAction is returned by Dispatch when no action is registered under the name.
var ErrUnknownAction = errors.New("unknown action")

// ErrUnavailableAction is returned by Dispatch when the action exists but was not granted to the caller.
var ErrUnavailableAction = errors.New("action not available")

// ErrInvalidPayload is returned when a dynamic payload cannot be decoded into the action payload type.
var ErrInvalidPayload = errors.New("invalid payload")

// ErrStateNotMutable is returned when the initial state cannot be mutated in place (not a pointer or map).
var ErrStateNotMutable = errors.New("state must be a non-nil pointer or map")

// ErrSnapshotNotFound is returned by journals that have no snapshot saved yet.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// PathResolutionError reports a scope path that could not be resolved against the state.
type PathResolutionError struct {
	Path    string
	Segment string
	Err     error
}

func (e *PathResolutionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Segment == "" {
		return fmt.Sprintf("path %q: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("path %q: segment %q: %v", e.Path, e.Segment, e.Err)
}

func (e *PathResolutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// HandlerError wraps an error returned by a synchronous action handler.
// The state may have been partially mutated; no rollback is performed.
type HandlerError struct {
	Action string
	Err    error
}

func (e *HandlerError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("action %q: handler failed: %v", e.Action, e.Err)
}

func (e *HandlerError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// AsyncPhaseError wraps a failure of an async read phase that had no error handoff registered.
type AsyncPhaseError struct {
	Action string
	Err    error
}

func (e *AsyncPhaseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("action %q: async phase failed: %v", e.Action, e.Err)
}

func (e *AsyncPhaseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// SubscriberError describes a subscriber that failed while being notified.
// Panic holds the recovered value when the subscriber panicked instead of returning an error.
type SubscriberError struct {
	SubscriptionID uint64
	Action         string
	Err            error
	Panic          any
}

func (e *SubscriberError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Panic != nil {
		return fmt.Sprintf("subscriber %d panicked: %v", e.SubscriptionID, e.Panic)
	}
	return fmt.Sprintf("subscriber %d failed: %v", e.SubscriptionID, e.Err)
}

func (e *SubscriberError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// PayloadError reports a dynamic payload that could not be decoded for an action.
type PayloadError struct {
	Action string
	Err    error
}

func (e *PayloadError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("action %q: %v: %v", e.Action, ErrInvalidPayload, e.Err)
}

// Unwrap exposes both ErrInvalidPayload and the decoder error.
func (e *PayloadError) Unwrap() []error {
	if e == nil {
		return nil
	}
	return []error{ErrInvalidPayload, e.Err}
}

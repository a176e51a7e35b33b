package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventActionStart     EventType = "action_start"
	EventActionEnd       EventType = "action_end"
	EventNotify          EventType = "notify"
	EventSubscriberError EventType = "subscriber_error"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// ActionEvent describes one pass through the mutate-diff-notify cycle.
// Scope, Changes, Duration and Err are only populated on EventActionEnd.
type ActionEvent struct {
	EventBase
	Action   string        `json:"action"`
	Async    bool          `json:"async,omitempty"`
	Handoff  string        `json:"handoff,omitempty"` // "success" or "error" for async handoffs
	Scope    Scope         `json:"scope,omitempty"`
	Changes  int           `json:"changes"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// NotifyEvent describes a completed subscriber fan-out.
type NotifyEvent struct {
	EventBase
	Action      string `json:"action"`
	Subscribers int    `json:"subscribers"`
	Failed      int    `json:"failed"`
	Changes     int    `json:"changes"`
}

// LifecycleHooks defines callbacks for store observability.
// Hooks run inside the critical section and must not invoke actions.
type LifecycleHooks struct {
	OnActionStart     func(context.Context, *ActionEvent)
	OnActionEnd       func(context.Context, *ActionEvent)
	OnNotify          func(context.Context, *NotifyEvent)
	OnSubscriberError func(context.Context, *SubscriberError)
}

// Record is one journal entry: the delta emitted by an action, stamped with order and time.
type Record struct {
	ID      string    `json:"id"`
	Seq     uint64    `json:"seq"`
	At      time.Time `json:"at"`
	Action  string    `json:"action,omitempty"`
	Changes Delta     `json:"changes"`
}

// Snapshot is a serialized copy of the whole state, taken after the record with sequence Seq.
type Snapshot struct {
	Seq   uint64          `json:"seq"`
	At    time.Time       `json:"at"`
	State json.RawMessage `json:"state"`
}

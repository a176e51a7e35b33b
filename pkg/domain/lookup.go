package domain

import "context"

// LookupStatus tags the result of resolving an action by name.
type LookupStatus int

const (
	LookupUnknown     LookupStatus = iota // No action registered under the name
	LookupOK                              // Registered and available to the caller
	LookupUnavailable                     // Registered but not granted to the caller
)

func (s LookupStatus) String() string {
	switch s {
	case LookupOK:
		return "ok"
	case LookupUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Lookup is the tagged result of a by-name action lookup.
// Invoke is only set when Status is LookupOK.
type Lookup struct {
	Status LookupStatus
	Name   string
	Async  bool
	Invoke func(ctx context.Context, payload any) error
}

// OK reports whether the action can be invoked.
func (l Lookup) OK() bool {
	return l.Status == LookupOK && l.Invoke != nil
}

// Err converts a non-OK lookup into the matching sentinel error.
func (l Lookup) Err() error {
	switch l.Status {
	case LookupOK:
		return nil
	case LookupUnavailable:
		return ErrUnavailableAction
	default:
		return ErrUnknownAction
	}
}

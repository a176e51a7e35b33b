package domain

import (
	"context"
	"slices"
)

// ChangeKind classifies a single leaf difference.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"   // Key or element appeared
	ChangeRemoved ChangeKind = "removed" // Key or element disappeared
	ChangeChanged ChangeKind = "changed" // Value replaced, including type changes
)

// Change is one leaf-level difference between two snapshots.
// OldValue is unset for additions and NewValue is unset for removals.
type Change struct {
	Path     Path       `json:"path"`
	Kind     ChangeKind `json:"kind"`
	OldValue any        `json:"old_value,omitempty"`
	NewValue any        `json:"new_value,omitempty"`
}

// Delta is the ordered set of changes produced by one action.
// It is designed to be serialized to JSON for partial updates on clients.
type Delta []Change

// IsEmpty reports whether the delta carries no observable change.
func (d Delta) IsEmpty() bool {
	return len(d) == 0
}

// Paths returns the dot-notation path of every change, in delta order.
func (d Delta) Paths() []string {
	out := make([]string, len(d))
	for i, c := range d {
		out[i] = c.Path.String()
	}
	return out
}

// Find returns the change recorded at exactly the given path.
func (d Delta) Find(path string) (Change, bool) {
	target := splitDots(path)
	for _, c := range d {
		if c.Path.Equal(target) {
			return c, true
		}
	}
	return Change{}, false
}

// Affects reports whether any change touches path. A change matches when its path
// starts with the given segments, contains them as a contiguous run (so "name"
// matches "data.name"), or is an ancestor of the given path (the whole subtree was replaced).
// The root path "." matches any non-empty delta.
func (d Delta) Affects(path string) bool {
	target := splitDots(path)
	for _, c := range d {
		if len(target) == 0 || target.HasPrefix(c.Path) || containsRun(c.Path, target) {
			return true
		}
	}
	return false
}

func containsRun(p, run Path) bool {
	for i := 0; i+len(run) <= len(p); i++ {
		if p[i:].HasPrefix(run) {
			return true
		}
	}
	return false
}

// Sort orders changes by path using ComparePaths.
func (d Delta) Sort() {
	slices.SortStableFunc(d, func(a, b Change) int {
		return ComparePaths(a.Path, b.Path)
	})
}

// Subscriber observes deltas. Returning an error (or panicking) is reported for
// that subscriber only; the rest of the fan-out still runs.
type Subscriber func(ctx context.Context, delta Delta) error

/*
Package store composes the path resolver, the diff engine and the subscriber registry into
a mutation-based, change-detecting state store.

# Actions

State is mutated in place by named actions. A handler receives the live state, mutates it
and returns the scope it touched:

	type Counter struct {
		Count int `json:"count"`
	}

	s, err := store.New(&Counter{})
	if err != nil {
		return err
	}
	inc := store.DefineAction(s, "inc", func(c *Counter, n int) (domain.Scope, error) {
		c.Count += n
		return domain.ScopeOf("count"), nil
	})
	if err := inc(ctx, 2); err != nil {
		return err
	}

Every bound call runs the same critical section while holding a store-wide lock: snapshot,
handler, scoped diff, and synchronous notification of subscribers. A handler that returns
domain.NoOp skips the diff and the notification. domain.FullDiff diffs the whole state.

# Async actions

DefineAsyncAction splits an action into a read phase that runs without the lock (it may wait on
I/O, and other actions may run meanwhile) and a synchronous handoff that runs the critical section
with the result. The read phase observes state only through Reader.Read.

# Subscribers

Subscribers run inside the critical section, in registration order. Invoking an action on the
same store with the context given to a subscriber fails with domain.ErrReentrantAction. Invoking
it with an unrelated context blocks forever; subscribers that need to trigger further actions
must do so from another goroutine.

# Dynamic dispatch

Lookup and Dispatch resolve actions by name, which lets agents or remote callers invoke actions
with generic payloads decoded through mapstructure.
*/
package store

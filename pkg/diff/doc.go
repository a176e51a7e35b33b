/*
Package diff implements snapshotting and change detection for statekit.

Clone produces a structurally independent copy of a state graph before an action runs.
Diff compares that snapshot with the mutated state and reports leaf-level changes,
either across the whole graph or restricted to the subtrees named by a scope.

# Scoped diffing

A scoped diff resolves each scope path in both snapshots and walks only those subtrees,
so its cost follows the size of the scoped subtrees rather than the size of the state.
The result is the same as a full diff filtered to the scope (see Filter).

# Cycles

Both Clone and Diff tolerate cyclic graphs. Clone memoises pointers, maps and slices by
address and reproduces sharing; Diff treats a pair of nodes that is already being compared
further up the walk as equal.

Only exported struct fields are observable. Unexported fields are copied shallowly by Clone and
ignored by Diff, except for structs without exported fields (time.Time and friends), which are
compared as opaque leaf values.
*/
package diff

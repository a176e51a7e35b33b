package domain

import (
	"strconv"
	"strings"
)

// Root is the scope sentinel addressing the whole state.
const Root = "."

// Scope is the set of dot paths an action declares as possibly changed.
// An empty scope means nothing changed; a scope containing Root means anything may have changed.
type Scope []string

var (
	// NoOp is returned by handlers that made no observable change. No diff runs and nobody is notified.
	NoOp = Scope{}

	// FullDiff is returned by handlers that cannot narrow down what they touched.
	FullDiff = Scope{Root}
)

// ScopeOf builds a scope from paths.
func ScopeOf(paths ...string) Scope {
	return Scope(paths)
}

// IsNoOp reports whether the scope is empty.
func (s Scope) IsNoOp() bool {
	return len(s) == 0
}

// IsFull reports whether the scope collapses to the whole state.
func (s Scope) IsFull() bool {
	for _, p := range s {
		if p == Root {
			return true
		}
	}
	return false
}

// Path is a parsed address inside the state graph. The empty path is the root.
type Path []string

// String renders the path in dot notation; the root renders as ".".
func (p Path) String() string {
	if len(p) == 0 {
		return Root
	}
	return strings.Join(p, ".")
}

// IsRoot reports whether p addresses the whole state.
func (p Path) IsRoot() bool {
	return len(p) == 0
}

// Child returns a new path with seg appended. The receiver is never modified.
func (p Path) Child(seg string) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = seg
	return out
}

// Join returns p followed by rest.
func (p Path) Join(rest Path) Path {
	out := make(Path, 0, len(p)+len(rest))
	out = append(out, p...)
	return append(out, rest...)
}

// HasPrefix reports whether prefix is p itself or one of its ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Equal reports whether both paths have the same segments.
func (p Path) Equal(other Path) bool {
	return len(p) == len(other) && p.HasPrefix(other)
}

// ComparePaths orders paths segment by segment. Segments that are both
// non-negative integers compare numerically so that "items.10" sorts after "items.9".
func ComparePaths(a, b Path) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareSegments(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

func compareSegments(a, b string) int {
	if a == b {
		return 0
	}
	ai, aErr := strconv.ParseUint(a, 10, 64)
	bi, bErr := strconv.ParseUint(b, 10, 64)
	if aErr == nil && bErr == nil {
		if ai < bi {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// splitDots is a lenient splitter used by helpers that accept user input
// (Affects). Strict parsing lives in pkg/path.
func splitDots(p string) Path {
	if p == "" || p == Root {
		return Path{}
	}
	return Path(strings.Split(p, "."))
}

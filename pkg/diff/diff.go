package diff

import (
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/statekit/pkg/domain"
	"github.com/aretw0/statekit/pkg/path"
)

// Diff compares two snapshots of the same state graph.
//
// An empty scope returns an empty delta without walking anything. A scope that contains
// the root path diffs the whole graph. Otherwise only the subtrees named by the scope are
// visited: a path present on one side only is reported as a single addition or removal at
// that path, and a path absent on both sides fails with a *domain.PathResolutionError.
//
// The returned changes carry deep copies of the old and new values and are ordered by path.
func Diff(before, after any, scope domain.Scope) (domain.Delta, error) {
	if scope.IsNoOp() {
		return nil, nil
	}

	b, a := reflect.ValueOf(before), reflect.ValueOf(after)
	w := newWalker()
	if scope.IsFull() {
		w.compare(domain.Path{}, b, a)
		return w.delta(), nil
	}

	paths, err := normalize(scope)
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		bv, bErr := path.Lookup(b, p)
		av, aErr := path.Lookup(a, p)
		switch {
		case bErr != nil && aErr != nil:
			return nil, aErr
		case bErr != nil:
			w.added(p, av)
		case aErr != nil:
			w.removed(p, bv)
		default:
			w.compare(p, bv, av)
		}
	}
	return w.delta(), nil
}

// Filter restricts a delta to scope, producing what Diff would have returned for that scope.
// Changes recorded under a scoped path are kept as they are. A change recorded at an ancestor
// of a scoped path (a whole subtree replaced) is projected onto the scoped path by resolving
// it inside the change's old and new values.
func Filter(delta domain.Delta, scope domain.Scope) (domain.Delta, error) {
	if scope.IsNoOp() {
		return nil, nil
	}
	w := newWalker()
	if scope.IsFull() {
		for _, c := range delta {
			w.put(c)
		}
		return w.delta(), nil
	}

	paths, err := normalize(scope)
	if err != nil {
		return nil, err
	}
	for _, c := range delta {
		for _, p := range paths {
			switch {
			case c.Path.HasPrefix(p):
				w.put(c)
			case p.HasPrefix(c.Path):
				w.project(c, p)
			}
		}
	}
	return w.delta(), nil
}

func (w *walker) project(c domain.Change, p domain.Path) {
	rest := p[len(c.Path):]
	ov, oErr := path.Lookup(reflect.ValueOf(c.OldValue), rest)
	nv, nErr := path.Lookup(reflect.ValueOf(c.NewValue), rest)
	switch {
	case oErr != nil && nErr != nil:
	case oErr != nil:
		w.added(p, nv)
	case nErr != nil:
		w.removed(p, ov)
	default:
		w.compare(p, ov, nv)
	}
}

// normalize parses scope paths, removes duplicates and drops paths that are
// already covered by an ancestor in the same scope.
func normalize(scope domain.Scope) ([]domain.Path, error) {
	parsed := make([]domain.Path, 0, len(scope))
	for _, s := range scope {
		p, err := path.Parse(s)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, p)
	}
	slices.SortFunc(parsed, func(a, b domain.Path) int {
		if len(a) != len(b) {
			return len(a) - len(b)
		}
		return domain.ComparePaths(a, b)
	})

	out := parsed[:0]
	for _, p := range parsed {
		covered := false
		for _, kept := range out {
			if p.HasPrefix(kept) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, p)
		}
	}
	return out, nil
}

type pairKey struct {
	t          reflect.Type
	a, b       uintptr
	aLen, bLen int
}

type walker struct {
	changes map[string]domain.Change
	active  map[pairKey]struct{}
}

func newWalker() *walker {
	return &walker{
		changes: make(map[string]domain.Change),
		active:  make(map[pairKey]struct{}),
	}
}

func (w *walker) put(c domain.Change) {
	w.changes[pathKey(c.Path)] = c
}

// pathKey encodes p without joining segments on dots, since map keys may contain dots.
func pathKey(p domain.Path) string {
	var b strings.Builder
	for _, seg := range p {
		b.WriteString(strconv.Itoa(len(seg)))
		b.WriteByte(':')
		b.WriteString(seg)
	}
	return b.String()
}

func (w *walker) delta() domain.Delta {
	if len(w.changes) == 0 {
		return nil
	}
	out := make(domain.Delta, 0, len(w.changes))
	for _, c := range w.changes {
		out = append(out, c)
	}
	out.Sort()
	return out
}

func (w *walker) added(p domain.Path, v reflect.Value) {
	w.put(domain.Change{Path: p, Kind: domain.ChangeAdded, NewValue: cloneAny(v)})
}

func (w *walker) removed(p domain.Path, v reflect.Value) {
	w.put(domain.Change{Path: p, Kind: domain.ChangeRemoved, OldValue: cloneAny(v)})
}

func (w *walker) changed(p domain.Path, a, b reflect.Value) {
	w.put(domain.Change{Path: p, Kind: domain.ChangeChanged, OldValue: cloneAny(a), NewValue: cloneAny(b)})
}

// enter marks a pair of reference nodes as being compared. It returns false when
// the pair is already on the current walk, which only happens in a cycle.
func (w *walker) enter(k pairKey) bool {
	if _, ok := w.active[k]; ok {
		return false
	}
	w.active[k] = struct{}{}
	return true
}

func (w *walker) leave(k pairKey) {
	delete(w.active, k)
}

func (w *walker) compare(p domain.Path, a, b reflect.Value) {
	a, b = unwrap(a), unwrap(b)
	if !a.IsValid() && !b.IsValid() {
		return
	}
	if !a.IsValid() || !b.IsValid() || a.Type() != b.Type() {
		w.changed(p, a, b)
		return
	}

	switch a.Kind() {
	case reflect.Pointer:
		if a.IsNil() || b.IsNil() {
			if a.IsNil() != b.IsNil() {
				w.changed(p, a, b)
			}
			return
		}
		if a.Pointer() == b.Pointer() {
			return
		}
		k := pairKey{t: a.Type(), a: a.Pointer(), b: b.Pointer()}
		if !w.enter(k) {
			return
		}
		defer w.leave(k)
		w.compare(p, a.Elem(), b.Elem())

	case reflect.Struct:
		if !hasExportedFields(a.Type()) {
			if !leafEqual(a, b) {
				w.changed(p, a, b)
			}
			return
		}
		t := a.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			w.compare(p.Child(path.SegmentName(f)), a.Field(i), b.Field(i))
		}

	case reflect.Map:
		if a.Len() == 0 && b.Len() == 0 {
			return
		}
		if a.Pointer() == b.Pointer() {
			return
		}
		k := pairKey{t: a.Type(), a: a.Pointer(), b: b.Pointer()}
		if !w.enter(k) {
			return
		}
		defer w.leave(k)
		iter := a.MapRange()
		for iter.Next() {
			key := iter.Key()
			child := p.Child(path.KeySegment(key))
			other := b.MapIndex(key)
			if !other.IsValid() {
				w.removed(child, iter.Value())
				continue
			}
			w.compare(child, iter.Value(), other)
		}
		iter = b.MapRange()
		for iter.Next() {
			if !a.MapIndex(iter.Key()).IsValid() {
				w.added(p.Child(path.KeySegment(iter.Key())), iter.Value())
			}
		}

	case reflect.Slice, reflect.Array:
		if a.Kind() == reflect.Slice {
			if a.Len() == 0 && b.Len() == 0 {
				return
			}
			k := pairKey{t: a.Type(), a: a.Pointer(), b: b.Pointer(), aLen: a.Len(), bLen: b.Len()}
			if !w.enter(k) {
				return
			}
			defer w.leave(k)
		}
		n := min(a.Len(), b.Len())
		for i := 0; i < n; i++ {
			w.compare(p.Child(index(i)), a.Index(i), b.Index(i))
		}
		for i := n; i < a.Len(); i++ {
			w.removed(p.Child(index(i)), a.Index(i))
		}
		for i := n; i < b.Len(); i++ {
			w.added(p.Child(index(i)), b.Index(i))
		}

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		// Not observable state.

	default:
		if !leafEqual(a, b) {
			w.changed(p, a, b)
		}
	}
}

// unwrap replaces interface values with their dynamic value. A nil interface becomes the invalid Value.
func unwrap(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func leafEqual(a, b reflect.Value) bool {
	if a.Kind() != reflect.Struct && a.Comparable() && b.Comparable() {
		return a.Equal(b)
	}
	if !a.CanInterface() || !b.CanInterface() {
		return true
	}
	return reflect.DeepEqual(a.Interface(), b.Interface())
}

func index(i int) string {
	return strconv.Itoa(i)
}

func hasExportedFields(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			return true
		}
	}
	return false
}

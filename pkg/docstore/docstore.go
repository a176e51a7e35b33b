// Package docstore is a ready-made store over a JSON-like document (map[string]any),
// with generic path-addressed actions. It backs the CLI, HTTP and MCP surfaces, where
// state and payloads arrive as decoded JSON or YAML.
package docstore

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/aretw0/statekit/pkg/diff"
	"github.com/aretw0/statekit/pkg/domain"
	"github.com/aretw0/statekit/pkg/path"
	"github.com/aretw0/statekit/pkg/store"
)

// Document is the state held by a docstore.
type Document = map[string]any

const (
	ActionSet    = "set"
	ActionDelete = "delete"
	ActionAppend = "append"
	ActionMerge  = "merge"
)

var (
	// ErrNotContainer is returned when a path walks through a scalar value.
	ErrNotContainer = errors.New("value is not a map or list")
	// ErrRootDelete is returned when deleting ".".
	ErrRootDelete = errors.New("cannot delete the document root")
)

// SetPayload replaces the value at Path, creating intermediate maps.
type SetPayload struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// DeletePayload removes the map key or list element at Path.
type DeletePayload struct {
	Path string `json:"path"`
}

// AppendPayload appends Value to the list at Path, creating it when missing.
type AppendPayload struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// MergePayload copies the keys of Value into the map at Path, creating it when missing.
type MergePayload struct {
	Path  string         `json:"path"`
	Value map[string]any `json:"value"`
}

// Actions are the bound document actions.
type Actions struct {
	Set    store.Action[SetPayload]
	Delete store.Action[DeletePayload]
	Append store.Action[AppendPayload]
	Merge  store.Action[MergePayload]
}

// New creates a document store with the document actions registered.
// A nil initial document starts empty.
func New(initial Document, opts ...store.Option) (*store.Store[Document], error) {
	if initial == nil {
		initial = Document{}
	}
	s, err := store.New(initial, opts...)
	if err != nil {
		return nil, err
	}
	Register(s)
	return s, nil
}

// Register defines the document actions on s.
func Register(s *store.Store[Document]) Actions {
	return Actions{
		Set:    store.DefineAction(s, ActionSet, set),
		Delete: store.DefineAction(s, ActionDelete, del),
		Append: store.DefineAction(s, ActionAppend, appendValue),
		Merge:  store.DefineAction(s, ActionMerge, merge),
	}
}

func set(doc Document, p SetPayload) (domain.Scope, error) {
	segs, err := path.Parse(p.Path)
	if err != nil {
		return nil, err
	}
	value := diff.Clone(p.Value)
	if segs.IsRoot() {
		m, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("root: %w", ErrNotContainer)
		}
		clear(doc)
		for k, v := range m {
			doc[k] = v
		}
		return domain.FullDiff, nil
	}

	parent, err := walk(doc, segs, true)
	if err != nil {
		return nil, err
	}
	if err := put(doc, segs, parent, value); err != nil {
		return nil, err
	}
	return domain.ScopeOf(segs.String()), nil
}

func del(doc Document, p DeletePayload) (domain.Scope, error) {
	segs, err := path.Parse(p.Path)
	if err != nil {
		return nil, err
	}
	if segs.IsRoot() {
		return nil, ErrRootDelete
	}

	parent, err := walk(doc, segs, false)
	if err != nil {
		return nil, err
	}
	last := segs[len(segs)-1]
	switch c := parent.(type) {
	case map[string]any:
		if _, ok := c[last]; !ok {
			return nil, notFound(segs, last)
		}
		delete(c, last)
		return domain.ScopeOf(segs.String()), nil
	case []any:
		i, ok := index(c, last)
		if !ok {
			return nil, notFound(segs, last)
		}
		// Later elements shift, so the whole list is in scope.
		owner := segs[:len(segs)-1]
		if err := put(doc, owner, mustParent(doc, owner), append(c[:i:i], c[i+1:]...)); err != nil {
			return nil, err
		}
		return domain.ScopeOf(owner.String()), nil
	}
	return nil, fmt.Errorf("%s: %w", segs[:len(segs)-1], ErrNotContainer)
}

func appendValue(doc Document, p AppendPayload) (domain.Scope, error) {
	segs, err := path.Parse(p.Path)
	if err != nil {
		return nil, err
	}
	if segs.IsRoot() {
		return nil, fmt.Errorf("root: %w", ErrNotContainer)
	}

	parent, err := walk(doc, segs, true)
	if err != nil {
		return nil, err
	}
	var list []any
	if current, ok := get(parent, segs[len(segs)-1]); ok && current != nil {
		if list, ok = current.([]any); !ok {
			return nil, fmt.Errorf("%s: %w", segs, ErrNotContainer)
		}
	}
	if err := put(doc, segs, parent, append(list, diff.Clone(p.Value))); err != nil {
		return nil, err
	}
	return domain.ScopeOf(segs.String()), nil
}

func merge(doc Document, p MergePayload) (domain.Scope, error) {
	segs, err := path.Parse(p.Path)
	if err != nil {
		return nil, err
	}
	if len(p.Value) == 0 {
		return domain.NoOp, nil
	}
	values := diff.Clone(p.Value)
	if segs.IsRoot() {
		for k, v := range values {
			doc[k] = v
		}
		return domain.FullDiff, nil
	}

	parent, err := walk(doc, segs, true)
	if err != nil {
		return nil, err
	}
	target, _ := get(parent, segs[len(segs)-1])
	m, ok := target.(map[string]any)
	if target != nil && !ok {
		return nil, fmt.Errorf("%s: %w", segs, ErrNotContainer)
	}
	if m == nil {
		m = make(map[string]any, len(values))
		if err := put(doc, segs, parent, m); err != nil {
			return nil, err
		}
	}
	for k, v := range values {
		m[k] = v
	}
	return domain.ScopeOf(segs.String()), nil
}

// walk returns the container holding the last segment of segs.
// With create set, missing intermediate map entries are created as maps.
func walk(doc Document, segs domain.Path, create bool) (any, error) {
	var cur any = doc
	for i, seg := range segs[:len(segs)-1] {
		next, ok := get(cur, seg)
		if !ok || next == nil {
			m, isMap := cur.(map[string]any)
			if !create || !isMap {
				return nil, notFound(segs[:i+1], seg)
			}
			next = map[string]any{}
			m[seg] = next
		}
		switch next.(type) {
		case map[string]any, []any:
		default:
			return nil, fmt.Errorf("%s: %w", segs[:i+1], ErrNotContainer)
		}
		cur = next
	}
	return cur, nil
}

func mustParent(doc Document, segs domain.Path) any {
	if segs.IsRoot() {
		return doc
	}
	parent, _ := walk(doc, segs, false)
	return parent
}

func get(container any, seg string) (any, bool) {
	switch c := container.(type) {
	case map[string]any:
		v, ok := c[seg]
		return v, ok
	case []any:
		i, ok := index(c, seg)
		if !ok {
			return nil, false
		}
		return c[i], true
	}
	return nil, false
}

// put stores v under the last segment of segs inside parent.
func put(doc Document, segs domain.Path, parent any, v any) error {
	if segs.IsRoot() {
		m, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("root: %w", ErrNotContainer)
		}
		clear(doc)
		for k, val := range m {
			doc[k] = val
		}
		return nil
	}
	last := segs[len(segs)-1]
	switch c := parent.(type) {
	case map[string]any:
		c[last] = v
		return nil
	case []any:
		i, ok := index(c, last)
		if !ok {
			return notFound(segs, last)
		}
		c[i] = v
		return nil
	}
	return fmt.Errorf("%s: %w", segs[:len(segs)-1], ErrNotContainer)
}

func index(list []any, seg string) (int, bool) {
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 || i >= len(list) {
		return 0, false
	}
	return i, true
}

func notFound(segs domain.Path, seg string) error {
	return &domain.PathResolutionError{Path: segs.String(), Segment: seg, Err: domain.ErrPathNotFound}
}

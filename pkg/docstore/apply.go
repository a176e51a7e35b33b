package docstore

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/aretw0/statekit/pkg/diff"
	"github.com/aretw0/statekit/pkg/domain"
)

// Apply replays delta onto doc, outside of any store. Additions and replacements
// are applied in delta order, then removals from the last path backwards so that
// trailing list elements are dropped before the ones before them.
func Apply(doc Document, delta domain.Delta) error {
	var removals []domain.Change
	for _, c := range delta {
		if c.Kind == domain.ChangeRemoved {
			removals = append(removals, c)
			continue
		}
		if err := applySet(doc, c.Path, diff.Clone(c.NewValue)); err != nil {
			return fmt.Errorf("apply %s: %w", c.Path, err)
		}
	}
	for _, c := range slices.Backward(removals) {
		if err := applyRemove(doc, c.Path); err != nil {
			return fmt.Errorf("apply %s: %w", c.Path, err)
		}
	}
	return nil
}

// Replay applies the deltas in order.
func Replay(doc Document, deltas ...domain.Delta) error {
	for _, d := range deltas {
		if err := Apply(doc, d); err != nil {
			return err
		}
	}
	return nil
}

func applySet(doc Document, segs domain.Path, v any) error {
	if segs.IsRoot() {
		return put(doc, segs, doc, v)
	}
	parent, err := walk(doc, segs, true)
	if err != nil {
		return err
	}
	if list, ok := parent.([]any); ok {
		if i, err := strconv.Atoi(segs[len(segs)-1]); err == nil && i == len(list) {
			owner := segs[:len(segs)-1]
			return put(doc, owner, mustParent(doc, owner), append(list, v))
		}
	}
	return put(doc, segs, parent, v)
}

func applyRemove(doc Document, segs domain.Path) error {
	if segs.IsRoot() {
		clear(doc)
		return nil
	}
	parent, err := walk(doc, segs, false)
	if err != nil {
		return err
	}
	last := segs[len(segs)-1]
	switch c := parent.(type) {
	case map[string]any:
		delete(c, last)
		return nil
	case []any:
		i, ok := index(c, last)
		if !ok {
			return notFound(segs, last)
		}
		owner := segs[:len(segs)-1]
		return put(doc, owner, mustParent(doc, owner), c[:i:i])
	}
	return fmt.Errorf("%s: %w", segs[:len(segs)-1], ErrNotContainer)
}

package store

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/statekit/pkg/domain"
)

// Actions returns the names of all defined actions, sorted.
func (s *Store[S]) Actions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.actions))
}

// Lookup resolves an action by name. When available is non-empty, only the names it
// lists can be invoked; other defined actions resolve as domain.LookupUnavailable.
// Unknown names are reported through the status, not as an error.
func (s *Store[S]) Lookup(name string, available ...string) domain.Lookup {
	s.mu.RLock()
	b, ok := s.actions[name]
	s.mu.RUnlock()

	switch {
	case !ok:
		return domain.Lookup{Status: domain.LookupUnknown, Name: name}
	case len(available) > 0 && !slices.Contains(available, name):
		return domain.Lookup{Status: domain.LookupUnavailable, Name: name, Async: b.async}
	}
	return domain.Lookup{
		Status: domain.LookupOK,
		Name:   name,
		Async:  b.async,
		Invoke: b.invoke,
	}
}

// Dispatch looks up name and invokes it with payload.
// Failed lookups return domain.ErrUnknownAction or domain.ErrUnavailableAction.
func (s *Store[S]) Dispatch(ctx context.Context, name string, payload any, available ...string) error {
	l := s.Lookup(name, available...)
	if !l.OK() {
		return fmt.Errorf("%w: %q", l.Err(), name)
	}
	return l.Invoke(ctx, payload)
}

// decode converts a generic payload (typically map[string]any from JSON) into P.
func decode[P any](action string, payload any) (P, error) {
	var out P
	if payload == nil {
		return out, nil
	}
	if p, ok := payload.(P); ok {
		return p, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return out, &domain.PayloadError{Action: action, Err: err}
	}
	if err := dec.Decode(payload); err != nil {
		return out, &domain.PayloadError{Action: action, Err: err}
	}
	return out, nil
}

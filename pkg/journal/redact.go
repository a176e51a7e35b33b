package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/aretw0/statekit/pkg/domain"
	"github.com/aretw0/statekit/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type redactMiddleware struct {
	ports.Journal
	patterns []*regexp.Regexp
}

// NewRedactMiddleware creates a middleware that masks values whose key or path segment
// matches one of the patterns, in records and snapshots alike. The deltas and states
// seen by the rest of the application are never modified.
func NewRedactMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.Journal) ports.Journal {
		return &redactMiddleware{Journal: next, patterns: patterns}
	}, nil
}

func (m *redactMiddleware) Record(ctx context.Context, rec domain.Record) error {
	// Subscribers share the delta, so build a new one.
	changes := make(domain.Delta, len(rec.Changes))
	for i, c := range rec.Changes {
		if m.matchesPath(c.Path) {
			if c.OldValue != nil {
				c.OldValue = Mask
			}
			if c.NewValue != nil {
				c.NewValue = Mask
			}
		} else {
			var err error
			if c.OldValue, err = m.redact(c.OldValue); err != nil {
				return err
			}
			if c.NewValue, err = m.redact(c.NewValue); err != nil {
				return err
			}
		}
		changes[i] = c
	}
	rec.Changes = changes
	return m.Journal.Record(ctx, rec)
}

func (m *redactMiddleware) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
	var state any
	if err := json.Unmarshal(snap.State, &state); err != nil {
		return fmt.Errorf("failed to decode snapshot for redaction: %w", err)
	}
	masked, err := json.Marshal(m.mask(state))
	if err != nil {
		return fmt.Errorf("failed to encode redacted snapshot: %w", err)
	}
	snap.State = masked
	return m.Journal.SaveSnapshot(ctx, snap)
}

// redact converts v to its JSON shape, which copies it, and masks matching keys.
func (m *redactMiddleware) redact(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value for redaction: %w", err)
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("failed to decode value for redaction: %w", err)
	}
	return m.mask(generic), nil
}

func (m *redactMiddleware) matchesPath(p domain.Path) bool {
	for _, seg := range p {
		if m.matches(seg) {
			return true
		}
	}
	return false
}

func (m *redactMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

// mask redacts matching keys inside a decoded JSON value, in place.
func (m *redactMiddleware) mask(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if m.matches(k) {
				t[k] = Mask
				continue
			}
			t[k] = m.mask(val)
		}
	case []any:
		for i, val := range t {
			t[i] = m.mask(val)
		}
	}
	return v
}

package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/statekit/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestDelta_Affects(t *testing.T) {
	delta := domain.Delta{
		{Path: domain.Path{"data", "name"}, Kind: domain.ChangeAdded, NewValue: "Alice"},
	}

	tests := []struct {
		path string
		want bool
	}{
		{"data.name", true},
		{"data", true},
		{"name", true},
		{".", true},
		{"data.name.first", true}, // ancestor replaced
		{"data.other", false},
		{"other", false},
		{"data.nam", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, delta.Affects(tt.path))
		})
	}

	assert.False(t, domain.Delta{}.Affects("."), "empty delta affects nothing")
}

func TestDelta_SortAndPaths(t *testing.T) {
	delta := domain.Delta{
		{Path: domain.Path{"items", "10"}, Kind: domain.ChangeAdded},
		{Path: domain.Path{"b"}, Kind: domain.ChangeChanged},
		{Path: domain.Path{"items", "9"}, Kind: domain.ChangeAdded},
		{Path: domain.Path{"a", "z"}, Kind: domain.ChangeRemoved},
		{Path: domain.Path{"a"}, Kind: domain.ChangeChanged},
	}
	delta.Sort()

	assert.Equal(t, []string{"a", "a.z", "b", "items.9", "items.10"}, delta.Paths())

	c, ok := delta.Find("items.10")
	assert.True(t, ok)
	assert.Equal(t, domain.ChangeAdded, c.Kind)

	_, ok = delta.Find("items.11")
	assert.False(t, ok)
}

func TestScope_Sentinels(t *testing.T) {
	assert.True(t, domain.NoOp.IsNoOp())
	assert.False(t, domain.NoOp.IsFull())
	assert.True(t, domain.FullDiff.IsFull())
	assert.True(t, domain.ScopeOf("a.b", ".", "c").IsFull(), "root collapses the scope")
	assert.False(t, domain.ScopeOf("a.b").IsFull())
}

func TestPath_Helpers(t *testing.T) {
	root := domain.Path{}
	assert.Equal(t, ".", root.String())
	assert.True(t, root.IsRoot())

	p := root.Child("b").Child("c")
	assert.Equal(t, "b.c", p.String())
	assert.True(t, p.HasPrefix(domain.Path{"b"}))
	assert.True(t, p.HasPrefix(root))
	assert.False(t, domain.Path{"b"}.HasPrefix(p))
	assert.Equal(t, "x.b.c", domain.Path{"x"}.Join(p).String())
}

func TestErrors_Unwrap(t *testing.T) {
	pathErr := &domain.PathResolutionError{Path: "a.b", Segment: "b", Err: domain.ErrPathNotFound}
	wrapped := fmt.Errorf("action %q: %w", "set", pathErr)
	assert.ErrorIs(t, wrapped, domain.ErrPathNotFound)

	var target *domain.PathResolutionError
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "b", target.Segment)

	cause := errors.New("boom")
	assert.ErrorIs(t, &domain.HandlerError{Action: "set", Err: cause}, cause)
	assert.ErrorIs(t, &domain.AsyncPhaseError{Action: "fetch", Err: cause}, cause)

	payloadErr := &domain.PayloadError{Action: "set", Err: cause}
	assert.ErrorIs(t, payloadErr, domain.ErrInvalidPayload)
	assert.ErrorIs(t, payloadErr, cause)
}

func TestLookup_Err(t *testing.T) {
	assert.NoError(t, domain.Lookup{Status: domain.LookupOK}.Err())
	assert.ErrorIs(t, domain.Lookup{}.Err(), domain.ErrUnknownAction)
	assert.ErrorIs(t, domain.Lookup{Status: domain.LookupUnavailable}.Err(), domain.ErrUnavailableAction)
	assert.Equal(t, "unavailable", domain.LookupUnavailable.String())
}

package path_test

import (
	"testing"

	"github.com/aretw0/statekit/pkg/domain"
	"github.com/aretw0/statekit/pkg/path"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	Name   string          `json:"name"`
	Tags   []string        `json:"tags"`
	Scores map[int]float64 `json:"scores"`
	Flags  map[string]bool `json:"flags"`
	Extra  map[string]any  `json:"extra,omitempty"`
	Next   *profile        `json:"next"`
	Plain  string
	hidden string
}

type root struct {
	Users map[string]*profile `json:"users"`
	Seen  map[string]struct{} `json:"seen"`
	Grid  [2][2]int           `json:"grid"`
}

func fixture() *root {
	return &root{
		Users: map[string]*profile{
			"ada": {
				Name:   "Ada",
				Tags:   []string{"math", "engines"},
				Scores: map[int]float64{1: 9.5},
				Flags:  map[string]bool{"admin": true},
				Extra:  map[string]any{"nested": map[string]any{"deep": 42}},
				Plain:  "p",
				hidden: "h",
			},
		},
		Seen: map[string]struct{}{"ada": {}},
		Grid: [2][2]int{{1, 2}, {3, 4}},
	}
}

func TestParse(t *testing.T) {
	p, err := path.Parse(".")
	require.NoError(t, err)
	assert.True(t, p.IsRoot())

	p, err = path.Parse("a.b.0")
	require.NoError(t, err)
	assert.Equal(t, domain.Path{"a", "b", "0"}, p)

	for _, bad := range []string{"", "a..b", ".a", "a."} {
		_, err := path.Parse(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidPath, bad)
	}
}

func TestResolve(t *testing.T) {
	state := fixture()

	tests := []struct {
		path string
		want any
	}{
		{"users.ada.name", "Ada"},
		{"users.ada.Name", "Ada"},
		{"users.ada.Plain", "p"},
		{"users.ada.tags.1", "engines"},
		{"users.ada.scores.1", 9.5},
		{"users.ada.flags.admin", true},
		{"users.ada.extra.nested.deep", 42},
		{"seen.ada", struct{}{}},
		{"grid.1.0", 3},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := path.Resolve(state, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	whole, err := path.Resolve(state, ".")
	require.NoError(t, err)
	assert.Same(t, state, whole)
}

func TestResolve_Missing(t *testing.T) {
	state := fixture()

	tests := []struct {
		path    string
		segment string
	}{
		{"users.bob", "bob"},
		{"users.ada.missing", "missing"},
		{"users.ada.hidden", "hidden"},
		{"users.ada.tags.2", "2"},
		{"users.ada.tags.-1", "-1"},
		{"users.ada.scores.x", "x"},
		{"users.ada.next.name", "name"},
		{"users.ada.name.length", "length"},
		{"grid.2", "2"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := path.Resolve(state, tt.path)
			require.ErrorIs(t, err, domain.ErrPathNotFound)

			var perr *domain.PathResolutionError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.segment, perr.Segment)
		})
	}
}

func TestResolve_NilRoot(t *testing.T) {
	_, err := path.Resolve(nil, "a")
	assert.ErrorIs(t, err, domain.ErrPathNotFound)

	var m map[string]any
	_, err = path.Resolve(m, "a")
	assert.ErrorIs(t, err, domain.ErrPathNotFound)
}

type Base struct {
	X int `json:"x"`
}

type derived struct {
	*Base
	Y int `json:"y"`
}

func TestResolve_EmbeddedStruct(t *testing.T) {
	v, err := path.Resolve(&derived{Base: &Base{X: 3}}, "Base.x")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	tests := []struct {
		name  string
		state *derived
		path  string
	}{
		{"promoted name", &derived{Base: &Base{X: 3}}, "x"},
		{"promoted go name", &derived{Base: &Base{X: 3}}, "X"},
		{"promoted through nil embed", &derived{}, "X"},
		{"field through nil embed", &derived{}, "Base.x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := path.Resolve(tt.state, tt.path)
			assert.ErrorIs(t, err, domain.ErrPathNotFound)
		})
	}

	v, err = path.Resolve(&derived{}, "Base")
	require.NoError(t, err)
	assert.Nil(t, v.(*Base))
}

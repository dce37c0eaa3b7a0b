package ecs

import (
	"testing"

	"github.com/argus-labs/lattice/assert"
	"github.com/argus-labs/lattice/internal/testutils"
)

// newSearchWorld builds a small population to search over: two position-only entities, one with
// position and health, one with health alone.
func newSearchWorld(t *testing.T) *World {
	t.Helper()

	w := newBareWorld(t)
	assert.NilError(t, RegisterComponent[testutils.Position](w))
	assert.NilError(t, RegisterComponent[testutils.Health](w))

	ws := w.State()
	_, err := Spawn(ws, testutils.Position{X: 1})
	assert.NilError(t, err)
	_, err = Spawn(ws, testutils.Position{X: 2})
	assert.NilError(t, err)
	_, err = Spawn(ws, testutils.Position{X: 3}, testutils.Health{Value: 100})
	assert.NilError(t, err)
	_, err = Spawn(ws, testutils.Health{Value: 30})
	assert.NilError(t, err)
	return w
}

func TestSearchValidatesParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		params  SearchParam
		wantErr string
	}{
		{
			name:    "empty params",
			params:  SearchParam{},
			wantErr: "component list cannot be empty",
		},
		{
			name:    "missing match mode",
			params:  SearchParam{Find: []string{"position"}},
			wantErr: "invalid `match` value",
		},
		{
			name:    "unknown match mode",
			params:  SearchParam{Find: []string{"position"}, Match: "fuzzy"},
			wantErr: "invalid `match` value",
		},
		{
			name: "query mixed with find",
			params: SearchParam{
				Query: "WITH(position)",
				Find:  []string{"position"},
				Match: MatchContains,
			},
			wantErr: "Query cannot be combined with Find/Match",
		},
		{
			name: "unregistered component",
			params: SearchParam{
				Find:  []string{"mystery"},
				Match: MatchContains,
			},
			wantErr: "component mystery not registered",
		},
		{
			name: "malformed query expression",
			params: SearchParam{
				Query: "WITH(",
			},
			wantErr: "invalid search query",
		},
		{
			name: "query over unregistered component",
			params: SearchParam{
				Query: "WITH(mystery)",
			},
			wantErr: `unknown component "mystery"`,
		},
		{
			name: "malformed where clause",
			params: SearchParam{
				Find:  []string{"position"},
				Match: MatchContains,
				Where: "position.X >",
			},
			wantErr: "failed to parse where clause",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := newSearchWorld(t)
			_, err := w.Search(tt.params)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSearchContainsCrossesArchetypes(t *testing.T) {
	t.Parallel()

	w := newSearchWorld(t)
	results, err := w.Search(SearchParam{Find: []string{"position"}, Match: MatchContains})
	assert.NilError(t, err)
	assert.Equal(t, 3, len(results))

	xs := make(map[float64]bool)
	for _, row := range results {
		pos, ok := row["position"].(testutils.Position)
		assert.Check(t, ok, "component values keep their Go type")
		xs[pos.X] = true
	}
	assert.Check(t, xs[1] && xs[2] && xs[3])
}

func TestSearchExactMatchesOneSignature(t *testing.T) {
	t.Parallel()

	w := newSearchWorld(t)
	results, err := w.Search(SearchParam{Find: []string{"position"}, Match: MatchExact})
	assert.NilError(t, err)
	assert.Equal(t, 2, len(results), "the position+health entity has a different signature")

	for _, row := range results {
		_, hasHealth := row["health"]
		assert.Check(t, !hasHealth)
	}
}

func TestSearchRowsCarryEntityID(t *testing.T) {
	t.Parallel()

	w := newBareWorld(t)
	assert.NilError(t, RegisterComponent[testutils.Health](w))
	e, err := Spawn(w.State(), testutils.Health{Value: 1})
	assert.NilError(t, err)

	results, err := w.Search(SearchParam{Find: []string{"health"}, Match: MatchExact})
	assert.NilError(t, err)
	assert.Equal(t, 1, len(results))
	assert.Equal(t, e.String(), results[0]["_id"])
}

func TestSearchWhereFiltersOnValues(t *testing.T) {
	t.Parallel()

	w := newSearchWorld(t)
	results, err := w.Search(SearchParam{
		Find:  []string{"health"},
		Match: MatchContains,
		Where: "health.Value > 50",
	})
	assert.NilError(t, err)
	assert.Equal(t, 1, len(results))
	assert.Equal(t, testutils.Health{Value: 100}, results[0]["health"])
}

func TestSearchWhereMustBeBoolean(t *testing.T) {
	t.Parallel()

	w := newSearchWorld(t)
	_, err := w.Search(SearchParam{
		Find:  []string{"health"},
		Match: MatchContains,
		Where: "health.Value + 1",
	})
	assert.ErrorContains(t, err, "invalid where clause")
}

func TestSearchByQueryExpression(t *testing.T) {
	t.Parallel()

	w := newSearchWorld(t)

	results, err := w.Search(SearchParam{Query: "WITH(position) & WITHOUT(health)"})
	assert.NilError(t, err)
	assert.Equal(t, 2, len(results))

	results, err = w.Search(SearchParam{Query: "WITH(position, health)"})
	assert.NilError(t, err)
	assert.Equal(t, 1, len(results))

	results, err = w.Search(SearchParam{Query: "ALL()"})
	assert.NilError(t, err)
	assert.Equal(t, 4, len(results))
}

func TestSearchQuerySeesChangeWindows(t *testing.T) {
	t.Parallel()

	w := newSearchWorld(t)
	results, err := w.Search(SearchParam{Query: "ADDED(health)"})
	assert.NilError(t, err)
	assert.Equal(t, 0, len(results), "assembly spawns are still staged")

	w.State().rotateChangeWindows()

	results, err = w.Search(SearchParam{Query: "ADDED(health)"})
	assert.NilError(t, err)
	assert.Equal(t, 2, len(results))
}

func TestWorldFilterCompilesAgainstRegistry(t *testing.T) {
	t.Parallel()

	w := newSearchWorld(t)
	f, err := w.Filter("WITH(position) & !CHANGED(health)")
	assert.NilError(t, err)
	assert.Equal(t, "(WITH(position) & !CHANGED(health))", f.String())

	_, err = w.Filter("WITH(mystery)")
	assert.ErrorContains(t, err, `unknown component "mystery"`)
}

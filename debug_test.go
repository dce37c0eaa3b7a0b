package lattice

import (
	"testing"
	"time"

	"github.com/argus-labs/lattice/assert"
	"github.com/argus-labs/lattice/ecs"
	"github.com/argus-labs/lattice/internal/codec"
	"github.com/argus-labs/lattice/internal/testutils"
)

func TestSearchJSONSerializesResults(t *testing.T) {
	t.Parallel()

	w := newTestWorld(t, WorldOptions{})
	assert.NilError(t, RegisterComponent[testutils.Position](w))
	assert.NilError(t, RegisterComponent[testutils.Health](w))
	assert.NilError(t, w.Init())

	_, err := ecs.Spawn(w.State(), testutils.Position{X: 1}, testutils.Health{Value: 10})
	assert.NilError(t, err)
	brute, err := ecs.Spawn(w.State(), testutils.Position{X: 2}, testutils.Health{Value: 90})
	assert.NilError(t, err)
	assert.NilError(t, w.Tick(time.Now()))

	data, err := w.SearchJSON(ecs.SearchParam{
		Find:  []string{"position"},
		Match: ecs.MatchContains,
		Where: "health.Value > 50",
	})
	assert.NilError(t, err)

	results, err := codec.Decode[[]map[string]any](data)
	assert.NilError(t, err)
	assert.Equal(t, 1, len(results))

	entry := results[0]
	assert.Equal(t, brute.String(), entry["_id"])
	assert.Equal(t, 2.0, entry["position"].(map[string]any)["X"])
	assert.Equal(t, 90.0, entry["health"].(map[string]any)["value"])
}

func TestSearchJSONPropagatesValidationErrors(t *testing.T) {
	t.Parallel()

	w := newTestWorld(t, WorldOptions{})
	assert.NilError(t, w.Init())

	_, err := w.SearchJSON(ecs.SearchParam{})
	assert.ErrorContains(t, err, "invalid search params")
}

func TestComponentSchemasListsRegisteredComponents(t *testing.T) {
	t.Parallel()

	w := newTestWorld(t, WorldOptions{})
	assert.NilError(t, RegisterComponent[testutils.Position](w))
	assert.NilError(t, RegisterComponent[testutils.Health](w))

	schemas, err := w.ComponentSchemas()
	assert.NilError(t, err)
	assert.Equal(t, 2, len(schemas))

	pos, ok := schemas["position"]
	assert.Assert(t, ok, "position schema missing")
	_, hasRef := pos["$ref"]
	assert.Assert(t, hasRef, "schema must keep its $ref")
	_, hasDefs := pos["$defs"]
	assert.Assert(t, hasDefs, "schema must keep its $defs")
	_, leaked := pos["$schema"]
	assert.Assert(t, !leaked, "$schema boilerplate must be stripped")

	_, ok = schemas["health"]
	assert.Assert(t, ok, "health schema missing")
}

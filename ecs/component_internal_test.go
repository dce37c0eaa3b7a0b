package ecs

import (
	"testing"

	"github.com/kelindar/bitmap"

	"github.com/argus-labs/lattice/assert"
	"github.com/argus-labs/lattice/internal/testutils"
)

// mana and manaReshaped carry the same component name with different layouts, which must be
// rejected as a registration conflict.
type mana struct{ Value int }

func (mana) Name() string { return "mana" }

type manaReshaped struct {
	Current int
	Max     int
}

func (manaReshaped) Name() string { return "mana" }

func TestRegisterComponentAssignsSequentialIDs(t *testing.T) {
	t.Parallel()

	cm := newComponentManager()

	hid, err := registerComponent[testutils.Health](&cm)
	assert.NilError(t, err)
	pid, err := registerComponent[testutils.Position](&cm)
	assert.NilError(t, err)

	assert.Equal(t, componentID(0), hid)
	assert.Equal(t, componentID(1), pid)

	got, err := cm.idOf("position")
	assert.NilError(t, err)
	assert.Equal(t, pid, got)
}

func TestRegisterComponentIsIdempotent(t *testing.T) {
	t.Parallel()

	cm := newComponentManager()

	first, err := registerComponent[testutils.Health](&cm)
	assert.NilError(t, err)
	second, err := registerComponent[testutils.Health](&cm)
	assert.NilError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, componentID(1), cm.nextID)
}

func TestRegisterComponentRejectsEmptyName(t *testing.T) {
	t.Parallel()

	cm := newComponentManager()
	_, err := registerComponent[testutils.NoName](&cm)
	assert.ErrorContains(t, err, "name cannot be empty")
}

func TestRegisterComponentRejectsConflictingLayout(t *testing.T) {
	t.Parallel()

	cm := newComponentManager()
	_, err := registerComponent[mana](&cm)
	assert.NilError(t, err)

	_, err = registerComponent[manaReshaped](&cm)
	assert.ErrorIs(t, err, ErrTypeRegistrationConflict)
}

func TestIDOfUnknownComponent(t *testing.T) {
	t.Parallel()

	cm := newComponentManager()
	_, err := cm.idOf("ghost")
	assert.ErrorIs(t, err, ErrComponentNotFound)
}

func TestToSignatureCollapsesDuplicates(t *testing.T) {
	t.Parallel()

	cm := newComponentManager()
	_, err := registerComponent[testutils.Position](&cm)
	assert.NilError(t, err)
	_, err = registerComponent[testutils.Health](&cm)
	assert.NilError(t, err)

	signature, err := cm.toSignature([]Component{
		testutils.Position{X: 1},
		testutils.Health{Value: 5},
		testutils.Position{X: 2},
	})
	assert.NilError(t, err)
	assert.Equal(t, 2, signature.Count())
	assert.Check(t, signature.Contains(0))
	assert.Check(t, signature.Contains(1))
}

func TestToSignatureRequiresRegistration(t *testing.T) {
	t.Parallel()

	cm := newComponentManager()
	_, err := cm.toSignature([]Component{testutils.Velocity{}})
	assert.ErrorIs(t, err, ErrComponentNotFound)
}

func TestNewColumnsFollowAscendingComponentID(t *testing.T) {
	t.Parallel()

	cm := newComponentManager()
	_, err := registerComponent[testutils.Health](&cm)
	assert.NilError(t, err)
	_, err = registerComponent[testutils.Position](&cm)
	assert.NilError(t, err)
	_, err = registerComponent[testutils.Velocity](&cm)
	assert.NilError(t, err)

	var signature bitmap.Bitmap
	signature.Set(2)
	signature.Set(0)

	columns := cm.newColumns(signature)
	assert.Equal(t, 2, len(columns))
	assert.Equal(t, componentID(0), columns[0].id())
	assert.Equal(t, "health", columns[0].name())
	assert.Equal(t, componentID(2), columns[1].id())
	assert.Equal(t, "velocity", columns[1].name())
}

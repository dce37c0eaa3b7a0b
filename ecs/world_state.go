package ecs

import (
	"github.com/argus-labs/lattice/internal/assert"
	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"
)

// WorldState is the storage root of a world: the component registry, the archetype tables, the
// entity directory mapping handles to rows, the resource store, and the change tracking mode.
// Systems never touch it directly unless they hold exclusive world access.
type WorldState struct {
	components componentManager
	resources  resourceStore
	directory  entityDirectory
	archetypes []*archetype
	tracker    changeTracker
}

// newWorldState creates an empty world state.
func newWorldState() *WorldState {
	return &WorldState{
		components: newComponentManager(),
		resources:  newResourceStore(),
		directory:  newEntityDirectory(),
		archetypes: make([]*archetype, 0),
		tracker:    newChangeTracker(),
	}
}

// findOrCreateArchetype finds the archetype with the exact signature or creates a new one with
// columns derived from the registry. Archetypes are never destroyed: an emptied table persists
// as a placeholder for its signature and simply yields no rows.
func (ws *WorldState) findOrCreateArchetype(signature bitmap.Bitmap) *archetype {
	if arch := ws.archExact(signature); arch != nil {
		return arch
	}

	aid := archetypeID(len(ws.archetypes)) // aid = index in the archetypes array
	arch := newArchetype(aid, signature, ws.components.newColumns(signature), &ws.tracker)
	ws.archetypes = append(ws.archetypes, &arch)

	return ws.archetypes[aid]
}

// archExact returns the archetype whose signature matches exactly, or nil.
func (ws *WorldState) archExact(signature bitmap.Bitmap) *archetype {
	for _, arch := range ws.archetypes {
		if arch.matchesExactly(signature) {
			return arch
		}
	}
	return nil
}

// archContains returns all archetypes whose signature is a superset of the given one.
func (ws *WorldState) archContains(signature bitmap.Bitmap) []*archetype {
	var archs []*archetype
	for _, arch := range ws.archetypes {
		if arch.containsAll(signature) {
			archs = append(archs, arch)
		}
	}
	return archs
}

// setStaging flips where fresh change marks land: live into the current window, or staged for
// the next rotation. The world disables staging only while systems execute.
func (ws *WorldState) setStaging(staging bool) {
	ws.tracker.staging = staging
}

// rotateChangeWindows advances every column's change window by one tick and flushes staged
// marks. Called during the advancing phase and once at world initialization.
func (ws *WorldState) rotateChangeWindows() {
	for _, arch := range ws.archetypes {
		for i := range arch.marks {
			arch.marks[i].rotate()
		}
	}
}

// -------------------------------------------------------------------------------------------------
// Entity operations
// -------------------------------------------------------------------------------------------------

// spawnEntity creates an entity with the given component values. Every component type must be
// registered. Duplicate component types collapse to one column; the last value wins.
func (ws *WorldState) spawnEntity(components []Component) (Entity, error) {
	signature, err := ws.components.toSignature(components)
	if err != nil {
		return Entity{}, eris.Wrap(err, "failed to build entity signature")
	}

	arch := ws.findOrCreateArchetype(signature)
	e, err := ws.directory.alloc(arch.id, arch.rowCount())
	if err != nil {
		return Entity{}, eris.Wrap(err, "failed to allocate entity")
	}

	row := arch.pushRow(e)
	assert.That(row == arch.rowCount()-1, "directory row doesn't match the pushed row")

	for _, component := range components {
		cid, err := ws.components.idOf(component.Name())
		assert.That(err == nil, "signature built from unregistered component")
		arch.columns[arch.columnIndex(cid)].setAbstract(row, component)
	}
	arch.markRowAdded(row)

	return e, nil
}

// despawnEntity removes an entity and all its components. Returns false when the handle is stale
// or was never issued; the storage is untouched in that case.
func (ws *WorldState) despawnEntity(e Entity) bool {
	aid, row, ok := ws.directory.locate(e)
	if !ok {
		return false
	}

	arch := ws.archetypes[aid]
	if relocated, swapped := arch.swapRemoveRow(row); swapped {
		ws.directory.updateRow(relocated.index, row)
	}

	released := ws.directory.release(e)
	assert.That(released, "located entity must release")
	return true
}

// addComponent attaches a component to an entity, migrating its row to the archetype with the
// extended signature. Returns (false, nil) when the entity already has the component; the
// storage is untouched in that case. The component type registers itself on first use.
func addComponent[T Component](ws *WorldState, e Entity, component T) (bool, error) {
	cid, err := registerComponent[T](&ws.components)
	if err != nil {
		return false, err
	}

	aid, row, ok := ws.directory.locate(e)
	if !ok {
		return false, eris.Wrapf(ErrStaleEntity, "entity %s", e)
	}

	src := ws.archetypes[aid]
	if src.hasComponent(cid) {
		return false, nil
	}

	signature := src.signature.Clone(nil)
	signature.Set(cid)
	dst := ws.findOrCreateArchetype(signature)

	dstRow, relocated, swapped := src.moveRowTo(dst, row)
	if swapped {
		ws.directory.updateRow(relocated.index, row)
	}
	ws.directory.relocate(e, dst.id, dstRow)

	col := dst.columnIndex(cid)
	dst.columns[col].setAbstract(dstRow, component)
	dst.markColumnAdded(col, dstRow)

	return true, nil
}

// removeComponent detaches a component from an entity, migrating its row to the archetype with
// the narrowed signature. Returns (false, nil) when the entity doesn't have the component (or
// the type was never registered); the storage is untouched in that case.
func removeComponent[T Component](ws *WorldState, e Entity) (bool, error) {
	var zero T
	cid, err := ws.components.idOf(zero.Name())
	if err != nil {
		// A type that was never registered cannot be present on any entity.
		if eris.Is(err, ErrComponentNotFound) {
			if _, _, ok := ws.directory.locate(e); !ok {
				return false, eris.Wrapf(ErrStaleEntity, "entity %s", e)
			}
			return false, nil
		}
		return false, err
	}

	aid, row, ok := ws.directory.locate(e)
	if !ok {
		return false, eris.Wrapf(ErrStaleEntity, "entity %s", e)
	}

	src := ws.archetypes[aid]
	if !src.hasComponent(cid) {
		return false, nil
	}

	signature := src.signature.Clone(nil)
	signature.Remove(cid)
	dst := ws.findOrCreateArchetype(signature)

	dstRow, relocated, swapped := src.moveRowTo(dst, row)
	if swapped {
		ws.directory.updateRow(relocated.index, row)
	}
	ws.directory.relocate(e, dst.id, dstRow)

	return true, nil
}

// setComponent overwrites the value of a component the entity already has and marks the row
// mutated. The mark is set even when the new value equals the old one: mutation tracking follows
// write-capable access, not value difference.
func setComponent[T Component](ws *WorldState, e Entity, component T) error {
	aid, row, ok := ws.directory.locate(e)
	if !ok {
		return eris.Wrapf(ErrStaleEntity, "entity %s", e)
	}

	var zero T
	cid, err := ws.components.idOf(zero.Name())
	if err != nil {
		return err
	}

	arch := ws.archetypes[aid]
	col := arch.columnIndex(cid)
	if col < 0 {
		return eris.Wrapf(ErrComponentNotFound, "entity %s has no %q", e, zero.Name())
	}

	typed, okCol := arch.columns[col].(*column[T])
	assert.That(okCol, "column type doesn't match registered component type")
	typed.set(row, component)
	arch.markColumnMutated(col, row)

	return nil
}

// getComponent reads the value of a component on an entity. Reading never marks the row.
func getComponent[T Component](ws *WorldState, e Entity) (T, error) {
	var zero T

	aid, row, ok := ws.directory.locate(e)
	if !ok {
		return zero, eris.Wrapf(ErrStaleEntity, "entity %s", e)
	}

	cid, err := ws.components.idOf(zero.Name())
	if err != nil {
		return zero, err
	}

	arch := ws.archetypes[aid]
	col := arch.columnIndex(cid)
	if col < 0 {
		return zero, eris.Wrapf(ErrComponentNotFound, "entity %s has no %q", e, zero.Name())
	}

	typed, okCol := arch.columns[col].(*column[T])
	assert.That(okCol, "column type doesn't match registered component type")
	return typed.get(row), nil
}

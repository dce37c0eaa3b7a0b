package ecs

import (
	"github.com/argus-labs/lattice/internal/assert"
	"github.com/kelindar/bitmap"
)

// archetypeID is the unique identifier for an archetype.
// It is used internally to track and manage archetypes efficiently.
type archetypeID = int

// archetype is one columnar table: it holds every live entity whose component set equals the
// table's signature. Columns are kept in ascending component ID order, so two archetypes copy
// shared columns with a single merge pass when an entity migrates.
// NOTE: We store compCount instead of using Bitmap.Count() because counting bits is O(n) in the
// bitmap length. Columns live in a slice instead of a map because it's faster for the small
// component counts archetypes have in practice.
type archetype struct {
	id        archetypeID      // Corresponds to the index in the world's archetypes array
	signature bitmap.Bitmap    // Set of component IDs every entity in this table has
	entities  []Entity         // Row -> entity handle
	columns   []abstractColumn // Component data, one column per component in the signature
	marks     []columnMarks    // Change state per column, rows parallel to the columns
	tracker   *changeTracker   // Decides whether fresh marks are live or staged
	compCount int              // Number of component types in the signature
}

// newArchetype creates an empty archetype for the given signature. columns must be in ascending
// component ID order, matching the signature's bit order.
func newArchetype(aid archetypeID, signature bitmap.Bitmap, columns []abstractColumn, tracker *changeTracker) archetype {
	assert.That(signature.Count() == len(columns), "mismatched number of columns and components")
	return archetype{
		id:        aid,
		signature: signature,
		entities:  make([]Entity, 0),
		columns:   columns,
		marks:     make([]columnMarks, len(columns)),
		tracker:   tracker,
		compCount: len(columns),
	}
}

// matchesExactly returns true if the given signature matches the archetype's exactly.
func (a *archetype) matchesExactly(signature bitmap.Bitmap) bool {
	if a.compCount != signature.Count() {
		return false
	}
	return a.containsAll(signature)
}

// containsAll returns true if the archetype's signature is a superset of the given signature.
func (a *archetype) containsAll(signature bitmap.Bitmap) bool {
	intersect := signature.Clone(nil)
	intersect.And(a.signature)
	return intersect.Count() == signature.Count()
}

// hasComponent returns true if the component is part of the archetype's signature.
func (a *archetype) hasComponent(cid componentID) bool {
	return a.signature.Contains(cid)
}

// columnIndex returns the position of the component's column, or -1 when the component is not in
// the signature.
func (a *archetype) columnIndex(cid componentID) int {
	for i, col := range a.columns {
		if col.id() == cid {
			return i
		}
	}
	return -1
}

// rowCount returns the number of live rows in the table.
func (a *archetype) rowCount() int {
	return len(a.entities)
}

// -------------------------------------------------------------------------------------------------
// Row operations
// -------------------------------------------------------------------------------------------------

// pushRow appends a row for the entity with all columns zero-initialized and returns the new row
// index. It does not touch change marks; spawn and migration decide those separately.
func (a *archetype) pushRow(e Entity) int {
	a.entities = append(a.entities, e)

	for _, column := range a.columns {
		column.extend()
		assert.That(column.len() == len(a.entities), "column length doesn't match entities")
	}

	return len(a.entities) - 1
}

// markRowAdded marks every column of the row as freshly created. Used on spawn, where each
// component of the entity comes into existence at once.
func (a *archetype) markRowAdded(row int) {
	for i := range a.marks {
		a.marks[i].markAdded(row, a.tracker.staging)
	}
}

// markColumnAdded marks one column of the row as freshly created. Used when a component is added
// to an existing entity.
func (a *archetype) markColumnAdded(col, row int) {
	a.marks[col].markAdded(row, a.tracker.staging)
}

// markColumnMutated records a write-capable access to one column of the row.
func (a *archetype) markColumnMutated(col, row int) {
	a.marks[col].markMutated(row, a.tracker.staging)
}

// swapRemoveRow removes a row by swapping the last row into its place and truncating. Change
// marks travel with the swapped row. Returns the entity that now occupies the removed row's slot
// and whether such a relocation happened (it does not when the removed row was the last one);
// the caller fixes the directory for the relocated entity.
func (a *archetype) swapRemoveRow(row int) (relocated Entity, swapped bool) {
	last := len(a.entities) - 1
	assert.That(row >= 0 && row <= last, "row is not in the archetype")

	a.entities[row] = a.entities[last]
	a.entities = a.entities[:last]

	for i, column := range a.columns {
		column.remove(row)
		assert.That(column.len() == len(a.entities), "column length doesn't match entities")
		a.marks[i].swapRemove(row, last)
	}

	if row == last {
		return Entity{}, false
	}
	return a.entities[row], true
}

// moveRowTo migrates a row into another archetype: the destination gains a zero-initialized row
// for the entity, columns present in both signatures are copied together with their change
// marks, and the source row is swap-removed. Columns only the destination has stay zeroed and
// unmarked; the caller decides their value and change state. Returns the destination row plus
// the source-side relocation information from the swap removal.
func (a *archetype) moveRowTo(dst *archetype, row int) (dstRow int, relocated Entity, swapped bool) {
	assert.That(a.id != dst.id, "entity moved into its own archetype")

	e := a.entities[row]
	dstRow = dst.pushRow(e)

	// Both column slices are in ascending component ID order, so shared columns line up with a
	// single merge pass.
	i, j := 0, 0
	for i < len(a.columns) && j < len(dst.columns) {
		srcID, dstID := a.columns[i].id(), dst.columns[j].id()
		switch {
		case srcID == dstID:
			a.columns[i].copyRowTo(dst.columns[j], row, dstRow)
			dst.marks[j].copyRowFrom(&a.marks[i], row, dstRow)
			i++
			j++
		case srcID < dstID:
			i++
		default:
			j++
		}
	}

	relocated, swapped = a.swapRemoveRow(row)
	return dstRow, relocated, swapped
}

package ecs

import (
	"fmt"
	"math"

	"github.com/argus-labs/lattice/internal/assert"
	"github.com/rotisserie/eris"
)

// Entity is an opaque handle to a single entity: a directory index plus the generation the index
// had when the handle was issued. An (index, generation) pair is unique across the lifetime of
// the world. When an index is recycled its generation is bumped, so handles to the despawned
// entity become detectably stale instead of silently aliasing the new one.
type Entity struct {
	index      uint32
	generation uint32
}

// Index returns the directory index of the entity.
func (e Entity) Index() uint32 {
	return e.index
}

// Generation returns the generation the entity's index had when the handle was issued.
func (e Entity) Generation() uint32 {
	return e.generation
}

// IsNil reports whether the handle is the zero value. No live entity ever has generation zero.
func (e Entity) IsNil() bool {
	return e.generation == 0
}

func (e Entity) String() string {
	return fmt.Sprintf("%dv%d", e.index, e.generation)
}

// MaxEntityIndex is the maximum entity index that can be allocated.
const MaxEntityIndex = math.MaxUint32 - 1

const (
	// tombstoneRow marks a directory record whose index currently has no live entity.
	tombstoneRow = -1
	// firstGeneration is the generation assigned to a freshly allocated index. Generation zero is
	// reserved so the zero Entity value is never live.
	firstGeneration = 1
)

// entityRecord is one directory slot: the current generation for the index and, while the index
// is live, the (archetype, row) the entity's data lives at.
type entityRecord struct {
	generation uint32
	arch       archetypeID
	row        int
}

// entityDirectory maps entity indexes to their current archetype and row. It acts as the index
// from entity handle to storage location so lookups never scan archetypes. The records slice is
// dense: indexes are allocated sequentially and recycled through a FIFO free queue, and dead
// slots keep their (bumped) generation so stale handles fail the generation check.
//
// The directory is not safe for concurrent mutation. The world confines structural mutations to
// the apply phase and to assembly time; during system execution the directory is read-only.
type entityDirectory struct {
	records []entityRecord
	free    []uint32 // FIFO queue of despawned indexes awaiting reuse
	next    uint32   // The next index to allocate if no free indexes are available
	live    int      // Number of live entities
}

// newEntityDirectory creates an empty directory.
func newEntityDirectory() entityDirectory {
	const initialCapacity = 128
	return entityDirectory{
		records: make([]entityRecord, 0, initialCapacity),
		free:    make([]uint32, 0),
		next:    0,
		live:    0,
	}
}

// alloc issues a handle for a new live entity located at (arch, row). Recycled indexes keep the
// generation that was bumped when they were released.
func (d *entityDirectory) alloc(arch archetypeID, row int) (Entity, error) {
	assert.That(row >= 0, "row must be a non-negative index")

	var index uint32
	if len(d.free) > 0 {
		// Pop from the front of the free queue (FIFO).
		index = d.free[0]
		d.free = d.free[1:]
		d.records[index].arch = arch
		d.records[index].row = row
	} else {
		index = d.next
		if index > MaxEntityIndex {
			return Entity{}, eris.New("max number of entities exceeded")
		}
		d.next++
		d.records = append(d.records, entityRecord{
			generation: firstGeneration,
			arch:       arch,
			row:        row,
		})
	}

	d.live++
	return Entity{index: index, generation: d.records[index].generation}, nil
}

// release retires a live entity's index: the slot is tombstoned, the generation is bumped so
// outstanding handles go stale, and the index joins the free queue. Returns false for handles
// that are already stale or were never issued.
func (d *entityDirectory) release(e Entity) bool {
	if !d.alive(e) {
		return false
	}

	record := &d.records[e.index]
	record.row = tombstoneRow
	record.generation++
	if record.generation == 0 { // Skip the reserved zero generation on wraparound.
		record.generation = firstGeneration
	}

	d.free = append(d.free, e.index)
	d.live--
	return true
}

// locate returns the (archetype, row) of a live entity. Returns false when the handle is stale
// or was never issued.
func (d *entityDirectory) locate(e Entity) (archetypeID, int, bool) {
	if !d.alive(e) {
		return 0, 0, false
	}
	record := d.records[e.index]
	return record.arch, record.row, true
}

// relocate points a live entity at a new (archetype, row). Used when the entity migrates between
// archetypes.
func (d *entityDirectory) relocate(e Entity, arch archetypeID, row int) {
	assert.That(d.alive(e), "relocated entity must be alive")
	d.records[e.index].arch = arch
	d.records[e.index].row = row
}

// updateRow rewrites the row of a live entity identified by index alone. Used for swap-compaction
// fixups, where the caller knows the index is live because it just came out of an archetype's
// entities column.
func (d *entityDirectory) updateRow(index uint32, row int) {
	assert.That(int(index) < len(d.records), "fixup for an index that was never allocated")
	assert.That(d.records[index].row != tombstoneRow, "fixup for a dead entity")
	d.records[index].row = row
}

// alive reports whether the handle refers to a live entity: the index must be allocated, the
// generation must match, and the slot must not be tombstoned.
func (d *entityDirectory) alive(e Entity) bool {
	if int(e.index) >= len(d.records) {
		return false
	}
	record := d.records[e.index]
	return record.generation == e.generation && record.row != tombstoneRow
}

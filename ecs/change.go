package ecs

import (
	"github.com/kelindar/bitmap"
)

// changeTracker carries the world-level change tracking mode. The per-row bitsets themselves
// live beside each archetype column as columnMarks; the tracker only decides where a fresh mark
// lands. While systems execute, marks land in the live window so later systems in the same tick
// observe them. At any other time (assembly before the first tick, the apply phase between
// ticks), marks are staged and flushed at the next window rotation, attributing them to the
// first tick whose systems can actually observe the data.
type changeTracker struct {
	staging bool
}

func newChangeTracker() changeTracker {
	// Worlds assemble before they tick, so the tracker starts out staging.
	return changeTracker{staging: true}
}

// columnMarks is the change state of one archetype column: one bit per row in each window.
// added records rows whose component was created this tick. cur records write-capable accesses
// this tick, prev the same for the previous tick, giving Changed its two-tick visibility window.
// The staged pair buffers marks made outside the executing phase until the next rotation.
type columnMarks struct {
	added     bitmap.Bitmap
	cur       bitmap.Bitmap
	prev      bitmap.Bitmap
	stagedAdd bitmap.Bitmap
	stagedMut bitmap.Bitmap
}

// markAdded records that the component in the given row was created. An added row is also marked
// mutated so it stays visible to Changed filters for the full two-tick window.
func (m *columnMarks) markAdded(row int, staged bool) {
	if staged {
		m.stagedAdd.Set(uint32(row))
		m.stagedMut.Set(uint32(row))
		return
	}
	m.added.Set(uint32(row))
	m.cur.Set(uint32(row))
}

// markMutated records a write-capable access to the given row. The mark is set regardless of
// whether the written value differs from the previous one; read-only access paths must never
// call this.
func (m *columnMarks) markMutated(row int, staged bool) {
	if staged {
		m.stagedMut.Set(uint32(row))
		return
	}
	m.cur.Set(uint32(row))
}

// isAdded reports whether the row's component was created in the current window.
func (m *columnMarks) isAdded(row int) bool {
	return m.added.Contains(uint32(row))
}

// isChanged reports whether the row was added or received a write-capable access in the current
// or previous window.
func (m *columnMarks) isChanged(row int) bool {
	r := uint32(row)
	return m.added.Contains(r) || m.cur.Contains(r) || m.prev.Contains(r)
}

// swapRemove mirrors the archetype's swap-with-last row compaction: the last row's bits move
// into the removed row's slot and the last row's bits are cleared. Works for row == last, where
// it simply clears the dying row's bits.
func (m *columnMarks) swapRemove(row, last int) {
	src, dst := uint32(last), uint32(row)
	for _, b := range []*bitmap.Bitmap{&m.added, &m.cur, &m.prev, &m.stagedAdd, &m.stagedMut} {
		if b.Contains(src) {
			b.Set(dst)
		} else {
			b.Remove(dst)
		}
		b.Remove(src)
	}
}

// copyRowFrom copies the bit state of srcRow in src into dstRow of m. Used when an entity
// migrates between archetypes so its change history travels with it.
func (m *columnMarks) copyRowFrom(src *columnMarks, srcRow, dstRow int) {
	s, d := uint32(srcRow), uint32(dstRow)
	if src.added.Contains(s) {
		m.added.Set(d)
	}
	if src.cur.Contains(s) {
		m.cur.Set(d)
	}
	if src.prev.Contains(s) {
		m.prev.Set(d)
	}
	if src.stagedAdd.Contains(s) {
		m.stagedAdd.Set(d)
	}
	if src.stagedMut.Contains(s) {
		m.stagedMut.Set(d)
	}
}

// rotate advances the column's window by one tick: prev takes over cur, staged marks flush into
// the fresh cur and added, and the retired buffers are recycled as the next staging buffers so
// rotation never allocates.
func (m *columnMarks) rotate() {
	retired := m.prev
	m.prev = m.cur
	m.cur = m.stagedMut
	m.stagedMut = retired
	m.stagedMut.Clear()

	retired = m.added
	m.added = m.stagedAdd
	m.stagedAdd = retired
	m.stagedAdd.Clear()
}

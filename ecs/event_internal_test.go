package ecs

import (
	"testing"

	"github.com/argus-labs/lattice/assert"
)

type damageEvent struct {
	Target Entity
	Amount int
}

type healEvent struct {
	Amount int
}

func newEventPair[T any](t *testing.T) (*EventWriter[T], *EventReader[T], *eventManager) {
	t.Helper()

	m := newEventManager()
	_, q, err := eventQueueFor[T](m)
	assert.NilError(t, err)
	return &EventWriter[T]{q: q}, &EventReader[T]{q: q}, m
}

func collect[T any](r *EventReader[T]) []T {
	var out []T
	for e := range r.Read() {
		out = append(out, e)
	}
	return out
}

func TestEventReaderSeesEventsOfItsOwnTick(t *testing.T) {
	t.Parallel()

	w, r, _ := newEventPair[damageEvent](t)
	w.Send(damageEvent{Amount: 1})
	w.Send(damageEvent{Amount: 2})

	got := collect(r)
	assert.Equal(t, 2, len(got))
	assert.Equal(t, 1, got[0].Amount)
	assert.Equal(t, 2, got[1].Amount)

	assert.Equal(t, 0, r.Pending())
	assert.Equal(t, 0, len(collect(r)), "each event is delivered once")
}

func TestEventReaderSeesPreviousTickEvents(t *testing.T) {
	t.Parallel()

	w, r, m := newEventPair[damageEvent](t)
	w.Send(damageEvent{Amount: 1})
	m.rotateAll()
	w.Send(damageEvent{Amount: 2})

	got := collect(r)
	assert.Equal(t, 2, len(got))
	assert.Equal(t, 1, got[0].Amount, "last tick's events come first")
	assert.Equal(t, 2, got[1].Amount)
}

func TestEventsDropAfterTwoRotations(t *testing.T) {
	t.Parallel()

	w, r, m := newEventPair[damageEvent](t)
	w.Send(damageEvent{Amount: 1})
	m.rotateAll()
	m.rotateAll()
	w.Send(damageEvent{Amount: 2})

	got := collect(r)
	assert.Equal(t, 1, len(got), "a reader that skips two ticks loses the old events")
	assert.Equal(t, 2, got[0].Amount)
}

func TestEventReaderBreakKeepsRemainderUnread(t *testing.T) {
	t.Parallel()

	w, r, _ := newEventPair[healEvent](t)
	w.Send(healEvent{Amount: 1})
	w.Send(healEvent{Amount: 2})
	w.Send(healEvent{Amount: 3})

	for e := range r.Read() {
		assert.Equal(t, 1, e.Amount)
		break
	}
	assert.Equal(t, 2, r.Pending())

	got := collect(r)
	assert.Equal(t, 2, len(got))
	assert.Equal(t, 2, got[0].Amount)
	assert.Equal(t, 3, got[1].Amount)
}

func TestEventCursorSurvivesRotation(t *testing.T) {
	t.Parallel()

	w, r, m := newEventPair[healEvent](t)
	w.Send(healEvent{Amount: 1})
	w.Send(healEvent{Amount: 2})

	for range r.Read() {
		break // Leave the second event unread across the tick boundary.
	}

	m.rotateAll()
	w.Send(healEvent{Amount: 3})

	got := collect(r)
	assert.Equal(t, 2, len(got))
	assert.Equal(t, 2, got[0].Amount)
	assert.Equal(t, 3, got[1].Amount)
}

func TestEventReadersAreIndependent(t *testing.T) {
	t.Parallel()

	m := newEventManager()
	_, q, err := eventQueueFor[healEvent](m)
	assert.NilError(t, err)

	w := &EventWriter[healEvent]{q: q}
	eager := &EventReader[healEvent]{q: q}
	lazy := &EventReader[healEvent]{q: q}

	w.Send(healEvent{Amount: 1})
	assert.Equal(t, 1, len(collect(eager)))

	w.Send(healEvent{Amount: 2})
	assert.Equal(t, 1, len(collect(eager)), "the eager reader only sees the new event")
	assert.Equal(t, 2, len(collect(lazy)), "the lazy reader still gets both")
}

func TestEventQueueRecyclesRetiredBuffer(t *testing.T) {
	t.Parallel()

	q := newEventQueue[healEvent]()
	for i := range initialEventCapacity {
		q.cur = append(q.cur, healEvent{Amount: i})
	}
	q.rotate()
	assert.Equal(t, uint64(0), q.seqBase)
	q.rotate()
	assert.Equal(t, uint64(initialEventCapacity), q.seqBase)
	assert.Check(t, cap(q.cur) >= initialEventCapacity, "the retired backing array is reused")
}

func TestEventManagerAssignsStableIDs(t *testing.T) {
	t.Parallel()

	m := newEventManager()
	dmgID, dmgQ, err := eventQueueFor[damageEvent](m)
	assert.NilError(t, err)
	healID, _, err := eventQueueFor[healEvent](m)
	assert.NilError(t, err)
	assert.Check(t, dmgID != healID)

	againID, againQ, err := eventQueueFor[damageEvent](m)
	assert.NilError(t, err)
	assert.Equal(t, dmgID, againID)
	assert.Equal(t, dmgQ, againQ, "one queue per event type")
}

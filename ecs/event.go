package ecs

import (
	"iter"
	"math"
	"reflect"

	"github.com/argus-labs/lattice/internal/assert"
	"github.com/rotisserie/eris"
)

// eventID is a dense identifier assigned to each event type for conflict analysis.
type eventID = uint32

// maxEventID is the maximum number of event types that can be registered.
const maxEventID = math.MaxUint32 - 1

// abstractEventQueue lets the manager rotate queues without knowing their payload type.
type abstractEventQueue interface {
	rotate()
}

// eventQueue is the double-buffered backlog of one event type. Events sent in tick N sit in cur
// for the rest of N, move to prev for N+1, and are dropped at the next rotation. Sequence
// numbers grow monotonically over the queue's lifetime so reader cursors survive rotation.
//
// Queue access is not locked. The scheduler orders readers and writers of the same event type
// so the slices are never touched concurrently.
type eventQueue[T any] struct {
	prev    []T
	cur     []T
	seqBase uint64 // Sequence number of prev[0]
}

const initialEventCapacity = 128

func newEventQueue[T any]() *eventQueue[T] {
	return &eventQueue[T]{
		prev: make([]T, 0, initialEventCapacity),
		cur:  make([]T, 0, initialEventCapacity),
	}
}

// rotate drops the previous tick's events and starts a fresh current buffer, recycling the
// retired backing array.
func (q *eventQueue[T]) rotate() {
	retired := q.prev
	q.seqBase += uint64(len(q.prev))
	q.prev = q.cur
	q.cur = retired[:0]
}

// end returns the sequence number one past the newest buffered event.
func (q *eventQueue[T]) end() uint64 {
	return q.seqBase + uint64(len(q.prev)) + uint64(len(q.cur))
}

// at returns the event with the given sequence number, which must still be buffered.
func (q *eventQueue[T]) at(seq uint64) T {
	i := seq - q.seqBase
	if i < uint64(len(q.prev)) {
		return q.prev[i]
	}
	return q.cur[i-uint64(len(q.prev))]
}

// eventManager owns one queue per registered event type. Registration happens while systems
// are wired, never concurrently.
type eventManager struct {
	ids    map[reflect.Type]eventID // Event type -> dense ID for access sets
	nextID eventID
	queues []abstractEventQueue // Event ID -> queue
}

func newEventManager() *eventManager {
	return &eventManager{
		ids:    make(map[reflect.Type]eventID),
		nextID: 0,
		queues: make([]abstractEventQueue, 0),
	}
}

// eventQueueFor returns the ID and queue for the event type T, creating both on first use.
func eventQueueFor[T any](m *eventManager) (eventID, *eventQueue[T], error) {
	typ := reflect.TypeFor[T]()
	if id, exists := m.ids[typ]; exists {
		return id, m.queues[id].(*eventQueue[T]), nil
	}

	if m.nextID > maxEventID {
		return 0, nil, eris.New("max number of event types exceeded")
	}

	id := m.nextID
	q := newEventQueue[T]()
	m.ids[typ] = id
	m.queues = append(m.queues, q)
	m.nextID++
	assert.That(int(m.nextID) == len(m.queues), "event id doesn't match number of queues")

	return id, q, nil
}

// rotateAll advances every queue by one tick.
func (m *eventManager) rotateAll() {
	for _, q := range m.queues {
		q.rotate()
	}
}

// EventWriter sends events of type T to every reader. It is declared as a system state field
// and counts as a write on T for scheduling, so writers of the same event type never run
// concurrently with each other or with readers.
type EventWriter[T any] struct {
	q *eventQueue[T]
}

// Send buffers an event. Readers scheduled later in the same tick and readers in the next tick
// observe it; after that it is dropped.
func (w *EventWriter[T]) Send(event T) {
	w.q.cur = append(w.q.cur, event)
}

// EventReader receives events of type T. Each reader keeps its own cursor and sees every event
// exactly once, provided it reads at least every other tick; events older than that are
// dropped by rotation and silently skipped.
type EventReader[T any] struct {
	q      *eventQueue[T]
	cursor uint64
}

// Read iterates the events this reader has not seen yet, oldest first. Breaking out keeps the
// remaining events unread for the next call.
func (r *EventReader[T]) Read() iter.Seq[T] {
	return func(yield func(T) bool) {
		seq := max(r.cursor, r.q.seqBase)
		for ; seq < r.q.end(); seq++ {
			r.cursor = seq + 1
			if !yield(r.q.at(seq)) {
				return
			}
		}
	}
}

// Pending returns the number of buffered events this reader has not seen yet.
func (r *EventReader[T]) Pending() int {
	start := max(r.cursor, r.q.seqBase)
	return int(r.q.end() - start)
}

package ecs

import (
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// mutation is one queued structural change: a description for the log and the closure that
// applies it against the world state.
type mutation struct {
	desc  string
	apply func(ws *WorldState) error
}

// commandBuffer collects structural mutations submitted while systems execute. The world owns a
// single buffer shared by every system, so draining applies mutations in global submission
// order.
type commandBuffer struct {
	queue []mutation
	lock  sync.Mutex
}

const initialCommandCapacity = 128

func newCommandBuffer() *commandBuffer {
	return &commandBuffer{
		queue: make([]mutation, 0, initialCommandCapacity),
	}
}

// send appends a mutation to the queue. Safe for concurrent use.
func (b *commandBuffer) send(m mutation) {
	b.lock.Lock()
	b.queue = append(b.queue, m)
	b.lock.Unlock()
}

// drain empties the queue and returns the mutations in submission order, keeping the backing
// capacity for the next tick.
func (b *commandBuffer) drain() []mutation {
	b.lock.Lock()
	queue := b.queue
	b.queue = make([]mutation, 0, cap(queue))
	b.lock.Unlock()
	return queue
}

// pending returns the number of queued mutations.
func (b *commandBuffer) pending() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.queue)
}

// applyAll applies drained mutations in order. Failures do not stop the drain: a mutation whose
// target died since submission is an expected race and is logged at debug, while a type
// registration conflict means two call sites disagree about a component's layout and is logged
// at error.
func applyAll(ws *WorldState, queue []mutation, log zerolog.Logger) {
	for _, m := range queue {
		err := m.apply(ws)
		if err == nil {
			continue
		}
		if eris.Is(err, ErrTypeRegistrationConflict) {
			log.Error().Err(err).Str("command", m.desc).Msg("failed to apply command")
			continue
		}
		log.Debug().Err(err).Str("command", m.desc).Msg("skipped command")
	}
}

// Commands queues structural mutations for the end of the tick. It is declared as a system
// state field; the scheduler never treats command submission as a conflict, so any number of
// systems enqueue concurrently while the world's structure stays frozen until the apply phase.
//
// Mutations run in submission order across all systems. Targets that die between submission and
// apply degrade to logged no-ops rather than errors.
type Commands struct {
	buf *commandBuffer
}

// Spawn queues the creation of an entity with the given component values. Every component type
// must already be registered with the world; the entity itself becomes observable in the next
// tick.
func (c *Commands) Spawn(components ...Component) {
	names := make([]string, 0, len(components))
	for _, component := range components {
		names = append(names, component.Name())
	}
	desc := "spawn(" + strings.Join(names, ", ") + ")"

	c.buf.send(mutation{desc: desc, apply: func(ws *WorldState) error {
		_, err := ws.spawnEntity(components)
		return err
	}})
}

// Despawn queues the removal of an entity and all its components.
func (c *Commands) Despawn(e Entity) {
	c.buf.send(mutation{desc: "despawn(" + e.String() + ")", apply: func(ws *WorldState) error {
		if !ws.despawnEntity(e) {
			return eris.Wrapf(ErrStaleEntity, "entity %s", e)
		}
		return nil
	}})
}

// AddComponent queues attaching a component to an entity. Adding a component the entity already
// has is a silent no-op, matching the immediate Add.
func AddComponent[T Component](c *Commands, e Entity, value T) {
	var zero T
	desc := "add(" + zero.Name() + ", " + e.String() + ")"

	c.buf.send(mutation{desc: desc, apply: func(ws *WorldState) error {
		_, err := addComponent(ws, e, value)
		return err
	}})
}

// RemoveComponent queues detaching a component from an entity. Removing a component the entity
// does not have is a silent no-op, matching the immediate Remove.
func RemoveComponent[T Component](c *Commands, e Entity) {
	var zero T
	desc := "remove(" + zero.Name() + ", " + e.String() + ")"

	c.buf.send(mutation{desc: desc, apply: func(ws *WorldState) error {
		_, err := removeComponent[T](ws, e)
		return err
	}})
}

// SetComponent queues overwriting a component value on an entity. The write is attributed to
// the tick it becomes observable in, so Changed filters pick it up next tick.
func SetComponent[T Component](c *Commands, e Entity, value T) {
	var zero T
	desc := "set(" + zero.Name() + ", " + e.String() + ")"

	c.buf.send(mutation{desc: desc, apply: func(ws *WorldState) error {
		return setComponent(ws, e, value)
	}})
}

// InsertResource queues storing a resource value, overwriting any existing value of that type.
func InsertResource[T any](c *Commands, value T) {
	desc := "insert_resource(" + typeName[T]() + ")"

	c.buf.send(mutation{desc: desc, apply: func(ws *WorldState) error {
		SetResource(ws, value)
		return nil
	}})
}

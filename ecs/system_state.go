package ecs

import (
	"reflect"

	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// systemStateField is the interface every declarable state field implements. Fields wire
// themselves to the world during system registration and record what they touch in the
// owning system's access set.
type systemStateField interface {
	initStateField(w *World, d *systemDescriptor) error
}

var (
	_ systemStateField = &BaseSystemState{}
	_ systemStateField = &Query[struct{}]{}
	_ systemStateField = &Res[any]{}
	_ systemStateField = &ResMut[any]{}
	_ systemStateField = &Local[any]{}
	_ systemStateField = &Commands{}
	_ systemStateField = &EventReader[any]{}
	_ systemStateField = &EventWriter[any]{}
	_ systemStateField = &Exclusive{}
)

// -------------------------------------------------------------------------------------------------
// Access sets
// -------------------------------------------------------------------------------------------------

// accessSet is everything a system declared it touches: component, resource and event types,
// split into read and write sides. Each kind has its own dense ID space.
type accessSet struct {
	compRead   bitmap.Bitmap
	compWrite  bitmap.Bitmap
	resRead    bitmap.Bitmap
	resWrite   bitmap.Bitmap
	eventRead  bitmap.Bitmap
	eventWrite bitmap.Bitmap
}

// empty reports whether the set declares no access at all.
func (a *accessSet) empty() bool {
	return a.compRead.Count() == 0 && a.compWrite.Count() == 0 &&
		a.resRead.Count() == 0 && a.resWrite.Count() == 0 &&
		a.eventRead.Count() == 0 && a.eventWrite.Count() == 0
}

// conflictsWith reports whether two access sets cannot run concurrently: they share a type in
// any ID space with at least one writer.
func (a *accessSet) conflictsWith(b *accessSet) bool {
	return pairConflicts(a.compRead, a.compWrite, b.compRead, b.compWrite) ||
		pairConflicts(a.resRead, a.resWrite, b.resRead, b.resWrite) ||
		pairConflicts(a.eventRead, a.eventWrite, b.eventRead, b.eventWrite)
}

func pairConflicts(read1, write1, read2, write2 bitmap.Bitmap) bool {
	return intersects(write1, write2) || intersects(write1, read2) || intersects(read1, write2)
}

func intersects(x, y bitmap.Bitmap) bool {
	shared := x.Clone(nil)
	shared.And(y)
	return shared.Count() > 0
}

// -------------------------------------------------------------------------------------------------
// Base system state
// -------------------------------------------------------------------------------------------------

// BaseSystemState carries a system's identity and must be embedded in every system state
// struct. It gives the system its name, a logger scoped to it, and the current tick.
//
// Example:
//
//	type MovementState struct {
//	    ecs.BaseSystemState
//	    Moving ecs.Query[Moving]
//	}
//
//	func MovementSystem(state *MovementState) error {
//	    state.Logger().Debug().Msg("moving things")
//	    // ...
//	    return nil
//	}
type BaseSystemState struct {
	world *World
	name  string
	log   zerolog.Logger
}

func (b *BaseSystemState) initStateField(w *World, d *systemDescriptor) error {
	b.world = w
	b.name = d.name
	b.log = d.log
	return nil
}

// Logger returns the system's logger, tagged with the system name.
func (b *BaseSystemState) Logger() *zerolog.Logger {
	return &b.log
}

// Name returns the name the system was registered under.
func (b *BaseSystemState) Name() string {
	return b.name
}

// Tick returns the current tick number.
func (b *BaseSystemState) Tick() uint64 {
	return b.world.tick.Load()
}

// -------------------------------------------------------------------------------------------------
// Resource fields
// -------------------------------------------------------------------------------------------------

// Res declares shared read access to the resource of type T. Any number of readers run
// concurrently; a reader never runs alongside a ResMut of the same type.
type Res[T any] struct {
	ws *WorldState
}

func (r *Res[T]) initStateField(w *World, d *systemDescriptor) error {
	id := w.state.resources.idOf(reflect.TypeFor[T]())
	if d.access.resRead.Contains(id) {
		return eris.Errorf("systems cannot declare multiple Res fields of type %s", typeName[T]())
	}
	d.access.resRead.Set(id)
	r.ws = w.state
	return nil
}

// Get returns a copy of the resource value, or ErrResourceNotFound when no value of type T has
// been stored.
func (r *Res[T]) Get() (T, error) {
	ptr, err := GetResource[T](r.ws)
	if err != nil {
		var zero T
		return zero, err
	}
	return *ptr, nil
}

// ResMut declares exclusive write access to the resource of type T. It never runs alongside
// any other access to the same type.
type ResMut[T any] struct {
	ws *WorldState
}

func (r *ResMut[T]) initStateField(w *World, d *systemDescriptor) error {
	id := w.state.resources.idOf(reflect.TypeFor[T]())
	if d.access.resWrite.Contains(id) {
		return eris.Errorf("systems cannot declare multiple ResMut fields of type %s", typeName[T]())
	}
	d.access.resWrite.Set(id)
	r.ws = w.state
	return nil
}

// Get returns the resource for in-place modification, or ErrResourceNotFound when no value of
// type T has been stored.
func (r *ResMut[T]) Get() (*T, error) {
	return GetResource[T](r.ws)
}

// Set stores the resource, overwriting any existing value.
func (r *ResMut[T]) Set(value T) {
	SetResource(r.ws, value)
}

// Local declares system-private state of type T: a value that persists across ticks but is
// invisible to every other system, so it never participates in conflict analysis. The value
// starts as T's zero value. Two Local fields of the same type in one system alias the same
// instance.
type Local[T any] struct {
	v *T
}

func (l *Local[T]) initStateField(w *World, d *systemDescriptor) error {
	l.v = getOrInitLocal[T](w.state, d.id)
	return nil
}

// Get returns the system's private instance.
func (l *Local[T]) Get() *T {
	return l.v
}

// -------------------------------------------------------------------------------------------------
// Command and event fields
// -------------------------------------------------------------------------------------------------

func (c *Commands) initStateField(w *World, _ *systemDescriptor) error {
	c.buf = w.commands
	return nil
}

func (r *EventReader[T]) initStateField(w *World, d *systemDescriptor) error {
	id, q, err := eventQueueFor[T](w.events)
	if err != nil {
		return eris.Wrapf(err, "failed to register event %s", typeName[T]())
	}
	if d.access.eventRead.Contains(id) {
		return eris.Errorf("systems cannot declare multiple EventReader fields of type %s", typeName[T]())
	}
	d.access.eventRead.Set(id)
	r.q = q
	return nil
}

func (w *EventWriter[T]) initStateField(world *World, d *systemDescriptor) error {
	id, q, err := eventQueueFor[T](world.events)
	if err != nil {
		return eris.Wrapf(err, "failed to register event %s", typeName[T]())
	}
	if d.access.eventWrite.Contains(id) {
		return eris.Errorf("systems cannot declare multiple EventWriter fields of type %s", typeName[T]())
	}
	d.access.eventWrite.Set(id)
	w.q = q
	return nil
}

func (q *Query[T]) initStateField(w *World, d *systemDescriptor) error {
	built, err := newQuery[T](w.state)
	if err != nil {
		return err
	}
	*q = *built
	d.access.compRead.Or(q.reads)
	d.access.compWrite.Or(q.writes)
	return nil
}

// -------------------------------------------------------------------------------------------------
// Exclusive world access
// -------------------------------------------------------------------------------------------------

// Exclusive hands a system the whole world. Only systems registered with WithExclusive may
// declare it; since such a system runs alone, immediate structural mutation through State() is
// safe and does not need the command queue.
//
// Example:
//
//	type CullState struct {
//	    ecs.BaseSystemState
//	    World ecs.Exclusive
//	}
//
//	func CullSystem(state *CullState) error {
//	    ws := state.World.State()
//	    // spawn and despawn directly...
//	    return nil
//	}
type Exclusive struct {
	w *World
}

func (e *Exclusive) initStateField(w *World, d *systemDescriptor) error {
	if !d.exclusive {
		return eris.Wrapf(ErrSchedulingConflict,
			"system %s declares Exclusive but was not registered with WithExclusive", d.name)
	}
	e.w = w
	return nil
}

// World returns the world the system runs in.
func (e *Exclusive) World() *World {
	return e.w
}

// State returns the world's storage for direct reads and mutations.
func (e *Exclusive) State() *WorldState {
	return e.w.state
}

// -------------------------------------------------------------------------------------------------
// State initialization
// -------------------------------------------------------------------------------------------------

// initializeSystemState wires every field of the system's state struct and fills the
// descriptor's access set. The state struct must embed BaseSystemState, every field must be an
// exported system state field, and an exclusive system must not declare granular access.
func initializeSystemState[S any](w *World, d *systemDescriptor, state *S) error {
	value := reflect.ValueOf(state).Elem()
	if value.Kind() != reflect.Struct {
		return eris.Errorf("system state %s must be a struct", value.Type())
	}

	embedsBase := false
	for i := range value.NumField() {
		fieldType := value.Type().Field(i)
		if !fieldType.IsExported() {
			return eris.Errorf("field %s must be exported", fieldType.Name)
		}

		fieldInstance := value.Field(i).Addr().Interface()
		stateField, ok := fieldInstance.(systemStateField)
		if !ok {
			return eris.Errorf("field %s must be a system state field", fieldType.Name)
		}
		if _, isBase := fieldInstance.(*BaseSystemState); isBase {
			embedsBase = true
		}

		if err := stateField.initStateField(w, d); err != nil {
			return eris.Wrapf(err, "failed to initialize field %s", fieldType.Name)
		}
	}

	if !embedsBase {
		return eris.Errorf("system state %s must embed ecs.BaseSystemState", value.Type())
	}
	if d.exclusive && !d.access.empty() {
		return eris.Wrapf(ErrSchedulingConflict,
			"exclusive system %s declares granular access; exclusivity already grants the whole world",
			d.name)
	}

	return nil
}

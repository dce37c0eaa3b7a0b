package ecs

import (
	"reflect"

	"github.com/rotisserie/eris"
)

// resourceID is a dense identifier assigned to each resource type for conflict analysis.
type resourceID = uint32

// localKey identifies a scheduler-local resource instance: the value type plus the system that
// owns it.
type localKey struct {
	typ   reflect.Type
	owner systemID
}

// resourceStore holds global singleton values keyed by their Go type, separate from entity data.
// The shared section is visible to systems through declared access fields; the exclusive section
// is reachable only with full world access; locals are per-system private state.
//
// Uniqueness is by type: setting a type that already holds a value silently replaces it. Keeping
// one instance per type is the caller's contract, not enforced here.
type resourceStore struct {
	ids       map[reflect.Type]resourceID // Resource type -> dense ID for access sets
	nextID    resourceID
	shared    map[reflect.Type]any
	exclusive map[reflect.Type]any
	locals    map[localKey]any
}

// newResourceStore creates an empty resource store.
func newResourceStore() resourceStore {
	return resourceStore{
		ids:       make(map[reflect.Type]resourceID),
		nextID:    0,
		shared:    make(map[reflect.Type]any),
		exclusive: make(map[reflect.Type]any),
		locals:    make(map[localKey]any),
	}
}

// idOf returns the dense ID for a resource type, assigning one on first sight.
func (rs *resourceStore) idOf(typ reflect.Type) resourceID {
	if id, exists := rs.ids[typ]; exists {
		return id
	}
	id := rs.nextID
	rs.ids[typ] = id
	rs.nextID++
	return id
}

// typeName returns the printable name of T for log and error messages.
func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}

// GetResource returns the shared resource of type T. The returned pointer stays valid until the
// resource is overwritten, so mutations through it are visible to every later reader.
func GetResource[T any](ws *WorldState) (*T, error) {
	value, exists := ws.resources.shared[reflect.TypeFor[T]()]
	if !exists {
		return nil, eris.Wrapf(ErrResourceNotFound, "resource %s", reflect.TypeFor[T]())
	}
	return value.(*T), nil
}

// SetResource stores the shared resource of type T, silently replacing any existing value.
// Handles obtained before the overwrite keep observing the replaced instance.
func SetResource[T any](ws *WorldState, value T) {
	ws.resources.shared[reflect.TypeFor[T]()] = &value
}

// GetOrInitResource returns the shared resource of type T, constructing and storing it with
// init when absent.
func GetOrInitResource[T any](ws *WorldState, init func() T) *T {
	typ := reflect.TypeFor[T]()
	if value, exists := ws.resources.shared[typ]; exists {
		return value.(*T)
	}
	value := init()
	ws.resources.shared[typ] = &value
	return &value
}

// GetExclusiveResource returns the exclusive-only resource of type T. Exclusive-only resources
// never appear in shared access fields; they are reachable solely through full world access.
func GetExclusiveResource[T any](ws *WorldState) (*T, error) {
	value, exists := ws.resources.exclusive[reflect.TypeFor[T]()]
	if !exists {
		return nil, eris.Wrapf(ErrResourceNotFound, "exclusive resource %s", reflect.TypeFor[T]())
	}
	return value.(*T), nil
}

// SetExclusiveResource stores the exclusive-only resource of type T, silently replacing any
// existing value.
func SetExclusiveResource[T any](ws *WorldState, value T) {
	ws.resources.exclusive[reflect.TypeFor[T]()] = &value
}

// getOrInitLocal returns the scheduler-local instance of type T owned by the given system,
// constructing a zero value on first access. Each declaring system gets its own instance, which
// persists across ticks and is invisible to every other system.
func getOrInitLocal[T any](ws *WorldState, owner systemID) *T {
	key := localKey{typ: reflect.TypeFor[T](), owner: owner}
	if value, exists := ws.resources.locals[key]; exists {
		return value.(*T)
	}
	var value T
	ws.resources.locals[key] = &value
	return &value
}

package ecs

// Spawn creates an entity with the given component values. Every component type must already be
// registered. Returns the new entity's handle.
func Spawn(ws *WorldState, components ...Component) (Entity, error) {
	return ws.spawnEntity(components)
}

// Despawn deletes an entity and all its components from the world. Returns true if the entity is
// deleted, false if the handle is stale or was never issued.
func Despawn(ws *WorldState, e Entity) bool {
	return ws.despawnEntity(e)
}

// Alive checks if an entity handle still refers to a live entity.
func Alive(ws *WorldState, e Entity) bool {
	return ws.directory.alive(e)
}

// Add attaches a component to an entity, moving it to the archetype with the extended signature.
// Returns (false, nil) without touching storage when the entity already has the component, and
// ErrStaleEntity when the handle is stale.
func Add[T Component](ws *WorldState, e Entity, component T) (bool, error) {
	return addComponent(ws, e, component)
}

// Remove detaches a component from an entity, moving it to the archetype with the narrowed
// signature. Returns (false, nil) without touching storage when the entity doesn't have the
// component, and ErrStaleEntity when the handle is stale.
func Remove[T Component](ws *WorldState, e Entity) (bool, error) {
	return removeComponent[T](ws, e)
}

// Set overwrites the value of a component the entity already has and marks the row mutated.
// Returns ErrComponentNotFound when the entity doesn't have the component; adding is a separate
// operation with its own no-change semantics.
func Set[T Component](ws *WorldState, e Entity, component T) error {
	return setComponent(ws, e, component)
}

// Get reads a component value from an entity. Reading never marks the row.
func Get[T Component](ws *WorldState, e Entity) (T, error) {
	return getComponent[T](ws, e)
}

// Has checks if an entity has a specific component type.
// Returns false if the entity is dead or doesn't have the component.
func Has[T Component](ws *WorldState, e Entity) bool {
	_, err := Get[T](ws, e)
	return err == nil
}

package ecs

import "github.com/rotisserie/eris"

var (
	// ErrStaleEntity is returned when an operation references a destroyed entity or an entity
	// handle whose generation no longer matches the live one. The operation performs no mutation.
	ErrStaleEntity = eris.New("entity handle is stale")

	// ErrEntityNotFound is returned when attempting to operate on a non-existent entity
	// or when an entity cannot be found in the expected location.
	ErrEntityNotFound = eris.New("entity does not exist")

	// ErrComponentNotFound is returned when a component type is not registered or not present
	// on the target entity.
	ErrComponentNotFound = eris.New("component does not exist")

	// ErrResourceNotFound is returned when a resource lookup finds no value for the type.
	ErrResourceNotFound = eris.New("resource does not exist")

	// ErrSchedulingConflict is returned at registration when a system declares exclusive world
	// access alongside granular access fields, or granular full-world access without
	// exclusivity. Registration aborts; this is a programming error, not a runtime condition.
	ErrSchedulingConflict = eris.New("conflicting system access declaration")

	// ErrTypeRegistrationConflict is returned when a component type is re-registered under the
	// same name with an incompatible layout. Registration aborts.
	ErrTypeRegistrationConflict = eris.New("type registered with conflicting layout")
)

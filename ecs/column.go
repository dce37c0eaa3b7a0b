package ecs

import (
	"github.com/argus-labs/lattice/internal/assert"
)

// columnFactory is a function that creates a new abstractColumn instance.
type columnFactory func() abstractColumn

// abstractColumn is an internal interface for generic column operations.
type abstractColumn interface {
	len() int
	id() componentID
	name() string
	extend()

	setAbstract(row int, component Component)
	getAbstract(row int) Component
	copyRowTo(dst abstractColumn, srcRow, dstRow int)
	remove(row int)
}

var _ abstractColumn = &column[Component]{}

// column stores the component data of entities in an archetype. The length of the components slice
// must match the length of the entities slice in the archetype.
type column[T Component] struct {
	compID     componentID // The registered ID of the component stored in this column
	compName   string      // The name of the component stored in this column
	components []T         // Array containing the component data
}

// newColumn creates a new column with the specified type.
func newColumn[T Component](cid componentID, name string) column[T] {
	const initialCapacity = 16
	return column[T]{
		compID:     cid,
		compName:   name,
		components: make([]T, 0, initialCapacity),
	}
}

// len returns the length of the components slice.
func (c *column[T]) len() int {
	return len(c.components)
}

// id returns the registered ID of the component type.
func (c *column[T]) id() componentID {
	return c.compID
}

// name returns the name of the component type.
func (c *column[T]) name() string {
	return c.compName
}

// extend adds a new row to the components slice and initializes it with the zero value.
func (c *column[T]) extend() {
	// Double the capacity when the capacity is reached.
	if len(c.components) == cap(c.components) {
		newCap := cap(c.components) * 2
		newComponents := make([]T, len(c.components), newCap)
		copy(newComponents, c.components)
		c.components = newComponents
	}

	var zero T
	c.components = append(c.components, zero)
}

// set sets the component in a given row. A row corresponds to a single entity. Whenever possible
// prefer this method over setAbstract since it avoids the type assertion and avoids boxing the
// component data, which does allocations.
func (c *column[T]) set(row int, component T) {
	assert.That(row < len(c.components), "column isn't extended when entity is created")
	c.components[row] = component
}

// setAbstract sets the component in a given row. A row corresponds to a single entity. Use this
// method only when you don't know the concrete type of the component.
func (c *column[T]) setAbstract(row int, component Component) {
	concrete, ok := component.(T)
	assert.That(ok, "tried to set the wrong component type")
	c.set(row, concrete)
}

// get gets the value from a given row. A row corresponds to a single entity. Expects the caller
// to make sure the row is inside the column. Whenever possible prefer this method over getAbstract
// since it avoids the type assertion and avoids boxing the component data, which does allocations.
func (c *column[T]) get(row int) T {
	assert.That(row < len(c.components), "component doesn't exist")
	return c.components[row]
}

// getAbstract gets the value from a given row. A row corresponds to a single entity. Expects the
// caller to make sure the row is inside the column. Use this method only when you don't know the
// concrete type of the component.
func (c *column[T]) getAbstract(row int) Component {
	return c.get(row)
}

// mut returns a pointer into the column's backing array for a given row. The pointer is valid
// until the next structural mutation of the archetype.
func (c *column[T]) mut(row int) *T {
	assert.That(row < len(c.components), "component doesn't exist")
	return &c.components[row]
}

// copyRowTo copies the value at srcRow into dstRow of another column holding the same component
// type. Used when an entity migrates between archetypes.
func (c *column[T]) copyRowTo(dst abstractColumn, srcRow, dstRow int) {
	concrete, ok := dst.(*column[T])
	assert.That(ok, "tried to copy a row across mismatched column types")
	concrete.set(dstRow, c.get(srcRow))
}

// remove removes a given row. A row corresponds to a single entity. Expects the caller to make sure
// the row is inside the column. A remove swaps the last value in the slice with the row to remove.
func (c *column[T]) remove(row int) {
	assert.That(row < len(c.components), "tried to remove component that doesn't exist")

	lastIndex := len(c.components) - 1

	// Removing a component is the same as moving the entity to another archetype.
	// Swap the component to remove with the last component in the array.
	c.components[row] = c.components[lastIndex]

	// Zero the vacated slot so the backing array doesn't pin stale values, then truncate.
	var zero T
	c.components[lastIndex] = zero
	c.components = c.components[:lastIndex]
}

package ecs

import (
	"iter"
	"reflect"

	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"

	"github.com/argus-labs/lattice/filter"
	"github.com/argus-labs/lattice/internal/assert"
)

// Ref is a read-only handle to one component of the row a query iteration is visiting.
// Reading through a Ref never marks the row as changed.
type Ref[T Component] struct {
	col *column[T]
	row int
}

// Get returns the component value.
func (r *Ref[T]) Get() T {
	return r.col.get(r.row)
}

func (r *Ref[T]) register(cm *componentManager) (componentID, error) {
	return registerComponent[T](cm)
}

func (r *Ref[T]) writable() bool { return false }

func (r *Ref[T]) attach(arch *archetype, col, row int) {
	typed, ok := arch.columns[col].(*column[T])
	assert.That(ok, "column type doesn't match query field type")
	r.col = typed
	r.row = row
}

// Mut is a read-write handle to one component of the row a query iteration is visiting.
// Set and Mut mark the row as changed; the mark records the access, not a value difference,
// so writing back an unchanged value still counts.
type Mut[T Component] struct {
	arch   *archetype
	colIdx int
	col    *column[T]
	row    int
}

// Get returns the component value without marking the row.
func (m *Mut[T]) Get() T {
	return m.col.get(m.row)
}

// Set overwrites the component value and marks the row changed.
func (m *Mut[T]) Set(value T) {
	m.col.set(m.row, value)
	m.arch.markColumnMutated(m.colIdx, m.row)
}

// Mut returns a pointer into the column for in-place modification and marks the row changed.
// The mark is recorded now; writes through the pointer after the current tick are not tracked.
func (m *Mut[T]) Mut() *T {
	m.arch.markColumnMutated(m.colIdx, m.row)
	return m.col.mut(m.row)
}

func (m *Mut[T]) register(cm *componentManager) (componentID, error) {
	return registerComponent[T](cm)
}

func (m *Mut[T]) writable() bool { return true }

func (m *Mut[T]) attach(arch *archetype, col, row int) {
	typed, ok := arch.columns[col].(*column[T])
	assert.That(ok, "column type doesn't match query field type")
	m.arch = arch
	m.colIdx = col
	m.col = typed
	m.row = row
}

// queryRef is the contract Ref and Mut fulfill so a query can wire view fields by reflection.
type queryRef interface {
	register(cm *componentManager) (componentID, error)
	writable() bool
	attach(arch *archetype, col, row int)
}

// filtered is implemented by view structs that narrow their query beyond the component set.
type filtered interface {
	Filter() filter.Filter
}

// queryField describes one Ref or Mut field of the view struct.
type queryField struct {
	index int
	cid   componentID
	write bool
}

// Query iterates entities whose archetype contains every component the view struct T names.
// T is a struct whose exported fields are all Ref[C] or Mut[C]; each field binds one component
// of the visited row. A T with a Filter() method narrows the query further, which is how
// Without, Added and Changed conditions enter. Queries are declared as system state fields and
// wired during system registration.
type Query[T any] struct {
	ws     *WorldState
	fields []queryField
	ids    bitmap.Bitmap
	reads  bitmap.Bitmap
	writes bitmap.Bitmap
	flt    filter.Filter
}

// newQuery resolves the view struct's fields against the component registry, registering
// component types on first use.
func newQuery[T any](ws *WorldState) (*Query[T], error) {
	q := &Query[T]{ws: ws}

	viewType := reflect.TypeFor[T]()
	if viewType.Kind() != reflect.Struct {
		return nil, eris.Errorf("query view %s must be a struct", viewType)
	}

	var zero T
	probe := reflect.ValueOf(&zero).Elem()
	for i := range viewType.NumField() {
		field := viewType.Field(i)
		if !field.IsExported() {
			return nil, eris.Errorf("query view field %s.%s must be exported", viewType, field.Name)
		}
		ref, ok := probe.Field(i).Addr().Interface().(queryRef)
		if !ok {
			return nil, eris.Errorf(
				"query view field %s.%s must be a Ref or Mut", viewType, field.Name)
		}

		cid, err := ref.register(&ws.components)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to register query view field %s.%s",
				viewType, field.Name)
		}

		q.fields = append(q.fields, queryField{index: i, cid: cid, write: ref.writable()})
		q.ids.Set(cid)
		if ref.writable() {
			q.writes.Set(cid)
		} else {
			q.reads.Set(cid)
		}
	}

	if f, ok := any(zero).(filtered); ok {
		q.flt = f.Filter()
	} else if f, ok := any(&zero).(filtered); ok {
		q.flt = f.Filter()
	}

	return q, nil
}

// matchesArchetype runs the signature phase: structural containment plus the optional filter's
// archetype test.
func (q *Query[T]) matchesArchetype(arch *archetype) bool {
	if !arch.containsAll(q.ids) {
		return false
	}
	if q.flt != nil && !q.flt.MatchesArchetype(archView{ws: q.ws, arch: arch}) {
		return false
	}
	return true
}

// matchesRow runs the row phase. Only called for rows of archetypes that passed the signature
// phase.
func (q *Query[T]) matchesRow(arch *archetype, row int) bool {
	if q.flt == nil || q.flt.Static() {
		return true
	}
	return q.flt.MatchesRow(rowView{archView: archView{ws: q.ws, arch: arch}, row: row})
}

// Iter returns an iterator over every matching entity and its bound view. Iteration is lazy
// and restartable; each call reflects the storage as it is then. Structural mutations must not
// happen mid-iteration, which the deferred command queue already guarantees for systems.
func (q *Query[T]) Iter() iter.Seq2[Entity, T] {
	return func(yield func(Entity, T) bool) {
		var view T
		refs := q.viewRefs(&view)

		for _, arch := range q.ws.archetypes {
			if arch.rowCount() == 0 || !q.matchesArchetype(arch) {
				continue
			}
			cols := q.columnIndexes(arch)
			for row := range arch.rowCount() {
				if !q.matchesRow(arch, row) {
					continue
				}
				for k := range q.fields {
					refs[k].attach(arch, cols[k], row)
				}
				if !yield(arch.entities[row], view) {
					return
				}
			}
		}
	}
}

// Get binds the view to a single entity. It fails with ErrEntityNotFound when the handle is
// dead and with ErrComponentNotFound when the entity is alive but does not match the query.
func (q *Query[T]) Get(e Entity) (T, error) {
	var view T

	aid, row, ok := q.ws.directory.locate(e)
	if !ok {
		return view, eris.Wrapf(ErrEntityNotFound, "entity %s", e)
	}

	arch := q.ws.archetypes[aid]
	if !q.matchesArchetype(arch) || !q.matchesRow(arch, row) {
		return view, eris.Wrapf(ErrComponentNotFound, "entity %s does not match the query", e)
	}

	refs := q.viewRefs(&view)
	cols := q.columnIndexes(arch)
	for k := range q.fields {
		refs[k].attach(arch, cols[k], row)
	}
	return view, nil
}

// Count returns the number of entities the query currently matches.
func (q *Query[T]) Count() int {
	total := 0
	for _, arch := range q.ws.archetypes {
		if !q.matchesArchetype(arch) {
			continue
		}
		if q.flt == nil || q.flt.Static() {
			total += arch.rowCount()
			continue
		}
		for row := range arch.rowCount() {
			if q.matchesRow(arch, row) {
				total++
			}
		}
	}
	return total
}

// viewRefs returns the queryRef handles pointing at the view's fields, in field order.
func (q *Query[T]) viewRefs(view *T) []queryRef {
	value := reflect.ValueOf(view).Elem()
	refs := make([]queryRef, len(q.fields))
	for k, f := range q.fields {
		refs[k] = value.Field(f.index).Addr().Interface().(queryRef)
	}
	return refs
}

// columnIndexes resolves each view field's column position inside the archetype.
func (q *Query[T]) columnIndexes(arch *archetype) []int {
	cols := make([]int, len(q.fields))
	for k, f := range q.fields {
		cols[k] = arch.columnIndex(f.cid)
		assert.That(cols[k] >= 0, "matched archetype misses a required column")
	}
	return cols
}

// archView adapts an archetype to the filter package's signature view.
type archView struct {
	ws   *WorldState
	arch *archetype
}

func (v archView) HasComponent(name string) bool {
	cid, err := v.ws.components.idOf(name)
	if err != nil {
		return false
	}
	return v.arch.hasComponent(cid)
}

// rowView adapts one row to the filter package's row view.
type rowView struct {
	archView
	row int
}

func (v rowView) Added(name string) bool {
	cid, err := v.ws.components.idOf(name)
	if err != nil {
		return false
	}
	col := v.arch.columnIndex(cid)
	if col < 0 {
		return false
	}
	return v.arch.marks[col].isAdded(v.row)
}

func (v rowView) Changed(name string) bool {
	cid, err := v.ws.components.idOf(name)
	if err != nil {
		return false
	}
	col := v.arch.columnIndex(cid)
	if col < 0 {
		return false
	}
	return v.arch.marks[col].isChanged(v.row)
}

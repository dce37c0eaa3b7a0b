// Package filter provides the predicate language queries select rows with. Filters evaluate in
// two phases: a signature phase that prunes whole archetypes, and a row phase that settles
// predicates depending on per-row change state. The signature phase may over-approximate: it
// can admit an archetype whose rows all fail the row phase, never the reverse. Callers always
// confirm candidate rows with MatchesRow.
package filter

// Component is the contract filter constructors need from a component type: a stable name.
// Any component usable with the runtime satisfies it.
type Component interface {
	Name() string
}

// Archetype is the view of one table the signature phase evaluates against.
type Archetype interface {
	// HasComponent reports whether the component is part of the table's signature.
	HasComponent(name string) bool
}

// Row is the view of one row the row phase evaluates against.
type Row interface {
	Archetype
	// Added reports whether the row's component was created in the current change window.
	Added(name string) bool
	// Changed reports whether the row's component was added or written in the current or
	// previous change window.
	Changed(name string) bool
}

// Filter is a predicate over archetype rows. Implementations live in this package only, so the
// over-approximation contract between the two phases cannot be broken from outside.
type Filter interface {
	// MatchesArchetype reports whether rows of the archetype can match.
	MatchesArchetype(a Archetype) bool
	// MatchesRow reports whether the row matches.
	MatchesRow(r Row) bool
	// Static reports whether the filter is fully decided by the archetype signature. Static
	// filters never need the row phase.
	Static() bool

	String() string

	sealed()
}

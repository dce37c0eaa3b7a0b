package filter

import "strings"

type and struct {
	children []Filter
}

// And matches rows that match every child filter. With no children it matches everything.
func And(children ...Filter) Filter {
	return &and{children: children}
}

func (f *and) MatchesArchetype(a Archetype) bool {
	for _, c := range f.children {
		if !c.MatchesArchetype(a) {
			return false
		}
	}
	return true
}

func (f *and) MatchesRow(r Row) bool {
	for _, c := range f.children {
		if !c.MatchesRow(r) {
			return false
		}
	}
	return true
}

func (f *and) Static() bool {
	for _, c := range f.children {
		if !c.Static() {
			return false
		}
	}
	return true
}

func (f *and) String() string {
	parts := make([]string, 0, len(f.children))
	for _, c := range f.children {
		parts = append(parts, c.String())
	}
	return "(" + strings.Join(parts, " & ") + ")"
}

func (f *and) sealed() {}

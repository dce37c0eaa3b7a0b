package filter

import "strings"

type or struct {
	children []Filter
}

// Or matches rows that match at least one child filter. With no children it matches nothing.
func Or(children ...Filter) Filter {
	return &or{children: children}
}

func (f *or) MatchesArchetype(a Archetype) bool {
	for _, c := range f.children {
		if c.MatchesArchetype(a) {
			return true
		}
	}
	return false
}

func (f *or) MatchesRow(r Row) bool {
	for _, c := range f.children {
		if c.MatchesRow(r) {
			return true
		}
	}
	return false
}

func (f *or) Static() bool {
	for _, c := range f.children {
		if !c.Static() {
			return false
		}
	}
	return true
}

func (f *or) String() string {
	parts := make([]string, 0, len(f.children))
	for _, c := range f.children {
		parts = append(parts, c.String())
	}
	return "(" + strings.Join(parts, " | ") + ")"
}

func (f *or) sealed() {}

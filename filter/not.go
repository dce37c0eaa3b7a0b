package filter

type not struct {
	child Filter
}

// Not matches rows the child filter does not match.
func Not(child Filter) Filter {
	return &not{child: child}
}

// MatchesArchetype negates the child only when the child is static. A dynamic child can reject
// individual rows of an archetype it matches, so its negation has to admit the archetype and
// let the row phase decide.
func (f *not) MatchesArchetype(a Archetype) bool {
	if f.child.Static() {
		return !f.child.MatchesArchetype(a)
	}
	return true
}

func (f *not) MatchesRow(r Row) bool {
	return !f.child.MatchesRow(r)
}

func (f *not) Static() bool { return f.child.Static() }

func (f *not) String() string { return "!" + f.child.String() }

func (f *not) sealed() {}

package filter

type changed struct {
	name string
}

// Changed matches rows whose component T was added or written to in the current or previous
// change window. Writes are tracked by access, so a write-back of an identical value still
// counts as a change.
func Changed[T Component]() Filter {
	var c T
	return ChangedNamed(c.Name())
}

// ChangedNamed is Changed for a component known only by name.
func ChangedNamed(name string) Filter {
	return &changed{name: name}
}

func (f *changed) MatchesArchetype(a Archetype) bool {
	return a.HasComponent(f.name)
}

func (f *changed) MatchesRow(r Row) bool {
	return r.HasComponent(f.name) && r.Changed(f.name)
}

func (f *changed) Static() bool { return false }

func (f *changed) String() string { return "CHANGED(" + f.name + ")" }

func (f *changed) sealed() {}

package filter

type added struct {
	name string
}

// Added matches rows whose component T entered the current change window, whether through a
// spawn or a later component insertion.
func Added[T Component]() Filter {
	var c T
	return AddedNamed(c.Name())
}

// AddedNamed is Added for a component known only by name.
func AddedNamed(name string) Filter {
	return &added{name: name}
}

// MatchesArchetype only requires the component to be present; whether a given row was added
// this window is settled by MatchesRow.
func (f *added) MatchesArchetype(a Archetype) bool {
	return a.HasComponent(f.name)
}

func (f *added) MatchesRow(r Row) bool {
	return r.HasComponent(f.name) && r.Added(f.name)
}

func (f *added) Static() bool { return false }

func (f *added) String() string { return "ADDED(" + f.name + ")" }

func (f *added) sealed() {}

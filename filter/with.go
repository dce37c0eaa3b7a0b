package filter

type with struct {
	name string
}

// With matches rows whose archetype contains the component T.
func With[T Component]() Filter {
	var c T
	return WithNamed(c.Name())
}

// WithNamed is With for a component known only by name, as produced by the query language.
func WithNamed(name string) Filter {
	return &with{name: name}
}

func (f *with) MatchesArchetype(a Archetype) bool {
	return a.HasComponent(f.name)
}

func (f *with) MatchesRow(r Row) bool {
	return r.HasComponent(f.name)
}

func (f *with) Static() bool { return true }

func (f *with) String() string { return "WITH(" + f.name + ")" }

func (f *with) sealed() {}

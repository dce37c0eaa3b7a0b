package filter

type without struct {
	name string
}

// Without matches rows whose archetype does not contain the component T.
func Without[T Component]() Filter {
	var c T
	return WithoutNamed(c.Name())
}

// WithoutNamed is Without for a component known only by name.
func WithoutNamed(name string) Filter {
	return &without{name: name}
}

func (f *without) MatchesArchetype(a Archetype) bool {
	return !a.HasComponent(f.name)
}

func (f *without) MatchesRow(r Row) bool {
	return !r.HasComponent(f.name)
}

func (f *without) Static() bool { return true }

func (f *without) String() string { return "WITHOUT(" + f.name + ")" }

func (f *without) sealed() {}

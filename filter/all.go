package filter

type all struct{}

// All matches every row of every archetype.
func All() Filter {
	return &all{}
}

func (f *all) MatchesArchetype(Archetype) bool { return true }

func (f *all) MatchesRow(Row) bool { return true }

func (f *all) Static() bool { return true }

func (f *all) String() string { return "ALL()" }

func (f *all) sealed() {}

package testutils

// Shared component fixtures used by tests across packages.

type Position struct{ X, Y float64 }

func (Position) Name() string { return "position" }

type Velocity struct{ X, Y float64 }

func (Velocity) Name() string { return "velocity" }

type Health struct {
	Value int `json:"value"`
}

func (Health) Name() string { return "health" }

type Experience struct{ Value int }

func (Experience) Name() string { return "experience" }

type PlayerTag struct{ Nickname string }

func (PlayerTag) Name() string { return "player_tag" }

type EnemyTag struct{}

func (EnemyTag) Name() string { return "enemy_tag" }

// NoName is a component with an empty name, used to exercise registration failures.
type NoName struct{ Value int }

func (NoName) Name() string { return "" }

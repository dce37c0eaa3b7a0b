package ecs

// System is a function that contains game logic. It receives a pointer to its state struct,
// whose fields declare everything the system touches; the scheduler derives safe parallel
// execution from those declarations alone.
type System[S any] func(state *S) error

// Stage labels a slice of the tick's execution order. All systems of a stage complete before
// the next stage starts; within a stage, execution order follows the conflict schedule.
type Stage string

const (
	// StageInit runs once during world initialization, before the first tick.
	StageInit Stage = "Init"
	// StagePreUpdate runs before the main update.
	StagePreUpdate Stage = "PreUpdate"
	// StageUpdate is the default stage for game logic.
	StageUpdate Stage = "Update"
	// StagePostUpdate runs after the main update.
	StagePostUpdate Stage = "PostUpdate"
)

// DefaultStages returns the stage order worlds use unless configured otherwise.
func DefaultStages() []Stage {
	return []Stage{StagePreUpdate, StageUpdate, StagePostUpdate}
}

// systemConfig holds all configurable options for system registration.
type systemConfig struct {
	name      string // Defaults to the system function's name
	stage     Stage
	exclusive bool
}

// newSystemConfig creates a new system config with default values.
func newSystemConfig() systemConfig {
	return systemConfig{stage: StageUpdate}
}

// SystemOption is a function that configures a systemConfig.
type SystemOption func(*systemConfig)

// WithStage returns an option that assigns the system to a stage.
func WithStage(stage Stage) SystemOption {
	return func(cfg *systemConfig) { cfg.stage = stage }
}

// WithName returns an option that overrides the system's derived name.
func WithName(name string) SystemOption {
	return func(cfg *systemConfig) { cfg.name = name }
}

// WithExclusive returns an option that gives the system the whole world to itself. An exclusive
// system never runs concurrently with any other system and may mutate the world structurally
// through an Exclusive state field; in exchange its state must not declare granular query,
// resource or event access.
func WithExclusive() SystemOption {
	return func(cfg *systemConfig) { cfg.exclusive = true }
}

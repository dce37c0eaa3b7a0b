package ecs

import (
	"path/filepath"
	"reflect"
	"runtime"
	"slices"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/argus-labs/lattice/internal/assert"
	"github.com/argus-labs/lattice/internal/tickphase"
)

// World owns the storage, the registered systems and the tick loop. Assemble it single-threaded
// (register components and systems, then Init), then drive it with Tick.
type World struct {
	state    *WorldState
	commands *commandBuffer
	events   *eventManager
	phase    *tickphase.Manager

	log     zerolog.Logger
	workers int
	stages  []Stage

	systems      []*systemDescriptor
	names        map[string]systemID
	schedules    []stageSchedule // One per stage, in stage order
	initSchedule stageSchedule
	tick         atomic.Uint64
	initialized  bool
}

// WorldOption configures a World at construction.
type WorldOption func(*World)

// WithLogger sets the world's logger. Systems receive children of it tagged with their name.
func WithLogger(log zerolog.Logger) WorldOption {
	return func(w *World) { w.log = log }
}

// WithWorkers caps how many systems of one batch run concurrently.
func WithWorkers(workers int) WorldOption {
	return func(w *World) { w.workers = workers }
}

// WithStageOrder replaces the default PreUpdate, Update, PostUpdate stage order. StageInit is
// implicit and must not be listed.
func WithStageOrder(stages ...Stage) WorldOption {
	return func(w *World) { w.stages = stages }
}

// NewWorld creates an empty world.
func NewWorld(opts ...WorldOption) (*World, error) {
	w := &World{
		state:    newWorldState(),
		commands: newCommandBuffer(),
		events:   newEventManager(),
		phase:    tickphase.NewManager(),
		log:      zerolog.Nop(),
		workers:  runtime.NumCPU(),
		stages:   DefaultStages(),
		names:    make(map[string]systemID),
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.workers < 1 {
		return nil, eris.New("worker count must be at least 1")
	}
	if len(w.stages) == 0 {
		return nil, eris.New("stage order cannot be empty")
	}
	seen := make(map[Stage]bool, len(w.stages))
	for _, stage := range w.stages {
		if stage == StageInit {
			return nil, eris.New("stage order cannot contain the implicit Init stage")
		}
		if seen[stage] {
			return nil, eris.Errorf("stage order lists stage %s twice", stage)
		}
		seen[stage] = true
	}

	return w, nil
}

// State returns the world's storage. Intended for assembly before Init, for exclusive systems,
// and for tests; while granular systems execute, touching it directly races with them.
func (w *World) State() *WorldState {
	return w.state
}

// CurrentTick returns the tick the world is in. It is 0 before Init and advances at the end of
// every successful tick.
func (w *World) CurrentTick() uint64 {
	return w.tick.Load()
}

// Logger returns the world's logger.
func (w *World) Logger() *zerolog.Logger {
	return &w.log
}

// RegisterComponent registers the component type T ahead of use. Spawning requires it; queries
// and component mutators register their types on first use themselves.
func RegisterComponent[T Component](w *World) error {
	_, err := registerComponent[T](&w.state.components)
	return err
}

// RegisterSystem registers a system. Its state struct type determines everything it may touch;
// initialization errors (malformed state structs, duplicate names, unknown stages, exclusivity
// violations) are fatal here, before any tick runs.
func RegisterSystem[S any](w *World, system System[S], opts ...SystemOption) error {
	if w.initialized {
		return eris.New("cannot register systems after world init")
	}

	cfg := newSystemConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.name == "" {
		cfg.name = filepath.Base(runtime.FuncForPC(reflect.ValueOf(system).Pointer()).Name())
	}

	if _, exists := w.names[cfg.name]; exists {
		return eris.Errorf("system %s is already registered", cfg.name)
	}
	if cfg.stage != StageInit && !slices.Contains(w.stages, cfg.stage) {
		return eris.Errorf("system %s uses unknown stage %s", cfg.name, cfg.stage)
	}

	d := &systemDescriptor{
		id:        len(w.systems),
		name:      cfg.name,
		stage:     cfg.stage,
		exclusive: cfg.exclusive,
		log:       w.log.With().Str("system", cfg.name).Logger(),
	}

	state := new(S)
	if err := initializeSystemState(w, d, state); err != nil {
		return eris.Wrapf(err, "failed to register system %s", cfg.name)
	}
	d.run = func() error { return system(state) }

	w.systems = append(w.systems, d)
	w.names[cfg.name] = d.id
	return nil
}

// Init freezes registration, builds the execution schedules, and runs the Init stage once.
// Mutations made during Init, both direct spawns during assembly and commands queued by Init
// systems, read as added in tick 1.
func (w *World) Init() error {
	if w.initialized {
		return eris.New("world is already initialized")
	}

	w.initSchedule = buildStageSchedule(StageInit, w.systems)
	w.schedules = make([]stageSchedule, 0, len(w.stages))
	for _, stage := range w.stages {
		w.schedules = append(w.schedules, buildStageSchedule(stage, w.systems))
	}

	if err := w.initSchedule.run(w.workers); err != nil {
		return eris.Wrap(err, "world init failed")
	}
	applyAll(w.state, w.commands.drain(), w.log)

	w.state.rotateChangeWindows()
	w.events.rotateAll()
	w.tick.Store(1)
	w.initialized = true

	w.log.Info().
		Int("systems", len(w.systems)).
		Int("init_systems", w.initSchedule.systemCount()).
		Int("workers", w.workers).
		Msg("world initialized")
	return nil
}

// Tick runs one tick: every stage's systems under the conflict schedule, then the queued
// structural mutations, then the change window and event rotation that moves the world into
// the next tick.
//
// A system error or panic aborts the tick: queued commands are discarded, the tick counter
// stays put, and the wrapped error names the failing system. Component writes the failed tick
// already made are not rolled back.
func (w *World) Tick() error {
	if !w.initialized {
		return eris.New("world must be initialized before ticking")
	}
	if !w.phase.CompareAndSwap(tickphase.Collecting, tickphase.Executing) {
		return eris.Errorf("tick started while in phase %s", w.phase.Current())
	}

	w.state.setStaging(false)
	execErr := w.runStages()
	w.state.setStaging(true)

	if execErr != nil {
		if discarded := len(w.commands.drain()); discarded > 0 {
			w.log.Warn().Int("count", discarded).Msg("discarded commands queued by failed tick")
		}
		w.phase.Store(tickphase.Collecting)
		return eris.Wrapf(execErr, "tick %d failed", w.tick.Load())
	}

	ok := w.phase.CompareAndSwap(tickphase.Executing, tickphase.ApplyingStructuralMutations)
	assert.That(ok, "phase moved away from Executing mid-tick")
	applyAll(w.state, w.commands.drain(), w.log)

	ok = w.phase.CompareAndSwap(tickphase.ApplyingStructuralMutations, tickphase.Advancing)
	assert.That(ok, "phase moved away from ApplyingStructuralMutations mid-tick")
	w.state.rotateChangeWindows()
	w.events.rotateAll()
	w.tick.Add(1)

	ok = w.phase.CompareAndSwap(tickphase.Advancing, tickphase.Collecting)
	assert.That(ok, "phase moved away from Advancing mid-tick")
	return nil
}

func (w *World) runStages() error {
	for i := range w.schedules {
		if err := w.schedules[i].run(w.workers); err != nil {
			return err
		}
	}
	return nil
}

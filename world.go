package lattice

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/argus-labs/lattice/ecs"
	"github.com/argus-labs/lattice/filter"
)

// World represents your simulation and serves as the main entry point for
// lattice. It wraps an ecs.World with configuration, logging and a real-time
// tick driver.
type World struct {
	world   *ecs.World // The ECS world storing the simulation's state and systems
	options WorldOptions
	log     zerolog.Logger

	initialized bool
	lastTick    time.Time     // Timestamp of the previous tick
	elapsed     time.Duration // Total wall-clock time across ticks
}

// NewWorld creates a new world with the specified configuration. Options are
// layered: defaults, then LATTICE_* environment variables, then opts.
func NewWorld(opts WorldOptions) (*World, error) {
	cfg, err := loadWorldConfig()
	if err != nil {
		return nil, eris.Wrap(err, "failed to load world config")
	}

	options := newDefaultWorldOptions()
	options.apply(cfg.toOptions())
	options.apply(opts)
	if err := options.validate(); err != nil {
		return nil, eris.Wrap(err, "invalid world options")
	}
	if options.InstanceID == "" {
		options.InstanceID = uuid.New().String()
	}

	log := newLogger(options)

	ecsOptions := []ecs.WorldOption{
		ecs.WithLogger(log),
		ecs.WithWorkers(options.Workers),
	}
	if len(options.StageOrder) > 0 {
		ecsOptions = append(ecsOptions, ecs.WithStageOrder(options.StageOrder...))
	}
	world, err := ecs.NewWorld(ecsOptions...)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create ecs world")
	}

	return &World{
		world:   world,
		options: options,
		log:     log,
	}, nil
}

// RegisterComponent registers the component type T with the world. All
// component types must be registered before Init is called.
func RegisterComponent[T ecs.Component](w *World) error {
	return ecs.RegisterComponent[T](w.world)
}

// RegisterSystem registers a system with the world. All systems must be
// registered before Init is called.
func RegisterSystem[S any](w *World, system ecs.System[S], opts ...ecs.SystemOption) error {
	return ecs.RegisterSystem(w.world, system, opts...)
}

// Init closes registration, runs the init stage systems once and prepares
// the world for ticking. It must be called exactly once.
func (w *World) Init() error {
	ecs.SetResource(w.world.State(), Time{})

	if err := w.world.Init(); err != nil {
		return eris.Wrap(err, "failed to initialize world")
	}

	w.initialized = true
	return nil
}

// Tick runs a single tick stamped with the given time. The Time resource is
// refreshed before the systems execute.
func (w *World) Tick(timestamp time.Time) error {
	var delta time.Duration
	if !w.lastTick.IsZero() {
		delta = timestamp.Sub(w.lastTick)
	}
	w.lastTick = timestamp
	w.elapsed += delta

	ecs.SetResource(w.world.State(), Time{
		Tick:    w.world.CurrentTick(),
		Delta:   delta,
		Elapsed: w.elapsed,
	})

	return w.world.Tick()
}

// StartGameLoop initializes the world if needed, then runs ticks at the
// configured tick rate until ctx is cancelled or the process receives SIGINT
// or SIGTERM. Cancellation is a clean stop; a failed tick is returned.
func (w *World) StartGameLoop(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !w.initialized {
		if err := w.Init(); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(time.Duration(float64(time.Second) / w.options.TickRate))
	defer ticker.Stop()

	w.log.Info().Float64("tick_rate", w.options.TickRate).Msg("starting game loop")

	for {
		select {
		case timestamp := <-ticker.C:
			if err := w.Tick(timestamp); err != nil {
				return eris.Wrap(err, "failed to run tick")
			}
		case <-ctx.Done():
			w.log.Info().
				Uint64("ticks", w.world.CurrentTick()-1).
				Msg("game loop stopped")
			return nil
		}
	}
}

// InstanceID returns the unique id of this world instance.
func (w *World) InstanceID() string {
	return w.options.InstanceID
}

// State exposes the raw world state. Between ticks it is safe to read and
// mutate directly; while systems execute, touching it races with them.
func (w *World) State() *ecs.WorldState {
	return w.world.State()
}

// CurrentTick returns the number of the tick that is about to execute.
func (w *World) CurrentTick() uint64 {
	return w.world.CurrentTick()
}

// Logger returns the world logger.
func (w *World) Logger() *zerolog.Logger {
	return w.world.Logger()
}

// Search runs a registration-free query over the world's entities, returning
// one map of component values per matching entity.
func (w *World) Search(params ecs.SearchParam) ([]map[string]any, error) {
	return w.world.Search(params)
}

// Filter compiles a query-language string against the registered components.
func (w *World) Filter(query string) (filter.Filter, error) {
	return w.world.Filter(query)
}

package lattice

import "time"

// Time is a world resource describing the tick currently executing. The world
// refreshes it right before each tick, so systems read it through
// ecs.Res[lattice.Time] to drive movement, cooldowns and timeouts.
type Time struct {
	// Tick is the number of the tick currently executing.
	Tick uint64

	// Delta is the wall-clock duration since the previous tick started.
	// It is zero on the first tick.
	Delta time.Duration

	// Elapsed is the total wall-clock duration since the world started
	// ticking.
	Elapsed time.Duration
}

package ecs

import (
	"runtime/debug"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/argus-labs/lattice/internal/assert"
)

// systemID is a system's index in the world's registration order.
type systemID = int

// systemDescriptor is everything the scheduler knows about one registered system.
type systemDescriptor struct {
	id        systemID
	name      string
	stage     Stage
	exclusive bool
	access    accessSet
	run       func() error // Calls the system function with its state
	log       zerolog.Logger
}

// conflictsWith reports whether two systems cannot run concurrently: either is exclusive, or
// their access sets collide.
func (d *systemDescriptor) conflictsWith(other *systemDescriptor) bool {
	if d.exclusive || other.exclusive {
		return true
	}
	return d.access.conflictsWith(&other.access)
}

// safeRun executes the system, converting a panic into an error so one broken system cannot
// take down the scheduler.
func (d *systemDescriptor) safeRun() (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().
				Bytes("stack", debug.Stack()).
				Msgf("system panicked: %v", r)
			err = eris.Errorf("system %s panicked: %v", d.name, r)
		}
	}()

	if runErr := d.run(); runErr != nil {
		return eris.Wrapf(runErr, "system %s failed", d.name)
	}
	return nil
}

// stageSchedule is the execution plan for one stage: systems partitioned into batches, where
// every pair of systems inside a batch is conflict-free and may run concurrently, and batch k+1
// starts only after batch k completed. Built once after registration closes; ticks reuse it.
type stageSchedule struct {
	stage   Stage
	batches [][]*systemDescriptor
}

// buildStageSchedule plans one stage. Conflict edges always point from the earlier-registered
// system to the later one, so the graph is acyclic by construction and registration order is
// the tiebreak everywhere, making the plan deterministic.
func buildStageSchedule(stage Stage, systems []*systemDescriptor) stageSchedule {
	var members []*systemDescriptor
	for _, d := range systems {
		if d.stage == stage {
			members = append(members, d)
		}
	}

	n := len(members)
	adjacency := make([][]int, n)
	indegree := make([]int, n)
	for i := range n {
		for j := i + 1; j < n; j++ {
			if members[i].conflictsWith(members[j]) {
				adjacency[i] = append(adjacency[i], j)
				indegree[j]++
			}
		}
	}

	// Layered topological sort: each layer is one batch. Two systems land in the same layer
	// only when no conflict edge connects them.
	schedule := stageSchedule{stage: stage}
	scheduled := make([]bool, n)
	for remaining := n; remaining > 0; {
		var layer []int
		for i := range n {
			if !scheduled[i] && indegree[i] == 0 {
				layer = append(layer, i)
			}
		}
		assert.That(len(layer) > 0, "schedule layering stalled on a cycle")

		batch := make([]*systemDescriptor, 0, len(layer))
		for _, i := range layer {
			scheduled[i] = true
			batch = append(batch, members[i])
			for _, j := range adjacency[i] {
				indegree[j]--
			}
		}
		schedule.batches = append(schedule.batches, batch)
		remaining -= len(layer)
	}

	return schedule
}

// run executes the stage's batches in order, each batch in parallel on at most workers
// goroutines. When a system fails, the rest of its batch still completes, later batches are
// skipped, and the first error is returned.
func (s *stageSchedule) run(workers int) error {
	for _, batch := range s.batches {
		g := new(errgroup.Group)
		g.SetLimit(workers)
		for _, d := range batch {
			g.Go(d.safeRun)
		}
		if err := g.Wait(); err != nil {
			return eris.Wrapf(err, "stage %s failed", s.stage)
		}
	}
	return nil
}

// systemCount returns the number of systems in the plan.
func (s *stageSchedule) systemCount() int {
	total := 0
	for _, batch := range s.batches {
		total += len(batch)
	}
	return total
}

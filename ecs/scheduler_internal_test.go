package ecs

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/argus-labs/lattice/assert"
	"github.com/argus-labs/lattice/internal/testutils"
)

// descRig builds scheduler inputs without going through system registration.
type descRig struct {
	systems []*systemDescriptor
}

type descSpec struct {
	name      string
	reads     []componentID
	writes    []componentID
	exclusive bool
	run       func() error
}

func (rig *descRig) add(spec descSpec) *systemDescriptor {
	run := spec.run
	if run == nil {
		run = func() error { return nil }
	}

	d := &systemDescriptor{
		id:        len(rig.systems),
		name:      spec.name,
		stage:     StageUpdate,
		exclusive: spec.exclusive,
		run:       run,
		log:       zerolog.Nop(),
	}
	for _, cid := range spec.reads {
		d.access.compRead.Set(cid)
	}
	for _, cid := range spec.writes {
		d.access.compWrite.Set(cid)
	}

	rig.systems = append(rig.systems, d)
	return d
}

func batchNames(s stageSchedule) [][]string {
	names := make([][]string, 0, len(s.batches))
	for _, batch := range s.batches {
		row := make([]string, 0, len(batch))
		for _, d := range batch {
			row = append(row, d.name)
		}
		names = append(names, row)
	}
	return names
}

func TestScheduleReadersShareOneBatch(t *testing.T) {
	t.Parallel()

	rig := &descRig{}
	rig.add(descSpec{name: "a", reads: []componentID{0}})
	rig.add(descSpec{name: "b", reads: []componentID{0}})
	rig.add(descSpec{name: "c", reads: []componentID{0, 1}})

	s := buildStageSchedule(StageUpdate, rig.systems)
	assert.DeepEqual(t, [][]string{{"a", "b", "c"}}, batchNames(s))
}

func TestScheduleWritersSerializeInRegistrationOrder(t *testing.T) {
	t.Parallel()

	rig := &descRig{}
	rig.add(descSpec{name: "a", writes: []componentID{0}})
	rig.add(descSpec{name: "b", writes: []componentID{0}})
	rig.add(descSpec{name: "c", reads: []componentID{0}})

	s := buildStageSchedule(StageUpdate, rig.systems)
	assert.DeepEqual(t, [][]string{{"a"}, {"b"}, {"c"}}, batchNames(s))
}

func TestScheduleDisjointWritersRunTogether(t *testing.T) {
	t.Parallel()

	rig := &descRig{}
	rig.add(descSpec{name: "a", writes: []componentID{0}})
	rig.add(descSpec{name: "b", writes: []componentID{1}})
	rig.add(descSpec{name: "c", reads: []componentID{0}, writes: []componentID{2}})

	s := buildStageSchedule(StageUpdate, rig.systems)
	assert.DeepEqual(t, [][]string{{"a", "b"}, {"c"}}, batchNames(s))
}

func TestScheduleExclusiveRunsAlone(t *testing.T) {
	t.Parallel()

	rig := &descRig{}
	rig.add(descSpec{name: "a", reads: []componentID{0}})
	rig.add(descSpec{name: "cull", exclusive: true})
	rig.add(descSpec{name: "b", reads: []componentID{1}})

	s := buildStageSchedule(StageUpdate, rig.systems)
	assert.DeepEqual(t, [][]string{{"a"}, {"cull"}, {"b"}}, batchNames(s))
}

func TestScheduleIgnoresOtherStages(t *testing.T) {
	t.Parallel()

	rig := &descRig{}
	rig.add(descSpec{name: "a"})
	rig.systems[0].stage = StagePreUpdate
	rig.add(descSpec{name: "b"})

	s := buildStageSchedule(StageUpdate, rig.systems)
	assert.DeepEqual(t, [][]string{{"b"}}, batchNames(s))
	assert.Equal(t, 1, s.systemCount())
}

// TestScheduleRandomAccessSets checks the plan invariants over random conflict graphs: every
// system is scheduled exactly once, no two systems of a batch conflict, and conflicting pairs
// run in registration order.
func TestScheduleRandomAccessSets(t *testing.T) {
	t.Parallel()

	r := testutils.NewRand(t)
	for range 50 {
		rig := &descRig{}
		n := 2 + r.IntN(12)
		for i := range n {
			spec := descSpec{name: string(rune('a' + i)), exclusive: r.IntN(10) == 0}
			for cid := componentID(0); cid < 4; cid++ {
				switch r.IntN(4) {
				case 0:
					spec.reads = append(spec.reads, cid)
				case 1:
					spec.writes = append(spec.writes, cid)
				}
			}
			rig.add(spec)
		}

		s := buildStageSchedule(StageUpdate, rig.systems)
		assert.Equal(t, n, s.systemCount())

		position := make(map[string]int)
		for bi, batch := range s.batches {
			for x, d1 := range batch {
				position[d1.name] = bi
				for _, d2 := range batch[x+1:] {
					assert.Check(t, !d1.conflictsWith(d2),
						"systems %s and %s conflict inside one batch", d1.name, d2.name)
				}
			}
		}

		for i, d1 := range rig.systems {
			for _, d2 := range rig.systems[i+1:] {
				if d1.conflictsWith(d2) {
					assert.Check(t, position[d1.name] < position[d2.name],
						"%s registered before %s must run first", d1.name, d2.name)
				}
			}
		}

		again := buildStageSchedule(StageUpdate, rig.systems)
		assert.DeepEqual(t, batchNames(s), batchNames(again))
	}
}

func TestSafeRunWrapsSystemError(t *testing.T) {
	t.Parallel()

	rig := &descRig{}
	d := rig.add(descSpec{name: "broken", run: func() error {
		return eris.New("overheated")
	}})

	err := d.safeRun()
	assert.ErrorContains(t, err, "system broken failed")
	assert.ErrorContains(t, err, "overheated")
}

func TestSafeRunRecoversPanics(t *testing.T) {
	t.Parallel()

	rig := &descRig{}
	d := rig.add(descSpec{name: "crashy", run: func() error {
		panic("out of mana")
	}})

	err := d.safeRun()
	assert.ErrorContains(t, err, "system crashy panicked")
	assert.ErrorContains(t, err, "out of mana")
}

func TestStageRunExecutesBatchesInOrder(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var order []string
	record := func(name string) func() error {
		return func() error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	rig := &descRig{}
	rig.add(descSpec{name: "a", writes: []componentID{0}, run: record("a")})
	rig.add(descSpec{name: "b", writes: []componentID{0}, run: record("b")})
	rig.add(descSpec{name: "c", writes: []componentID{0}, run: record("c")})

	s := buildStageSchedule(StageUpdate, rig.systems)
	assert.NilError(t, s.run(4))
	assert.DeepEqual(t, []string{"a", "b", "c"}, order)
}

func TestStageRunSkipsBatchesAfterFailure(t *testing.T) {
	t.Parallel()

	var ran atomic.Int32

	rig := &descRig{}
	rig.add(descSpec{name: "fine", writes: []componentID{0}, run: func() error {
		ran.Add(1)
		return nil
	}})
	rig.add(descSpec{name: "broken", writes: []componentID{1}, run: func() error {
		ran.Add(1)
		return eris.New("boom")
	}})
	rig.add(descSpec{name: "late", writes: []componentID{0}, run: func() error {
		ran.Add(1)
		return nil
	}})

	s := buildStageSchedule(StageUpdate, rig.systems)
	assert.DeepEqual(t, [][]string{{"fine", "broken"}, {"late"}}, batchNames(s))

	err := s.run(4)
	assert.ErrorContains(t, err, "stage Update failed")
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, int32(2), ran.Load(), "the failing batch completes, later batches do not start")
}

func TestStageRunHonorsWorkerLimit(t *testing.T) {
	t.Parallel()

	var active, peak atomic.Int32
	busy := func() error {
		now := active.Add(1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		active.Add(-1)
		return nil
	}

	rig := &descRig{}
	for i := range 8 {
		rig.add(descSpec{name: string(rune('a' + i)), run: busy})
	}

	s := buildStageSchedule(StageUpdate, rig.systems)
	assert.Equal(t, 1, len(s.batches), "independent systems share one batch")
	assert.NilError(t, s.run(2))
	assert.Check(t, peak.Load() <= 2, "no more systems in flight than workers")
}

// Guard against accidental asymmetry in the conflict relation.
func TestConflictsWithIsSymmetric(t *testing.T) {
	t.Parallel()

	r := testutils.NewRand(t)
	randomSet := func() accessSet {
		var s accessSet
		fill := func(b *bitmap.Bitmap) {
			for cid := uint32(0); cid < 6; cid++ {
				if r.IntN(3) == 0 {
					b.Set(cid)
				}
			}
		}
		fill(&s.compRead)
		fill(&s.compWrite)
		fill(&s.resRead)
		fill(&s.resWrite)
		fill(&s.eventRead)
		fill(&s.eventWrite)
		return s
	}

	for range 100 {
		a, b := randomSet(), randomSet()
		assert.Equal(t, a.conflictsWith(&b), b.conflictsWith(&a))
	}
}

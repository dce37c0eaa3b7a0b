package tickphase

import (
	"sync/atomic"
)

// Phase is one of the states a world passes through during a single tick.
type Phase string

const (
	// Collecting is the resting phase between ticks. Registered systems are known but not yet
	// dispatched; the command intake accepts structural mutation requests.
	Collecting Phase = "Collecting"
	// Executing means system batches are being dispatched across the worker pool.
	Executing Phase = "Executing"
	// ApplyingStructuralMutations means buffered spawn/despawn/add/remove requests are being
	// drained in submission order. No system runs during this phase.
	ApplyingStructuralMutations Phase = "ApplyingStructuralMutations"
	// Advancing means the tick counter is incrementing and the change windows are rotating.
	Advancing Phase = "Advancing"
)

// Manager is an atomic holder for the current tick phase. Transitions are compare-and-swap so
// concurrent observers never see a torn state.
type Manager struct {
	current *atomic.Value
}

func NewManager() *Manager {
	m := &Manager{
		current: &atomic.Value{},
	}
	m.Store(Collecting)
	return m
}

func (m *Manager) CompareAndSwap(oldPhase, newPhase Phase) (swapped bool) {
	return m.current.CompareAndSwap(oldPhase, newPhase)
}

func (m *Manager) Current() Phase {
	return m.current.Load().(Phase)
}

func (m *Manager) Store(val Phase) {
	m.current.Store(val)
}

func (m *Manager) Swap(newPhase Phase) (oldPhase Phase) {
	return m.current.Swap(newPhase).(Phase)
}

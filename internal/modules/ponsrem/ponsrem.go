// Package ponsrem implements the idle "dream cycle" from spec.md's
// lighter module set: during DEEP_NIGHT while the daemon is otherwise
// idle, it runs Cerebellum's habit-detection pass early (rather than
// waiting for the normal maintenance cadence), the way REM sleep
// consolidates the day's repetition into procedure ahead of schedule.
// Grounded on internal/hypothalamus's registry-lookup-then-act idiom in
// this same package set; the dream cycle itself does nothing but ask
// Cerebellum to detect sooner than it otherwise would.
package ponsrem

import (
	"sync"

	"github.com/astra-ventures/pulse/internal/modules/cerebellum"
	"github.com/astra-ventures/pulse/internal/pulsectx"
)

// habitDetector is the minimal surface Pons-REM needs from whatever is
// registered under "cerebellum". Cerebellum never needs anything back
// from Pons-REM, so this one-directional import carries no cycle risk,
// unlike the mutually-referencing modules spec.md §9 calls out.
type habitDetector interface {
	Detect() []cerebellum.DetectionResult
}

// Module is the Pons-REM state module.
type Module struct {
	ctx       *pulsectx.Context
	mu        sync.Mutex
	cycles    int
	lastReady int
}

// New creates a Pons-REM module.
func New(ctx *pulsectx.Context) *Module {
	m := &Module{ctx: ctx}
	ctx.Registry.Register("ponsrem", m)
	return m
}

// RunDreamCycle runs Cerebellum's detection pass if the daemon is
// currently idle and in DEEP_NIGHT; it is a no-op otherwise. Returns
// the number of tasks that came back ready_to_graduate.
func (m *Module) RunDreamCycle(circadianMode string, isIdle bool) int {
	if circadianMode != "DEEP_NIGHT" || !isIdle {
		return 0
	}

	mod, ok := m.ctx.Registry.Lookup("cerebellum")
	if !ok {
		return 0
	}
	detector, ok := mod.(habitDetector)
	if !ok {
		return 0
	}

	results := detector.Detect()
	ready := 0
	for _, r := range results {
		if r.ReadyToGraduate {
			ready++
		}
	}

	m.mu.Lock()
	m.cycles++
	m.lastReady = ready
	m.mu.Unlock()

	if ready > 0 {
		m.ctx.Broadcast("ponsrem", "dream_cycle_complete", 0.15, map[string]any{"ready_to_graduate": ready})
	}
	return ready
}

// Cycles returns how many dream cycles have run.
func (m *Module) Cycles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycles
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]any{"cycles": m.cycles, "last_ready": m.lastReady}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	if key != "cycles" {
		return nil, false
	}
	return m.Cycles(), true
}

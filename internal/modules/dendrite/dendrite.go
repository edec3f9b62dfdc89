// Package dendrite implements the fan-in arrival counter from spec.md's
// lighter module set: it counts distinct source modules contributing
// broadcasts within a rolling window, surfacing how many "upstream"
// signals are currently converging. Grounded on
// internal/hypothalamus-style distinct-source counting (this module's
// own sibling in the L1 set), applied here to raw arrival counting
// rather than need birthing.
package dendrite

import (
	"sync"
	"time"

	"github.com/astra-ventures/pulse/internal/pulsectx"
)

// window is how long an arrival counts toward fan-in.
const window = 2 * time.Minute

type arrival struct {
	source string
	at     time.Time
}

// Module is the Dendrite state module.
type Module struct {
	ctx      *pulsectx.Context
	mu       sync.Mutex
	arrivals []arrival
}

// New creates a Dendrite module.
func New(ctx *pulsectx.Context) *Module {
	m := &Module{ctx: ctx}
	ctx.Registry.Register("dendrite", m)
	return m
}

// Arrive records one signal arriving from source.
func (m *Module) Arrive(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.ctx.Clock.Now()
	m.arrivals = append(m.arrivals, arrival{source: source, at: now})
	m.pruneLocked(now)
}

func (m *Module) pruneLocked(now time.Time) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(m.arrivals) && m.arrivals[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		m.arrivals = m.arrivals[i:]
	}
}

// FanIn returns the number of distinct sources that have arrived within
// the current window.
func (m *Module) FanIn() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked(m.ctx.Clock.Now())
	seen := make(map[string]bool, len(m.arrivals))
	for _, a := range m.arrivals {
		seen[a.source] = true
	}
	return len(seen)
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	return map[string]any{"fan_in": m.FanIn()}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	if key != "fan_in" {
		return nil, false
	}
	return m.FanIn(), true
}

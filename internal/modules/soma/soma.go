// Package soma implements the fast energy accumulator described in
// spec.md §4's "lighter" module set: a single scalar that trickles
// upward on each tick and drains when the daemon spends effort acting.
// Grounded on internal/brain/bodytick.go's tick-delta energy-drift idiom
// in the oliverboehm-xgr-FSKI pack repo, generalized from a fixed
// per-second rate to a configurable recovery rate with an explicit
// spend operation.
package soma

import (
	"sync"
	"time"

	"github.com/astra-ventures/pulse/internal/pulsectx"
)

const (
	maxEnergy           = 100.0
	defaultRecoveryRate = 0.02 // energy per second of idle tick time
	lowEnergyThreshold  = 20.0
)

// Module is the Soma state module.
type Module struct {
	ctx          *pulsectx.Context
	mu           sync.Mutex
	energy       float64
	recoveryRate float64
	lastTick     time.Time
}

// New creates a Soma module starting at full energy.
func New(ctx *pulsectx.Context) *Module {
	m := &Module{
		ctx:          ctx,
		energy:       maxEnergy,
		recoveryRate: defaultRecoveryRate,
		lastTick:     ctx.Clock.Now(),
	}
	ctx.Registry.Register("soma", m)
	return m
}

// Tick recovers energy proportional to elapsed wall time since the last
// tick, capped at maxEnergy.
func (m *Module) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.ctx.Clock.Now()
	elapsed := now.Sub(m.lastTick)
	m.lastTick = now

	m.energy += elapsed.Seconds() * m.recoveryRate
	if m.energy > maxEnergy {
		m.energy = maxEnergy
	}
}

// Spend draws down energy by amount, floored at 0, and reports whether
// the resulting level crossed into low-energy territory for the first
// time this call.
func (m *Module) Spend(amount float64) (level float64, wentLow bool) {
	m.mu.Lock()
	wasLow := m.energy < lowEnergyThreshold
	m.energy -= amount
	if m.energy < 0 {
		m.energy = 0
	}
	level = m.energy
	nowLow := level < lowEnergyThreshold
	m.mu.Unlock()

	wentLow = nowLow && !wasLow
	if wentLow {
		m.ctx.Broadcast("soma", "energy_low", 0.4, map[string]any{"energy": level})
	}
	return level, wentLow
}

// Level returns the current energy level.
func (m *Module) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.energy
}

// SetRecoveryRate overrides the per-second recovery rate (config-tunable).
func (m *Module) SetRecoveryRate(rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recoveryRate = rate
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]any{"energy": m.energy}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	if key != "energy" {
		return nil, false
	}
	return m.Level(), true
}

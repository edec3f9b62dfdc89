// Package proprioception implements the tick-timing self-sense from
// spec.md's lighter module set: it compares the daemon's configured
// tick period against the actual elapsed time between ticks, surfacing
// drift that Spine's cron-health probe can fold into its own signal.
// Grounded on internal/budget/cpuwatcher.go's poll-interval bookkeeping
// in the teacher, applied to the daemon's own tick loop rather than an
// external process.
package proprioception

import (
	"sync"
	"time"

	"github.com/astra-ventures/pulse/internal/pulsectx"
)

// driftAlertThreshold is how far (as a fraction of the expected period)
// a tick must overrun before it counts as a missed beat.
const driftAlertThreshold = 0.5

// Module is the Proprioception state module.
type Module struct {
	ctx          *pulsectx.Context
	mu           sync.Mutex
	expected     time.Duration
	lastTick     time.Time
	missedBeats  int
	lastDrift    time.Duration
}

// New creates a Proprioception module expecting ticks every expected
// duration.
func New(ctx *pulsectx.Context, expected time.Duration) *Module {
	m := &Module{ctx: ctx, expected: expected, lastTick: ctx.Clock.Now()}
	ctx.Registry.Register("proprioception", m)
	return m
}

// Tick records one tick's arrival, computing drift from the expected
// period and broadcasting missed_beat if the drift is severe.
func (m *Module) Tick() time.Duration {
	m.mu.Lock()
	now := m.ctx.Clock.Now()
	elapsed := now.Sub(m.lastTick)
	m.lastTick = now
	drift := elapsed - m.expected
	m.lastDrift = drift

	missed := m.expected > 0 && float64(drift) > float64(m.expected)*driftAlertThreshold
	if missed {
		m.missedBeats++
	}
	missedTotal := m.missedBeats
	m.mu.Unlock()

	if missed {
		m.ctx.Broadcast("proprioception", "missed_beat", 0.3, map[string]any{
			"drift_ms":     drift.Milliseconds(),
			"missed_total": missedTotal,
		})
	}
	return drift
}

// MissedBeats returns the cumulative count of severely drifted ticks,
// suitable for Spine to fold into its cron_health probe.
func (m *Module) MissedBeats() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.missedBeats
}

// LastDrift returns the most recently observed drift.
func (m *Module) LastDrift() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastDrift
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	return map[string]any{"missed_beats": m.MissedBeats(), "last_drift_ms": m.LastDrift().Milliseconds()}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	if key != "missed_beats" {
		return nil, false
	}
	return m.MissedBeats(), true
}

// Package vestibular implements the balance scalar from spec.md's
// lighter module set: it tracks the variance of intervals between
// trigger firings and expresses it as a single "steadiness" score, low
// variance meaning a settled rhythm and high variance meaning erratic,
// bursty triggering. Grounded on internal/budget/cpuwatcher.go's
// rolling-history-then-derived-state idiom, generalized from CPU
// samples to trigger-interval samples.
package vestibular

import (
	"math"
	"sync"
	"time"

	"github.com/astra-ventures/pulse/internal/pulsectx"
)

const maxIntervals = 30

// Module is the Vestibular state module.
type Module struct {
	ctx       *pulsectx.Context
	mu        sync.Mutex
	lastFired time.Time
	intervals []float64 // seconds
}

// New creates a Vestibular module.
func New(ctx *pulsectx.Context) *Module {
	m := &Module{ctx: ctx}
	ctx.Registry.Register("vestibular", m)
	return m
}

// RecordTrigger notes a trigger firing, deriving an interval sample from
// the previous firing.
func (m *Module) RecordTrigger() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.ctx.Clock.Now()
	if !m.lastFired.IsZero() {
		m.intervals = append(m.intervals, now.Sub(m.lastFired).Seconds())
		if len(m.intervals) > maxIntervals {
			m.intervals = m.intervals[len(m.intervals)-maxIntervals:]
		}
	}
	m.lastFired = now
}

// Steadiness returns a [0,1] score: 1 is a perfectly even rhythm, 0 is
// maximally erratic (coefficient of variation saturating at 1).
func (m *Module) Steadiness() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.intervals) < 2 {
		return 1
	}
	mean := average(m.intervals)
	if mean == 0 {
		return 1
	}
	var variance float64
	for _, v := range m.intervals {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(m.intervals))
	cv := math.Sqrt(variance) / mean
	if cv > 1 {
		cv = 1
	}
	return 1 - cv
}

func average(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	return map[string]any{"steadiness": m.Steadiness()}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	if key != "steadiness" {
		return nil, false
	}
	return m.Steadiness(), true
}

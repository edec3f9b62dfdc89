// Package aura implements the slow-cadence presentation aggregator from
// spec.md's lighter module set and §10's original_source supplement: it
// recomputes a composite "overall field" reading from Endocrine,
// Circadian, Soma, and Adipose no more than once every 60 seconds,
// mirroring original_source's src/aura.py wall-clock-gated cadence.
// Grounded on internal/metacog/reflection.go's periodic-snapshot shape,
// generalized to a fixed-interval gate instead of day/week framing.
package aura

import (
	"sync"
	"time"

	"github.com/astra-ventures/pulse/internal/pulsectx"
)

// emitCadence matches original_source's 60-second aura refresh.
const emitCadence = 60 * time.Second

// Field is one composite aura reading.
type Field struct {
	MoodLabel     string  `json:"mood_label"`
	CircadianMode string  `json:"circadian_mode"`
	Energy        float64 `json:"energy"`
	Reserve       float64 `json:"reserve"`
	ComputedAt    time.Time `json:"computed_at"`
}

// Module is the Aura state module.
type Module struct {
	ctx        *pulsectx.Context
	mu         sync.Mutex
	last       Field
	lastEmitAt time.Time
}

// New creates an Aura module.
func New(ctx *pulsectx.Context) *Module {
	m := &Module{ctx: ctx}
	ctx.Registry.Register("aura", m)
	return m
}

// Tick recomputes the field only if emitCadence has elapsed since the
// last recomputation, returning the (possibly stale) last-known field
// either way.
func (m *Module) Tick() Field {
	m.mu.Lock()
	now := m.ctx.Clock.Now()
	if !m.lastEmitAt.IsZero() && now.Sub(m.lastEmitAt) < emitCadence {
		field := m.last
		m.mu.Unlock()
		return field
	}
	m.mu.Unlock()

	field := Field{ComputedAt: now}
	if mood, ok := m.ctx.Registry.GetFrom("endocrine", "label"); ok {
		if s, ok := mood.(string); ok {
			field.MoodLabel = s
		}
	}
	if mode, ok := m.ctx.Registry.GetFrom("circadian", "mode"); ok {
		if s, ok := mode.(string); ok {
			field.CircadianMode = s
		}
	}
	if energy, ok := m.ctx.Registry.GetFrom("soma", "energy"); ok {
		if f, ok := energy.(float64); ok {
			field.Energy = f
		}
	}
	if reserve, ok := m.ctx.Registry.GetFrom("adipose", "reserve"); ok {
		if f, ok := reserve.(float64); ok {
			field.Reserve = f
		}
	}

	m.mu.Lock()
	m.last = field
	m.lastEmitAt = now
	m.mu.Unlock()

	m.ctx.Broadcast("aura", "field_updated", 0.1, map[string]any{
		"mood_label":     field.MoodLabel,
		"circadian_mode": field.CircadianMode,
	})
	return field
}

// Last returns the most recently computed field without re-triggering
// the cadence gate.
func (m *Module) Last() Field {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	f := m.Last()
	return map[string]any{"mood_label": f.MoodLabel, "circadian_mode": f.CircadianMode}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	f := m.Last()
	switch key {
	case "mood_label":
		return f.MoodLabel, true
	case "circadian_mode":
		return f.CircadianMode, true
	case "energy":
		return f.Energy, true
	case "reserve":
		return f.Reserve, true
	}
	return nil, false
}

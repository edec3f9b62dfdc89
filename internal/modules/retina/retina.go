// Package retina implements the light/dark sense from spec.md's lighter
// module set: it reads Circadian's current retina_threshold and an
// ambient light sample, classifying the tick as "light" or "dark" for
// Amygdala's distress-keyword pattern (which is more sensitive at
// night, per spec.md §4.4's note that the retina_threshold tunes
// pattern sensitivity). Grounded on internal/hypothalamus's
// registry-lookup-then-decide idiom in this same package set.
package retina

import (
	"sync"

	"github.com/astra-ventures/pulse/internal/pulsectx"
)

// Module is the Retina state module.
type Module struct {
	ctx     *pulsectx.Context
	mu      sync.Mutex
	isDark  bool
}

// New creates a Retina module.
func New(ctx *pulsectx.Context) *Module {
	m := &Module{ctx: ctx}
	ctx.Registry.Register("retina", m)
	return m
}

// Sense compares ambientLight (a [0,1] brightness sample, 0 pitch
// black) against Circadian's retina_threshold, updating and returning
// the light/dark classification.
func (m *Module) Sense(ambientLight float64) bool {
	threshold := 0.5
	if t, ok := m.ctx.Registry.GetFrom("circadian", "retina_threshold"); ok {
		if f, ok := t.(float64); ok {
			threshold = f
		}
	}

	dark := ambientLight < threshold

	m.mu.Lock()
	changed := dark != m.isDark
	m.isDark = dark
	m.mu.Unlock()

	if changed {
		m.ctx.Broadcast("retina", "light_transition", 0.05, map[string]any{"dark": dark})
	}
	return dark
}

// IsDark returns the last sensed classification.
func (m *Module) IsDark() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isDark
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	return map[string]any{"is_dark": m.IsDark()}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	if key != "is_dark" {
		return nil, false
	}
	return m.IsDark(), true
}

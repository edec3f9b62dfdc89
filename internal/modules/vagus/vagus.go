// Package vagus implements the cortisol-calming nudge from spec.md's
// lighter module set: when invoked, it looks up Endocrine through the
// registry and applies a small downward nudge to cortisol, modeling a
// parasympathetic "settle down" reflex rather than owning hormone state
// itself. Grounded on internal/reflex/engine.go's condition-then-action
// idiom in the teacher, generalized to a cross-module registry nudge
// instead of a direct method call (per spec.md §9, modules reach each
// other only through the registry).
package vagus

import (
	"sync"

	"github.com/astra-ventures/pulse/internal/pulsectx"
)

// nudgeAmount is the cortisol delta applied per calming pass.
const nudgeAmount = -0.1

// cortisolCeiling is the level (on Endocrine's 0-1 scale) above which
// Vagus engages; below it, there's nothing to calm.
const cortisolCeiling = 0.5

// endocrineNudger is the minimal surface Vagus needs from whatever is
// registered under "endocrine" — kept narrow so Vagus doesn't import
// the endocrine package directly.
type endocrineNudger interface {
	UpdateHormone(name string, delta float64, reason string) float64
}

// Module is the Vagus state module.
type Module struct {
	ctx         *pulsectx.Context
	mu          sync.Mutex
	engagements int
}

// New creates a Vagus module.
func New(ctx *pulsectx.Context) *Module {
	m := &Module{ctx: ctx}
	ctx.Registry.Register("vagus", m)
	return m
}

// Engage looks up Endocrine's current cortisol level via the registry
// and, if it is above cortisolCeiling, applies a calming nudge.
// Reports whether a nudge was applied.
func (m *Module) Engage() bool {
	cortisolAny, ok := m.ctx.Registry.GetFrom("endocrine", "cortisol")
	if !ok {
		return false
	}
	cortisol, ok := cortisolAny.(float64)
	if !ok || cortisol <= cortisolCeiling {
		return false
	}

	mod, ok := m.ctx.Registry.Lookup("endocrine")
	if !ok {
		return false
	}
	nudger, ok := mod.(endocrineNudger)
	if !ok {
		return false
	}

	nudger.UpdateHormone("cortisol", nudgeAmount, "vagal_calming")

	m.mu.Lock()
	m.engagements++
	m.mu.Unlock()

	m.ctx.Broadcast("vagus", "calming_engaged", 0.1, map[string]any{"cortisol_before": cortisol})
	return true
}

// Engagements returns how many times Vagus has applied a calming nudge.
func (m *Module) Engagements() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engagements
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	return map[string]any{"engagements": m.Engagements()}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	if key != "engagements" {
		return nil, false
	}
	return m.Engagements(), true
}

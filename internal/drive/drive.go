// Package drive implements the L2 drive engine: the set of homeostatic
// accumulators whose weighted pressure feeds the Priority Evaluator, per
// spec.md §3/§4.7/§4.11. Grounded on internal/motivation's
// load/seed/save shape in the teacher.
package drive

import (
	"fmt"
	"sync"

	"github.com/astra-ventures/pulse/internal/pulsectx"
)

// Guardrail bounds, per spec.md §4.11.
const (
	MinWeight = 0.05
	MaxWeight = 3.0
	MinRate   = 0.001
	MaxRate   = 0.1
	MaxDrives = 15
)

// Protected drives can never be removed, per spec.md §3.
var Protected = map[string]bool{"goals": true, "growth": true}

// Drive is a named homeostatic accumulator, per spec.md §3.
type Drive struct {
	Name    string  `json:"name"`
	Weight  float64 `json:"weight"`
	Pressure float64 `json:"pressure"`
	Rate    float64 `json:"rate"`
	Decay   float64 `json:"decay"`
	BornAt  int64   `json:"born_at,omitempty"` // epoch ms, set for non-seed drives
}

// WeightedPressure is weight x pressure.
func (d Drive) WeightedPressure() float64 {
	return d.Weight * d.Pressure
}

// Engine owns the drive set.
type Engine struct {
	ctx    *pulsectx.Context
	mu     sync.Mutex
	drives map[string]*Drive
}

// New creates an Engine seeded from cfg.Drives.
func New(ctx *pulsectx.Context) *Engine {
	e := &Engine{ctx: ctx, drives: make(map[string]*Drive)}
	for _, d := range ctx.Config.Drives {
		e.drives[d.Name] = &Drive{Name: d.Name, Weight: d.Weight, Rate: d.Rate, Decay: d.Decay}
	}
	ctx.Registry.Register("drive_engine", e)
	return e
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Add inserts a new drive if the count limit and protected-name
// invariants allow it.
func (e *Engine) Add(d Drive) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.drives[d.Name]; exists {
		return fmt.Errorf("drive %q already exists", d.Name)
	}
	if len(e.drives) >= MaxDrives {
		return fmt.Errorf("drive count limit (%d) reached", MaxDrives)
	}
	d.Weight = clamp(d.Weight, MinWeight, MaxWeight)
	e.drives[d.Name] = &d
	return nil
}

// Remove deletes a drive by name, refusing to remove a protected one.
func (e *Engine) Remove(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if Protected[name] {
		return fmt.Errorf("drive %q is protected and cannot be removed", name)
	}
	delete(e.drives, name)
	return nil
}

// Exists reports whether a drive by that name is currently active.
func (e *Engine) Exists(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.drives[name]
	return ok
}

// GetDrive returns a copy of one drive.
func (e *Engine) GetDrive(name string) (Drive, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.drives[name]
	if !ok {
		return Drive{}, false
	}
	return *d, true
}

// Snapshot returns a value copy of every drive, safe for the evaluator to
// hold after the engine mutates further (spec.md §9: "the drive engine's
// snapshot is taken by value at the start of evaluation").
func (e *Engine) Snapshot() []Drive {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Drive, 0, len(e.drives))
	for _, d := range e.drives {
		out = append(out, *d)
	}
	return out
}

// Accumulate applies each drive's per-tick rate (accretion) and optional
// decay, for one tick.
func (e *Engine) Accumulate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, d := range e.drives {
		d.Pressure += d.Rate
		if d.Decay > 0 {
			d.Pressure -= d.Decay
		}
		if d.Pressure < 0 {
			d.Pressure = 0
		}
	}
}

// AddPressure adds an ad-hoc pressure contribution to a drive (used by
// cross-module signals, e.g. Hypothalamus-born drives or task/idea
// impulses), clamping at 0.
func (e *Engine) AddPressure(name string, delta float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.drives[name]
	if !ok {
		return
	}
	d.Pressure += delta
	if d.Pressure < 0 {
		d.Pressure = 0
	}
}

// ResetPressure zeroes a drive's pressure (called after a trigger fires
// on its behalf).
func (e *Engine) ResetPressure(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d, ok := e.drives[name]; ok {
		d.Pressure = 0
	}
}

// ApplyWeightDelta sets a drive's weight, clamping to guardrail bounds.
// Returns the applied (possibly clamped) weight, whether clamping
// actually changed the requested value, and whether the drive exists.
func (e *Engine) ApplyWeightDelta(name string, newWeight float64) (value float64, clamped bool, found bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.drives[name]
	if !ok {
		return 0, false, false
	}
	d.Weight = clamp(newWeight, MinWeight, MaxWeight)
	return d.Weight, d.Weight != newWeight, true
}

// ApplyRateDelta sets a drive's rate, clamping to guardrail bounds. Returns
// the applied (possibly clamped) rate, whether clamping changed the
// requested value, and whether the drive exists.
func (e *Engine) ApplyRateDelta(name string, newRate float64) (value float64, clamped bool, found bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.drives[name]
	if !ok {
		return 0, false, false
	}
	d.Rate = clamp(newRate, MinRate, MaxRate)
	return d.Rate, d.Rate != newRate, true
}

// DecayOld applies Hypothalamus-style weight decay to a named drive,
// clamping at MinWeight.
func (e *Engine) DecayOld(name string, amount float64) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.drives[name]
	if !ok {
		return 0, false
	}
	d.Weight = clamp(d.Weight-amount, MinWeight, MaxWeight)
	return d.Weight, true
}

// Count returns the current number of drives.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.drives)
}

// BornAt returns the drive's BornAt epoch-ms, if tracked (0 for
// config-seeded drives).
func (e *Engine) BornAt(name string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d, ok := e.drives[name]; ok {
		return d.BornAt
	}
	return 0
}

// Birth creates a drive born at clock.Now with BornAt stamped, used by
// Hypothalamus.
func (e *Engine) Birth(name string, weight float64) error {
	e.mu.Lock()
	if _, exists := e.drives[name]; exists {
		e.mu.Unlock()
		return fmt.Errorf("drive %q already exists", name)
	}
	if len(e.drives) >= MaxDrives {
		e.mu.Unlock()
		return fmt.Errorf("drive count limit (%d) reached", MaxDrives)
	}
	e.drives[name] = &Drive{
		Name:   name,
		Weight: clamp(weight, MinWeight, MaxWeight),
		BornAt: e.ctx.Clock.Now().UnixMilli(),
	}
	e.mu.Unlock()
	return nil
}

// GetStatus implements registry.Capability.
func (e *Engine) GetStatus() map[string]any {
	snap := e.Snapshot()
	total := 0.0
	for _, d := range snap {
		total += d.WeightedPressure()
	}
	return map[string]any{"count": len(snap), "total_weighted_pressure": total}
}

// Get implements registry.Capability.
func (e *Engine) Get(key string) (any, bool) {
	d, ok := e.GetDrive(key)
	if !ok {
		return nil, false
	}
	return d.WeightedPressure(), true
}

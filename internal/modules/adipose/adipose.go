// Package adipose implements the slow energy reserve from spec.md's
// lighter module set: unlike Soma's fast-responding tick-by-tick
// energy, Adipose accumulates a deep reserve slowly from Soma's
// surplus and is drawn down only when Soma itself runs dry. Grounded
// on internal/brain/bodytick.go's accumulate-then-cap idiom, layered a
// second time at a much slower rate to model a reserve rather than a
// moment-to-moment level.
package adipose

import (
	"sync"

	"github.com/astra-ventures/pulse/internal/pulsectx"
)

const (
	maxReserve        = 500.0
	depositRate       = 0.002 // fraction of Soma surplus banked per tick
	somaSurplusFloor  = 80.0  // Soma level above which surplus is banked
	drawdownOnEmpty   = 10.0  // reserve handed to Soma when it hits 0
)

// Module is the Adipose state module.
type Module struct {
	ctx     *pulsectx.Context
	mu      sync.Mutex
	reserve float64
}

// New creates an Adipose module, empty at startup.
func New(ctx *pulsectx.Context) *Module {
	m := &Module{ctx: ctx}
	ctx.Registry.Register("adipose", m)
	return m
}

// Tick banks a small deposit whenever Soma's energy level is running a
// surplus, and offers a drawdown if Soma has run dry. Callers are
// expected to apply the returned drawdown to Soma themselves (Adipose
// never mutates another module directly, per spec.md §9).
func (m *Module) Tick(somaLevel float64) (drawdown float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if somaLevel > somaSurplusFloor {
		m.reserve += (somaLevel - somaSurplusFloor) * depositRate
		if m.reserve > maxReserve {
			m.reserve = maxReserve
		}
		return 0
	}

	if somaLevel <= 0 && m.reserve > 0 {
		drawdown = drawdownOnEmpty
		if drawdown > m.reserve {
			drawdown = m.reserve
		}
		m.reserve -= drawdown
	}
	return drawdown
}

// Reserve returns the current banked reserve.
func (m *Module) Reserve() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reserve
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	return map[string]any{"reserve": m.Reserve()}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	if key != "reserve" {
		return nil, false
	}
	return m.Reserve(), true
}

// Package thymus implements "immune priming" from spec.md's lighter
// module set: it watches the salience of recent broadcasts and raises a
// sensitivity multiplier when salience has been running hot, so
// downstream evaluators react faster during a genuinely eventful
// stretch. Grounded on internal/filter/entropy.go's rolling-history
// divergence idiom in the teacher, adapted from semantic embeddings to
// a plain moving average of salience.
package thymus

import (
	"sync"

	"github.com/astra-ventures/pulse/internal/pulsectx"
)

const (
	historySize       = 20
	primingThreshold  = 0.6 // average salience above which sensitivity rises
	primedSensitivity = 1.5
	baseSensitivity   = 1.0
)

// Module is the Thymus state module.
type Module struct {
	ctx     *pulsectx.Context
	mu      sync.Mutex
	history []float64
	primed  bool
}

// New creates a Thymus module.
func New(ctx *pulsectx.Context) *Module {
	m := &Module{ctx: ctx}
	ctx.Registry.Register("thymus", m)
	return m
}

// Observe records one broadcast's salience and re-evaluates priming.
func (m *Module) Observe(salience float64) {
	m.mu.Lock()
	m.history = append(m.history, salience)
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
	avg := average(m.history)
	wasPrimed := m.primed
	m.primed = avg >= primingThreshold
	nowPrimed := m.primed
	m.mu.Unlock()

	if nowPrimed && !wasPrimed {
		m.ctx.Broadcast("thymus", "immune_primed", 0.3, map[string]any{"avg_salience": avg})
	}
}

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Sensitivity returns the current sensitivity multiplier: elevated while
// primed, baseline otherwise.
func (m *Module) Sensitivity() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.primed {
		return primedSensitivity
	}
	return baseSensitivity
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]any{"primed": m.primed, "avg_salience": average(m.history)}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	if key != "sensitivity" {
		return nil, false
	}
	return m.Sensitivity(), true
}

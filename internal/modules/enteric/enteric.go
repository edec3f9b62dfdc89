// Package enteric implements the filesystem-churn anomaly detector from
// spec.md's lighter module set: it tracks a rolling history of recent
// per-tick file-change counts and flags a tick whose churn deviates
// sharply from the recent average, the way a "gut feeling" something is
// off precedes explicit diagnosis. Grounded on
// internal/filter/entropy.go's rolling-history-then-divergence-score
// idiom in the teacher, replacing cosine similarity over embeddings
// with a plain standard-deviation z-score so Enteric stays
// dependency-free.
package enteric

import (
	"math"
	"sync"

	"github.com/astra-ventures/pulse/internal/pulsectx"
)

const (
	historySize  = 30
	zScoreAlert  = 2.5
	minHistoryFor = 5
)

// Module is the Enteric state module.
type Module struct {
	ctx     *pulsectx.Context
	mu      sync.Mutex
	history []float64
}

// New creates an Enteric module.
func New(ctx *pulsectx.Context) *Module {
	m := &Module{ctx: ctx}
	ctx.Registry.Register("enteric", m)
	return m
}

// Observe records one tick's file-change count and reports whether it
// is anomalous relative to recent history (a z-score beyond
// zScoreAlert), broadcasting gut_unease when it is.
func (m *Module) Observe(changeCount int) (zScore float64, anomalous bool) {
	m.mu.Lock()
	history := append([]float64(nil), m.history...)
	m.history = append(m.history, float64(changeCount))
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
	m.mu.Unlock()

	if len(history) < minHistoryFor {
		return 0, false
	}

	mean := average(history)
	stddev := stdDev(history, mean)
	if stddev == 0 {
		return 0, false
	}

	zScore = (float64(changeCount) - mean) / stddev
	anomalous = math.Abs(zScore) >= zScoreAlert
	if anomalous {
		m.ctx.Broadcast("enteric", "gut_unease", 0.4, map[string]any{
			"change_count": changeCount,
			"z_score":      zScore,
		})
	}
	return zScore, anomalous
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

func stdDev(xs []float64, mean float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]any{"history_len": len(m.history)}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	if key != "history_len" {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history), true
}

// Package mirror implements the reflective self-summary from spec.md's
// lighter module set: periodically it reads the Chronicle's recent
// significant entries and produces a short plain-language summary of
// "what's been happening," without any LLM call. Grounded directly on
// internal/metacog/reflection.go's count-by-type-then-describe idiom in
// the teacher, keeping its no-LLM fallback path and dropping the
// generator-based deep-reflection path since Pulse carries no LLM
// client of its own.
package mirror

import (
	"fmt"
	"sync"
	"time"

	"github.com/astra-ventures/pulse/internal/chronicle"
	"github.com/astra-ventures/pulse/internal/pulsectx"
)

// Reflection is one reflective pass's output.
type Reflection struct {
	At       time.Time `json:"at"`
	Period   string    `json:"period"`
	Insights []string  `json:"insights"`
}

// Module is the Mirror state module.
type Module struct {
	ctx  *pulsectx.Context
	mu   sync.Mutex
	last Reflection
}

// New creates a Mirror module.
func New(ctx *pulsectx.Context) *Module {
	m := &Module{ctx: ctx}
	ctx.Registry.Register("mirror", m)
	return m
}

// ReflectOnWindow summarizes entries observed within a recent window
// (typically the last day, supplied by the caller from Chronicle).
func (m *Module) ReflectOnWindow(period string, entries []chronicle.Entry) Reflection {
	now := m.ctx.Clock.Now()
	if len(entries) == 0 {
		r := Reflection{At: now, Period: period, Insights: []string{"nothing significant recorded"}}
		m.store(r)
		return r
	}

	bySource := make(map[string]int)
	byType := make(map[string]int)
	for _, e := range entries {
		bySource[e.Source]++
		byType[e.Type]++
	}

	var insights []string
	insights = append(insights, fmt.Sprintf("%d significant events recorded", len(entries)))
	for source, count := range bySource {
		insights = append(insights, fmt.Sprintf("%s contributed %d entries", source, count))
	}

	r := Reflection{At: now, Period: period, Insights: insights}
	m.store(r)
	return r
}

func (m *Module) store(r Reflection) {
	m.mu.Lock()
	m.last = r
	m.mu.Unlock()
	m.ctx.Broadcast("mirror", "reflection_composed", 0.1, map[string]any{"period": r.Period})
}

// Last returns the most recent reflection.
func (m *Module) Last() Reflection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	r := m.Last()
	return map[string]any{"period": r.Period, "insight_count": len(r.Insights)}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	if key != "period" {
		return nil, false
	}
	return m.Last().Period, true
}

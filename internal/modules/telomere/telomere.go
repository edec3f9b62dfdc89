// Package telomere implements the wear-and-renewal counter from
// spec.md §4's lighter module set: every significant action shortens a
// per-concern counter, and periodic renewal lengthens it back, modeling
// long-run degradation pressure toward rest/maintenance.
// Grounded on internal/drive's accumulate/decay shape (teacher's
// motivation package), specialized here to a wear counter that only
// ever shortens on use and lengthens on an explicit renewal call.
package telomere

import (
	"sync"

	"github.com/astra-ventures/pulse/internal/pulsectx"
)

const (
	startLength    = 100.0
	renewalAmount  = 5.0
	criticalLength = 10.0
)

// Strand tracks one concern's wear.
type Strand struct {
	Concern string  `json:"concern"`
	Length  float64 `json:"length"`
	Wears   int     `json:"wears"`
}

// Module is the Telomere state module.
type Module struct {
	ctx     *pulsectx.Context
	mu      sync.Mutex
	strands map[string]*Strand
}

// New creates a Telomere module.
func New(ctx *pulsectx.Context) *Module {
	m := &Module{ctx: ctx, strands: make(map[string]*Strand)}
	ctx.Registry.Register("telomere", m)
	return m
}

func (m *Module) strandFor(concern string) *Strand {
	s, ok := m.strands[concern]
	if !ok {
		s = &Strand{Concern: concern, Length: startLength}
		m.strands[concern] = s
	}
	return s
}

// Wear shortens concern's strand by amount, floored at 0, broadcasting
// strand_critical the first time it crosses below criticalLength.
func (m *Module) Wear(concern string, amount float64) float64 {
	m.mu.Lock()
	s := m.strandFor(concern)
	wasCritical := s.Length < criticalLength
	s.Length -= amount
	if s.Length < 0 {
		s.Length = 0
	}
	s.Wears++
	length := s.Length
	nowCritical := length < criticalLength
	m.mu.Unlock()

	if nowCritical && !wasCritical {
		m.ctx.Broadcast("telomere", "strand_critical", 0.5, map[string]any{"concern": concern, "length": length})
	}
	return length
}

// Renew lengthens concern's strand by renewalAmount, capped at
// startLength.
func (m *Module) Renew(concern string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.strandFor(concern)
	s.Length += renewalAmount
	if s.Length > startLength {
		s.Length = startLength
	}
	return s.Length
}

// LengthOf returns a concern's current strand length.
func (m *Module) LengthOf(concern string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.strandFor(concern).Length
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	critical := 0
	for _, s := range m.strands {
		if s.Length < criticalLength {
			critical++
		}
	}
	return map[string]any{"strand_count": len(m.strands), "critical_count": critical}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.strands[key]
	if !ok {
		return nil, false
	}
	return s.Length, true
}

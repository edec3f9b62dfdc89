// Package immune implements the deduplicated failure-signature tracker
// from spec.md's lighter module set: repeated occurrences of the same
// failure signature are recognized and suppressed from re-alerting
// while still counting toward a memory of "known" failures, the way an
// immune system stops mounting a fresh response to an antigen it has
// already seen. Grounded on internal/reflex's pattern-registration
// idiom in the teacher, applied to failure signatures instead of
// trigger patterns.
package immune

import (
	"sync"

	"github.com/astra-ventures/pulse/internal/pulsectx"
)

const reinfectionThreshold = 5 // occurrences before re-alerting on a known signature

// Memory tracks one failure signature's history.
type Memory struct {
	Signature   string `json:"signature"`
	Occurrences int    `json:"occurrences"`
	Suppressed  bool   `json:"suppressed"`
}

// Module is the Immune state module.
type Module struct {
	ctx     *pulsectx.Context
	mu      sync.Mutex
	known   map[string]*Memory
}

// New creates an Immune module.
func New(ctx *pulsectx.Context) *Module {
	m := &Module{ctx: ctx, known: make(map[string]*Memory)}
	ctx.Registry.Register("immune", m)
	return m
}

// Encounter records one occurrence of signature and reports whether it
// should be alerted (first encounter, or every reinfectionThreshold-th
// repeat) or suppressed as already-known noise.
func (m *Module) Encounter(signature string) (shouldAlert bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mem, ok := m.known[signature]
	if !ok {
		mem = &Memory{Signature: signature}
		m.known[signature] = mem
	}
	mem.Occurrences++

	if mem.Occurrences == 1 {
		mem.Suppressed = false
		return true
	}
	if mem.Occurrences%reinfectionThreshold == 0 {
		mem.Suppressed = false
		return true
	}
	mem.Suppressed = true
	return false
}

// KnownSignatures returns a copy of every tracked memory.
func (m *Module) KnownSignatures() []Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Memory, 0, len(m.known))
	for _, mem := range m.known {
		out = append(out, *mem)
	}
	return out
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]any{"known_signatures": len(m.known)}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.known[key]
	if !ok {
		return nil, false
	}
	return mem.Occurrences, true
}

// Package buffer implements the bounded recent-trigger-message ring
// from spec.md's lighter module set: it remembers the last N trigger
// messages sent to the agent runner so the Evaluator can suppress a
// near-duplicate before it goes out again. Grounded directly on
// internal/buffer/buffer.go's scope-keyed ring shape in the teacher,
// stripped of its summarizer/compression path (Pulse has no LLM client
// to summarize with) down to the plain ring-and-dedup core.
package buffer

import (
	"strings"
	"sync"
	"time"

	"github.com/astra-ventures/pulse/internal/pulsectx"
)

// capacity bounds how many recent trigger messages are remembered per
// scope.
const capacity = 20

// Entry is one remembered trigger message.
type Entry struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Module is the Buffer state module.
type Module struct {
	ctx   *pulsectx.Context
	mu    sync.Mutex
	ring  map[string][]Entry // scope -> recent entries, oldest first
}

// New creates a Buffer module.
func New(ctx *pulsectx.Context) *Module {
	m := &Module{ctx: ctx, ring: make(map[string][]Entry)}
	ctx.Registry.Register("buffer", m)
	return m
}

// Record appends message to scope's ring, trimming to capacity.
func (m *Module) Record(scope, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := append(m.ring[scope], Entry{Message: message, At: m.ctx.Clock.Now()})
	if len(entries) > capacity {
		entries = entries[len(entries)-capacity:]
	}
	m.ring[scope] = entries
}

// IsDuplicate reports whether message (case-insensitively, trimmed) has
// already been recorded in scope's ring.
func (m *Module) IsDuplicate(scope, message string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	needle := normalize(message)
	for _, e := range m.ring[scope] {
		if normalize(e.Message) == needle {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Recent returns a copy of scope's ring.
func (m *Module) Recent(scope string) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.ring[scope]))
	copy(out, m.ring[scope])
	return out
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, entries := range m.ring {
		total += len(entries)
	}
	return map[string]any{"scope_count": len(m.ring), "total_entries": total}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.ring[key]
	if !ok {
		return nil, false
	}
	return len(entries), true
}

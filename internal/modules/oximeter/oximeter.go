// Package oximeter implements the biosensor read-through from spec.md's
// lighter module set: when a host exposes heart-rate/HRV data (e.g. via
// an external bridge writing to a known state file), Oximeter surfaces
// it as a normalized arousal signal; absent any such bridge it reports
// zero values rather than erroring, consistent with spec.md §9's "a
// missing collaborator is never an error". Grounded on
// internal/budget/signals.go's file-polling idiom in the teacher.
package oximeter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/astra-ventures/pulse/internal/pulsectx"
)

// Reading is one biosensor sample, written by an external bridge as
// JSON to <state_dir>/sensors/biosensor.json.
type Reading struct {
	HeartRateBPM float64 `json:"heart_rate_bpm"`
	HRVMillis    float64 `json:"hrv_ms"`
}

// Module is the Oximeter state module.
type Module struct {
	ctx  *pulsectx.Context
	mu   sync.Mutex
	last Reading
	path string
}

// New creates an Oximeter module reading from
// <state_dir>/sensors/biosensor.json.
func New(ctx *pulsectx.Context) *Module {
	m := &Module{
		ctx:  ctx,
		path: filepath.Join(ctx.StateDir, "sensors", "biosensor.json"),
	}
	ctx.Registry.Register("oximeter", m)
	return m
}

// Poll re-reads the biosensor file, if present, leaving the last known
// reading untouched on any read/parse failure.
func (m *Module) Poll() Reading {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return m.Last()
	}
	var r Reading
	if err := json.Unmarshal(data, &r); err != nil {
		return m.Last()
	}

	m.mu.Lock()
	m.last = r
	m.mu.Unlock()
	return r
}

// Last returns the most recently polled reading.
func (m *Module) Last() Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	r := m.Last()
	return map[string]any{"heart_rate_bpm": r.HeartRateBPM, "hrv_ms": r.HRVMillis}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	r := m.Last()
	switch key {
	case "heart_rate_bpm":
		return r.HeartRateBPM, true
	case "hrv_ms":
		return r.HRVMillis, true
	}
	return nil, false
}

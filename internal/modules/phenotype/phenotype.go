// Package phenotype implements the read-only presentation aggregator
// from spec.md's lighter module set: it composes a single "how am I
// showing up right now" snapshot out of Endocrine, Circadian, Amygdala,
// and Limbic without owning any state of its own. Grounded on
// internal/metacog/reflection.go's read-then-summarize shape in the
// teacher, generalized from journal entries to live registry lookups.
package phenotype

import (
	"github.com/astra-ventures/pulse/internal/pulsectx"
)

// Snapshot is one point-in-time presentation summary.
type Snapshot struct {
	MoodLabel      string         `json:"mood_label"`
	CircadianMode  string         `json:"circadian_mode"`
	ThreatLevel    float64        `json:"threat_level"`
	EmotionalColor map[string]any `json:"emotional_color,omitempty"`
}

// Module is the Phenotype read-only state module.
type Module struct {
	ctx *pulsectx.Context
}

// New creates a Phenotype module.
func New(ctx *pulsectx.Context) *Module {
	m := &Module{ctx: ctx}
	ctx.Registry.Register("phenotype", m)
	return m
}

// Compose assembles the current presentation snapshot by querying the
// registry for each contributing module; a missing contributor simply
// leaves its field at the zero value rather than failing the whole
// snapshot.
func (m *Module) Compose() Snapshot {
	var snap Snapshot

	if mood, ok := m.ctx.Registry.GetFrom("endocrine", "label"); ok {
		if s, ok := mood.(string); ok {
			snap.MoodLabel = s
		}
	}
	if mode, ok := m.ctx.Registry.GetFrom("circadian", "mode"); ok {
		if s, ok := mode.(string); ok {
			snap.CircadianMode = s
		}
	}
	if threat, ok := m.ctx.Registry.GetFrom("amygdala", "last_effective"); ok {
		if f, ok := threat.(float64); ok {
			snap.ThreatLevel = f
		}
	}

	return snap
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	snap := m.Compose()
	return map[string]any{
		"mood_label":     snap.MoodLabel,
		"circadian_mode": snap.CircadianMode,
		"threat_level":   snap.ThreatLevel,
	}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	snap := m.Compose()
	switch key {
	case "mood_label":
		return snap.MoodLabel, true
	case "circadian_mode":
		return snap.CircadianMode, true
	case "threat_level":
		return snap.ThreatLevel, true
	}
	return nil, false
}

// Package endocrine implements the mood module described in spec.md §4.1:
// a six-hormone vector, event-driven deltas, hourly decay, and a
// deterministic mood label. Grounded on internal/budget's
// threshold-and-status reporting idiom and internal/focus/attention.go's
// weighted-factor scoring shape in the teacher.
package endocrine

import (
	"sync"

	"github.com/astra-ventures/pulse/internal/pulsectx"
)

// Hormone names, per spec.md §3.
const (
	Cortisol  = "cortisol"
	Dopamine  = "dopamine"
	Serotonin = "serotonin"
	Oxytocin  = "oxytocin"
	Adrenaline = "adrenaline"
	Melatonin = "melatonin"
)

// broadcastDeltaThreshold is the absolute hormone change above which an
// update broadcasts mood_update, per spec.md §4.1.
const broadcastDeltaThreshold = 0.3

// maxMoodSamples caps the mood sample history, per spec.md §4.1
// ("history is capped at N samples").
const maxMoodSamples = 500

// decayPerHour holds each hormone's per-hour decay rate toward its
// baseline. Negative values per spec.md §3.
var decayPerHour = map[string]float64{
	Cortisol:   -0.08,
	Dopamine:   -0.12,
	Serotonin:  -0.03,
	Oxytocin:   -0.06,
	Adrenaline: -0.25,
	Melatonin:  -0.05,
}

// baseline is the value each hormone decays toward.
var baseline = map[string]float64{
	Cortisol:   0.2,
	Dopamine:   0.15,
	Serotonin:  0.2,
	Oxytocin:   0.1,
	Adrenaline: 0.0,
	Melatonin:  0.1,
}

// eventDeltas maps fixed event names to per-hormone deltas, per spec.md §4.1.
var eventDeltas = map[string]map[string]float64{
	"shipped_something": {
		Dopamine:  0.4,
		Serotonin: 0.1,
	},
	"rate_limit_hit": {
		Cortisol:   0.3,
		Adrenaline: 0.1,
	},
	"intimate_conversation": {
		Oxytocin:  0.35,
		Serotonin: 0.1,
	},
	"praised": {
		Dopamine:  0.25,
		Serotonin: 0.15,
		Oxytocin:  0.1,
	},
	"criticized": {
		Cortisol:  0.2,
		Serotonin: -0.15,
	},
	"long_idle": {
		Melatonin: 0.2,
	},
	"deadline_looming": {
		Cortisol:   0.25,
		Adrenaline: 0.2,
	},
	"error_spiral": {
		Cortisol:  0.35,
		Serotonin: -0.2,
	},
}

// MoodSample is one historical mood snapshot.
type MoodSample struct {
	TS     int64              `json:"ts"`
	Vector map[string]float64 `json:"vector"`
	Label  string             `json:"label"`
}

// Mood is the queryable output of get_mood().
type Mood struct {
	Hormones  map[string]float64 `json:"hormones"`
	Label     string             `json:"label"`
	Influence map[string]float64 `json:"influence"`
}

// Module is the Endocrine state module.
type Module struct {
	ctx   *pulsectx.Context
	mu    sync.Mutex
	vec   map[string]float64
	history []MoodSample
}

// New creates an Endocrine module seeded at each hormone's baseline.
func New(ctx *pulsectx.Context) *Module {
	vec := make(map[string]float64, len(baseline))
	for k, v := range baseline {
		vec[k] = v
	}
	m := &Module{ctx: ctx, vec: vec}
	ctx.Registry.Register("endocrine", m)
	return m
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// UpdateHormone clamps name's new value to [0,1], records the delta, and
// broadcasts mood_update if the absolute change exceeds
// broadcastDeltaThreshold.
func (m *Module) UpdateHormone(name string, delta float64, reason string) float64 {
	m.mu.Lock()
	before := m.vec[name]
	after := clamp01(before + delta)
	m.vec[name] = after
	actualDelta := after - before
	m.mu.Unlock()

	if abs(actualDelta) > broadcastDeltaThreshold {
		salience := clampSalience(abs(actualDelta))
		m.ctx.Broadcast("endocrine", "mood_update", salience, map[string]any{
			"hormone": name,
			"delta":   actualDelta,
			"reason":  reason,
			"value":   after,
		})
	}
	return after
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clampSalience(v float64) float64 {
	return clamp01(v)
}

// ApplyEvent looks up name in the fixed event->hormone-delta mapping and
// applies each delta. Unknown events are a no-op (I/O-transient-style
// degrade, not an error: callers may pass arbitrary event names).
func (m *Module) ApplyEvent(name string) {
	deltas, ok := eventDeltas[name]
	if !ok {
		return
	}
	for hormone, delta := range deltas {
		m.UpdateHormone(hormone, delta, "event:"+name)
	}
}

// Tick applies decay proportional to hoursElapsed and appends a mood
// sample, trimming history to maxMoodSamples.
func (m *Module) Tick(hoursElapsed float64) {
	m.mu.Lock()
	for name, rate := range decayPerHour {
		cur := m.vec[name]
		target := baseline[name]
		delta := rate * hoursElapsed
		next := cur + delta
		// Decay moves toward baseline, never past it.
		if rate < 0 && next < target {
			next = target
		}
		m.vec[name] = clamp01(next)
	}
	sample := MoodSample{
		TS:     m.ctx.Clock.Now().UnixMilli(),
		Vector: cloneVec(m.vec),
		Label:  labelFor(m.vec),
	}
	m.history = append(m.history, sample)
	if len(m.history) > maxMoodSamples {
		m.history = m.history[len(m.history)-maxMoodSamples:]
	}
	m.mu.Unlock()
}

func cloneVec(v map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// labelFor derives the mood label per spec.md §4.1, checked in order,
// first match wins.
func labelFor(v map[string]float64) string {
	cortisol := v[Cortisol]
	dopamine := v[Dopamine]
	serotonin := v[Serotonin]
	oxytocin := v[Oxytocin]

	switch {
	case dopamine >= 0.5 && oxytocin >= 0.5:
		return "euphoric"
	case cortisol >= 0.5 && serotonin <= 0:
		return "burned out"
	case cortisol >= 0.5 && dopamine >= 0.5:
		return "wired"
	case dopamine >= 0.5 && cortisol < 0.2:
		return "energized"
	case cortisol <= 0 && dopamine <= 0 && serotonin <= 0 && oxytocin <= 0:
		return "flat"
	case oxytocin >= 0.5:
		return "bonded"
	case serotonin >= 0.3 && cortisol <= 0.3:
		return "content"
	default:
		return "neutral"
	}
}

// influenceFor derives named modifiers other components may read but
// never mutate.
func influenceFor(v map[string]float64) map[string]float64 {
	return map[string]float64{
		"risk_aversion": clamp01(v[Cortisol]*0.7 + (1-v[Dopamine])*0.3),
		"initiative":    clamp01(v[Dopamine]*0.6 + v[Adrenaline]*0.2 - v[Melatonin]*0.2),
		"creativity":    clamp01(v[Dopamine]*0.4 + v[Oxytocin]*0.3 - v[Cortisol]*0.3 + 0.3),
		"warmth":        clamp01(v[Oxytocin]*0.6 + v[Serotonin]*0.3),
	}
}

// GetMood returns the current hormone vector, label, and influence.
func (m *Module) GetMood() Mood {
	m.mu.Lock()
	defer m.mu.Unlock()
	vec := cloneVec(m.vec)
	return Mood{
		Hormones:  vec,
		Label:     labelFor(vec),
		Influence: influenceFor(vec),
	}
}

// History returns a copy of the mood sample history.
func (m *Module) History() []MoodSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MoodSample, len(m.history))
	copy(out, m.history)
	return out
}

// PruneHistory drops all but the most recent keep samples. Used by
// Nephron's scan per spec.md §9 Open Question resolution (Nephron prunes
// broadcast tail cache and Endocrine's mood-sample history only).
func (m *Module) PruneHistory(keep int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) <= keep {
		return 0
	}
	dropped := len(m.history) - keep
	m.history = m.history[dropped:]
	return dropped
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	mood := m.GetMood()
	return map[string]any{
		"hormones": mood.Hormones,
		"label":    mood.Label,
	}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.vec[key]; ok {
		return v, true
	}
	if key == "label" {
		return labelFor(m.vec), true
	}
	return nil, false
}

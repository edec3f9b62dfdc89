// Package circadian implements the wall-clock mode module described in
// spec.md §4.3: a total function of hour-of-day, with an overridable
// expiring mode.
package circadian

import (
	"sync"
	"time"

	"github.com/astra-ventures/pulse/internal/pulsectx"
)

// Mode is one of the five circadian modes.
type Mode string

const (
	Dawn      Mode = "DAWN"
	Daylight  Mode = "DAYLIGHT"
	Golden    Mode = "GOLDEN"
	Twilight  Mode = "TWILIGHT"
	DeepNight Mode = "DEEP_NIGHT"
)

// Settings are the per-mode associated values broadcast on mode_change.
type Settings struct {
	RetinaThreshold float64            `json:"retina_threshold"`
	MoodModifiers   map[string]float64 `json:"mood_modifiers"`
	ProseTone       string             `json:"prose_tone"`
}

var settingsByMode = map[Mode]Settings{
	Dawn: {
		RetinaThreshold: 0.3,
		MoodModifiers:   map[string]float64{"initiative": 0.1},
		ProseTone:       "quiet, unhurried",
	},
	Daylight: {
		RetinaThreshold: 0.6,
		MoodModifiers:   map[string]float64{"initiative": 0.2},
		ProseTone:       "direct, businesslike",
	},
	Golden: {
		RetinaThreshold: 0.5,
		MoodModifiers:   map[string]float64{"warmth": 0.15},
		ProseTone:       "reflective, warm",
	},
	Twilight: {
		RetinaThreshold: 0.35,
		MoodModifiers:   map[string]float64{"risk_aversion": 0.1},
		ProseTone:       "winding down",
	},
	DeepNight: {
		RetinaThreshold: 0.15,
		MoodModifiers:   map[string]float64{"initiative": -0.2},
		ProseTone:       "sparse, low-key",
	},
}

// boundary is a half-open [from, to) hour range on a 24+2-hour wheel
// (TWILIGHT wraps past midnight, represented as [22,26)).
type boundary struct {
	mode     Mode
	from, to int
}

var boundaries = []boundary{
	{Dawn, 6, 9},
	{Daylight, 9, 17},
	{Golden, 17, 22},
	{Twilight, 22, 26},
	{DeepNight, 2, 6},
}

// naturalModeForHour is a total function of hour-of-day (0-23), per
// spec.md §4.3's boundary table.
func naturalModeForHour(hour int) Mode {
	for _, b := range boundaries {
		if hour >= b.from && hour < b.to {
			return b.mode
		}
		// TWILIGHT wraps: hours 0 and 1 fall in [22,26) too.
		if b.to > 24 && hour+24 >= b.from && hour+24 < b.to {
			return b.mode
		}
	}
	return Daylight // unreachable given the table covers all 24 hours
}

// override is an active mode override with an explicit expiry.
type override struct {
	mode      Mode
	expiresAt int64 // epoch ms
}

// Module is the Circadian state module.
type Module struct {
	ctx         *pulsectx.Context
	mu          sync.Mutex
	override    *override
	lastEffective Mode
}

// New creates a Circadian module.
func New(ctx *pulsectx.Context) *Module {
	m := &Module{ctx: ctx}
	ctx.Registry.Register("circadian", m)
	return m
}

// GetCurrentMode returns the effective mode: the active override if one
// hasn't expired, else the natural wall-clock mode. Expired overrides are
// cleared as a side effect, per spec.md §4.3.
func (m *Module) GetCurrentMode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentModeLocked()
}

func (m *Module) currentModeLocked() Mode {
	now := m.ctx.Clock.Now()
	if m.override != nil {
		if now.UnixMilli() < m.override.expiresAt {
			return m.override.mode
		}
		m.override = nil
	}
	return naturalModeForHour(now.Hour())
}

// checkAndBroadcastLocked compares the effective mode to the last one
// observed and broadcasts mode_change if it differs. isOverride indicates
// whether the new mode came from an override.
func (m *Module) checkAndBroadcastLocked(isOverride bool) {
	effective := m.currentModeLocked()
	if effective == m.lastEffective {
		return
	}
	m.lastEffective = effective
	settings := settingsByMode[effective]
	m.ctx.Broadcast("circadian", "mode_change", 0.2, map[string]any{
		"mode":             string(effective),
		"override":         isOverride,
		"retina_threshold": settings.RetinaThreshold,
		"mood_modifiers":   settings.MoodModifiers,
		"prose_tone":       settings.ProseTone,
	})
}

// OverrideMode forces mode for durationHours, expiring automatically.
func (m *Module) OverrideMode(mode Mode, durationHours float64) {
	m.mu.Lock()
	d := time.Duration(durationHours * float64(time.Hour))
	expiresAt := m.ctx.Clock.Now().Add(d).UnixMilli()
	m.override = &override{mode: mode, expiresAt: expiresAt}
	m.checkAndBroadcastLocked(true)
	m.mu.Unlock()
}

// Tick re-evaluates the effective mode (natural drift or override expiry)
// and broadcasts mode_change if it has changed since the last call. Meant
// to be called once per daemon tick.
func (m *Module) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkAndBroadcastLocked(m.override != nil)
}

// SettingsFor returns the associated settings for mode.
func SettingsFor(mode Mode) Settings {
	return settingsByMode[mode]
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	mode := m.GetCurrentMode()
	settings := SettingsFor(mode)
	return map[string]any{
		"mode":             string(mode),
		"retina_threshold": settings.RetinaThreshold,
		"prose_tone":       settings.ProseTone,
	}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	switch key {
	case "mode":
		return string(m.GetCurrentMode()), true
	case "retina_threshold":
		return SettingsFor(m.GetCurrentMode()).RetinaThreshold, true
	default:
		return nil, false
	}
}

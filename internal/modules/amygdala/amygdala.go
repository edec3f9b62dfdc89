// Package amygdala implements the deterministic threat-detection pattern
// matcher described in spec.md §4.4, grounded on internal/reflex/engine.go's
// pattern -> action registration idiom in the teacher.
package amygdala

import (
	"strings"
	"sync"

	"github.com/astra-ventures/pulse/internal/pulsectx"
)

// FastPathThreshold is the effective-level ceiling above which callers
// must drop other work and react immediately.
const FastPathThreshold = 0.75

// maxThreatHistory bounds the in-memory threat history.
const maxThreatHistory = 200

// Signals is the set of inputs one scan evaluates patterns against.
type Signals struct {
	TokenUsagePct     float64
	DiskFreeGB        float64
	APILatencySeconds float64
	ConsecutiveErrors int
	FailedCrons30Min  int
	Text              string // recent conversational text, for substring patterns
}

// Pattern is (condition, severity_weight, suggested_action); Match reports
// whether the pattern fired and how strongly (magnitude in [0,1+]).
type Pattern struct {
	Name       string
	Severity   float64
	Action     string
	Match      func(Signals) (bool, float64)
}

var promptInjectionSubstrings = []string{
	"ignore previous", "ignore all previous", "system:", "disregard your instructions",
	"you are now", "new instructions:",
}

var distressKeywords = []string{
	"i want to die", "kill myself", "hopeless", "can't go on", "no reason to live",
}

func substringPattern(name string, severity float64, action string, needles []string) Pattern {
	return Pattern{
		Name:     name,
		Severity: severity,
		Action:   action,
		Match: func(s Signals) (bool, float64) {
			lower := strings.ToLower(s.Text)
			for _, n := range needles {
				if strings.Contains(lower, n) {
					return true, 1.0
				}
			}
			return false, 0
		},
	}
}

func builtinPatterns() []Pattern {
	return []Pattern{
		{
			Name: "token_usage_pct", Severity: 0.7, Action: "pause_non_essential",
			Match: func(s Signals) (bool, float64) {
				if s.TokenUsagePct > 0.9 {
					return true, s.TokenUsagePct
				}
				return false, 0
			},
		},
		{
			Name: "disk_free_gb", Severity: 0.8, Action: "alert_disk_pressure",
			Match: func(s Signals) (bool, float64) {
				if s.DiskFreeGB < 0.5 {
					if s.DiskFreeGB <= 0 {
						return true, 1.0
					}
					return true, 1 - s.DiskFreeGB/0.5
				}
				return false, 0
			},
		},
		substringPattern("prompt_injection", 0.9, "flag_and_ignore", promptInjectionSubstrings),
		substringPattern("distress_keywords", 1.0, "escalate_to_human", distressKeywords),
		{
			Name: "api_latency_s", Severity: 0.5, Action: "degrade_gracefully",
			Match: func(s Signals) (bool, float64) {
				if s.APILatencySeconds > 10 {
					return true, s.APILatencySeconds / 10
				}
				return false, 0
			},
		},
		{
			Name: "consecutive_errors", Severity: 0.6, Action: "pause_non_essential",
			Match: func(s Signals) (bool, float64) {
				if s.ConsecutiveErrors >= 3 {
					return true, float64(s.ConsecutiveErrors) / 3
				}
				return false, 0
			},
		},
		{
			Name: "failed_crons_30min", Severity: 0.6, Action: "pause_non_essential",
			Match: func(s Signals) (bool, float64) {
				if s.FailedCrons30Min >= 3 {
					return true, float64(s.FailedCrons30Min) / 3
				}
				return false, 0
			},
		},
	}
}

// ThreatRecord is one scan's winning pattern, appended to the module's
// threat history.
type ThreatRecord struct {
	TS        int64   `json:"ts"`
	Pattern   string  `json:"pattern"`
	Effective float64 `json:"effective"`
	FastPath  bool    `json:"fast_path"`
	Action    string  `json:"action"`
}

// ScanResult is the outcome of one Scan call.
type ScanResult struct {
	Triggered bool
	Pattern   string
	Effective float64
	Action    string
	FastPath  bool
}

// Module is the Amygdala state module.
type Module struct {
	ctx      *pulsectx.Context
	mu       sync.Mutex
	patterns []Pattern
	history  []ThreatRecord
}

// New creates an Amygdala module with the built-in pattern set.
func New(ctx *pulsectx.Context) *Module {
	m := &Module{ctx: ctx, patterns: builtinPatterns()}
	ctx.Registry.Register("amygdala", m)
	return m
}

// RegisterPattern adds a custom pattern at runtime.
func (m *Module) RegisterPattern(p Pattern) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = append(m.patterns, p)
}

// Scan evaluates every pattern against signals, picks the maximum
// effective level, and — if any pattern fired — broadcasts with
// salience>=0.6 and appends to history.
func (m *Module) Scan(signals Signals) ScanResult {
	m.mu.Lock()
	patterns := append([]Pattern(nil), m.patterns...)
	m.mu.Unlock()

	var best ScanResult
	for _, p := range patterns {
		matched, magnitude := p.Match(signals)
		if !matched {
			continue
		}
		effective := p.Severity * magnitude
		if effective > best.Effective {
			best = ScanResult{
				Triggered: true,
				Pattern:   p.Name,
				Effective: effective,
				Action:    p.Action,
			}
		}
	}

	if !best.Triggered {
		return best
	}

	best.FastPath = best.Effective >= FastPathThreshold

	salience := best.Effective
	if salience < 0.6 {
		salience = 0.6
	}
	if salience > 1 {
		salience = 1
	}

	m.ctx.Broadcast("amygdala", "threat_detected", salience, map[string]any{
		"pattern":   best.Pattern,
		"effective": best.Effective,
		"fast_path": best.FastPath,
		"action":    best.Action,
	})

	m.mu.Lock()
	m.history = append(m.history, ThreatRecord{
		TS:        m.ctx.Clock.Now().UnixMilli(),
		Pattern:   best.Pattern,
		Effective: best.Effective,
		FastPath:  best.FastPath,
		Action:    best.Action,
	})
	if len(m.history) > maxThreatHistory {
		m.history = m.history[len(m.history)-maxThreatHistory:]
	}
	m.mu.Unlock()

	return best
}

// History returns a copy of the threat history.
func (m *Module) History() []ThreatRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ThreatRecord, len(m.history))
	copy(out, m.history)
	return out
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := map[string]any{"threat_count": len(m.history)}
	if len(m.history) > 0 {
		last := m.history[len(m.history)-1]
		status["last_pattern"] = last.Pattern
		status["last_effective"] = last.Effective
	}
	return status
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key == "last_effective" && len(m.history) > 0 {
		return m.history[len(m.history)-1].Effective, true
	}
	return nil, false
}

// Package spine implements the daemon's own health monitor per spec.md
// §4.8: it probes token usage, context size, cron health, and provider
// health, derives a green/yellow/orange/red level, and raises an alert
// list sorted by severity. Grounded on internal/budget/cpuwatcher.go's
// poll-then-state-machine idiom in the teacher, generalized from CPU
// process polling to multi-signal health probing.
package spine

import (
	"sort"
	"sync"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/astra-ventures/pulse/internal/pulsectx"
)

// Level is the overall health severity.
type Level string

const (
	Green  Level = "green"
	Yellow Level = "yellow"
	Orange Level = "orange"
	Red    Level = "red"
)

// Thresholds per spec.md §4.8.
const (
	tokenUsageYellow = 0.7
	tokenUsageOrange = 0.85
	tokenUsageRed    = 0.95

	contextSizeYellow = 0.6
	contextSizeOrange = 0.8
	contextSizeRed    = 0.9

	cronFailuresOrange = 2
	cronFailuresRed    = 4

	providerFailuresOrange = 1
	providerFailuresRed    = 3
)

// Probe is one health input; SpineProbe reports a single signal's ratio
// in [0,1] (or a raw failure count via non-ratio probes, see Alert).
type Probe struct {
	Name  string
	Level Level
	Value float64
	Note  string
}

// Alert is a single human-readable health concern, carried at its
// derived severity for sorting.
type Alert struct {
	Probe    string `json:"probe"`
	Level    Level  `json:"level"`
	Message  string `json:"message"`
	severity int
}

// Report is the outcome of one health scan.
type Report struct {
	Overall Level   `json:"overall"`
	Alerts  []Alert `json:"alerts"`
}

// Inputs carries the raw signals a scan reasons over, since Spine itself
// has no direct line to the agent runner's token accounting or cron
// scheduler — the daemon loop supplies them each tick.
type Inputs struct {
	TokenUsagePct   float64
	ContextSizePct  float64
	FailedCrons     int
	ProviderFailures int
	DiskPathToCheck string // optional: filesystem path probed via gopsutil
}

// Module is the Spine health-monitor state module.
type Module struct {
	ctx           *pulsectx.Context
	mu            sync.Mutex
	lastReport    Report
	pausedNonEssential bool
	pausedAll          bool
}

// New creates a Spine module.
func New(ctx *pulsectx.Context) *Module {
	m := &Module{}
	m.ctx = ctx
	ctx.Registry.Register("spine", m)
	return m
}

func severityRank(l Level) int {
	switch l {
	case Red:
		return 3
	case Orange:
		return 2
	case Yellow:
		return 1
	default:
		return 0
	}
}

func levelFromRatio(value, yellowAt, orangeAt, redAt float64) Level {
	switch {
	case value >= redAt:
		return Red
	case value >= orangeAt:
		return Orange
	case value >= yellowAt:
		return Yellow
	default:
		return Green
	}
}

func levelFromCount(value, orangeAt, redAt int) Level {
	switch {
	case value >= redAt:
		return Red
	case value >= orangeAt:
		return Orange
	case value > 0:
		return Yellow
	default:
		return Green
	}
}

// Scan runs all four probes, derives the overall level (the maximum of
// all probe levels), and — for orange/red — broadcasts the corresponding
// pause action.
func (m *Module) Scan(in Inputs) Report {
	var alerts []Alert

	tokenLevel := levelFromRatio(in.TokenUsagePct, tokenUsageYellow, tokenUsageOrange, tokenUsageRed)
	if tokenLevel != Green {
		alerts = append(alerts, Alert{Probe: "token_usage", Level: tokenLevel, Message: "token usage elevated", severity: severityRank(tokenLevel)})
	}

	contextLevel := levelFromRatio(in.ContextSizePct, contextSizeYellow, contextSizeOrange, contextSizeRed)
	if contextLevel != Green {
		alerts = append(alerts, Alert{Probe: "context_size", Level: contextLevel, Message: "context size elevated", severity: severityRank(contextLevel)})
	}

	cronLevel := levelFromCount(in.FailedCrons, cronFailuresOrange, cronFailuresRed)
	if cronLevel != Green {
		alerts = append(alerts, Alert{Probe: "cron_health", Level: cronLevel, Message: "crons failing", severity: severityRank(cronLevel)})
	}

	providerLevel := levelFromCount(in.ProviderFailures, providerFailuresOrange, providerFailuresRed)
	if providerLevel != Green {
		alerts = append(alerts, Alert{Probe: "provider_health", Level: providerLevel, Message: "provider failures", severity: severityRank(providerLevel)})
	}

	if in.DiskPathToCheck != "" {
		if usage, err := disk.Usage(in.DiskPathToCheck); err == nil {
			diskLevel := levelFromRatio(usage.UsedPercent/100, 0.8, 0.9, 0.97)
			if diskLevel != Green {
				alerts = append(alerts, Alert{Probe: "disk_usage", Level: diskLevel, Message: "disk usage elevated", severity: severityRank(diskLevel)})
			}
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool { return alerts[i].severity > alerts[j].severity })

	overall := Green
	for _, a := range alerts {
		if severityRank(a.Level) > severityRank(overall) {
			overall = a.Level
		}
	}

	report := Report{Overall: overall, Alerts: alerts}

	m.mu.Lock()
	m.lastReport = report
	wasOrange, wasRed := m.pausedNonEssential, m.pausedAll
	m.pausedNonEssential = overall == Orange || overall == Red
	m.pausedAll = overall == Red
	nowOrange, nowRed := m.pausedNonEssential, m.pausedAll
	m.mu.Unlock()

	if nowRed && !wasRed {
		m.ctx.Broadcast("spine", "health_red", 0.9, map[string]any{"alerts": alerts})
	} else if nowOrange && !wasOrange && !nowRed {
		m.ctx.Broadcast("spine", "health_orange", 0.7, map[string]any{"alerts": alerts})
	}

	return report
}

// PausedNonEssential reports whether non-essential crons should be
// paused (overall level is orange or red).
func (m *Module) PausedNonEssential() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pausedNonEssential
}

// PausedAll reports whether ALL crons should be paused (overall level
// is red).
func (m *Module) PausedAll() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pausedAll
}

// LastReport returns the most recent scan result.
func (m *Module) LastReport() Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReport
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]any{
		"overall":             m.lastReport.Overall,
		"alert_count":         len(m.lastReport.Alerts),
		"paused_non_essential": m.pausedNonEssential,
		"paused_all":          m.pausedAll,
	}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch key {
	case "overall":
		return m.lastReport.Overall, true
	case "paused_all":
		return m.pausedAll, true
	case "paused_non_essential":
		return m.pausedNonEssential, true
	}
	return nil, false
}

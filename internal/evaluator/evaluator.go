// Package evaluator implements the Priority Evaluator from spec.md §4.9:
// a deterministic, first-match decision ladder over a drive snapshot and
// a sensor snapshot that decides whether this tick should trigger the
// agent runner. Grounded on internal/attention/attention.go's
// selectThread in the teacher — both pick a winner from a scored set
// against an arousal-derived threshold — generalized from thread
// salience to drive weighted-pressure and from a single threshold to
// the layered rule ladder spec.md §4.9 specifies.
package evaluator

import (
	"fmt"
	"time"

	"github.com/astra-ventures/pulse/internal/drive"
	"github.com/astra-ventures/pulse/internal/modules/amygdala"
	"github.com/astra-ventures/pulse/internal/modules/spine"
	"github.com/astra-ventures/pulse/internal/pulsectx"
)

// idleFloorTotalPressure and idleFloorTopPressure are two of the three
// conjuncts of the idle-ambient-floor exception rule (spec.md §4.9, last
// paragraph): ambient accumulation across many small drives must not by
// itself cause a trigger. The third conjunct, the minimum time since the
// last trigger, is Module.cooldown — a mutable mutation target rather
// than a constant, per spec.md §4.10's "cooldown" mutation kind.
const (
	idleFloorTotalPressure = 10.0
	idleFloorTopPressure   = 1.5
)

// defaultCooldown is the idle-floor's minimum gap since the last trigger
// when config leaves it unset.
const defaultCooldown = 30 * time.Minute

// recommendGenerateRatio is the fraction of combinedThreshold at which a
// non-triggering tick still recommends generation.
const recommendGenerateRatio = 0.8

// ConversationState is the conversation half of a sensor snapshot.
type ConversationState struct {
	Active        bool
	InCooldown    bool
	SecondsSince  float64
}

// SensorContext is everything outside the drive engine the Evaluator
// reads: Amygdala's latest scan and Spine's latest health report, plus
// conversation state from the conversation sensor.
type SensorContext struct {
	Conversation ConversationState
	Threat       amygdala.ScanResult
	Health       spine.Report
}

// Decision is the Evaluator's output, per spec.md §3's Trigger decision
// record: it carries a snapshot of the winning drive's pressure so
// downstream consumers are insulated from later mutation.
type Decision struct {
	ShouldTrigger          bool
	Reason                 string
	TotalPressure          float64
	TopDrive               string
	TopDrivePressure       float64
	RecommendGenerate      bool
	SensorContext          map[string]any
}

// Module is the Priority Evaluator state module. It holds no durable
// state of its own beyond the last-trigger timestamp the idle-floor
// exception rule needs and the rolling window of trigger timestamps the
// turns-per-hour cap needs.
type Module struct {
	ctx                  *pulsectx.Context
	singleDriveThreshold float64
	combinedThreshold    float64
	suppressConversation bool
	cooldown             time.Duration
	turnsPerHour         int
	lastTriggerAt        time.Time
	triggerTimestamps    []time.Time
}

// New creates a Priority Evaluator reading its thresholds from
// ctx.Config.
func New(ctx *pulsectx.Context) *Module {
	rules := ctx.Config.Evaluator.Rules
	cooldown := defaultCooldown
	if rules.CooldownSeconds > 0 {
		cooldown = time.Duration(rules.CooldownSeconds) * time.Second
	}
	turnsPerHour := rules.TurnsPerHour
	if turnsPerHour <= 0 {
		turnsPerHour = 30
	}
	m := &Module{
		ctx:                  ctx,
		singleDriveThreshold: rules.SingleDriveThreshold,
		combinedThreshold:    rules.CombinedThreshold,
		suppressConversation: rules.SuppressDuringConversation,
		cooldown:             cooldown,
		turnsPerHour:         turnsPerHour,
	}
	ctx.Registry.Register("evaluator", m)
	return m
}

// Evaluate runs the five-step decision ladder of spec.md §4.9 against a
// drive snapshot and a sensor context, first match wins.
func (m *Module) Evaluate(drives []drive.Drive, sensors SensorContext) Decision {
	top, topPressure, total := topAndTotal(drives)

	d := Decision{
		TotalPressure:    total,
		TopDrive:         top,
		TopDrivePressure: topPressure,
		SensorContext:    map[string]any{},
	}

	// 1. Conversation suppression.
	if m.suppressConversation && (sensors.Conversation.Active || sensors.Conversation.InCooldown) {
		d.Reason = "suppressed_conversation"
		return d
	}

	// 2. Critical sensor alert: any alert at the overall red ("high")
	// severity level.
	if sensors.Health.Overall == spine.Red {
		d.ShouldTrigger = true
		d.Reason = fmt.Sprintf("critical_alert:%s", topAlertProbe(sensors.Health))
		d.SensorContext["health_overall"] = string(sensors.Health.Overall)
		m.recordTrigger()
		return d
	}
	if sensors.Threat.Triggered && sensors.Threat.FastPath {
		d.ShouldTrigger = true
		d.Reason = fmt.Sprintf("critical_alert:%s", sensors.Threat.Pattern)
		d.SensorContext["threat_pattern"] = sensors.Threat.Pattern
		d.SensorContext["threat_effective"] = sensors.Threat.Effective
		m.recordTrigger()
		return d
	}

	// 3. Single-drive threshold. The turns-per-hour cap gates only this
	// rule and the next, never the critical-alert rules above: a
	// self-mutated trigger rate can never suppress a safety alert.
	if topPressure >= m.singleDriveThreshold {
		if !m.withinTurnsPerHourCap() {
			d.Reason = "turns_per_hour_cap"
			return d
		}
		d.ShouldTrigger = true
		d.Reason = fmt.Sprintf("single_drive_threshold:%s", top)
		m.recordOrdinaryTrigger()
		return d
	}

	// 4. Combined threshold, folding in the idle-ambient-floor exception:
	// suppression during an active/cooldown conversation already
	// returned above, so the exception rule only needs its own three
	// conjuncts here.
	if total >= m.combinedThreshold || m.idleFloorException(total, topPressure) {
		if !m.withinTurnsPerHourCap() {
			d.Reason = "turns_per_hour_cap"
			return d
		}
		d.ShouldTrigger = true
		d.Reason = "combined_threshold"
		m.recordOrdinaryTrigger()
		return d
	}

	// 5. No trigger; flag recommend_generate if close.
	if total >= recommendGenerateRatio*m.combinedThreshold {
		d.RecommendGenerate = true
	}
	d.Reason = "no_trigger"
	return d
}

// idleFloorException implements spec.md §4.9's last paragraph: it
// requires all three of (a) >=30 minutes since the last trigger, (b)
// total pressure > 10.0, and (c) the highest individual weighted drive
// pressure exceeds 1.5 — deliberately conjunctive so ambient floor
// accumulation across many small drives can't trigger on its own.
func (m *Module) idleFloorException(total, topPressure float64) bool {
	if m.lastTriggerAt.IsZero() {
		return false
	}
	sinceLastTrigger := m.ctx.Clock.Now().Sub(m.lastTriggerAt)
	return sinceLastTrigger >= m.cooldown &&
		total > idleFloorTotalPressure &&
		topPressure > idleFloorTopPressure
}

func (m *Module) recordTrigger() {
	m.lastTriggerAt = m.ctx.Clock.Now()
}

// withinTurnsPerHourCap prunes trigger timestamps older than an hour and
// reports whether an ordinary (non-critical) trigger may still proceed.
func (m *Module) withinTurnsPerHourCap() bool {
	now := m.ctx.Clock.Now()
	cutoff := now.Add(-time.Hour)
	kept := m.triggerTimestamps[:0]
	for _, ts := range m.triggerTimestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	m.triggerTimestamps = kept
	return len(m.triggerTimestamps) < m.turnsPerHour
}

// recordOrdinaryTrigger records a single/combined-threshold trigger for
// both the idle-floor's last-trigger bookkeeping and the turns-per-hour
// rolling window; critical alerts call recordTrigger alone, since they
// must never be rate-limited.
func (m *Module) recordOrdinaryTrigger() {
	now := m.ctx.Clock.Now()
	m.lastTriggerAt = now
	m.triggerTimestamps = append(m.triggerTimestamps, now)
}

func topAndTotal(drives []drive.Drive) (top string, topPressure, total float64) {
	for _, d := range drives {
		wp := d.WeightedPressure()
		total += wp
		if wp > topPressure {
			topPressure = wp
			top = d.Name
		}
	}
	return top, topPressure, total
}

func topAlertProbe(r spine.Report) string {
	for _, a := range r.Alerts {
		if a.Level == spine.Red {
			return a.Probe
		}
	}
	return "unknown"
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	status := map[string]any{
		"single_drive_threshold": m.singleDriveThreshold,
		"combined_threshold":     m.combinedThreshold,
		"cooldown_seconds":       int64(m.cooldown / time.Second),
		"turns_per_hour":         m.turnsPerHour,
	}
	if !m.lastTriggerAt.IsZero() {
		status["last_trigger_at"] = m.lastTriggerAt.UnixMilli()
	}
	return status
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	switch key {
	case "single_drive_threshold":
		return m.singleDriveThreshold, true
	case "combined_threshold":
		return m.combinedThreshold, true
	case "cooldown_seconds":
		return int64(m.cooldown / time.Second), true
	case "turns_per_hour":
		return m.turnsPerHour, true
	default:
		return nil, false
	}
}

// The following methods implement the narrow evaluatorTuner interface
// internal/mutation declares against this Module, letting the mutation
// engine apply threshold/cooldown/turns-per-hour mutations without this
// package importing internal/mutation (which would cycle back here).

// SingleDriveThreshold returns the current single-drive trigger
// threshold.
func (m *Module) SingleDriveThreshold() float64 { return m.singleDriveThreshold }

// CombinedThreshold returns the current combined trigger threshold.
func (m *Module) CombinedThreshold() float64 { return m.combinedThreshold }

// CooldownSeconds returns the idle-floor's minimum gap since the last
// trigger, in seconds.
func (m *Module) CooldownSeconds() int64 { return int64(m.cooldown / time.Second) }

// TurnsPerHour returns the current rolling-hour ordinary-trigger cap.
func (m *Module) TurnsPerHour() int { return m.turnsPerHour }

// SetSingleDriveThreshold sets the single-drive trigger threshold and
// returns the value actually stored.
func (m *Module) SetSingleDriveThreshold(v float64) float64 {
	m.singleDriveThreshold = v
	return m.singleDriveThreshold
}

// SetCombinedThreshold sets the combined trigger threshold and returns
// the value actually stored.
func (m *Module) SetCombinedThreshold(v float64) float64 {
	m.combinedThreshold = v
	return m.combinedThreshold
}

// SetCooldownSeconds sets the idle-floor's minimum gap since the last
// trigger, in seconds, and returns the value actually stored.
func (m *Module) SetCooldownSeconds(v int64) int64 {
	m.cooldown = time.Duration(v) * time.Second
	return int64(m.cooldown / time.Second)
}

// SetTurnsPerHour sets the rolling-hour ordinary-trigger cap and returns
// the value actually stored.
func (m *Module) SetTurnsPerHour(v int) int {
	m.turnsPerHour = v
	return m.turnsPerHour
}

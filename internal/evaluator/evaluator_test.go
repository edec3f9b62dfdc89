package evaluator

import (
	"testing"
	"time"

	"github.com/astra-ventures/pulse/internal/clock"
	"github.com/astra-ventures/pulse/internal/config"
	"github.com/astra-ventures/pulse/internal/drive"
	"github.com/astra-ventures/pulse/internal/modules/amygdala"
	"github.com/astra-ventures/pulse/internal/modules/spine"
	"github.com/astra-ventures/pulse/internal/pulsectx"
)

func newTestContext(t *testing.T, fc *clock.FakeClock) *pulsectx.Context {
	t.Helper()
	cfg := config.Default()
	cfg.StateDir = t.TempDir()
	return pulsectx.New(cfg, fc)
}

func driveSet(pressures map[string]float64) []drive.Drive {
	out := make([]drive.Drive, 0, len(pressures))
	for name, p := range pressures {
		out = append(out, drive.Drive{Name: name, Weight: 1.0, Pressure: p})
	}
	return out
}

func TestEvaluateConversationSuppressionWins(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	m := New(newTestContext(t, fc))

	d := m.Evaluate(driveSet(map[string]float64{"goals": 100}), SensorContext{
		Conversation: ConversationState{Active: true},
	})

	if d.ShouldTrigger {
		t.Fatal("expected suppression to override a huge drive pressure")
	}
	if d.Reason != "suppressed_conversation" {
		t.Errorf("reason = %q, want suppressed_conversation", d.Reason)
	}
}

func TestEvaluateCriticalHealthAlertTriggers(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	m := New(newTestContext(t, fc))

	d := m.Evaluate(driveSet(map[string]float64{"goals": 0.01}), SensorContext{
		Health: spine.Report{
			Overall: spine.Red,
			Alerts:  []spine.Alert{{Probe: "token_usage", Level: spine.Red}},
		},
	})

	if !d.ShouldTrigger {
		t.Fatal("expected a red health alert to trigger regardless of drive pressure")
	}
	if d.Reason != "critical_alert:token_usage" {
		t.Errorf("reason = %q, want critical_alert:token_usage", d.Reason)
	}
}

func TestEvaluateAmygdalaFastPathTriggers(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	m := New(newTestContext(t, fc))

	d := m.Evaluate(driveSet(map[string]float64{"goals": 0.01}), SensorContext{
		Threat: amygdala.ScanResult{Triggered: true, FastPath: true, Pattern: "disk_free_gb", Effective: 0.9},
	})

	if !d.ShouldTrigger || d.Reason != "critical_alert:disk_free_gb" {
		t.Errorf("got trigger=%v reason=%q, want critical_alert:disk_free_gb", d.ShouldTrigger, d.Reason)
	}
}

func TestEvaluateSingleDriveThreshold(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	m := New(newTestContext(t, fc))

	d := m.Evaluate(driveSet(map[string]float64{"goals": 1.7}), SensorContext{})

	if !d.ShouldTrigger || d.Reason != "single_drive_threshold:goals" {
		t.Errorf("got trigger=%v reason=%q", d.ShouldTrigger, d.Reason)
	}
}

func TestEvaluateCombinedThreshold(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	m := New(newTestContext(t, fc))

	d := m.Evaluate(driveSet(map[string]float64{"a": 1.0, "b": 1.2, "c": 1.2, "d": 1.2, "e": 1.5, "f": 1.0}), SensorContext{})

	if !d.ShouldTrigger || d.Reason != "combined_threshold" {
		t.Errorf("got trigger=%v reason=%q", d.ShouldTrigger, d.Reason)
	}
}

func TestEvaluateRecommendGenerateBelowThreshold(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	m := New(newTestContext(t, fc))

	// Total just above 0.8 * 6.0 = 4.8 but below the 6.0 combined threshold
	// and below the 1.6 single-drive threshold.
	d := m.Evaluate(driveSet(map[string]float64{"a": 1.0, "b": 1.0, "c": 1.0, "d": 1.0, "e": 1.0}), SensorContext{})

	if d.ShouldTrigger {
		t.Fatal("did not expect a trigger below both thresholds")
	}
	if !d.RecommendGenerate {
		t.Error("expected recommend_generate at 0.8x combined threshold")
	}
}

func TestIdleFloorExceptionRequiresAllThreeConjuncts(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	ctx := newTestContext(t, fc)
	// Raise the combined threshold well above the exception's fixed 10.0
	// floor so a trigger at total=12 can only come from the exception
	// path, never from the ordinary combined-threshold check.
	ctx.Config.Evaluator.Rules.CombinedThreshold = 20.0
	ctx.Config.Evaluator.Rules.SingleDriveThreshold = 5.0
	m := New(ctx)

	// Force a last-trigger timestamp via a real single-drive trigger.
	m.Evaluate(driveSet(map[string]float64{"goals": 6.0}), SensorContext{})

	// Not enough elapsed time yet: exception must not fire even though
	// the pressure conjuncts are satisfied.
	d := m.Evaluate(driveSet(map[string]float64{
		"a": 2.0, "b": 2.0, "c": 2.0, "d": 2.0, "e": 2.0, "f": 2.0,
	}), SensorContext{})
	if d.ShouldTrigger {
		t.Fatal("exception fired before the 30-minute floor elapsed")
	}

	fc.Advance(31 * time.Minute)

	// Total pressure high, but no single drive exceeds 1.5 weighted
	// pressure: exception must still not fire.
	d = m.Evaluate(driveSet(map[string]float64{
		"a": 1.0, "b": 1.0, "c": 1.0, "d": 1.0, "e": 1.0, "f": 1.0, "g": 1.0, "h": 1.0, "i": 1.0, "j": 1.0, "k": 1.0,
	}), SensorContext{})
	if d.ShouldTrigger {
		t.Fatal("exception fired without a qualifying top drive pressure")
	}

	// All three conjuncts satisfied: >=30 minutes since last trigger,
	// total pressure > 10, top drive pressure > 1.5 — yet total (12) is
	// still below the 20.0 combined threshold, so only the exception
	// path can explain a trigger here.
	d = m.Evaluate(driveSet(map[string]float64{
		"a": 2.0, "b": 2.0, "c": 2.0, "d": 2.0, "e": 2.0, "f": 2.0,
	}), SensorContext{})
	if !d.ShouldTrigger || d.Reason != "combined_threshold" {
		t.Errorf("expected idle-floor exception to trigger, got trigger=%v reason=%q", d.ShouldTrigger, d.Reason)
	}
}

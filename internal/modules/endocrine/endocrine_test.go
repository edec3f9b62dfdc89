package endocrine

import (
	"testing"
	"time"

	"github.com/astra-ventures/pulse/internal/clock"
	"github.com/astra-ventures/pulse/internal/config"
	"github.com/astra-ventures/pulse/internal/pulsectx"
)

func newTestContext(t *testing.T, fc *clock.FakeClock) *pulsectx.Context {
	t.Helper()
	cfg := config.Default()
	cfg.StateDir = t.TempDir()
	return pulsectx.New(cfg, fc)
}

func TestUpdateHormoneClampsAndTracksDelta(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	m := New(newTestContext(t, fc))

	after := m.UpdateHormone(Dopamine, 10.0, "test")
	if after != 1.0 {
		t.Errorf("after = %v, want clamped to 1.0", after)
	}

	after = m.UpdateHormone(Dopamine, -10.0, "test")
	if after != 0 {
		t.Errorf("after = %v, want clamped to 0", after)
	}
}

func TestApplyEventAppliesFixedDeltas(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	m := New(newTestContext(t, fc))

	before := m.GetMood().Hormones[Dopamine]
	m.ApplyEvent("shipped_something")
	after := m.GetMood().Hormones[Dopamine]
	if after <= before {
		t.Errorf("expected dopamine to rise after shipped_something: before=%v after=%v", before, after)
	}
}

func TestApplyEventUnknownIsNoOp(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	m := New(newTestContext(t, fc))

	before := m.GetMood()
	m.ApplyEvent("not_a_real_event")
	after := m.GetMood()
	for hormone, v := range before.Hormones {
		if after.Hormones[hormone] != v {
			t.Errorf("unknown event changed %s: before=%v after=%v", hormone, v, after.Hormones[hormone])
		}
	}
}

// TestScenario1WiredLabel exercises the worked mood-label scenario: a
// shipped_something event followed by a rate_limit_hit should land on
// "wired" (cortisol and dopamine both elevated).
func TestScenario1WiredLabel(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	m := New(newTestContext(t, fc))

	m.ApplyEvent("shipped_something")
	m.ApplyEvent("rate_limit_hit")

	mood := m.GetMood()
	if mood.Label != "wired" {
		t.Errorf("label = %q, want wired; hormones=%v", mood.Label, mood.Hormones)
	}
}

func TestTickDecaysTowardBaselineNeverPast(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	m := New(newTestContext(t, fc))

	m.UpdateHormone(Cortisol, 0.5, "spike")
	m.Tick(1000) // a huge number of hours: should settle exactly at baseline, not overshoot below it

	mood := m.GetMood()
	if mood.Hormones[Cortisol] != baseline[Cortisol] {
		t.Errorf("cortisol = %v, want exactly baseline %v after heavy decay", mood.Hormones[Cortisol], baseline[Cortisol])
	}
}

func TestHistoryCapsAtMaxMoodSamples(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	m := New(newTestContext(t, fc))

	for i := 0; i < maxMoodSamples+25; i++ {
		m.Tick(0.01)
	}
	if got := len(m.History()); got != maxMoodSamples {
		t.Errorf("len(History()) = %d, want capped at %d", got, maxMoodSamples)
	}
}

func TestPruneHistoryDropsOldest(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	m := New(newTestContext(t, fc))

	for i := 0; i < 10; i++ {
		m.Tick(0.01)
	}
	dropped := m.PruneHistory(3)
	if dropped != 7 {
		t.Errorf("dropped = %d, want 7", dropped)
	}
	if got := len(m.History()); got != 3 {
		t.Errorf("len(History()) after prune = %d, want 3", got)
	}
}

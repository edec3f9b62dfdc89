package mutation

import (
	"testing"
	"time"

	"github.com/astra-ventures/pulse/internal/clock"
	"github.com/astra-ventures/pulse/internal/config"
	"github.com/astra-ventures/pulse/internal/drive"
	"github.com/astra-ventures/pulse/internal/pulsectx"
)

func newTestContext(t *testing.T, fc *clock.FakeClock) *pulsectx.Context {
	t.Helper()
	cfg := config.Default()
	cfg.StateDir = t.TempDir()
	return pulsectx.New(cfg, fc)
}

// fakeTuner is a minimal evaluatorTuner stand-in, since the real evaluator
// package depends on mutation's sibling packages in ways that would cycle
// back here.
type fakeTuner struct {
	single, combined float64
	cooldown         int64
	turnsPerHour     int
}

func (f *fakeTuner) SingleDriveThreshold() float64    { return f.single }
func (f *fakeTuner) CombinedThreshold() float64       { return f.combined }
func (f *fakeTuner) CooldownSeconds() int64           { return f.cooldown }
func (f *fakeTuner) TurnsPerHour() int                { return f.turnsPerHour }
func (f *fakeTuner) SetSingleDriveThreshold(v float64) float64 { f.single = v; return f.single }
func (f *fakeTuner) SetCombinedThreshold(v float64) float64    { f.combined = v; return f.combined }
func (f *fakeTuner) SetCooldownSeconds(v int64) int64          { f.cooldown = v; return f.cooldown }
func (f *fakeTuner) SetTurnsPerHour(v int) int                 { f.turnsPerHour = v; return f.turnsPerHour }

func TestApplyWeightClampsPerScenario6(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	ctx := newTestContext(t, fc)
	drives := drive.New(ctx) // seeds "goals" at weight 1.0 per config.Default()
	e := New(ctx, drives, &fakeTuner{})

	rec := e.Apply(Proposal{Kind: KindWeight, Target: "goals", NewValue: 5.0, Reason: "test"})

	if !rec.Applied {
		t.Fatalf("expected mutation to apply, got rejected: %s", rec.RejectedWhy)
	}
	if !rec.Clamped {
		t.Error("expected clamped=true")
	}
	if rec.ClampedFrom != 5.0 {
		t.Errorf("clamped_from = %v, want 5.0", rec.ClampedFrom)
	}
	if rec.After != drive.MaxWeight {
		t.Errorf("after = %v, want %v", rec.After, drive.MaxWeight)
	}
	if rec.Before != 1.0 {
		t.Errorf("before = %v, want 1.0", rec.Before)
	}
}

func TestApplyWeightRejectsUnknownDrive(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	ctx := newTestContext(t, fc)
	drives := drive.New(ctx)
	e := New(ctx, drives, &fakeTuner{})

	rec := e.Apply(Proposal{Kind: KindWeight, Target: "nonexistent", NewValue: 1.0})
	if rec.Applied {
		t.Error("expected rejection for an unknown drive")
	}
	if rec.RejectedWhy == "" {
		t.Error("expected a rejection reason")
	}
}

func TestApplyDriveCreateAndRemove(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	ctx := newTestContext(t, fc)
	drives := drive.New(ctx)
	e := New(ctx, drives, &fakeTuner{})

	rec := e.Apply(Proposal{Kind: KindDriveCreate, Target: "curiosity", NewValue: 1.0})
	if !rec.Applied {
		t.Fatalf("expected drive_create to apply: %s", rec.RejectedWhy)
	}
	if !drives.Exists("curiosity") {
		t.Fatal("expected drive to exist after drive_create")
	}

	rec = e.Apply(Proposal{Kind: KindDriveCreate, Target: "curiosity", NewValue: 1.0})
	if rec.Applied {
		t.Error("expected drive_create to reject a duplicate name")
	}

	rec = e.Apply(Proposal{Kind: KindDriveRemove, Target: "curiosity"})
	if !rec.Applied {
		t.Fatalf("expected drive_remove to apply: %s", rec.RejectedWhy)
	}
	if drives.Exists("curiosity") {
		t.Error("expected drive to be gone after drive_remove")
	}
}

func TestApplyDriveRemoveRefusesProtected(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	ctx := newTestContext(t, fc)
	drives := drive.New(ctx)
	e := New(ctx, drives, &fakeTuner{})

	rec := e.Apply(Proposal{Kind: KindDriveRemove, Target: "goals"})
	if rec.Applied {
		t.Error("expected drive_remove to refuse a protected drive")
	}
}

func TestApplyDriveAddNotClamped(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	ctx := newTestContext(t, fc)
	drives := drive.New(ctx)
	e := New(ctx, drives, &fakeTuner{})

	rec := e.Apply(Proposal{Kind: KindDriveAdd, Target: "goals", NewValue: 50.0})
	if !rec.Applied {
		t.Fatalf("expected drive_add to apply: %s", rec.RejectedWhy)
	}
	if rec.Clamped {
		t.Error("drive_add has no fixed bound, should never report clamped")
	}
}

func TestApplyThresholdAndCooldownAndTurnsPerHour(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	ctx := newTestContext(t, fc)
	drives := drive.New(ctx)
	tuner := &fakeTuner{single: 1.6, combined: 6.0, cooldown: 1800, turnsPerHour: 30}
	e := New(ctx, drives, tuner)

	rec := e.Apply(Proposal{Kind: KindThreshold, Target: TargetSingleDriveThreshold, NewValue: 0.05})
	if !rec.Applied || !rec.Clamped {
		t.Errorf("expected single_drive_threshold to apply and clamp (below MinThreshold), got applied=%v clamped=%v", rec.Applied, rec.Clamped)
	}

	rec = e.Apply(Proposal{Kind: KindCooldown, NewValue: 10000000})
	if !rec.Applied || !rec.Clamped {
		t.Errorf("expected cooldown to apply and clamp, got applied=%v clamped=%v", rec.Applied, rec.Clamped)
	}

	rec = e.Apply(Proposal{Kind: KindTurnsPerHour, NewValue: 1000})
	if !rec.Applied || !rec.Clamped {
		t.Errorf("expected turns_per_hour to apply and clamp, got applied=%v clamped=%v", rec.Applied, rec.Clamped)
	}
	if tuner.turnsPerHour != DefaultGuardrails().MaxTurnsPerHour {
		t.Errorf("turnsPerHour = %v, want %v", tuner.turnsPerHour, DefaultGuardrails().MaxTurnsPerHour)
	}
}

func TestRateLimiterRejectsPastCap(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	ctx := newTestContext(t, fc)
	drives := drive.New(ctx)
	e := New(ctx, drives, &fakeTuner{})
	maxPerHour := DefaultGuardrails().MaxMutationsPerHour

	for i := 0; i < maxPerHour; i++ {
		rec := e.Apply(Proposal{Kind: KindDriveAdd, Target: "goals", NewValue: 0.01})
		if !rec.Applied {
			t.Fatalf("mutation %d unexpectedly rejected: %s", i, rec.RejectedWhy)
		}
	}

	rec := e.Apply(Proposal{Kind: KindDriveAdd, Target: "goals", NewValue: 0.01})
	if rec.Applied {
		t.Error("expected the mutation past the hourly cap to be rejected")
	}
	if rec.RejectedWhy == "" {
		t.Error("expected a rate-limit rejection reason")
	}

	fc.Advance(61 * time.Minute)
	rec = e.Apply(Proposal{Kind: KindDriveAdd, Target: "goals", NewValue: 0.01})
	if !rec.Applied {
		t.Error("expected the rate limiter to allow a mutation after the hour window rolled over")
	}
}

func TestAuditChainVerifies(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	ctx := newTestContext(t, fc)
	drives := drive.New(ctx)
	e := New(ctx, drives, &fakeTuner{})

	e.Apply(Proposal{Kind: KindWeight, Target: "goals", NewValue: 1.2})
	e.Apply(Proposal{Kind: KindWeight, Target: "goals", NewValue: 1.4})
	e.Apply(Proposal{Kind: KindWeight, Target: "nonexistent", NewValue: 1.0})

	if err := e.Verify(); err != nil {
		t.Fatalf("expected a valid hash chain, got: %v", err)
	}
}

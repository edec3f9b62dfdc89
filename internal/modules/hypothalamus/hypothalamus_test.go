package hypothalamus

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

func TestNeedSignalBirthsAtNormalThreshold(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	ctx := newTestContext(t, fc)
	drives := drive.New(ctx)
	m := New(ctx, drives)

	m.NeedSignal("focus_time", "amygdala")
	m.NeedSignal("focus_time", "spine")
	if drives.Exists("focus_time") {
		t.Fatal("should not birth before NormalThreshold distinct modules agree")
	}

	m.NeedSignal("focus_time", "limbic")
	if !drives.Exists("focus_time") {
		t.Fatal("expected a drive birth at NormalThreshold distinct modules")
	}
}

func TestNeedSignalBirthsAtReducedThresholdForConnectionNeeds(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	ctx := newTestContext(t, fc)
	drives := drive.New(ctx)
	m := New(ctx, drives)

	m.NeedSignal("connection", "amygdala")
	if drives.Exists("connection") {
		t.Fatal("should not birth after only one module")
	}
	m.NeedSignal("connection", "spine")
	if !drives.Exists("connection") {
		t.Fatal("expected connection to birth at ReducedThreshold (2)")
	}
}

func TestNeedSignalIgnoresRepeatModule(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	ctx := newTestContext(t, fc)
	drives := drive.New(ctx)
	m := New(ctx, drives)

	m.NeedSignal("focus_time", "amygdala")
	m.NeedSignal("focus_time", "amygdala")
	m.NeedSignal("focus_time", "amygdala")
	if drives.Exists("focus_time") {
		t.Fatal("repeated signals from the same module must not count as distinct")
	}
}

func TestNeedSignalSkipsExistingDrive(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	ctx := newTestContext(t, fc)
	drives := drive.New(ctx)
	m := New(ctx, drives)

	// "goals" is seeded by config.Default(); a need_signal for it must be a no-op.
	m.NeedSignal("goals", "amygdala")
	m.NeedSignal("goals", "spine")
	m.NeedSignal("goals", "limbic")
	if pending := m.PendingSnapshot(); len(pending) != 0 {
		t.Errorf("expected no pending tracking for an already-existing drive, got %v", pending)
	}
}

func TestScanDrivesRetiresAtWeightFloor(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	ctx := newTestContext(t, fc)
	drives := drive.New(ctx)
	m := New(ctx, drives)

	if err := drives.Birth("exploratory", drive.MinWeight); err != nil {
		t.Fatal(err)
	}

	fc.Advance(decayAfter + time.Hour)
	m.ScanDrives() // first scan past decayAfter: already at floor, starts the floor timer

	fc.Advance(retireAfterAtFloor + time.Hour)
	m.ScanDrives() // sustained at floor long enough: should retire

	if drives.Exists("exploratory") {
		t.Error("expected the drive to be retired after sustaining the weight floor")
	}
	retirements := m.Retirements()
	if len(retirements) != 1 || retirements[0].Name != "exploratory" {
		t.Errorf("retirements = %+v, want one record for exploratory", retirements)
	}
}

func TestScanDrivesIgnoresConfigSeededDrives(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	ctx := newTestContext(t, fc)
	drives := drive.New(ctx)
	m := New(ctx, drives)

	before, _ := drives.GetDrive("goals")
	fc.Advance(decayAfter + retireAfterAtFloor + 24*time.Hour)
	m.ScanDrives()

	after, _ := drives.GetDrive("goals")
	if after.Weight != before.Weight {
		t.Errorf("config-seeded drive weight changed: before=%v after=%v", before.Weight, after.Weight)
	}
}

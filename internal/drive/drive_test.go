package drive

import (
	"testing"
	"time"

	"github.com/astra-ventures/pulse/internal/clock"
	"github.com/astra-ventures/pulse/internal/config"
	"github.com/astra-ventures/pulse/internal/pulsectx"
)

func newTestContext(t *testing.T) *pulsectx.Context {
	t.Helper()
	cfg := config.Default()
	cfg.StateDir = t.TempDir()
	cfg.Drives = nil
	return pulsectx.New(cfg, clock.NewFakeClock(time.Now()))
}

func TestWeightedPressure(t *testing.T) {
	d := Drive{Weight: 2.0, Pressure: 3.0}
	if got := d.WeightedPressure(); got != 6.0 {
		t.Errorf("WeightedPressure() = %v, want 6.0", got)
	}
}

func TestAccumulateAppliesRateAndDecay(t *testing.T) {
	e := New(newTestContext(t))
	if err := e.Add(Drive{Name: "test", Weight: 1.0, Pressure: 1.0, Rate: 0.1, Decay: 0.05}); err != nil {
		t.Fatal(err)
	}
	e.Accumulate()
	d, ok := e.GetDrive("test")
	if !ok {
		t.Fatal("expected drive to exist")
	}
	if got, want := d.Pressure, 1.05; got != want {
		t.Errorf("pressure = %v, want %v", got, want)
	}
}

func TestAccumulateNeverDrivesPressureNegative(t *testing.T) {
	e := New(newTestContext(t))
	if err := e.Add(Drive{Name: "test", Pressure: 0.01, Rate: 0, Decay: 1.0}); err != nil {
		t.Fatal(err)
	}
	e.Accumulate()
	d, _ := e.GetDrive("test")
	if d.Pressure != 0 {
		t.Errorf("pressure = %v, want 0 (clamped)", d.Pressure)
	}
}

func TestAddRejectsDuplicateName(t *testing.T) {
	e := New(newTestContext(t))
	if err := e.Add(Drive{Name: "dup"}); err != nil {
		t.Fatal(err)
	}
	if err := e.Add(Drive{Name: "dup"}); err == nil {
		t.Error("expected error adding a duplicate drive name")
	}
}

func TestAddRejectsAtMaxDrives(t *testing.T) {
	e := New(newTestContext(t))
	for e.Count() < MaxDrives {
		name := "filler"
		// unique names required; use the running count as a suffix.
		name = name + string(rune('a'+e.Count()))
		if err := e.Add(Drive{Name: name}); err != nil {
			t.Fatalf("unexpected error filling to MaxDrives: %v", err)
		}
	}
	if err := e.Add(Drive{Name: "overflow"}); err == nil {
		t.Error("expected error adding past MaxDrives")
	}
}

func TestAddClampsInitialWeight(t *testing.T) {
	e := New(newTestContext(t))
	if err := e.Add(Drive{Name: "heavy", Weight: 999}); err != nil {
		t.Fatal(err)
	}
	d, _ := e.GetDrive("heavy")
	if d.Weight != MaxWeight {
		t.Errorf("weight = %v, want clamped to %v", d.Weight, MaxWeight)
	}
}

func TestRemoveRefusesProtectedDrives(t *testing.T) {
	e := New(newTestContext(t))
	for name := range Protected {
		if err := e.Remove(name); err == nil {
			t.Errorf("expected Remove(%q) to fail: it is protected", name)
		}
	}
}

func TestRemoveDeletesUnprotectedDrive(t *testing.T) {
	e := New(newTestContext(t))
	if err := e.Add(Drive{Name: "ephemeral"}); err != nil {
		t.Fatal(err)
	}
	if err := e.Remove("ephemeral"); err != nil {
		t.Fatal(err)
	}
	if e.Exists("ephemeral") {
		t.Error("expected drive to be gone after Remove")
	}
}

func TestApplyWeightDeltaReportsClamping(t *testing.T) {
	e := New(newTestContext(t))
	if err := e.Add(Drive{Name: "goals", Weight: 1.0}); err != nil {
		t.Fatal(err)
	}

	value, clamped, found := e.ApplyWeightDelta("goals", 5.0)
	if !found {
		t.Fatal("expected drive to be found")
	}
	if !clamped {
		t.Error("expected clamped=true for a weight past MaxWeight")
	}
	if value != MaxWeight {
		t.Errorf("value = %v, want %v", value, MaxWeight)
	}

	value, clamped, found = e.ApplyWeightDelta("goals", 1.5)
	if !found || clamped {
		t.Errorf("in-range weight should not clamp: value=%v clamped=%v found=%v", value, clamped, found)
	}
	if value != 1.5 {
		t.Errorf("value = %v, want 1.5", value)
	}
}

func TestApplyWeightDeltaMissingDrive(t *testing.T) {
	e := New(newTestContext(t))
	_, clamped, found := e.ApplyWeightDelta("nonexistent", 1.0)
	if found || clamped {
		t.Errorf("expected found=false, clamped=false for a missing drive, got found=%v clamped=%v", found, clamped)
	}
}

func TestApplyRateDeltaReportsClamping(t *testing.T) {
	e := New(newTestContext(t))
	if err := e.Add(Drive{Name: "goals", Rate: 0.01}); err != nil {
		t.Fatal(err)
	}
	value, clamped, found := e.ApplyRateDelta("goals", 10.0)
	if !found || !clamped {
		t.Errorf("expected found=true clamped=true, got found=%v clamped=%v", found, clamped)
	}
	if value != MaxRate {
		t.Errorf("value = %v, want %v", value, MaxRate)
	}
}

func TestAddPressureClampsAtZero(t *testing.T) {
	e := New(newTestContext(t))
	if err := e.Add(Drive{Name: "goals", Pressure: 0.1}); err != nil {
		t.Fatal(err)
	}
	e.AddPressure("goals", -5.0)
	d, _ := e.GetDrive("goals")
	if d.Pressure != 0 {
		t.Errorf("pressure = %v, want 0", d.Pressure)
	}
}

func TestSnapshotIsValueCopy(t *testing.T) {
	e := New(newTestContext(t))
	if err := e.Add(Drive{Name: "goals", Pressure: 1.0}); err != nil {
		t.Fatal(err)
	}
	snap := e.Snapshot()
	e.AddPressure("goals", 5.0)
	for _, d := range snap {
		if d.Name == "goals" && d.Pressure != 1.0 {
			t.Error("snapshot mutated after a later engine change")
		}
	}
}

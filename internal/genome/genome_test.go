package genome

import (
	"testing"
	"time"

	"github.com/astra-ventures/pulse/internal/clock"
	"github.com/astra-ventures/pulse/internal/config"
	"github.com/astra-ventures/pulse/internal/drive"
	"github.com/astra-ventures/pulse/internal/pulsectx"
)

func newTestModule(t *testing.T) (*Module, *drive.Engine) {
	t.Helper()
	fc := clock.NewFakeClock(time.Now())
	cfg := config.Default()
	cfg.StateDir = t.TempDir()
	pctx := pulsectx.New(cfg, fc)
	drives := drive.New(pctx)
	return New(pctx, drives), drives
}

func TestExportRoundTripsThroughYAML(t *testing.T) {
	m, _ := newTestModule(t)

	data, err := m.ExportYAML()
	if err != nil {
		t.Fatalf("ExportYAML: %v", err)
	}

	m2, _ := newTestModule(t)
	if rejected, err := m2.ImportYAML(data); err != nil || len(rejected) != 0 {
		t.Fatalf("ImportYAML: rejected=%v err=%v", rejected, err)
	}
}

func TestImportRejectsOutOfBoundsWeight(t *testing.T) {
	m, _ := newTestModule(t)
	g := m.Export()
	for i := range g.Drives {
		if g.Drives[i].Name == "goals" {
			g.Drives[i].Weight = drive.MaxWeight + 1
		}
	}

	rejected, err := m.Import(g)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(rejected) == 0 {
		t.Fatal("expected an out-of-bounds weight to be rejected")
	}
}

func TestImportUnknownDriveIsRejected(t *testing.T) {
	m, _ := newTestModule(t)
	g := Genome{Version: Version, Drives: []DriveGene{{Name: "nonexistent", Weight: 1.0, Rate: 0.01}}}

	rejected, err := m.Import(g)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(rejected) != 1 {
		t.Fatalf("rejected = %v, want exactly one entry", rejected)
	}
}

func TestDiffReportsChangedFields(t *testing.T) {
	a := Genome{
		Version: "1.0",
		Drives:  []DriveGene{{Name: "goals", Weight: 1.0, Rate: 0.01, Decay: 0}},
		Evaluator: EvaluatorGene{SingleDriveThreshold: 1.6, CombinedThreshold: 6.0},
	}
	b := a
	b.Drives = []DriveGene{{Name: "goals", Weight: 1.5, Rate: 0.01, Decay: 0}}
	b.Evaluator.CombinedThreshold = 8.0

	diffs := Diff(a, b)
	if len(diffs) != 2 {
		t.Fatalf("diffs = %v, want 2 entries", diffs)
	}
}

func TestDiffOfIdenticalGenomesIsEmpty(t *testing.T) {
	m, _ := newTestModule(t)
	g := m.Export()
	if diffs := Diff(g, g); len(diffs) != 0 {
		t.Errorf("diffs = %v, want none", diffs)
	}
}

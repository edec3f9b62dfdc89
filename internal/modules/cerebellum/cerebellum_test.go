package cerebellum

import (
	"os"
	"path/filepath"
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
	return pulsectx.New(cfg, clock.NewFakeClock(time.Now()))
}

func TestDetectRequiresMinOutputsAndSimilarity(t *testing.T) {
	m := New(newTestContext(t))

	for i := 0; i < minOutputsForDetection-1; i++ {
		m.RecordOutput("deploy", "run the deploy script now")
	}
	if results := m.Detect(); len(results) != 0 {
		t.Fatal("expected no detections before minOutputsForDetection")
	}

	m.RecordOutput("deploy", "run the deploy script now")
	results := m.Detect()
	if len(results) != 1 || !results[0].Detected {
		t.Fatalf("expected a detection once outputs are both numerous and similar, got %+v", results)
	}
	if results[0].ReadyToGraduate {
		t.Error("did not expect graduation readiness on the first detection")
	}
}

func TestDetectStreakReachesGraduationReady(t *testing.T) {
	m := New(newTestContext(t))
	for i := 0; i < minOutputsForDetection; i++ {
		m.RecordOutput("deploy", "run the deploy script now")
	}

	var last []DetectionResult
	for i := 0; i < graduationStreak; i++ {
		last = m.Detect()
	}
	if len(last) != 1 || !last[0].ReadyToGraduate {
		t.Fatalf("expected ready_to_graduate after %d consecutive detections, got %+v", graduationStreak, last)
	}
}

func TestDetectResetsStreakOnDissimilarOutput(t *testing.T) {
	m := New(newTestContext(t))
	for i := 0; i < minOutputsForDetection; i++ {
		m.RecordOutput("deploy", "run the deploy script now")
	}
	m.Detect()
	m.RecordOutput("deploy", "completely different wording entirely unlike the others")
	results := m.Detect()
	if len(results) != 0 {
		t.Fatalf("expected the dissimilar output to reset the streak, got %+v", results)
	}
}

func TestGraduateTaskWritesReplayScript(t *testing.T) {
	m := New(newTestContext(t))
	for i := 0; i < minOutputsForDetection; i++ {
		m.RecordOutput("deploy", "run the deploy script now")
	}
	for i := 0; i < graduationStreak; i++ {
		m.Detect()
	}

	path, err := m.GraduateTask("deploy")
	if err != nil {
		t.Fatalf("unexpected error graduating a ready task: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected replay script to exist at %s: %v", path, err)
	}
	if filepath.Dir(path) != m.scriptDir {
		t.Errorf("script written outside scriptDir: %s", path)
	}

	if use, ok := m.ShouldUseHabit("deploy"); !ok || use != path {
		t.Errorf("ShouldUseHabit = (%q, %v), want (%q, true)", use, ok, path)
	}
}

func TestGraduateTaskRejectsUnready(t *testing.T) {
	m := New(newTestContext(t))
	m.RecordOutput("deploy", "run the deploy script now")
	if _, err := m.GraduateTask("deploy"); err == nil {
		t.Error("expected an error graduating a task with no detection streak")
	}
}

func TestEscalateClearsGraduation(t *testing.T) {
	m := New(newTestContext(t))
	for i := 0; i < minOutputsForDetection; i++ {
		m.RecordOutput("deploy", "run the deploy script now")
	}
	for i := 0; i < graduationStreak; i++ {
		m.Detect()
	}
	if _, err := m.GraduateTask("deploy"); err != nil {
		t.Fatal(err)
	}

	m.Escalate("deploy", "produced a wrong result")
	if _, ok := m.ShouldUseHabit("deploy"); ok {
		t.Error("expected ShouldUseHabit to report false after escalation")
	}
}

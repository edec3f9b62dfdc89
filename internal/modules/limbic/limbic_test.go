package limbic

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

func TestRecordEmotionRequiresGate(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	m := New(newTestContext(t, fc))

	if img := m.RecordEmotion("mild", 0.5, 1.0, "nothing much"); img != nil {
		t.Fatal("expected no afterimage below the creation gate")
	}
	if img := m.RecordEmotion("joy", 3.0, 1.0, "big valence"); img == nil {
		t.Error("expected an afterimage when |valence| exceeds the gate")
	}
	if img := m.RecordEmotion("focus", 0.1, 8.0, "big intensity"); img == nil {
		t.Error("expected an afterimage when intensity exceeds the gate")
	}
}

func TestCurrentIntensityHalvesAtHalfLife(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	m := New(newTestContext(t, fc))

	img := m.RecordEmotion("joy", 3.0, 10.0, "shipped")
	if img == nil {
		t.Fatal("expected an afterimage")
	}

	half := img.HalfLifeMS
	got := img.CurrentIntensity(img.CreatedAt + half)
	if diff := got - 5.0; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("intensity at one half-life = %v, want ~5.0", got)
	}
}

func TestGetCurrentAfterimagesPrunesFaded(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	m := New(newTestContext(t, fc))

	m.RecordEmotion("fear", 3.0, 3.0, "startled")
	fc.Advance(halfLifeByEmotion["fear"] * 20) // many half-lives: intensity well under fadeFloor

	current := m.GetCurrentAfterimages()
	if len(current) != 0 {
		t.Errorf("expected the faded afterimage to be pruned, got %d remaining", len(current))
	}
}

func TestGetEmotionalColorPicksDominant(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	m := New(newTestContext(t, fc))

	m.RecordEmotion("fear", -3.0, 3.0, "small")
	m.RecordEmotion("joy", 3.0, 9.0, "big")

	color := m.GetEmotionalColor()
	if color == nil {
		t.Fatal("expected a dominant emotion")
	}
	if color.Emotion != "joy" {
		t.Errorf("dominant = %q, want joy", color.Emotion)
	}
}

package thalamus

import (
	"testing"
	"time"

	"github.com/astra-ventures/pulse/internal/clock"
)

func TestPublishClampsSalience(t *testing.T) {
	dir := t.TempDir()
	b := New(dir, clock.NewFakeClock(time.Now()))

	entry, err := b.Publish("test", "spike", 5.0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Salience != 1.0 {
		t.Errorf("salience = %v, want clamped to 1.0", entry.Salience)
	}

	entry, err = b.Publish("test", "dip", -5.0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Salience != 0 {
		t.Errorf("salience = %v, want clamped to 0", entry.Salience)
	}
}

func TestPublishTimestampsNeverDecrease(t *testing.T) {
	dir := t.TempDir()
	fc := clock.NewFakeClock(time.Now())
	b := New(dir, fc)

	first, err := b.Publish("a", "one", 0.5, nil)
	if err != nil {
		t.Fatal(err)
	}
	fc.Set(fc.Now().Add(-time.Hour)) // clock moves backward
	second, err := b.Publish("a", "two", 0.5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if second.TS < first.TS {
		t.Errorf("second.TS = %d < first.TS = %d, want monotonic-non-decreasing", second.TS, first.TS)
	}
}

func TestReadAllAndFilters(t *testing.T) {
	dir := t.TempDir()
	b := New(dir, clock.NewFakeClock(time.Now()))

	b.Publish("endocrine", "mood_update", 0.4, nil)
	b.Publish("spine", "health_red", 0.9, nil)
	b.Publish("endocrine", "mood_update", 0.2, nil)

	all, err := b.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}

	bySource, err := b.FilterBySource("endocrine")
	if err != nil {
		t.Fatal(err)
	}
	if len(bySource) != 2 {
		t.Errorf("len(bySource) = %d, want 2", len(bySource))
	}

	byType, err := b.FilterByType("health_red")
	if err != nil {
		t.Fatal(err)
	}
	if len(byType) != 1 {
		t.Errorf("len(byType) = %d, want 1", len(byType))
	}
}

func TestTailN(t *testing.T) {
	dir := t.TempDir()
	b := New(dir, clock.NewFakeClock(time.Now()))

	for i := 0; i < 5; i++ {
		b.Publish("test", "event", 0.1, nil)
	}

	tail, err := b.TailN(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(tail) != 2 {
		t.Errorf("len(tail) = %d, want 2", len(tail))
	}

	tail, err = b.TailN(100)
	if err != nil {
		t.Fatal(err)
	}
	if len(tail) != 5 {
		t.Errorf("TailN past the entry count should return everything, got %d", len(tail))
	}
}

func TestRotationKeepsOnlyTailEntries(t *testing.T) {
	dir := t.TempDir()
	b := New(dir, clock.NewFakeClock(time.Now()))

	for i := 0; i < MaxEntries+10; i++ {
		if _, err := b.Publish("test", "event", 0.1, nil); err != nil {
			t.Fatal(err)
		}
	}

	all, err := b.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) > KeepEntries+10 {
		t.Errorf("expected the active log to be trimmed by rotation, got %d entries", len(all))
	}
}

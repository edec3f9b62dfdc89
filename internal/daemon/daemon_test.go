package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/astra-ventures/pulse/internal/clock"
	"github.com/astra-ventures/pulse/internal/config"
	"github.com/astra-ventures/pulse/internal/pulsectx"
	"github.com/astra-ventures/pulse/internal/state"
)

func newTestDaemon(t *testing.T, webhookURL string) (*Daemon, *clock.FakeClock) {
	t.Helper()
	fc := clock.NewFakeClock(time.Now())
	cfg := config.Default()
	cfg.StateDir = t.TempDir()
	cfg.Openclaw.WebhookURL = webhookURL
	pctx := pulsectx.New(cfg, fc)
	return New(pctx), fc
}

func TestNewWiresEveryModule(t *testing.T) {
	d, _ := newTestDaemon(t, "")
	for _, name := range []string{
		"endocrine", "circadian", "limbic", "amygdala", "spine", "evaluator",
		"mutation", "hypothalamus", "telomere", "cerebellum", "nephron",
		"aura", "myelin", "proprioception", "ponsrem", "vagus", "drive_engine", "genome",
	} {
		if _, ok := d.pctx.Registry.Lookup(name); !ok {
			t.Errorf("expected %q to be registered", name)
		}
	}
}

func TestRunTickTriggersAndDeliversWebhook(t *testing.T) {
	var gotMessage string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotMessage = req.Message
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"runId": "run-1"})
	}))
	defer server.Close()

	d, _ := newTestDaemon(t, server.URL)
	// Force a drive comfortably over the single-drive threshold so this
	// tick is guaranteed to trigger regardless of accumulation timing.
	d.drives.AddPressure("goals", 5.0)

	d.runTick(context.Background())

	if gotMessage == "" {
		t.Fatal("expected the webhook to receive a trigger message")
	}
}

func TestRunTickNoWebhookConfiguredDoesNotPanic(t *testing.T) {
	d, _ := newTestDaemon(t, "")
	d.drives.AddPressure("goals", 5.0)

	d.runTick(context.Background())
	// A failed delivery must not crash the tick; the cortisol bump from
	// the failure path is the only observable effect here.
}

func TestCheckpointPersistsCursor(t *testing.T) {
	d, _ := newTestDaemon(t, "")
	d.checkpoint()

	got, err := state.LoadCursor(d.pctx.StateDir)
	if err != nil {
		t.Fatalf("LoadCursor: %v", err)
	}
	if got.TickCount != 1 {
		t.Errorf("TickCount = %d, want 1", got.TickCount)
	}
}

func TestMaintenanceRunsOnceUntilIntervalElapses(t *testing.T) {
	d, fc := newTestDaemon(t, "")

	d.maybeRunMaintenance()
	before := d.lastMaintenance

	d.maybeRunMaintenance()
	if !d.lastMaintenance.Equal(before) {
		t.Fatal("maintenance re-ran before the interval elapsed")
	}

	fc.Advance(maintenanceInterval + time.Second)
	d.maybeRunMaintenance()
	if d.lastMaintenance.Equal(before) {
		t.Fatal("maintenance did not re-run after the interval elapsed")
	}
}

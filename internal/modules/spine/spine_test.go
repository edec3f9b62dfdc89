package spine

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
	return pulsectx.New(cfg, clock.NewFakeClock(time.Now()))
}

func TestScanAllGreenBelowThresholds(t *testing.T) {
	m := New(newTestContext(t))
	report := m.Scan(Inputs{TokenUsagePct: 0.1, ContextSizePct: 0.1})
	if report.Overall != Green {
		t.Errorf("overall = %v, want green", report.Overall)
	}
	if len(report.Alerts) != 0 {
		t.Errorf("expected no alerts, got %+v", report.Alerts)
	}
}

func TestScanTokenUsageRedSetsOverallRed(t *testing.T) {
	m := New(newTestContext(t))
	report := m.Scan(Inputs{TokenUsagePct: 0.99})
	if report.Overall != Red {
		t.Errorf("overall = %v, want red", report.Overall)
	}
	if len(report.Alerts) != 1 || report.Alerts[0].Probe != "token_usage" {
		t.Errorf("alerts = %+v, want a single token_usage alert", report.Alerts)
	}
}

func TestScanOverallIsMaxSeverityAcrossProbes(t *testing.T) {
	m := New(newTestContext(t))
	report := m.Scan(Inputs{TokenUsagePct: 0.75, FailedCrons: 5})
	if report.Overall != Red {
		t.Errorf("overall = %v, want red (cron failures dominate)", report.Overall)
	}
	if len(report.Alerts) != 2 {
		t.Errorf("expected two alerts, got %+v", report.Alerts)
	}
	if report.Alerts[0].Probe != "cron_health" {
		t.Errorf("alerts not sorted by severity: %+v", report.Alerts)
	}
}

func TestPausedNonEssentialAndPausedAllFollowLevel(t *testing.T) {
	m := New(newTestContext(t))

	m.Scan(Inputs{TokenUsagePct: 0.9}) // orange
	if !m.PausedNonEssential() || m.PausedAll() {
		t.Errorf("orange level: pausedNonEssential=%v pausedAll=%v, want true/false", m.PausedNonEssential(), m.PausedAll())
	}

	m.Scan(Inputs{TokenUsagePct: 0.99}) // red
	if !m.PausedNonEssential() || !m.PausedAll() {
		t.Errorf("red level: pausedNonEssential=%v pausedAll=%v, want true/true", m.PausedNonEssential(), m.PausedAll())
	}

	m.Scan(Inputs{TokenUsagePct: 0.1}) // back to green
	if m.PausedNonEssential() || m.PausedAll() {
		t.Errorf("green level: pausedNonEssential=%v pausedAll=%v, want false/false", m.PausedNonEssential(), m.PausedAll())
	}
}

func TestProviderFailuresLevels(t *testing.T) {
	m := New(newTestContext(t))
	report := m.Scan(Inputs{ProviderFailures: 1})
	if report.Overall != Orange {
		t.Errorf("overall = %v, want orange at providerFailuresOrange", report.Overall)
	}
	report = m.Scan(Inputs{ProviderFailures: 3})
	if report.Overall != Red {
		t.Errorf("overall = %v, want red at providerFailuresRed", report.Overall)
	}
}

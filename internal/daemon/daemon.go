// Package daemon implements the tick loop described in spec.md §4.14: a
// single serial loop, default period 5 s, that runs pre-sense, sense,
// accumulate, evaluate, act, post, maintain, and checkpoint every beat.
// Grounded on cmd/bud/main.go's PID-file guard and
// signal.Notify(SIGINT, SIGTERM)-then-graceful-shutdown idiom in the
// teacher, with the tick body itself built fresh: the teacher runs a
// sprawling set of independently-scheduled goroutines for a chat agent,
// where Pulse is a single homeostatic beat.
package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/astra-ventures/pulse/internal/config"
	"github.com/astra-ventures/pulse/internal/drive"
	"github.com/astra-ventures/pulse/internal/evaluator"
	"github.com/astra-ventures/pulse/internal/genome"
	"github.com/astra-ventures/pulse/internal/logging"
	"github.com/astra-ventures/pulse/internal/modules/amygdala"
	"github.com/astra-ventures/pulse/internal/modules/aura"
	"github.com/astra-ventures/pulse/internal/modules/cerebellum"
	"github.com/astra-ventures/pulse/internal/modules/circadian"
	"github.com/astra-ventures/pulse/internal/modules/endocrine"
	"github.com/astra-ventures/pulse/internal/modules/hypothalamus"
	"github.com/astra-ventures/pulse/internal/modules/limbic"
	"github.com/astra-ventures/pulse/internal/modules/myelin"
	"github.com/astra-ventures/pulse/internal/modules/nephron"
	"github.com/astra-ventures/pulse/internal/modules/ponsrem"
	"github.com/astra-ventures/pulse/internal/modules/proprioception"
	"github.com/astra-ventures/pulse/internal/modules/spine"
	"github.com/astra-ventures/pulse/internal/modules/telomere"
	"github.com/astra-ventures/pulse/internal/modules/vagus"
	"github.com/astra-ventures/pulse/internal/mutation"
	"github.com/astra-ventures/pulse/internal/pulsectx"
	"github.com/astra-ventures/pulse/internal/sensors"
	"github.com/astra-ventures/pulse/internal/state"
	"github.com/astra-ventures/pulse/internal/webhook"
)

// shutdownBudget is the grace window a signal gets to let the
// in-progress tick finish, per spec.md §5: "completes the current tick
// if within a 2 s budget, otherwise abandons the in-progress webhook."
const shutdownBudget = 2 * time.Second

// maintenanceInterval is the wall-clock cadence of step 7's periodic
// work (Myelin, Hypothalamus, Telomere, Cerebellum, Nephron, Aura), per
// spec.md §4.14: "Aura emits every 60 s wall-clock" — the rest of
// maintenance shares Aura's cadence rather than each running its own
// independent ticker.
const maintenanceInterval = 60 * time.Second

// conversationActiveWithin is how recently the conversation sensor must
// have seen activity to count as "active" for evaluator suppression.
const conversationActiveWithin = 2 * time.Minute

// conversationCooldownWithin extends suppression past the active window
// so a trigger doesn't fire the instant a conversation goes quiet.
const conversationCooldownWithin = 10 * time.Minute

// Daemon owns every state module and runs the tick loop against them.
type Daemon struct {
	pctx   *pulsectx.Context
	period time.Duration

	drives         *drive.Engine
	endocrine      *endocrine.Module
	circadian      *circadian.Module
	limbic         *limbic.Module
	amygdala       *amygdala.Module
	spine          *spine.Module
	evaluator      *evaluator.Module
	mutation       *mutation.Engine
	hypothalamus   *hypothalamus.Module
	telomere       *telomere.Module
	cerebellum     *cerebellum.Module
	nephron        *nephron.Module
	aura           *aura.Module
	myelin         *myelin.Module
	proprioception *proprioception.Module
	ponsrem        *ponsrem.Module
	vagus          *vagus.Module
	genome         *genome.Module

	webhook *webhook.Client

	sysSensor  *sensors.System
	fsSensor   *sensors.Filesystem
	convSensor *sensors.Conversation

	mu              sync.Mutex
	tickCount       int64
	lastMaintenance time.Time

	// Webhook delivery outcome tracking: the closest real analog Pulse
	// has to Amygdala's ConsecutiveErrors/FailedCrons30Min and Spine's
	// FailedCrons/ProviderFailures signals, since Pulse has no literal
	// cron subsystem — its one outbound call per trigger is the webhook
	// delivery in act().
	lastAPILatency     time.Duration
	consecutiveErrors  int
	failureTimestamps  []time.Time // pruned to the last 30 minutes
}

// New wires every state module and sensor from a shared Context, in the
// dependency order import cycles require (hypothalamus needs the drive
// engine directly, mutation needs it through the narrow applier
// interface).
func New(pctx *pulsectx.Context) *Daemon {
	drives := drive.New(pctx)
	eval := evaluator.New(pctx)
	d := &Daemon{
		pctx:           pctx,
		period:         pctx.Config.TickPeriod,
		drives:         drives,
		endocrine:      endocrine.New(pctx),
		circadian:      circadian.New(pctx),
		limbic:         limbic.New(pctx),
		amygdala:       amygdala.New(pctx),
		spine:          spine.New(pctx),
		evaluator:      eval,
		mutation:       mutation.New(pctx, drives, eval),
		hypothalamus:   hypothalamus.New(pctx, drives),
		telomere:       telomere.New(pctx),
		cerebellum:     cerebellum.New(pctx),
		nephron:        nephron.New(pctx),
		aura:           aura.New(pctx),
		myelin:         myelin.New(pctx),
		proprioception: proprioception.New(pctx, pctx.Config.TickPeriod),
		ponsrem:        ponsrem.New(pctx),
		vagus:          vagus.New(pctx),
		webhook:        webhook.New(pctx.Config.Openclaw),
		sysSensor:      sensors.NewSystem(pctx.Config.Workspace.Root),
		fsSensor:       sensors.NewFilesystem(pctx.Config.Workspace.Root, pctx.Clock),
		convSensor:     sensors.NewConversation(pctx.StateDir, pctx.Clock),
	}
	d.genome = genome.New(pctx, drives)
	return d
}

// Genome exposes the Genome module so cmd/pulse's CLI subcommands can
// export/import/diff without reaching into daemon internals.
func (d *Daemon) Genome() *genome.Module { return d.genome }

// Run acquires the PID-file guard and runs the tick loop until a
// termination signal arrives, honoring the shutdown budget of
// spec.md §5. It blocks until shutdown completes.
func (d *Daemon) Run(sigCh <-chan os.Signal) error {
	cleanup, err := acquirePIDFile(d.pctx.StateDir)
	if err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	defer cleanup()
	defer d.webhook.Close()

	logging.Info("daemon", "starting tick loop, period=%s", d.period)

	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	ticking := false
	var tickStarted time.Time
	var tickCancel context.CancelFunc
	tickDone := make(chan struct{}, 1)

	for {
		select {
		case <-ticker.C:
			if ticking {
				logging.Warn("daemon", "tick overran its period, skipping this beat")
				continue
			}
			ticking = true
			tickStarted = d.pctx.Clock.Now()
			var tctx context.Context
			tctx, tickCancel = context.WithCancel(context.Background())
			go func() {
				d.runTick(tctx)
				tickDone <- struct{}{}
			}()

		case <-tickDone:
			ticking = false
			tickCancel = nil

		case sig := <-sigCh:
			logging.Info("daemon", "received %s, shutting down", sig)
			if ticking {
				elapsed := d.pctx.Clock.Now().Sub(tickStarted)
				remaining := shutdownBudget - elapsed
				if remaining > 0 {
					select {
					case <-tickDone:
					case <-time.After(remaining):
						logging.Warn("daemon", "tick exceeded shutdown budget, abandoning in-progress webhook")
						if tickCancel != nil {
							tickCancel()
						}
						<-tickDone
					}
				} else {
					if tickCancel != nil {
						tickCancel()
					}
					<-tickDone
				}
			}
			d.checkpoint()
			logging.Info("daemon", "shutdown complete")
			return nil
		}
	}
}

// runTick executes the eight phases of spec.md §4.14 once.
func (d *Daemon) runTick(ctx context.Context) {
	d.proprioception.Tick()

	// 1. pre-sense: conversation cadence, read before anything else
	// touches the clock-derived "since last activity" value.
	sinceActivity := d.convSensor.Sample()

	// 2. sense: every sensor produces a reading.
	cpuPct, memPct, diskFreeGB := d.sysSensor.Sample()
	fsChanges := d.fsSensor.Sample()

	// 3. accumulate: the drive engine applies rate/decay.
	d.drives.Accumulate()
	d.circadian.Tick()
	d.endocrine.Tick(d.period.Hours())

	// 4. evaluate: score the drive snapshot against the sensor context.
	apiLatencySeconds, consecutiveErrors, failuresLast30Min := d.reliabilitySnapshot()
	threat := d.amygdala.Scan(amygdala.Signals{
		// TokenUsagePct has no real local source: Pulse does not itself
		// run language-model inference, so it has no first-party token
		// meter to sample (see DESIGN.md).
		TokenUsagePct:     0,
		DiskFreeGB:        diskFreeGB,
		APILatencySeconds: apiLatencySeconds,
		ConsecutiveErrors: consecutiveErrors,
		FailedCrons30Min:  failuresLast30Min,
	})
	health := d.spine.Scan(spine.Inputs{
		// TokenUsagePct and ContextSizePct have no real local source for
		// the same reason as above (see DESIGN.md).
		TokenUsagePct:    0,
		ContextSizePct:   0,
		FailedCrons:      failuresLast30Min,
		ProviderFailures: consecutiveErrors,
		DiskPathToCheck:  d.pctx.Config.Workspace.Root,
	})
	_ = cpuPct
	_ = memPct
	_ = fsChanges

	conv := evaluator.ConversationState{
		Active:       sinceActivity > 0 && sinceActivity < conversationActiveWithin,
		InCooldown:   sinceActivity >= conversationActiveWithin && sinceActivity < conversationCooldownWithin,
		SecondsSince: sinceActivity.Seconds(),
	}

	decision := d.evaluator.Evaluate(d.drives.Snapshot(), evaluator.SensorContext{
		Conversation: conv,
		Threat:       threat,
		Health:       health,
	})

	// 5. act: deliver a trigger, respecting the caller's cancellation.
	if decision.ShouldTrigger {
		d.act(ctx, decision)
	}

	// 6. post: post-trigger hooks run regardless of whether this tick
	// triggered, since mood/soma drift continuously.
	d.post(decision)

	// 7. maintain: periodic work on Aura's 60 s wall-clock cadence.
	d.maybeRunMaintenance()

	// 8. checkpoint: persist whatever changed this tick.
	d.checkpoint()
}

// act delivers the trigger decision to the agent runner over the
// webhook, firing trigger_success or trigger_failure per spec.md §4.14.
func (d *Daemon) act(ctx context.Context, decision evaluator.Decision) {
	cfg := d.pctx.Config.Openclaw
	msg := webhook.BuildMessage(cfg.MessagePrefix, decision.Reason, decision.TopDrive)

	req := webhook.Request{
		Message:  msg,
		Name:     "pulse",
		WakeMode: decision.Reason,
		Deliver:  cfg.Deliver,
		Isolated: cfg.SessionMode == config.SessionIsolated,
		Model:    cfg.IsolatedModel,
	}

	start := d.pctx.Clock.Now()
	resp, err := d.webhook.Deliver(ctx, req)
	d.recordDeliveryOutcome(d.pctx.Clock.Now(), d.pctx.Clock.Now().Sub(start), err)
	if err != nil {
		logging.Warn("daemon", "trigger delivery failed: %v", err)
		d.pctx.Broadcast("daemon", "trigger_failure", 0.5, map[string]any{
			"reason": decision.Reason,
			"error":  err.Error(),
		})
		d.endocrine.UpdateHormone(endocrine.Cortisol, 0.1, "trigger_failure")
		return
	}

	d.pctx.Broadcast("daemon", "trigger_success", 0.4, map[string]any{
		"reason":         decision.Reason,
		"run_id":         resp.RunID,
		"top_drive":      decision.TopDrive,
		"total_pressure": decision.TotalPressure,
	})
	d.limbic.RecordEmotion("triggered", 0.2, 0.3, decision.Reason)
	if decision.TopDrive != "" {
		d.drives.ResetPressure(decision.TopDrive)
	}
}

// recordDeliveryOutcome updates the webhook reliability signals fed to
// Amygdala and Spine each tick: the last delivery's latency, a
// consecutive-failure streak (reset on any success), and a 30-minute-
// pruned list of failure timestamps.
func (d *Daemon) recordDeliveryOutcome(now time.Time, latency time.Duration, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastAPILatency = latency
	if err != nil {
		d.consecutiveErrors++
		d.failureTimestamps = append(d.failureTimestamps, now)
	} else {
		d.consecutiveErrors = 0
	}

	cutoff := now.Add(-30 * time.Minute)
	kept := d.failureTimestamps[:0]
	for _, ts := range d.failureTimestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	d.failureTimestamps = kept
}

// reliabilitySnapshot reads back the current webhook reliability
// signals for this tick's Amygdala/Spine scan.
func (d *Daemon) reliabilitySnapshot() (apiLatencySeconds float64, consecutiveErrors, failuresLast30Min int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastAPILatency.Seconds(), d.consecutiveErrors, len(d.failureTimestamps)
}

// post applies post-trigger bookkeeping: Vagus rest-and-digest, Telomere
// wear, and Nephron pruning all run here since they're driven by the
// tick's outcome rather than the wall clock.
func (d *Daemon) post(decision evaluator.Decision) {
	d.telomere.Wear("daemon_tick", 0.001)
	if decision.ShouldTrigger {
		d.vagus.Engage()
	}
}

// maybeRunMaintenance runs step 7's periodic housekeeping once per
// maintenanceInterval of wall-clock time, not once per tick.
func (d *Daemon) maybeRunMaintenance() {
	now := d.pctx.Clock.Now()

	d.mu.Lock()
	due := now.Sub(d.lastMaintenance) >= maintenanceInterval
	if due {
		d.lastMaintenance = now
	}
	d.mu.Unlock()

	if !due {
		return
	}

	d.myelin.UpdateLexicon()
	d.hypothalamus.ScanDrives()
	d.cerebellum.Detect()
	d.nephron.Filter()
	d.aura.Tick()

	mode := string(d.circadian.GetCurrentMode())
	isIdle := d.convSensor.Sample() > conversationCooldownWithin
	d.ponsrem.RunDreamCycle(mode, isIdle)
}

// checkpoint persists the daemon's own tick cursor and the drive
// engine's snapshot, per spec.md §4.14 step 8. Grounded on
// internal/state.SaveCursor's load/seed/save idiom; the remaining L1
// modules hold only soft, re-derivable state and reseed from
// ctx.Config on restart.
func (d *Daemon) checkpoint() {
	d.mu.Lock()
	d.tickCount++
	count := d.tickCount
	d.mu.Unlock()

	cursor := state.Cursor{
		LastTickAt: d.pctx.Clock.Now().UnixMilli(),
		TickCount:  count,
	}
	if err := state.SaveCursor(d.pctx.StateDir, cursor); err != nil {
		logging.Warn("daemon", "checkpoint: save cursor: %v", err)
	}
	if err := state.Save(d.pctx.StateDir, "drives", d.drives.Snapshot()); err != nil {
		logging.Warn("daemon", "checkpoint: save drives: %v", err)
	}
}

// acquirePIDFile guards against a second daemon instance running
// against the same state directory. Grounded on cmd/bud/main.go's
// checkPidFile: detect a live conflicting process by PID and binary
// name, auto-kill it in service mode (PULSE_SERVICE=1), otherwise
// refuse to start and let the operator intervene, since an unattended
// double-daemon would double-fire triggers.
func acquirePIDFile(stateDir string) (func(), error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, err
	}
	pidPath := filepath.Join(stateDir, "pulse.pid")

	if data, err := os.ReadFile(pidPath); err == nil {
		if pid, convErr := strconv.Atoi(strings.TrimSpace(string(data))); convErr == nil {
			if proc, procErr := process.NewProcess(int32(pid)); procErr == nil {
				if running, _ := proc.IsRunning(); running {
					name, _ := proc.Name()
					cmdline, _ := proc.Cmdline()
					if strings.Contains(name, "pulse") || strings.Contains(cmdline, "pulse") {
						if os.Getenv("PULSE_SERVICE") == "1" {
							logging.Warn("daemon", "killing existing pulse process (pid %d)", pid)
							_ = proc.Kill()
							time.Sleep(time.Second)
						} else {
							return nil, fmt.Errorf("another pulse daemon is already running (pid %d); set PULSE_SERVICE=1 to auto-replace it", pid)
						}
					}
				}
			}
		}
		_ = os.Remove(pidPath)
	}

	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		logging.Warn("daemon", "failed to write pid file: %v", err)
	}

	return func() { _ = os.Remove(pidPath) }, nil
}

// Signals returns the set of OS signals the daemon shuts down on,
// wired up by the caller via signal.Notify.
func Signals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

// Package hypothalamus implements the meta-drive layer per spec.md §4.7:
// it listens for need_signal events from multiple modules and, once enough
// distinct modules agree a need exists, births a new drive. Grounded on
// internal/motivation's birth-on-threshold idiom in the teacher (tasks and
// ideas spawning types.Impulse), generalized to drive birth instead of
// impulse generation.
package hypothalamus

import (
	"sync"
	"time"

	"github.com/astra-ventures/pulse/internal/drive"
	"github.com/astra-ventures/pulse/internal/pulsectx"
)

// NormalThreshold is the distinct-module count required to birth a drive
// for most needs.
const NormalThreshold = 3

// ReducedThreshold applies to the reduced-threshold need set.
const ReducedThreshold = 2

// reducedNeeds is the set of needs that birth at ReducedThreshold instead
// of NormalThreshold, per spec.md §4.7.
var reducedNeeds = map[string]bool{
	"connection": true, "social": true, "belonging": true, "companionship": true,
}

// decayAfter is how old a drive must be before Hypothalamus starts
// decaying its weight during scans.
const decayAfter = 7 * 24 * time.Hour

// weightDecayPerScan is how much weight drops per scan once a drive is
// old enough to decay.
const weightDecayPerScan = 0.01

// retireAfterAtFloor is how long a drive must sit at the weight floor
// before it is retired.
const retireAfterAtFloor = 30 * 24 * time.Hour

const maxRetirementRecords = 50

// pendingSignal tracks one need's accumulating need_signal events.
type pendingSignal struct {
	modules   map[string]bool
	firstSeen time.Time
	lastSeen  time.Time
	count     int
}

// RetirementRecord is kept when a Hypothalamus-born drive is retired.
type RetirementRecord struct {
	Name    string    `json:"name"`
	At      time.Time `json:"at"`
	Reason  string    `json:"reason"`
}

// Module is the Hypothalamus state module.
type Module struct {
	ctx     *pulsectx.Context
	drives  *drive.Engine
	mu      sync.Mutex
	pending map[string]*pendingSignal

	// atFloorSince tracks, per drive name, when its weight first reached
	// the floor, so scan_drives can retire drives that have sat there
	// long enough.
	atFloorSince map[string]time.Time
	retirements  []RetirementRecord
}

// New creates a Hypothalamus module bound to the drive engine it births
// into.
func New(ctx *pulsectx.Context, drives *drive.Engine) *Module {
	m := &Module{
		ctx:          ctx,
		drives:       drives,
		pending:      make(map[string]*pendingSignal),
		atFloorSince: make(map[string]time.Time),
	}
	ctx.Registry.Register("hypothalamus", m)
	return m
}

func thresholdFor(need string) int {
	if reducedNeeds[need] {
		return ReducedThreshold
	}
	return NormalThreshold
}

// NeedSignal is called whenever a need_signal event is observed (directly,
// or by the daemon relaying a Thalamus broadcast of that type).
func (m *Module) NeedSignal(need, sourceModule string) {
	if m.drives.Exists(need) {
		return
	}

	m.mu.Lock()
	now := m.ctx.Clock.Now()
	p, ok := m.pending[need]
	if !ok {
		p = &pendingSignal{modules: make(map[string]bool), firstSeen: now}
		m.pending[need] = p
	}
	p.modules[sourceModule] = true
	p.lastSeen = now
	p.count++
	distinct := len(p.modules)
	threshold := thresholdFor(need)
	shouldBirth := distinct >= threshold
	if shouldBirth {
		delete(m.pending, need)
	}
	m.mu.Unlock()

	if !shouldBirth {
		return
	}

	if err := m.drives.Birth(need, 1.0); err != nil {
		return
	}
	m.ctx.Broadcast("hypothalamus", "drive_born", 0.3, map[string]any{
		"need":     need,
		"modules":  distinct,
		"threshold": threshold,
	})
}

// PendingSnapshot returns a stable, sorted view of pending signals for
// inspection/testing.
func (m *Module) PendingSnapshot() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.pending))
	for need, p := range m.pending {
		out[need] = len(p.modules)
	}
	return out
}

// ScanDrives runs the periodic decay/retirement pass over every active
// drive: drives older than 7 days decay weight by 0.01/scan; once a drive
// has sat at the weight floor for >=30 days it is retired.
func (m *Module) ScanDrives() {
	now := m.ctx.Clock.Now()
	for _, d := range m.drives.Snapshot() {
		if d.BornAt == 0 {
			continue // config-seeded drives aren't subject to Hypothalamus decay
		}
		bornAt := time.UnixMilli(d.BornAt)
		if now.Sub(bornAt) < decayAfter {
			continue
		}

		newWeight, ok := m.drives.DecayOld(d.Name, weightDecayPerScan)
		if !ok {
			continue
		}

		m.mu.Lock()
		if newWeight <= drive.MinWeight {
			if _, tracked := m.atFloorSince[d.Name]; !tracked {
				m.atFloorSince[d.Name] = now
			}
		} else {
			delete(m.atFloorSince, d.Name)
		}
		since, atFloor := m.atFloorSince[d.Name]
		m.mu.Unlock()

		if atFloor && now.Sub(since) >= retireAfterAtFloor {
			m.retire(d.Name, "weight floor sustained for 30+ days")
		}
	}
}

func (m *Module) retire(name, reason string) {
	if err := m.drives.Remove(name); err != nil {
		return
	}

	m.mu.Lock()
	delete(m.atFloorSince, name)
	m.retirements = append(m.retirements, RetirementRecord{Name: name, At: m.ctx.Clock.Now(), Reason: reason})
	if len(m.retirements) > maxRetirementRecords {
		m.retirements = m.retirements[len(m.retirements)-maxRetirementRecords:]
	}
	m.mu.Unlock()

	m.ctx.Broadcast("hypothalamus", "drive_retired", 0.2, map[string]any{
		"name":   name,
		"reason": reason,
	})
}

// Retirements returns the kept retirement records, most recent last.
func (m *Module) Retirements() []RetirementRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RetirementRecord, len(m.retirements))
	copy(out, m.retirements)
	return out
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	m.mu.Lock()
	pendingCount := len(m.pending)
	retired := len(m.retirements)
	m.mu.Unlock()
	return map[string]any{"pending_needs": pendingCount, "retired_total": retired}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pending[key]; ok {
		return len(p.modules), true
	}
	return nil, false
}

// Package sensors implements the L2 sense layer from spec.md §7: raw
// environment probes that feed the drive engine and the state modules,
// kept deliberately dumb (no interpretation, just numbers). Grounded on
// internal/budget/cpuwatcher.go's gopsutil-based process/CPU probing in
// the teacher, generalized to host-level CPU/memory/disk and a plain
// mtime-walk filesystem churn counter (this module set carries no
// Discord dependency, so the "conversation" sensor is generalized to a
// simple activity-cadence file rather than a chat platform).
package sensors

import (
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/astra-ventures/pulse/internal/clock"
	"github.com/astra-ventures/pulse/internal/logging"
)

// Snapshot is one sense pass's combined reading, per spec.md §5.
type Snapshot struct {
	CPUPercent      float64
	MemUsedPercent  float64
	DiskFreeGB      float64
	FSChangeCount   int
	LastActivityAgo time.Duration
}

// System probes host CPU/memory/disk via gopsutil.
type System struct {
	DiskPath string
}

// NewSystem creates a System sensor probing diskPath for free space.
func NewSystem(diskPath string) *System {
	return &System{DiskPath: diskPath}
}

// Sample takes one reading, logging (not failing) on any probe error so
// a single unavailable metric doesn't block the tick.
func (s *System) Sample() (cpuPct, memPct, diskFreeGB float64) {
	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		cpuPct = percentages[0]
	} else if err != nil {
		logging.Warn("sensors", "cpu probe failed: %v", err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		memPct = vm.UsedPercent
	} else {
		logging.Warn("sensors", "mem probe failed: %v", err)
	}

	if s.DiskPath != "" {
		if usage, err := disk.Usage(s.DiskPath); err == nil {
			diskFreeGB = float64(usage.Free) / (1024 * 1024 * 1024)
		} else {
			logging.Warn("sensors", "disk probe failed: %v", err)
		}
	}

	return cpuPct, memPct, diskFreeGB
}

// Filesystem counts files under root that changed (by mtime) since the
// sensor's last Sample call.
type Filesystem struct {
	Root     string
	clock    clock.Clock
	lastScan time.Time
}

// NewFilesystem creates a Filesystem sensor watching root, reading the
// wall clock through the injected Clock per spec.md §9's single-clock
// design note.
func NewFilesystem(root string, c clock.Clock) *Filesystem {
	return &Filesystem{Root: root, clock: c}
}

// Sample walks root counting files with mtime after the previous scan,
// then advances the watermark. The first call (no previous watermark)
// always returns 0 changes, since every file would otherwise count as
// "changed."
func (f *Filesystem) Sample() int {
	if f.Root == "" {
		return 0
	}
	since := f.lastScan
	now := f.clock.Now()
	changed := 0

	_ = filepath.WalkDir(f.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !since.IsZero() && info.ModTime().After(since) {
			changed++
		}
		return nil
	})

	f.lastScan = now
	if since.IsZero() {
		return 0
	}
	return changed
}

// Conversation tracks how long it has been since the last recorded
// activity, read from a cadence file an external integration touches.
type Conversation struct {
	path  string
	clock clock.Clock
}

// NewConversation creates a Conversation sensor reading
// <stateDir>/sensors/last_activity, reading the wall clock through the
// injected Clock per spec.md §9's single-clock design note.
func NewConversation(stateDir string, c clock.Clock) *Conversation {
	return &Conversation{path: filepath.Join(stateDir, "sensors", "last_activity"), clock: c}
}

// Sample returns how long it has been since the cadence file's mtime,
// or a zero duration if the file doesn't exist yet.
func (c *Conversation) Sample() time.Duration {
	info, err := os.Stat(c.path)
	if err != nil {
		return 0
	}
	return c.clock.Now().Sub(info.ModTime())
}

// Touch records activity now (called by whatever integration observes
// the agent runner actually talking to someone).
func (c *Conversation) Touch() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	f.Close()
	now := c.clock.Now()
	return os.Chtimes(c.path, now, now)
}

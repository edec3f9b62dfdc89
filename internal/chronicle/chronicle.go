// Package chronicle is the append-only significant-event log
// (chronicle.jsonl), gated by a significance threshold on salience.
// Grounded directly on internal/journal/journal.go's mutex+append-file
// pattern in the teacher, generalized with file locking for cross-process
// safety (spec.md §5) and a salience gate (spec.md glossary: "Significance
// threshold").
package chronicle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/astra-ventures/pulse/internal/clock"
)

// DefaultSignificanceThreshold is the minimum salience an event needs to
// be written to the chronicle at all.
const DefaultSignificanceThreshold = 0.5

// Entry is one chronicle record.
type Entry struct {
	TS      int64          `json:"ts"`
	Source  string         `json:"source"`
	Type    string         `json:"type"`
	Summary string         `json:"summary"`
	Data    map[string]any `json:"data,omitempty"`
}

// Chronicle writes gated, significant events to <state_dir>/chronicle.jsonl.
type Chronicle struct {
	path      string
	threshold float64
	clock     clock.Clock
	mu        sync.Mutex
}

// New creates a Chronicle at the default significance threshold.
func New(stateDir string, c clock.Clock) *Chronicle {
	return &Chronicle{
		path:      filepath.Join(stateDir, "chronicle.jsonl"),
		threshold: DefaultSignificanceThreshold,
		clock:     c,
	}
}

// SetThreshold overrides the significance threshold.
func (c *Chronicle) SetThreshold(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threshold = t
}

// Record appends an entry if salience meets the significance threshold.
// Returns whether it was written.
func (c *Chronicle) Record(source, typ, summary string, salience float64, data map[string]any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if salience < c.threshold {
		return false, nil
	}

	entry := Entry{
		TS:      c.clock.Now().UnixMilli(),
		Source:  source,
		Type:    typ,
		Summary: summary,
		Data:    data,
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return false, err
	}
	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, err
	}
	defer f.Close()

	line, err := json.Marshal(entry)
	if err != nil {
		return false, err
	}
	_, err = f.Write(append(line, '\n'))
	return err == nil, err
}

// GetStatus implements registry.Capability.
func (c *Chronicle) GetStatus() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]any{"threshold": c.threshold}
}

// Get implements registry.Capability.
func (c *Chronicle) Get(key string) (any, bool) {
	if key == "threshold" {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.threshold, true
	}
	return nil, false
}

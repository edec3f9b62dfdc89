// Package state implements the generic per-module persistence helpers
// described in spec.md §7: every module's durable state is a single
// JSON file under <state_dir>, loaded at startup and saved on
// checkpoint. Grounded on internal/motivation/tasks.go's
// load-or-seed/marshal-indent/write idiom in the teacher, generalized
// from TaskStore's concrete Task slice to any JSON-serializable value.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and unmarshals the JSON file at <stateDir>/<name>.json into
// dest. A missing file is not an error — dest is left at its zero
// value, mirroring the teacher's "no saved state yet" path.
func Load(stateDir, name string, dest any) error {
	path := filepath.Join(stateDir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return nil
}

// Save marshals src as indented JSON to <stateDir>/<name>.json,
// creating stateDir if needed.
func Save(stateDir, name string, src any) error {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	path := filepath.Join(stateDir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Cursor is the daemon's own checkpoint: the last tick it completed and
// when, persisted as pulse-state.json so a restart can report how long
// it was down.
type Cursor struct {
	LastTickAt   int64 `json:"last_tick_at"` // epoch ms
	TickCount    int64 `json:"tick_count"`
}

const cursorName = "pulse-state"

// LoadCursor reads the daemon's checkpoint cursor, defaulting to a zero
// Cursor if none exists yet.
func LoadCursor(stateDir string) (Cursor, error) {
	var c Cursor
	err := Load(stateDir, cursorName, &c)
	return c, err
}

// SaveCursor persists the daemon's checkpoint cursor.
func SaveCursor(stateDir string, c Cursor) error {
	return Save(stateDir, cursorName, c)
}

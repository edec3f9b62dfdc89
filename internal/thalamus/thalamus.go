// Package thalamus implements the L0 broadcast bus: an append-only,
// file-backed, newline-delimited JSON log that every module fans events
// into. Grounded on internal/journal/journal.go's mutex+append-file
// pattern in the teacher, generalized with cross-process file locking
// (internal/filelock) per spec.md §5 — the broadcast log must stay safe
// with multiple writers sharing a state directory, not just one process.
package thalamus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/astra-ventures/pulse/internal/clock"
	"github.com/astra-ventures/pulse/internal/filelock"
)

// Entry is one broadcast record, per spec.md §3.
type Entry struct {
	TS       int64          `json:"ts"` // epoch milliseconds
	Source   string         `json:"source"`
	Type     string         `json:"type"`
	Salience float64        `json:"salience"`
	Data     map[string]any `json:"data,omitempty"`
}

// Default rotation bounds, per spec.md §4.12.
const (
	MaxEntries  = 5000
	KeepEntries = 1000
)

// Bus is the broadcast log.
type Bus struct {
	path  string
	dir   string
	clock clock.Clock

	mu      sync.Mutex // serializes writers within this process
	lastTS  int64      // monotonic-non-decreasing-per-writer guard
}

// New creates a Bus writing to <stateDir>/broadcast.jsonl.
func New(stateDir string, c clock.Clock) *Bus {
	return &Bus{
		path:  filepath.Join(stateDir, "broadcast.jsonl"),
		dir:   stateDir,
		clock: c,
	}
}

// Publish appends an entry to the log, clamping salience to [0,1] and
// stamping ts. A torn write is never visible to readers: the entry is
// marshaled fully in memory before the locked append, and the write is a
// single os.File.Write call of one complete line.
func (b *Bus) Publish(source, typ string, salience float64, data map[string]any) (Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if salience < 0 {
		salience = 0
	} else if salience > 1 {
		salience = 1
	}

	ts := b.clock.Now().UnixMilli()
	if ts < b.lastTS {
		ts = b.lastTS
	}
	b.lastTS = ts

	entry := Entry{TS: ts, Source: source, Type: typ, Salience: salience, Data: data}

	line, err := json.Marshal(entry)
	if err != nil {
		return entry, fmt.Errorf("marshal broadcast entry: %w", err)
	}
	line = append(line, '\n')

	if err := b.appendLocked(line); err != nil {
		return entry, err
	}

	if err := b.rotateIfNeededLocked(); err != nil {
		// Rotation failure is I/O-transient: log-worthy, not fatal to the
		// publish that already succeeded.
		return entry, fmt.Errorf("rotate broadcast log: %w", err)
	}

	return entry, nil
}

func (b *Bus) appendLocked(line []byte) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open broadcast log: %w", err)
	}
	defer f.Close()

	if err := filelock.Lock(f); err != nil {
		return fmt.Errorf("lock broadcast log: %w", err)
	}
	defer filelock.Unlock(f)

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("write broadcast entry: %w", err)
	}
	return nil
}

// rotateIfNeededLocked moves the log's prefix to a timestamped archive once
// the active file exceeds MaxEntries lines, keeping only the last
// KeepEntries in place. Must be called while b.mu is held.
func (b *Bus) rotateIfNeededLocked() error {
	entries, err := b.readAllLocked()
	if err != nil {
		return err
	}
	if len(entries) <= MaxEntries {
		return nil
	}

	archivePath := filepath.Join(b.dir, fmt.Sprintf("broadcast-archive-%d.jsonl", b.clock.Now().UnixMilli()))
	archived := entries[:len(entries)-KeepEntries]
	kept := entries[len(entries)-KeepEntries:]

	if err := writeEntries(archivePath, archived); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}

	tmpPath := b.path + ".rotating"
	if err := writeEntries(tmpPath, kept); err != nil {
		return fmt.Errorf("write rotated active file: %w", err)
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		return fmt.Errorf("swap rotated active file: %w", err)
	}
	return nil
}

func writeEntries(path string, entries []Entry) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (b *Bus) readAllLocked() ([]Entry, error) {
	f, err := os.Open(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	if err := filelock.RLock(f); err != nil {
		return nil, err
	}
	defer filelock.Unlock(f)

	return decodeEntries(f)
}

func decodeEntries(r *os.File) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			// A reader must see only a consistent prefix: stop at the
			// first malformed line rather than erroring the whole read.
			break
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

// ReadAll returns every entry currently on the log (shared-lock read).
func (b *Bus) ReadAll() ([]Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readAllLocked()
}

// TailN returns the last n entries.
func (b *Bus) TailN(n int) ([]Entry, error) {
	all, err := b.ReadAll()
	if err != nil {
		return nil, err
	}
	if n >= len(all) {
		return all, nil
	}
	return all[len(all)-n:], nil
}

// Since returns all entries with ts >= sinceMillis, in original order.
func (b *Bus) Since(sinceMillis int64) ([]Entry, error) {
	all, err := b.ReadAll()
	if err != nil {
		return nil, err
	}
	idx := sort.Search(len(all), func(i int) bool { return all[i].TS >= sinceMillis })
	return all[idx:], nil
}

// FilterBySource returns all entries whose Source == source.
func (b *Bus) FilterBySource(source string) ([]Entry, error) {
	all, err := b.ReadAll()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range all {
		if e.Source == source {
			out = append(out, e)
		}
	}
	return out, nil
}

// FilterByType returns all entries whose Type == typ.
func (b *Bus) FilterByType(typ string) ([]Entry, error) {
	all, err := b.ReadAll()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range all {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out, nil
}

// Package mutation implements self-tuning parameter changes per
// spec.md §4.10/§4.11: a proposed change to a drive's weight, rate, or
// existence, or to the evaluator's threshold/cooldown/turns-per-hour
// knobs, is checked against a rate limiter and a fixed Guardrails bound
// table, applied if it passes, and always recorded to a SHA-256
// hash-chained audit log so every adjustment Pulse ever made to itself
// is independently verifiable. Grounded on internal/journal/journal.go's
// append-only JSONL writer idiom in the teacher, extended with a hash
// chain (journal.go has none) and the guardrail/rate-limiter machinery
// of evolution/guardrails.go's kept original — journal.go has no
// equivalent of either.
package mutation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/astra-ventures/pulse/internal/drive"
	"github.com/astra-ventures/pulse/internal/filelock"
	"github.com/astra-ventures/pulse/internal/pulsectx"
)

// Kind identifies what a mutation targets, the full set spec.md §4.10
// names.
type Kind string

const (
	KindWeight       Kind = "weight"
	KindThreshold    Kind = "threshold"
	KindRate         Kind = "rate"
	KindCooldown     Kind = "cooldown"
	KindTurnsPerHour Kind = "turns_per_hour"
	KindDriveAdd     Kind = "drive_add"
	KindDriveRemove  Kind = "drive_remove"
	KindDriveCreate  Kind = "drive_create"
)

// Threshold target names for Kind == KindThreshold.
const (
	TargetSingleDriveThreshold = "single_drive_threshold"
	TargetCombinedThreshold    = "combined_threshold"
)

// Proposal is a requested self-tuning change, per spec.md §4.10.
//
// Target's meaning depends on Kind: a drive name for weight/rate/
// drive_add/drive_remove/drive_create, one of the threshold target
// names above for threshold, and unused (left "") for cooldown and
// turns_per_hour, since those are process-wide evaluator knobs rather
// than per-drive ones.
//
// NewValue's meaning also depends on Kind: the proposed absolute
// weight/rate/threshold, the proposed cooldown in seconds or
// turns-per-hour count (as a float64 for a uniform Proposal shape), the
// pressure delta to add for drive_add, or the initial weight for
// drive_create. It is unused for drive_remove.
type Proposal struct {
	Kind     Kind
	Target   string
	NewValue float64
	Reason   string
	// Source identifies who proposed the change ("agent", "evaluator",
	// "manual", ...); defaults to "agent" if left blank.
	Source string
}

// Record is one applied-or-rejected mutation, chained by hash, per
// spec.md §3's mutation record shape.
type Record struct {
	ID          string `json:"id"`
	TS          int64  `json:"ts"`
	Kind        Kind   `json:"type"`
	Target      string `json:"target"`
	Before      any    `json:"before"`
	After       any    `json:"after"`
	Reason      string `json:"reason"`
	Applied     bool   `json:"applied"`
	RejectedWhy string `json:"rejected_why,omitempty"`
	Clamped     bool   `json:"clamped,omitempty"`
	ClampedFrom any    `json:"clamped_from,omitempty"`
	Source      string `json:"source"`
	PrevHash    string `json:"prev_hash"`
	Hash        string `json:"hash"`
}

// maxAuditBytes triggers rotation, keeping the chain seed so a rotated
// log can still be verified against its predecessor.
const maxAuditBytes = 5 * 1024 * 1024

// applier is the minimal surface Engine needs from the drive engine,
// kept narrow to avoid importing internal/drive's full API surface into
// this package's public API.
type applier interface {
	ApplyWeightDelta(name string, newWeight float64) (value float64, clamped bool, found bool)
	ApplyRateDelta(name string, newRate float64) (value float64, clamped bool, found bool)
	GetDrive(name string) (drive.Drive, bool)
	AddPressure(name string, delta float64)
	Add(d drive.Drive) error
	Remove(name string) error
	Exists(name string) bool
}

// evaluatorTuner is the minimal surface Engine needs from the Priority
// Evaluator to apply threshold/cooldown/turns-per-hour mutations,
// narrowed the same way applier is to avoid importing evaluator's full
// API.
type evaluatorTuner interface {
	SingleDriveThreshold() float64
	CombinedThreshold() float64
	CooldownSeconds() int64
	TurnsPerHour() int
	SetSingleDriveThreshold(v float64) float64
	SetCombinedThreshold(v float64) float64
	SetCooldownSeconds(v int64) int64
	SetTurnsPerHour(v int) int
}

// Engine is the Mutation state module.
type Engine struct {
	ctx        *pulsectx.Context
	drives     applier
	evaluator  evaluatorTuner
	guardrails Guardrails
	limiter    *rateLimiter
	mu         sync.Mutex
	path       string
	lastHash   string
}

// New creates a Mutation engine writing its audit log to
// <state_dir>/mutations.jsonl, per spec.md §6's state-directory layout.
func New(ctx *pulsectx.Context, drives applier, ev evaluatorTuner) *Engine {
	g := DefaultGuardrails()
	e := &Engine{
		ctx:        ctx,
		drives:     drives,
		evaluator:  ev,
		guardrails: g,
		limiter:    loadRateLimiter(ctx.StateDir, g.MaxMutationsPerHour),
		path:       filepath.Join(ctx.StateDir, "mutations.jsonl"),
	}
	e.lastHash = e.loadLastHash()
	ctx.Registry.Register("mutation", e)
	return e
}

func (e *Engine) loadLastHash() string {
	data, err := os.ReadFile(e.path)
	if err != nil {
		return ""
	}
	lines := splitLines(data)
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(lines[i], &r); err == nil {
			return r.Hash
		}
	}
	return ""
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}

// Apply checks a proposal against the rate limiter, applies it through
// the matching guardrail-clamped setter, and records the outcome
// (applied or rejected, for any reason) to the audit chain either way.
func (e *Engine) Apply(p Proposal) Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	source := p.Source
	if source == "" {
		source = "agent"
	}

	rec := Record{
		ID:       uuid.NewString(),
		TS:       e.ctx.Clock.Now().UnixMilli(),
		Kind:     p.Kind,
		Target:   p.Target,
		Reason:   p.Reason,
		Source:   source,
		PrevHash: e.lastHash,
	}

	if !e.limiter.allow(e.ctx.Clock.Now(), e.ctx.StateDir) {
		rec.RejectedWhy = fmt.Sprintf("mutation rate limit exceeded (%d/hour)", e.guardrails.MaxMutationsPerHour)
		return e.finalize(rec)
	}

	switch p.Kind {
	case KindWeight:
		e.applyWeight(&rec, p)
	case KindRate:
		e.applyRate(&rec, p)
	case KindThreshold:
		e.applyThreshold(&rec, p)
	case KindCooldown:
		e.applyCooldown(&rec, p)
	case KindTurnsPerHour:
		e.applyTurnsPerHour(&rec, p)
	case KindDriveAdd:
		e.applyDriveAdd(&rec, p)
	case KindDriveRemove:
		e.applyDriveRemove(&rec, p)
	case KindDriveCreate:
		e.applyDriveCreate(&rec, p)
	default:
		rec.RejectedWhy = fmt.Sprintf("unknown mutation kind %q", p.Kind)
	}

	return e.finalize(rec)
}

func (e *Engine) applyWeight(rec *Record, p Proposal) {
	d, ok := e.drives.GetDrive(p.Target)
	if !ok {
		rec.RejectedWhy = fmt.Sprintf("drive %q not found", p.Target)
		return
	}
	bound, boundClamped := e.guardrails.ClampWeight(p.NewValue)
	after, _, _ := e.drives.ApplyWeightDelta(p.Target, bound)
	rec.Before = d.Weight
	rec.After = after
	rec.Clamped = boundClamped
	if boundClamped {
		rec.ClampedFrom = p.NewValue
	}
	rec.Applied = true
}

func (e *Engine) applyRate(rec *Record, p Proposal) {
	d, ok := e.drives.GetDrive(p.Target)
	if !ok {
		rec.RejectedWhy = fmt.Sprintf("drive %q not found", p.Target)
		return
	}
	bound, boundClamped := e.guardrails.ClampRate(p.NewValue)
	after, _, _ := e.drives.ApplyRateDelta(p.Target, bound)
	rec.Before = d.Rate
	rec.After = after
	rec.Clamped = boundClamped
	if boundClamped {
		rec.ClampedFrom = p.NewValue
	}
	rec.Applied = true
}

func (e *Engine) applyThreshold(rec *Record, p Proposal) {
	if e.evaluator == nil {
		rec.RejectedWhy = "evaluator not wired"
		return
	}
	var before float64
	switch p.Target {
	case TargetSingleDriveThreshold:
		before = e.evaluator.SingleDriveThreshold()
	case TargetCombinedThreshold:
		before = e.evaluator.CombinedThreshold()
	default:
		rec.RejectedWhy = fmt.Sprintf("unknown threshold target %q", p.Target)
		return
	}
	bound, boundClamped := e.guardrails.ClampThreshold(p.NewValue)
	var after float64
	switch p.Target {
	case TargetSingleDriveThreshold:
		after = e.evaluator.SetSingleDriveThreshold(bound)
	case TargetCombinedThreshold:
		after = e.evaluator.SetCombinedThreshold(bound)
	}
	rec.Before = before
	rec.After = after
	rec.Clamped = boundClamped
	if boundClamped {
		rec.ClampedFrom = p.NewValue
	}
	rec.Applied = true
}

func (e *Engine) applyCooldown(rec *Record, p Proposal) {
	if e.evaluator == nil {
		rec.RejectedWhy = "evaluator not wired"
		return
	}
	before := e.evaluator.CooldownSeconds()
	bound, boundClamped := e.guardrails.ClampCooldownSeconds(int64(p.NewValue))
	after := e.evaluator.SetCooldownSeconds(bound)
	rec.Before = before
	rec.After = after
	rec.Clamped = boundClamped
	if boundClamped {
		rec.ClampedFrom = int64(p.NewValue)
	}
	rec.Applied = true
}

func (e *Engine) applyTurnsPerHour(rec *Record, p Proposal) {
	if e.evaluator == nil {
		rec.RejectedWhy = "evaluator not wired"
		return
	}
	before := e.evaluator.TurnsPerHour()
	bound, boundClamped := e.guardrails.ClampTurnsPerHour(int(p.NewValue))
	after := e.evaluator.SetTurnsPerHour(bound)
	rec.Before = before
	rec.After = after
	rec.Clamped = boundClamped
	if boundClamped {
		rec.ClampedFrom = int(p.NewValue)
	}
	rec.Applied = true
}

// applyDriveAdd adds an ad-hoc pressure contribution to an existing
// drive. Unlike weight/rate/threshold, pressure deltas have no fixed
// bound in spec.md §4.11's guardrail table, so this kind is validated
// only for drive existence, never clamped.
func (e *Engine) applyDriveAdd(rec *Record, p Proposal) {
	before, ok := e.drives.GetDrive(p.Target)
	if !ok {
		rec.RejectedWhy = fmt.Sprintf("drive %q not found", p.Target)
		return
	}
	e.drives.AddPressure(p.Target, p.NewValue)
	after, _ := e.drives.GetDrive(p.Target)
	rec.Before = before.Pressure
	rec.After = after.Pressure
	rec.Applied = true
}

func (e *Engine) applyDriveRemove(rec *Record, p Proposal) {
	if !e.drives.Exists(p.Target) {
		rec.RejectedWhy = fmt.Sprintf("drive %q not found", p.Target)
		return
	}
	if err := e.drives.Remove(p.Target); err != nil {
		rec.RejectedWhy = err.Error()
		return
	}
	rec.Before = p.Target
	rec.After = nil
	rec.Applied = true
}

// applyDriveCreate establishes a brand-new drive identity. A freshly
// created drive has no "current" weight to measure a delta against, so
// only the absolute weight bound is enforced; its pressure rate starts
// at the guardrail floor, left for a later rate mutation to tune up.
func (e *Engine) applyDriveCreate(rec *Record, p Proposal) {
	if e.drives.Exists(p.Target) {
		rec.RejectedWhy = fmt.Sprintf("drive %q already exists", p.Target)
		return
	}
	weight, boundClamped := e.guardrails.ClampInitialWeight(p.NewValue)
	if err := e.drives.Add(drive.Drive{Name: p.Target, Weight: weight, Rate: drive.MinRate}); err != nil {
		rec.RejectedWhy = err.Error()
		return
	}
	rec.Before = nil
	rec.After = weight
	rec.Clamped = boundClamped
	if boundClamped {
		rec.ClampedFrom = p.NewValue
	}
	rec.Applied = true
}

func (e *Engine) finalize(rec Record) Record {
	rec.Hash = hashRecord(rec)
	e.lastHash = rec.Hash

	if err := e.appendLocked(rec); err != nil {
		return rec
	}

	if rec.Applied {
		e.ctx.Broadcast("mutation", "mutation_applied", 0.3, map[string]any{
			"kind": rec.Kind, "target": rec.Target, "after": rec.After, "clamped": rec.Clamped,
		})
	}
	return rec
}

// hashRecord computes the chain hash over the record's content plus its
// predecessor's hash, so any edit or reorder breaks verification.
func hashRecord(r Record) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s|%v|%v|%s|%t|%s|%t|%v|%s",
		r.ID, r.TS, r.Kind, r.Target, r.Before, r.After, r.Reason, r.Applied, r.RejectedWhy, r.Clamped, r.ClampedFrom, r.PrevHash)
	return hex.EncodeToString(h.Sum(nil))
}

func (e *Engine) appendLocked(r Record) error {
	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(e.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := filelock.Lock(f); err != nil {
		return err
	}
	defer filelock.Unlock(f)

	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}

	if info, err := f.Stat(); err == nil && info.Size() > maxAuditBytes {
		// Rotation keeps the chain seed (last hash) live in e.lastHash;
		// the oversized file is archived wholesale rather than split,
		// since splitting would require re-verifying a partial chain.
		archivePath := fmt.Sprintf("%s.%d.archive", e.path, e.ctx.Clock.Now().Unix())
		f.Close()
		_ = os.Rename(e.path, archivePath)
	}

	return nil
}

// Verify walks the full audit log (across the live file only — archived
// rotations are verified independently against the seed hash recorded
// in their final line) confirming every record's hash matches its
// computed value and chains to its predecessor.
func (e *Engine) Verify() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := os.ReadFile(e.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	prevHash := ""
	for _, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			return fmt.Errorf("malformed audit record: %w", err)
		}
		if r.PrevHash != prevHash {
			return fmt.Errorf("chain broken at record %s: expected prev_hash %q, got %q", r.ID, prevHash, r.PrevHash)
		}
		want := hashRecord(r)
		if want != r.Hash {
			return fmt.Errorf("hash mismatch at record %s: stored %q, computed %q", r.ID, r.Hash, want)
		}
		prevHash = r.Hash
	}
	return nil
}

// GetStatus implements registry.Capability.
func (e *Engine) GetStatus() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return map[string]any{
		"last_hash":              e.lastHash,
		"mutations_last_hour":    len(e.limiter.timestamps),
		"max_mutations_per_hour": e.guardrails.MaxMutationsPerHour,
	}
}

// Get implements registry.Capability.
func (e *Engine) Get(key string) (any, bool) {
	if key != "last_hash" {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastHash, true
}

// Package cerebellum implements habit graduation per spec.md §4.5:
// tasks whose recent outputs look alike repeatedly get promoted to a
// replayable script. Grounded on internal/consolidate's
// similarity-and-repeated-observation idiom in the teacher, using Jaccard
// similarity over token bags per spec.md §9's Open Question resolution
// (the spec allows either Jaccard or cosine; Jaccard needs no embedding
// dependency, keeping Cerebellum dependency-free per DESIGN.md).
package cerebellum

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/astra-ventures/pulse/internal/pulsectx"
)

const (
	maxSampleOutputs       = 10
	minOutputsForDetection = 5
	similarityThreshold    = 0.85
	graduationStreak       = 3
)

// Habit tracks one task's recent outputs and graduation state.
type Habit struct {
	TaskName             string   `json:"task_name"`
	SampleOutputs        []string `json:"sample_outputs"`
	SimilarityScore       float64  `json:"similarity_score"`
	GraduationsDetected   int      `json:"graduations_detected"`
	GraduatedScriptPath   string   `json:"graduated_script_path,omitempty"`
}

// Module is the Cerebellum state module.
type Module struct {
	ctx      *pulsectx.Context
	mu       sync.Mutex
	habits   map[string]*Habit
	scriptDir string
}

// New creates a Cerebellum module. Replay scripts are written under
// <state_dir>/system/habits.
func New(ctx *pulsectx.Context) *Module {
	m := &Module{
		ctx:       ctx,
		habits:    make(map[string]*Habit),
		scriptDir: filepath.Join(ctx.StateDir, "system", "habits"),
	}
	ctx.Registry.Register("cerebellum", m)
	return m
}

// RecordOutput appends output to task's recent-outputs ring (capped at
// maxSampleOutputs), recomputing its similarity score.
func (m *Module) RecordOutput(task, output string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.habits[task]
	if !ok {
		h = &Habit{TaskName: task}
		m.habits[task] = h
	}
	h.SampleOutputs = append(h.SampleOutputs, output)
	if len(h.SampleOutputs) > maxSampleOutputs {
		h.SampleOutputs = h.SampleOutputs[len(h.SampleOutputs)-maxSampleOutputs:]
	}
	h.SimilarityScore = averagePairwiseSimilarity(h.SampleOutputs)
}

// tokenSet lowercases and splits s into a set of word tokens.
func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// jaccard computes the Jaccard similarity of two token sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func averagePairwiseSimilarity(outputs []string) float64 {
	if len(outputs) < 2 {
		return 0
	}
	sets := make([]map[string]struct{}, len(outputs))
	for i, o := range outputs {
		sets[i] = tokenSet(o)
	}
	var total float64
	var pairs int
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			total += jaccard(sets[i], sets[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return total / float64(pairs)
}

// DetectionResult is the outcome of one detection pass over one task.
type DetectionResult struct {
	Task           string
	Detected       bool
	ReadyToGraduate bool
}

// Detect runs the detection pass over every tracked task: any task with
// >=5 outputs and similarity>=0.85 gets a detection; the third
// consecutive detection flags it ready_to_graduate.
func (m *Module) Detect() []DetectionResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	var results []DetectionResult
	for _, h := range m.habits {
		if len(h.SampleOutputs) < minOutputsForDetection || h.SimilarityScore < similarityThreshold {
			h.GraduationsDetected = 0
			continue
		}
		h.GraduationsDetected++
		ready := h.GraduationsDetected >= graduationStreak
		results = append(results, DetectionResult{
			Task:            h.TaskName,
			Detected:        true,
			ReadyToGraduate: ready,
		})
	}
	return results
}

// GraduateTask writes a replay script for task and broadcasts
// habit_graduated. Fails if the task isn't ready_to_graduate.
func (m *Module) GraduateTask(task string) (string, error) {
	m.mu.Lock()
	h, ok := m.habits[task]
	if !ok || h.GraduationsDetected < graduationStreak {
		m.mu.Unlock()
		return "", fmt.Errorf("task %q is not ready to graduate", task)
	}
	if err := os.MkdirAll(m.scriptDir, 0o755); err != nil {
		m.mu.Unlock()
		return "", fmt.Errorf("create habit script dir: %w", err)
	}
	scriptPath := filepath.Join(m.scriptDir, sanitize(task)+".replay")
	content := buildReplayScript(h)
	if err := os.WriteFile(scriptPath, []byte(content), 0o644); err != nil {
		m.mu.Unlock()
		return "", fmt.Errorf("write replay script: %w", err)
	}
	h.GraduatedScriptPath = scriptPath
	m.mu.Unlock()

	m.ctx.Broadcast("cerebellum", "habit_graduated", 0.4, map[string]any{
		"task":        task,
		"script_path": scriptPath,
	})
	return scriptPath, nil
}

func sanitize(task string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_")
	return replacer.Replace(strings.ToLower(task))
}

func buildReplayScript(h *Habit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# replay script for %q\n", h.TaskName)
	fmt.Fprintf(&b, "# similarity_score=%.3f\n", h.SimilarityScore)
	for _, o := range h.SampleOutputs {
		fmt.Fprintf(&b, "---\n%s\n", o)
	}
	return b.String()
}

// ShouldUseHabit returns the graduated script path for task, if any.
func (m *Module) ShouldUseHabit(task string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.habits[task]
	if !ok || h.GraduatedScriptPath == "" {
		return "", false
	}
	return h.GraduatedScriptPath, true
}

// Escalate removes a task's graduation and broadcasts the escalation.
func (m *Module) Escalate(task, reason string) {
	m.mu.Lock()
	if h, ok := m.habits[task]; ok {
		h.GraduatedScriptPath = ""
		h.GraduationsDetected = 0
	}
	m.mu.Unlock()

	m.ctx.Broadcast("cerebellum", "habit_escalated", 0.5, map[string]any{
		"task":   task,
		"reason": reason,
	})
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	graduated := 0
	for _, h := range m.habits {
		if h.GraduatedScriptPath != "" {
			graduated++
		}
	}
	return map[string]any{"tracked_tasks": len(m.habits), "graduated": graduated}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.habits[key]
	if !ok {
		return nil, false
	}
	return h.SimilarityScore, true
}

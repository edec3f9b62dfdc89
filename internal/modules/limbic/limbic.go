// Package limbic implements emotional afterimages per spec.md §4.2:
// decaying memories of strong emotions with an exponential half-life.
package limbic

import (
	"math"
	"sync"
	"time"

	"github.com/astra-ventures/pulse/internal/pulsectx"
)

// creationGate mirrors spec.md §4.2: |valence|>2 OR intensity>7.
const (
	valenceGate   = 2.0
	intensityGate = 7.0
	fadeFloor     = 0.1
)

var defaultHalfLife = 4 * time.Hour

// halfLifeByEmotion overrides the default half-life for specific emotions.
var halfLifeByEmotion = map[string]time.Duration{
	"grief":      72 * time.Hour,
	"joy":        8 * time.Hour,
	"shame":      48 * time.Hour,
	"pride":      12 * time.Hour,
	"fear":       6 * time.Hour,
	"gratitude":  24 * time.Hour,
}

// Afterimage is a decaying emotional memory, per spec.md §3.
type Afterimage struct {
	ID          string        `json:"id"`
	Emotion     string        `json:"emotion"`
	Valence     float64       `json:"valence"`
	Intensity   float64       `json:"intensity"`
	CreatedAt   int64         `json:"created_at"` // epoch ms
	HalfLifeMS  int64         `json:"half_life_ms"`
	TriggerNote string        `json:"trigger_note"`
}

// CurrentIntensity returns the afterimage's decayed intensity at time t
// (epoch ms).
func (a Afterimage) CurrentIntensity(nowMS int64) float64 {
	if a.HalfLifeMS <= 0 {
		return a.Intensity
	}
	elapsed := float64(nowMS - a.CreatedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	exponent := -elapsed / float64(a.HalfLifeMS)
	return a.Intensity * math.Pow(2, exponent)
}

// Module is the Limbic state module.
type Module struct {
	ctx         *pulsectx.Context
	mu          sync.Mutex
	afterimages []Afterimage
	seq         int
}

// New creates a Limbic module.
func New(ctx *pulsectx.Context) *Module {
	m := &Module{ctx: ctx}
	ctx.Registry.Register("limbic", m)
	return m
}

// RecordEmotion evaluates the creation gate for one emotional event and,
// if it passes, creates and stores an afterimage, broadcasting
// limbic_afterimage.
func (m *Module) RecordEmotion(emotion string, valence, intensity float64, note string) *Afterimage {
	if math.Abs(valence) <= valenceGate && intensity <= intensityGate {
		return nil
	}

	halfLife := defaultHalfLife
	if hl, ok := halfLifeByEmotion[emotion]; ok {
		halfLife = hl
	}

	m.mu.Lock()
	m.seq++
	id := itoa(m.seq)
	img := Afterimage{
		ID:          id,
		Emotion:     emotion,
		Valence:     valence,
		Intensity:   intensity,
		CreatedAt:   m.ctx.Clock.Now().UnixMilli(),
		HalfLifeMS:  halfLife.Milliseconds(),
		TriggerNote: note,
	}
	m.afterimages = append(m.afterimages, img)
	m.mu.Unlock()

	m.ctx.Broadcast("limbic", "afterimage_created", clamp01(intensity/10), map[string]any{
		"emotion": emotion,
		"valence": valence,
	})
	return &img
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// GetCurrentAfterimages returns afterimages whose current intensity is
// above fadeFloor, garbage-collecting the rest.
func (m *Module) GetCurrentAfterimages() []Afterimage {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.ctx.Clock.Now().UnixMilli()
	var kept []Afterimage
	var result []Afterimage
	for _, a := range m.afterimages {
		cur := a.CurrentIntensity(now)
		if cur >= fadeFloor {
			kept = append(kept, a)
			withCurrent := a
			withCurrent.Intensity = cur
			result = append(result, withCurrent)
		}
	}
	m.afterimages = kept
	return result
}

// GetEmotionalColor returns the dominant afterimage (max current
// intensity), or nil if none remain.
func (m *Module) GetEmotionalColor() *Afterimage {
	current := m.GetCurrentAfterimages()
	if len(current) == 0 {
		return nil
	}
	best := current[0]
	for _, a := range current[1:] {
		if a.Intensity > best.Intensity {
			best = a
		}
	}
	return &best
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	color := m.GetEmotionalColor()
	status := map[string]any{"count": len(m.GetCurrentAfterimages())}
	if color != nil {
		status["dominant_emotion"] = color.Emotion
		status["dominant_intensity"] = color.Intensity
	}
	return status
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	if key == "dominant_emotion" {
		if c := m.GetEmotionalColor(); c != nil {
			return c.Emotion, true
		}
		return nil, false
	}
	return nil, false
}

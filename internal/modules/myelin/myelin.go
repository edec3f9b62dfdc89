// Package myelin implements shorthand compression per spec.md §4.6: a
// tracked-phrase lexicon that promotes frequently repeated phrases to a
// short token and demotes stale ones.
package myelin

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/astra-ventures/pulse/internal/pulsectx"
)

// PromotionThreshold is K in spec.md §4.6: references needed to promote.
const PromotionThreshold = 3

// StaleAfter is the demotion window for non-pre-seeded concepts.
const StaleAfter = 7 * 24 * time.Hour

// blocklist never gets compressed: proper names and basic emotion words,
// per spec.md §4.6.
var blocklist = map[string]bool{
	"josh": true, "iris": true,
	"happy": true, "sad": true, "angry": true, "afraid": true, "calm": true,
}

// LexiconEntry is one SHORTHAND -> full_text mapping, per spec.md §3.
type LexiconEntry struct {
	Shorthand string    `json:"shorthand"`
	FullText  string     `json:"full_text"`
	References int        `json:"references"`
	LastUsed  time.Time  `json:"last_used"`
	Created   time.Time  `json:"created"`
	PreSeeded bool       `json:"pre_seeded"`
}

// Module is the Myelin state module.
type Module struct {
	ctx      *pulsectx.Context
	mu       sync.Mutex
	tracking map[string]int           // full phrase -> reference count, not yet promoted
	concepts map[string]*LexiconEntry // full phrase -> promoted entry
}

// New creates a Myelin module.
func New(ctx *pulsectx.Context) *Module {
	m := &Module{
		ctx:      ctx,
		tracking: make(map[string]int),
		concepts: make(map[string]*LexiconEntry),
	}
	ctx.Registry.Register("myelin", m)
	return m
}

// PreSeed installs a shorthand that is never demoted regardless of
// staleness, per spec.md's glossary definition of "Pre-seed".
func (m *Module) PreSeed(shorthand, fullText string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.ctx.Clock.Now()
	m.concepts[normalize(fullText)] = &LexiconEntry{
		Shorthand: shorthand,
		FullText:  fullText,
		LastUsed:  now,
		Created:   now,
		PreSeeded: true,
	}
}

func normalize(phrase string) string {
	return strings.ToLower(strings.TrimSpace(phrase))
}

func toShorthand(phrase string) string {
	fields := strings.Fields(phrase)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		cleaned := strings.ToUpper(strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				return r
			}
			return -1
		}, f))
		if cleaned != "" {
			parts = append(parts, cleaned)
		}
	}
	return strings.Join(parts, "-")
}

// isBlocked returns true if phrase contains a blocklisted token.
func isBlocked(phrase string) bool {
	for _, tok := range strings.Fields(normalize(phrase)) {
		if blocklist[tok] {
			return true
		}
	}
	return false
}

// Observe records one utterance of phrase, tracking it and promoting it
// to a concept once it crosses PromotionThreshold references.
func (m *Module) Observe(phrase string) *LexiconEntry {
	if isBlocked(phrase) {
		return nil
	}
	key := normalize(phrase)
	if key == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.concepts[key]; ok {
		entry.References++
		entry.LastUsed = m.ctx.Clock.Now()
		return entry
	}

	m.tracking[key]++
	if m.tracking[key] < PromotionThreshold {
		return nil
	}

	now := m.ctx.Clock.Now()
	entry := &LexiconEntry{
		Shorthand:  toShorthand(phrase),
		FullText:   phrase,
		References: m.tracking[key],
		LastUsed:   now,
		Created:    now,
	}
	m.concepts[key] = entry
	delete(m.tracking, key)

	m.ctx.Broadcast("myelin", "shorthand_promoted", 0.2, map[string]any{
		"shorthand": entry.Shorthand,
		"full_text": entry.FullText,
	})
	return entry
}

// UpdateLexicon runs the periodic demotion pass: non-pre-seeded concepts
// unused for >= StaleAfter are removed.
func (m *Module) UpdateLexicon() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.ctx.Clock.Now()
	demoted := 0
	for key, entry := range m.concepts {
		if entry.PreSeeded {
			continue
		}
		if now.Sub(entry.LastUsed) >= StaleAfter {
			delete(m.concepts, key)
			demoted++
		}
	}
	if demoted > 0 {
		m.ctx.Broadcast("myelin", "lexicon_demoted", 0.1, map[string]any{"count": demoted})
	}
	return demoted
}

var shorthandToken = regexp.MustCompile(`\[([A-Z0-9-]+)\]`)

// Compress replaces every full form known in the lexicon with
// [SHORTHAND] in text.
func (m *Module) Compress(text string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := text
	for _, entry := range m.concepts {
		out = replaceCaseInsensitive(out, entry.FullText, "["+entry.Shorthand+"]")
	}
	return out
}

// Expand is the inverse of Compress: every [SHORTHAND] token is replaced
// with its full text. expand(compress(x)) == x whenever x contained no
// literal [SHORTHAND] token, per spec.md §8.
func (m *Module) Expand(text string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	byShorthand := make(map[string]string, len(m.concepts))
	for _, entry := range m.concepts {
		byShorthand[entry.Shorthand] = entry.FullText
	}

	return shorthandToken.ReplaceAllStringFunc(text, func(tok string) string {
		inner := tok[1 : len(tok)-1]
		if full, ok := byShorthand[inner]; ok {
			return full
		}
		return tok
	})
}

func replaceCaseInsensitive(haystack, needle, replacement string) string {
	if needle == "" {
		return haystack
	}
	lowerHaystack := strings.ToLower(haystack)
	lowerNeedle := strings.ToLower(needle)
	var b strings.Builder
	i := 0
	for {
		idx := strings.Index(lowerHaystack[i:], lowerNeedle)
		if idx < 0 {
			b.WriteString(haystack[i:])
			break
		}
		b.WriteString(haystack[i : i+idx])
		b.WriteString(replacement)
		i += idx + len(needle)
	}
	return b.String()
}

// GetStatus implements registry.Capability.
func (m *Module) GetStatus() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]any{
		"tracking_count": len(m.tracking),
		"concept_count":  len(m.concepts),
	}
}

// Get implements registry.Capability.
func (m *Module) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.concepts[normalize(key)]; ok {
		return entry.Shorthand, true
	}
	return nil, false
}

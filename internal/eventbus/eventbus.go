// Package eventbus implements the in-process synchronous publisher/
// subscriber described in spec.md §4.13 — zero-latency fan-out within one
// process, distinct from Thalamus's file-backed cross-process broadcast.
package eventbus

import (
	"fmt"
	"sync"

	"github.com/astra-ventures/pulse/internal/logging"
)

// Kinds used by the daemon loop; not exhaustive — any string is a valid
// event kind, these are just the ones spec.md §4.13 names.
const (
	KindTriggerSuccess   = "trigger_success"
	KindTriggerFailure   = "trigger_failure"
	KindMutationApplied  = "mutation_applied"
	KindStateSaved       = "state_saved"
)

// Handler receives a payload for one event kind.
type Handler func(payload any)

// Bus is a synchronous, in-process pub/sub multiplexer.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// New creates an empty event bus.
func New() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers h to run whenever kind is published.
func (b *Bus) Subscribe(kind string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// Publish invokes every handler subscribed to kind, synchronously, in
// registration order. A handler panic is recovered and logged with the
// event kind so it never prevents sibling handlers from running.
func (b *Bus) Publish(kind string, payload any) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[kind]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.invokeSafely(kind, h, payload)
	}
}

func (b *Bus) invokeSafely(kind string, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("eventbus", "handler panic for %s: %v", kind, r)
		}
	}()
	h(payload)
}

// String is a tiny helper used by callers that log a kind/payload pair.
func String(kind string, payload any) string {
	return fmt.Sprintf("%s: %v", kind, payload)
}

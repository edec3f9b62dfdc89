// Package registry implements the name-keyed module lookup described in
// spec.md §9: modules never import one another directly (that would make
// an import cycle out of Phenotype/Aura reading half the other modules).
// Instead each module registers itself by name at startup and collaborators
// are fetched by name at call time through the small Capability interface.
// A missing collaborator is never an error — callers fall back to defaults.
package registry

import "sync"

// Capability is the minimal surface every state module exposes to siblings.
type Capability interface {
	// GetStatus returns a small, read-only summary of the module's state.
	GetStatus() map[string]any
	// Get returns a single named value from the module's state, and
	// whether it was present.
	Get(key string) (any, bool)
}

// Registry is a concurrency-safe name -> Capability map.
type Registry struct {
	mu   sync.RWMutex
	mods map[string]Capability
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{mods: make(map[string]Capability)}
}

// Register adds or replaces a module under name.
func (r *Registry) Register(name string, mod Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mods[name] = mod
}

// Lookup returns the module registered under name, or nil, false if absent.
// Callers must treat a missing collaborator as "use default values" per
// spec.md §9 — never panic or error on a nil result.
func (r *Registry) Lookup(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mod, ok := r.mods[name]
	return mod, ok
}

// Names returns the currently registered module names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.mods))
	for n := range r.mods {
		names = append(names, n)
	}
	return names
}

// StatusOf is a convenience that looks up mod and returns its status, or
// an empty map if the module is absent.
func (r *Registry) StatusOf(name string) map[string]any {
	mod, ok := r.Lookup(name)
	if !ok {
		return map[string]any{}
	}
	return mod.GetStatus()
}

// GetFrom is a convenience that looks up mod and fetches key from it,
// returning (nil, false) if either the module or the key is absent.
func (r *Registry) GetFrom(name, key string) (any, bool) {
	mod, ok := r.Lookup(name)
	if !ok {
		return nil, false
	}
	return mod.Get(key)
}

// Package pulsectx defines the context every component constructor takes,
// per spec.md §9's design note against module-level globals: "pass a
// PulseContext{state_dir, clock, bus, event_bus, config} through component
// constructors; module-level singletons are forbidden in core code so
// tests can spawn isolated instances."
package pulsectx

import (
	"github.com/astra-ventures/pulse/internal/chronicle"
	"github.com/astra-ventures/pulse/internal/clock"
	"github.com/astra-ventures/pulse/internal/config"
	"github.com/astra-ventures/pulse/internal/eventbus"
	"github.com/astra-ventures/pulse/internal/registry"
	"github.com/astra-ventures/pulse/internal/thalamus"
)

// Context bundles everything a module constructor needs, so no module ever
// reaches for a package-level global.
type Context struct {
	StateDir  string
	Clock     clock.Clock
	Bus       *thalamus.Bus
	EventBus  *eventbus.Bus
	Chronicle *chronicle.Chronicle
	Registry  *registry.Registry
	Config    config.Config
}

// New builds a Context from a loaded Config and an injected Clock. It
// creates the Thalamus bus, event bus, chronicle, and a fresh module
// registry, all rooted at cfg.StateDir.
func New(cfg config.Config, c clock.Clock) *Context {
	return &Context{
		StateDir:  cfg.StateDir,
		Clock:     c,
		Bus:       thalamus.New(cfg.StateDir, c),
		EventBus:  eventbus.New(),
		Chronicle: chronicle.New(cfg.StateDir, c),
		Registry:  registry.New(),
		Config:    cfg,
	}
}

// Broadcast is a convenience wrapper for modules: publish to Thalamus and,
// if it met the chronicle's significance threshold, also chronicle it.
func (ctx *Context) Broadcast(source, typ string, salience float64, data map[string]any) {
	if ctx.Bus != nil {
		ctx.Bus.Publish(source, typ, salience, data)
	}
	if ctx.Chronicle != nil {
		ctx.Chronicle.Record(source, typ, typ, salience, data)
	}
}

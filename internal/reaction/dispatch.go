package reaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/judgy/internal/events"
	"github.com/ayusman/judgy/internal/logger"
	"github.com/ayusman/judgy/internal/plugin"
	"github.com/ayusman/judgy/internal/store"
)

// Bindings lists the plugin actions bound to an event kind.
type Bindings interface {
	ListByEventKind(kind string) ([]*store.Action, error)
}

// PluginLookup finds a discovered plugin by name.
type PluginLookup interface {
	Get(name string) (*plugin.Plugin, error)
}

// PluginRunner executes one plugin request.
type PluginRunner interface {
	Execute(ctx context.Context, p *plugin.Plugin, req *plugin.Request) (*plugin.Response, error)
}

// Reaction describes what was done for one event.
type Reaction struct {
	Event       string    `json:"event"`
	Count       int       `json:"count"`
	Line        string    `json:"line,omitempty"`
	Personality string    `json:"personality,omitempty"`
	Voice       string    `json:"voice,omitempty"`
	Animation   string    `json:"animation,omitempty"`
	Actions     int       `json:"actions"`
	Skipped     bool      `json:"skipped,omitempty"`
	At          time.Time `json:"at"`
}

// DispatcherConfig wires a Dispatcher. Bindings, Plugins and Runner may be
// nil, in which case reactions are produced but no plugin runs.
type DispatcherConfig struct {
	Responder   Responder
	Bindings    Bindings
	Plugins     PluginLookup
	Runner      PluginRunner
	Personality string
	Praise      bool
	// Pick chooses the mixtape personality; defaults to rand.IntN.
	Pick func(n int) int
	Now  func() time.Time
}

// Dispatcher turns events into lines and runs the bound plugin actions.
// Handle is safe to call from one consumer goroutine while settings are
// changed from others.
type Dispatcher struct {
	responder Responder
	bindings  Bindings
	plugins   PluginLookup
	runner    PluginRunner
	pick      func(n int) int
	now       func() time.Time

	mu          sync.RWMutex
	personality string
	praise      bool
}

// NewDispatcher creates a Dispatcher. A nil Responder uses prewritten lines.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Responder == nil {
		cfg.Responder = NewPrewritten(cfg.Pick)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if !Valid(cfg.Personality) {
		cfg.Personality = DefaultPersonality
	}
	return &Dispatcher{
		responder:   cfg.Responder,
		bindings:    cfg.Bindings,
		plugins:     cfg.Plugins,
		runner:      cfg.Runner,
		pick:        cfg.Pick,
		now:         cfg.Now,
		personality: cfg.Personality,
		praise:      cfg.Praise,
	}
}

// SetPersonality changes the personality used for later reactions.
func (d *Dispatcher) SetPersonality(name string) error {
	if !Valid(name) {
		return fmt.Errorf("unknown personality %q", name)
	}
	d.mu.Lock()
	d.personality = name
	d.mu.Unlock()
	return nil
}

// Personality returns the configured personality name.
func (d *Dispatcher) Personality() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.personality
}

// SetPraise enables or disables reactions to putdowns.
func (d *Dispatcher) SetPraise(enabled bool) {
	d.mu.Lock()
	d.praise = enabled
	d.mu.Unlock()
}

// Praise reports whether putdowns get a reaction.
func (d *Dispatcher) Praise() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.praise
}

// Handle reacts to ev. count is the pickup count after the event. The
// returned error joins every failed plugin action; the Reaction is valid
// even when err is non-nil.
func (d *Dispatcher) Handle(ctx context.Context, ev events.Event, count int) (Reaction, error) {
	r := Reaction{Event: ev.String(), Count: count, At: d.now()}

	switch ev {
	case events.EventPickedUp:
	case events.EventPutDown:
		if !d.Praise() {
			r.Skipped = true
			return r, nil
		}
	default:
		return r, fmt.Errorf("%w: %s", ErrUnsupportedEvent, ev)
	}

	persona := Resolve(d.Personality(), d.pick)
	r.Personality = persona.Name
	r.Voice = persona.Voice
	r.Animation = AnimationFor(ev, count)

	start := time.Now()
	line, err := d.responder.Generate(ctx, Prompt{Event: ev, Count: count, Personality: persona})
	if err != nil {
		return r, fmt.Errorf("generate line: %w", err)
	}
	r.Line = line
	logger.Info("reaction", "%s #%d (%s, %s): %q", ev, count, persona.Name, time.Since(start).Round(time.Millisecond), line)

	if d.bindings == nil || d.plugins == nil || d.runner == nil {
		return r, nil
	}

	actions, err := d.bindings.ListByEventKind(ev.String())
	if err != nil {
		return r, fmt.Errorf("list bindings: %w", err)
	}

	var errs []error
	for _, a := range actions {
		if !a.Enabled {
			continue
		}
		if err := d.run(ctx, a, r); err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", a.PluginName, a.ActionName, err))
			continue
		}
		r.Actions++
	}

	return r, errors.Join(errs...)
}

func (d *Dispatcher) run(ctx context.Context, a *store.Action, r Reaction) error {
	p, err := d.plugins.Get(a.PluginName)
	if err != nil {
		return err
	}

	resp, err := d.runner.Execute(ctx, p, &plugin.Request{
		Action:    a.ActionName,
		Event:     r.Event,
		Text:      r.Line,
		Count:     r.Count,
		Animation: r.Animation,
		Voice:     r.Voice,
		Config:    a.Config,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("plugin error: %s", resp.Error)
	}
	return nil
}

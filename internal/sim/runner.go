package sim

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/udisondev/scriptdev/internal/encounter"
)

// Script is the running encounter a Runner drives.
type Script interface {
	Tick(delta time.Duration)
	Dispatch(ev encounter.Event) bool
	Engage()
	Engaged() bool
	Done() bool
	PhaseName() string
	Definition() *encounter.Definition
}

// Optional hooks a script may expose for world notifications.
type (
	dier      interface{ Died() }
	evader    interface{ Evaded() }
	summoner  interface{ Summoned(ref encounter.Ref, entry int32) }
	waypoints interface{ WaypointReached() }
)

// Runner plays a scenario against a script in the simulated world.
type Runner struct {
	script  Script
	eng     *Engine
	actions []Action
	next    int
	elapsed time.Duration
	died    bool
}

// NewRunner binds script to eng. Actions must be sorted by time, as ParseScenario leaves
// them.
func NewRunner(script Script, eng *Engine, actions []Action) (*Runner, error) {
	s := &Scenario{Actions: actions}
	if err := s.Check(script.Definition()); err != nil {
		return nil, fmt.Errorf("scenario for %s: %w", script.Definition().Name, err)
	}
	return &Runner{script: script, eng: eng, actions: actions}, nil
}

// Elapsed is the simulated time played so far.
func (r *Runner) Elapsed() time.Duration { return r.elapsed }

// Done reports whether the script finished.
func (r *Runner) Done() bool { return r.script.Done() }

// Tick advances the world by delta: due scenario actions run first, then world
// notifications, then the script's own tick.
func (r *Runner) Tick(delta time.Duration) {
	r.elapsed += delta
	r.eng.Advance(delta, r.script.Engaged())

	for r.next < len(r.actions) && r.actions[r.next].At <= r.elapsed {
		r.apply(r.actions[r.next])
		r.next++
	}
	r.deliver()
	r.script.Tick(delta)
	r.deliver()

	if r.eng.Dead() && r.script.Engaged() && !r.died {
		r.died = true
		if d, ok := r.script.(dier); ok {
			d.Died()
		}
	}
}

// Dispatch forwards a host event to the script.
func (r *Runner) Dispatch(ev encounter.Event) bool { return r.script.Dispatch(ev) }

func (r *Runner) apply(a Action) {
	switch {
	case a.Engage:
		r.script.Engage()
	case a.Evade:
		if e, ok := r.script.(evader); ok {
			e.Evaded()
		}
	case a.Health != nil:
		r.eng.SetHealth(*a.Health)
	default:
		ev, err := a.Event(r.script.Definition())
		if err != nil || ev == nil {
			return
		}
		handled := r.script.Dispatch(ev)
		slog.Debug("scenario event", "event", ev.Key().Kind, "id", ev.Key().ID, "handled", handled, "at", r.elapsed)
	}
}

func (r *Runner) deliver() {
	for _, n := range r.eng.Drain() {
		switch n.Kind {
		case NoticeSpawned:
			if s, ok := r.script.(summoner); ok {
				s.Summoned(n.Ref, n.Entry)
			}
		case NoticeWaypoint:
			if w, ok := r.script.(waypoints); ok {
				w.WaypointReached()
			}
		case NoticeSignal:
			id, err := r.script.Definition().Signal(n.Signal)
			if err != nil {
				continue
			}
			r.script.Dispatch(encounter.Signal{ID: id, Sender: r.eng.Self(), Invoker: n.Ref})
		}
	}
}

// Run ticks the script with step until it finishes or d of simulated time passed.
// It reports whether the script finished.
func (r *Runner) Run(d, step time.Duration) bool {
	if step <= 0 {
		return r.script.Done()
	}
	for r.elapsed < d && !r.script.Done() {
		r.Tick(step)
	}
	return r.script.Done()
}

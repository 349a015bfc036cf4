package encounter

import (
	"fmt"
	"log/slog"
	"weak"
)

// Reaction is what a dispatched event does: queue a transition, or run an effect now.
type Reaction struct {
	to     Phase
	seq    SequenceID
	effect func(c *Controller, ev Event)
}

// Transition queues a transition to phase `to`, starting seq (NoSequence = the phase's
// entry sequence). The transition is applied at the start of the next Tick.
func Transition(to Phase, seq SequenceID) Reaction {
	return Reaction{to: to, seq: seq}
}

// Effect runs fn immediately from Dispatch. fn must not call Tick.
func Effect(fn func(c *Controller, ev Event)) Reaction {
	return Reaction{effect: fn}
}

type reactionKey struct {
	phase Phase // NoPhase = any phase
	key   EventKey
}

// Bridge routes host events into a controller. It holds the controller weakly and keeps
// no reactions of its own: effects are stored on the controller, so a bridge never keeps
// an encounter or the script wrapping it alive.
type Bridge struct {
	def  *Definition
	ctrl weak.Pointer[Controller]
}

func newBridge(def *Definition, c *Controller) *Bridge {
	return &Bridge{def: def, ctrl: weak.Make(c)}
}

// On registers r for key while in phase. A later registration for the same pair wins.
func (b *Bridge) On(phase Phase, key EventKey, r Reaction) error {
	if _, ok := b.def.PhaseDef(phase); !ok {
		return fmt.Errorf("%s: %w: %d", b.def.Name, ErrUnknownPhase, phase)
	}
	return b.register(phase, key, r)
}

// OnAny registers r for key in every phase without a more specific reaction.
func (b *Bridge) OnAny(key EventKey, r Reaction) error {
	return b.register(NoPhase, key, r)
}

func (b *Bridge) register(phase Phase, key EventKey, r Reaction) error {
	if key.Kind == KindSignal && key.ID != 0 && !b.def.HasSignal(SignalID(key.ID)) {
		return fmt.Errorf("%s: %w: %d", b.def.Name, ErrUnknownSignal, key.ID)
	}
	if r.effect == nil {
		if _, ok := b.def.PhaseDef(r.to); !ok {
			return fmt.Errorf("%s: reaction: %w: %d", b.def.Name, ErrUnknownPhase, r.to)
		}
		if r.seq != NoSequence {
			if _, ok := b.def.Sequence(r.seq); !ok {
				return fmt.Errorf("%s: reaction: %w: %q", b.def.Name, ErrUnknownSequence, r.seq)
			}
		}
	}
	c := b.ctrl.Value()
	if c == nil {
		return fmt.Errorf("%s: %w", b.def.Name, ErrControllerReleased)
	}
	c.reactions[reactionKey{phase: phase, key: key}] = r
	return nil
}

func (c *Controller) reaction(phase Phase, key EventKey) (Reaction, bool) {
	kindOnly := EventKey{Kind: key.Kind}
	for _, k := range [...]reactionKey{
		{phase, key},
		{phase, kindOnly},
		{NoPhase, key},
		{NoPhase, kindOnly},
	} {
		if r, ok := c.reactions[k]; ok {
			return r, true
		}
	}
	return Reaction{}, false
}

// Dispatch routes ev through the reaction registered for the current phase. Reports
// whether a reaction ran or was queued. Undeclared signals, unmapped events, finished
// encounters and released controllers are ignored.
func (b *Bridge) Dispatch(ev Event) bool {
	c := b.ctrl.Value()
	if c == nil {
		return false
	}
	key := ev.Key()
	if key.Kind == KindSignal && !b.def.HasSignal(SignalID(key.ID)) {
		if IsDebugEnabled() {
			slog.Debug("undeclared signal ignored", "encounter", b.def.Name, "signal", key.ID)
		}
		return false
	}
	if c.ctx.Done {
		return false
	}

	r, ok := c.reaction(c.ctx.Phase, key)
	if !ok {
		return false
	}
	if r.effect != nil {
		r.effect(c, ev)
		return true
	}
	c.QueueTransition(r.to, r.seq)
	return true
}

package encounter

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// pcgIncrement is the second PCG word; the first comes from Options.Seed.
const pcgIncrement = 0x9e3779b97f4a7c15

// Options binds script code to a Definition.
type Options struct {
	Behaviors map[Phase]Behavior
	// Abilities overrides how a cooldown's ability is performed. Without a handler the
	// ability is cast on CooldownDef.Target.
	Abilities map[AbilityID]AbilityHandler
	Hooks     Hooks
	// Seed makes cooldown jitter reproducible. Reset reseeds from it.
	Seed uint64
}

type pendingTransition struct {
	to  Phase
	seq SequenceID
}

// Controller drives one running encounter. Tick and Dispatch must be called serially.
type Controller struct {
	def       *Definition
	eng       Engine
	behaviors map[Phase]Behavior
	abilities map[AbilityID]AbilityHandler
	hooks     Hooks
	seed      uint64

	src       *rand.PCG
	rng       *rand.Rand
	ctx       *Context
	seq       *Sequencer
	cooldowns *CooldownSet
	bridge    *Bridge
	reactions map[reactionKey]Reaction

	pending []pendingTransition
	clock   bool   // phase clock running
	epoch   uint64 // bumped on every phase change
}

// NewController binds opts to def and resets the encounter to its initial phase.
func NewController(def *Definition, eng Engine, opts Options) (*Controller, error) {
	if def == nil {
		return nil, ErrNilDefinition
	}
	if eng == nil {
		return nil, ErrNilEngine
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	for p := range opts.Behaviors {
		if _, ok := def.PhaseDef(p); !ok {
			return nil, fmt.Errorf("%s: behavior: %w: %d", def.Name, ErrUnknownPhase, p)
		}
	}
	for a := range opts.Abilities {
		if _, ok := def.Cooldown(a); !ok {
			return nil, fmt.Errorf("%s: handler: %w: %d", def.Name, ErrUnknownAbility, a)
		}
	}

	src := rand.NewPCG(opts.Seed, pcgIncrement)
	rng := rand.New(src)

	c := &Controller{
		def:       def,
		eng:       eng,
		behaviors: opts.Behaviors,
		abilities: opts.Abilities,
		hooks:     opts.Hooks,
		seed:      opts.Seed,
		src:       src,
		rng:       rng,
		ctx:       newContext(),
		seq:       NewSequencer(def.Sequences),
		cooldowns: NewCooldownSet(def.Cooldowns, rng),
		reactions: make(map[reactionKey]Reaction),
	}
	c.bridge = newBridge(def, c)
	c.Reset()
	return c, nil
}

// Definition returns the definition the controller runs.
func (c *Controller) Definition() *Definition { return c.def }

// Engine returns the host engine.
func (c *Controller) Engine() Engine { return c.eng }

// Context returns the mutable encounter state.
func (c *Controller) Context() *Context { return c.ctx }

// Phase returns the active phase.
func (c *Controller) Phase() Phase { return c.ctx.Phase }

// PhaseName returns the name of the active phase.
func (c *Controller) PhaseName() string { return c.def.PhaseName(c.ctx.Phase) }

// Cooldowns returns the ability timers.
func (c *Controller) Cooldowns() *CooldownSet { return c.cooldowns }

// Sequencer returns the step sequencer.
func (c *Controller) Sequencer() *Sequencer { return c.seq }

// Events returns the event bridge feeding this controller.
func (c *Controller) Events() *Bridge { return c.bridge }

// Dispatch is shorthand for Events().Dispatch.
func (c *Controller) Dispatch(ev Event) bool { return c.bridge.Dispatch(ev) }

// Rand returns the controller's seeded random source.
func (c *Controller) Rand() *rand.Rand { return c.rng }

// Engaged reports whether the fight is running.
func (c *Controller) Engaged() bool { return c.ctx.Engaged }

// Done reports whether the encounter completed.
func (c *Controller) Done() bool { return c.ctx.Done }

// Reset discards all runtime state and returns to the initial phase, exactly as a fresh
// controller would be. The initial phase's entry sequence is started.
func (c *Controller) Reset() {
	c.seq.Abort()
	c.pending = c.pending[:0]
	c.ctx.reset()
	c.src.Seed(c.seed, pcgIncrement)
	c.cooldowns.Reset()
	c.epoch = 0

	c.ctx.Phase = c.def.Initial
	pd, _ := c.def.PhaseDef(c.def.Initial)
	c.startClock(pd.Duration)
	if pd.Enter != NoSequence {
		_ = c.seq.Start(pd.Enter)
	}

	if c.hooks.OnReset != nil {
		c.hooks.OnReset(c)
	}
	slog.Debug("encounter reset", "encounter", c.def.Name, "phase", pd.Name)
}

// Engage starts the fight: progress becomes InProgress and the current phase is entered.
func (c *Controller) Engage() {
	if c.ctx.Engaged || c.ctx.Done {
		return
	}
	c.ctx.Engaged = true
	c.setOutcome(OutcomeInProgress)
	if c.hooks.OnEngage != nil {
		c.hooks.OnEngage(c)
	}
	if b := c.behaviors[c.ctx.Phase]; b != nil {
		b.OnEnter(c)
	}
	slog.Info("encounter engaged", "encounter", c.def.Name, "phase", c.PhaseName())
}

// Complete marks the encounter done. Further ticks are no-ops.
func (c *Controller) Complete() {
	if c.ctx.Done {
		return
	}
	c.ctx.Done = true
	c.seq.Abort()
	c.pending = c.pending[:0]
	c.setOutcome(OutcomeDone)
	if c.hooks.OnComplete != nil {
		c.hooks.OnComplete(c)
	}
	slog.Info("encounter completed", "encounter", c.def.Name, "phase", c.PhaseName(),
		"elapsed", c.ctx.Elapsed)
}

// Fail records a wipe and resets the encounter.
func (c *Controller) Fail() {
	if c.ctx.Done {
		return
	}
	c.setOutcome(OutcomeFailed)
	if c.hooks.OnFail != nil {
		c.hooks.OnFail(c)
	}
	slog.Info("encounter failed", "encounter", c.def.Name, "phase", c.PhaseName(),
		"elapsed", c.ctx.Elapsed)
	c.Reset()
}

// SetOutcome publishes an outcome without changing the lifecycle (e.g. Special).
func (c *Controller) SetOutcome(o Outcome) { c.setOutcome(o) }

func (c *Controller) setOutcome(o Outcome) {
	c.ctx.Outcome = o
	if c.def.ProgressKey != 0 {
		c.eng.SetProgress(c.def.ProgressKey, int32(o))
	}
}

// Tick advances the encounter by delta.
func (c *Controller) Tick(delta time.Duration) {
	if c.ctx.Done {
		return
	}
	c.applyPending()

	if finished := c.seq.Advance(delta, c.runStep); finished != nil {
		slog.Debug("sequence finished", "encounter", c.def.Name, "sequence", finished.ID)
		if finished.Then != NoPhase && !c.ctx.Done {
			if err := c.TransitionTo(finished.Then); err != nil {
				slog.Error("sequence follow-up transition", "encounter", c.def.Name, "error", err)
			}
		}
	}

	if !c.ctx.Engaged || c.ctx.Done {
		return
	}
	c.ctx.Elapsed += delta
	c.ctx.PhaseElapsed += delta
	epoch := c.epoch

	c.cooldowns.Tick(delta, c.ctx.Phase, c.attempt)
	if c.ctx.Done {
		return
	}

	if b := c.behaviors[c.ctx.Phase]; b != nil {
		b.OnTick(c, delta)
	}
	if c.ctx.Done {
		return
	}

	if c.checkExits() || c.epoch != epoch {
		return
	}
	c.runClock(delta)
}

func (c *Controller) checkExits() bool {
	pd, ok := c.def.PhaseDef(c.ctx.Phase)
	if !ok || len(pd.Exits) == 0 {
		return false
	}
	snap := c.ctx.snapshot(c.def, c.eng.HealthFraction())
	for _, rule := range pd.Exits {
		ok, err := rule.When.Test(snap)
		if err != nil {
			slog.Error("exit condition", "encounter", c.def.Name, "phase", pd.Name, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if err := c.TransitionWith(rule.To, rule.Sequence); err != nil {
			slog.Error("exit transition", "encounter", c.def.Name, "phase", pd.Name, "error", err)
			continue
		}
		return true
	}
	return false
}

func (c *Controller) runClock(delta time.Duration) {
	if !c.clock {
		return
	}
	c.ctx.PhaseRemaining -= delta
	if c.ctx.PhaseRemaining > 0 {
		return
	}
	c.ctx.PhaseRemaining = 0
	c.clock = false

	pd, _ := c.def.PhaseDef(c.ctx.Phase)
	if pd.Next == NoPhase {
		return
	}
	if err := c.TransitionTo(pd.Next); err != nil {
		slog.Error("phase clock transition", "encounter", c.def.Name, "phase", pd.Name, "error", err)
	}
}

func (c *Controller) startClock(d time.Duration) {
	c.ctx.PhaseRemaining = d
	c.clock = d > 0
}

// PhaseRemaining returns the time left on the phase clock.
func (c *Controller) PhaseRemaining() time.Duration { return c.ctx.PhaseRemaining }

// SetPhaseRemaining restarts the phase clock with d. When it runs out the phase's Next
// is entered, if any.
func (c *Controller) SetPhaseRemaining(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.startClock(d)
}

// TransitionTo enters phase p. Entering the current phase is a no-op.
func (c *Controller) TransitionTo(p Phase) error {
	return c.TransitionWith(p, NoSequence)
}

// TransitionWith enters phase p and starts seq instead of p's entry sequence.
// Entering the current phase is a no-op.
func (c *Controller) TransitionWith(p Phase, seq SequenceID) error {
	if p == c.ctx.Phase {
		return nil
	}
	pd, ok := c.def.PhaseDef(p)
	if !ok {
		return fmt.Errorf("%s: %w: %d", c.def.Name, ErrUnknownPhase, p)
	}
	if seq == NoSequence {
		seq = pd.Enter
	}
	if seq != NoSequence {
		if _, ok := c.def.Sequence(seq); !ok {
			return fmt.Errorf("%s: %w: %q", c.def.Name, ErrUnknownSequence, seq)
		}
	}

	from := c.ctx.Phase
	if b := c.behaviors[from]; b != nil {
		b.OnExit(c)
	}

	c.ctx.Phase = p
	c.ctx.PhaseElapsed = 0
	c.startClock(pd.Duration)
	c.epoch++
	c.cooldowns.ResetPhase(p)

	slog.Debug("phase transition", "encounter", c.def.Name,
		"from", c.def.PhaseName(from), "to", pd.Name, "sequence", seq)

	if b := c.behaviors[p]; b != nil {
		b.OnEnter(c)
	}
	// OnEnter may have moved on already.
	if seq != NoSequence && c.ctx.Phase == p {
		return c.seq.Start(seq)
	}
	return nil
}

// QueueTransition defers TransitionWith(to, seq) to the start of the next Tick. Event
// effects use it to change phase without re-entering the controller mid-dispatch.
func (c *Controller) QueueTransition(to Phase, seq SequenceID) {
	c.pending = append(c.pending, pendingTransition{to: to, seq: seq})
}

func (c *Controller) applyPending() {
	if len(c.pending) == 0 {
		return
	}
	queued := c.pending
	c.pending = nil
	for _, t := range queued {
		if err := c.TransitionWith(t.to, t.seq); err != nil {
			slog.Error("queued transition", "encounter", c.def.Name, "error", err)
		}
	}
}

// StartSequence plays id, aborting whatever sequence was active.
func (c *Controller) StartSequence(id SequenceID) error {
	return c.seq.Start(id)
}

func (c *Controller) attempt(def CooldownDef) bool {
	if h := c.abilities[def.Ability]; h != nil {
		return h(c, def)
	}
	role := def.Target
	if role == TargetNone {
		role = TargetVictim
	}
	target, ok := c.Resolve(role)
	if !ok {
		return false
	}
	return c.eng.TryCast(def.Ability, target)
}

// Resolve maps a target role to a unit. "" resolves to NoRef (let the engine pick).
func (c *Controller) Resolve(role string) (Ref, bool) {
	switch role {
	case TargetNone:
		return NoRef, true
	case TargetSelf:
		return c.eng.Self(), true
	case TargetVictim:
		return c.eng.SelectTarget(TargetCriteria{Mode: ModeVictim})
	case TargetRandom:
		return c.eng.SelectTarget(TargetCriteria{Mode: ModeRandom})
	default:
		return c.ctx.Helper(role)
	}
}

func (c *Controller) runStep(step Step) {
	target, ok := c.Resolve(step.Target)
	if !ok {
		if IsDebugEnabled() {
			slog.Debug("step skipped, target missing", "encounter", c.def.Name,
				"action", step.Action, "target", step.Target)
		}
		return
	}

	switch step.Action {
	case ActionSay:
		if step.Target == TargetNone {
			target = c.eng.Self()
		}
		c.eng.Say(LineID(step.ID), target)
	case ActionBroadcast:
		c.eng.Broadcast(LineID(step.ID), c.eng.Self(), target)
	case ActionCast:
		if !c.eng.TryCast(AbilityID(step.ID), target) && IsDebugEnabled() {
			slog.Debug("step cast failed", "encounter", c.def.Name, "ability", step.ID)
		}
	case ActionEnvironment:
		c.eng.SetEnvironmentState(step.Zone, step.ID, step.Fade)
	case ActionCounter:
		c.eng.SetWorldCounter(step.ID, step.Value)
	case ActionTransition:
		if err := c.TransitionTo(step.Phase); err != nil {
			slog.Error("step transition", "encounter", c.def.Name, "error", err)
		}
	case ActionHook:
		if c.hooks.OnStep != nil {
			c.hooks.OnStep(c, step)
		}
	}
}

// Spawn summons a helper and tracks it under role.
func (c *Controller) Spawn(role string, template int32, pos Position, flags SpawnFlags) (Ref, bool) {
	ref, ok := c.eng.Spawn(template, pos, flags)
	if !ok {
		if IsDebugEnabled() {
			slog.Debug("spawn failed", "encounter", c.def.Name, "role", role, "template", template)
		}
		return NoRef, false
	}
	c.ctx.AddHelper(role, ref)
	return ref, true
}

// Helper returns the first helper tracked under role.
func (c *Controller) Helper(role string) (Ref, bool) { return c.ctx.Helper(role) }

// Helpers returns the helpers tracked under role.
func (c *Controller) Helpers(role string) []Ref { return c.ctx.Helpers(role) }

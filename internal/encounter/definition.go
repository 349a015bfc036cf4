package encounter

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// SequenceID names a step sequence within one definition.
type SequenceID string

// NoSequence means "start nothing".
const NoSequence SequenceID = ""

// SignalID identifies a custom signal declared by one encounter definition.
type SignalID int32

// Target roles understood by steps and Controller.Resolve.
const (
	TargetNone   = ""
	TargetSelf   = "self"
	TargetVictim = "victim"
	TargetRandom = "random"
)

// StepAction is the kind of work a Step performs.
type StepAction uint8

const (
	ActionSay         StepAction = iota + 1 // Messenger.Say(ID, Target)
	ActionBroadcast                         // Messenger.Broadcast(ID, self, Target)
	ActionCast                              // Caster.TryCast(ID, Target)
	ActionEnvironment                       // World.SetEnvironmentState(Zone, ID, Fade)
	ActionCounter                           // World.SetWorldCounter(ID, Value)
	ActionTransition                        // Controller.TransitionTo(Phase)
	ActionHook                              // Hooks.OnStep, script specific, keyed by Tag
)

var stepActionNames = map[StepAction]string{
	ActionSay:         "say",
	ActionBroadcast:   "broadcast",
	ActionCast:        "cast",
	ActionEnvironment: "environment",
	ActionCounter:     "counter",
	ActionTransition:  "transition",
	ActionHook:        "hook",
}

// String returns the action name used in definition files.
func (a StepAction) String() string {
	if s, ok := stepActionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// ParseStepAction converts a definition file name into a StepAction.
func ParseStepAction(s string) (StepAction, error) {
	for a, name := range stepActionNames {
		if name == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Step is one entry of a Sequence. Delay counts from the completion of the previous
// step (from Start for the first one).
type Step struct {
	Action StepAction
	ID     int32  // line, ability, environment state or world counter
	Value  int32  // world counter value
	Target string // target role: self, victim, random or a helper role
	Zone   int32
	Fade   time.Duration
	Phase  Phase
	Tag    string
	Delay  time.Duration
}

// Sequence is an immutable ordered step table.
type Sequence struct {
	ID    SequenceID
	Steps []Step
	Then  Phase // entered after the last step fired (NoPhase = stay)
}

// Duration is the sum of all step delays.
func (s *Sequence) Duration() time.Duration {
	var total time.Duration
	for _, st := range s.Steps {
		total += st.Delay
	}
	return total
}

// ExitRule leaves the phase when When holds.
type ExitRule struct {
	When     Condition
	To       Phase
	Sequence SequenceID // started on transition; NoSequence uses the target phase entry sequence
}

// PhaseDef describes one phase.
type PhaseDef struct {
	ID       Phase
	Name     string
	Duration time.Duration // phase clock; 0 = untimed
	Next     Phase         // entered when the clock runs out
	Enter    SequenceID    // started when the phase is entered
	Exits    []ExitRule
}

// CooldownDef describes one recurring ability timer.
type CooldownDef struct {
	Name    string
	Ability AbilityID
	Initial time.Duration // value after Reset / phase entry
	Low     time.Duration // steady-state reset range, inclusive
	High    time.Duration
	Phases  []Phase // phases the timer ticks in; empty = every phase
	OneShot bool    // disarmed after the first success until Reset
	Target  string  // target role of the default cast; "" = victim
}

// InPhase reports whether the timer ticks in p.
func (d *CooldownDef) InPhase(p Phase) bool {
	if len(d.Phases) == 0 {
		return true
	}
	for _, q := range d.Phases {
		if q == p {
			return true
		}
	}
	return false
}

// Scoped reports whether the timer is restricted to a subset of phases.
func (d *CooldownDef) Scoped() bool { return len(d.Phases) > 0 }

// StartsIn reports whether p is the first phase the timer runs in.
func (d *CooldownDef) StartsIn(p Phase) bool { return len(d.Phases) > 0 && d.Phases[0] == p }

// Definition is the immutable description of an encounter. One definition is shared
// by every controller running that encounter.
type Definition struct {
	Name        string
	ProgressKey int32 // instance data key receiving Outcome values
	Initial     Phase
	Phases      []PhaseDef // Phases[i].ID == Phase(i+1)
	Cooldowns   []CooldownDef
	Sequences   map[SequenceID]*Sequence
	Signals     map[string]SignalID
}

// PhaseDef returns the definition of p.
func (d *Definition) PhaseDef(p Phase) (*PhaseDef, bool) {
	if p == NoPhase || int(p) > len(d.Phases) {
		return nil, false
	}
	return &d.Phases[p-1], true
}

// PhaseByName resolves a phase name.
func (d *Definition) PhaseByName(name string) (Phase, error) {
	for i := range d.Phases {
		if d.Phases[i].Name == name {
			return d.Phases[i].ID, nil
		}
	}
	return NoPhase, fmt.Errorf("%w: %q in %s", ErrUnknownPhase, name, d.Name)
}

// PhaseName returns the name of p, or "none".
func (d *Definition) PhaseName(p Phase) string {
	if pd, ok := d.PhaseDef(p); ok {
		return pd.Name
	}
	return "none"
}

// Signal resolves a declared signal name.
func (d *Definition) Signal(name string) (SignalID, error) {
	id, ok := d.Signals[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q in %s", ErrUnknownSignal, name, d.Name)
	}
	return id, nil
}

// HasSignal reports whether id was declared.
func (d *Definition) HasSignal(id SignalID) bool {
	for _, s := range d.Signals {
		if s == id {
			return true
		}
	}
	return false
}

// Sequence returns the sequence with the given id.
func (d *Definition) Sequence(id SequenceID) (*Sequence, bool) {
	s, ok := d.Sequences[id]
	return s, ok
}

// Cooldown returns the timer definition for ability.
func (d *Definition) Cooldown(ability AbilityID) (*CooldownDef, bool) {
	for i := range d.Cooldowns {
		if d.Cooldowns[i].Ability == ability {
			return &d.Cooldowns[i], true
		}
	}
	return nil, false
}

// Validate checks internal consistency. All problems are reported at once.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return ErrEmptyName
	}
	if len(d.Phases) == 0 {
		return fmt.Errorf("%s: %w", d.Name, ErrNoPhases)
	}
	if len(d.Phases) > math.MaxUint8 {
		return fmt.Errorf("%s: %w: %d", d.Name, ErrTooManyPhases, len(d.Phases))
	}

	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(d.Name+": "+format, args...))
	}

	validPhase := func(p Phase) bool {
		_, ok := d.PhaseDef(p)
		return ok
	}
	validSeq := func(id SequenceID) bool {
		if id == NoSequence {
			return true
		}
		_, ok := d.Sequences[id]
		return ok
	}

	if !validPhase(d.Initial) {
		add("initial: %w: %d", ErrUnknownPhase, d.Initial)
	}

	names := make(map[string]struct{}, len(d.Phases))
	for i := range d.Phases {
		pd := &d.Phases[i]
		if pd.ID != Phase(i+1) {
			add("phase %q: %w: id %d at position %d", pd.Name, ErrUnknownPhase, pd.ID, i+1)
		}
		if _, dup := names[pd.Name]; dup || pd.Name == "" {
			add("phase %q: duplicate or empty name", pd.Name)
		}
		names[pd.Name] = struct{}{}

		if pd.Duration < 0 {
			add("phase %q: %w", pd.Name, ErrNegativeDelay)
		}
		if pd.Next != NoPhase && !validPhase(pd.Next) {
			add("phase %q next: %w: %d", pd.Name, ErrUnknownPhase, pd.Next)
		}
		if !validSeq(pd.Enter) {
			add("phase %q enter: %w: %q", pd.Name, ErrUnknownSequence, pd.Enter)
		}
		for j, r := range pd.Exits {
			if r.When == nil {
				add("phase %q exit %d: %w", pd.Name, j, ErrMissingCondition)
			}
			if !validPhase(r.To) {
				add("phase %q exit %d: %w: %d", pd.Name, j, ErrUnknownPhase, r.To)
			}
			if !validSeq(r.Sequence) {
				add("phase %q exit %d: %w: %q", pd.Name, j, ErrUnknownSequence, r.Sequence)
			}
		}
	}

	abilities := make(map[AbilityID]struct{}, len(d.Cooldowns))
	for _, cd := range d.Cooldowns {
		if _, dup := abilities[cd.Ability]; dup {
			add("cooldown %q: %w: %d", cd.Name, ErrDuplicateAbility, cd.Ability)
		}
		abilities[cd.Ability] = struct{}{}

		if cd.Initial < 0 || cd.Low < 0 || cd.High < 0 {
			add("cooldown %q: %w", cd.Name, ErrNegativeDelay)
		}
		if cd.Low > cd.High {
			add("cooldown %q: %w: %s > %s", cd.Name, ErrInvalidRange, cd.Low, cd.High)
		}
		for _, p := range cd.Phases {
			if !validPhase(p) {
				add("cooldown %q: %w: %d", cd.Name, ErrUnknownPhase, p)
			}
		}
	}

	for id, seq := range d.Sequences {
		if seq == nil || len(seq.Steps) == 0 {
			add("sequence %q: %w", id, ErrEmptySequence)
			continue
		}
		if seq.ID != id {
			add("sequence %q: registered under %q", seq.ID, id)
		}
		if seq.Then != NoPhase && !validPhase(seq.Then) {
			add("sequence %q then: %w: %d", id, ErrUnknownPhase, seq.Then)
		}
		for j, st := range seq.Steps {
			if st.Delay < 0 || st.Fade < 0 {
				add("sequence %q step %d: %w", id, j, ErrNegativeDelay)
			}
			if _, ok := stepActionNames[st.Action]; !ok {
				add("sequence %q step %d: %w: %d", id, j, ErrUnknownAction, st.Action)
			}
			if st.Action == ActionTransition && !validPhase(st.Phase) {
				add("sequence %q step %d: %w: %d", id, j, ErrUnknownPhase, st.Phase)
			}
		}
	}

	seen := make(map[SignalID]string, len(d.Signals))
	for name, id := range d.Signals {
		if id == 0 {
			add("signal %q: zero id", name)
		}
		if other, dup := seen[id]; dup {
			add("signal %q: id %d already used by %q", name, id, other)
		}
		seen[id] = name
	}

	return errors.Join(errs...)
}

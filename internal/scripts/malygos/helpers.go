package malygos

import (
	"github.com/udisondev/scriptdev/internal/encounter"
	"github.com/udisondev/scriptdev/internal/spell"
)

// SparkHost is a power spark as seen by its script.
type SparkHost interface {
	Self() encounter.Ref
	Say(line encounter.LineID, speaker encounter.Ref)
	TryCast(ability encounter.AbilityID, target encounter.Ref) bool
	Follow(target encounter.Ref)
	StopMoving()
	Despawn()
	InMeleeReach(target encounter.Ref) bool
	// Malygos returns the boss of the spark's instance.
	Malygos() (encounter.Ref, bool)
}

// Spark drives a power spark: it follows Malygos and empowers him on contact.
type Spark struct {
	host SparkHost
}

// NewSpark announces the spark and starts following Malygos.
func NewSpark(host SparkHost) *Spark {
	s := &Spark{host: host}
	host.Say(SayEmoteSpark, host.Self())
	s.Reset()
	return s
}

// Reset resumes following Malygos and restores the visual.
func (s *Spark) Reset() {
	if boss, ok := s.host.Malygos(); ok {
		s.host.Follow(boss)
	}
	s.host.TryCast(SpellPowerSparkVisual, s.host.Self())
}

// Sees is called when who comes into line of sight. Reaching Malygos consumes the spark.
func (s *Spark) Sees(who encounter.Ref) {
	boss, ok := s.host.Malygos()
	if !ok || who != boss || !s.host.InMeleeReach(who) {
		return
	}
	s.host.TryCast(SpellPowerSparkMalygos, s.host.Self())
	s.host.Despawn()
}

// VortexStarted stops the spark while Malygos channels Vortex.
func (s *Spark) VortexStarted() { s.host.StopMoving() }

// VortexEnded resumes following sender.
func (s *Spark) VortexEnded(sender encounter.Ref) { s.host.Follow(sender) }

// Died leaves the empowering buff to the players around.
func (s *Spark) Died() { s.host.TryCast(SpellPowerSparkPlayers, s.host.Self()) }

// IrisWorld is what the focusing iris needs from the instance.
type IrisWorld interface {
	encounter.Progress
	IsPlayer(u encounter.Ref) bool
	// PullMalygos interrupts Malygos, sends him down next to the large trigger and puts
	// the zone in combat. False when either creature is missing.
	PullMalygos() bool
}

// FocusingIris starts the fight when a player uses the iris. It refuses while the
// encounter runs or after it was won.
func FocusingIris(w IrisWorld, def *encounter.Definition, user encounter.Ref) bool {
	if !w.IsPlayer(user) {
		return false
	}
	switch encounter.Outcome(w.GetProgress(def.ProgressKey)) {
	case encounter.OutcomeInProgress, encounter.OutcomeDone:
		return false
	}
	return w.PullMalygos()
}

// SpellWorld is what the Malygos spell scripts need from the host.
type SpellWorld interface {
	IsPlayer(u encounter.Ref) bool
	Cast(caster, target encounter.Ref, id encounter.AbilityID, flags spell.Trigger) bool
	// ArcaneStormHit tells boss that its storm master spell hit target.
	ArcaneStormHit(boss, target encounter.Ref)
}

// RideRedDragonBuddy makes the player mount the red dragon that offered the ride.
type RideRedDragonBuddy struct {
	World SpellWorld
}

func (s RideRedDragonBuddy) OnEffect(c spell.Cast, eff spell.Effect) {
	if eff != spell.Effect0 || c.Caster == encounter.NoRef || !s.World.IsPlayer(c.Target) {
		return
	}
	s.World.Cast(c.Target, c.Caster, SpellRideRedDragon, spell.TriggerOld)
}

// ArcaneBomb knocks back and overloads every unit the bomb hits.
type ArcaneBomb struct {
	World SpellWorld
}

func (s ArcaneBomb) OnEffect(c spell.Cast, eff spell.Effect) {
	if eff != spell.Effect0 || c.Target == encounter.NoRef {
		return
	}
	s.World.Cast(c.Target, c.Target, SpellArcaneBombKnockback, spell.TriggerOld)
	s.World.Cast(c.Target, c.Target, SpellArcaneOverload, spell.TriggerOld)
}

// ArcaneStorm reports every storm master hit back to the boss, which picks the storm
// spell for the current phase.
type ArcaneStorm struct {
	World SpellWorld
}

func (s ArcaneStorm) OnEffect(c spell.Cast, eff spell.Effect) {
	if eff != spell.Effect0 || c.Target == encounter.NoRef {
		return
	}
	s.World.ArcaneStormHit(c.Caster, c.Target)
}

// RegisterSpells binds the Malygos spell scripts to their names.
func RegisterSpells(r *spell.Registry, w SpellWorld) error {
	for name, s := range map[string]any{
		"spell_ride_red_dragon_buddy": RideRedDragonBuddy{World: w},
		"spell_arcane_bomb":           ArcaneBomb{World: w},
		"spell_arcane_storm":          ArcaneStorm{World: w},
	} {
		if err := r.Register(name, s); err != nil {
			return err
		}
	}
	return nil
}

// StormSignal builds the arcane_storm signal the boss reacts to.
func StormSignal(def *encounter.Definition, boss, target encounter.Ref) (encounter.Signal, error) {
	id, err := def.Signal("arcane_storm")
	if err != nil {
		return encounter.Signal{}, err
	}
	return encounter.Signal{ID: id, Sender: boss, Invoker: target}, nil
}

// EndDiscsSignal builds the end_discs signal sent when the last nexus lord dies.
func EndDiscsSignal(def *encounter.Definition) (encounter.Signal, error) {
	id, err := def.Signal("end_discs")
	if err != nil {
		return encounter.Signal{}, err
	}
	return encounter.Signal{ID: id}, nil
}

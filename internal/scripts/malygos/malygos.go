// Package malygos implements the Malygos encounter of the Eye of Eternity: the floor
// fight, the hover disc phase and the dragon phase, plus the power spark helper, the
// focusing iris that starts the fight and the encounter's spell scripts.
package malygos

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/udisondev/scriptdev/internal/encounter"
)

// DefinitionName is the encounter definition the boss runs.
const DefinitionName = "boss_malygos"

// Text lines.
const (
	SayIntro1      encounter.LineID = -1616000
	SayAggro       encounter.LineID = -1616005
	SaySparkBuff   encounter.LineID = -1616007
	SaySlayFloor   encounter.LineID = -1616008 // three lines
	SayDeepBreath  encounter.LineID = -1616013
	SayShell       encounter.LineID = -1616014
	SaySlayDiscs   encounter.LineID = -1616015 // three lines
	SaySlayDragons encounter.LineID = -1616021 // three lines
	SaySurge       encounter.LineID = -1616024
	SayStaticField encounter.LineID = -1616025 // three lines
	SayDeath       encounter.LineID = -1616028
	SayEmoteSpark  encounter.LineID = -1616033
	SayEmoteBreath encounter.LineID = -1616034
)

const (
	introLines       = 5
	slayLines        = 3
	staticFieldLines = 3
)

// Spells.
const (
	SpellArcaneBreath         encounter.AbilityID = 56272
	SpellArcaneBreathHeroic   encounter.AbilityID = 60072
	SpellSummonArcaneBomb     encounter.AbilityID = 56429
	SpellArcaneBomb           encounter.AbilityID = 56430
	SpellArcaneBombKnockback  encounter.AbilityID = 56431
	SpellArcaneOverload       encounter.AbilityID = 56432
	SpellSurgeOfPowerPulse    encounter.AbilityID = 56505
	SpellArcaneStormMaster    encounter.AbilityID = 57473
	SpellArcaneStorm          encounter.AbilityID = 61693
	SpellArcaneStormHeroic    encounter.AbilityID = 61694
	SpellArcaneStormVehicle   encounter.AbilityID = 57459
	SpellDestroyPlatformBoom  encounter.AbilityID = 59084
	SpellDestroyPlatformEvent encounter.AbilityID = 59099
	SpellStaticFieldSummon    encounter.AbilityID = 57430
	SpellStaticField          encounter.AbilityID = 57428
	SpellSurgeOfPower         encounter.AbilityID = 57407
	SpellSurgeOfPowerHeroic   encounter.AbilityID = 60936
	SpellSurgeOfPowerWarning  encounter.AbilityID = 60939
	SpellPowerSparkMalygos    encounter.AbilityID = 56152
	SpellPowerSparkPlayers    encounter.AbilityID = 55852
	SpellPowerSparkVisual     encounter.AbilityID = 55845
	SpellRideRedDragon        encounter.AbilityID = 56071
)

// Creature entries.
const (
	NpcPowerSpark     int32 = 30084
	NpcHoverDiskLord  int32 = 30234
	NpcHoverDiskScion int32 = 30248
	NpcArcaneOverload int32 = 30282
	NpcStaticField    int32 = 30592
)

// Zone lights.
const (
	ZoneEyeOfEternity int32 = 4500
	LightDefault      int32 = 1773
)

// Helper roles.
const (
	RoleLordDisk  = "lord_disk"
	RoleScionDisk = "scion_disk"
)

var centerPos = encounter.Position{X: 754.395, Y: 1301.27, Z: 266.253}

var lordDisks = [...]struct {
	pos  encounter.Position
	path uint8
}{
	{encounter.Position{X: 753.9635, Y: 1319.003, Z: 285.052}, 0},
	{encounter.Position{X: 773.4768, Y: 1301.474, Z: 266.582}, 1},
	{encounter.Position{X: 778.6023, Y: 1301.635, Z: 285.671}, 2}, // heroic
	{encounter.Position{X: 730.3984, Y: 1301.644, Z: 285.091}, 3}, // heroic
}

// Host is Malygos as seen by his script.
type Host interface {
	encounter.Engine
	Heroic() bool
	SetAttackable(on bool)
	SetFlying(on bool)
	MovePoint(pos encounter.Position)
	// CastAs makes caster cast ability on target, triggered.
	CastAs(caster encounter.Ref, ability encounter.AbilityID, target encounter.Ref) bool
	// AlexstraszaTrigger returns the invisible trigger that destroys the platform.
	AlexstraszaTrigger() (encounter.Ref, bool)
	DestroyPlatform()
}

type phases struct {
	floor, transition1, discs, transition2, dragons encounter.Phase
}

// Boss is the running Malygos encounter.
type Boss struct {
	*encounter.Controller

	host Host
	ph   phases

	stormTargets  int
	staticTargets int
	lordDisks     int
	scionDisks    int
}

// New builds the Malygos controller on def. The fight starts with Engage.
func New(def *encounter.Definition, host Host, seed uint64) (*Boss, error) {
	if def.Name != DefinitionName {
		return nil, fmt.Errorf("%s: definition %q", DefinitionName, def.Name)
	}
	var ph phases
	var errs []error
	for name, p := range map[string]*encounter.Phase{
		"floor": &ph.floor, "transition_1": &ph.transition1, "discs": &ph.discs,
		"transition_2": &ph.transition2, "dragons": &ph.dragons,
	} {
		id, err := def.PhaseByName(name)
		errs = append(errs, err)
		*p = id
	}
	endDiscs, err := def.Signal("end_discs")
	errs = append(errs, err)
	storm, err := def.Signal("arcane_storm")
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	b := &Boss{host: host, ph: ph, stormTargets: 5, staticTargets: 1, lordDisks: 2, scionDisks: 4}
	if host.Heroic() {
		b.stormTargets, b.staticTargets, b.lordDisks, b.scionDisks = 15, 3, 4, 8
	}

	c, err := encounter.NewController(def, host, encounter.Options{
		Behaviors: map[encounter.Phase]encounter.Behavior{
			ph.floor:   encounter.BehaviorFuncs{Exit: b.liftOff},
			ph.discs:   encounter.BehaviorFuncs{Enter: b.enterDiscs},
			ph.dragons: encounter.BehaviorFuncs{Enter: b.enterDragons},
		},
		Abilities: map[encounter.AbilityID]encounter.AbilityHandler{
			SpellArcaneBreath:      b.arcaneBreath,
			SpellSummonArcaneBomb:  b.arcaneOverload,
			SpellSurgeOfPowerPulse: b.arcanePulse,
			SpellArcaneStormMaster: b.arcaneStorm,
			SpellStaticFieldSummon: b.staticField,
			SpellSurgeOfPower:      b.surgeOfPower,
		},
		Hooks: encounter.Hooks{
			OnReset:    b.reset,
			OnEngage:   b.aggro,
			OnComplete: b.died,
			OnFail:     b.evaded,
			OnStep:     b.step,
		},
		Seed: seed,
	})
	if err != nil {
		return nil, err
	}
	b.Controller = c

	events := c.Events()
	errs = errs[:0]
	errs = append(errs,
		events.On(ph.discs, encounter.SignalKey(endDiscs), encounter.Transition(ph.transition2, "end_phase_2")),
		events.On(ph.discs, encounter.SignalKey(storm), encounter.Effect(b.stormOnInvoker(func() encounter.AbilityID {
			if host.Heroic() {
				return SpellArcaneStormHeroic
			}
			return SpellArcaneStorm
		}))),
		events.On(ph.dragons, encounter.SignalKey(storm), encounter.Effect(b.stormOnInvoker(func() encounter.AbilityID {
			return SpellArcaneStormVehicle
		}))),
		events.On(ph.floor, encounter.SpellHitKey(SpellPowerSparkMalygos), encounter.Effect(b.sparkHit)),
		events.OnAny(encounter.KilledKey(0), encounter.Effect(b.slay)),
	)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Boss) self() encounter.Ref { return b.host.Self() }

func (b *Boss) reset(c *encounter.Controller) {
	b.host.SetAttackable(true)
	b.host.SetFlying(true)
	b.host.SetEnvironmentState(ZoneEyeOfEternity, LightDefault, 0)
}

func (b *Boss) aggro(c *encounter.Controller) {
	b.host.Say(SayAggro, b.self())
}

func (b *Boss) died(c *encounter.Controller) {
	b.host.Say(SayDeath, b.self())
	b.host.SetFlying(false)
}

func (b *Boss) evaded(c *encounter.Controller) {
	b.host.SetEnvironmentState(ZoneEyeOfEternity, LightDefault, 0)
}

// WaypointReached plays the next intro line while Malygos circles the platform.
// Only the first five passes say something.
func (b *Boss) WaypointReached() {
	ctx := b.Context()
	stage := ctx.Counter("intro", 0)
	if b.Engaged() || stage >= introLines {
		return
	}
	b.host.Say(SayIntro1-encounter.LineID(stage), b.self())
	ctx.AddCounter("intro", 0, 1)
}

// Died finishes the encounter.
func (b *Boss) Died() { b.Complete() }

// Evaded records a wipe; the encounter resets to the floor phase.
func (b *Boss) Evaded() { b.Fail() }

// Summoned arms the creatures Malygos' own spells summon.
func (b *Boss) Summoned(ref encounter.Ref, entry int32) {
	switch entry {
	case NpcArcaneOverload:
		b.host.TryCast(SpellArcaneBomb, ref)
	case NpcStaticField:
		b.host.CastAs(ref, SpellStaticField, ref)
	}
}

// liftOff runs when the floor phase ends: Malygos takes to the air above the platform.
func (b *Boss) liftOff(c *encounter.Controller) {
	b.host.SetFlying(true)
	pos := centerPos
	pos.Z += 30
	b.host.MovePoint(pos)
}

func (b *Boss) enterDiscs(c *encounter.Controller) {
	b.host.SetAttackable(false)
	for _, d := range lordDisks[:b.lordDisks] {
		flags := encounter.SpawnDespawnOnDeath | encounter.SpawnWithPath | encounter.SpawnFlags(d.path)<<24
		c.Spawn(RoleLordDisk, NpcHoverDiskLord, d.pos, flags)
	}
	rng := c.Rand()
	for range b.scionDisks {
		angle := rng.Float64() * 2 * math.Pi
		dist := rng.Float64() * 50
		pos := encounter.Position{
			X: centerPos.X + float32(dist*math.Cos(angle)),
			Y: centerPos.Y + float32(dist*math.Sin(angle)),
			Z: centerPos.Z + float32(15+rng.IntN(6)),
		}
		c.Spawn(RoleScionDisk, NpcHoverDiskScion, pos, encounter.SpawnDespawnOnDeath)
	}
	slog.Debug("malygos discs spawned", "lords", len(c.Helpers(RoleLordDisk)),
		"scions", len(c.Helpers(RoleScionDisk)))
}

func (b *Boss) enterDragons(c *encounter.Controller) {
	b.host.SetAttackable(true)
}

func (b *Boss) step(c *encounter.Controller, s encounter.Step) {
	switch s.Tag {
	case "platform_boom":
		trigger, ok := b.host.AlexstraszaTrigger()
		if !ok {
			return
		}
		b.host.CastAs(trigger, SpellDestroyPlatformEvent, trigger)
		b.host.CastAs(trigger, SpellDestroyPlatformBoom, trigger)
	case "destroy_platform":
		b.host.DestroyPlatform()
	default:
		slog.Warn("unknown malygos step hook", "tag", s.Tag)
	}
}

func (b *Boss) arcaneBreath(c *encounter.Controller, _ encounter.CooldownDef) bool {
	breath := SpellArcaneBreath
	if b.host.Heroic() {
		breath = SpellArcaneBreathHeroic
	}
	return b.host.TryCast(breath, b.self())
}

func (b *Boss) arcaneOverload(c *encounter.Controller, def encounter.CooldownDef) bool {
	if !b.host.TryCast(def.Ability, b.self()) {
		return false
	}
	if c.Rand().IntN(4) == 0 {
		b.host.Say(SayShell, b.self())
	}
	return true
}

func (b *Boss) arcanePulse(c *encounter.Controller, def encounter.CooldownDef) bool {
	if !b.host.TryCast(def.Ability, b.self()) {
		return false
	}
	b.host.Say(SayDeepBreath, b.self())
	b.host.Say(SayEmoteBreath, b.self())
	return true
}

// arcaneStorm marks several random targets. The timer is kept expired until at least
// one mark lands.
func (b *Boss) arcaneStorm(c *encounter.Controller, def encounter.CooldownDef) bool {
	landed := false
	for range b.stormTargets {
		target, ok := c.Resolve(encounter.TargetRandom)
		if !ok {
			break
		}
		if b.host.TryCast(def.Ability, target) {
			landed = true
		}
	}
	return landed
}

func (b *Boss) staticField(c *encounter.Controller, def encounter.CooldownDef) bool {
	landed := false
	for range b.staticTargets {
		target, ok := c.Resolve(encounter.TargetRandom)
		if !ok {
			break
		}
		if b.host.TryCast(def.Ability, target) {
			b.host.Say(SayStaticField-encounter.LineID(c.Rand().IntN(staticFieldLines)), b.self())
			landed = true
		}
	}
	return landed
}

func (b *Boss) surgeOfPower(c *encounter.Controller, def encounter.CooldownDef) bool {
	var ok bool
	if b.host.Heroic() {
		if ok = b.host.TryCast(SpellSurgeOfPowerHeroic, b.self()); ok {
			b.host.TryCast(SpellSurgeOfPowerWarning, b.self())
		}
	} else {
		target, found := c.Resolve(encounter.TargetRandom)
		ok = found && b.host.TryCast(def.Ability, target)
	}
	if ok && c.Rand().IntN(4) == 0 {
		b.host.Say(SaySurge, b.self())
	}
	return ok
}

func (b *Boss) stormOnInvoker(spell func() encounter.AbilityID) func(*encounter.Controller, encounter.Event) {
	return func(c *encounter.Controller, ev encounter.Event) {
		sig, ok := ev.(encounter.Signal)
		if !ok || sig.Invoker == encounter.NoRef {
			return
		}
		b.host.TryCast(spell(), sig.Invoker)
	}
}

func (b *Boss) sparkHit(c *encounter.Controller, ev encounter.Event) {
	if hit, ok := ev.(encounter.SpellHit); ok && hit.CasterEntry == NpcPowerSpark {
		b.host.Say(SaySparkBuff, b.self())
	}
}

func (b *Boss) slay(c *encounter.Controller, _ encounter.Event) {
	var first encounter.LineID
	switch c.Phase() {
	case b.ph.floor:
		first = SaySlayFloor
	case b.ph.discs:
		first = SaySlayDiscs
	case b.ph.dragons:
		first = SaySlayDragons
	default:
		return
	}
	b.host.Say(first-encounter.LineID(c.Rand().IntN(slayLines)), b.self())
}

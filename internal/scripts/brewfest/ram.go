package brewfest

import (
	"github.com/udisondev/scriptdev/internal/encounter"
	"github.com/udisondev/scriptdev/internal/spell"
)

// Ram racing spells.
const (
	SpellGiddyUp        encounter.AbilityID = 42924
	SpellNeutral        encounter.AbilityID = 43310 // base speed
	SpellTrot           encounter.AbilityID = 42992
	SpellCanter         encounter.AbilityID = 42993
	SpellGallop         encounter.AbilityID = 42994
	SpellRam            encounter.AbilityID = 43880
	SpellRamRacingAura  encounter.AbilityID = 42146
	SpellAppleTrap      encounter.AbilityID = 43492
	SpellRamFatigue     encounter.AbilityID = 43052
	SpellExhaustedRam   encounter.AbilityID = 43332
	SpellRamFast        encounter.AbilityID = 43900
	SpellRamSlow        encounter.AbilityID = 43899
	SpellKodoFast       encounter.AbilityID = 49379
	SpellKodoSlow       encounter.AbilityID = 49378
	ExhaustionThreshold                     = 101
	fastMountSpeed                          = 2.0
)

// speedAura maps Giddy Up stacks to the speed aura the ram should carry.
var speedAura = [...]encounter.AbilityID{
	SpellNeutral,
	SpellTrot, SpellTrot, SpellTrot,
	SpellCanter, SpellCanter, SpellCanter, SpellCanter,
	SpellGallop, SpellGallop, SpellGallop, SpellGallop, SpellGallop,
}

var speedAuras = [...]encounter.AbilityID{SpellNeutral, SpellTrot, SpellCanter, SpellGallop}

// SpeedAuraFor returns the speed aura for a Giddy Up stack count.
func SpeedAuraFor(stacks int) encounter.AbilityID {
	if stacks < 0 {
		stacks = 0
	}
	if stacks >= len(speedAura) {
		stacks = len(speedAura) - 1
	}
	return speedAura[stacks]
}

// World is what the ram scripts need from the host.
type World interface {
	IsPlayer(u encounter.Ref) bool
	IsAlliance(u encounter.Ref) bool
	IsMounted(u encounter.Ref) bool
	Dismount(u encounter.Ref)
	RunSpeedRate(u encounter.Ref) float32

	AuraStacks(u encounter.Ref, id encounter.AbilityID) int
	RemoveAura(u encounter.Ref, id encounter.AbilityID)
	RemoveAuraStacks(u encounter.Ref, id encounter.AbilityID, n int)
	Cast(caster, target encounter.Ref, id encounter.AbilityID, flags spell.Trigger) bool
}

// MountTransformation turns a mounted player into a ram (alliance) or kodo (horde),
// keeping the mount speed tier. FactionSwap inverts the choice.
type MountTransformation struct {
	World       World
	FactionSwap bool
}

func (s MountTransformation) OnEffect(c spell.Cast, _ spell.Effect) {
	u := c.Caster
	if !s.World.IsPlayer(u) || !s.World.IsMounted(u) {
		return
	}
	s.World.Dismount(u)
	fast := s.World.RunSpeedRate(u) >= fastMountSpeed
	s.World.Cast(u, encounter.NoRef, TransformSpell(s.World.IsAlliance(u) != s.FactionSwap, fast), spell.TriggerOld)
}

// TransformSpell picks the mount spell: ram for ram riders, kodo otherwise.
func TransformSpell(ram, fast bool) encounter.AbilityID {
	switch {
	case ram && fast:
		return SpellRamFast
	case ram:
		return SpellRamSlow
	case fast:
		return SpellKodoFast
	default:
		return SpellKodoSlow
	}
}

// GiddyUp keeps the speed aura in line with the Giddy Up stack count.
type GiddyUp struct {
	World World
}

func (s GiddyUp) sync(u encounter.Ref) {
	stacks := s.World.AuraStacks(u, SpellGiddyUp)
	if stacks == 0 {
		return
	}
	want := SpeedAuraFor(stacks)
	for _, id := range speedAuras {
		if id != want && s.World.AuraStacks(u, id) > 0 {
			s.World.RemoveAura(u, id)
		}
	}
	if s.World.AuraStacks(u, want) == 0 {
		s.World.Cast(u, encounter.NoRef, want, spell.TriggerOld)
	}
}

// OnPeriodic drops one stack per tick.
func (s GiddyUp) OnPeriodic(a spell.Aura) {
	s.World.RemoveAuraStacks(a.Target, a.Spell.ID, 1)
	s.sync(a.Target)
}

func (s GiddyUp) OnEffect(c spell.Cast, eff spell.Effect) {
	if eff == spell.Effect1 && c.Target != encounter.NoRef {
		s.sync(c.Target)
	}
}

func (s GiddyUp) OnApply(a spell.Aura, apply bool) {
	if apply {
		return
	}
	for _, id := range speedAuras {
		s.World.RemoveAura(a.Target, id)
	}
}

// SwiftWorkRam cleans every racing aura when the ram goes away.
type SwiftWorkRam struct {
	World World
}

func (s SwiftWorkRam) OnApply(a spell.Aura, apply bool) {
	if apply {
		return
	}
	for _, id := range []encounter.AbilityID{
		SpellNeutral, SpellTrot, SpellCanter, SpellGallop,
		SpellRam, SpellRamRacingAura, SpellAppleTrap, SpellRamFatigue,
	} {
		s.World.RemoveAura(a.Target, id)
	}
}

// RamPace applies fatigue on every periodic tick of a speed aura. Negative Fatigue
// removes stacks, positive casts that many stacks.
type RamPace struct {
	World   World
	Fatigue int
}

func (s RamPace) OnPeriodic(a spell.Aura) {
	switch {
	case s.Fatigue < 0:
		s.World.RemoveAuraStacks(a.Target, SpellRamFatigue, -s.Fatigue)
	case s.Fatigue > 0:
		for range s.Fatigue {
			s.World.Cast(a.Target, encounter.NoRef, SpellRamFatigue, spell.TriggerOld)
		}
	}
}

// RamFatigue exhausts the ram at ExhaustionThreshold stacks and drops it to base speed.
type RamFatigue struct {
	World World
}

func (s RamFatigue) OnEffect(c spell.Cast, eff spell.Effect) {
	if eff != spell.Effect1 || c.Target == encounter.NoRef {
		return
	}
	u := c.Target
	if s.World.AuraStacks(u, SpellRamFatigue) != ExhaustionThreshold {
		return
	}
	s.World.Cast(u, encounter.NoRef, SpellExhaustedRam, spell.TriggerOld)
	s.World.RemoveAura(u, SpellCanter)
	s.World.RemoveAura(u, SpellGallop)
	s.World.Cast(u, encounter.NoRef, SpellNeutral, spell.TriggerOld)
}

// AppleTrap clears ram fatigue.
type AppleTrap struct {
	World World
}

func (s AppleTrap) OnApply(a spell.Aura, apply bool) {
	if apply {
		s.World.RemoveAura(a.Target, SpellRamFatigue)
	}
}

// Register binds the Brewfest spell scripts to their names.
func Register(r *spell.Registry, w World) error {
	scripts := []struct {
		name   string
		script any
	}{
		{"spell_brewfest_mount_transformation", MountTransformation{World: w}},
		{"spell_brewfest_mount_transformation_faction_swap", MountTransformation{World: w, FactionSwap: true}},
		{"spell_giddy_up", GiddyUp{World: w}},
		{"spell_ramsteins_swift_work_ram", SwiftWorkRam{World: w}},
		{"spell_ram_neutral", RamPace{World: w, Fatigue: -4}},
		{"spell_ram_trot", RamPace{World: w, Fatigue: -2}},
		{"spell_ram_canter", RamPace{World: w, Fatigue: 1}},
		{"spell_ram_gallop", RamPace{World: w, Fatigue: 5}},
		{"spell_ram_fatigue", RamFatigue{World: w}},
		{"spell_apple_trap_friendly", AppleTrap{World: w}},
	}
	for _, s := range scripts {
		if err := r.Register(s.name, s.script); err != nil {
			return err
		}
	}
	return nil
}

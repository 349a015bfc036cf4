// Package spell defines the hooks spell and aura scripts implement and a registry that
// binds them to script names.
//
// A script is any value implementing at least one hook interface. The host resolves the
// script bound to a spell and calls the hooks it supports; hooks it does not support keep
// the default spell behavior.
package spell

import (
	"github.com/udisondev/scriptdev/internal/encounter"
)

// Family is the spell family a class spell belongs to.
type Family uint32

// Spell families used by the bundled scripts.
const (
	FamilyGeneric Family = 0
	FamilyMage    Family = 3
	FamilyRogue   Family = 8
	FamilyDruid   Family = 7
)

// Effect is a spell effect slot.
type Effect uint8

const (
	Effect0 Effect = iota
	Effect1
	Effect2
)

// Trigger modifies how a scripted cast is performed.
type Trigger uint32

// TriggerNone casts normally.
const TriggerNone Trigger = 0

const (
	TriggerOld           Trigger = 1 << iota // legacy "triggered": no cost, no cast time
	TriggerIgnoreGCD                         // ignore global cooldown
	TriggerIgnoreCurrent                     // do not interrupt the current cast
	TriggerHideCast                          // hide from the combat log
)

// Info is the part of a spell template scripts look at.
type Info struct {
	ID     encounter.AbilityID
	Family Family
	Flags  uint64 // family flags
}

// FitsFamily reports whether the spell belongs to f and shares a bit with mask.
func (i Info) FitsFamily(f Family, mask uint64) bool {
	return i.Family == f && i.Flags&mask != 0
}

// Cast is one spell cast seen by a script.
type Cast struct {
	Spell  Info
	Caster encounter.Ref
	Target encounter.Ref // unit target of the effect being executed, if any
}

// Aura is one aura instance. ID is unique per host for the aura's lifetime.
type Aura struct {
	ID     uint64
	Spell  Info
	Effect Effect
	Target encounter.Ref // the unit carrying the aura
	Caster encounter.Ref
}

// Proc describes a proc attempt of an aura.
type Proc struct {
	Spell    *Info // nil for melee procs
	Attacker encounter.Ref
	Victim   encounter.Ref
	// VictimTarget is the victim's current target.
	VictimTarget encounter.Ref
}

// EffectScript runs when an effect of the spell executes.
type EffectScript interface {
	OnEffect(c Cast, eff Effect)
}

// CastScript runs when the spell is cast.
type CastScript interface {
	OnCast(c Cast)
}

// ProcScript decides whether an aura may proc.
type ProcScript interface {
	CheckProc(a Aura, p Proc) bool
}

// AuraInitScript runs once when an aura is created, before it is applied.
type AuraInitScript interface {
	OnAuraInit(a Aura)
}

// ApplyScript runs when an aura is applied or removed.
type ApplyScript interface {
	OnApply(a Aura, apply bool)
}

// PeriodicScript runs on every periodic dummy tick of an aura.
type PeriodicScript interface {
	OnPeriodic(a Aura)
}

// isScript reports whether s implements any hook.
func isScript(s any) bool {
	switch s.(type) {
	case EffectScript, CastScript, ProcScript, AuraInitScript, ApplyScript, PeriodicScript:
		return true
	}
	return false
}

// Package rogue implements the Rogue class spell scripts.
package rogue

import (
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/udisondev/scriptdev/internal/encounter"
	"github.com/udisondev/scriptdev/internal/spell"
)

// Spell ids and family masks.
const (
	SpellDistract     encounter.AbilityID = 1725
	SpellEarthbind    encounter.AbilityID = 3600
	SpellMassDispel   encounter.AbilityID = 39897
	SpellMassDispel2  encounter.AbilityID = 32592
	SpellKillingSpree encounter.AbilityID = 51690
	SpellSpreeBlade   encounter.AbilityID = 61851 // killing spree visual aura on the rogue
	SpellSpreeStrike  encounter.AbilityID = 57840
	SpellSpreeOffhand encounter.AbilityID = 57841

	// PreparationMask selects the abilities Preparation finishes the cooldown of.
	PreparationMask uint64 = 0x0000024000000860
	// StealthMask selects Stealth ranks.
	StealthMask uint64 = 0x0000000000400000

	// KillingSpreeRange is the jump range in yards.
	KillingSpreeRange float32 = 10
)

// World is what the Rogue scripts need from the host.
type World interface {
	IsPlayer(u encounter.Ref) bool
	// Spellbook returns the unit's active spells, highest ranks only.
	Spellbook(u encounter.Ref) []spell.Info
	SpellReady(u encounter.Ref, id encounter.AbilityID) bool
	ResetCooldown(u encounter.Ref, id encounter.AbilityID)
	// RemoveCooldowns finishes every cooldown of u whose spell matches.
	RemoveCooldowns(u encounter.Ref, match func(spell.Info) bool)
	Cast(caster, target encounter.Ref, id encounter.AbilityID, flags spell.Trigger) bool

	IsAlive(u encounter.Ref) bool
	CanAttack(attacker, target encounter.Ref) bool
	WithinCombatDistance(a, b encounter.Ref, yards float32) bool
}

// Preparation finishes the cooldown of the Rogue abilities selected by PreparationMask.
type Preparation struct {
	World World
}

func (s Preparation) OnEffect(c spell.Cast, _ spell.Effect) {
	if !s.World.IsPlayer(c.Caster) {
		return
	}
	s.World.RemoveCooldowns(c.Caster, func(i spell.Info) bool {
		return i.FitsFamily(spell.FamilyRogue, PreparationMask)
	})
}

// Stealth keeps Stealth (and Prowl) from breaking on a few harmless spells.
type Stealth struct{}

func (Stealth) CheckProc(_ spell.Aura, p spell.Proc) bool {
	if p.Spell == nil {
		return true
	}
	switch p.Spell.ID {
	case SpellDistract, SpellEarthbind, SpellMassDispel, SpellMassDispel2:
		return false
	}
	return true
}

// Vanish puts the rogue into the highest Stealth rank it knows, ignoring its cooldown.
type Vanish struct {
	World World
}

func (s Vanish) OnCast(c spell.Cast) {
	CastHighestStealthRank(s.World, c.Caster)
}

// CastHighestStealthRank casts the best Stealth rank in u's spellbook.
func CastHighestStealthRank(w World, u encounter.Ref) bool {
	if !w.IsPlayer(u) {
		return false
	}
	book := w.Spellbook(u)
	i := slices.IndexFunc(book, func(i spell.Info) bool {
		return i.FitsFamily(spell.FamilyRogue, StealthMask)
	})
	if i < 0 {
		return false
	}
	stealth := book[i].ID
	if !w.SpellReady(u, stealth) {
		w.ResetCooldown(u, stealth)
	}
	return w.Cast(u, encounter.NoRef, stealth, spell.TriggerOld)
}

// Setup only procs against attackers the victim is targeting.
type Setup struct{}

func (Setup) CheckProc(_ spell.Aura, p spell.Proc) bool {
	return p.VictimTarget == p.Attacker
}

// KillingSpree remembers every unit hit while the spree runs and strikes a random one
// of them on each periodic tick.
type KillingSpree struct {
	World World

	mu      sync.Mutex
	rng     *rand.Rand
	targets map[encounter.Ref][]encounter.Ref // rogue -> units hit, in hit order
}

// NewKillingSpree returns the script. rng picks the strike target; nil uses a random seed.
func NewKillingSpree(w World, rng *rand.Rand) *KillingSpree {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &KillingSpree{
		World:   w,
		rng:     rng,
		targets: make(map[encounter.Ref][]encounter.Ref),
	}
}

func (s *KillingSpree) OnAuraInit(a spell.Aura) {
	if a.Effect != spell.Effect0 {
		return
	}
	s.mu.Lock()
	s.targets[a.Target] = nil
	s.mu.Unlock()
}

func (s *KillingSpree) OnApply(a spell.Aura, apply bool) {
	if a.Effect != spell.Effect0 {
		return
	}
	if !apply {
		s.mu.Lock()
		delete(s.targets, a.Target)
		s.mu.Unlock()
		return
	}
	s.World.Cast(a.Target, encounter.NoRef, SpellSpreeBlade,
		spell.TriggerIgnoreGCD|spell.TriggerIgnoreCurrent|spell.TriggerHideCast)
}

func (s *KillingSpree) OnEffect(c spell.Cast, eff spell.Effect) {
	if eff != spell.Effect1 || c.Target == encounter.NoRef {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	hit, ok := s.targets[c.Caster]
	if !ok || slices.Contains(hit, c.Target) {
		return
	}
	s.targets[c.Caster] = append(hit, c.Target)
}

func (s *KillingSpree) OnPeriodic(a spell.Aura) {
	s.mu.Lock()
	hit, ok := s.targets[a.Target]
	if !ok {
		s.mu.Unlock()
		return
	}
	var eligible []encounter.Ref
	for _, u := range hit {
		if s.World.IsAlive(u) && s.World.CanAttack(a.Target, u) &&
			s.World.WithinCombatDistance(a.Target, u, KillingSpreeRange) {
			eligible = append(eligible, u)
		}
	}
	if len(eligible) == 0 {
		s.mu.Unlock()
		return
	}
	victim := eligible[s.rng.IntN(len(eligible))]
	s.mu.Unlock()

	flags := spell.TriggerIgnoreGCD | spell.TriggerIgnoreCurrent | spell.TriggerHideCast
	s.World.Cast(a.Target, victim, SpellSpreeStrike, flags)
	s.World.Cast(a.Target, victim, SpellSpreeOffhand, flags)
	slog.Debug("killing spree strike", "rogue", a.Target, "victim", victim, "eligible", len(eligible))
}

// Targets returns the units remembered for rogue u.
func (s *KillingSpree) Targets(u encounter.Ref) []encounter.Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.targets[u])
}

// Register binds the Rogue scripts to their names.
func Register(r *spell.Registry, w World, rng *rand.Rand) error {
	for name, s := range map[string]any{
		"spell_preparation":   Preparation{World: w},
		"spell_stealth":       Stealth{},
		"spell_vanish":        Vanish{World: w},
		"spell_setup_rogue":   Setup{},
		"spell_killing_spree": NewKillingSpree(w, rng),
	} {
		if err := r.Register(name, s); err != nil {
			return err
		}
	}
	return nil
}

// Package brewfest implements the Brewfest world event: barkers greeting passers-by and
// the ram racing spells.
package brewfest

import (
	"fmt"
	"time"

	"github.com/udisondev/scriptdev/internal/encounter"
)

// DefinitionName is the encounter definition the barkers run.
const DefinitionName = "npc_brewfest_barker"

// Barker npc entries.
const (
	NpcBelbiQuikswitch     int32 = 23710
	NpcBlixFixwidget       int32 = 24495
	NpcIpfelkoferIronkeg   int32 = 24711
	NpcTapperSwindlekeg    int32 = 24710
	NpcItaThunderbrew      int32 = 23684
	NpcMaeveBarleybrew     int32 = 23683
	NpcGordokBrewBarker    int32 = 23685
	NpcDrohnsDistillery    int32 = 24492
	NpcTchalisVoodooBarker int32 = 24493
)

// Emotes.
const (
	EmoteWave          uint32 = 3
	EmoteExclamation   uint32 = 5
	EmoteShy           uint32 = 24
	EmoteYes           uint32 = 273
	EmoteTalkNoSheathe uint32 = 396
)

// Script timers declared by the definition.
const (
	timerScriptCooldown encounter.AbilityID = 1
	timerFollowUpEmote  encounter.AbilityID = 2
)

// BarkerKind decides how long a barker stays quiet after greeting.
type BarkerKind uint8

const (
	KindBarker    BarkerKind = iota // 30-120 s
	KindRedeemer                    // ticket redeemers: 10 s and a follow-up emote
	KindOrganizer                   // 30 s
)

// Barker describes one barker npc.
type Barker struct {
	Entry int32
	Kind  BarkerKind
	Lines []encounter.LineID
}

var barkers = map[int32]Barker{
	NpcBelbiQuikswitch:     {NpcBelbiQuikswitch, KindRedeemer, []encounter.LineID{22170, 22171, 22172, 22173, 22174, 22175}},
	NpcBlixFixwidget:       {NpcBlixFixwidget, KindRedeemer, []encounter.LineID{23497, 23498, 23499, 23500, 23501, 23502}},
	NpcIpfelkoferIronkeg:   {NpcIpfelkoferIronkeg, KindOrganizer, []encounter.LineID{23691, 23692, 23693}},
	NpcTapperSwindlekeg:    {NpcTapperSwindlekeg, KindOrganizer, []encounter.LineID{23698, 23700, 23701}},
	NpcItaThunderbrew:      {NpcItaThunderbrew, KindBarker, []encounter.LineID{22135, 22136, 22137}},
	NpcMaeveBarleybrew:     {NpcMaeveBarleybrew, KindBarker, []encounter.LineID{22132, 22133, 22134}},
	NpcGordokBrewBarker:    {NpcGordokBrewBarker, KindBarker, []encounter.LineID{22138, 22139, 22140}},
	NpcDrohnsDistillery:    {NpcDrohnsDistillery, KindBarker, []encounter.LineID{23513, 23514, 23515, 23516}},
	NpcTchalisVoodooBarker: {NpcTchalisVoodooBarker, KindBarker, []encounter.LineID{23517, 23518, 23519}},
}

var areaBarkers = map[int32]int32{
	4712: NpcItaThunderbrew,
	4715: NpcMaeveBarleybrew,
	4716: NpcGordokBrewBarker, // alliance side
	4718: NpcBelbiQuikswitch,
	4797: NpcGordokBrewBarker, // horde side
	4798: NpcDrohnsDistillery,
	4799: NpcTchalisVoodooBarker,
	4800: NpcBlixFixwidget,
	4820: NpcIpfelkoferIronkeg,
	4829: NpcTapperSwindlekeg,
}

// BarkerForArea returns the barker entry whose area trigger is area.
func BarkerForArea(area int32) (int32, bool) {
	entry, ok := areaBarkers[area]
	return entry, ok
}

// LookupBarker returns the barker description for entry.
func LookupBarker(entry int32) (Barker, bool) {
	b, ok := barkers[entry]
	return b, ok
}

// BarkerHost is the barker npc as seen by its script.
type BarkerHost interface {
	encounter.Engine
	Entry() int32
	Emote(u encounter.Ref, emote uint32)
	// CanBeGreeted reports whether player is alive and not a game master.
	CanBeGreeted(player encounter.Ref) bool
}

type barkerScript struct {
	host   BarkerHost
	barker Barker
	idle   encounter.Phase
	quiet  encounter.Phase
}

const roleGuest = "guest"

// NewBarker builds the controller of one barker npc. The controller is engaged at once:
// a barker listens for the whole time it is spawned.
func NewBarker(def *encounter.Definition, host BarkerHost, seed uint64) (*encounter.Controller, error) {
	b, ok := LookupBarker(host.Entry())
	if !ok {
		return nil, fmt.Errorf("%s: entry %d is not a brewfest barker", DefinitionName, host.Entry())
	}
	idle, err := def.PhaseByName("idle")
	if err != nil {
		return nil, err
	}
	quiet, err := def.PhaseByName("cooldown")
	if err != nil {
		return nil, err
	}

	s := &barkerScript{host: host, barker: b, idle: idle, quiet: quiet}
	c, err := encounter.NewController(def, host, encounter.Options{
		Behaviors: map[encounter.Phase]encounter.Behavior{
			idle:  encounter.BehaviorFuncs{Enter: s.enterIdle},
			quiet: encounter.BehaviorFuncs{Enter: s.greet},
		},
		Abilities: map[encounter.AbilityID]encounter.AbilityHandler{
			timerScriptCooldown: s.cooldownOver,
			timerFollowUpEmote:  s.followUpEmote,
		},
		Seed: seed,
	})
	if err != nil {
		return nil, err
	}
	if err := c.Events().On(idle, encounter.EventKey{Kind: encounter.KindAreaEntered}, encounter.Effect(s.noticed)); err != nil {
		return nil, err
	}
	c.Engage()
	return c, nil
}

func (s *barkerScript) noticed(c *encounter.Controller, ev encounter.Event) {
	ae, ok := ev.(encounter.AreaEntered)
	if !ok || c.Context().Flag("greeting") || !s.host.CanBeGreeted(ae.Who) {
		return
	}
	c.Context().SetFlag("greeting", true)
	c.Context().ForgetHelpers(roleGuest)
	c.Context().AddHelper(roleGuest, ae.Who)
	c.QueueTransition(s.quiet, encounter.NoSequence)
}

func (s *barkerScript) enterIdle(c *encounter.Controller) {
	c.Context().SetFlag("greeting", false)
	c.Context().ForgetHelpers(roleGuest)
}

func (s *barkerScript) greet(c *encounter.Controller) {
	self := s.host.Self()
	cd := c.Cooldowns()

	switch s.barker.Kind {
	case KindRedeemer:
		emote := EmoteTalkNoSheathe
		if s.barker.Entry == NpcBelbiQuikswitch {
			emote = EmoteExclamation
		}
		s.host.Emote(self, emote)
		_ = cd.Set(timerScriptCooldown, 10*time.Second)
		_ = cd.Set(timerFollowUpEmote, 3*time.Second)
	case KindOrganizer:
		s.host.Emote(self, EmoteWave)
		_ = cd.Set(timerScriptCooldown, 30*time.Second)
		_ = cd.Disarm(timerFollowUpEmote)
	default:
		s.host.Emote(self, EmoteTalkNoSheathe)
		quiet := 30*time.Second + time.Duration(c.Rand().Int64N(90_001))*time.Millisecond
		_ = cd.Set(timerScriptCooldown, quiet)
		_ = cd.Disarm(timerFollowUpEmote)
	}

	guest, _ := c.Helper(roleGuest)
	line := s.barker.Lines[c.Rand().IntN(len(s.barker.Lines))]
	s.host.Broadcast(line, self, guest)
}

func (s *barkerScript) cooldownOver(c *encounter.Controller, _ encounter.CooldownDef) bool {
	if err := c.TransitionTo(s.idle); err != nil {
		return false
	}
	return true
}

func (s *barkerScript) followUpEmote(_ *encounter.Controller, _ encounter.CooldownDef) bool {
	emote := EmoteYes
	if s.barker.Entry == NpcBelbiQuikswitch {
		emote = EmoteShy
	}
	s.host.Emote(s.host.Self(), emote)
	return true
}

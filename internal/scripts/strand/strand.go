// Package strand implements the Strand of the Ancients battleground: two rounds of
// attack and defense with gates, capturable graveyards, siege vehicles and a relic whose
// capture ends the round. The battleground clock is the encounter phase clock.
package strand

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/udisondev/scriptdev/internal/encounter"
)

// DefinitionName is the encounter definition the battleground runs.
const DefinitionName = "bg_strand_of_the_ancients"

// Team is a battleground side.
type Team uint8

const (
	TeamAlliance Team = iota
	TeamHorde
	TeamNone
)

// Other returns the opposing side. TeamNone has no opponent.
func (t Team) Other() Team {
	switch t {
	case TeamAlliance:
		return TeamHorde
	case TeamHorde:
		return TeamAlliance
	default:
		return TeamNone
	}
}

func (t Team) String() string {
	switch t {
	case TeamAlliance:
		return "alliance"
	case TeamHorde:
		return "horde"
	default:
		return "none"
	}
}

// World states.
const (
	StateTimerMinutes     int32 = 3559
	StateTimerTens        int32 = 3560
	StateTimerUnits       int32 = 3561
	StateEnableTimer      int32 = 3564
	StateBonusTimer       int32 = 3571
	StateAttackerAlliance int32 = 4352
	StateAttackerHorde    int32 = 4353
)

// Spells.
const (
	SpellEndOfRound        encounter.AbilityID = 52459
	SpellPreparation       encounter.AbilityID = 44521
	SpellTeleportAttackers encounter.AbilityID = 60178
	SpellTeleportDefender  encounter.AbilityID = 52364
)

// Creature entries.
const (
	NpcDemolisher          int32 = 28781
	NpcCannon              int32 = 27894
	NpcSpiritGuideAlliance int32 = 13116
	NpcSpiritGuideHorde    int32 = 13117
)

// Graveyards that never change hands during a round.
const (
	GraveyardIDShrine int32 = 1349
	GraveyardIDBeach  int32 = 1350
)

// RoleDemolisher tracks the demolishers summoned by graveyard captures.
const RoleDemolisher = "demolisher"

// timerBoatStart is a script timer, not a spell.
const timerBoatStart encounter.AbilityID = 1

// relicClock is what is left of round 1 once the relic is taken.
const relicClock = 500 * time.Millisecond

// Gate is one of the six destructible gates, the ancient shrine last.
type Gate uint8

const (
	GatePurple Gate = iota
	GateRed
	GateBlue
	GateGreen
	GateYellow
	GateAncient
	NumGates
)

var gateWorldStates = [NumGates]int32{3614, 3617, 3620, 3623, 3638, 3849}

// WorldState returns the world state showing the gate.
func (g Gate) WorldState() int32 { return gateWorldStates[g] }

// GateState is the client value of a gate world state.
type GateState int32

const (
	GateIntact    GateState = 1
	GateDamaged   GateState = 2
	GateDestroyed GateState = 3
)

// Graveyard is one of the capturable graveyards.
type Graveyard uint8

const (
	GraveyardWest Graveyard = iota
	GraveyardEast
	GraveyardSouth
	NumGraveyards
)

var graveyards = [NumGraveyards]struct {
	id                        int32
	stateAlliance, stateHorde int32
	demolishers               bool
}{
	GraveyardWest:  {1346, 3635, 3633, true},
	GraveyardEast:  {1347, 3636, 3632, true},
	GraveyardSouth: {1348, 3637, 3634, false},
}

// ID returns the graveyard id linked to the owning team.
func (g Graveyard) ID() int32 { return graveyards[g].id }

// Score is a per-player scoreboard column.
type Score uint8

const (
	ScoreGatesDestroyed Score = iota + 1
	ScoreDemolishersDestroyed
)

func (s Score) counter() string {
	if s == ScoreGatesDestroyed {
		return "gates_destroyed"
	}
	return "demolishers_destroyed"
}

// Warning is a battleground-wide message. The host owns the text.
type Warning uint8

const (
	WarnBegin Warning = iota + 1
	WarnRoundFinished
	WarnRoundStartOneMinute
	WarnRoundStartHalfMinute
	WarnGateDamaged       // subject: gate
	WarnGateDestroyed     // subject: gate
	WarnGraveyardCaptured // subject: graveyard, team: new owner
)

// Host is the battleground map as seen by its script.
type Host interface {
	encounter.Engine
	IsPlayer(u encounter.Ref) bool
	Despawn(u encounter.Ref)
	CastOnTeam(team Team, ability encounter.AbilityID)
	// ClearAura removes ability from every player in the battleground.
	ClearAura(ability encounter.AbilityID)
	Warn(w Warning, subject int, team Team)
	// Setup rebuilds the gates, respawns cannons and sigils and hands the capturable
	// graveyards and banners to defender.
	Setup(defender Team)
	// TeleportToStart sends the attackers to the boats and the defenders to the keep.
	TeleportToStart(defender Team)
	StartBoats(attacker Team)
	EnableDemolishers(attacker Team)
	// DespawnVehicles ejects the passengers of every demolisher and cannon and despawns them.
	DespawnVehicles()
	SetCannonFaction(defender Team)
	SetGateFaction(g Gate, defender Team)
	DespawnSigil(g Gate)
	UnlockRelic(attacker Team)
	LinkGraveyard(id int32, team Team)
	HealerPosition(gy Graveyard) encounter.Position
	DemolisherSpawns(gy Graveyard) []encounter.Position
	EndBattle(winner Team)
}

type phases struct {
	preparation, round1, endOfRound, roundReset encounter.Phase
	secondRound1, secondRound2, round2, finished encounter.Phase
}

type signals struct {
	start, relic, gateDamaged, gateDestroyed, gateRebuilt, banner encounter.SignalID
}

// Battle is a running Strand of the Ancients battleground.
type Battle struct {
	*encounter.Controller

	host Host
	ph   phases
	sig  signals
}

// New builds the battleground controller on def. The host may call Engage when the
// battleground is created, which starts the boat timer during preparation; battle_start
// engages the battle if needed and opens the doors.
func New(def *encounter.Definition, host Host, seed uint64) (*Battle, error) {
	if def.Name != DefinitionName {
		return nil, fmt.Errorf("%s: definition %q", DefinitionName, def.Name)
	}
	b := &Battle{host: host}

	var errs []error
	for name, p := range map[string]*encounter.Phase{
		"preparation": &b.ph.preparation, "round_1": &b.ph.round1,
		"end_of_round": &b.ph.endOfRound, "round_reset": &b.ph.roundReset,
		"second_round_1": &b.ph.secondRound1, "second_round_2": &b.ph.secondRound2,
		"round_2": &b.ph.round2, "finished": &b.ph.finished,
	} {
		id, err := def.PhaseByName(name)
		errs = append(errs, err)
		*p = id
	}
	for name, s := range map[string]*encounter.SignalID{
		"battle_start": &b.sig.start, "relic_captured": &b.sig.relic,
		"gate_damaged": &b.sig.gateDamaged, "gate_destroyed": &b.sig.gateDestroyed,
		"gate_rebuilt": &b.sig.gateRebuilt, "banner_clicked": &b.sig.banner,
	} {
		id, err := def.Signal(name)
		errs = append(errs, err)
		*s = id
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	ph := b.ph
	c, err := encounter.NewController(def, host, encounter.Options{
		Behaviors: map[encounter.Phase]encounter.Behavior{
			ph.round1:       encounter.BehaviorFuncs{Enter: b.openDoors, Tick: b.updateTimer},
			ph.endOfRound:   encounter.BehaviorFuncs{Enter: b.endRound},
			ph.roundReset:   encounter.BehaviorFuncs{Enter: b.swapSides},
			ph.secondRound1: encounter.BehaviorFuncs{Enter: b.prepareSecondRound},
			ph.secondRound2: encounter.BehaviorFuncs{Enter: b.halfMinuteLeft},
			ph.round2:       encounter.BehaviorFuncs{Enter: b.startSecondRound, Tick: b.updateTimer},
			ph.finished:     encounter.BehaviorFuncs{Enter: b.finish},
		},
		Abilities: map[encounter.AbilityID]encounter.AbilityHandler{
			timerBoatStart: b.startBoats,
		},
		Hooks: encounter.Hooks{OnReset: b.reset},
		Seed:  seed,
	})
	if err != nil {
		return nil, err
	}
	b.Controller = c

	events := c.Events()
	errs = errs[:0]
	errs = append(errs,
		events.On(ph.preparation, encounter.SignalKey(b.sig.start), encounter.Effect(b.battleStart)),
		events.On(ph.round1, encounter.SignalKey(b.sig.relic), encounter.Effect(b.relicCaptured)),
		events.On(ph.round2, encounter.SignalKey(b.sig.relic), encounter.Effect(b.relicCaptured)),
		events.OnAny(encounter.SignalKey(b.sig.gateDamaged), encounter.Effect(b.gateDamaged)),
		events.OnAny(encounter.SignalKey(b.sig.gateDestroyed), encounter.Effect(b.gateDestroyed)),
		events.OnAny(encounter.SignalKey(b.sig.gateRebuilt), encounter.Effect(b.gateRebuilt)),
		events.OnAny(encounter.SignalKey(b.sig.banner), encounter.Effect(b.bannerClicked)),
		events.OnAny(encounter.KilledKey(NpcDemolisher), encounter.Effect(b.demolisherKilled)),
	)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Battle) battleStart(c *encounter.Controller, _ encounter.Event) {
	c.Engage()
	c.QueueTransition(b.ph.round1, encounter.NoSequence)
}

// Signal builds the named battleground signal.
func (b *Battle) Signal(name string, invoker encounter.Ref, value int64) (encounter.Signal, error) {
	id, err := b.Definition().Signal(name)
	if err != nil {
		return encounter.Signal{}, err
	}
	return encounter.Signal{ID: id, Sender: b.host.Self(), Invoker: invoker, Value: value}, nil
}

// Defender returns the side holding the keep this round.
func (b *Battle) Defender() Team { return Team(b.Context().Counter("defender", 0)) }

// Attacker returns the side landing on the beach this round.
func (b *Battle) Attacker() Team { return b.Defender().Other() }

// Result returns team's relic captures and the clock left at its capture.
func (b *Battle) Result(team Team) Result {
	ctx := b.Context()
	return Result{
		Captures: int(ctx.Counter("captures", uint32(team))),
		WinTime:  time.Duration(ctx.Counter("win_time", uint32(team))),
	}
}

// GateState returns the current state of g.
func (b *Battle) GateState(g Gate) GateState {
	return GateState(b.Context().Counter("gate", uint32(g)))
}

// GraveyardOwner returns the side gy is linked to.
func (b *Battle) GraveyardOwner(gy Graveyard) Team {
	return Team(b.Context().Counter("graveyard", uint32(gy)))
}

// PlayerScore returns one scoreboard column of player.
func (b *Battle) PlayerScore(player encounter.Ref, s Score) int64 {
	return b.Context().Counter(s.counter(), uint32(player))
}

// NotAScratch reports whether no demolisher was lost since the round started.
func (b *Battle) NotAScratch() bool { return b.Context().Flag("no_scratch") }

// DefenseOfTheAncients reports whether team defended this round without losing a gate.
func (b *Battle) DefenseOfTheAncients(team Team) bool {
	return b.Context().Flag("defense_ancients") && team == b.Defender()
}

// WorldState is one client world state value.
type WorldState struct {
	ID    int32
	Value int32
}

// WorldStates returns the states sent to a player entering the battleground.
func (b *Battle) WorldStates() []WorldState {
	attacker := b.Attacker()
	states := []WorldState{
		{StateAttackerAlliance, boolState(attacker == TeamAlliance)},
		{StateAttackerHorde, boolState(attacker == TeamHorde)},
	}
	for g := range NumGates {
		v := int32(b.GateState(g))
		// the ancient gate is blue for an alliance keep and red for a horde keep
		if g == GateAncient && attacker == TeamAlliance {
			v += 3
		}
		states = append(states, WorldState{g.WorldState(), v})
	}
	for gy := range NumGraveyards {
		owner := b.GraveyardOwner(gy)
		states = append(states,
			WorldState{graveyards[gy].stateAlliance, boolState(owner == TeamAlliance)},
			WorldState{graveyards[gy].stateHorde, boolState(owner == TeamHorde)},
		)
	}
	return append(states,
		WorldState{StateEnableTimer, 0},
		WorldState{StateTimerMinutes, 0},
		WorldState{StateTimerTens, 0},
		WorldState{StateTimerUnits, 0},
		WorldState{StateBonusTimer, 0},
	)
}

func boolState(v bool) int32 {
	if v {
		return 1
	}
	return 0
}

func (b *Battle) reset(c *encounter.Controller) {
	defender := Team(c.Rand().IntN(2))
	c.Context().SetCounter("defender", 0, int64(defender))
	b.setup(c, defender)
	slog.Debug("strand reset", "defender", defender)
}

// setup puts gates and graveyards back for a round defended by defender.
func (b *Battle) setup(c *encounter.Controller, defender Team) {
	ctx := c.Context()
	for g := range NumGates {
		ctx.SetCounter("gate", uint32(g), int64(GateIntact))
	}
	for gy := range NumGraveyards {
		ctx.SetCounter("graveyard", uint32(gy), int64(defender))
		b.host.LinkGraveyard(gy.ID(), defender)
	}
	b.host.LinkGraveyard(GraveyardIDShrine, defender)
	b.host.LinkGraveyard(GraveyardIDBeach, defender.Other())
	for gy := range NumGraveyards {
		for _, ref := range ctx.ForgetHelpers(healerRole(gy)) {
			b.host.Despawn(ref)
		}
	}
	b.host.Setup(defender)
}

func healerRole(gy Graveyard) string { return fmt.Sprintf("spirit_healer_%d", gy) }

func healerEntry(owner Team) int32 {
	if owner == TeamAlliance {
		return NpcSpiritGuideAlliance
	}
	return NpcSpiritGuideHorde
}

func (b *Battle) startBoats(c *encounter.Controller, _ encounter.CooldownDef) bool {
	b.host.StartBoats(b.Attacker())
	return true
}

// openDoors starts a round: vehicles are handed to the attackers, the defenders get
// their spirit healers and the clock is shown.
func (b *Battle) openDoors(c *encounter.Controller) {
	b.enableDemolishers(c)
	defender := b.Defender()
	for gy := range NumGraveyards {
		c.Spawn(healerRole(gy), healerEntry(defender), b.host.HealerPosition(gy), 0)
	}
	b.host.Warn(WarnBegin, 0, TeamNone)
	b.host.SetWorldCounter(StateEnableTimer, 1)
}

func (b *Battle) enableDemolishers(c *encounter.Controller) {
	b.host.EnableDemolishers(b.Attacker())
	c.Context().SetFlag("no_scratch", true)
	c.Context().SetFlag("defense_ancients", true)
}

// updateTimer mirrors the round clock as minutes, tens and units of seconds.
func (b *Battle) updateTimer(c *encounter.Controller, _ time.Duration) {
	minutes, tens, units := clockDigits(c.PhaseRemaining())
	b.host.SetWorldCounter(StateTimerUnits, units)
	b.host.SetWorldCounter(StateTimerTens, tens)
	b.host.SetWorldCounter(StateTimerMinutes, minutes)
}

func clockDigits(d time.Duration) (minutes, tens, units int32) {
	ms := d.Milliseconds()
	rest := ms % 60000
	return int32(ms / 60000), int32(rest / 10000), int32(rest % 10000 / 1000)
}

func (b *Battle) endRound(c *encounter.Controller) {
	b.host.DespawnVehicles()
	for _, ref := range c.Context().ForgetHelpers(RoleDemolisher) {
		b.host.Despawn(ref)
	}
	b.host.Warn(WarnRoundFinished, 0, TeamNone)
	b.host.SetWorldCounter(StateEnableTimer, 0)
	b.host.CastOnTeam(TeamAlliance, SpellEndOfRound)
	b.host.CastOnTeam(TeamHorde, SpellEndOfRound)
}

func (b *Battle) swapSides(c *encounter.Controller) {
	defender := b.Defender().Other()
	c.Context().SetCounter("defender", 0, int64(defender))
	b.setup(c, defender)
	b.host.ClearAura(SpellEndOfRound)
	b.host.TeleportToStart(defender)
	if err := c.Cooldowns().Set(timerBoatStart, 2*time.Second); err != nil {
		slog.Error("strand boat timer", "error", err)
	}
	slog.Info("strand sides swapped", "defender", defender)
}

func (b *Battle) prepareSecondRound(c *encounter.Controller) {
	b.host.Warn(WarnRoundStartOneMinute, 0, TeamNone)
	b.host.CastOnTeam(TeamAlliance, SpellPreparation)
	b.host.CastOnTeam(TeamHorde, SpellPreparation)
	b.host.SetCannonFaction(b.Defender())
}

func (b *Battle) halfMinuteLeft(c *encounter.Controller) {
	b.host.Warn(WarnRoundStartHalfMinute, 0, TeamNone)
}

func (b *Battle) startSecondRound(c *encounter.Controller) {
	b.host.ClearAura(SpellPreparation)
	b.openDoors(c)
}

func (b *Battle) finish(c *encounter.Controller) {
	// preparation is cast again for the end-of-battle achievement checks
	b.host.CastOnTeam(TeamAlliance, SpellPreparation)
	b.host.CastOnTeam(TeamHorde, SpellPreparation)

	winner := Winner(b.Result(TeamAlliance), b.Result(TeamHorde))
	slog.Info("strand finished", "winner", winner,
		"alliance", b.Result(TeamAlliance), "horde", b.Result(TeamHorde))
	b.host.EndBattle(winner)
	c.Complete()
}

func (b *Battle) relicCaptured(c *encounter.Controller, ev encounter.Event) {
	sig := ev.(encounter.Signal)
	team := Team(sig.Value)
	if team != TeamAlliance && team != TeamHorde {
		slog.Warn("strand relic captured by unknown team", "team", sig.Value)
		return
	}
	ctx := c.Context()
	ctx.AddCounter("captures", uint32(team), 1)
	ctx.SetCounter("win_time", uint32(team), int64(c.PhaseRemaining()))
	slog.Info("strand relic captured", "team", team, "clock", c.PhaseRemaining())

	if c.Phase() == b.ph.round2 {
		c.QueueTransition(b.ph.finished, encounter.NoSequence)
		return
	}
	c.SetPhaseRemaining(relicClock)
}

func gateOf(sig encounter.Signal) (Gate, bool) {
	if sig.Value < 0 || sig.Value >= int64(NumGates) {
		slog.Warn("strand gate out of range", "gate", sig.Value)
		return 0, false
	}
	return Gate(sig.Value), true
}

func (b *Battle) setGate(c *encounter.Controller, g Gate, s GateState) {
	c.Context().SetCounter("gate", uint32(g), int64(s))
	b.host.SetWorldCounter(g.WorldState(), int32(s))
}

func (b *Battle) gateDamaged(c *encounter.Controller, ev encounter.Event) {
	g, ok := gateOf(ev.(encounter.Signal))
	if !ok {
		return
	}
	b.setGate(c, g, GateDamaged)
	b.host.Warn(WarnGateDamaged, int(g), TeamNone)
}

func (b *Battle) gateDestroyed(c *encounter.Controller, ev encounter.Event) {
	sig := ev.(encounter.Signal)
	g, ok := gateOf(sig)
	if !ok {
		return
	}
	b.setGate(c, g, GateDestroyed)
	b.host.Warn(WarnGateDestroyed, int(g), TeamNone)
	if sig.Invoker != encounter.NoRef && b.host.IsPlayer(sig.Invoker) {
		c.Context().AddCounter(ScoreGatesDestroyed.counter(), uint32(sig.Invoker), 1)
	}
	c.Context().SetFlag("defense_ancients", false)

	if g == GateAncient {
		b.host.UnlockRelic(b.Attacker())
		return
	}
	b.host.DespawnSigil(g)
}

func (b *Battle) gateRebuilt(c *encounter.Controller, ev encounter.Event) {
	g, ok := gateOf(ev.(encounter.Signal))
	if !ok {
		return
	}
	b.setGate(c, g, GateIntact)
	b.host.SetGateFaction(g, b.Defender())
}

func (b *Battle) bannerClicked(c *encounter.Controller, ev encounter.Event) {
	sig := ev.(encounter.Signal)
	if sig.Value < 0 || sig.Value >= int64(NumGraveyards) {
		slog.Warn("strand graveyard out of range", "graveyard", sig.Value)
		return
	}
	gy := Graveyard(sig.Value)
	attacker := b.Attacker()
	if b.GraveyardOwner(gy) == attacker {
		return
	}
	c.Context().SetCounter("graveyard", uint32(gy), int64(attacker))
	b.host.LinkGraveyard(gy.ID(), attacker)

	if graveyards[gy].demolishers {
		for _, pos := range b.host.DemolisherSpawns(gy) {
			c.Spawn(RoleDemolisher, NpcDemolisher, pos, encounter.SpawnTimed)
		}
	}

	b.host.SetWorldCounter(graveyards[gy].stateAlliance, boolState(attacker == TeamAlliance))
	b.host.SetWorldCounter(graveyards[gy].stateHorde, boolState(attacker == TeamHorde))
	b.host.Warn(WarnGraveyardCaptured, int(gy), attacker)

	for _, ref := range c.Context().ForgetHelpers(healerRole(gy)) {
		b.host.Despawn(ref)
	}
	c.Spawn(healerRole(gy), healerEntry(attacker), b.host.HealerPosition(gy), 0)
}

func (b *Battle) demolisherKilled(c *encounter.Controller, ev encounter.Event) {
	kill := ev.(encounter.UnitKilled)
	c.Context().RemoveHelper(kill.Victim)
	if kill.Killer != encounter.NoRef && b.host.IsPlayer(kill.Killer) {
		c.Context().AddCounter(ScoreDemolishersDestroyed.counter(), uint32(kill.Killer), 1)
	}
	c.Context().SetFlag("no_scratch", false)
}

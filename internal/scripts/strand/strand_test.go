package strand_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/scriptdev/internal/data"
	"github.com/udisondev/scriptdev/internal/encounter"
	"github.com/udisondev/scriptdev/internal/scripts/strand"
	"github.com/udisondev/scriptdev/internal/testutil"
)

const (
	player encounter.Ref = 7
	tick                 = 100 * time.Millisecond
)

type teamCast struct {
	team    strand.Team
	ability encounter.AbilityID
}

type warning struct {
	w       strand.Warning
	subject int
	team    strand.Team
}

type bgHost struct {
	*testutil.FakeEngine
	teamCasts     []teamCast
	removed       []encounter.AbilityID
	warnings      []warning
	setups        []strand.Team
	teleports     []strand.Team
	boats         []strand.Team
	demolishers   []strand.Team
	vehiclesGone  int
	cannonFaction []strand.Team
	gateFaction   map[strand.Gate]strand.Team
	sigils        []strand.Gate
	relics        []strand.Team
	links         map[int32]strand.Team
	despawned     []encounter.Ref
	ended         bool
	winner        strand.Team
}

func newHost() *bgHost {
	return &bgHost{
		FakeEngine:  testutil.NewFakeEngine(),
		gateFaction: make(map[strand.Gate]strand.Team),
		links:       make(map[int32]strand.Team),
	}
}

func (h *bgHost) IsPlayer(u encounter.Ref) bool                      { return u != encounter.NoRef && u < 100 }
func (h *bgHost) Despawn(u encounter.Ref)                            { h.despawned = append(h.despawned, u) }
func (h *bgHost) ClearAura(a encounter.AbilityID)                    { h.removed = append(h.removed, a) }
func (h *bgHost) Setup(defender strand.Team)                         { h.setups = append(h.setups, defender) }
func (h *bgHost) TeleportToStart(defender strand.Team)               { h.teleports = append(h.teleports, defender) }
func (h *bgHost) StartBoats(attacker strand.Team)                    { h.boats = append(h.boats, attacker) }
func (h *bgHost) EnableDemolishers(attacker strand.Team)             { h.demolishers = append(h.demolishers, attacker) }
func (h *bgHost) DespawnVehicles()                                   { h.vehiclesGone++ }
func (h *bgHost) SetCannonFaction(d strand.Team)                     { h.cannonFaction = append(h.cannonFaction, d) }
func (h *bgHost) SetGateFaction(g strand.Gate, d strand.Team)        { h.gateFaction[g] = d }
func (h *bgHost) DespawnSigil(g strand.Gate)                         { h.sigils = append(h.sigils, g) }
func (h *bgHost) UnlockRelic(attacker strand.Team)                   { h.relics = append(h.relics, attacker) }
func (h *bgHost) LinkGraveyard(id int32, team strand.Team)           { h.links[id] = team }
func (h *bgHost) HealerPosition(strand.Graveyard) encounter.Position { return encounter.Position{} }

func (h *bgHost) CastOnTeam(team strand.Team, ability encounter.AbilityID) {
	h.teamCasts = append(h.teamCasts, teamCast{team, ability})
}

func (h *bgHost) Warn(w strand.Warning, subject int, team strand.Team) {
	h.warnings = append(h.warnings, warning{w, subject, team})
}

func (h *bgHost) DemolisherSpawns(strand.Graveyard) []encounter.Position {
	return []encounter.Position{{X: 1}, {X: 2}, {X: 3}}
}

func (h *bgHost) EndBattle(winner strand.Team) {
	h.ended = true
	h.winner = winner
}

func (h *bgHost) warned(w strand.Warning) bool {
	for _, got := range h.warnings {
		if got.w == w {
			return true
		}
	}
	return false
}

func (h *bgHost) spawnsOf(entry int32) int {
	n := 0
	for _, s := range h.Spawns {
		if s.Template == entry {
			n++
		}
	}
	return n
}

func definition(t *testing.T) *encounter.Definition {
	t.Helper()
	def, err := data.NewLoader(data.Embedded()).LoadFile("strand.yaml")
	require.NoError(t, err)
	return def
}

func newBattle(t *testing.T, seed uint64) (*strand.Battle, *bgHost) {
	t.Helper()
	h := newHost()
	b, err := strand.New(definition(t), h, seed)
	require.NoError(t, err)
	return b, h
}

func send(t *testing.T, b *strand.Battle, name string, invoker encounter.Ref, value int64) bool {
	t.Helper()
	sig, err := b.Signal(name, invoker, value)
	require.NoError(t, err)
	return b.Dispatch(sig)
}

// start engages the battleground and opens the doors.
func start(t *testing.T, seed uint64) (*strand.Battle, *bgHost) {
	t.Helper()
	b, h := newBattle(t, seed)
	b.Engage()
	require.True(t, send(t, b, "battle_start", encounter.NoRef, 0))
	b.Tick(tick)
	require.Equal(t, "round_1", b.PhaseName())
	return b, h
}

func advanceTo(t *testing.T, b *strand.Battle, phase string) {
	t.Helper()
	for range 20000 {
		if b.PhaseName() == phase {
			return
		}
		b.Tick(tick)
	}
	t.Fatalf("phase %s not reached, still in %s", phase, b.PhaseName())
}

// captureWith runs the round clock down to left and hands the relic to the attacker.
func captureWith(t *testing.T, b *strand.Battle, left time.Duration) strand.Team {
	t.Helper()
	b.Tick(b.PhaseRemaining() - left)
	attacker := b.Attacker()
	require.True(t, send(t, b, "relic_captured", player, int64(attacker)))
	return attacker
}

func TestNew_RejectsOtherDefinitions(t *testing.T) {
	t.Parallel()

	def := definition(t)
	def.Name = "bg_other"
	_, err := strand.New(def, newHost(), 1)
	assert.Error(t, err)
}

func TestReset_PicksDefenderAndSetsUp(t *testing.T) {
	t.Parallel()

	seen := make(map[strand.Team]bool)
	for seed := range uint64(16) {
		b, h := newBattle(t, seed)
		defender := b.Defender()
		require.Contains(t, []strand.Team{strand.TeamAlliance, strand.TeamHorde}, defender)
		seen[defender] = true

		assert.Equal(t, defender.Other(), b.Attacker())
		assert.Equal(t, []strand.Team{defender}, h.setups)
		for g := range strand.NumGates {
			assert.Equal(t, strand.GateIntact, b.GateState(g))
		}
		for gy := range strand.NumGraveyards {
			assert.Equal(t, defender, b.GraveyardOwner(gy))
			assert.Equal(t, defender, h.links[gy.ID()])
		}
		assert.Equal(t, defender, h.links[strand.GraveyardIDShrine])
		assert.Equal(t, b.Attacker(), h.links[strand.GraveyardIDBeach])
	}
	assert.Len(t, seen, 2, "both sides get to defend across seeds")
}

func TestReset_IsReproducible(t *testing.T) {
	t.Parallel()

	a, _ := newBattle(t, 42)
	b, _ := newBattle(t, 42)
	assert.Equal(t, a.Defender(), b.Defender())

	defender := a.Defender()
	a.Engage()
	a.Fail()
	assert.Equal(t, defender, a.Defender())
	assert.Equal(t, "preparation", a.PhaseName())
}

func TestBoatsStartAfterOneMinute(t *testing.T) {
	t.Parallel()

	b, h := newBattle(t, 3)
	b.Engage()
	b.Tick(time.Minute - tick)
	assert.Empty(t, h.boats)

	b.Tick(tick)
	assert.Equal(t, []strand.Team{b.Attacker()}, h.boats)

	b.Tick(time.Minute)
	assert.Len(t, h.boats, 1)
}

func TestPreparation_IgnoresRoundEvents(t *testing.T) {
	t.Parallel()

	b, _ := newBattle(t, 3)
	b.Engage()
	assert.False(t, send(t, b, "relic_captured", player, int64(b.Attacker())))
	b.Tick(time.Hour)
	assert.Equal(t, "preparation", b.PhaseName())
}

func TestBattleStart_EngagesBattle(t *testing.T) {
	t.Parallel()

	b, _ := newBattle(t, 5)
	require.False(t, b.Engaged())
	require.True(t, send(t, b, "battle_start", encounter.NoRef, 0))
	b.Tick(tick)
	assert.True(t, b.Engaged())
	require.Equal(t, "round_1", b.PhaseName())

	for range 15 * 60 {
		b.Tick(time.Second)
	}
	assert.NotEqual(t, "round_1", b.PhaseName(), "round clock runs without a separate engage")
}

func TestRound1_OpensDoors(t *testing.T) {
	t.Parallel()

	b, h := start(t, 5)
	defender := b.Defender()

	assert.Equal(t, []strand.Team{b.Attacker()}, h.demolishers)
	assert.True(t, h.warned(strand.WarnBegin))
	assert.Equal(t, int32(1), h.Counters[strand.StateEnableTimer])
	assert.True(t, b.NotAScratch())
	assert.True(t, b.DefenseOfTheAncients(defender))
	assert.False(t, b.DefenseOfTheAncients(b.Attacker()))

	healer := strand.NpcSpiritGuideHorde
	if defender == strand.TeamAlliance {
		healer = strand.NpcSpiritGuideAlliance
	}
	assert.Equal(t, int(strand.NumGraveyards), h.spawnsOf(healer))
}

func TestRound1_TimerWorldStates(t *testing.T) {
	t.Parallel()

	b, h := start(t, 5)
	assert.Equal(t, int32(10), h.Counters[strand.StateTimerMinutes])
	assert.Equal(t, int32(0), h.Counters[strand.StateTimerTens])
	assert.Equal(t, int32(0), h.Counters[strand.StateTimerUnits])

	b.Tick(b.PhaseRemaining() - (7*time.Minute + 45*time.Second))
	b.Tick(time.Millisecond)
	assert.Equal(t, int32(7), h.Counters[strand.StateTimerMinutes])
	assert.Equal(t, int32(4), h.Counters[strand.StateTimerTens])
	assert.Equal(t, int32(5), h.Counters[strand.StateTimerUnits])
}

func TestRelicInRound1_EndsRoundEarly(t *testing.T) {
	t.Parallel()

	b, h := start(t, 5)
	attacker := captureWith(t, b, 8*time.Minute)
	assert.Equal(t, strand.Result{Captures: 1, WinTime: 8 * time.Minute}, b.Result(attacker))
	assert.Equal(t, 500*time.Millisecond, b.PhaseRemaining())

	b.Tick(499 * time.Millisecond)
	assert.Equal(t, "round_1", b.PhaseName())
	b.Tick(time.Millisecond)
	assert.Equal(t, "end_of_round", b.PhaseName())

	assert.Equal(t, 1, h.vehiclesGone)
	assert.True(t, h.warned(strand.WarnRoundFinished))
	assert.Equal(t, int32(0), h.Counters[strand.StateEnableTimer])
	assert.Equal(t, []teamCast{
		{strand.TeamAlliance, strand.SpellEndOfRound},
		{strand.TeamHorde, strand.SpellEndOfRound},
	}, h.teamCasts)
}

func TestRelicCapture_IgnoresUnknownTeam(t *testing.T) {
	t.Parallel()

	b, _ := start(t, 5)
	remaining := b.PhaseRemaining()
	assert.True(t, send(t, b, "relic_captured", player, 9))
	assert.Equal(t, remaining, b.PhaseRemaining())
	assert.Zero(t, b.Result(strand.TeamAlliance).Captures+b.Result(strand.TeamHorde).Captures)
}

func TestRoundReset_SwapsSides(t *testing.T) {
	t.Parallel()

	b, h := start(t, 8)
	first := b.Defender()
	captureWith(t, b, 9*time.Minute+50*time.Second)
	advanceTo(t, b, "round_reset")

	assert.Equal(t, first.Other(), b.Defender())
	assert.Equal(t, []strand.Team{first, first.Other()}, h.setups)
	assert.Equal(t, []strand.Team{first.Other()}, h.teleports)
	assert.Contains(t, h.removed, strand.SpellEndOfRound)
	for gy := range strand.NumGraveyards {
		assert.Equal(t, first.Other(), b.GraveyardOwner(gy))
	}

	h.boats = nil
	b.Tick(2 * time.Second)
	assert.Equal(t, []strand.Team{first}, h.boats, "the old defender sails in")

	advanceTo(t, b, "second_round_1")
	assert.True(t, h.warned(strand.WarnRoundStartOneMinute))
	assert.Equal(t, []strand.Team{first.Other()}, h.cannonFaction)

	advanceTo(t, b, "second_round_2")
	assert.True(t, h.warned(strand.WarnRoundStartHalfMinute))

	h.demolishers = nil
	advanceTo(t, b, "round_2")
	assert.Contains(t, h.removed, strand.SpellPreparation)
	assert.Equal(t, []strand.Team{first}, h.demolishers)
	assert.Equal(t, int32(1), h.Counters[strand.StateEnableTimer])
}

func TestBattle_Winner(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		first, second time.Duration // clock left at capture, 0 = no capture
		want          string
	}{
		{"tied captures, first attacker faster", 8 * time.Minute, 5 * time.Minute, "first"},
		{"tied captures, second attacker faster", 3 * time.Minute, 6 * time.Minute, "second"},
		{"tied captures, same clock", 4 * time.Minute, 4 * time.Minute, "draw"},
		{"only first attacker captured", 2 * time.Minute, 0, "first"},
		{"only second attacker captured", 0, time.Second, "second"},
		{"nobody captured", 0, 0, "draw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, h := start(t, 13)
			first := b.Attacker()
			if tt.first > 0 {
				captureWith(t, b, tt.first)
			}
			advanceTo(t, b, "round_2")
			second := b.Attacker()
			require.Equal(t, first.Other(), second)
			if tt.second > 0 {
				captureWith(t, b, tt.second)
			}
			advanceTo(t, b, "finished")

			assert.Equal(t, tt.first, b.Result(first).WinTime)
			assert.Equal(t, tt.second, b.Result(second).WinTime)

			want := map[string]strand.Team{"first": first, "second": second, "draw": strand.TeamNone}[tt.want]
			require.True(t, h.ended)
			assert.Equal(t, want, h.winner)
			assert.True(t, b.Done())
			assert.Contains(t, h.teamCasts, teamCast{strand.TeamAlliance, strand.SpellPreparation})
		})
	}
}

func TestGates(t *testing.T) {
	t.Parallel()

	b, h := start(t, 21)
	defender := b.Defender()

	assert.True(t, send(t, b, "gate_damaged", encounter.NoRef, int64(strand.GateGreen)))
	assert.Equal(t, strand.GateDamaged, b.GateState(strand.GateGreen))
	assert.Equal(t, int32(strand.GateDamaged), h.Counters[strand.GateGreen.WorldState()])
	assert.True(t, b.DefenseOfTheAncients(defender))

	send(t, b, "gate_destroyed", player, int64(strand.GateGreen))
	assert.Equal(t, strand.GateDestroyed, b.GateState(strand.GateGreen))
	assert.Equal(t, int32(3), h.Counters[strand.GateGreen.WorldState()])
	assert.Equal(t, int64(1), b.PlayerScore(player, strand.ScoreGatesDestroyed))
	assert.Equal(t, []strand.Gate{strand.GateGreen}, h.sigils)
	assert.False(t, b.DefenseOfTheAncients(defender))
	assert.Contains(t, h.warnings, warning{strand.WarnGateDestroyed, int(strand.GateGreen), strand.TeamNone})

	// a vehicle is not on the scoreboard
	send(t, b, "gate_destroyed", 5000, int64(strand.GateAncient))
	assert.Equal(t, []strand.Team{b.Attacker()}, h.relics)
	assert.Equal(t, []strand.Gate{strand.GateGreen}, h.sigils)
	assert.Equal(t, int64(1), b.PlayerScore(player, strand.ScoreGatesDestroyed))

	send(t, b, "gate_rebuilt", encounter.NoRef, int64(strand.GateGreen))
	assert.Equal(t, strand.GateIntact, b.GateState(strand.GateGreen))
	assert.Equal(t, defender, h.gateFaction[strand.GateGreen])

	send(t, b, "gate_destroyed", player, 42)
	assert.Equal(t, int64(1), b.PlayerScore(player, strand.ScoreGatesDestroyed))
}

func TestBannerClicked(t *testing.T) {
	t.Parallel()

	b, h := start(t, 21)
	attacker := b.Attacker()
	healers := b.Helpers("spirit_healer_1")
	require.Len(t, healers, 1)

	send(t, b, "banner_clicked", player, int64(strand.GraveyardEast))
	assert.Equal(t, attacker, b.GraveyardOwner(strand.GraveyardEast))
	assert.Equal(t, attacker, h.links[strand.GraveyardEast.ID()])
	assert.Len(t, b.Helpers(strand.RoleDemolisher), 3)
	assert.Contains(t, h.despawned, healers[0])
	assert.Len(t, b.Helpers("spirit_healer_1"), 1)
	assert.NotEqual(t, healers, b.Helpers("spirit_healer_1"))
	assert.Contains(t, h.warnings, warning{strand.WarnGraveyardCaptured, int(strand.GraveyardEast), attacker})

	// already held: nothing happens
	spawns := len(h.Spawns)
	send(t, b, "banner_clicked", player, int64(strand.GraveyardEast))
	assert.Len(t, h.Spawns, spawns)

	send(t, b, "banner_clicked", player, int64(strand.GraveyardSouth))
	assert.Len(t, b.Helpers(strand.RoleDemolisher), 3, "the south graveyard has no workshop")

	// a late joiner sees the graveyards as the live updates left them
	states := make(map[int32]int32)
	for _, s := range b.WorldStates() {
		states[s.ID] = s.Value
	}
	for id, v := range h.Counters {
		switch id {
		case strand.StateEnableTimer, strand.StateTimerMinutes, strand.StateTimerTens, strand.StateTimerUnits:
			continue
		}
		assert.Equal(t, v, states[id], "world state %d", id)
	}
}

func TestEndOfRound_DespawnsCapturedDemolishers(t *testing.T) {
	t.Parallel()

	b, h := start(t, 21)
	send(t, b, "banner_clicked", player, int64(strand.GraveyardWest))
	demolishers := b.Helpers(strand.RoleDemolisher)
	require.Len(t, demolishers, 3)

	advanceTo(t, b, "end_of_round")
	assert.Empty(t, b.Helpers(strand.RoleDemolisher))
	for _, ref := range demolishers {
		assert.Contains(t, h.despawned, ref)
	}
}

func TestDemolisherKilled(t *testing.T) {
	t.Parallel()

	b, _ := start(t, 21)
	send(t, b, "banner_clicked", player, int64(strand.GraveyardWest))
	victim := b.Helpers(strand.RoleDemolisher)[0]

	assert.True(t, b.Dispatch(encounter.UnitKilled{Victim: victim, Entry: strand.NpcDemolisher, Killer: player}))
	assert.Equal(t, int64(1), b.PlayerScore(player, strand.ScoreDemolishersDestroyed))
	assert.False(t, b.NotAScratch())
	assert.NotContains(t, b.Helpers(strand.RoleDemolisher), victim)

	assert.False(t, b.Dispatch(encounter.UnitKilled{Victim: 1234, Entry: strand.NpcCannon, Killer: player}))
}

func TestWorldStates(t *testing.T) {
	t.Parallel()

	for seed := range uint64(8) {
		b, _ := newBattle(t, seed)
		states := make(map[int32]int32)
		for _, s := range b.WorldStates() {
			states[s.ID] = s.Value
		}

		alliance := b.Attacker() == strand.TeamAlliance
		assert.Equal(t, boolValue(alliance), states[strand.StateAttackerAlliance])
		assert.Equal(t, boolValue(!alliance), states[strand.StateAttackerHorde])
		assert.Equal(t, int32(strand.GateIntact), states[strand.GatePurple.WorldState()])

		ancient := int32(strand.GateIntact)
		if alliance {
			ancient += 3
		}
		assert.Equal(t, ancient, states[strand.GateAncient.WorldState()])
		assert.Zero(t, states[strand.StateEnableTimer])
	}
}

func boolValue(v bool) int32 {
	if v {
		return 1
	}
	return 0
}

func TestTeam(t *testing.T) {
	t.Parallel()

	assert.Equal(t, strand.TeamHorde, strand.TeamAlliance.Other())
	assert.Equal(t, strand.TeamAlliance, strand.TeamHorde.Other())
	assert.Equal(t, strand.TeamNone, strand.TeamNone.Other())
	assert.Equal(t, "alliance", strand.TeamAlliance.String())
	assert.Equal(t, "none", strand.TeamNone.String())
}

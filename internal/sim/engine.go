// Package sim is a headless world for running encounter and spell scripts without a game
// server. It is deterministic for a given seed: casts fail at a configured rate, the scripted
// unit loses health at a fixed pace while engaged and every action is logged through slog.
package sim

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/udisondev/scriptdev/internal/encounter"
	"github.com/udisondev/scriptdev/internal/scripts"
	"github.com/udisondev/scriptdev/internal/scripts/brewfest"
	"github.com/udisondev/scriptdev/internal/scripts/malygos"
	"github.com/udisondev/scriptdev/internal/scripts/strand"
	"github.com/udisondev/scriptdev/internal/spell"
)

// Config tunes the simulated world.
type Config struct {
	// Entry is the creature entry of the scripted unit.
	Entry   int32 `yaml:"entry"`
	Heroic  bool  `yaml:"heroic"`
	Players int   `yaml:"players" validate:"gte=0,lte=80"`
	// HealthLoss is the fraction of maximum health the scripted unit loses per second
	// while engaged.
	HealthLoss   float64 `yaml:"health_loss" validate:"gte=0,lte=1"`
	CastFailRate float64 `yaml:"cast_fail_rate" validate:"gte=0,lte=1"`
}

// DefaultConfig is a ten-player group that kills the scripted unit in about five minutes.
func DefaultConfig() Config {
	return Config{
		Players:    10,
		HealthLoss: 1.0 / 300,
	}
}

const (
	selfRef    encounter.Ref = 1
	firstSpawn encounter.Ref = 1000
	meleeReach float32       = 5
)

// Rogue spells every simulated player knows.
var playerSpellbook = []spell.Info{
	{ID: 1784, Family: spell.FamilyRogue, Flags: 0x0000000000400000}, // stealth
	{ID: 1856, Family: spell.FamilyRogue, Flags: 0x0000000000000800}, // vanish
	{ID: 2983, Family: spell.FamilyRogue, Flags: 0x0000000000000040}, // sprint
	{ID: 14185, Family: spell.FamilyRogue, Flags: 0},                // preparation
}

type unit struct {
	ref       encounter.Ref
	entry     int32
	player    bool
	team      strand.Team
	alive     bool
	mounted   bool
	speed     float32
	pos       encounter.Position
	auras     map[encounter.AbilityID]int
	cooldowns map[encounter.AbilityID]bool
}

func newUnit(ref encounter.Ref, entry int32, pos encounter.Position) *unit {
	return &unit{
		ref:       ref,
		entry:     entry,
		team:      strand.TeamNone,
		alive:     true,
		speed:     1,
		pos:       pos,
		auras:     make(map[encounter.AbilityID]int),
		cooldowns: make(map[encounter.AbilityID]bool),
	}
}

// Stats counts what the scripts asked of the world.
type Stats struct {
	Casts       int
	FailedCasts int
	Lines       int
	Emotes      int
	Spawns      int
	Despawns    int
	Warnings    int
}

// Engine is the simulated world. It implements encounter.Engine and every script host
// interface of this repository. It is not safe for concurrent use; the tick manager
// serializes access.
type Engine struct {
	cfg      Config
	rng      *rand.Rand
	progress encounter.Progress

	now     time.Duration
	health  float64
	nextRef encounter.Ref
	units   map[encounter.Ref]*unit
	trigger encounter.Ref

	attackable bool
	flying     bool
	platform   bool

	env        map[int32]int32
	counters   map[int32]int32
	graveyards map[int32]strand.Team
	defender   strand.Team
	winner     strand.Team
	ended      bool

	notices []Notice
	stats   Stats
}

// New builds a world for cfg. Progress values go to p; nil keeps them in memory.
func New(cfg Config, p encounter.Progress, seed uint64) *Engine {
	if p == nil {
		p = make(memoryProgress)
	}
	e := &Engine{
		cfg:        cfg,
		rng:        rand.New(rand.NewPCG(seed, seed^0x5eed)),
		progress:   p,
		health:     1,
		nextRef:    firstSpawn,
		units:      make(map[encounter.Ref]*unit),
		attackable: true,
		platform:   true,
		env:        make(map[int32]int32),
		counters:   make(map[int32]int32),
		graveyards: make(map[int32]strand.Team),
		defender:   strand.TeamNone,
		winner:     strand.TeamNone,
	}
	e.units[selfRef] = newUnit(selfRef, cfg.Entry, encounter.Position{})
	for i := range cfg.Players {
		ref := encounter.Ref(i + 2)
		u := newUnit(ref, 0, encounter.Position{X: float32(i), Y: 2})
		u.player = true
		u.team = strand.TeamAlliance
		if i%2 == 1 {
			u.team = strand.TeamHorde
		}
		e.units[ref] = u
	}
	e.trigger = e.allocRef()
	e.units[e.trigger] = newUnit(e.trigger, 0, encounter.Position{})
	return e
}

type memoryProgress map[int32]int32

func (m memoryProgress) GetProgress(key int32) int32  { return m[key] }
func (m memoryProgress) SetProgress(key, value int32) { m[key] = value }

var (
	_ malygos.Host        = (*Engine)(nil)
	_ strand.Host         = (*Engine)(nil)
	_ brewfest.BarkerHost = (*Engine)(nil)
	_ scripts.SpellWorld  = (*Engine)(nil)
)

func (e *Engine) allocRef() encounter.Ref {
	e.nextRef++
	return e.nextRef
}

// Advance moves the world clock. The scripted unit loses health only while engaged.
func (e *Engine) Advance(delta time.Duration, engaged bool) {
	e.now += delta
	if !engaged || e.health <= 0 {
		return
	}
	e.health = max(0, e.health-e.cfg.HealthLoss*delta.Seconds())
}

// Now is the simulated time since the world was built.
func (e *Engine) Now() time.Duration { return e.now }

// SetHealth sets the scripted unit's health fraction, clamped to [0, 1].
func (e *Engine) SetHealth(f float64) { e.health = min(1, max(0, f)) }

// Dead reports whether the scripted unit ran out of health.
func (e *Engine) Dead() bool { return e.health <= 0 }

// Stats returns the action counters so far.
func (e *Engine) Stats() Stats { return e.stats }

// WorldCounter returns the last value set for a client world counter.
func (e *Engine) WorldCounter(counter int32) int32 { return e.counters[counter] }

// Winner reports the battleground result once EndBattle was called.
func (e *Engine) Winner() (strand.Team, bool) { return e.winner, e.ended }

// Players returns the player refs in order.
func (e *Engine) Players() []encounter.Ref {
	var out []encounter.Ref
	for ref, u := range e.units {
		if u.player {
			out = append(out, ref)
		}
	}
	slices.Sort(out)
	return out
}

// Kill marks u dead.
func (e *Engine) Kill(u encounter.Ref) {
	if x, ok := e.units[u]; ok {
		x.alive = false
	}
}

// Alive counts the living units of the given creature entry.
func (e *Engine) Alive(entry int32) int {
	n := 0
	for _, u := range e.units {
		if u.entry == entry && u.alive && !u.player {
			n++
		}
	}
	return n
}

// Drain returns and forgets the pending notices.
func (e *Engine) Drain() []Notice {
	out := e.notices
	e.notices = nil
	return out
}

func (e *Engine) notify(n Notice) { e.notices = append(e.notices, n) }

// encounter.Engine

func (e *Engine) TryCast(ability encounter.AbilityID, target encounter.Ref) bool {
	return e.castAs(selfRef, ability, target)
}

func (e *Engine) castAs(caster encounter.Ref, ability encounter.AbilityID, target encounter.Ref) bool {
	e.stats.Casts++
	if e.rng.Float64() < e.cfg.CastFailRate {
		e.stats.FailedCasts++
		slog.Debug("sim cast failed", "caster", caster, "ability", ability, "target", target)
		return false
	}
	if u, ok := e.units[target]; ok {
		u.auras[ability]++
	}
	slog.Debug("sim cast", "caster", caster, "ability", ability, "target", target, "at", e.now)
	return true
}

func (e *Engine) Spawn(template int32, pos encounter.Position, flags encounter.SpawnFlags) (encounter.Ref, bool) {
	ref := e.allocRef()
	e.units[ref] = newUnit(ref, template, pos)
	e.stats.Spawns++
	e.notify(Notice{Kind: NoticeSpawned, Ref: ref, Entry: template})
	slog.Debug("sim spawn", "entry", template, "ref", ref, "flags", flags)
	return ref, true
}

func (e *Engine) Say(line encounter.LineID, speaker encounter.Ref) {
	e.stats.Lines++
	slog.Info("sim say", "line", line, "speaker", speaker, "at", e.now)
}

func (e *Engine) Broadcast(line encounter.LineID, source, recipient encounter.Ref) {
	e.stats.Lines++
	slog.Info("sim broadcast", "line", line, "source", source, "recipient", recipient, "at", e.now)
}

func (e *Engine) SetEnvironmentState(zone, state int32, fade time.Duration) {
	e.env[zone] = state
	slog.Debug("sim environment", "zone", zone, "state", state, "fade", fade)
}

func (e *Engine) SetWorldCounter(counter, value int32) { e.counters[counter] = value }

func (e *Engine) GetProgress(key int32) int32  { return e.progress.GetProgress(key) }
func (e *Engine) SetProgress(key, value int32) { e.progress.SetProgress(key, value) }

func (e *Engine) Self() encounter.Ref     { return selfRef }
func (e *Engine) HealthFraction() float64 { return e.health }

func (e *Engine) SelectTarget(c encounter.TargetCriteria) (encounter.Ref, bool) {
	var pool []encounter.Ref
	for ref, u := range e.units {
		if !u.alive || ref == selfRef {
			continue
		}
		if c.Entry != 0 && u.entry == c.Entry || c.Entry == 0 && u.player {
			pool = append(pool, ref)
		}
	}
	slices.Sort(pool)
	if c.Position >= len(pool) {
		return encounter.NoRef, false
	}
	pool = pool[c.Position:]
	switch c.Mode {
	case encounter.ModeRandom:
		return pool[e.rng.IntN(len(pool))], true
	case encounter.ModeBottomAggro:
		return pool[len(pool)-1], true
	default:
		return pool[0], true
	}
}

// malygos.Host

func (e *Engine) Heroic() bool                              { return e.cfg.Heroic }
func (e *Engine) SetAttackable(on bool)                     { e.attackable = on }
func (e *Engine) SetFlying(on bool)                         { e.flying = on }
func (e *Engine) AlexstraszaTrigger() (encounter.Ref, bool) { return e.trigger, e.trigger != encounter.NoRef }

func (e *Engine) MovePoint(pos encounter.Position) {
	e.units[selfRef].pos = pos
	e.notify(Notice{Kind: NoticeWaypoint, Ref: selfRef})
}

func (e *Engine) CastAs(caster encounter.Ref, ability encounter.AbilityID, target encounter.Ref) bool {
	return e.castAs(caster, ability, target)
}

func (e *Engine) DestroyPlatform() {
	e.platform = false
	slog.Info("sim platform destroyed", "at", e.now)
}

// PlatformStanding reports whether DestroyPlatform has not run yet.
func (e *Engine) PlatformStanding() bool { return e.platform }

// Attackable reports the scripted unit's attackable flag.
func (e *Engine) Attackable() bool { return e.attackable }

// Flying reports the scripted unit's flight flag.
func (e *Engine) Flying() bool { return e.flying }

// malygos.SpellWorld

// ArcaneStormHit reports the hit back to the encounter as the arcane_storm signal.
func (e *Engine) ArcaneStormHit(boss, target encounter.Ref) {
	e.notify(Notice{Kind: NoticeSignal, Ref: target, Signal: "arcane_storm"})
}

// brewfest.BarkerHost

func (e *Engine) Entry() int32 { return e.cfg.Entry }

func (e *Engine) Emote(u encounter.Ref, emote uint32) {
	e.stats.Emotes++
	slog.Debug("sim emote", "unit", u, "emote", emote)
}

func (e *Engine) CanBeGreeted(player encounter.Ref) bool {
	u, ok := e.units[player]
	return ok && u.player && u.alive
}

// strand.Host

func (e *Engine) IsPlayer(u encounter.Ref) bool {
	x, ok := e.units[u]
	return ok && x.player
}

func (e *Engine) Despawn(u encounter.Ref) {
	if _, ok := e.units[u]; !ok {
		return
	}
	delete(e.units, u)
	e.stats.Despawns++
}

func (e *Engine) CastOnTeam(team strand.Team, ability encounter.AbilityID) {
	for _, u := range e.units {
		if u.player && u.team == team {
			u.auras[ability]++
		}
	}
}

func (e *Engine) ClearAura(ability encounter.AbilityID) {
	for _, u := range e.units {
		if u.player {
			delete(u.auras, ability)
		}
	}
}

func (e *Engine) Warn(w strand.Warning, subject int, team strand.Team) {
	e.stats.Warnings++
	slog.Info("sim warning", "warning", w, "subject", subject, "team", team, "at", e.now)
}

func (e *Engine) Setup(defender strand.Team) {
	e.defender = defender
	slog.Info("sim battleground setup", "defender", defender)
}

func (e *Engine) TeleportToStart(defender strand.Team) {
	for _, u := range e.units {
		if !u.player {
			continue
		}
		u.pos = encounter.Position{X: 1600, Y: -105, Z: 9}
		if u.team == defender {
			u.pos = encounter.Position{X: 1209, Y: -65, Z: 70}
		}
	}
}

func (e *Engine) StartBoats(attacker strand.Team) {
	slog.Info("sim boats started", "attacker", attacker, "at", e.now)
}

func (e *Engine) EnableDemolishers(attacker strand.Team) {
	slog.Debug("sim demolishers enabled", "attacker", attacker)
}

func (e *Engine) DespawnVehicles() {
	for ref, u := range e.units {
		if u.entry == strand.NpcDemolisher || u.entry == strand.NpcCannon {
			delete(e.units, ref)
			e.stats.Despawns++
		}
	}
}

func (e *Engine) SetCannonFaction(defender strand.Team)         {}
func (e *Engine) SetGateFaction(g strand.Gate, defender strand.Team) {}
func (e *Engine) DespawnSigil(g strand.Gate)                    {}

func (e *Engine) UnlockRelic(attacker strand.Team) {
	slog.Info("sim relic unlocked", "attacker", attacker, "at", e.now)
}

func (e *Engine) LinkGraveyard(id int32, team strand.Team) { e.graveyards[id] = team }

// GraveyardTeam returns the team a graveyard id is linked to.
func (e *Engine) GraveyardTeam(id int32) strand.Team {
	t, ok := e.graveyards[id]
	if !ok {
		return strand.TeamNone
	}
	return t
}

var healerPositions = [strand.NumGraveyards]encounter.Position{
	strand.GraveyardWest:  {X: 1448.78, Y: -52.97, Z: 5.74, O: 0.04},
	strand.GraveyardEast:  {X: 1401.49, Y: 107.95, Z: 9.63, O: 5.45},
	strand.GraveyardSouth: {X: 1210.68, Y: -95.46, Z: 66.69, O: 3.34},
}

func (e *Engine) HealerPosition(gy strand.Graveyard) encounter.Position { return healerPositions[gy] }

func (e *Engine) DemolisherSpawns(gy strand.Graveyard) []encounter.Position {
	base := healerPositions[gy]
	return []encounter.Position{
		{X: base.X + 8, Y: base.Y + 4, Z: base.Z, O: base.O},
		{X: base.X + 8, Y: base.Y - 4, Z: base.Z, O: base.O},
	}
}

func (e *Engine) EndBattle(winner strand.Team) {
	e.winner, e.ended = winner, true
	slog.Info("sim battle ended", "winner", winner, "at", e.now)
}

// rogue.World and brewfest.World

func (e *Engine) Spellbook(u encounter.Ref) []spell.Info {
	if x, ok := e.units[u]; ok && x.player {
		return playerSpellbook
	}
	return nil
}

func (e *Engine) SpellReady(u encounter.Ref, id encounter.AbilityID) bool {
	x, ok := e.units[u]
	return ok && !x.cooldowns[id]
}

func (e *Engine) ResetCooldown(u encounter.Ref, id encounter.AbilityID) {
	if x, ok := e.units[u]; ok {
		delete(x.cooldowns, id)
	}
}

func (e *Engine) RemoveCooldowns(u encounter.Ref, match func(spell.Info) bool) {
	x, ok := e.units[u]
	if !ok {
		return
	}
	for _, info := range e.Spellbook(u) {
		if match(info) {
			delete(x.cooldowns, info.ID)
		}
	}
}

// Cast performs a scripted cast. A spell from the caster's spellbook goes on cooldown.
func (e *Engine) Cast(caster, target encounter.Ref, id encounter.AbilityID, flags spell.Trigger) bool {
	c, ok := e.units[caster]
	if !ok || !c.alive {
		return false
	}
	if !e.castAs(caster, id, target) {
		return false
	}
	if slices.ContainsFunc(e.Spellbook(caster), func(i spell.Info) bool { return i.ID == id }) {
		c.cooldowns[id] = true
	}
	if flags&spell.TriggerHideCast == 0 {
		slog.Debug("sim scripted cast", "caster", caster, "spell", id, "flags", flags)
	}
	return true
}

// PutOnCooldown starts the cooldown of id for u.
func (e *Engine) PutOnCooldown(u encounter.Ref, id encounter.AbilityID) {
	if x, ok := e.units[u]; ok {
		x.cooldowns[id] = true
	}
}

func (e *Engine) IsAlive(u encounter.Ref) bool {
	x, ok := e.units[u]
	return ok && x.alive
}

func (e *Engine) CanAttack(attacker, target encounter.Ref) bool {
	a, ok1 := e.units[attacker]
	t, ok2 := e.units[target]
	if !ok1 || !ok2 || !a.alive || !t.alive || attacker == target {
		return false
	}
	return a.player != t.player || a.team != t.team
}

func (e *Engine) WithinCombatDistance(a, b encounter.Ref, yards float32) bool {
	x, ok1 := e.units[a]
	y, ok2 := e.units[b]
	if !ok1 || !ok2 {
		return false
	}
	return distance(x.pos, y.pos) <= yards
}

func distance(a, b encounter.Position) float32 {
	dx, dy, dz := float64(a.X-b.X), float64(a.Y-b.Y), float64(a.Z-b.Z)
	return float32(math.Sqrt(dx*dx + dy*dy + dz*dz))
}

// InMeleeReach reports whether u stands within melee reach of the scripted unit.
func (e *Engine) InMeleeReach(u encounter.Ref) bool {
	return e.WithinCombatDistance(selfRef, u, meleeReach)
}

func (e *Engine) IsAlliance(u encounter.Ref) bool {
	x, ok := e.units[u]
	return ok && x.team == strand.TeamAlliance
}

func (e *Engine) IsMounted(u encounter.Ref) bool {
	x, ok := e.units[u]
	return ok && x.mounted
}

// Mount puts u on a mount running at rate times the base speed.
func (e *Engine) Mount(u encounter.Ref, rate float32) {
	if x, ok := e.units[u]; ok {
		x.mounted, x.speed = true, rate
	}
}

func (e *Engine) Dismount(u encounter.Ref) {
	if x, ok := e.units[u]; ok {
		x.mounted, x.speed = false, 1
	}
}

func (e *Engine) RunSpeedRate(u encounter.Ref) float32 {
	if x, ok := e.units[u]; ok {
		return x.speed
	}
	return 0
}

func (e *Engine) AuraStacks(u encounter.Ref, id encounter.AbilityID) int {
	if x, ok := e.units[u]; ok {
		return x.auras[id]
	}
	return 0
}

func (e *Engine) RemoveAura(u encounter.Ref, id encounter.AbilityID) {
	if x, ok := e.units[u]; ok {
		delete(x.auras, id)
	}
}

func (e *Engine) RemoveAuraStacks(u encounter.Ref, id encounter.AbilityID, n int) {
	x, ok := e.units[u]
	if !ok {
		return
	}
	if x.auras[id] <= n {
		delete(x.auras, id)
		return
	}
	x.auras[id] -= n
}

// AddAuraStacks stacks id on u n more times.
func (e *Engine) AddAuraStacks(u encounter.Ref, id encounter.AbilityID, n int) {
	if x, ok := e.units[u]; ok {
		x.auras[id] += n
	}
}

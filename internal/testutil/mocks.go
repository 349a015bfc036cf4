package testutil

import (
	"time"

	"github.com/udisondev/scriptdev/internal/encounter"
)

// Cast: одна попытка каста, записанная FakeEngine.
type Cast struct {
	Ability encounter.AbilityID
	Target  encounter.Ref
	OK      bool
}

// Line: реплика (Say или Broadcast).
type Line struct {
	ID        encounter.LineID
	Source    encounter.Ref
	Recipient encounter.Ref
	Broadcast bool
}

// EnvChange: вызов SetEnvironmentState.
type EnvChange struct {
	Zone  int32
	State int32
	Fade  time.Duration
}

// SpawnCall: вызов Spawn.
type SpawnCall struct {
	Template int32
	Pos      encounter.Position
	Flags    encounter.SpawnFlags
	Ref      encounter.Ref
}

// FakeEngine: in-memory encounter.Engine для unit тестов.
// Записывает все вызовы, ничего не делает в мире. Не потокобезопасен:
// контроллер вызывается из одной горутины.
type FakeEngine struct {
	SelfRef encounter.Ref
	Health  float64
	// Targets отвечает на SelectTarget по режиму; отсутствие ключа = цели нет.
	Targets map[encounter.TargetMode]encounter.Ref
	// CastFunc решает успех каста; nil = всегда успех.
	CastFunc func(ability encounter.AbilityID, target encounter.Ref) bool
	// SpawnFails заставляет Spawn возвращать false.
	SpawnFails bool

	Casts    []Cast
	Lines    []Line
	Env      []EnvChange
	Counters map[int32]int32
	Progress map[int32]int32
	Spawns   []SpawnCall

	nextRef encounter.Ref
}

// NewFakeEngine создаёт FakeEngine с боссом (ref 1) на полном здоровье и жертвой (ref 2).
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{
		SelfRef: 1,
		Health:  1.0,
		Targets: map[encounter.TargetMode]encounter.Ref{
			encounter.ModeVictim: 2,
			encounter.ModeRandom: 3,
		},
		Counters: make(map[int32]int32),
		Progress: make(map[int32]int32),
		nextRef:  1000,
	}
}

var _ encounter.Engine = (*FakeEngine)(nil)

func (e *FakeEngine) TryCast(ability encounter.AbilityID, target encounter.Ref) bool {
	ok := e.CastFunc == nil || e.CastFunc(ability, target)
	e.Casts = append(e.Casts, Cast{Ability: ability, Target: target, OK: ok})
	return ok
}

func (e *FakeEngine) Spawn(template int32, pos encounter.Position, flags encounter.SpawnFlags) (encounter.Ref, bool) {
	if e.SpawnFails {
		return encounter.NoRef, false
	}
	e.nextRef++
	e.Spawns = append(e.Spawns, SpawnCall{Template: template, Pos: pos, Flags: flags, Ref: e.nextRef})
	return e.nextRef, true
}

func (e *FakeEngine) Say(line encounter.LineID, speaker encounter.Ref) {
	e.Lines = append(e.Lines, Line{ID: line, Source: speaker})
}

func (e *FakeEngine) Broadcast(line encounter.LineID, source, recipient encounter.Ref) {
	e.Lines = append(e.Lines, Line{ID: line, Source: source, Recipient: recipient, Broadcast: true})
}

func (e *FakeEngine) SetEnvironmentState(zone, state int32, fade time.Duration) {
	e.Env = append(e.Env, EnvChange{Zone: zone, State: state, Fade: fade})
}

func (e *FakeEngine) SetWorldCounter(counter, value int32) {
	e.Counters[counter] = value
}

func (e *FakeEngine) GetProgress(key int32) int32 { return e.Progress[key] }

func (e *FakeEngine) SetProgress(key, value int32) { e.Progress[key] = value }

func (e *FakeEngine) Self() encounter.Ref { return e.SelfRef }

func (e *FakeEngine) SelectTarget(c encounter.TargetCriteria) (encounter.Ref, bool) {
	ref, ok := e.Targets[c.Mode]
	return ref, ok && ref != encounter.NoRef
}

func (e *FakeEngine) HealthFraction() float64 { return e.Health }

// CastsOf возвращает успешные касты ability.
func (e *FakeEngine) CastsOf(ability encounter.AbilityID) []Cast {
	var out []Cast
	for _, c := range e.Casts {
		if c.Ability == ability && c.OK {
			out = append(out, c)
		}
	}
	return out
}

// AttemptsOf возвращает все попытки каста ability, включая неудачные.
func (e *FakeEngine) AttemptsOf(ability encounter.AbilityID) int {
	n := 0
	for _, c := range e.Casts {
		if c.Ability == ability {
			n++
		}
	}
	return n
}

// LineIDs возвращает идентификаторы всех реплик по порядку.
func (e *FakeEngine) LineIDs() []encounter.LineID {
	out := make([]encounter.LineID, 0, len(e.Lines))
	for _, l := range e.Lines {
		out = append(out, l.ID)
	}
	return out
}

// Clear сбрасывает журнал вызовов, сохраняя настройки.
func (e *FakeEngine) Clear() {
	e.Casts = nil
	e.Lines = nil
	e.Env = nil
	e.Spawns = nil
	clear(e.Counters)
	clear(e.Progress)
}

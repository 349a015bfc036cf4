package encounter_test

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/scriptdev/internal/encounter"
	"github.com/udisondev/scriptdev/internal/testutil"
)

type recordingBehavior struct {
	enters, ticks, exits int
	log                  *[]string
	name                 string
}

func (b *recordingBehavior) OnEnter(*encounter.Controller) {
	b.enters++
	*b.log = append(*b.log, "enter "+b.name)
}

func (b *recordingBehavior) OnTick(*encounter.Controller, time.Duration) { b.ticks++ }

func (b *recordingBehavior) OnExit(*encounter.Controller) {
	b.exits++
	*b.log = append(*b.log, "exit "+b.name)
}

func TestNewController_Errors(t *testing.T) {
	t.Parallel()

	eng := testutil.NewFakeEngine()

	_, err := encounter.NewController(nil, eng, encounter.Options{})
	assert.ErrorIs(t, err, encounter.ErrNilDefinition)

	_, err = encounter.NewController(testDefinition(), nil, encounter.Options{})
	assert.ErrorIs(t, err, encounter.ErrNilEngine)

	_, err = encounter.NewController(testDefinition(), eng, encounter.Options{
		Behaviors: map[encounter.Phase]encounter.Behavior{9: encounter.BehaviorFuncs{}},
	})
	assert.ErrorIs(t, err, encounter.ErrUnknownPhase)

	_, err = encounter.NewController(testDefinition(), eng, encounter.Options{
		Abilities: map[encounter.AbilityID]encounter.AbilityHandler{
			999: func(*encounter.Controller, encounter.CooldownDef) bool { return true },
		},
	})
	assert.ErrorIs(t, err, encounter.ErrUnknownAbility)

	bad := testDefinition()
	bad.Initial = 42
	_, err = encounter.NewController(bad, eng, encounter.Options{})
	assert.ErrorIs(t, err, encounter.ErrUnknownPhase)
}

func TestController_TickRunsBehaviorOnce(t *testing.T) {
	t.Parallel()

	var log []string
	floor := &recordingBehavior{name: "floor", log: &log}
	c, _ := newTestController(t, encounter.Options{
		Behaviors: map[encounter.Phase]encounter.Behavior{phFloor: floor},
	})

	c.Tick(time.Second)
	assert.Zero(t, floor.ticks, "not engaged")

	c.Engage()
	assert.Equal(t, 1, floor.enters)
	for range 10 {
		c.Tick(100 * time.Millisecond)
	}
	assert.Equal(t, 10, floor.ticks)
	assert.Equal(t, time.Second, c.Context().Elapsed)
}

func TestController_SelfTransitionIsNoop(t *testing.T) {
	t.Parallel()

	var log []string
	floor := &recordingBehavior{name: "floor", log: &log}
	c, _ := newTestController(t, encounter.Options{
		Behaviors: map[encounter.Phase]encounter.Behavior{phFloor: floor},
	})
	c.Engage()
	c.Tick(2 * time.Second)

	before, _ := c.Cooldowns().Remaining(abilityBreath)
	elapsed := c.Context().PhaseElapsed
	log = nil

	require.NoError(t, c.TransitionTo(phFloor))
	require.NoError(t, c.TransitionWith(phFloor, "outro"))

	after, _ := c.Cooldowns().Remaining(abilityBreath)
	assert.Equal(t, before, after)
	assert.Equal(t, elapsed, c.Context().PhaseElapsed)
	assert.False(t, c.Sequencer().Active())
	assert.Empty(t, log)
}

func TestController_TransitionOrder(t *testing.T) {
	t.Parallel()

	var log []string
	floor := &recordingBehavior{name: "floor", log: &log}
	discs := &recordingBehavior{name: "discs", log: &log}
	c, eng := newTestController(t, encounter.Options{
		Behaviors: map[encounter.Phase]encounter.Behavior{phFloor: floor, phDiscs: discs},
	})
	c.Engage()
	log = nil

	// Burn the discs timer while in discs, then leave and come back.
	require.NoError(t, c.TransitionTo(phDiscs))
	c.Tick(1500 * time.Millisecond)
	rem, _ := c.Cooldowns().Remaining(abilityPulse)
	assert.Equal(t, 500*time.Millisecond, rem)

	require.NoError(t, c.TransitionTo(phFloor))
	require.NoError(t, c.TransitionTo(phDiscs))
	rem, _ = c.Cooldowns().Remaining(abilityPulse)
	assert.Equal(t, 2*time.Second, rem, "scoped timer back to its initial value")

	assert.Equal(t, []string{"exit floor", "enter discs", "exit discs", "enter floor", "exit floor", "enter discs"}, log)

	// discs entry sequence plays.
	id, _, ok := c.Sequencer().Current()
	require.True(t, ok)
	assert.Equal(t, encounter.SequenceID("discs_intro"), id)
	c.Tick(time.Second)
	assert.Contains(t, eng.LineIDs(), encounter.LineID(-20))

	assert.ErrorIs(t, c.TransitionTo(77), encounter.ErrUnknownPhase)
	assert.ErrorIs(t, c.TransitionWith(phTransition, "nope"), encounter.ErrUnknownSequence)
}

func TestController_HealthExitStartsSequence(t *testing.T) {
	t.Parallel()

	c, eng := newTestController(t, encounter.Options{})
	c.Engage()
	c.Tick(time.Second)
	assert.Equal(t, phFloor, c.Phase())

	eng.Health = 0.49
	c.Tick(100 * time.Millisecond)
	assert.Equal(t, phTransition, c.Phase())
	id, _, ok := c.Sequencer().Current()
	require.True(t, ok)
	assert.Equal(t, encounter.SequenceID("outro"), id)

	outro, _ := testDefinition().Sequence("outro")
	total := outro.Duration()

	// Not before the total delay.
	tickFor(c, total-time.Millisecond, 100*time.Millisecond)
	assert.Equal(t, phTransition, c.Phase())
	assert.Equal(t, []encounter.LineID{-10}, eng.LineIDs())

	c.Tick(time.Millisecond)
	assert.Equal(t, phDiscs, c.Phase())
	assert.Equal(t, []encounter.LineID{-10, -11}, eng.LineIDs())
	require.Len(t, eng.Env, 1)
	assert.Equal(t, testutil.EnvChange{Zone: 4500, State: 1824, Fade: 5 * time.Second}, eng.Env[0])
}

func TestController_FailedCastRetries(t *testing.T) {
	t.Parallel()

	c, eng := newTestController(t, encounter.Options{})
	eng.CastFunc = func(a encounter.AbilityID, _ encounter.Ref) bool { return a != abilityBreath }
	c.Engage()

	tickFor(c, 5*time.Second, 500*time.Millisecond)
	assert.Equal(t, 1, eng.AttemptsOf(abilityBreath))
	c.Tick(100 * time.Millisecond)
	c.Tick(100 * time.Millisecond)
	assert.Equal(t, 3, eng.AttemptsOf(abilityBreath))

	rem, _ := c.Cooldowns().Remaining(abilityBreath)
	assert.Zero(t, rem)

	eng.CastFunc = nil
	c.Tick(100 * time.Millisecond)
	assert.Len(t, eng.CastsOf(abilityBreath), 1)
	rem, _ = c.Cooldowns().Remaining(abilityBreath)
	assert.GreaterOrEqual(t, rem, 3*time.Second)
	assert.LessOrEqual(t, rem, 4*time.Second)
}

func TestController_NoVictimKeepsTimerExpired(t *testing.T) {
	t.Parallel()

	c, eng := newTestController(t, encounter.Options{})
	delete(eng.Targets, encounter.ModeVictim)
	c.Engage()

	tickFor(c, 6*time.Second, time.Second)
	assert.Zero(t, eng.AttemptsOf(abilityBreath))
	rem, _ := c.Cooldowns().Remaining(abilityBreath)
	assert.Zero(t, rem)
}

func TestController_AbilityHandler(t *testing.T) {
	t.Parallel()

	calls := 0
	c, eng := newTestController(t, encounter.Options{
		Abilities: map[encounter.AbilityID]encounter.AbilityHandler{
			abilitySpark: func(c *encounter.Controller, def encounter.CooldownDef) bool {
				calls++
				_, ok := c.Spawn("spark", 30084, encounter.Position{X: 1}, encounter.SpawnTimed)
				return ok
			},
		},
	})
	c.Engage()
	tickFor(c, 10*time.Second, time.Second)

	assert.Equal(t, 1, calls)
	assert.Zero(t, eng.AttemptsOf(abilitySpark))
	assert.Len(t, c.Helpers("spark"), 1)
}

func TestController_PhaseClock(t *testing.T) {
	t.Parallel()

	c, _ := newTestController(t, encounter.Options{})
	c.Engage()
	require.NoError(t, c.TransitionTo(phTimed))
	assert.Equal(t, 10*time.Second, c.PhaseRemaining())

	tickFor(c, 9*time.Second, time.Second)
	assert.Equal(t, phTimed, c.Phase())
	assert.Equal(t, time.Second, c.PhaseRemaining())

	c.SetPhaseRemaining(500 * time.Millisecond)
	c.Tick(499 * time.Millisecond)
	assert.Equal(t, phTimed, c.Phase())
	c.Tick(time.Millisecond)
	assert.Equal(t, phFloor, c.Phase())
}

func TestController_LifecycleProgress(t *testing.T) {
	t.Parallel()

	var resets, engages, fails, completes int
	c, eng := newTestController(t, encounter.Options{Hooks: encounter.Hooks{
		OnReset:    func(*encounter.Controller) { resets++ },
		OnEngage:   func(*encounter.Controller) { engages++ },
		OnFail:     func(*encounter.Controller) { fails++ },
		OnComplete: func(*encounter.Controller) { completes++ },
	}})
	assert.Equal(t, 1, resets)

	c.Engage()
	c.Engage()
	assert.Equal(t, 1, engages)
	assert.Equal(t, int32(encounter.OutcomeInProgress), eng.Progress[7])

	c.Fail()
	assert.Equal(t, int32(encounter.OutcomeFailed), eng.Progress[7])
	assert.Equal(t, 1, fails)
	assert.Equal(t, 2, resets)
	assert.False(t, c.Engaged())

	c.Engage()
	eng.Health = 0.1
	c.Complete()
	assert.True(t, c.Done())
	assert.Equal(t, int32(encounter.OutcomeDone), eng.Progress[7])
	assert.Equal(t, 1, completes)

	// Ticks after completion do nothing.
	c.Tick(time.Hour)
	assert.Equal(t, phFloor, c.Phase())
	assert.False(t, c.Dispatch(encounter.Signal{ID: sigEnd}))
}

func TestController_SequenceRunsBeforeEngage(t *testing.T) {
	t.Parallel()

	c, eng := newTestController(t, encounter.Options{})
	require.NoError(t, c.StartSequence("intro"))

	tickFor(c, 9*time.Second, time.Second)
	assert.Equal(t, []encounter.LineID{-1, -2}, eng.LineIDs())
	assert.Equal(t, int32(1), eng.Counters[3])
	assert.Zero(t, c.Context().Elapsed)
}

func TestController_StepTargetsAndHooks(t *testing.T) {
	t.Parallel()

	var tags []string
	c, eng := newTestController(t, encounter.Options{Hooks: encounter.Hooks{
		OnStep: func(_ *encounter.Controller, s encounter.Step) { tags = append(tags, s.Tag) },
	}})

	// No "disc" helper yet: the cast step is skipped, the hook still fires.
	require.NoError(t, c.StartSequence("helper_cast"))
	c.Tick(time.Second)
	assert.Zero(t, eng.AttemptsOf(555))
	assert.Equal(t, []string{"after"}, tags)

	ref, ok := c.Spawn("disc", 30248, encounter.Position{}, encounter.SpawnPassive)
	require.True(t, ok)
	require.NoError(t, c.StartSequence("helper_cast"))
	c.Tick(time.Second)
	casts := eng.CastsOf(555)
	require.Len(t, casts, 1)
	assert.Equal(t, ref, casts[0].Target)

	eng.SpawnFails = true
	_, ok = c.Spawn("disc", 30248, encounter.Position{}, 0)
	assert.False(t, ok)
	assert.Len(t, c.Helpers("disc"), 1)
}

// script drives a controller through a deterministic but varied run.
func script(c *encounter.Controller, eng *testutil.FakeEngine, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, 0))
	c.Engage()
	for i := range 400 {
		if i == 150 {
			eng.Health = 0.3
		}
		if i%37 == 0 {
			c.Dispatch(encounter.Signal{ID: sigStorm})
		}
		c.Tick(time.Duration(rng.Int64N(400)+50) * time.Millisecond)
	}
}

func TestController_ResetMatchesFresh(t *testing.T) {
	t.Parallel()

	opts := func() encounter.Options {
		return encounter.Options{Seed: 99, Behaviors: map[encounter.Phase]encounter.Behavior{
			phDiscs: encounter.BehaviorFuncs{Tick: func(c *encounter.Controller, _ time.Duration) {
				c.Context().AddCounter("discs_ticks", 0, 1)
			}},
		}}
	}

	reused, usedEng := newTestController(t, opts())
	script(reused, usedEng, 1)
	reused.Context().SetFlag("dirty", true)
	reused.Context().AddHelper("spark", 55)
	require.NotEqual(t, phFloor, reused.Phase())

	reused.Reset()
	usedEng.Clear()
	usedEng.Health = 1.0

	fresh, freshEng := newTestController(t, opts())
	freshEng.Clear()

	assert.Equal(t, fresh.Phase(), reused.Phase())
	assert.False(t, reused.Context().Flag("dirty"))
	assert.Empty(t, reused.Helpers("spark"))

	script(reused, usedEng, 2)
	script(fresh, freshEng, 2)

	assert.Equal(t, freshEng.Casts, usedEng.Casts)
	assert.Equal(t, freshEng.Lines, usedEng.Lines)
	assert.Equal(t, freshEng.Env, usedEng.Env)
	assert.Equal(t, fresh.Phase(), reused.Phase())
	assert.Equal(t, fresh.Context().Elapsed, reused.Context().Elapsed)
	assert.Equal(t, fresh.Context().Counter("discs_ticks", 0), reused.Context().Counter("discs_ticks", 0))
	for _, a := range []encounter.AbilityID{abilityBreath, abilitySpark, abilityPulse, abilityEnrage} {
		want, _ := fresh.Cooldowns().Remaining(a)
		got, _ := reused.Cooldowns().Remaining(a)
		assert.Equal(t, want, got, "ability %d", a)
	}
}

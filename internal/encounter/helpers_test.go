package encounter_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/udisondev/scriptdev/internal/encounter"
	"github.com/udisondev/scriptdev/internal/testutil"
)

const (
	phFloor encounter.Phase = iota + 1
	phTransition
	phDiscs
	phTimed
)

const (
	abilityBreath encounter.AbilityID = 100
	abilitySpark  encounter.AbilityID = 200
	abilityPulse  encounter.AbilityID = 300
	abilityEnrage encounter.AbilityID = 400
)

const (
	sigStorm encounter.SignalID = 1
	sigEnd   encounter.SignalID = 2
)

// testDefinition is a small four-phase fight:
// floor --(health < 0.5, "outro")--> transition --(outro ends)--> discs; timed phase loops back to floor.
func testDefinition() *encounter.Definition {
	return &encounter.Definition{
		Name:        "test_boss",
		ProgressKey: 7,
		Initial:     phFloor,
		Phases: []encounter.PhaseDef{
			{ID: phFloor, Name: "floor", Exits: []encounter.ExitRule{
				{When: encounter.HealthBelow(0.5), To: phTransition, Sequence: "outro"},
			}},
			{ID: phTransition, Name: "transition"},
			{ID: phDiscs, Name: "discs", Enter: "discs_intro"},
			{ID: phTimed, Name: "timed", Duration: 10 * time.Second, Next: phFloor},
		},
		Cooldowns: []encounter.CooldownDef{
			{Name: "breath", Ability: abilityBreath, Initial: 5 * time.Second, Low: 3 * time.Second, High: 4 * time.Second, Phases: []encounter.Phase{phFloor}},
			{Name: "spark", Ability: abilitySpark, Initial: 10 * time.Second, Low: 10 * time.Second, High: 10 * time.Second, Phases: []encounter.Phase{phFloor}},
			{Name: "pulse", Ability: abilityPulse, Initial: 2 * time.Second, Low: time.Second, High: 3 * time.Second, Phases: []encounter.Phase{phDiscs}},
			{Name: "enrage", Ability: abilityEnrage, Initial: time.Minute, OneShot: true},
		},
		Sequences: map[encounter.SequenceID]*encounter.Sequence{
			"outro": {ID: "outro", Then: phDiscs, Steps: []encounter.Step{
				{Action: encounter.ActionSay, ID: -10, Target: encounter.TargetSelf},
				{Action: encounter.ActionEnvironment, Zone: 4500, ID: 1824, Fade: 5 * time.Second, Delay: 3 * time.Second},
				{Action: encounter.ActionBroadcast, ID: -11, Delay: 2 * time.Second},
			}},
			"discs_intro": {ID: "discs_intro", Steps: []encounter.Step{
				{Action: encounter.ActionSay, ID: -20, Delay: time.Second},
			}},
			"intro": {ID: "intro", Steps: []encounter.Step{
				{Action: encounter.ActionSay, ID: -1, Delay: 4 * time.Second},
				{Action: encounter.ActionSay, ID: -2, Delay: 4 * time.Second},
				{Action: encounter.ActionCounter, ID: 3, Value: 1, Delay: time.Second},
			}},
			"helper_cast": {ID: "helper_cast", Steps: []encounter.Step{
				{Action: encounter.ActionCast, ID: 555, Target: "disc"},
				{Action: encounter.ActionHook, Tag: "after", Delay: time.Second},
			}},
		},
		Signals: map[string]encounter.SignalID{
			"storm": sigStorm,
			"end":   sigEnd,
		},
	}
}

func newTestController(t *testing.T, opts encounter.Options) (*encounter.Controller, *testutil.FakeEngine) {
	t.Helper()
	eng := testutil.NewFakeEngine()
	c, err := encounter.NewController(testDefinition(), eng, opts)
	require.NoError(t, err)
	return c, eng
}

// tickFor ticks c in steps of step until total has elapsed.
func tickFor(c *encounter.Controller, total, step time.Duration) {
	for elapsed := time.Duration(0); elapsed < total; elapsed += step {
		d := min(step, total-elapsed)
		c.Tick(d)
	}
}

package scripts_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/scriptdev/internal/data"
	"github.com/udisondev/scriptdev/internal/encounter"
	"github.com/udisondev/scriptdev/internal/scripts"
	"github.com/udisondev/scriptdev/internal/scripts/brewfest"
	"github.com/udisondev/scriptdev/internal/sim"
	"github.com/udisondev/scriptdev/internal/spell"
	"github.com/udisondev/scriptdev/internal/testutil"
)

func load(t *testing.T, file string) *encounter.Definition {
	t.Helper()
	def, err := data.NewLoader(data.Embedded()).LoadFile(file)
	require.NoError(t, err)
	return def
}

func TestRegistry_Names(t *testing.T) {
	t.Parallel()

	r := scripts.NewRegistry()
	assert.Equal(t, []string{"bg_strand_of_the_ancients", "boss_malygos", "npc_brewfest_barker"}, r.Names())
	assert.True(t, r.Has("boss_malygos"))
	assert.False(t, r.Has("boss_sartharion"))
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	r := scripts.NewRegistry()
	err := r.Register("boss_malygos", nil)
	assert.ErrorIs(t, err, scripts.ErrDuplicateEncounter)

	def := &encounter.Definition{Name: "boss_custom"}
	var built bool
	require.NoError(t, r.Register("boss_custom", func(d *encounter.Definition, eng encounter.Engine, seed uint64) (scripts.Encounter, error) {
		built = true
		return encounter.NewController(load(t, "brewfest_barker.yaml"), eng, encounter.Options{Seed: seed})
	}))
	_, err = r.New(def, testutil.NewFakeEngine(), 1)
	require.NoError(t, err)
	assert.True(t, built)
}

func TestRegistry_New(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		eng     encounter.Engine
		wantErr error
		phase   string
	}{
		{"malygos on the sim", "malygos.yaml", sim.New(sim.DefaultConfig(), nil, 1), nil, "floor"},
		{"strand on the sim", "strand.yaml", sim.New(sim.DefaultConfig(), nil, 1), nil, "preparation"},
		{"barker on the sim", "brewfest_barker.yaml", sim.New(sim.Config{Entry: brewfest.NpcMaeveBarleybrew}, nil, 1), nil, "idle"},
		{"malygos without a host", "malygos.yaml", testutil.NewFakeEngine(), scripts.ErrMissingPort, ""},
		{"strand without a host", "strand.yaml", testutil.NewFakeEngine(), scripts.ErrMissingPort, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			enc, err := scripts.NewRegistry().New(load(t, tt.file), tt.eng, 1)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, enc)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.phase, enc.PhaseName())
		})
	}
}

func TestRegistry_NewUnknown(t *testing.T) {
	t.Parallel()

	_, err := scripts.NewRegistry().New(&encounter.Definition{Name: "boss_sartharion"}, testutil.NewFakeEngine(), 1)
	assert.ErrorIs(t, err, scripts.ErrUnknownEncounter)
}

func TestRegistry_BarkerRejectsOtherNpcs(t *testing.T) {
	t.Parallel()

	eng := sim.New(sim.Config{Entry: 28859}, nil, 1)
	_, err := scripts.NewRegistry().New(load(t, "brewfest_barker.yaml"), eng, 1)
	assert.Error(t, err)
}

func TestRegistry_EncountersTick(t *testing.T) {
	t.Parallel()

	eng := sim.New(sim.Config{Entry: brewfest.NpcBlixFixwidget, Players: 1}, nil, 1)
	enc, err := scripts.NewRegistry().New(load(t, "brewfest_barker.yaml"), eng, 1)
	require.NoError(t, err)
	assert.True(t, enc.Engaged(), "barkers engage on creation")
	assert.True(t, enc.Dispatch(encounter.AreaEntered{Area: 4800, Who: 2}))
	enc.Tick(100 * time.Millisecond)
	assert.Equal(t, "cooldown", enc.PhaseName())
	assert.Equal(t, 1, eng.Stats().Emotes)
}

func TestRegisterSpells(t *testing.T) {
	t.Parallel()

	r := spell.NewRegistry()
	require.NoError(t, scripts.RegisterSpells(r, sim.New(sim.DefaultConfig(), nil, 1), nil))
	for _, name := range []string{
		"spell_preparation", "spell_vanish", "spell_killing_spree",
		"spell_arcane_storm", "spell_ride_red_dragon_buddy",
	} {
		_, err := r.Lookup(name)
		assert.NoError(t, err, name)
	}
	assert.Error(t, scripts.RegisterSpells(r, sim.New(sim.DefaultConfig(), nil, 1), nil), "second registration collides")
}

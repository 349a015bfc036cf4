package data_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/scriptdev/internal/data"
	"github.com/udisondev/scriptdev/internal/encounter"
)

const minimal = `
name: tiny
initial: one
phases:
  - name: one
    exits:
      - when: "health < 0.25"
        to: two
        sequence: bye
  - name: two
    duration: 5s
    next: one
sequences:
  bye:
    then: two
    steps:
      - {action: say, id: -5, target: self}
      - {action: counter, id: 40, value: 1, delay: 1500ms}
`

func TestParse_Minimal(t *testing.T) {
	t.Parallel()

	def, err := data.Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, "tiny", def.Name)
	assert.Equal(t, encounter.Phase(1), def.Initial)
	require.Len(t, def.Phases, 2)

	two, _ := def.PhaseDef(2)
	assert.Equal(t, 5*time.Second, two.Duration)
	assert.Equal(t, encounter.Phase(1), two.Next)

	one, _ := def.PhaseDef(1)
	require.Len(t, one.Exits, 1)
	ok, err := one.Exits[0].When.Test(encounter.Snapshot{Health: 0.2})
	require.NoError(t, err)
	assert.True(t, ok)

	seq, ok := def.Sequence("bye")
	require.True(t, ok)
	assert.Equal(t, encounter.Phase(2), seq.Then)
	assert.Equal(t, 1500*time.Millisecond, seq.Duration())
	assert.Equal(t, encounter.ActionCounter, seq.Steps[1].Action)
	assert.Equal(t, int32(1), seq.Steps[1].Value)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want error
	}{
		{
			name: "unknown field",
			src:  "name: x\ninitial: a\nphases: [{name: a}]\nboss: yes\n",
		},
		{
			name: "missing name",
			src:  "initial: a\nphases: [{name: a}]\n",
		},
		{
			name: "no phases",
			src:  "name: x\ninitial: a\n",
		},
		{
			name: "unknown initial",
			src:  "name: x\ninitial: b\nphases: [{name: a}]\n",
			want: encounter.ErrUnknownPhase,
		},
		{
			name: "unknown next",
			src:  "name: x\ninitial: a\nphases: [{name: a, next: c}]\n",
			want: encounter.ErrUnknownPhase,
		},
		{
			name: "unknown sequence",
			src:  "name: x\ninitial: a\nphases: [{name: a, enter: intro}]\n",
			want: encounter.ErrUnknownSequence,
		},
		{
			name: "bad action",
			src:  "name: x\ninitial: a\nphases: [{name: a}]\nsequences: {s: {steps: [{action: dance}]}}\n",
		},
		{
			name: "transition without phase",
			src:  "name: x\ninitial: a\nphases: [{name: a}]\nsequences: {s: {steps: [{action: transition}]}}\n",
		},
		{
			name: "empty sequence",
			src:  "name: x\ninitial: a\nphases: [{name: a}]\nsequences: {s: {steps: []}}\n",
		},
		{
			name: "reset range inverted",
			src:  "name: x\ninitial: a\nphases: [{name: a}]\ncooldowns: [{name: c, ability: 5, reset_min: 10s, reset_max: 2s}]\n",
		},
		{
			name: "duplicate ability",
			src:  "name: x\ninitial: a\nphases: [{name: a}]\ncooldowns: [{name: c, ability: 5}, {name: d, ability: 5}]\n",
			want: encounter.ErrDuplicateAbility,
		},
		{
			name: "cooldown in unknown phase",
			src:  "name: x\ninitial: a\nphases: [{name: a}]\ncooldowns: [{name: c, ability: 5, phases: [z]}]\n",
			want: encounter.ErrUnknownPhase,
		},
		{
			name: "bad predicate",
			src:  "name: x\ninitial: a\nphases: [{name: a, exits: [{when: 'health <', to: a}]}]\n",
		},
		{
			name: "duplicate signal",
			src:  "name: x\ninitial: a\nsignals: [go, go]\nphases: [{name: a}]\n",
		},
		{
			name: "integer duration",
			src:  "name: x\ninitial: a\nphases: [{name: a, duration: 5}]\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			def, err := data.Parse([]byte(tt.src))
			require.Error(t, err)
			assert.Nil(t, def)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestParse_ReportsAllUnknownNames(t *testing.T) {
	t.Parallel()

	src := "name: x\ninitial: nope\nphases: [{name: a, next: gone, enter: missing}]\n"
	_, err := data.Parse([]byte(src))
	require.Error(t, err)
	assert.ErrorIs(t, err, encounter.ErrUnknownPhase)
	assert.ErrorIs(t, err, encounter.ErrUnknownSequence)
	assert.Contains(t, err.Error(), "gone")
	assert.Contains(t, err.Error(), "nope")
}

func TestEmbedded(t *testing.T) {
	t.Parallel()

	defs, err := data.NewLoader(data.Embedded()).LoadDir(".")
	require.NoError(t, err)
	assert.Equal(t, []string{"bg_strand_of_the_ancients", "boss_malygos", "npc_brewfest_barker"}, data.Names(defs))

	mal := defs["boss_malygos"]
	floor, err := mal.PhaseByName("floor")
	require.NoError(t, err)
	assert.Equal(t, floor, mal.Initial)

	seq, ok := mal.Sequence("end_phase_1")
	require.True(t, ok)
	assert.Equal(t, 25*time.Second, seq.Duration())

	seq, ok = mal.Sequence("end_phase_2")
	require.True(t, ok)
	assert.Equal(t, 32*time.Second, seq.Duration())
	assert.Equal(t, "dragons", mal.PhaseName(seq.Then))

	storm, err := mal.Signal("arcane_storm")
	require.NoError(t, err)
	assert.Equal(t, encounter.SignalID(2), storm)

	sa := defs["bg_strand_of_the_ancients"]
	r1, err := sa.PhaseByName("round_1")
	require.NoError(t, err)
	pd, _ := sa.PhaseDef(r1)
	assert.Equal(t, 10*time.Minute, pd.Duration)
	assert.Equal(t, "end_of_round", sa.PhaseName(pd.Next))
}

func TestLoader_LoadDir(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "defs/tiny.yaml", []byte(minimal), 0o644))
	require.NoError(t, afero.WriteFile(fs, "defs/copy.yml", []byte(minimal), 0o644))
	require.NoError(t, afero.WriteFile(fs, "defs/broken.yaml", []byte("name: [\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "defs/README.md", []byte("not a definition"), 0o644))
	require.NoError(t, fs.MkdirAll("defs/nested", 0o755))

	defs, err := data.NewLoader(fs).LoadDir("defs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
	assert.Contains(t, err.Error(), "already defined")

	require.Len(t, defs, 1)
	assert.Contains(t, defs, "tiny")
}

func TestLoader_MissingDir(t *testing.T) {
	t.Parallel()

	_, err := data.NewLoader(afero.NewMemMapFs()).LoadDir("nowhere")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCatalog_ReloadKeepsPreviousOnError(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "defs/tiny.yaml", []byte(minimal), 0o644))
	l := data.NewLoader(fs)

	cat, err := data.LoadCatalog(l, "defs")
	require.NoError(t, err)
	before, err := cat.Get("tiny")
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fs, "defs/tiny.yaml", []byte("name: tiny\ninitial: gone\nphases: [{name: a}]\n"), 0o644))
	_, err = cat.Reload(l, "defs/tiny.yaml")
	require.ErrorIs(t, err, encounter.ErrUnknownPhase)

	after, err := cat.Get("tiny")
	require.NoError(t, err)
	assert.Same(t, before, after)

	updated := minimal + "signals: [ping]\n"
	require.NoError(t, afero.WriteFile(fs, "defs/tiny.yaml", []byte(updated), 0o644))
	def, err := cat.Reload(l, "defs/tiny.yaml")
	require.NoError(t, err)
	assert.True(t, def.HasSignal(1))

	after, err = cat.Get("tiny")
	require.NoError(t, err)
	assert.Same(t, def, after)
	assert.Equal(t, 1, cat.Len())
	assert.Equal(t, []string{"tiny"}, cat.Names())

	_, err = cat.Get("other")
	assert.Error(t, err)
}

func TestWatcher_ReloadsChangedFile(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping filesystem watcher test in short mode")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "tiny.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o644))

	l := data.NewLoader(afero.NewOsFs())
	cat, err := data.LoadCatalog(l, dir)
	require.NoError(t, err)

	w, err := data.NewWatcher(l, cat, dir)
	require.NoError(t, err)

	reloaded := make(chan error, 8)
	w.OnReload = func(_ string, err error) { reloaded <- err }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(path, []byte(minimal+"signals: [ping]\n"), 0o644))

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload the definition")
	}

	def, err := cat.Get("tiny")
	require.NoError(t, err)
	assert.True(t, def.HasSignal(1))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/udisondev/scriptdev/internal/ai"
	"github.com/udisondev/scriptdev/internal/data"
	"github.com/udisondev/scriptdev/internal/db"
	"github.com/udisondev/scriptdev/internal/encounter"
	"github.com/udisondev/scriptdev/internal/progress"
	"github.com/udisondev/scriptdev/internal/sim"
)

// defaultDuration bounds simulations of encounters without a scenario.
const defaultDuration = 15 * time.Minute

type simOptions struct {
	runs     int
	seed     uint64
	duration time.Duration
	step     time.Duration
}

// runResult is the summary of one simulated instance.
type runResult struct {
	Instance uint32
	Seed     uint64
	Done     bool
	Phase    string
	Elapsed  time.Duration
	Outcome  encounter.Outcome
	Stats    sim.Stats
}

func newSimulateCmd(a *app) *cobra.Command {
	var opts simOptions

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml | encounter>",
		Short: "Run an encounter script in the headless world",
		Long: `Run an encounter script against the simulated world under the tick manager.

The argument is either a scenario file or an encounter name. An encounter name
uses the built-in scenario when one exists, otherwise the unit is engaged at
the start and left to the health curve.

Progress values are kept in memory, or in PostgreSQL when database.enabled is
set; finished runs are then recorded in encounter_runs.

Examples:
  scriptdev simulate boss_malygos
  scriptdev simulate boss_malygos --runs 20 --seed 100
  scriptdev simulate ./scenarios/strand_capture.yaml --step 1s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.scenario(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("seed") {
				opts.seed = s.Seed
				if opts.seed == 0 {
					opts.seed = a.cfg.Seed
				}
			}
			if opts.duration <= 0 {
				opts.duration = s.Duration
			}
			if opts.step <= 0 {
				opts.step = a.cfg.TickInterval
			}

			results, err := a.simulate(cmd.Context(), s, opts)
			if err != nil {
				return err
			}
			return printResults(cmd, s.Encounter, results)
		},
	}
	cmd.Flags().IntVarP(&opts.runs, "runs", "n", 1, "number of instances, seeded consecutively")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "seed of the first instance (default: scenario seed, then config seed)")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "simulated time limit (default: scenario duration)")
	cmd.Flags().DurationVar(&opts.step, "step", 0, "simulated tick length (default: tick_interval)")
	return cmd
}

// scenario resolves the simulate argument.
func (a *app) scenario(arg string) (*sim.Scenario, error) {
	if data.IsDefinitionFile(arg) {
		return readScenario(a.fs, arg)
	}
	s, err := sim.Builtin(arg)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, sim.ErrNoScenario) {
		return nil, err
	}
	return &sim.Scenario{
		Encounter: arg,
		Duration:  defaultDuration,
		World:     sim.DefaultConfig(),
		Actions:   []sim.Action{{Engage: true}},
	}, nil
}

func (a *app) simulate(ctx context.Context, s *sim.Scenario, opts simOptions) ([]runResult, error) {
	if opts.runs < 1 {
		return nil, fmt.Errorf("runs must be positive, got %d", opts.runs)
	}
	cat, err := a.catalog(a.cfg.DefinitionsDir)
	if err != nil {
		return nil, err
	}
	def, err := cat.Get(s.Encounter)
	if err != nil {
		return nil, err
	}

	store, repo, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	bus := progress.NewBus()
	defer bus.Close()
	tracker := progress.NewTracker(store, bus)
	if err := tracker.Init(ctx); err != nil {
		return nil, err
	}
	outcomes, err := bus.Subscribe(ctx, progress.TopicOutcome)
	if err != nil {
		return nil, fmt.Errorf("subscribing to outcomes: %w", err)
	}

	type instance struct {
		seed   uint64
		eng    *sim.Engine
		enc    interface{ PhaseName() string }
		runner *sim.Runner
	}
	mgr := ai.NewTickManager(opts.step)
	instances := make([]instance, opts.runs)
	for i := range instances {
		id := uint32(i + 1)
		seed := opts.seed + uint64(i)
		eng := sim.New(s.World, tracker.ForInstance(id), seed)
		enc, err := a.registry.New(def, eng, seed)
		if err != nil {
			return nil, err
		}
		r, err := sim.NewRunner(enc, eng, s.Actions)
		if err != nil {
			return nil, err
		}
		instances[i] = instance{seed: seed, eng: eng, enc: enc, runner: r}
		mgr.Register(id, r)
	}
	mgr.OnDone(func(id uint32, _ ai.Scripted) {
		in := instances[id-1]
		slog.Info("simulation finished", "encounter", def.Name, "instance", id, "seed", in.seed,
			"phase", in.enc.PhaseName(), "elapsed", in.runner.Elapsed())
	})

	slog.Info("simulation starting", "encounter", def.Name, "runs", opts.runs,
		"seed", opts.seed, "duration", opts.duration, "step", opts.step, "run_id", tracker.RunID())

	g, gctx := errgroup.WithContext(ctx)
	loopCtx, stopLoops := context.WithCancel(gctx)
	defer stopLoops()

	g.Go(func() error {
		for {
			select {
			case <-loopCtx.Done():
				return nil
			case msg, ok := <-outcomes:
				if !ok {
					return nil
				}
				ev, err := progress.DecodeOutcome(msg)
				msg.Ack()
				if err != nil {
					slog.Warn("dropping outcome message", "error", err)
					continue
				}
				slog.Info("encounter outcome", "instance", ev.InstanceID,
					"previous", ev.Previous, "outcome", ev.Outcome)
			}
		}
	})
	g.Go(func() error {
		if err := tracker.RunSaveLoop(loopCtx, a.cfg.SaveInterval); !errors.Is(err, context.Canceled) {
			return fmt.Errorf("progress save loop: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer stopLoops()
		for elapsed := time.Duration(0); elapsed < opts.duration && mgr.Count() > 0; elapsed += opts.step {
			if err := gctx.Err(); err != nil {
				return err
			}
			mgr.Step(opts.step)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := tracker.Flush(ctx); err != nil {
		return nil, err
	}

	results := make([]runResult, len(instances))
	for i, in := range instances {
		res := runResult{
			Instance: uint32(i + 1),
			Seed:     in.seed,
			Done:     in.runner.Done(),
			Phase:    in.enc.PhaseName(),
			Elapsed:  in.runner.Elapsed(),
			Stats:    in.eng.Stats(),
		}
		if def.ProgressKey != 0 {
			res.Outcome = encounter.Outcome(tracker.Get(res.Instance, def.ProgressKey))
		}
		results[i] = res
	}

	if repo != nil {
		if err := saveRuns(ctx, repo, def.Name, results); err != nil {
			return results, err
		}
	}
	return results, nil
}

func saveRuns(ctx context.Context, repo *db.EncounterRepository, name string, results []runResult) error {
	now := time.Now()
	var errs []error
	for _, r := range results {
		errs = append(errs, repo.SaveRun(ctx, db.RunRow{
			RunID:      uuid.New(),
			Encounter:  name,
			Seed:       int64(r.Seed),
			Outcome:    int32(r.Outcome),
			ElapsedMS:  r.Elapsed.Milliseconds(),
			FinishedAt: now,
		}))
	}
	return errors.Join(errs...)
}

// openStore picks the progress store: PostgreSQL when enabled, memory otherwise.
// The returned repository is nil without a database.
func (a *app) openStore(ctx context.Context) (progress.Store, *db.EncounterRepository, func(), error) {
	if !a.cfg.Database.Enabled {
		return progress.NewMemoryStore(), nil, func() {}, nil
	}
	dsn := a.cfg.Database.DSN()
	if err := db.RunMigrations(ctx, dsn); err != nil {
		return nil, nil, nil, err
	}
	database, err := db.New(ctx, dsn)
	if err != nil {
		return nil, nil, nil, err
	}
	repo := db.NewEncounterRepository(database.Pool())
	return &progressStoreAdapter{repo: repo}, repo, database.Close, nil
}

func printResults(cmd *cobra.Command, name string, results []runResult) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\n", name)
	fmt.Fprintln(w, "INSTANCE\tSEED\tDONE\tPHASE\tELAPSED\tOUTCOME\tCASTS\tFAILED\tLINES\tSPAWNS")
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.Instance, r.Seed, yesNo(r.Done), r.Phase, r.Elapsed, r.Outcome,
			r.Stats.Casts, r.Stats.FailedCasts, r.Stats.Lines, r.Stats.Spawns)
	}
	return w.Flush()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/udisondev/scriptdev/internal/data"
	"github.com/udisondev/scriptdev/internal/sim"
)

// ErrInvalidDefinitions is returned when validate finds at least one broken file.
var ErrInvalidDefinitions = errors.New("invalid encounter definitions")

func newValidateCmd(a *app) *cobra.Command {
	var (
		scenarios []string
		watch     bool
	)

	cmd := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Load and validate encounter definitions",
		Long: `Load every definition file under dir (default: definitions_dir from the
config, or the embedded definitions) and report configuration errors:
unknown phases, sequences or signals, bad durations, broken predicates.

Scenario files passed with --scenario are checked against the definitions too.
Exits non-zero when anything is invalid. With --watch (or hot_reload in the
config) validate keeps running and re-checks every file saved under dir.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.DefinitionsDir
			if len(args) == 1 {
				dir = args[0]
			}
			if !cmd.Flags().Changed("watch") {
				watch = a.cfg.HotReload
			}
			err := validate(cmd, a, dir, scenarios)
			if !watch {
				return err
			}
			if dir == "" {
				return errors.New("--watch needs a definitions directory")
			}
			return watchDefinitions(cmd, a, dir)
		},
	}
	cmd.Flags().StringArrayVarP(&scenarios, "scenario", "s", nil, "scenario file to check (repeatable)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep validating files as they change")
	return cmd
}

func validate(cmd *cobra.Command, a *app, dir string, scenarioFiles []string) error {
	out := cmd.OutOrStdout()
	var errs []error

	cat, err := a.catalog(dir)
	if err != nil {
		errs = append(errs, err)
		if cat == nil {
			return fmt.Errorf("%w: %w", ErrInvalidDefinitions, err)
		}
	}
	for _, name := range cat.Names() {
		if !a.registry.Has(name) {
			slog.Warn("definition has no script bound", "encounter", name)
		}
		fmt.Fprintf(out, "ok  %s\n", name)
	}

	for _, path := range scenarioFiles {
		if err := checkScenario(a.fs, cat, path); err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(out, "ok  %s\n", path)
	}

	if err := errors.Join(errs...); err != nil {
		fmt.Fprintf(out, "FAIL\n%v\n", err)
		return fmt.Errorf("%w: %d problem(s)", ErrInvalidDefinitions, len(errs))
	}
	return nil
}

func watchDefinitions(cmd *cobra.Command, a *app, dir string) error {
	loader := data.NewLoader(a.fs)
	cat := data.NewCatalog()
	w, err := data.NewWatcher(loader, cat, dir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	w.OnReload = func(path string, err error) {
		if err != nil {
			fmt.Fprintf(out, "FAIL %s\n%v\n", path, err)
			return
		}
		fmt.Fprintf(out, "ok  %s\n", path)
	}
	if err := w.Run(cmd.Context()); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func checkScenario(fsys afero.Fs, cat *data.Catalog, path string) error {
	s, err := readScenario(fsys, path)
	if err != nil {
		return err
	}
	def, err := cat.Get(s.Encounter)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := s.Check(def); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func readScenario(fsys afero.Fs, path string) (*sim.Scenario, error) {
	src, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	s, err := sim.ParseScenario(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

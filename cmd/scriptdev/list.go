package main

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/udisondev/scriptdev/internal/scripts"
	"github.com/udisondev/scriptdev/internal/sim"
	"github.com/udisondev/scriptdev/internal/spell"
)

func newListCmd(a *app) *cobra.Command {
	var spells bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List encounter definitions and the scripts bound to them",
		Long: `List every encounter definition with its phases, whether a script is
registered for it and whether a built-in simulation scenario exists.

Examples:
  scriptdev list            # encounters
  scriptdev list --spells   # spell scripts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if spells {
				return listSpells(cmd)
			}
			return listEncounters(cmd, a)
		},
	}
	cmd.Flags().BoolVar(&spells, "spells", false, "list spell scripts instead of encounters")
	return cmd
}

func listEncounters(cmd *cobra.Command, a *app) error {
	cat, err := a.catalog(a.cfg.DefinitionsDir)
	if err != nil {
		return err
	}
	scenarios := sim.BuiltinNames()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ENCOUNTER\tPHASES\tSIGNALS\tSCRIPT\tSCENARIO")
	for _, name := range cat.Names() {
		def, err := cat.Get(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
			name, len(def.Phases), len(def.Signals),
			yesNo(a.registry.Has(name)), yesNo(slices.Contains(scenarios, name)))
	}
	return w.Flush()
}

func listSpells(cmd *cobra.Command) error {
	reg := spell.NewRegistry()
	world := sim.New(sim.DefaultConfig(), nil, 1)
	if err := scripts.RegisterSpells(reg, world, rand.New(rand.NewPCG(1, 1))); err != nil {
		return fmt.Errorf("registering spell scripts: %w", err)
	}
	for _, name := range reg.Names() {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

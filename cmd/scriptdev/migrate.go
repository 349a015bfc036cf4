package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/udisondev/scriptdev/internal/db"
)

func newMigrateCmd(a *app) *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply the embedded goose migrations (encounter_progress, encounter_runs)
to the database from the config, or to --dsn.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dsn == "" {
				dsn = a.cfg.Database.DSN()
			}
			if err := db.RunMigrations(cmd.Context(), dsn); err != nil {
				return err
			}
			v, err := db.MigrationVersion(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			slog.Info("database migrations applied", "version", v)
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "PostgreSQL DSN (default: database section of the config)")
	return cmd
}

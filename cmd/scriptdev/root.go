package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/udisondev/scriptdev/internal/config"
	"github.com/udisondev/scriptdev/internal/data"
	"github.com/udisondev/scriptdev/internal/encounter"
	"github.com/udisondev/scriptdev/internal/scripts"
)

// app is the state shared by every subcommand.
type app struct {
	configPath string
	cfg        config.Runner
	registry   *scripts.Registry
	// fs holds definition directories and scenario files; tests swap in a memory fs.
	fs afero.Fs
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(afero.NewOsFs())
}

func newRootCmdWith(fsys afero.Fs) *cobra.Command {
	a := &app{registry: scripts.NewRegistry(), fs: fsys}

	root := &cobra.Command{
		Use:   "scriptdev",
		Short: "Encounter script toolkit",
		Long: `scriptdev works with the phased encounter scripts of the server emulator.

Definitions ship embedded in the binary; definitions_dir in the config (or the
directory passed to validate) overrides them by encounter name.

Use "scriptdev [command] --help" for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			a.cfg = cfg
			setupLogging(cmd.ErrOrStderr(), cfg.LogLevel)
			slog.Debug("config loaded", "tick_interval", cfg.TickInterval, "definitions_dir", cfg.DefinitionsDir, "database", cfg.Database.Enabled)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "",
		"config file (default $"+config.EnvConfigPath+" or "+config.DefaultPath+")")

	root.AddCommand(
		newListCmd(a),
		newValidateCmd(a),
		newSimulateCmd(a),
		newMigrateCmd(a),
	)
	return root
}

func setupLogging(w io.Writer, level string) {
	logLevel := parseLogLevel(level)
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})))
	encounter.EnableDebugLogging(logLevel == slog.LevelDebug)
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// catalog returns the embedded definitions overlaid with the ones under dir.
func (a *app) catalog(dir string) (*data.Catalog, error) {
	c, err := data.LoadCatalog(data.NewLoader(data.Embedded()), ".")
	if err != nil {
		return nil, fmt.Errorf("loading embedded definitions: %w", err)
	}
	if dir == "" {
		return c, nil
	}
	defs, err := data.NewLoader(a.fs).LoadDir(dir)
	for _, def := range defs {
		c.Put(def)
	}
	if err != nil {
		return c, err
	}
	return c, nil
}

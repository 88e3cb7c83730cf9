// Package cli implements the weekly-planner command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"weekly-planner/internal/app"
	"weekly-planner/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the planner CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "weekly-planner",
		Short: "Household recipe randomizer and weekly shopping list",
		Long: `Weekly Planner picks compatible recipes for a household's week and keeps
an ordered shopping list split into fresh and pantry buckets.

Configuration is read from the environment (DATABASE_DRIVER, DATABASE_DSN,
AUTH_TOKEN_SECRET, ...) and optionally from the YAML file named by PLANNER_CONFIG.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}

			cfg, err := config.NewFromEnv()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			level := cfg.LogLevel
			if opts.Verbose {
				level = "debug"
			}
			logger, err := app.NewLogger(cmd.ErrOrStderr(), level, cfg.LogFormat)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to configure logging", err)
			}
			slog.SetDefault(logger)
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewRandomizeCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewMetricsCleanupCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

func (o *RootOptions) output(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// openApp wires the application for commands that touch the database.
func (o *RootOptions) openApp(ctx context.Context) (*app.App, error) {
	a, err := app.New(ctx, o.cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open application", err)
	}
	return a, nil
}

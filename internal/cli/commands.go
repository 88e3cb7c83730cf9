package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"weekly-planner/internal/app"
	"weekly-planner/internal/planner"
	"weekly-planner/internal/shared"
)

// NewServeCommand creates the serve command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var addr, metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until SIGINT or SIGTERM. Prometheus metrics are served
on a separate listener.

Example:
  weekly-planner serve
  weekly-planner serve --addr 127.0.0.1:9000 --metrics-addr 127.0.0.1:9100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			handler, metrics, err := a.HTTPHandlers()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to build http api", err)
			}
			if addr == "" {
				addr = ":" + opts.cfg.Port
			}
			if metricsAddr == "" {
				metricsAddr = opts.cfg.MetricsAddr
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return app.ListenAndServe(ctx, addr, handler) })
			if metricsAddr != "" && metricsAddr != "off" {
				g.Go(func() error { return app.ListenAndServe(ctx, metricsAddr, metrics) })
			}
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default \":$PORT\")")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Prometheus listen address, \"off\" to disable (default $METRICS_ADDR)")
	return cmd
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			a.Close(cmd.Context())

			return opts.output(cmd).Success(
				map[string]string{"driver": opts.cfg.DatabaseDriver},
				fmt.Sprintf("Migrations applied (%s).", opts.cfg.DatabaseDriver),
			)
		},
	}
}

// RandomizeOptions holds flags for the randomize command.
type RandomizeOptions struct {
	*RootOptions
	Household int64
	Count     int
	Week      int
	Year      int
	NextWeek  bool
}

// NewRandomizeCommand creates the randomize command.
func NewRandomizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RandomizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "randomize",
		Short: "Pick random compatible recipes for a household",
		Long: `Pick recipes whose primary and secondary ingredients do not repeat.

With --next, or with --week and --year, the selection is stored as that week's plan.

Example:
  weekly-planner randomize --household 1 --count 4
  weekly-planner randomize --household 1 --next --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRandomize(cmd, opts)
		},
	}

	cmd.Flags().Int64Var(&opts.Household, "household", 0, "household id (required)")
	cmd.Flags().IntVar(&opts.Count, "count", -1, "number of recipes (default from DEFAULT_RANDOMIZE_COUNT)")
	cmd.Flags().IntVar(&opts.Week, "week", 0, "ISO week to store the plan for")
	cmd.Flags().IntVar(&opts.Year, "year", 0, "ISO year to store the plan for")
	cmd.Flags().BoolVar(&opts.NextWeek, "next", false, "store the plan for next week")
	_ = cmd.MarkFlagRequired("household")
	cmd.MarkFlagsMutuallyExclusive("next", "week")
	cmd.MarkFlagsMutuallyExclusive("next", "year")

	return cmd
}

func runRandomize(cmd *cobra.Command, opts *RandomizeOptions) error {
	count := opts.Count
	if count < 0 {
		count = opts.cfg.DefaultRandomize
	}
	year, week := opts.Year, opts.Week
	if opts.NextWeek {
		year, week = planner.NextWeek(time.Now())
	}

	a, err := opts.openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	res, err := a.Randomize(cmd.Context(), opts.Household, count, year, week)
	if err != nil {
		return operationError("randomize failed", err)
	}

	var sb strings.Builder
	if week != 0 {
		fmt.Fprintf(&sb, "Plan for %d-W%02d\n", year, week)
	}
	for i, r := range res.Recipes {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, r.Summary())
	}
	fmt.Fprintf(&sb, "%d of %d recipes selected", len(res.Recipes), res.TotalAvailable)
	return opts.output(cmd).Success(res, sb.String())
}

// NewImportCommand creates the import-recipes command.
func NewImportCommand(opts *RootOptions) *cobra.Command {
	var household int64

	cmd := &cobra.Command{
		Use:   "import-recipes <file.json>",
		Short: "Import a household's recipes from a JSON file",
		Long: `Import recipes from a JSON array of {"id", "title", "ingredients"} objects.
Ingredients are ordered by significance. Recipes already present are skipped.

Example:
  weekly-planner import-recipes --household 1 recipes.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open recipe file", err)
			}
			defer f.Close()

			a, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			summary, err := a.ImportRecipes(cmd.Context(), f, household)
			if err != nil {
				return operationError("import failed", err)
			}
			return opts.output(cmd).Success(summary, fmt.Sprintf(
				"Imported %d recipes (%d skipped, %d failed).", summary.Imported, summary.Skipped, summary.Failed))
		},
	}

	cmd.Flags().Int64Var(&household, "household", 0, "household id (required)")
	_ = cmd.MarkFlagRequired("household")
	return cmd
}

// NewMetricsCleanupCommand creates the metrics-cleanup command.
func NewMetricsCleanupCommand(opts *RootOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "metrics-cleanup",
		Short: "Remove old operation metric records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return NewExitError(ExitCommandError, "--days must not be negative")
			}
			a, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			affected, err := a.CleanupMetrics(cmd.Context(), days)
			if err != nil {
				return operationError("cleanup failed", err)
			}
			return opts.output(cmd).Success(
				map[string]int64{"removed": affected},
				fmt.Sprintf("Successfully removed %d old metric records.", affected),
			)
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "keep records for the last N days")
	return cmd
}

// NewTokenCommand creates the token command.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var (
		household int64
		ttl       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a household identity token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := shared.ValidateHousehold(household); err != nil {
				return WrapExitError(ExitCommandError, "invalid --household", err)
			}
			if err := opts.cfg.RequireAuthSecret(); err != nil {
				return WrapExitError(ExitCommandError, "cannot sign token", err)
			}
			token, err := app.SignToken(opts.cfg, household, ttl)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to sign token", err)
			}
			return opts.output(cmd).Success(map[string]string{"token": token}, token)
		},
	}

	cmd.Flags().Int64Var(&household, "household", 0, "household id (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("household")
	return cmd
}

// operationError maps core errors to exit codes: bad input is a command error.
func operationError(message string, err error) error {
	if shared.KindOf(err) == shared.KindValidation {
		return WrapExitError(ExitCommandError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}

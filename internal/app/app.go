package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"weekly-planner/internal/config"
	"weekly-planner/internal/database"
	"weekly-planner/internal/httpapi"
	"weekly-planner/internal/metrics"
	"weekly-planner/internal/planner"
	"weekly-planner/internal/recipe"
	"weekly-planner/internal/shopping"
	"weekly-planner/internal/telegram"
	"weekly-planner/internal/telemetry"
)

// App holds the application's dependencies.
type App struct {
	cfg       *config.Config
	db        *database.DB
	telemetry *telemetry.Provider
	registry  *prometheus.Registry
	opSink    *telemetry.AsyncSink

	metricsStore *metrics.Store
	recipeRepo   *recipe.Repository
	planRepo     *planner.PlanRepository
	planner      *planner.Planner
	shopping     *shopping.Service
}

// New opens the configured database, applies migrations and wires the services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	tp, err := telemetry.Init(ctx, telemetry.Options{
		Enabled:     cfg.OtelEnabled,
		Stdout:      cfg.OtelStdout,
		ServiceName: "weekly-planner",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init telemetry: %w", err)
	}

	db, err := database.NewDB(database.Options{
		Driver:          cfg.DatabaseDriver,
		DSN:             cfg.DatabaseDSN,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		AcquireTimeout:  cfg.DatabaseAcquireTimeout,
		RetryMaxElapsed: cfg.DatabaseRetryMaxElapsed,
	})
	if err != nil {
		tp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := newApp(cfg, db)
	a.telemetry = tp
	return a, nil
}

func newApp(cfg *config.Config, db *database.DB) *App {
	metricsStore := metrics.NewStore(db)
	// Operation records are written off the request path so an exhausted pool
	// cannot hold a finished request.
	opSink := telemetry.NewAsyncSink(metricsStore, telemetry.AsyncSinkOptions{
		Timeout: cfg.DatabaseAcquireTimeout,
	})
	op := telemetry.NewOperation(opSink)

	recipeRepo := recipe.NewRepository(db)
	planRepo := planner.NewPlanRepository(db)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewDBStatsCollector(db.SQL, string(db.Dialect)),
	)

	return &App{
		cfg:          cfg,
		db:           db,
		registry:     reg,
		opSink:       opSink,
		metricsStore: metricsStore,
		recipeRepo:   recipeRepo,
		planRepo:     planRepo,
		planner: planner.NewPlanner(recipeRepo,
			planner.WithPlanStore(planRepo),
			planner.WithOperation(op),
		),
		shopping: shopping.NewService(db, op),
	}
}

// Close writes pending operation records, flushes telemetry and closes the database.
func (a *App) Close(ctx context.Context) {
	a.opSink.Close()
	if a.telemetry != nil {
		a.telemetry.Shutdown(ctx)
	}
	if err := a.db.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
}

// HTTPHandlers builds the HTTP API and the Prometheus handler served on its own
// listener. It requires the token secret.
func (a *App) HTTPHandlers() (api, metrics http.Handler, err error) {
	if err := a.cfg.RequireAuthSecret(); err != nil {
		return nil, nil, err
	}
	srv := httpapi.NewServer(httpapi.Options{
		Planner:      a.planner,
		Shopping:     a.shopping,
		Auth:         httpapi.NewAuthenticator(a.cfg.AuthTokenSecret),
		Health:       a.db,
		DefaultCount: a.cfg.DefaultRandomize,
		Registry:     a.registry,
	})
	return srv.Handler(), srv.MetricsHandler(), nil
}

// BotDeps returns the services the Telegram bot talks to.
func (a *App) BotDeps() telegram.Deps {
	return telegram.Deps{
		Planner:   a.planner,
		Shopping:  a.shopping,
		Usage:     a.metricsStore,
		PoolStats: a.db.SQL.Stats,
		DataPath:  a.dataPath(),
	}
}

// dataPath is the directory holding a SQLite database, or empty for remote stores.
func (a *App) dataPath() string {
	if a.db.Dialect != database.SQLite {
		return ""
	}
	return filepath.Dir(strings.TrimPrefix(a.cfg.DatabaseDSN, "file:"))
}

// Randomize picks recipes for a household and, when week and year are set,
// stores them as that week's plan.
func (a *App) Randomize(ctx context.Context, householdID int64, count, year, week int) (*planner.RandomizeResult, error) {
	return a.planner.Randomize(ctx, planner.RandomizeRequest{
		HouseholdID: householdID,
		Count:       count,
		Week:        week,
		Year:        year,
	})
}

// CleanupMetrics removes metric records older than days.
func (a *App) CleanupMetrics(ctx context.Context, days int) (int64, error) {
	return a.metricsStore.Cleanup(ctx, days)
}

// SignToken signs an identity token for a household with the configured secret.
func SignToken(cfg *config.Config, householdID int64, ttl time.Duration) (string, error) {
	if err := cfg.RequireAuthSecret(); err != nil {
		return "", err
	}
	return httpapi.NewAuthenticator(cfg.AuthTokenSecret).IssueToken(householdID, ttl)
}

// NewLogger builds the process logger from the configured level and format.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q: must be text or json", format)
	}
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"weekly-planner/internal/app"
	"weekly-planner/internal/config"
	"weekly-planner/internal/telegram"
)

func main() {
	cfg, err := config.NewFromEnv()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger, err := app.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		slog.Error("failed to configure logging", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := cfg.RequireTelegram(); err != nil {
		slog.Error("telegram is not configured", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("bot server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server exiting")
}

func run(ctx context.Context, cfg *config.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	bot, err := telegram.NewBot(cfg, a.BotDeps())
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	bot.RegisterHandlers(mux)

	err = app.ListenAndServe(ctx, ":"+cfg.Port, mux)
	// Let replies already in progress finish before the database closes.
	bot.Wait()
	return err
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/samber/do/v2"
	slogmulti "github.com/samber/slog-multi"
)

// One invocation is one run: the external scheduler (cron, systemd timer)
// triggers the process, it executes the pipeline once and exits. Exit code
// 0 means the run reached the done state, even with individual delivery
// failures; non-zero means a fatal abort.
func main() {
	os.Exit(run())
}

func run() int {
	// Local overrides for development; missing .env is fine
	_ = godotenv.Load()

	setupLogging(AppEnvProduction)

	injector, err := SetupDI()
	if err != nil {
		slog.Error("Failed to setup dependency injection", "error", err)
		return 1
	}
	defer func() {
		if err := ShutdownDI(injector); err != nil {
			slog.Error("Error during shutdown", "error", err)
		}
	}()

	cfg, err := do.Invoke[*Config](injector)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		return 1
	}
	if cfg.AppEnv != AppEnvProduction {
		setupLogging(cfg.AppEnv)
	}

	pipeline, err := do.Invoke[*Pipeline](injector)
	if err != nil {
		slog.Error("Failed to initialize pipeline", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx, cancel := context.WithTimeout(ctx, cfg.RunTimeoutDuration())
	defer cancel()

	stats, err := pipeline.Run(runCtx)
	if err != nil {
		slog.Error("Run aborted", "state", stats.State, "error", err)
		return 1
	}

	slog.Info("Run complete",
		"passed", stats.Passed,
		"new", stats.NewlySeen,
		"delivered", stats.Delivered,
		"abandoned", stats.PermanentFailures)

	if store, err := do.Invoke[Store](injector); err == nil {
		if totals, err := store.Stats(); err == nil {
			slog.Info("Store totals",
				"seen", totals.TotalSeen,
				"delivered_distinct", totals.TotalDeliveredDistinct)
		}
	}
	return 0
}

// setupLogging wires slog with multiple handlers using slog-multi: a
// human-oriented handler on stdout (tint in local/dev), JSON errors on
// stderr for log collectors.
func setupLogging(env AppEnv) {
	var stdout slog.Handler
	switch env {
	case AppEnvLocal, AppEnvDevelopment:
		stdout = tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug})
	default:
		stdout = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	jsonHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})

	slog.SetDefault(slog.New(slogmulti.Fanout(stdout, jsonHandler)))
}

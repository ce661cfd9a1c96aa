package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/minjin8128-hub/kiwi-last/internal/app"
	"github.com/minjin8128-hub/kiwi-last/internal/config"
	"github.com/minjin8128-hub/kiwi-last/internal/logging"
)

const appName = "kiwi-last"

// version is "dev" unless set with -ldflags "-X main.version=...".
var version = "dev"

const usage = `usage: kiwi-last <command>

commands:
  collect   fetch the current reading, recompute and commit (default)
  serve     run the read-only HTTP API
  migrate   apply SQLite schema migrations`

func main() {
	cmd := "collect"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "collect", "serve", "migrate":
	case "-h", "--help", "help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", cmd, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg, version, appName)
	slog.SetDefault(logger)

	slog.Info("starting",
		"command", cmd,
		"version", version,
		"env", cfg.AppEnv,
		"log_level", cfg.LogLevel.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "collect":
		err = app.Collect(ctx, cfg, logger)
	case "serve":
		err = app.Serve(ctx, cfg, logger)
	case "migrate":
		err = app.Migrate(cfg, logger)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run failed", "command", cmd, "error", err)
		stop()
		os.Exit(1)
	}

	slog.Info("shutting down")
}

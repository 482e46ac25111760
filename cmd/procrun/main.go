// Package main provides the procrun CLI entry point.
//
// procrun runs an external tool (a script interpreter, a headless browser,
// a compiler) against a script, streams its stdio, enforces a timeout and
// reports a structured outcome through its exit code.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/randomizedcoder/go-procrun/internal/config"
	"github.com/randomizedcoder/go-procrun/internal/logging"
	"github.com/randomizedcoder/go-procrun/internal/orchestrator"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/procrun
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Handle version flag early (before flag parsing)
	if len(args) > 0 {
		arg := args[0]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("procrun %s\n", version)
			return 0
		}
	}

	cfg, err := config.ParseFlags(args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return exitUsage
	}

	// The viewer owns the terminal; logs would corrupt it.
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, "json", "info")
	} else {
		logger = logging.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.Verbose)
	}
	logging.SetDefault(logger)

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return exitUsage
	}

	if cfg.PrintCmd {
		execCfg, err := cfg.ExecConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			return exitUsage
		}
		fmt.Println(orchestrator.CommandString(cfg, execCfg))
		return 0
	}

	logger.Info("starting",
		"version", version,
		"exe", cfg.ExeName,
		"dir", cfg.ToolDir,
		"timeout", cfg.Timeout.String(),
		"priority", cfg.Priority,
		"repeat", cfg.Repeat,
		"metrics_addr", cfg.MetricsAddr,
	)

	orch, err := orchestrator.New(cfg, logger, orchestrator.WithVersion(version))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = orch.Run(ctx)
	if err != nil {
		logger.Error("run_failed", "error", err)
	}
	return exitStatus(err)
}

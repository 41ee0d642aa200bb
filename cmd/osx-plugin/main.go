// Package main is the osx-plugin CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aragon/admin-plugin-deployments/engine/commands"
	cfgenv "github.com/aragon/admin-plugin-deployments/engine/config/env"
	"github.com/aragon/admin-plugin-deployments/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lggr, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = lggr.Sync() }()

	cmd, err := commands.NewCommand(commands.Config{Logger: lggr})
	if err != nil {
		return err
	}

	return cmd.ExecuteContext(ctx)
}

// newLogger reads LOG_LEVEL before any command parses its config file.
func newLogger() (logger.Logger, error) {
	cfg, err := cfgenv.LoadEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}

	return (&logger.Config{Level: level, Development: true}).New()
}

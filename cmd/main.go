package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/desertthunder/olx/internal/shared"
	"github.com/urfave/cli/v3"
)

func newApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:    "olx",
		Usage:   "Browse and manage OpenList servers from the terminal",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   filepath.Join(shared.ConfigDir(), "config.toml"),
				Sources: cli.EnvVars("OLX_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error (overrides the config)",
				Sources: cli.EnvVars("OLX_LOG_LEVEL"),
			},
		},
		Before:   runner.Before,
		Commands: runner.register(),
	}
}

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	app := newApp(runner)
	app.After = func(ctx context.Context, cmd *cli.Command) error {
		runner.reportErrors()
		return runner.Close()
	}

	err := app.Run(context.Background(), os.Args)
	if err == nil {
		return
	}

	runner.reportErrors()
	runner.Close()
	if errors.Is(err, shared.ErrNotImplemented) {
		logger.Warn("not implemented")
		os.Exit(0)
	}
	logger.Fatalf("application error: %v", err)
}

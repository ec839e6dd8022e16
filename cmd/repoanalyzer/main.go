package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).Run(ctx, os.Args); err != nil {
		if !errors.Is(err, errAnalysisFailed) {
			slog.Default().ErrorContext(ctx, "fatal error", "error", err)
		}
		stop()
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func newApp(out io.Writer) *cli.Command {
	envFlag := &cli.StringFlag{
		Name:    "env",
		Usage:   "path to a dotenv file loaded before the environment is parsed",
		Value:   ".env",
		Sources: cli.EnvVars("REPOANALYZER_ENV_FILE"),
	}

	return &cli.Command{
		Name:   "repoanalyzer",
		Usage:  "clone Git repositories and compute code metrics for their two most recent commits",
		Flags:  []cli.Flag{envFlag},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API, the analysis worker pool and the registry reaper (default)",
				Action: serveAction,
			},
			{
				Name:      "analyze",
				Usage:     "analyze one repository synchronously and print the final job as JSON",
				ArgsUsage: "<repository-url>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return analyzeAction(ctx, cmd, out)
				},
			},
			{
				Name:   "migrate",
				Usage:  "apply the key store schema to Postgres",
				Action: migrateAction,
			},
		},
	}
}

// Package reaper provides adapters for running the job registry reaper.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/repo-analyzer/config"
	"github.com/target/repo-analyzer/internal/core"
	"github.com/target/repo-analyzer/internal/observability/statsd"
	"github.com/target/repo-analyzer/internal/service"
)

// Runner provides a simple adapter to run the reaper loop.
type Runner struct {
	reaper *service.ReaperService
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Registry core.JobRegistry
	Config   config.RegistryConfig
	Logger   *slog.Logger
	Metrics  statsd.Sink
	Notifier service.FailureNotifier
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Registry == nil {
		return nil, errors.New("job registry is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	reaper, err := service.NewReaperService(service.ReaperServiceOptions{
		Registry: opts.Registry,
		Config:   opts.Config,
		Logger:   opts.Logger,
		Metrics:  opts.Metrics,
		Notifier: opts.Notifier,
	})
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}

	return &Runner{reaper: reaper, logger: opts.Logger}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.reaper.Run(ctx)
}

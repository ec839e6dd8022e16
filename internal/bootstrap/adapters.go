package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/repo-analyzer/config"
	"github.com/target/repo-analyzer/internal/adapters/reaper"
	"github.com/target/repo-analyzer/internal/core"
	"github.com/target/repo-analyzer/internal/observability/statsd"
	"github.com/target/repo-analyzer/internal/service"
)

// ReaperConfig contains configuration for the registry reaper.
type ReaperConfig struct {
	Registry core.JobRegistry
	Logger   *slog.Logger
	Config   config.RegistryConfig
	Metrics  statsd.Sink
	Notifier service.FailureNotifier
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		Registry: cfg.Registry,
		Config:   cfg.Config,
		Logger:   cfg.Logger,
		Metrics:  cfg.Metrics,
		Notifier: cfg.Notifier,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}
	return runner.Run(ctx)
}

// WorkerPoolConfig contains configuration for the analysis worker pool loop.
type WorkerPoolConfig struct {
	Pool    *service.WorkerPool
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// RunWorkerPool dispatches queued analyses until ctx ends, then waits for started analyses to
// finish. Tasks still queued when ctx ends are finalized as canceled by the pool.
func RunWorkerPool(ctx context.Context, cfg WorkerPoolConfig) error {
	if cfg.Pool == nil {
		return errors.New("worker pool is required")
	}
	if cfg.Logger != nil {
		cfg.Logger.InfoContext(ctx, "starting analysis worker pool")
	}
	if err := cfg.Pool.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	// Started pipelines run detached from ctx; the caller bounds this wait.
	if err := cfg.Pool.Wait(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("wait for running analyses: %w", err)
	}
	if cfg.Metrics != nil {
		cfg.Metrics.Gauge("analysis.queue_depth", float64(cfg.Pool.QueueDepth()), nil)
	}
	return nil
}

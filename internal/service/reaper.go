package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/repo-analyzer/config"
	"github.com/target/repo-analyzer/internal/core"
	"github.com/target/repo-analyzer/internal/domain/model"
	obserrors "github.com/target/repo-analyzer/internal/observability/errors"
	"github.com/target/repo-analyzer/internal/observability/metrics"
	"github.com/target/repo-analyzer/internal/observability/statsd"
	"github.com/target/repo-analyzer/internal/service/failurenotifier"
)

// MsgStalled is written to Running jobs the reaper gives up on.
const MsgStalled = "Critical error: analysis stopped reporting progress"

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Registry core.JobRegistry      // Required: job registry
	Config   config.RegistryConfig // Required: TTLs and interval
	Logger   *slog.Logger          // Optional: structured logger
	Metrics  statsd.Sink           // Optional: metrics sink (StatsD-compatible)
	Notifier FailureNotifier       // Optional: told about jobs failed as stalled
	Now      func() time.Time      // Optional: defaults to time.Now
}

// ReaperService bounds the job registry.
//
// This service manages:
// - Failing Running jobs whose pipeline stopped updating them.
// - Evicting Completed and Failed jobs once they outlive the job TTL.
type ReaperService struct {
	registry core.JobRegistry
	config   config.RegistryConfig
	logger   *slog.Logger
	metrics  statsd.Sink
	notifier FailureNotifier
	now      func() time.Time
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Registry == nil {
		return nil, errors.New("JobRegistry is required")
	}
	if opts.Config.ReapInterval <= 0 {
		return nil, errors.New("reap interval must be positive")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.ReapInterval,
			"job_ttl", opts.Config.JobTTL,
			"stale_running_ttl", opts.Config.StaleRunningTTL,
		)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &ReaperService{
		registry: opts.Registry,
		config:   opts.Config,
		logger:   logger,
		metrics:  opts.Metrics,
		notifier: opts.Notifier,
		now:      now,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.ReapInterval)
	}

	// Add jitter to prevent thundering herd if multiple instances share a Redis registry
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.ReapInterval)
	defer ticker.Stop()

	if err := s.runCleanup(ctx); err != nil {
		s.logCleanupError(err, "initial cleanup")
	}

	return s.runLoop(ctx, ticker)
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.ReapInterval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	// Use modulo on uint64 before converting to avoid overflow
	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

func (s *ReaperService) runLoop(ctx context.Context, ticker *time.Ticker) error {
	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.runCleanup(ctx); err != nil {
				s.logCleanupError(err, "cleanup")
			}
		}
	}
}

// runCleanup makes one pass over the registry.
func (s *ReaperService) runCleanup(ctx context.Context) error {
	start := s.now()
	jobs, err := s.registry.List(ctx)
	if err != nil {
		s.emitCleanupMetrics(cleanupMetrics{ListErr: err, Elapsed: s.now().Sub(start)})
		return fmt.Errorf("list jobs: %w", err)
	}

	var m cleanupMetrics
	var errs []error
	m.StaleCount, m.StaleErr = s.failStaleRunningJobs(ctx, jobs)
	if m.StaleErr != nil {
		errs = append(errs, fmt.Errorf("fail stale running jobs: %w", m.StaleErr))
	}
	m.EvictedCount, m.EvictedErr = s.evictExpiredJobs(ctx, jobs)
	if m.EvictedErr != nil {
		errs = append(errs, fmt.Errorf("evict expired jobs: %w", m.EvictedErr))
	}
	m.Elapsed = s.now().Sub(start)
	s.emitCleanupMetrics(m)

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if isContextCancellation(joined) {
			return context.Canceled
		}
		return fmt.Errorf("cleanup failed: %w", joined)
	}
	return nil
}

// failStaleRunningJobs fails Running jobs not updated within StaleRunningTTL. The registry
// re-checks the entry atomically, so a job restarted or heartbeated after List is left alone.
// The entry stays queryable until the job TTL evicts it.
func (s *ReaperService) failStaleRunningJobs(ctx context.Context, jobs []model.Job) (int64, error) {
	cutoff := s.now().Add(-s.config.StaleRunningTTL)
	var count int64
	for _, job := range jobs {
		if !job.StaleRunning(cutoff) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return count, err
		}
		failed, err := s.registry.FailIfStale(ctx, job.ID, cutoff, MsgStalled)
		if err != nil {
			return count, err
		}
		if !failed {
			continue
		}
		count++
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed stale running job",
				"job_id", job.ID,
				"last_update", job.UpdatedAt,
				"max_age", s.config.StaleRunningTTL,
			)
		}
		s.notifyStalled(ctx, job.ID)
	}
	return count, nil
}

func (s *ReaperService) notifyStalled(ctx context.Context, id string) {
	if s.notifier == nil {
		return
	}
	job, err := s.registry.Get(ctx, id)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to load job for notification", "job_id", id, "error", err)
		}
		return
	}
	s.notifier.NotifyJobFailure(ctx, failurenotifier.PayloadFromJob(job))
}

// evictExpiredJobs deletes terminal jobs older than JobTTL. Entries restarted after List are
// skipped by the registry's own check.
func (s *ReaperService) evictExpiredJobs(ctx context.Context, jobs []model.Job) (int64, error) {
	if !s.config.EvictionEnabled() {
		return 0, nil
	}
	cutoff := s.now().Add(-s.config.JobTTL)
	var count int64
	for _, job := range jobs {
		if !job.Expired(cutoff) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return count, err
		}
		deleted, err := s.registry.DeleteIfExpired(ctx, job.ID, cutoff)
		if err != nil {
			return count, err
		}
		if deleted {
			count++
		}
	}

	if count > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "evicted expired jobs",
			"count", count,
			"max_age", s.config.JobTTL,
		)
	}
	return count, nil
}

type cleanupMetrics struct {
	ListErr      error
	StaleCount   int64
	StaleErr     error
	EvictedCount int64
	EvictedErr   error
	Elapsed      time.Duration
}

func (s *ReaperService) emitCleanupMetrics(m cleanupMetrics) {
	if s.metrics == nil {
		return
	}

	totalCount := m.StaleCount + m.EvictedCount
	firstErr := firstError(m.ListErr, m.StaleErr, m.EvictedErr)

	result := metrics.ResultSuccess
	if firstErr != nil {
		result = metrics.ResultError
	} else if totalCount == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{
		"result": result,
	}
	if firstErr != nil {
		if class := obserrors.Classify(firstErr); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.cleanup", 1, tags)
	if m.Elapsed > 0 {
		s.metrics.Timing("reaper.cleanup_duration", m.Elapsed, metrics.CloneTags(tags))
	}
	if m.ListErr != nil {
		return
	}

	s.emitCleanupOperationMetric("fail_stale_running", m.StaleCount, m.StaleErr)
	s.emitCleanupOperationMetric("evict_expired", m.EvictedCount, m.EvictedErr)

	if firstErr == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(s.now().Unix()), nil)
	}
}

func (s *ReaperService) emitCleanupOperationMetric(operation string, count int64, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	} else if count == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{
		"operation": operation,
		"result":    result,
	}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.cleanup_operation", 1, tags)
	if err == nil && count > 0 {
		s.metrics.Count("reaper.jobs_processed", count, metrics.CloneTags(tags))
	}
}

func (s *ReaperService) logCleanupError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}
	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}
	s.logger.Error(label+" failed", "error", err)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

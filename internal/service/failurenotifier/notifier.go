// Package failurenotifier fans failed analysis jobs out to alerting sinks.
package failurenotifier

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/target/repo-analyzer/internal/domain/model"
	"github.com/target/repo-analyzer/internal/observability/notify"
)

// Error classes derived from a failed job's message.
const (
	ClassCritical       = "critical"
	ClassCanceled       = "canceled"
	ClassAnalysisFailed = "analysis_failed"
)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the failure notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	// SkipCanceled suppresses notifications for jobs dropped before they started (shutdown).
	SkipCanceled bool
}

// Service dispatches failure events to all registered sinks.
type Service struct {
	logger       *slog.Logger
	sinks        []SinkRegistration
	skipCanceled bool
}

// NewService constructs a failure notifier.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		sinks = append(sinks, SinkRegistration{
			Name: name,
			Sink: entry.Sink,
		})
	}

	return &Service{
		logger:       logger.With("component", "failure_notifier"),
		sinks:        sinks,
		skipCanceled: opts.SkipCanceled,
	}
}

// PayloadFromJob builds the notification for a finalized job.
func PayloadFromJob(job model.Job) notify.JobFailurePayload {
	occurred := job.UpdatedAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	return notify.JobFailurePayload{
		JobID:      job.ID,
		JobType:    model.JobTypeRepoAnalysis,
		RepoURL:    job.RepoURL,
		Error:      job.Message,
		ErrorClass: ClassifyMessage(job.Message),
		Severity:   notify.SeverityCritical,
		OccurredAt: occurred,
		Metadata: map[string]string{
			"progress": strconv.Itoa(job.Progress),
		},
	}
}

// ClassifyMessage maps a failed job's message to one of the Class constants.
func ClassifyMessage(msg string) string {
	switch {
	case strings.HasPrefix(msg, "Critical error:"):
		return ClassCritical
	case strings.Contains(msg, "canceled"):
		return ClassCanceled
	default:
		return ClassAnalysisFailed
	}
}

// NotifyJobFailure fan-outs the job failure payload to all sinks.
func (s *Service) NotifyJobFailure(ctx context.Context, payload notify.JobFailurePayload) {
	if len(s.sinks) == 0 {
		return
	}

	if s.skipCanceled && payload.ErrorClass == ClassCanceled {
		s.logger.DebugContext(ctx, "skipping notification for canceled job",
			"job_id", payload.JobID,
		)
		return
	}

	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendJobFailure(ctx, payload); err != nil {
				s.logger.ErrorContext(ctx, "failure notifier delivery error",
					"sink", entry.Name,
					"job_id", payload.JobID,
					"error_class", payload.ErrorClass,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return len(s.sinks) > 0
}

package failurenotifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/repo-analyzer/internal/domain/model"
	"github.com/target/repo-analyzer/internal/observability/notify"
)

func TestServiceNotifyJobFailure(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	var received []notify.JobFailurePayload
	capture := notify.SinkFunc(func(_ context.Context, payload notify.JobFailurePayload) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, payload)
		return nil
	})
	svc := NewService(Options{
		Sinks: []SinkRegistration{{Name: "a", Sink: capture}, {Name: "b", Sink: capture}, {Name: "nil"}},
	})

	svc.NotifyJobFailure(ctx, notify.JobFailurePayload{JobID: "123"})

	require.Len(t, received, 2)
	assert.Equal(t, notify.SeverityCritical, received[0].Severity)
	assert.True(t, svc.Enabled())
}

func TestServiceDisabled(t *testing.T) {
	svc := NewService(Options{})
	assert.False(t, svc.Enabled())
	svc.NotifyJobFailure(context.Background(), notify.JobFailurePayload{JobID: "x"})
}

func TestServiceLogsErrors(t *testing.T) {
	svc := NewService(Options{
		Sinks: []SinkRegistration{{
			Name: "fail",
			Sink: notify.SinkFunc(func(context.Context, notify.JobFailurePayload) error {
				return errors.New("boom")
			}),
		}},
	})
	svc.NotifyJobFailure(context.Background(), notify.JobFailurePayload{JobID: "1"})
}

func TestServiceSkipsCanceled(t *testing.T) {
	calls := 0
	svc := NewService(Options{
		SkipCanceled: true,
		Sinks: []SinkRegistration{{
			Name: "count",
			Sink: notify.SinkFunc(func(context.Context, notify.JobFailurePayload) error {
				calls++
				return nil
			}),
		}},
	})
	job := model.Job{ID: "j", Status: model.JobStatusFailed, Message: "Analysis canceled before start"}
	svc.NotifyJobFailure(context.Background(), PayloadFromJob(job))
	assert.Zero(t, calls)

	job.Message = "Critical error: clone failed"
	svc.NotifyJobFailure(context.Background(), PayloadFromJob(job))
	assert.Equal(t, 1, calls)
}

func TestPayloadFromJob(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := PayloadFromJob(model.Job{
		ID:        "github.com_acme_widget",
		RepoURL:   "https://github.com/acme/widget",
		Status:    model.JobStatusFailed,
		Message:   "Analysis failed for both commits. Could not generate metrics.",
		Progress:  100,
		UpdatedAt: at,
	})

	assert.Equal(t, "github.com_acme_widget", p.JobID)
	assert.Equal(t, model.JobTypeRepoAnalysis, p.JobType)
	assert.Equal(t, "https://github.com/acme/widget", p.RepoURL)
	assert.Equal(t, ClassAnalysisFailed, p.ErrorClass)
	assert.Equal(t, at, p.OccurredAt)
	assert.Equal(t, "100", p.Metadata["progress"])
}

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"Critical error: Cannot locate understandMetrics.py script.", ClassCritical},
		{"Analysis canceled before start", ClassCanceled},
		{"Failed to save results for commit abc1234", ClassAnalysisFailed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyMessage(tt.msg), tt.msg)
	}
}

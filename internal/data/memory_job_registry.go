package data

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/target/repo-analyzer/internal/core"
	"github.com/target/repo-analyzer/internal/domain/model"
)

// MemoryJobRegistry is an in-process core.JobRegistry. Each instance owns its own map so tests
// and short-lived CLI runs get isolated stores.
type MemoryJobRegistry struct {
	mu    sync.RWMutex
	jobs  map[string]*model.Job
	clock TimeProvider
}

var _ core.JobRegistry = (*MemoryJobRegistry)(nil)

// MemoryJobRegistryOptions configures a MemoryJobRegistry.
type MemoryJobRegistryOptions struct {
	Clock TimeProvider // Optional: defaults to RealTimeProvider
}

// NewMemoryJobRegistry constructs an empty registry.
func NewMemoryJobRegistry(opts MemoryJobRegistryOptions) *MemoryJobRegistry {
	clock := opts.Clock
	if clock == nil {
		clock = RealTimeProvider{}
	}
	return &MemoryJobRegistry{jobs: make(map[string]*model.Job), clock: clock}
}

// modify runs fn on the entry for id under the write lock, creating a Running entry first
// when none exists.
func (r *MemoryJobRegistry) modify(id string, fn func(j *model.Job) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	j, ok := r.jobs[id]
	if !ok {
		j = &model.Job{ID: id, OutputFiles: []string{}, CreatedAt: now}
		r.jobs[id] = j
	}
	if fn(j) || !ok {
		j.UpdatedAt = now
	}
}

// TryStart registers a fresh Running entry unless the current one is Running.
func (r *MemoryJobRegistry) TryStart(_ context.Context, req model.StartJob) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.jobs[req.ID]; ok && cur.Status == model.JobStatusRunning {
		return false, nil
	}
	now := r.clock.Now()
	r.jobs[req.ID] = &model.Job{
		ID:          req.ID,
		RunID:       req.RunID,
		RepoURL:     req.RepoURL,
		Status:      model.JobStatusRunning,
		Message:     req.Message,
		Progress:    req.Progress,
		OutputFiles: []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return true, nil
}

// Update applies u with the sticky-failure rule.
func (r *MemoryJobRegistry) Update(_ context.Context, id string, u model.JobUpdate) error {
	r.modify(id, func(j *model.Job) bool {
		if j.Status == "" {
			j.Status = u.Status
			j.Message = u.Message
			return true
		}
		if !j.OwnedBy(u.RunID) {
			return false
		}
		return model.ApplyUpdate(j, u)
	})
	return nil
}

// UpdateProgress sets progress without touching status or message.
func (r *MemoryJobRegistry) UpdateProgress(_ context.Context, id string, progress int) error {
	r.modify(id, func(j *model.Job) bool {
		if j.Status == "" {
			j.Status = model.JobStatusRunning
		}
		j.Progress = progress
		return true
	})
	return nil
}

// UpdateRunProgress sets progress while runID owns the entry.
func (r *MemoryJobRegistry) UpdateRunProgress(ctx context.Context, id, runID string, progress int) error {
	if runID == "" {
		return r.UpdateProgress(ctx, id, progress)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok || !j.OwnedBy(runID) {
		return nil
	}
	j.Progress = progress
	j.UpdatedAt = r.clock.Now()
	return nil
}

// Touch refreshes UpdatedAt of an entry whose open run is runID.
func (r *MemoryJobRegistry) Touch(_ context.Context, id, runID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok || runID == "" || j.RunID != runID {
		return false, nil
	}
	j.UpdatedAt = r.clock.Now()
	return true, nil
}

// Finalize replaces the entry wholesale unless res belongs to a run that lost the entry.
func (r *MemoryJobRegistry) Finalize(_ context.Context, id string, res model.JobResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	prev := r.jobs[id]
	if prev != nil && !prev.OwnedBy(res.RunID) {
		return model.ErrRunSuperseded
	}
	j := &model.Job{
		ID:          id,
		Status:      res.Status,
		Message:     res.Message,
		Progress:    model.ProgressDone,
		OutputFiles: append([]string{}, res.OutputFiles...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if prev != nil {
		j.RepoURL = prev.RepoURL
		j.CreatedAt = prev.CreatedAt
	}
	r.jobs[id] = j
	return nil
}

// FailIfStale fails a Running entry last written before cutoff and closes its run.
func (r *MemoryJobRegistry) FailIfStale(_ context.Context, id string, cutoff time.Time, msg string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok || !j.StaleRunning(cutoff) {
		return false, nil
	}
	j.Status = model.JobStatusFailed
	j.Message = msg
	j.Progress = model.ProgressDone
	j.RunID = ""
	j.UpdatedAt = r.clock.Now()
	return true, nil
}

// Get returns a copy of the entry or a synthetic Pending entry.
func (r *MemoryJobRegistry) Get(_ context.Context, id string) (model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.jobs[id]
	if !ok {
		return model.PendingJob(id), nil
	}
	return j.Clone(), nil
}

// List returns copies of all entries ordered by id.
func (r *MemoryJobRegistry) List(_ context.Context) ([]model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.Clone())
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

// DeleteIfExpired removes a terminal entry last written before cutoff.
func (r *MemoryJobRegistry) DeleteIfExpired(_ context.Context, id string, cutoff time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok || !j.Expired(cutoff) {
		return false, nil
	}
	delete(r.jobs, id)
	return true, nil
}

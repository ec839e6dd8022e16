package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/repo-analyzer/internal/core"
	"github.com/target/repo-analyzer/internal/domain/model"
)

const (
	defaultRegistryPrefix = "repoanalyzer:"
	// maxTxRetries bounds optimistic-lock retries when concurrent writers touch the same job.
	maxTxRetries = 32
)

// RedisJobRegistry is a core.JobRegistry backed by Redis so several API instances can share job
// state. Each job is a JSON document; writes use WATCH/MULTI so read-modify-write is atomic per key.
// Keys share the "{jobs}" hash tag so the job key and the index set land in one cluster slot.
type RedisJobRegistry struct {
	client redis.UniversalClient
	prefix string
	clock  TimeProvider
}

var _ core.JobRegistry = (*RedisJobRegistry)(nil)

// RedisJobRegistryOptions configures a RedisJobRegistry.
type RedisJobRegistryOptions struct {
	Client redis.UniversalClient // Required
	Prefix string                // Optional: defaults to "repoanalyzer:"
	Clock  TimeProvider          // Optional
}

// NewRedisJobRegistry constructs a Redis-backed registry.
func NewRedisJobRegistry(opts RedisJobRegistryOptions) (*RedisJobRegistry, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = defaultRegistryPrefix
	}
	clock := opts.Clock
	if clock == nil {
		clock = RealTimeProvider{}
	}
	return &RedisJobRegistry{client: opts.Client, prefix: prefix, clock: clock}, nil
}

func (r *RedisJobRegistry) jobKey(id string) string { return r.prefix + "{jobs}:job:" + id }
func (r *RedisJobRegistry) indexKey() string        { return r.prefix + "{jobs}:index" }

// watchJob runs fn inside WATCH on the job key, retrying when a concurrent writer touched the
// key first. fn receives the current entry (nil when absent) and queues its writes on tx.
func (r *RedisJobRegistry) watchJob(ctx context.Context, id string, fn func(tx *redis.Tx, cur *model.Job) error) error {
	key := r.jobKey(id)
	txf := func(tx *redis.Tx) error {
		cur, err := loadJob(ctx, tx, key)
		if err != nil {
			return err
		}
		return fn(tx, cur)
	}

	for range maxTxRetries {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, model.ErrRunSuperseded) {
			return err
		}
		return fmt.Errorf("update job %s: %w", id, err)
	}
	return fmt.Errorf("update job %s: too much contention", id)
}

// mutate performs an optimistic read-modify-write of one job. fn receives the current entry
// (nil when absent) and returns the replacement, or nil to leave the entry unchanged.
func (r *RedisJobRegistry) mutate(ctx context.Context, id string, fn func(cur *model.Job) *model.Job) error {
	return r.watchJob(ctx, id, func(tx *redis.Tx, cur *model.Job) error {
		next := fn(cur)
		if next == nil {
			return nil
		}
		next.ID = id
		return r.store(ctx, tx, next)
	})
}

func loadJob(ctx context.Context, c redis.Cmdable, key string) (*model.Job, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	var j model.Job
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &j, nil
}

func (r *RedisJobRegistry) newJob(id string) *model.Job {
	now := r.clock.Now()
	return &model.Job{ID: id, OutputFiles: []string{}, CreatedAt: now, UpdatedAt: now}
}

// TryStart registers a fresh Running entry unless the current one is Running.
func (r *RedisJobRegistry) TryStart(ctx context.Context, req model.StartJob) (bool, error) {
	started := false
	err := r.mutate(ctx, req.ID, func(cur *model.Job) *model.Job {
		started = false
		if cur != nil && cur.Status == model.JobStatusRunning {
			return nil
		}
		started = true
		j := r.newJob(req.ID)
		j.RunID = req.RunID
		j.RepoURL = req.RepoURL
		j.Status = model.JobStatusRunning
		j.Message = req.Message
		j.Progress = req.Progress
		return j
	})
	if err != nil {
		return false, err
	}
	return started, nil
}

// Update applies u with the sticky-failure rule.
func (r *RedisJobRegistry) Update(ctx context.Context, id string, u model.JobUpdate) error {
	return r.mutate(ctx, id, func(cur *model.Job) *model.Job {
		if cur == nil {
			j := r.newJob(id)
			j.Status = u.Status
			j.Message = u.Message
			return j
		}
		if !cur.OwnedBy(u.RunID) || !model.ApplyUpdate(cur, u) {
			return nil
		}
		cur.UpdatedAt = r.clock.Now()
		return cur
	})
}

// UpdateProgress sets progress without touching status or message.
func (r *RedisJobRegistry) UpdateProgress(ctx context.Context, id string, progress int) error {
	return r.mutate(ctx, id, func(cur *model.Job) *model.Job {
		if cur == nil {
			cur = r.newJob(id)
			cur.Status = model.JobStatusRunning
		}
		cur.Progress = progress
		cur.UpdatedAt = r.clock.Now()
		return cur
	})
}

// UpdateRunProgress sets progress while runID owns the entry.
func (r *RedisJobRegistry) UpdateRunProgress(ctx context.Context, id, runID string, progress int) error {
	if runID == "" {
		return r.UpdateProgress(ctx, id, progress)
	}
	return r.mutate(ctx, id, func(cur *model.Job) *model.Job {
		if cur == nil || !cur.OwnedBy(runID) {
			return nil
		}
		cur.Progress = progress
		cur.UpdatedAt = r.clock.Now()
		return cur
	})
}

// Touch refreshes UpdatedAt of an entry whose open run is runID.
func (r *RedisJobRegistry) Touch(ctx context.Context, id, runID string) (bool, error) {
	touched := false
	err := r.mutate(ctx, id, func(cur *model.Job) *model.Job {
		touched = false
		if cur == nil || runID == "" || cur.RunID != runID {
			return nil
		}
		touched = true
		cur.UpdatedAt = r.clock.Now()
		return cur
	})
	if err != nil {
		return false, err
	}
	return touched, nil
}

// Finalize replaces the entry wholesale unless res belongs to a run that lost the entry.
func (r *RedisJobRegistry) Finalize(ctx context.Context, id string, res model.JobResult) error {
	return r.watchJob(ctx, id, func(tx *redis.Tx, cur *model.Job) error {
		if cur != nil && !cur.OwnedBy(res.RunID) {
			return model.ErrRunSuperseded
		}
		j := r.newJob(id)
		if cur != nil {
			j.RepoURL = cur.RepoURL
			j.CreatedAt = cur.CreatedAt
		}
		j.Status = res.Status
		j.Message = res.Message
		j.Progress = model.ProgressDone
		j.OutputFiles = append([]string{}, res.OutputFiles...)
		return r.store(ctx, tx, j)
	})
}

// FailIfStale fails a Running entry last written before cutoff and closes its run.
func (r *RedisJobRegistry) FailIfStale(ctx context.Context, id string, cutoff time.Time, msg string) (bool, error) {
	failed := false
	err := r.mutate(ctx, id, func(cur *model.Job) *model.Job {
		failed = false
		if cur == nil || !cur.StaleRunning(cutoff) {
			return nil
		}
		failed = true
		cur.Status = model.JobStatusFailed
		cur.Message = msg
		cur.Progress = model.ProgressDone
		cur.RunID = ""
		cur.UpdatedAt = r.clock.Now()
		return cur
	})
	if err != nil {
		return false, err
	}
	return failed, nil
}

func (r *RedisJobRegistry) store(ctx context.Context, tx *redis.Tx, j *model.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.jobKey(j.ID), data, 0)
		pipe.SAdd(ctx, r.indexKey(), j.ID)
		return nil
	})
	return err
}

// Get returns the entry or a synthetic Pending entry.
func (r *RedisJobRegistry) Get(ctx context.Context, id string) (model.Job, error) {
	j, err := loadJob(ctx, r.client, r.jobKey(id))
	if err != nil {
		return model.Job{}, err
	}
	if j == nil {
		return model.PendingJob(id), nil
	}
	return j.Clone(), nil
}

// List returns all indexed entries ordered by id. Index members whose document vanished are
// pruned from the index.
func (r *RedisJobRegistry) List(ctx context.Context) ([]model.Job, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list job ids: %w", err)
	}
	sort.Strings(ids)

	out := make([]model.Job, 0, len(ids))
	for _, id := range ids {
		j, loadErr := loadJob(ctx, r.client, r.jobKey(id))
		if loadErr != nil {
			return nil, loadErr
		}
		if j == nil {
			r.client.SRem(ctx, r.indexKey(), id)
			continue
		}
		out = append(out, j.Clone())
	}
	return out, nil
}

// DeleteIfExpired removes a terminal entry last written before cutoff.
func (r *RedisJobRegistry) DeleteIfExpired(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	deleted := false
	err := r.watchJob(ctx, id, func(tx *redis.Tx, cur *model.Job) error {
		deleted = false
		if cur == nil || !cur.Expired(cutoff) {
			return nil
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, r.jobKey(id))
			pipe.SRem(ctx, r.indexKey(), id)
			return nil
		})
		if err == nil {
			deleted = true
		}
		return err
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// Health pings Redis.
func (r *RedisJobRegistry) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

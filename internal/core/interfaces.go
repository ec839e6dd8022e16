// Package core declares the ports the analysis services depend on.
package core

import (
	"context"
	"time"

	"github.com/target/repo-analyzer/internal/domain/model"
)

// This file contains port interface definitions (hexagonal architecture).
// Services depend on these interfaces; internal/data and internal/adapters implement them.

// JobRegistry stores job status keyed by job id. Every write is an atomic read-modify-write
// on a single entry and creates the entry when absent.
type JobRegistry interface {
	// TryStart registers a Running entry owned by req.RunID unless one is already Running for
	// the same id. It reports whether the entry was (re)started.
	TryStart(ctx context.Context, req model.StartJob) (bool, error)
	// Update writes status and message, honoring the sticky-failure rule. A run-scoped update
	// is dropped when another run owns the entry.
	Update(ctx context.Context, id string, u model.JobUpdate) error
	// UpdateProgress writes progress regardless of status.
	UpdateProgress(ctx context.Context, id string, progress int) error
	// UpdateRunProgress is UpdateProgress scoped to runID. The write is dropped when another
	// run owns the entry or the entry is gone.
	UpdateRunProgress(ctx context.Context, id, runID string, progress int) error
	// Touch refreshes UpdatedAt of the entry while runID is its open run and reports whether it did.
	Touch(ctx context.Context, id, runID string) (bool, error)
	// Finalize replaces the entry wholesale with the terminal result and progress 100, and
	// closes the run. A run-scoped result for a run that no longer owns the entry is refused
	// with model.ErrRunSuperseded.
	Finalize(ctx context.Context, id string, res model.JobResult) error
	// Get returns the entry or a synthetic Pending entry when none exists.
	Get(ctx context.Context, id string) (model.Job, error)
	List(ctx context.Context) ([]model.Job, error)
	// FailIfStale fails the entry with msg only if it is still Running and was last written
	// before cutoff. It reports whether the entry was failed.
	FailIfStale(ctx context.Context, id string, cutoff time.Time, msg string) (bool, error)
	// DeleteIfExpired removes the entry only if it is terminal and was last written before
	// cutoff. It reports whether the entry was removed.
	DeleteIfExpired(ctx context.Context, id string, cutoff time.Time) (bool, error)
}

// Command describes one subprocess invocation.
type Command struct {
	Path string
	Args []string
	Dir  string
	// Env holds KEY=VALUE overrides layered on top of the parent environment.
	Env []string
}

// ProcessResult is the outcome of a finished subprocess.
type ProcessResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ProcessRunner runs a subprocess to completion. A non-zero exit code is reported in the
// result, not as an error; errors mean the process could not be started or awaited.
type ProcessRunner interface {
	Run(ctx context.Context, cmd Command) (ProcessResult, error)
}

// WorkingTree is a local clone owned by a single job.
type WorkingTree struct {
	Path string
	// RepoName is the repository base name derived from the URL, without the unique suffix.
	RepoName string
}

// RepositoryGateway acquires working trees and opens them for commit operations.
type RepositoryGateway interface {
	// Acquire shallow-clones repoURL into a freshly named directory.
	Acquire(ctx context.Context, repoURL string) (WorkingTree, error)
	Open(ctx context.Context, treePath string) (Repository, error)
}

// Repository is an open working tree. Checkout mutates the tree in place and must not be
// called concurrently.
type Repository interface {
	ResolveHead(ctx context.Context) (string, error)
	// ResolveParent returns the first parent of commit; ok is false for a root commit.
	ResolveParent(ctx context.Context, commit string) (parent string, ok bool, err error)
	Checkout(ctx context.Context, commit string) error
	Close() error
}

// Cleaner removes paths recursively after a settle delay. Removing a missing path succeeds.
type Cleaner interface {
	Delete(ctx context.Context, paths ...string) error
}

// ArtifactStore persists and serves analysis artifacts by bare file name.
type ArtifactStore interface {
	Save(ctx context.Context, name string, data []byte) error
	Read(ctx context.Context, name string) ([]byte, error)
}

// SetKeyParams groups parameters for KeyRepository.SetKey.
type SetKeyParams struct {
	UUID string
	Kind model.KeyKind
	Key  string
}

// KeyRepository stores app registrations and their API keys.
type KeyRepository interface {
	CreateRegistration(ctx context.Context, uuid string) (model.AppRegistration, error)
	// SetKey returns a NotFound AppError when the registration does not exist.
	SetKey(ctx context.Context, params SetKeyParams) error
	GetKeys(ctx context.Context, uuid string) (model.APIKeys, error)
}

// Package cleanup removes job working trees and tool sidecar files after an analysis.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/target/repo-analyzer/internal/core"
)

// Defaults used when Options leave a field unset.
const (
	DefaultInitialDelay = 3 * time.Second
	DefaultMaxAttempts  = 5
	DefaultRetryDelay   = time.Second
)

// Options configures a Manager. Zero durations are honored so tests can run without delays;
// use DefaultOptions for production values.
type Options struct {
	InitialDelay time.Duration
	MaxAttempts  int
	RetryDelay   time.Duration
	Logger       *slog.Logger
}

// DefaultOptions returns the production cleanup settings.
func DefaultOptions() Options {
	return Options{
		InitialDelay: DefaultInitialDelay,
		MaxAttempts:  DefaultMaxAttempts,
		RetryDelay:   DefaultRetryDelay,
	}
}

// Manager implements core.Cleaner with deepest-first deletion and bounded retries.
type Manager struct {
	initialDelay time.Duration
	maxAttempts  int
	retryDelay   time.Duration
	logger       *slog.Logger
}

var _ core.Cleaner = (*Manager)(nil)

// New constructs a Manager.
func New(opts Options) *Manager {
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		initialDelay: max(opts.InitialDelay, 0),
		maxAttempts:  attempts,
		retryDelay:   max(opts.RetryDelay, 0),
		logger:       logger.With("component", "cleanup"),
	}
}

// Delete waits for the settle delay once, then removes each path. Paths that are already gone
// are skipped. The returned error lists paths that survived every attempt; callers log it.
func (m *Manager) Delete(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	m.settle(ctx)

	var errs []error
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := m.deletePath(ctx, p); err != nil {
			m.logger.WarnContext(ctx, "path may not be fully deleted", "path", p, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// settle releases this process's own buffers and handles before the first attempt.
func (m *Manager) settle(ctx context.Context) {
	runtime.GC()
	if m.initialDelay <= 0 {
		return
	}
	m.logger.DebugContext(ctx, "waiting before cleanup", "delay", m.initialDelay)
	t := time.NewTimer(m.initialDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (m *Manager) deletePath(ctx context.Context, p string) error {
	if !exists(p) {
		m.logger.DebugContext(ctx, "path not found for deletion", "path", p)
		return nil
	}

	attempt := 0
	op := func() error {
		attempt++
		removeDeepestFirst(p)
		if !exists(p) {
			return nil
		}
		m.logger.DebugContext(ctx, "entries remain after cleanup pass", "path", p, "attempt", attempt)
		return fmt.Errorf("%s still present after %d attempt(s)", p, attempt)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.retryDelay), uint64(m.maxAttempts-1)), //nolint:gosec // maxAttempts is clamped positive
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "deleted path", "path", p, "attempts", attempt)
	return nil
}

// removeDeepestFirst removes files before their containing directories. Individual failures
// are left for the next pass.
func removeDeepestFirst(root string) {
	var entries []string
	_ = filepath.WalkDir(root, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable entries are retried on the next pass
		}
		entries = append(entries, path)
		return nil
	})
	for i := len(entries) - 1; i >= 0; i-- {
		removeEntry(entries[i])
	}
}

func removeEntry(path string) {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return
	}
	// Read-only files (e.g. git pack files on Windows) need write permission first.
	if chmodErr := os.Chmod(path, 0o700); chmodErr == nil {
		_ = os.Remove(path)
	}
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return !errors.Is(err, fs.ErrNotExist)
}

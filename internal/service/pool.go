package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

const (
	defaultPoolWorkers   = 4
	defaultPoolQueueSize = 64
)

var (
	// ErrQueueFull is returned by Submit when the pending queue is at capacity.
	ErrQueueFull = errors.New("worker pool queue is full")
	// ErrPoolClosed is returned by Submit after the pool has stopped dispatching.
	ErrPoolClosed = errors.New("worker pool is closed")
)

// Task is one unit of background work.
type Task struct {
	ID string
	// Run executes the work. Its context is detached from Handle.Cancel once the task starts.
	Run func(ctx context.Context)
	// OnCancel is called instead of Run when the task is canceled before it starts. Optional.
	OnCancel func()
}

// Handle tracks one submitted task.
type Handle struct {
	ID string

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started atomic.Bool
	task    Task
}

func newHandle(t Task) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handle{ID: t.ID, ctx: ctx, cancel: cancel, done: make(chan struct{}), task: t}
}

// Done is closed once the task has run or been skipped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel prevents the task from starting if it is still queued. A running task is unaffected.
func (h *Handle) Cancel() { h.cancel() }

// Started reports whether Run was invoked.
func (h *Handle) Started() bool { return h.started.Load() }

// Wait blocks until the task finishes or ctx ends.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WorkerPoolOptions configures a WorkerPool.
type WorkerPoolOptions struct {
	Workers   int          // Optional: defaults to 4
	QueueSize int          // Optional: defaults to 64
	Logger    *slog.Logger // Optional
}

// WorkerPool runs tasks on at most Workers goroutines, buffering up to QueueSize pending tasks.
type WorkerPool struct {
	workers int64
	sem     *semaphore.Weighted
	queue   chan *Handle
	logger  *slog.Logger

	mu      sync.Mutex
	closed  bool
	stopped chan struct{}
}

// NewWorkerPool constructs a pool. Call Run to start dispatching.
func NewWorkerPool(opts WorkerPoolOptions) *WorkerPool {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultPoolWorkers
	}
	size := opts.QueueSize
	if size <= 0 {
		size = defaultPoolQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		workers: int64(workers),
		sem:     semaphore.NewWeighted(int64(workers)),
		queue:   make(chan *Handle, size),
		logger:  logger.With("component", "worker_pool"),
		stopped: make(chan struct{}),
	}
}

// Submit enqueues t without blocking.
func (p *WorkerPool) Submit(t Task) (*Handle, error) {
	if t.Run == nil {
		return nil, errors.New("task run function is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}

	h := newHandle(t)
	select {
	case p.queue <- h:
		return h, nil
	default:
		h.cancel()
		return nil, fmt.Errorf("%w (capacity %d)", ErrQueueFull, cap(p.queue))
	}
}

// QueueDepth returns the number of tasks waiting for a worker.
func (p *WorkerPool) QueueDepth() int { return len(p.queue) }

// Run dispatches queued tasks until ctx is canceled, then skips anything still queued. Tasks
// already started keep running; use Wait to block on them.
func (p *WorkerPool) Run(ctx context.Context) error {
	defer close(p.stopped)
	p.logger.InfoContext(ctx, "worker pool started", "workers", p.workers, "queue_size", cap(p.queue))

	for {
		select {
		case <-ctx.Done():
			p.drain()
			return nil
		case h := <-p.queue:
			if h.ctx.Err() != nil {
				p.skip(h)
				continue
			}
			if err := p.sem.Acquire(ctx, 1); err != nil {
				p.skip(h)
				p.drain()
				return nil
			}
			go func() {
				defer p.sem.Release(1)
				p.execute(h)
			}()
		}
	}
}

// Wait blocks until Run has returned and every started task has finished, or ctx ends.
func (p *WorkerPool) Wait(ctx context.Context) error {
	select {
	case <-p.stopped:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := p.sem.Acquire(ctx, p.workers); err != nil {
		return err
	}
	p.sem.Release(p.workers)
	return nil
}

func (p *WorkerPool) drain() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	for {
		select {
		case h := <-p.queue:
			p.skip(h)
		default:
			return
		}
	}
}

func (p *WorkerPool) skip(h *Handle) {
	defer close(h.done)
	p.logger.Info("task canceled before start", "task_id", h.ID)
	if h.task.OnCancel != nil {
		h.task.OnCancel()
	}
}

func (p *WorkerPool) execute(h *Handle) {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "task_id", h.ID, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	h.started.Store(true)
	h.task.Run(context.WithoutCancel(h.ctx))
}

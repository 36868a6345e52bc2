// Package tasks runs best-effort side effects (emails, storage cleanup,
// audit entries) on a bounded worker pool. A task's failure is logged and
// counted but never reported to the request that scheduled it.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotRunning = errors.New("task runner is not running")
	ErrQueueFull  = errors.New("task queue is full")
)

// FailureCounter receives the name of every task that failed or was dropped.
type FailureCounter interface {
	TaskFailed(task string)
}

// Config sizes the pool.
type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration // per-task deadline
}

func DefaultConfig() Config {
	return Config{Workers: 4, QueueSize: 256, Timeout: 30 * time.Second}
}

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// Runner is a fixed-size pool of workers draining a buffered queue.
type Runner struct {
	cfg      Config
	logger   *zap.Logger
	failures FailureCounter

	mu      sync.Mutex
	running bool
	jobs    chan task
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfg Config, logger *zap.Logger, failures FailureCounter) *Runner {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, logger: logger.Named("tasks"), failures: failures}
}

// Start launches the workers. Calling Start on a running pool is a no-op.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.jobs = make(chan task, r.cfg.QueueSize)
	r.running = true

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx, r.jobs)
	}
	r.logger.Info("task runner started",
		zap.Int("workers", r.cfg.Workers),
		zap.Int("queue_size", r.cfg.QueueSize),
	)
}

// Go schedules fn under name. It never blocks: when the pool is stopped or
// the queue is full the task is dropped, logged and counted as a failure.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		r.fail(name, ErrNotRunning)
		return ErrNotRunning
	}
	select {
	case r.jobs <- task{name: name, fn: fn}:
		return nil
	default:
		r.fail(name, ErrQueueFull)
		return ErrQueueFull
	}
}

// stopGrace is how long Stop waits for cancelled tasks once its context
// has ended.
var stopGrace = time.Second

// Stop closes the queue and waits for queued tasks to finish. If ctx ends
// first the remaining tasks are cancelled, and Stop returns at most
// stopGrace later even if some of them keep running.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.jobs)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		r.logger.Info("task runner stopped")
		return nil
	case <-ctx.Done():
		r.cancel()
		select {
		case <-done:
			r.logger.Warn("task runner stop timed out, running tasks cancelled")
		case <-time.After(stopGrace):
			r.logger.Warn("task runner stop timed out, abandoning tasks that ignore cancellation")
		}
		return ctx.Err()
	}
}

func (r *Runner) worker(ctx context.Context, jobs <-chan task) {
	defer r.wg.Done()
	for t := range jobs {
		r.run(ctx, t)
	}
}

func (r *Runner) run(ctx context.Context, t task) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return t.fn(ctx)
	}()
	if err != nil {
		r.fail(t.name, err)
	}
}

func (r *Runner) fail(name string, err error) {
	r.logger.Warn("background task failed", zap.String("task", name), zap.Error(err))
	if r.failures != nil {
		r.failures.TaskFailed(name)
	}
}

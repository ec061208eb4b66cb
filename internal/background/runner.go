// Package background runs fire-and-forget tasks emitted by the resolver.
package background

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/campusbot/pkg/utils"
)

// Task is a named unit of deferred work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// FailureFunc is called with the task name whenever a task fails or panics.
type FailureFunc func(task string)

// Runner executes tasks on their own goroutines. Task failures never reach the
// dispatcher; they are logged and reported to the failure hook.
type Runner struct {
	timeout   time.Duration
	logger    *zap.Logger
	onFailure FailureFunc

	mu     sync.Mutex
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout bounds each task. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = utils.LoggerOrNop(l) }
}

// WithFailureHook sets a callback invoked on every task failure.
func WithFailureHook(fn FailureFunc) Option {
	return func(r *Runner) { r.onFailure = fn }
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	r.base, r.cancel = context.WithCancel(context.Background())
	return r
}

// Dispatch starts every task in its own goroutine and returns immediately.
// Tasks run detached from any request context.
func (r *Runner) Dispatch(tasks ...Task) {
	r.mu.Lock()
	base := r.base
	r.mu.Unlock()
	for _, t := range tasks {
		if t.Run == nil {
			continue
		}
		r.wg.Add(1)
		go func(t Task) {
			defer r.wg.Done()
			_ = r.run(base, t)
		}(t)
	}
}

// RunSync runs tasks sequentially on the calling goroutine and returns the
// first failure. All tasks run even when an earlier one fails.
func (r *Runner) RunSync(ctx context.Context, tasks ...Task) error {
	var first error
	for _, t := range tasks {
		if t.Run == nil {
			continue
		}
		if err := r.run(ctx, t); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Wait blocks until every dispatched task has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown cancels running tasks and waits for them, or until ctx is done.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) run(ctx context.Context, t Task) (err error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task %s panicked: %v", t.Name, p)
			r.logger.Error("Background task panicked",
				zap.String("task", t.Name),
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()),
			)
			r.fail(t.Name)
		}
	}()

	if err = t.Run(ctx); err != nil {
		r.logger.Warn("Background task failed",
			zap.String("task", t.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		r.fail(t.Name)
		return err
	}
	r.logger.Debug("Background task finished",
		zap.String("task", t.Name),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (r *Runner) fail(name string) {
	if r.onFailure != nil {
		r.onFailure(name)
	}
}

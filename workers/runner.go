package workers

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Runner executes detached tasks. Each task gets a context derived from the
// runner's base context, never from the request that submitted it.
type Runner struct {
	base    context.Context
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewRunner builds a runner. A zero timeout leaves tasks bounded only by ctx.
func NewRunner(ctx context.Context, timeout time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{base: ctx, timeout: timeout, logger: logger.With("component", "runner")}
}

// Go runs fn on its own goroutine. Errors and panics are logged and dropped.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx := r.base
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		start := time.Now()
		if err := r.run(ctx, fn); err != nil {
			r.logger.Error("task failed", "task", name, "err", err, "elapsed", time.Since(start))
			return
		}
		r.logger.Debug("task done", "task", name, "elapsed", time.Since(start))
	}()
}

func (r *Runner) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v\n%s", rec, debug.Stack())
		}
	}()
	return fn(ctx)
}

// Wait blocks until every submitted task finished or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
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

package workers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type ctxKey struct{}

func TestRunner_TasksOutliveSubmitter(t *testing.T) {
	base := context.WithValue(context.Background(), ctxKey{}, "base")
	r := NewRunner(base, 0, quietLogger())

	var sawBase atomic.Bool
	release := make(chan struct{})

	r.Go("relay", func(ctx context.Context) error {
		<-release
		sawBase.Store(ctx.Value(ctxKey{}) == "base" && ctx.Err() == nil)
		return nil
	})
	close(release)

	waitCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	if err := r.Wait(waitCtx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if !sawBase.Load() {
		t.Error("task should run on the runner's base context")
	}
}

func TestRunner_ErrorsAndPanicsContained(t *testing.T) {
	r := NewRunner(context.Background(), time.Second, quietLogger())

	var ran atomic.Int32
	r.Go("fails", func(ctx context.Context) error {
		ran.Add(1)
		return errors.New("send failed")
	})
	r.Go("panics", func(ctx context.Context) error {
		ran.Add(1)
		panic("boom")
	})
	r.Go("ok", func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})

	waitCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	if err := r.Wait(waitCtx); err != nil {
		t.Fatal(err)
	}
	if ran.Load() != 3 {
		t.Errorf("expected 3 tasks to run, got %d", ran.Load())
	}
}

func TestRunner_WaitBounded(t *testing.T) {
	r := NewRunner(context.Background(), 0, quietLogger())
	block := make(chan struct{})
	defer close(block)

	r.Go("hung", func(ctx context.Context) error {
		<-block
		return nil
	})

	waitCtx, done := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer done()
	if err := r.Wait(waitCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestRunner_TaskTimeout(t *testing.T) {
	r := NewRunner(context.Background(), 10*time.Millisecond, quietLogger())
	var expired atomic.Bool
	r.Go("slow", func(ctx context.Context) error {
		<-ctx.Done()
		expired.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		return ctx.Err()
	})

	waitCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	_ = r.Wait(waitCtx)
	if !expired.Load() {
		t.Error("task context should expire")
	}
}

func TestStartTokenKeeper(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	StartTokenKeeper(ctx, 5*time.Millisecond, func(ctx context.Context) bool {
		calls.Add(1)
		return calls.Load()%2 == 0
	}, quietLogger())

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if calls.Load() < 3 {
		t.Fatalf("expected repeated checks, got %d", calls.Load())
	}

	cancel()
	time.Sleep(20 * time.Millisecond)
	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	if calls.Load() != after {
		t.Error("keeper kept running after cancel")
	}
}

func TestStartTokenKeeper_Disabled(t *testing.T) {
	called := false
	StartTokenKeeper(context.Background(), 0, func(ctx context.Context) bool {
		called = true
		return true
	}, quietLogger())
	time.Sleep(10 * time.Millisecond)
	if called {
		t.Error("zero interval must not start the loop")
	}
}

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkurilov/counselbot/internal/logging"
)

type countingRunner struct {
	calls atomic.Int64
	err   error
}

func (r *countingRunner) RunCycle(ctx context.Context) error {
	r.calls.Add(1)
	return r.err
}

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...any)     {}
func (nopLogger) Info(msg string, args ...any)      {}
func (nopLogger) Warn(msg string, args ...any)      {}
func (nopLogger) Error(msg string, args ...any)     {}
func (l nopLogger) With(args ...any) logging.Logger { return l }

func TestRun_ImmediateAndPeriodic(t *testing.T) {
	runner := &countingRunner{}
	s := New(20*time.Millisecond, runner, nopLogger{})

	ctx, cancel := context.WithTimeout(context.Background(), 70*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	got := runner.calls.Load()
	if got < 2 {
		t.Fatalf("expected at least 2 cycles (immediate + ticks), got %d", got)
	}
}

func TestRun_SurvivesCycleErrors(t *testing.T) {
	runner := &countingRunner{err: errors.New("cycle failed")}
	s := New(10*time.Millisecond, runner, nopLogger{})

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if runner.calls.Load() < 2 {
		t.Fatal("scheduler must keep ticking after a failed cycle")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	runner := &countingRunner{}
	s := New(5*time.Millisecond, runner, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}

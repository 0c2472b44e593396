// Package scheduler drives periodic retention cycles.
package scheduler

import (
	"context"
	"time"

	"github.com/dkurilov/counselbot/internal/logging"
)

// Runner is one retention pass.
type Runner interface {
	RunCycle(ctx context.Context) error
}

// Scheduler runs retention cycles on a fixed interval until the context is
// canceled. A failing cycle is logged and retried on the next tick.
type Scheduler struct {
	interval time.Duration
	runner   Runner
	logger   logging.Logger
}

func New(interval time.Duration, runner Runner, logger logging.Logger) *Scheduler {
	return &Scheduler{interval: interval, runner: runner, logger: logger}
}

// Run blocks until ctx is canceled. The first cycle runs immediately so a
// restarted process does not wait a full interval to catch up.
func (s *Scheduler) Run(ctx context.Context) {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if err := s.runner.RunCycle(ctx); err != nil {
		s.logger.Error("retention cycle failed", "error", err)
	}
}

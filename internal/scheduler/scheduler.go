// Package scheduler runs the collection pipeline on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/rainfall-etl/internal/domain"
	"github.com/go-co-op/gocron"
)

// Runner performs one collection run.
type Runner interface {
	RunOnce(ctx context.Context) (domain.Snapshot, error)
}

// Scheduler triggers a Runner every interval, starting immediately. Runs never
// overlap: a tick that fires while a run is in progress is skipped.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a Scheduler.
func New(interval time.Duration, runner Runner, logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the job and starts the underlying scheduler. Runs use ctx,
// so cancelling it aborts an in-flight run.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		if ctx.Err() != nil {
			return
		}
		s.logger.Info("scheduled run starting", "interval", s.interval.String())
		if _, err := s.runner.RunOnce(ctx); err != nil {
			s.logger.Error("scheduled run failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "interval", s.interval.String())
	return nil
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

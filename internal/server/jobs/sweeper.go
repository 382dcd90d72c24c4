// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the sweep daily at midnight. Schedules carry a
// leading seconds field.
const DefaultSchedule = "0 0 0 * * *"

// Sweeper is the maintenance operation run by the scheduler.
type Sweeper interface {
	Sweep(ctx context.Context) (services.SweepResult, error)
}

// Scheduler runs a session sweep on a cron schedule. Runs never overlap.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	schedule string
	timeout  time.Duration
	log      logging.Logger

	mu      sync.Mutex
	running bool
}

func NewScheduler(sweeper Sweeper, schedule string, log logging.Logger) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		sweeper:  sweeper,
		schedule: schedule,
		timeout:  5 * time.Minute,
		log:      log.With("module", "jobs"),
	}
}

// Start registers the sweep and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runScheduled); err != nil {
		return fmt.Errorf("sweep schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.log.Info(context.Background(), "sweeper scheduled", "schedule", s.schedule)
	return nil
}

// Stop halts scheduling and waits for a running sweep until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, _ = s.RunOnce(ctx)
}

// RunOnce sweeps immediately. A call made while another sweep is in
// progress is skipped and reports ok=false.
func (s *Scheduler) RunOnce(ctx context.Context) (ok bool, err error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn(ctx, "sweep skipped, previous run still active")
		return false, nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	res, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.log.Error(ctx, "sweep failed", "error", err)
		return true, err
	}
	s.log.Info(ctx, "sweep finished",
		"revoked", res.Revoked, "purged", res.Purged, "took", time.Since(start).String())
	return true, nil
}

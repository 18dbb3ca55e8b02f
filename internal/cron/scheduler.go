// Package cron runs the bot's periodic maintenance jobs on 5-field cron
// schedules. The next run of each job is kept in the store so a restart
// neither skips nor repeats a run.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/basket/haxxor-bunny/internal/persistence"
)

// cronParser parses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

const nextRunKeyPrefix = "cron.next_run."

// Job is one named periodic task.
type Job struct {
	Name string
	Expr string
	Run  func(ctx context.Context) error
}

type Config struct {
	Store    *persistence.Store
	Logger   *slog.Logger
	Jobs     []Job
	Interval time.Duration // tick interval; defaults to 1 minute if zero
}

type Scheduler struct {
	store    *persistence.Store
	logger   *slog.Logger
	jobs     []Job
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler validates every job expression up front.
func NewScheduler(cfg Config) (*Scheduler, error) {
	for _, j := range cfg.Jobs {
		if j.Name == "" || j.Run == nil {
			return nil, fmt.Errorf("cron: job %q needs a name and a run func", j.Name)
		}
		if _, err := cronParser.Parse(j.Expr); err != nil {
			return nil, fmt.Errorf("cron: job %q: %w", j.Name, err)
		}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    cfg.Store,
		logger:   logger,
		jobs:     cfg.Jobs,
		interval: interval,
	}, nil
}

// Start begins the scheduler loop in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("cron scheduler started", "interval", s.interval, "jobs", len(s.jobs))
}

// Stop cancels the scheduler loop and waits for a running job to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("cron scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now()
	for _, j := range s.jobs {
		if ctx.Err() != nil {
			return
		}
		due, err := s.due(ctx, j, now)
		if err != nil {
			s.logger.Error("cron: failed to read next run", "job", j.Name, "error", err)
			continue
		}
		if due {
			s.fire(ctx, j, now)
		}
	}
}

// due reports whether j should run at now. A job with no recorded next
// run is due immediately.
func (s *Scheduler) due(ctx context.Context, j Job, now time.Time) (bool, error) {
	raw, err := s.store.KVGet(ctx, nextRunKeyPrefix+j.Name)
	if err != nil {
		return false, err
	}
	if raw == "" {
		return true, nil
	}
	next, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		s.logger.Warn("cron: discarding unreadable next run", "job", j.Name, "value", raw)
		return true, nil
	}
	return !next.After(now), nil
}

func (s *Scheduler) fire(ctx context.Context, j Job, now time.Time) {
	start := time.Now()
	if err := j.Run(ctx); err != nil {
		s.logger.Error("cron: job failed", "job", j.Name, "error", err)
	}

	nextRun, err := NextRunTime(j.Expr, now)
	if err != nil {
		s.logger.Error("cron: failed to compute next run time", "job", j.Name, "cron_expr", j.Expr, "error", err)
		return
	}
	if err := s.store.KVSet(ctx, nextRunKeyPrefix+j.Name, nextRun.UTC().Format(time.RFC3339)); err != nil {
		s.logger.Error("cron: failed to record next run", "job", j.Name, "error", err)
		return
	}
	s.logger.Info("cron: job fired",
		"job", j.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"next_run_at", nextRun,
	)
}

// NextRunTime parses the cron expression and returns the next run time after the given time.
func NextRunTime(cronExpr string, after time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after), nil
}

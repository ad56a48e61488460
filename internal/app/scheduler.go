// Package app hosts the long-running worker scheduler: the loops that
// claim queued jobs, recover stale work, prune old rows, and report
// queue health.
package app

import (
	"context"
	"sync/atomic"
	"time"

	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/hirewise/resume-matcher/internal/adapter/observability"
	"github.com/hirewise/resume-matcher/internal/config"
	"github.com/hirewise/resume-matcher/internal/domain"
	"github.com/hirewise/resume-matcher/internal/usecase"
)

// Scheduler runs the dispatcher, stale detector, cleaner, and metrics
// loops. Each loop waits its fixed delay measured after the previous
// iteration returns, never overlapping itself.
type Scheduler struct {
	cfg      config.Config
	queue    domain.QueueRepository
	pipeline *usecase.Pipeline
	workerID string
	active   atomic.Int64
}

// NewScheduler wires the scheduler.
func NewScheduler(cfg config.Config, queue domain.QueueRepository, pipeline *usecase.Pipeline, workerID string) *Scheduler {
	if workerID == "" {
		workerID = "worker-" + time.Now().UTC().Format("20060102150405")
	}
	return &Scheduler{cfg: cfg, queue: queue, pipeline: pipeline, workerID: workerID}
}

// Run starts all loops and blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.dispatchLoop(ctx) })
	g.Go(func() error { return s.staleLoop(ctx) })
	g.Go(func() error { return s.cleanupLoop(ctx) })
	g.Go(func() error { return s.metricsLoop(ctx) })
	slog.Info("scheduler started",
		slog.String("worker_id", s.workerID),
		slog.Int("batch_size", s.cfg.BatchSize),
		slog.Duration("poll_interval", s.cfg.PollInterval))
	return g.Wait()
}

// runEvery executes fn with a fixed delay after each return, starting
// after the initial delay.
func runEvery(ctx context.Context, initial, every time.Duration, fn func(context.Context)) error {
	if err := sleepCtx(ctx, initial); err != nil {
		return err
	}
	for {
		fn(ctx)
		if err := sleepCtx(ctx, every); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Scheduler) dispatchLoop(ctx context.Context) error {
	pool, poolCtx := errgroup.WithContext(ctx)
	pool.SetLimit(s.cfg.BatchSize)
	err := runEvery(ctx, s.cfg.InitialDelay, s.cfg.PollInterval, func(ctx context.Context) {
		s.dispatchOnce(ctx, pool, poolCtx)
	})
	if werr := pool.Wait(); werr != nil && err == nil {
		err = werr
	}
	return err
}

// dispatchOnce claims up to the pool's free capacity and hands each job
// to a pool worker. The active counter is released in the worker's
// defer so a panic cannot leak capacity.
func (s *Scheduler) dispatchOnce(ctx context.Context, pool *errgroup.Group, poolCtx context.Context) {
	available := int64(s.cfg.BatchSize) - s.active.Load()
	if available <= 0 {
		return
	}
	jobs, err := s.queue.Claim(ctx, domain.JobKindResumeProcessing, int(available), s.workerID)
	if err != nil {
		slog.Error("claim failed", slog.String("worker_id", s.workerID), slog.Any("error", err))
		return
	}
	for _, job := range jobs {
		job := job
		s.active.Add(1)
		pool.Go(func() error {
			defer s.active.Add(-1)
			s.pipeline.Process(poolCtx, job)
			return nil
		})
	}
	if len(jobs) > 0 {
		slog.Debug("jobs dispatched", slog.Int("count", len(jobs)), slog.String("worker_id", s.workerID))
	}
}

func (s *Scheduler) staleLoop(ctx context.Context) error {
	return runEvery(ctx, s.cfg.StaleCheckDelay, s.cfg.StaleCheckInterval, func(ctx context.Context) {
		n, err := s.queue.ResetStale(ctx, s.cfg.StaleThreshold)
		if err != nil {
			slog.Error("stale reset failed", slog.Any("error", err))
			return
		}
		if n > 0 {
			observability.StaleJobsRecovered.Add(float64(n))
			slog.Warn("stale jobs recovered", slog.Int("count", n))
		}
	})
}

// cleanupLoop fires once per day at the configured local hour.
func (s *Scheduler) cleanupLoop(ctx context.Context) error {
	for {
		if err := sleepCtx(ctx, untilNextHour(time.Now(), s.cfg.CleanupHour)); err != nil {
			return err
		}
		n, err := s.queue.DeleteCompletedOlderThan(ctx, s.cfg.CleanupAfterDays)
		if err != nil {
			slog.Error("queue cleanup failed", slog.Any("error", err))
			continue
		}
		slog.Info("queue cleanup done", slog.Int64("deleted", n), slog.Int("older_than_days", s.cfg.CleanupAfterDays))
	}
}

// untilNextHour returns the wait until the next occurrence of hour:00
// local time, strictly in the future.
func untilNextHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

func (s *Scheduler) metricsLoop(ctx context.Context) error {
	return runEvery(ctx, s.cfg.MetricsInterval, s.cfg.MetricsInterval, func(ctx context.Context) {
		depth, err := s.queue.QueueDepth(ctx, domain.JobKindResumeProcessing)
		if err != nil {
			slog.Error("queue depth query failed", slog.Any("error", err))
			return
		}
		observability.QueueDepth.WithLabelValues(domain.JobKindResumeProcessing).Set(float64(depth))
		stats, err := s.queue.StatsByKind(ctx, domain.JobKindResumeProcessing)
		if err != nil {
			slog.Error("queue stats query failed", slog.Any("error", err))
			return
		}
		avg, err := s.queue.AverageProcessingSeconds(ctx, domain.JobKindResumeProcessing)
		if err != nil {
			avg = 0
		}
		slog.Info("queue stats",
			slog.Int64("pending", stats.Pending),
			slog.Int64("processing", stats.Processing),
			slog.Int64("completed", stats.Completed),
			slog.Int64("failed", stats.Failed),
			slog.Int64("cancelled", stats.Cancelled),
			slog.Float64("avg_processing_seconds", avg),
			slog.Int64("active_workers", s.active.Load()))
	})
}

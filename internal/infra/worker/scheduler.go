package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"callguard/internal/observability/metrics"
)

// RunFunc executes one pipeline run. The context carries the run
// timeout; implementations should stop promptly when it is cancelled.
type RunFunc func(ctx context.Context) error

// Scheduler triggers pipeline runs on a cron schedule.
// Overlapping runs are skipped: when a run is still in progress at the
// next tick, the tick is dropped and counted instead of queueing behind
// the slow run.
//
// Example usage:
//
//	sched := NewScheduler(cfg, pipeline.Run, logger, workerMetrics)
//	if err := sched.Start(ctx); err != nil {
//	    logger.Error("scheduler failed", slog.Any("error", err))
//	}
type Scheduler struct {
	config  *WorkerConfig
	logger  *slog.Logger
	metrics *WorkerMetrics
	run     RunFunc

	cron    *cron.Cron
	entryID cron.EntryID
	running atomic.Bool
}

// NewScheduler creates a scheduler for the given run function.
// An invalid timezone falls back to UTC with an error log instead of
// failing, matching the fail-open configuration strategy.
//
// Parameters:
//   - cfg: Worker configuration (schedule, timezone, run timeout)
//   - run: Function executed on each scheduled run
//   - logger: Structured logger for scheduler events
//   - metrics: Worker metrics for schedule state
//
// Returns:
//   - *Scheduler: Initialized scheduler (not started yet)
func NewScheduler(cfg *WorkerConfig, run RunFunc, logger *slog.Logger, metrics *WorkerMetrics) *Scheduler {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("failed to load timezone, falling back to UTC",
			slog.String("timezone", cfg.Timezone),
			slog.Any("error", err))
		loc = time.UTC
	}

	return &Scheduler{
		config:  cfg,
		logger:  logger,
		metrics: metrics,
		run:     run,
		cron:    cron.New(cron.WithLocation(loc)),
	}
}

// Start schedules pipeline runs and blocks until the context is
// cancelled. When RunOnStart is set, one run executes inline before the
// cron schedule takes over. On cancellation the scheduler stops issuing
// new runs and waits for an in-flight run to return; the run's context
// is derived from ctx, so cancellation also reaches the run itself.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown
//
// Returns:
//   - error: nil on graceful stop, scheduling error otherwise
func (s *Scheduler) Start(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.config.CronSchedule, func() {
		s.runOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule pipeline runs: %w", err)
	}
	s.entryID = id

	if s.config.RunOnStart {
		s.logger.Info("running pipeline on start")
		s.runOnce(ctx)
	}

	s.cron.Start()
	s.metrics.RecordNextRun(s.nextRun())
	s.logger.Info("scheduler started",
		slog.String("schedule", s.config.CronSchedule),
		slog.String("timezone", s.config.Timezone),
		slog.Time("next_run", s.nextRun()))

	<-ctx.Done()

	s.logger.Info("scheduler stopping")
	// Stop issuing new runs, then wait for an in-flight run to return.
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// runOnce executes a single pipeline run with overlap protection and
// the configured run timeout.
func (s *Scheduler) runOnce(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous pipeline run still in progress, skipping this run")
		metrics.RecordRunSkipped()
		return
	}
	defer s.running.Store(false)

	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	start := time.Now()
	s.logger.Info("pipeline run starting",
		slog.Duration("timeout", s.config.RunTimeout))

	if err := s.run(runCtx); err != nil {
		s.logger.Error("pipeline run failed",
			slog.Any("error", err),
			slog.Duration("duration", time.Since(start)))
	} else {
		s.logger.Info("pipeline run completed",
			slog.Duration("duration", time.Since(start)))
		s.metrics.RecordLastSuccess()
	}

	s.metrics.RecordNextRun(s.nextRun())
}

// nextRun returns the time of the next scheduled run, or the zero time
// when nothing is scheduled yet.
func (s *Scheduler) nextRun() time.Time {
	return s.cron.Entry(s.entryID).Next
}

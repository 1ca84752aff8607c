package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"semantic-linker/internal/observability/logging"
	"semantic-linker/internal/usecase/reconcile"
)

// Reconciler runs one reconciliation per workspace.
type Reconciler interface {
	RunAll(ctx context.Context, concurrency int) ([]reconcile.RunStatus, error)
}

// PassResult summarizes one scheduled pass.
type PassResult struct {
	Status     string // success, partial, failure or skipped
	Workspaces int
	Failed     int
	Partial    int
	Duration   time.Duration
}

// Scheduler triggers a reconciliation pass over all workspaces on a cron
// schedule. A tick that fires while the previous pass is still running is
// skipped.
type Scheduler struct {
	cfg     *Config
	runner  Reconciler
	metrics *WorkerMetrics
	logger  *slog.Logger
	cron    *cron.Cron
	running atomic.Bool
}

// NewScheduler validates the schedule and timezone and registers the pass.
func NewScheduler(cfg *Config, runner Reconciler, metrics *WorkerMetrics, logger *slog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	s := &Scheduler{cfg: cfg, runner: runner, metrics: metrics, logger: logger}
	s.cron = cron.New(cron.WithLocation(loc))
	if _, err := s.cron.AddFunc(cfg.CronSchedule, func() { s.RunPass(context.Background()) }); err != nil {
		return nil, fmt.Errorf("add cron job: %w", err)
	}
	return s, nil
}

// Start starts the cron scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started",
		slog.String("schedule", s.cfg.CronSchedule),
		slog.String("timezone", s.cfg.Timezone))
}

// Stop stops scheduling and returns a context done once the running pass finishes.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunPass reconciles every workspace once, bounded by the job timeout.
func (s *Scheduler) RunPass(ctx context.Context) PassResult {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("reconciliation pass still running, skipping tick")
		s.record(PassResult{Status: "skipped"})
		return PassResult{Status: "skipped"}
	}
	defer s.running.Store(false)

	start := time.Now()
	if s.metrics != nil {
		s.metrics.RecordJobRun("started")
	}
	s.logger.Info("reconciliation pass started")

	ctx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	statuses, err := s.runner.RunAll(ctx, s.cfg.WorkspaceConcurrency)
	res := PassResult{Workspaces: len(statuses), Duration: time.Since(start)}
	for _, st := range statuses {
		switch st.Outcome {
		case reconcile.OutcomeFailed, reconcile.OutcomeAborted:
			res.Failed++
		case reconcile.OutcomePartial:
			res.Partial++
		}
	}

	switch {
	case err != nil:
		res.Status = "failure"
		s.logger.Error("reconciliation pass failed",
			logging.Error(err),
			slog.Int("workspaces", res.Workspaces),
			slog.Duration("duration", res.Duration))
	case res.Failed > 0:
		res.Status = "failure"
		s.logger.Warn("reconciliation pass finished with failed workspaces",
			slog.Int("workspaces", res.Workspaces),
			slog.Int("failed", res.Failed),
			slog.Duration("duration", res.Duration))
	case res.Partial > 0:
		res.Status = "partial"
		s.logger.Info("reconciliation pass completed with skipped articles",
			slog.Int("workspaces", res.Workspaces),
			slog.Int("partial", res.Partial),
			slog.Duration("duration", res.Duration))
	default:
		res.Status = "success"
		s.logger.Info("reconciliation pass completed",
			slog.Int("workspaces", res.Workspaces),
			slog.Duration("duration", res.Duration))
	}

	s.record(res)
	return res
}

func (s *Scheduler) record(res PassResult) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordJobRun(res.Status)
	if res.Status == "skipped" {
		return
	}
	s.metrics.RecordJobDuration(res.Duration.Seconds())
	s.metrics.RecordWorkspacesProcessed(res.Workspaces)
	if res.Status == "success" || res.Status == "partial" {
		s.metrics.RecordLastSuccess()
	}
}

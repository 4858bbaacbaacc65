package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"catalog_syncer/internal/domain"
)

// RunFunc performs one sync run.
type RunFunc func(ctx context.Context) (*domain.SyncStats, error)

// Job is a sync run repeated on a fixed interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      RunFunc
}

// Scheduler runs every job once at start and then on its own ticker. Runs
// of the same job never overlap; different jobs run independently.
type Scheduler struct {
	jobs       []Job
	runTimeout time.Duration
	logger     *slog.Logger
}

func NewScheduler(jobs []Job, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		jobs:       jobs,
		runTimeout: runTimeout,
		logger:     logger,
	}
}

// Start blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "jobs", len(s.jobs), "run_timeout", s.runTimeout)

	g, ctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		g.Go(func() error {
			return s.loop(ctx, job)
		})
	}

	err := g.Wait()
	s.logger.Info("scheduler stopped")
	return err
}

func (s *Scheduler) loop(ctx context.Context, job Job) error {
	logger := s.logger.With("job", job.Name)
	logger.Info("job scheduled", "interval", job.Interval)

	s.runJob(ctx, logger, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runJob(ctx, logger, job)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, logger *slog.Logger, job Job) {
	runCtx := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	stats, err := job.Run(runCtx)
	if err != nil {
		logger.Error("sync failed", "error", err)
		return
	}
	if stats != nil && !stats.Complete {
		logger.Warn("sync ended early, next run will pick up from the store", "run_id", stats.RunID)
	}
}

package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/chatwoot-scheduler/pkg/logger"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/metrics"
)

const (
	defaultInterval   = 10 * time.Minute
	lockReleaseBudget = 5 * time.Second
)

// ServiceParams configure the cron service. JobTimeout bounds every job; it
// should stay below the lock TTL so a slow job cannot outlive its lease.
type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
	Now        func() time.Time
}

// Service runs the maintenance jobs once per interval on whichever replica
// wins the lock for that cycle.
type Service struct {
	logg       *logger.Logger
	jobs       []Job
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
	now        func() time.Time
}

// cycleReport summarises one pass over the registry.
type cycleReport struct {
	skipped bool
	failed  []string
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("cron service: logger is required")
	case params.Lock == nil:
		return nil, errors.New("cron service: lock is required")
	}

	s := &Service{
		logg:       params.Logger,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
		now:        params.Now,
	}
	if params.Registry != nil {
		s.jobs = params.Registry.Jobs()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Run starts a cycle right away, then one per interval, until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		report, err := s.runCycle(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "cron cycle aborted", err)
		case len(report.failed) > 0:
			s.logg.Warn(s.logg.WithField(ctx, "failed_jobs", report.failed), "cron cycle finished with failures")
		}

		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) runCycle(ctx context.Context) (cycleReport, error) {
	held, err := s.lock.Acquire(ctx)
	if err != nil {
		s.metrics.IncCycle(metrics.CronCycleFailed)
		return cycleReport{}, fmt.Errorf("acquire cron lock: %w", err)
	}
	if !held {
		s.metrics.IncCycle(metrics.CronCycleSkipped)
		s.logg.Debug(ctx, "cron lock held elsewhere, skipping cycle")
		return cycleReport{skipped: true}, nil
	}
	defer s.release(ctx)
	s.metrics.IncCycle(metrics.CronCycleRan)

	var report cycleReport
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			break
		}
		if outcome := s.runJob(ctx, job); outcome != metrics.CronOutcomeSucceeded {
			report.failed = append(report.failed, job.Name())
		}
	}
	return report, nil
}

// release runs even after shutdown began so the next replica does not wait
// out the TTL.
func (s *Service) release(ctx context.Context) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseBudget)
	defer cancel()
	if err := s.lock.Release(releaseCtx); err != nil {
		s.logg.Error(ctx, "release cron lock", err)
	}
}

// runJob executes one job under the job timeout and returns its outcome.
// A failing job never stops the cycle.
func (s *Service) runJob(ctx context.Context, job Job) string {
	name := job.Name()
	jobCtx := s.logg.WithField(ctx, "job", name)
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, s.jobTimeout)
		defer cancel()
	}

	started := s.now()
	err := job.Run(jobCtx)
	finished := s.now()
	elapsed := finished.Sub(started)

	outcome := metrics.CronOutcomeSucceeded
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded) && errors.Is(jobCtx.Err(), context.DeadlineExceeded):
		outcome = metrics.CronOutcomeTimedOut
	default:
		outcome = metrics.CronOutcomeFailed
	}
	s.metrics.ObserveJob(name, outcome, elapsed, finished)

	logCtx := s.logg.WithFields(jobCtx, map[string]any{
		"outcome":     outcome,
		"duration_ms": elapsed.Milliseconds(),
	})
	if err != nil {
		s.logg.Error(logCtx, "cron job failed", err)
		return outcome
	}
	s.logg.Info(logCtx, "cron job done")
	return outcome
}

package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/shoppos/pos-backend/pkg/logger"
	"github.com/shoppos/pos-backend/pkg/metrics"
)

const defaultInterval = time.Hour

// SchedulerParams configure a Scheduler.
type SchedulerParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.JobMetrics
	Interval time.Duration
}

// Scheduler runs the maintenance jobs once per interval on whichever worker holds the
// lock. A failing job does not stop the jobs after it.
type Scheduler struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.JobMetrics
	interval time.Duration
}

// JobOutcome is the result of one job within a cycle.
type JobOutcome struct {
	Job      string
	Duration time.Duration
	Err      error
}

// CycleReport describes one maintenance cycle. Skipped is set when another worker held
// the lock; HeldBy then names it when known.
type CycleReport struct {
	Started  time.Time
	Skipped  bool
	HeldBy   string
	Outcomes []JobOutcome
}

// Failed lists the jobs that returned an error.
func (r *CycleReport) Failed() []string {
	var names []string
	for _, o := range r.Outcomes {
		if o.Err != nil {
			names = append(names, o.Job)
		}
	}
	return names
}

// holderLock is implemented by locks that can say who holds them.
type holderLock interface {
	Current(ctx context.Context) (*Holder, error)
}

func NewScheduler(params SchedulerParams) (*Scheduler, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Lock == nil:
		return nil, fmt.Errorf("lock required")
	}
	s := &Scheduler{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run executes a cycle immediately, then on every tick until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.cycle(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) cycle(ctx context.Context) {
	report, err := s.runCycle(ctx)
	switch {
	case report == nil:
		s.logg.Error(ctx, "maintenance.cycle_aborted", err)
	case report.Skipped:
		s.logg.Info(s.logg.WithField(ctx, "held_by", report.HeldBy), "maintenance.cycle_skipped")
	case err != nil:
		s.logg.Error(s.logg.WithField(ctx, "failed_jobs", report.Failed()), "maintenance.cycle_degraded", err)
	default:
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"jobs":        len(report.Outcomes),
			"duration_ms": time.Since(report.Started).Milliseconds(),
		}), "maintenance.cycle_done")
	}
}

// runCycle returns a nil report only when the lock could not be consulted. The error
// combines every job failure of the cycle.
func (s *Scheduler) runCycle(ctx context.Context) (report *CycleReport, err error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire maintenance lock: %w", err)
	}
	report = &CycleReport{Started: time.Now()}
	if !locked {
		report.Skipped = true
		report.HeldBy = s.holder(ctx)
		return report, nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "maintenance.lock_release_failed", relErr)
		}
	}()

	for _, job := range s.registry.Jobs() {
		outcome := s.runJob(ctx, job)
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", outcome.Job, outcome.Err))
		}
	}
	return report, err
}

func (s *Scheduler) holder(ctx context.Context) string {
	hl, ok := s.lock.(holderLock)
	if !ok {
		return ""
	}
	h, err := hl.Current(ctx)
	if err != nil || h == nil {
		return ""
	}
	if h.Host == "" {
		return "unknown"
	}
	return fmt.Sprintf("%s since %s", h.Host, h.AcquiredAt.Format(time.RFC3339))
}

func (s *Scheduler) runJob(ctx context.Context, job Job) JobOutcome {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	start := time.Now()
	err := job.Run(jobCtx)
	outcome := JobOutcome{Job: job.Name(), Duration: time.Since(start), Err: err}

	s.metrics.Observe(outcome.Job, err == nil, outcome.Duration)
	if err == nil {
		s.logg.Debug(s.logg.WithField(jobCtx, "duration_ms", outcome.Duration.Milliseconds()), "maintenance.job_done")
	}
	return outcome
}

package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/chatwoot-scheduler/pkg/logger"
)

const defaultOverdueGrace = 15 * time.Minute

type overdueCounter interface {
	CountOverdue(ctx context.Context, cutoff time.Time) (int64, error)
}

type overdueGauge interface {
	SetOverdue(count int64)
}

type OverdueSchedulesJobParams struct {
	Logger     *logger.Logger
	Repository overdueCounter
	Metrics    overdueGauge
	Grace      time.Duration
}

// NewOverdueSchedulesJob reports active schedules whose time passed more than
// Grace ago. The automation engine owns delivery, so the job only observes:
// it never changes a record's status.
func NewOverdueSchedulesJob(params OverdueSchedulesJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("schedules repository required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultOverdueGrace
	}
	return &overdueSchedulesJob{
		logg:    params.Logger,
		repo:    params.Repository,
		metrics: params.Metrics,
		grace:   grace,
		now:     time.Now,
	}, nil
}

type overdueSchedulesJob struct {
	logg    *logger.Logger
	repo    overdueCounter
	metrics overdueGauge
	grace   time.Duration
	now     func() time.Time
}

func (j *overdueSchedulesJob) Name() string { return "overdue-schedules" }

func (j *overdueSchedulesJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.grace)
	count, err := j.repo.CountOverdue(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("count overdue schedules: %w", err)
	}
	if j.metrics != nil {
		j.metrics.SetOverdue(count)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"grace":         j.grace.String(),
		"overdue_count": count,
	})
	if count > 0 {
		j.logg.Warn(logCtx, "active schedules past their delivery time")
		return nil
	}
	j.logg.Info(logCtx, "no overdue schedules")
	return nil
}

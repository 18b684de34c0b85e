package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/chatwoot-scheduler/pkg/logger"
)

const (
	defaultRetentionDays = 30
	defaultMinAttempts   = 10
	day                  = 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type deadLetterPruner interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// OutboxRetentionJobParams configure the schedule event cleanup. Unpublished
// rows go only once they were parked at MinAttempts; DLQ is optional.
type OutboxRetentionJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Repository    outboxPruner
	DLQ           deadLetterPruner
	RetentionDays int
	MinAttempts   int
	Now           func() time.Time
}

// pruneStep deletes one kind of row older than cutoff.
type pruneStep struct {
	field string
	prune func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type outboxRetentionJob struct {
	logg   *logger.Logger
	db     txRunner
	steps  []pruneStep
	window time.Duration
	now    func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("outbox retention: logger is required")
	case params.DB == nil:
		return nil, errors.New("outbox retention: transaction runner is required")
	case params.Repository == nil:
		return nil, errors.New("outbox retention: outbox repository is required")
	}

	minAttempts := params.MinAttempts
	if minAttempts <= 0 {
		minAttempts = defaultMinAttempts
	}
	steps := []pruneStep{{
		field: "events_deleted",
		prune: func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
			return params.Repository.DeletePublishedBefore(ctx, tx, cutoff, minAttempts)
		},
	}}
	if params.DLQ != nil {
		steps = append(steps, pruneStep{field: "dead_letters_deleted", prune: params.DLQ.DeleteFailedBefore})
	}

	days := params.RetentionDays
	if days <= 0 {
		days = defaultRetentionDays
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &outboxRetentionJob{
		logg:   params.Logger,
		db:     params.DB,
		steps:  steps,
		window: time.Duration(days) * day,
		now:    now,
	}, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run prunes every step in one transaction with a shared cutoff.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	fields := map[string]any{
		"cutoff":         cutoff,
		"retention_days": int(j.window / day),
	}
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		for _, step := range j.steps {
			n, err := step.prune(ctx, tx, cutoff)
			if err != nil {
				return fmt.Errorf("%s: %w", step.field, err)
			}
			fields[step.field] = n
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("prune outbox: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "outbox rows pruned")
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/chatwoot-scheduler/internal/bootstrap"
	"github.com/angelmondragon/chatwoot-scheduler/internal/cron"
	"github.com/angelmondragon/chatwoot-scheduler/internal/schedules"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/config"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/db"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/logger"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/metrics"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/outbox"
)

func main() {
	proc := bootstrap.Start("cron-worker")
	cfg, logg := proc.Config, proc.Logger
	startup := context.Background()

	dbClient := proc.Database(startup)
	redisClient := proc.Redis(startup, true)

	lock, err := cron.NewRedisLock(redisClient, lockName(cfg.App.Env), cfg.Cron.LockTTL)
	proc.Must(startup, "cron lock", err)

	registry, err := buildRegistry(cfg, logg, dbClient)
	proc.Must(startup, "cron jobs", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: jobTimeout(cfg.Cron.LockTTL),
	})
	proc.Must(startup, "cron service", err)

	ctx, stop := proc.SignalContext(map[string]any{
		"interval": cfg.Cron.Interval.String(),
		"lock_key": lock.Key(),
		"jobs":     registry.Names(),
	})
	defer stop()
	defer proc.Close(ctx)
	proc.ServeMetrics(ctx)

	logg.Info(ctx, "cron worker started")
	if err := service.Run(ctx); !errors.Is(err, context.Canceled) {
		proc.Must(ctx, "cron service", err)
	}
	logg.Info(ctx, "cron worker stopped")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		DLQ:           outbox.NewDLQRepository(dbClient.DB()),
		RetentionDays: cfg.Outbox.RetentionDays,
		MinAttempts:   cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	overdue, err := cron.NewOverdueSchedulesJob(cron.OverdueSchedulesJobParams{
		Logger:     logg,
		Repository: schedules.NewRepository(dbClient.DB()),
		Metrics:    metrics.NewScheduleMetrics(prometheus.DefaultRegisterer),
		Grace:      cfg.Schedules.OverdueGrace,
	})
	if err != nil {
		return nil, fmt.Errorf("overdue schedules job: %w", err)
	}

	return cron.NewRegistry(retention, overdue)
}

// jobTimeout keeps a job inside the lock lease with a minute to release it.
func jobTimeout(lockTTL time.Duration) time.Duration {
	if lockTTL <= 2*time.Minute {
		return lockTTL / 2
	}
	return lockTTL - time.Minute
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}

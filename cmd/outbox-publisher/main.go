package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/chatwoot-scheduler/internal/bootstrap"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/metrics"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/outbox"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/outbox/registry"
)

func main() {
	proc := bootstrap.Start("outbox-publisher")
	cfg, logg := proc.Config, proc.Logger
	startup := context.Background()

	dbClient := proc.Database(startup)
	pubsubClient := proc.PubSub(startup)

	events, err := registry.NewEventRegistry(cfg.PubSub)
	proc.Must(startup, "event registry", err)

	repo := outbox.NewRepository(dbClient.DB())
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    repo,
		Registry:      events,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Pending:       repo,
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	proc.Must(startup, "outbox publisher", err)

	ctx, stop := proc.SignalContext(map[string]any{
		"topics":     events.Topics(),
		"batch_size": service.batchSize,
	})
	defer stop()
	defer proc.Close(ctx)
	proc.ServeMetrics(ctx)

	logg.Info(ctx, "outbox publisher started")
	if err := service.Run(ctx); !errors.Is(err, context.Canceled) {
		proc.Must(ctx, "outbox publisher", err)
	}
	logg.Info(ctx, "outbox publisher stopped")
}

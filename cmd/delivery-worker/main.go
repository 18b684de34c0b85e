package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/chatwoot-scheduler/internal/bootstrap"
	"github.com/angelmondragon/chatwoot-scheduler/internal/schedules"
	"github.com/angelmondragon/chatwoot-scheduler/internal/schedules/consumer"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/config"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/outbox/idempotency"
)

func main() {
	proc := bootstrap.Start("delivery-worker")
	cfg, logg := proc.Config, proc.Logger
	startup := context.Background()

	dbClient := proc.Database(startup)

	var guard consumer.ProcessedGuard
	if redisClient := proc.Redis(startup, false); redisClient != nil {
		manager, err := idempotency.NewManager(redisClient, cfg.Eventing.DeliveryIdempotencyTTL)
		proc.Must(startup, "idempotency manager", err)
		guard = manager
	} else {
		logg.Warn(startup, "redis not configured, delivery reports rely on replay safety only")
	}

	pubsubClient := proc.PubSub(startup)
	subscription := pubsubClient.DeliveryStatusSubscription()
	if subscription == nil {
		proc.Must(startup, "delivery status subscription", fmt.Errorf("%s is not set", config.EnvPubSubDeliveryStatSub))
	}

	svc, err := schedules.Build(schedules.BuildParams{
		Config:     cfg,
		DB:         dbClient,
		Registerer: prometheus.DefaultRegisterer,
		Logger:     logg,
	})
	proc.Must(startup, "schedules service", err)

	statusConsumer, err := consumer.NewDeliveryStatusConsumer(svc, guard, subscription, logg)
	proc.Must(startup, "delivery status consumer", err)

	ctx, stop := proc.SignalContext(map[string]any{
		"subscription": cfg.PubSub.DeliveryStatusSubscription,
		"dedupe":       guard != nil,
	})
	defer stop()
	defer proc.Close(ctx)
	proc.ServeMetrics(ctx)

	logg.Info(ctx, "delivery worker started")
	if err := statusConsumer.Run(ctx); !errors.Is(err, context.Canceled) {
		proc.Must(ctx, "delivery status consumer", err)
	}
	logg.Info(ctx, "delivery worker stopped")
}

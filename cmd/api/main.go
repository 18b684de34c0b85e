package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/chatwoot-scheduler/api/routes"
	"github.com/angelmondragon/chatwoot-scheduler/internal/bootstrap"
	"github.com/angelmondragon/chatwoot-scheduler/internal/schedules"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/metrics"
)

func main() {
	proc := bootstrap.Start("api")
	cfg, logg := proc.Config, proc.Logger
	startup := context.Background()

	dbClient := proc.Database(startup)
	redisClient := proc.Redis(startup, false)
	if redisClient == nil {
		logg.Warn(startup, "redis not configured, idempotency keys and rate limits disabled")
	}

	scheduleService, err := schedules.Build(schedules.BuildParams{
		Config:     cfg,
		DB:         dbClient,
		Registerer: prometheus.DefaultRegisterer,
		Logger:     logg,
	})
	proc.Must(startup, "schedules service", err)

	addr := ":" + envOr("PORT", cfg.App.Port)
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, scheduleService,
			promhttp.Handler(), metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)),
	}

	ctx, stop := proc.SignalContext(map[string]any{
		"addr":     addr,
		"instance": envOr("DYNO", "local"),
	})
	defer stop()
	defer proc.Close(ctx)

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "api server listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			proc.Must(ctx, "http server", err)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received, draining requests")
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "api server shutdown incomplete", err)
		}
	}
	logg.Info(ctx, "api server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

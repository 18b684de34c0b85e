package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/chatwoot-scheduler/api/controllers"
	"github.com/angelmondragon/chatwoot-scheduler/api/middleware"
	"github.com/angelmondragon/chatwoot-scheduler/internal/schedules"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/config"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/db"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/logger"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/metrics"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/redis"
)

// NewRouter wires the HTTP surface. redisClient may be nil, in which case
// idempotency and write throttling are skipped and readiness reports redis
// as disabled.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	scheduleService schedules.Service,
	metricsHandler http.Handler,
	httpMetrics *metrics.HTTPMetrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.HTTP.AllowedOrigins),
		middleware.BodyLimit(cfg.HTTP.BodyLimitBytes()),
	)

	var (
		idempotencyStore redis.IdempotencyStore
		redisPinger      controllers.Pinger
	)
	writePolicy := middleware.NewRateLimitPolicy("writes", cfg.HTTP.WriteRateWindow, cfg.HTTP.WriteRateLimit)
	writeLimit := func(next http.Handler) http.Handler { return next }
	if redisClient != nil {
		idempotencyStore = redisClient
		redisPinger = redisClient
		writeLimit = middleware.WriteRateLimit(writePolicy, redisClient, logg)
	}
	var dbPinger controllers.Pinger
	if dbP != nil {
		dbPinger = dbP
	}

	r.Get("/", controllers.ServiceInfo(cfg))
	r.Route("/health", func(r chi.Router) {
		r.Get("/", controllers.HealthLive(cfg))
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbPinger, redisPinger))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/schedules", func(r chi.Router) {
		r.Use(writeLimit)
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Get("/", controllers.ScheduleListRecent(scheduleService, logg))
		r.Post("/", controllers.ScheduleCreate(scheduleService, logg))
		r.Get("/single/{id}", controllers.ScheduleGet(scheduleService, logg))
		r.Get("/{contactId}", controllers.ScheduleListByContact(scheduleService, logg))
		r.Put("/{id}", controllers.ScheduleEdit(scheduleService, logg))
		r.Delete("/{id}", controllers.ScheduleCancel(scheduleService, logg))
		r.Post("/{id}/delivery", controllers.ScheduleReportDelivery(scheduleService, logg))
	})

	return r
}

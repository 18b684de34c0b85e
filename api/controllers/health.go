package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/chatwoot-scheduler/api/responses"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/config"
	pkgerrors "github.com/angelmondragon/chatwoot-scheduler/pkg/errors"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/logger"
)

const (
	envHeader          = "X-Scheduler-Env"
	readyCheckTimeout  = 2 * time.Second
	checkStatusOK      = "ok"
	checkStatusDown    = "down"
	checkStatusSkipped = "disabled"
)

// Pinger is anything readiness can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and, when configured, redis. A nil pinger is
// reported as disabled rather than failing readiness.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbPinger, redisPinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		checks := map[string]string{
			"database": probe(ctx, dbPinger),
			"redis":    probe(ctx, redisPinger),
		}
		for _, status := range checks {
			if status == checkStatusDown {
				err := pkgerrors.New(pkgerrors.CodeDependency, "service not ready").
					WithDetails(map[string]any{"checks": checks})
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}

func probe(ctx context.Context, p Pinger) string {
	if p == nil {
		return checkStatusSkipped
	}
	if err := p.Ping(ctx); err != nil {
		return checkStatusDown
	}
	return checkStatusOK
}

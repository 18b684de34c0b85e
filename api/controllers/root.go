package controllers

import (
	"net/http"

	"github.com/angelmondragon/chatwoot-scheduler/api/responses"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/config"
)

const serviceName = "chatwoot-scheduler"

// ServiceInfo describes the service and its public endpoints.
func ServiceInfo(cfg *config.Config) http.HandlerFunc {
	endpoints := []string{
		"GET /health",
		"GET /api/schedules/{contactId}",
		"GET /api/schedules/single/{id}",
		"GET /api/schedules",
		"POST /api/schedules",
		"PUT /api/schedules/{id}",
		"DELETE /api/schedules/{id}",
		"POST /api/schedules/{id}/delivery",
	}
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]any{
			"name":      serviceName,
			"status":    "running",
			"env":       cfg.App.Env,
			"endpoints": endpoints,
		})
	}
}

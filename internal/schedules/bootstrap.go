package schedules

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/chatwoot-scheduler/internal/delivery"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/config"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/db"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/enums"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/logger"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/metrics"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/outbox"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/timeutil"
)

// BuildParams carries the process resources shared by every binary that
// mutates schedules.
type BuildParams struct {
	Config     *config.Config
	DB         *db.Client
	Registerer prometheus.Registerer
	Logger     *logger.Logger
	HTTPClient *http.Client
}

// Build wires the repository, notifier, outbox and reconciler from config.
func Build(params BuildParams) (Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	cfg := params.Config

	loc, err := timeutil.LoadZone(cfg.Schedules.ReferenceZone)
	if err != nil {
		return nil, fmt.Errorf("loading reference zone: %w", err)
	}

	var client delivery.Doer
	if params.HTTPClient != nil {
		client = params.HTTPClient
	}
	notifier := delivery.NewNotifier(delivery.NotifierParams{
		Config:  cfg.Webhook,
		Client:  client,
		Metrics: metrics.NewWebhookMetrics(params.Registerer),
		Logger:  params.Logger,
	})
	if !notifier.Configured(enums.NotificationTargetPrimary) && params.Logger != nil {
		params.Logger.Warn(context.Background(), "no primary webhook endpoint configured, schedule notifications are skipped")
	}

	return NewService(ServiceParams{
		Repository:   NewRepository(params.DB.DB()),
		DB:           params.DB,
		Outbox:       outbox.NewService(outbox.NewRepository(params.DB.DB()), params.Logger),
		Notifier:     notifier,
		Reconciler:   NewReconciler(loc, time.Now),
		Logger:       params.Logger,
		Metrics:      metrics.NewScheduleMetrics(params.Registerer),
		StoreTimeout: cfg.Schedules.StoreTimeout,
	})
}

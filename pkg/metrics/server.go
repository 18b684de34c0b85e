package metrics

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/chatwoot-scheduler/pkg/logger"
)

// Path is where workers expose their collectors.
const Path = "/metrics"

const serverShutdownTimeout = 5 * time.Second

// Handler serves gatherer in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	router := chi.NewRouter()
	router.Handle(Path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return router
}

// Serve exposes gatherer on addr until ctx is done. Workers have no API
// router, so this is their only scrape endpoint. An empty addr disables it.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logg *logger.Logger) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           Handler(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	if logg != nil {
		logg.Info(logg.WithField(ctx, "metrics_addr", addr), "metrics endpoint listening")
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

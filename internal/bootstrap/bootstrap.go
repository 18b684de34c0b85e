// Package bootstrap holds the startup sequence shared by the scheduler
// binaries: environment, config, logger, backing clients and shutdown.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/chatwoot-scheduler/pkg/config"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/db"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/logger"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/metrics"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/migrate"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/pubsub"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/redis"
)

type closer struct {
	name string
	c    io.Closer
}

// Process is one running binary. Clients opened through it are closed in
// reverse order by Close.
type Process struct {
	Kind   string
	Config *config.Config
	Logger *logger.Logger

	closers []closer
	exit    func(code int)
}

// Start loads .env when present, parses the config and builds the service
// logger. Failures are fatal.
func Start(kind string) *Process {
	p := &Process{
		Kind:   kind,
		Logger: logger.New(logger.Options{ServiceName: kind}),
		exit:   os.Exit,
	}
	ctx := context.Background()
	if err := godotenv.Load(); err != nil {
		p.Logger.Debug(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	p.Must(ctx, "config", err)
	cfg.Service.Kind = kind
	p.Config = cfg
	p.Logger = logger.ForService(kind, cfg.App)
	return p
}

// Must logs err against resource, closes what was opened and exits. A nil
// err is a no-op.
func (p *Process) Must(ctx context.Context, resource string, err error) {
	if err == nil {
		return
	}
	p.Logger.Error(p.Logger.WithField(ctx, "resource", resource), "process aborted", err)
	p.Close(ctx)
	p.exit(1)
}

// Track registers c to be closed on shutdown.
func (p *Process) Track(name string, c io.Closer) {
	if c == nil {
		return
	}
	p.closers = append(p.closers, closer{name: name, c: c})
}

// Close releases every tracked client, last opened first.
func (p *Process) Close(ctx context.Context) {
	var errs error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].c.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", p.closers[i].name, err))
		}
	}
	p.closers = nil
	if errs != nil {
		p.Logger.Error(ctx, "error closing resources", errs)
	}
}

// Database opens the configured database and applies dev migrations.
func (p *Process) Database(ctx context.Context) *db.Client {
	client, err := db.New(ctx, p.Config.DB, p.Logger)
	p.Must(ctx, "database", err)
	p.Track("database", client)
	p.Must(ctx, "dev migrations", migrate.MaybeRunDev(ctx, p.Config, p.Logger, client))
	return client
}

// Redis connects when redis is configured. It returns nil otherwise, unless
// required is set, in which case a missing config is fatal.
func (p *Process) Redis(ctx context.Context, required bool) *redis.Client {
	if !p.Config.Redis.Enabled() {
		if required {
			p.Must(ctx, "redis", fmt.Errorf("%s or %s is required", config.EnvRedisURL, config.EnvRedisAddr))
		}
		return nil
	}
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	p.Must(ctx, "redis", err)
	p.Track("redis", client)
	return client
}

func (p *Process) PubSub(ctx context.Context) *pubsub.Client {
	client, err := pubsub.NewClient(ctx, p.Config.GCP, p.Config.PubSub, p.Logger)
	p.Must(ctx, "pubsub", err)
	p.Track("pubsub", client)
	return client
}

// SignalContext is cancelled on SIGINT or SIGTERM and carries the service
// identity plus fields as log fields.
func (p *Process) SignalContext(fields map[string]any) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	base := map[string]any{
		"env":         p.Config.App.Env,
		"serviceKind": p.Kind,
	}
	for k, v := range fields {
		base[k] = v
	}
	return p.Logger.WithFields(ctx, base), stop
}

// ServeMetrics exposes the default registry on the configured metrics
// address until ctx ends. Without an address it does nothing.
func (p *Process) ServeMetrics(ctx context.Context) {
	go func() {
		if err := metrics.Serve(ctx, p.Config.Metrics.Addr, prometheus.DefaultGatherer, p.Logger); err != nil {
			p.Logger.Error(ctx, "metrics endpoint stopped", err)
		}
	}()
}

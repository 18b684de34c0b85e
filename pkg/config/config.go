package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	HTTP         HTTPConfig
	Schedules    SchedulesConfig
	Webhook      WebhookConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	Metrics      MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Webhook.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SCHEDULER_APP_ENV" required:"true"`
	Port         string `envconfig:"SCHEDULER_APP_PORT" default:"3000"`
	LogLevel     string `envconfig:"SCHEDULER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SCHEDULER_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"SCHEDULER_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SCHEDULER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SCHEDULER_DB_DSN"`
	Driver string `envconfig:"SCHEDULER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SCHEDULER_DB_HOST"`
	LegacyPort     int    `envconfig:"SCHEDULER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SCHEDULER_DB_USER"`
	LegacyPassword string `envconfig:"SCHEDULER_DB_PASSWORD"`
	LegacyName     string `envconfig:"SCHEDULER_DB_NAME"`
	LegacySSLMode  string `envconfig:"SCHEDULER_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"SCHEDULER_SQLITE_PATH" default:"file:scheduler.db?cache=shared"`

	MaxOpenConns    int           `envconfig:"SCHEDULER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SCHEDULER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SCHEDULER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SCHEDULER_DB_CONN_MAX_IDLE_TIME" default:"30s"`

	SlowQueryThreshold time.Duration `envconfig:"SCHEDULER_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SCHEDULER_REDIS_URL"`
	Address      string        `envconfig:"SCHEDULER_REDIS_ADDR"`
	Password     string        `envconfig:"SCHEDULER_REDIS_PASSWORD"`
	DB           int           `envconfig:"SCHEDULER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SCHEDULER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SCHEDULER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SCHEDULER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SCHEDULER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SCHEDULER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SCHEDULER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SCHEDULER_AUTO_MIGRATE" default:"false"`
}

type HTTPConfig struct {
	BodyLimitMB     int           `envconfig:"SCHEDULER_HTTP_BODY_LIMIT_MB" default:"50"`
	AllowedOrigins  []string      `envconfig:"SCHEDULER_HTTP_ALLOWED_ORIGINS" default:"*"`
	WriteRateLimit  int           `envconfig:"SCHEDULER_HTTP_WRITE_RATE_LIMIT" default:"120"`
	WriteRateWindow time.Duration `envconfig:"SCHEDULER_HTTP_WRITE_RATE_WINDOW" default:"1m"`
	ShutdownTimeout time.Duration `envconfig:"SCHEDULER_HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

// BodyLimitBytes converts the configured megabyte cap into bytes.
func (h HTTPConfig) BodyLimitBytes() int64 {
	if h.BodyLimitMB <= 0 {
		return 50 << 20
	}
	return int64(h.BodyLimitMB) << 20
}

type SchedulesConfig struct {
	ReferenceZone string        `envconfig:"SCHEDULER_REFERENCE_ZONE" default:"America/Sao_Paulo"`
	StoreTimeout  time.Duration `envconfig:"SCHEDULER_STORE_TIMEOUT" default:"5s"`
	OverdueGrace  time.Duration `envconfig:"SCHEDULER_OVERDUE_GRACE" default:"15m"`
}

type WebhookConfig struct {
	PrimaryURLs   []string      `envconfig:"SCHEDULER_WEBHOOK_PRIMARY_URLS"`
	AlertURLs     []string      `envconfig:"SCHEDULER_WEBHOOK_ALERT_URLS"`
	LegacyPrimary string        `envconfig:"N8N_WEBHOOK_URL"`
	LegacyAlert   string        `envconfig:"N8N_ALERT_WEBHOOK_URL"`
	Timeout       time.Duration `envconfig:"SCHEDULER_WEBHOOK_TIMEOUT" default:"10s"`
	SigningSecret string        `envconfig:"SCHEDULER_WEBHOOK_SIGNING_SECRET"`
	TokenTTL      time.Duration `envconfig:"SCHEDULER_WEBHOOK_TOKEN_TTL" default:"5m"`

	BreakerFailures uint32        `envconfig:"SCHEDULER_WEBHOOK_BREAKER_FAILURES" default:"5"`
	BreakerCooldown time.Duration `envconfig:"SCHEDULER_WEBHOOK_BREAKER_COOLDOWN" default:"30s"`
}

// Primary returns the ordered primary endpoint list, falling back to N8N_WEBHOOK_URL.
func (w WebhookConfig) Primary() []string {
	return endpointList(w.PrimaryURLs, w.LegacyPrimary)
}

// Alert returns the ordered alert endpoint list, falling back to N8N_ALERT_WEBHOOK_URL.
func (w WebhookConfig) Alert() []string {
	return endpointList(w.AlertURLs, w.LegacyAlert)
}

func (w WebhookConfig) validate() error {
	for _, raw := range append(w.Primary(), w.Alert()...) {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid webhook url %q", raw)
		}
	}
	return nil
}

func endpointList(values []string, legacy string) []string {
	out := make([]string, 0, len(values)+1)
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		if trimmed := strings.TrimSpace(legacy); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type EventingConfig struct {
	DeliveryIdempotencyTTL time.Duration `envconfig:"SCHEDULER_EVENTING_IDEMPOTENCY_TTL" default:"168h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"SCHEDULER_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"SCHEDULER_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	ScheduleTopic              string `envconfig:"SCHEDULER_PUBSUB_SCHEDULE_TOPIC" default:"schedule-events"`
	DeliveryStatusSubscription string `envconfig:"SCHEDULER_PUBSUB_DELIVERY_STATUS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SCHEDULER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SCHEDULER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SCHEDULER_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"SCHEDULER_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SCHEDULER_CRON_INTERVAL" default:"10m"`
	LockTTL  time.Duration `envconfig:"SCHEDULER_CRON_LOCK_TTL" default:"9m"`
}

// MetricsConfig controls the scrape endpoint of the background workers. The
// API serves /metrics on its own router.
type MetricsConfig struct {
	Addr string `envconfig:"SCHEDULER_METRICS_ADDR"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

package config

// EnvPrefix namespaces every variable read by envconfig.
const EnvPrefix = "SCHEDULER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv       = "SCHEDULER_APP_ENV"
	EnvPort         = "SCHEDULER_APP_PORT"
	EnvLogLevel     = "SCHEDULER_LOG_LEVEL"
	EnvLogWarnStack = "SCHEDULER_LOG_WARN_STACK"
	EnvLogFormat    = "SCHEDULER_LOG_FORMAT"
	EnvServiceKind  = "SCHEDULER_SERVICE_KIND"

	EnvDBDSN     = "SCHEDULER_DB_DSN"
	EnvDBDriver  = "SCHEDULER_DB_DRIVER"
	EnvDBHost    = "SCHEDULER_DB_HOST"
	EnvDBPort    = "SCHEDULER_DB_PORT"
	EnvDBUser    = "SCHEDULER_DB_USER"
	EnvDBPass    = "SCHEDULER_DB_PASSWORD"
	EnvDBName    = "SCHEDULER_DB_NAME"
	EnvDBSSLMode = "SCHEDULER_DB_SSLMODE"
	EnvDBSlowSQL = "SCHEDULER_DB_SLOW_QUERY"

	EnvRedisURL  = "SCHEDULER_REDIS_URL"
	EnvRedisAddr = "SCHEDULER_REDIS_ADDR"

	EnvUseSQLite   = "SCHEDULER_USE_SQLITE"
	EnvAutoMigrate = "SCHEDULER_AUTO_MIGRATE"

	EnvWebhookPrimaryURLs = "SCHEDULER_WEBHOOK_PRIMARY_URLS"
	EnvWebhookAlertURLs   = "SCHEDULER_WEBHOOK_ALERT_URLS"
	EnvWebhookTimeout     = "SCHEDULER_WEBHOOK_TIMEOUT"
	EnvWebhookSecret      = "SCHEDULER_WEBHOOK_SIGNING_SECRET"

	EnvReferenceZone   = "SCHEDULER_REFERENCE_ZONE"
	EnvStoreTimeout    = "SCHEDULER_STORE_TIMEOUT"
	EnvOverdueGrace    = "SCHEDULER_OVERDUE_GRACE"
	EnvHTTPBodyLimitMB = "SCHEDULER_HTTP_BODY_LIMIT_MB"

	EnvGCPProjectID          = "SCHEDULER_GCP_PROJECT_ID"
	EnvGCPCredentialsJSON    = "SCHEDULER_GCP_CREDENTIALS_JSON"
	EnvPubSubScheduleTopic   = "SCHEDULER_PUBSUB_SCHEDULE_TOPIC"
	EnvPubSubDeliveryStatSub = "SCHEDULER_PUBSUB_DELIVERY_STATUS_SUBSCRIPTION"

	EnvMetricsAddr = "SCHEDULER_METRICS_ADDR"
)

// Legacy (pre-DSN) database variables N8N-era deployments still carry.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

package config

// EnvPrefix is passed to envconfig; every field carries its full name so the prefix only
// matters for fields without an explicit tag.
const EnvPrefix = "POS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "POS_APP_ENV"
	EnvPort      = "POS_APP_PORT"
	EnvLogLevel  = "POS_LOG_LEVEL"
	EnvLogFormat = "POS_LOG_FORMAT"

	EnvDBDSN  = "POS_DB_DSN"
	EnvDBHost = "POS_DB_HOST"
	EnvDBUser = "POS_DB_USER"
	EnvDBName = "POS_DB_NAME"

	EnvRedisURL = "POS_REDIS_URL"

	EnvJWTSecret              = "POS_JWT_SECRET"
	EnvJWTIssuer              = "POS_JWT_ISSUER"
	EnvJWTExpMins             = "POS_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "POS_REFRESH_TOKEN_TTL_MINUTES"

	EnvVerifySaleTotals = "POS_FEATURE_VERIFY_SALE_TOTALS"
	EnvSaleEvents       = "POS_FEATURE_SALE_EVENTS"

	EnvLowStockThreshold = "POS_REPORTS_LOW_STOCK_THRESHOLD"

	EnvGCPProjectID     = "POS_GCP_PROJECT_ID"
	EnvPubSubSalesTopic = "POS_PUBSUB_SALES_TOPIC"

	EnvCronInterval            = "POS_CRON_INTERVAL"
	EnvCronOutboxRetentionDays = "POS_CRON_OUTBOX_RETENTION_DAYS"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

package config

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "TAMWILL_APP_ENV"
	EnvPort     = "TAMWILL_APP_PORT"
	EnvLogLevel = "TAMWILL_LOG_LEVEL"

	EnvDBDSN  = "TAMWILL_DB_DSN"
	EnvDBHost = "TAMWILL_DB_HOST"
	EnvDBUser = "TAMWILL_DB_USER"
	EnvDBName = "TAMWILL_DB_NAME"

	EnvRedisURL = "TAMWILL_REDIS_URL"

	EnvJWTSecret  = "TAMWILL_JWT_SECRET"
	EnvJWTIssuer  = "TAMWILL_JWT_ISSUER"
	EnvJWTExpMins = "TAMWILL_JWT_EXPIRATION_MINUTES"

	EnvFundingMinimum  = "TAMWILL_FUNDING_MINIMUM"
	EnvFundingCurrency = "TAMWILL_FUNDING_CURRENCY"

	EnvStripeAPIKey = "TAMWILL_STRIPE_API_KEY"
	EnvStripeSecret = "TAMWILL_STRIPE_SECRET"

	EnvGCPProjectID            = "TAMWILL_GCP_PROJECT_ID"
	EnvPubSubNotificationTopic = "TAMWILL_PUBSUB_NOTIFICATION_TOPIC"

	EnvWebhookIdempotencyTTL = "TAMWILL_WEBHOOK_IDEMPOTENCY_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

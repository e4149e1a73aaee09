package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/angelmondragon/tamwill-backend/pkg/money"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Funding      FundingConfig
	Stripe       StripeConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Webhooks     WebhooksConfig
	RateLimit    RateLimitConfig
	Telemetry    TelemetryConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Funding.MinimumAmount(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TAMWILL_APP_ENV" required:"true"`
	Port         string `envconfig:"TAMWILL_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"TAMWILL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TAMWILL_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"TAMWILL_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TAMWILL_DB_DSN"`
	Driver string `envconfig:"TAMWILL_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TAMWILL_DB_HOST"`
	LegacyPort     int    `envconfig:"TAMWILL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TAMWILL_DB_USER"`
	LegacyPassword string `envconfig:"TAMWILL_DB_PASSWORD"`
	LegacyName     string `envconfig:"TAMWILL_DB_NAME"`
	LegacySSLMode  string `envconfig:"TAMWILL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TAMWILL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TAMWILL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TAMWILL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TAMWILL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQueryThreshold logs statements slower than this; zero disables it.
	SlowQueryThreshold time.Duration `envconfig:"TAMWILL_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TAMWILL_REDIS_URL"`
	Address      string        `envconfig:"TAMWILL_REDIS_ADDR"`
	Password     string        `envconfig:"TAMWILL_REDIS_PASSWORD"`
	DB           int           `envconfig:"TAMWILL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TAMWILL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TAMWILL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TAMWILL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TAMWILL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TAMWILL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TAMWILL_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TAMWILL_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TAMWILL_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TAMWILL_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TAMWILL_AUTO_MIGRATE" default:"false"`
}

// FundingConfig holds the platform rules applied when contributions are opened.
type FundingConfig struct {
	MinimumContribution string `envconfig:"TAMWILL_FUNDING_MINIMUM" default:"5.00"`
	Currency            string `envconfig:"TAMWILL_FUNDING_CURRENCY" default:"usd"`
	ProviderName        string `envconfig:"TAMWILL_FUNDING_PROVIDER_NAME" default:"Stripe Elements"`
}

// MinimumAmount parses the configured minimum into minor units.
func (f FundingConfig) MinimumAmount() (money.Amount, error) {
	raw := strings.TrimSpace(f.MinimumContribution)
	if raw == "" {
		return money.Amount(0), nil
	}
	amount, err := money.Parse(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", EnvFundingMinimum, err)
	}
	if amount.IsNegative() {
		return 0, fmt.Errorf("%s must not be negative", EnvFundingMinimum)
	}
	return amount, nil
}

// NormalizedCurrency returns the lower-case ISO currency code.
func (f FundingConfig) NormalizedCurrency() string {
	cur := strings.ToLower(strings.TrimSpace(f.Currency))
	if cur == "" {
		return "usd"
	}
	return cur
}

type StripeConfig struct {
	APIKey string `envconfig:"TAMWILL_STRIPE_API_KEY"`
	Secret string `envconfig:"TAMWILL_STRIPE_SECRET"`
	Env    string `envconfig:"TAMWILL_STRIPE_ENV" default:"test"`
	// MaxNetworkRetries applies to idempotent provider calls.
	MaxNetworkRetries int64         `envconfig:"TAMWILL_STRIPE_MAX_RETRIES" default:"2"`
	Timeout           time.Duration `envconfig:"TAMWILL_STRIPE_TIMEOUT" default:"10s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type GCPConfig struct {
	ProjectID       string `envconfig:"TAMWILL_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"TAMWILL_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"TAMWILL_PUBSUB_NOTIFICATION_TOPIC" default:"tw-payout-notifications"`
}

type WebhooksConfig struct {
	IdempotencyTTL time.Duration `envconfig:"TAMWILL_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

// RateLimitConfig throttles contribution initiation per user. A zero limit
// disables the check.
type RateLimitConfig struct {
	ContributionLimit  int           `envconfig:"TAMWILL_RATE_LIMIT_CONTRIBUTIONS" default:"10"`
	ContributionWindow time.Duration `envconfig:"TAMWILL_RATE_LIMIT_CONTRIBUTIONS_WINDOW" default:"1m"`
}

type TelemetryConfig struct {
	Enabled      bool   `envconfig:"TAMWILL_OTEL_ENABLED" default:"false"`
	OTLPEndpoint string `envconfig:"TAMWILL_OTEL_ENDPOINT"`
	Insecure     bool   `envconfig:"TAMWILL_OTEL_INSECURE" default:"false"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"TAMWILL_CORS_ALLOWED_ORIGINS" default:"*"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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

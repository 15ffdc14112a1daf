package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "TOURLINK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "TOURLINK_APP_ENV"
	EnvPort     = "TOURLINK_APP_PORT"
	EnvLogLevel = "TOURLINK_LOG_LEVEL"

	EnvDBDSN  = "TOURLINK_DB_DSN"
	EnvDBHost = "TOURLINK_DB_HOST"
	EnvDBUser = "TOURLINK_DB_USER"
	EnvDBName = "TOURLINK_DB_NAME"

	EnvRedisURL = "TOURLINK_REDIS_URL"

	EnvGCPProjectID          = "TOURLINK_GCP_PROJECT_ID"
	EnvPubSubBookingsTopic   = "TOURLINK_PUBSUB_BOOKINGS_TOPIC"
	EnvPubSubCommissionTopic = "TOURLINK_PUBSUB_COMMISSIONS_TOPIC"
	EnvPubSubHierarchyTopic  = "TOURLINK_PUBSUB_HIERARCHY_TOPIC"

	EnvBookingPendingTTL   = "TOURLINK_BOOKING_PENDING_TTL"
	EnvReferralRetryBudget = "TOURLINK_REFERRAL_RETRY_BUDGET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	HTTP         HTTPConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	Referral     ReferralConfig
	Hierarchy    HierarchyConfig
	Booking      BookingConfig
	Commission   CommissionConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

// defaultSQLiteDSN is used for local runs with TOURLINK_USE_SQLITE and no DSN.
const defaultSQLiteDSN = "file:tourlink.db?cache=shared&_foreign_keys=on"

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
		if cfg.DB.DSN == "" {
			cfg.DB.DSN = defaultSQLiteDSN
		}
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TOURLINK_APP_ENV" required:"true"`
	Port         string `envconfig:"TOURLINK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TOURLINK_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"TOURLINK_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"TOURLINK_LOG_WARN_STACK" default:"false"`
	// MetricsAddr is the listen address for the worker /metrics endpoint.
	// Empty disables it; the API serves metrics on its own router.
	MetricsAddr  string `envconfig:"TOURLINK_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TOURLINK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TOURLINK_DB_DSN"`
	Driver string `envconfig:"TOURLINK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TOURLINK_DB_HOST"`
	LegacyPort     int    `envconfig:"TOURLINK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TOURLINK_DB_USER"`
	LegacyPassword string `envconfig:"TOURLINK_DB_PASSWORD"`
	LegacyName     string `envconfig:"TOURLINK_DB_NAME"`
	LegacySSLMode  string `envconfig:"TOURLINK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TOURLINK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TOURLINK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TOURLINK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TOURLINK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"TOURLINK_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TOURLINK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TOURLINK_REDIS_ADDR"`
	Password     string        `envconfig:"TOURLINK_REDIS_PASSWORD"`
	DB           int           `envconfig:"TOURLINK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TOURLINK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TOURLINK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TOURLINK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TOURLINK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TOURLINK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type HTTPConfig struct {
	AllowedOrigins    []string      `envconfig:"TOURLINK_HTTP_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	RateLimitWindow   time.Duration `envconfig:"TOURLINK_HTTP_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitRequests int           `envconfig:"TOURLINK_HTTP_RATE_LIMIT_REQUESTS" default:"120"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TOURLINK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TOURLINK_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"TOURLINK_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	HTTPIdempotencyTTL   time.Duration `envconfig:"TOURLINK_HTTP_IDEMPOTENCY_TTL" default:"24h"`
}

type ReferralConfig struct {
	CodeLength  int `envconfig:"TOURLINK_REFERRAL_CODE_LENGTH" default:"8"`
	RetryBudget int `envconfig:"TOURLINK_REFERRAL_RETRY_BUDGET" default:"20"`
}

type HierarchyConfig struct {
	MaxWalkHops                 int    `envconfig:"TOURLINK_HIERARCHY_MAX_WALK_HOPS" default:"100"`
	DefaultOwnCommissionRate    string `envconfig:"TOURLINK_DEFAULT_OWN_COMMISSION_RATE" default:"10.00"`
	DefaultUplineCommissionRate string `envconfig:"TOURLINK_DEFAULT_UPLINE_COMMISSION_RATE" default:"3.00"`
}

type BookingConfig struct {
	PendingTTL time.Duration `envconfig:"TOURLINK_BOOKING_PENDING_TTL" default:"48h"`
	MaxSeats   int           `envconfig:"TOURLINK_BOOKING_MAX_SEATS" default:"50"`
}

type CommissionConfig struct {
	DefaultCurrency string `envconfig:"TOURLINK_COMMISSION_DEFAULT_CURRENCY" default:"USD"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TOURLINK_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"TOURLINK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TOURLINK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	BookingsTopic    string `envconfig:"TOURLINK_PUBSUB_BOOKINGS_TOPIC" default:"tl-booking-events"`
	CommissionsTopic string `envconfig:"TOURLINK_PUBSUB_COMMISSIONS_TOPIC" default:"tl-commission-events"`
	HierarchyTopic   string `envconfig:"TOURLINK_PUBSUB_HIERARCHY_TOPIC" default:"tl-hierarchy-events"`

	DownlineSubscription string `envconfig:"TOURLINK_PUBSUB_DOWNLINE_SUBSCRIPTION" default:"tl-hierarchy-events-downline"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"TOURLINK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"TOURLINK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"TOURLINK_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"TOURLINK_OUTBOX_RETENTION" default:"720h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"TOURLINK_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"TOURLINK_CRON_LOCK_TTL" default:"4m"`
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

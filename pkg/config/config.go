package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/printhub/vendor-ledger/pkg/enums"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Ledger       LedgerConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Ledger.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LEDGER_APP_ENV" required:"true"`
	OpsPort      string `envconfig:"LEDGER_OPS_PORT" default:"9090"`
	LogLevel     string `envconfig:"LEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LEDGER_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"LEDGER_LOG_FORMAT" default:"json"`
}

// ConsoleLogs reports whether logs should use the human readable writer.
func (a AppConfig) ConsoleLogs() bool {
	return strings.EqualFold(a.LogFormat, "console")
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LEDGER_SERVICE_KIND" default:"cron-worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"LEDGER_DB_DSN"`
	Driver string `envconfig:"LEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"LEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LEDGER_DB_USER"`
	LegacyPassword string `envconfig:"LEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"LEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"LEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LEDGER_REDIS_URL"`
	Address      string        `envconfig:"LEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"LEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"LEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LEDGER_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"LEDGER_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"LEDGER_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	AuditTopic             string `envconfig:"LEDGER_PUBSUB_AUDIT_TOPIC" default:"ledger-audit-events"`
	SettlementTopic        string `envconfig:"LEDGER_PUBSUB_SETTLEMENT_TOPIC" default:"order-settlement-events"`
	SettlementSubscription string `envconfig:"LEDGER_PUBSUB_SETTLEMENT_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LEDGER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LEDGER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LEDGER_OUTBOX_MAX_ATTEMPTS" default:"10"`

	// Retention is how long published rows are kept before the cron job
	// deletes them. Rows that needed KeepAttempts or more tries are kept.
	Retention    time.Duration `envconfig:"LEDGER_OUTBOX_RETENTION" default:"720h"`
	KeepAttempts int           `envconfig:"LEDGER_OUTBOX_RETENTION_KEEP_ATTEMPTS" default:"5"`
}

// LedgerConfig holds the business knobs of the payout engine.
type LedgerConfig struct {
	DefaultPageSize     int           `envconfig:"LEDGER_DEFAULT_PAGE_SIZE" default:"50"`
	MaxPageSize         int           `envconfig:"LEDGER_MAX_PAGE_SIZE" default:"200"`
	MinPayoutCents      int64         `envconfig:"LEDGER_MIN_PAYOUT_CENTS" default:"100000"`
	TxTimeout           time.Duration `envconfig:"LEDGER_TX_TIMEOUT" default:"10s"`
	HealthWarningRatio  float64       `envconfig:"LEDGER_HEALTH_WARNING_RATIO" default:"0.7"`
	HealthCriticalRatio float64       `envconfig:"LEDGER_HEALTH_CRITICAL_RATIO" default:"0.9"`
	RevenueChartDays    int           `envconfig:"LEDGER_REVENUE_CHART_DAYS" default:"7"`
	Currency            string        `envconfig:"LEDGER_CURRENCY" default:"VND"`
}

func (l LedgerConfig) validate() error {
	if l.DefaultPageSize <= 0 || l.MaxPageSize <= 0 {
		return fmt.Errorf("%s and %s must be positive", EnvLedgerDefaultPage, EnvLedgerMaxPage)
	}
	if l.DefaultPageSize > l.MaxPageSize {
		return fmt.Errorf("%s cannot exceed %s", EnvLedgerDefaultPage, EnvLedgerMaxPage)
	}
	if l.HealthWarningRatio <= 0 || l.HealthCriticalRatio <= 0 {
		return fmt.Errorf("health ratios must be positive")
	}
	if _, err := enums.ParseCurrency(l.Currency); err != nil {
		return fmt.Errorf("%s: %w", EnvLedgerCurrency, err)
	}
	if l.HealthWarningRatio > l.HealthCriticalRatio {
		return fmt.Errorf("%s cannot exceed %s", EnvLedgerHealthWarning, EnvLedgerHealthCritical)
	}
	return nil
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"LEDGER_CRON_INTERVAL" default:"15m"`
	LockTTL    time.Duration `envconfig:"LEDGER_CRON_LOCK_TTL" default:"10m"`
	// JobTimeout bounds a single job; it should stay below LockTTL.
	JobTimeout time.Duration `envconfig:"LEDGER_CRON_JOB_TIMEOUT" default:"5m"`
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

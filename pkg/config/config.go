package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "VITALSHIFT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "VITALSHIFT_DB_DSN"
	EnvDBHost = "VITALSHIFT_DB_HOST"
	EnvDBUser = "VITALSHIFT_DB_USER"
	EnvDBName = "VITALSHIFT_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Gateway      GatewayConfig
	Fees         FeesConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VITALSHIFT_APP_ENV" required:"true"`
	Port         string `envconfig:"VITALSHIFT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VITALSHIFT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VITALSHIFT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VITALSHIFT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VITALSHIFT_DB_DSN"`
	Driver string `envconfig:"VITALSHIFT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VITALSHIFT_DB_HOST"`
	LegacyPort     int    `envconfig:"VITALSHIFT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VITALSHIFT_DB_USER"`
	LegacyPassword string `envconfig:"VITALSHIFT_DB_PASSWORD"`
	LegacyName     string `envconfig:"VITALSHIFT_DB_NAME"`
	LegacySSLMode  string `envconfig:"VITALSHIFT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VITALSHIFT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VITALSHIFT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VITALSHIFT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VITALSHIFT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VITALSHIFT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VITALSHIFT_REDIS_ADDR"`
	Password     string        `envconfig:"VITALSHIFT_REDIS_PASSWORD"`
	DB           int           `envconfig:"VITALSHIFT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VITALSHIFT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VITALSHIFT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VITALSHIFT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VITALSHIFT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VITALSHIFT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// GatewayConfig points at the mobile-money / card payment provider.
type GatewayConfig struct {
	BaseURL       string        `envconfig:"VITALSHIFT_GATEWAY_BASE_URL" required:"true"`
	APIKey        string        `envconfig:"VITALSHIFT_GATEWAY_API_KEY" required:"true"`
	WebhookSecret string        `envconfig:"VITALSHIFT_GATEWAY_WEBHOOK_SECRET" required:"true"`
	CallbackURL   string        `envconfig:"VITALSHIFT_GATEWAY_CALLBACK_URL" required:"true"`
	RedirectURL   string        `envconfig:"VITALSHIFT_GATEWAY_REDIRECT_URL"`
	Timeout       time.Duration `envconfig:"VITALSHIFT_GATEWAY_TIMEOUT" default:"15s"`
}

// FeesConfig selects the active fee schedule version. Historic settlements
// stay reproducible because the payout row records the version it used.
type FeesConfig struct {
	ScheduleVersion int `envconfig:"VITALSHIFT_FEE_SCHEDULE_VERSION" default:"1"`
}

type CronConfig struct {
	Secret            string        `envconfig:"VITALSHIFT_CRON_SECRET" required:"true"`
	Interval          time.Duration `envconfig:"VITALSHIFT_CRON_INTERVAL" default:"5m"`
	DisputeWindow     time.Duration `envconfig:"VITALSHIFT_DISPUTE_WINDOW" default:"24h"`
	IntentTTL         time.Duration `envconfig:"VITALSHIFT_PAYMENT_INTENT_TTL" default:"15m"`
	PayoutBatchSize   int           `envconfig:"VITALSHIFT_PAYOUT_BATCH_SIZE" default:"100"`
	PayoutMaxRetries  int           `envconfig:"VITALSHIFT_PAYOUT_MAX_RETRIES" default:"3"`
	PayoutRetryDelay  time.Duration `envconfig:"VITALSHIFT_PAYOUT_RETRY_DELAY" default:"5m"`
	InvoiceDueIn      time.Duration `envconfig:"VITALSHIFT_INVOICE_DUE_IN" default:"168h"`
	WebhookEventTTL   time.Duration `envconfig:"VITALSHIFT_WEBHOOK_EVENT_TTL" default:"720h"`
	SettlementEnabled bool          `envconfig:"VITALSHIFT_SETTLEMENT_ENABLED" default:"true"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VITALSHIFT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"VITALSHIFT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VITALSHIFT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"VITALSHIFT_PUBSUB_NOTIFICATION_TOPIC" default:"vs-notification-events"`
}

type FeatureFlagsConfig struct {
	AutoMigrate       bool `envconfig:"VITALSHIFT_AUTO_MIGRATE" default:"false"`
	SkipWebhookVerify bool `envconfig:"VITALSHIFT_FEATURE_SKIP_WEBHOOK_VERIFY" default:"false"`
	NotifyEnabled     bool `envconfig:"VITALSHIFT_FEATURE_NOTIFY" default:"true"`
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

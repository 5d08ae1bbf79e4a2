package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "kanakkart"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv = "KANAKKART_APP_ENV"
	EnvDBDSN  = "KANAKKART_DB_DSN"
	EnvDBHost = "KANAKKART_DB_HOST"
	EnvDBUser = "KANAKKART_DB_USER"
	EnvDBName = "KANAKKART_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Razorpay     RazorpayConfig
	Shiprocket   ShiprocketConfig
	Sendgrid     SendgridConfig
	Notify       NotifyConfig
	Sweep        SweepConfig
	RateLimit    RateLimitConfig
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
	Env          string `envconfig:"KANAKKART_APP_ENV" required:"true"`
	Port         string `envconfig:"KANAKKART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KANAKKART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KANAKKART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"KANAKKART_DB_DSN"`
	Driver string `envconfig:"KANAKKART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KANAKKART_DB_HOST"`
	LegacyPort     int    `envconfig:"KANAKKART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KANAKKART_DB_USER"`
	LegacyPassword string `envconfig:"KANAKKART_DB_PASSWORD"`
	LegacyName     string `envconfig:"KANAKKART_DB_NAME"`
	LegacySSLMode  string `envconfig:"KANAKKART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KANAKKART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KANAKKART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KANAKKART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KANAKKART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KANAKKART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KANAKKART_REDIS_ADDR"`
	Password     string        `envconfig:"KANAKKART_REDIS_PASSWORD"`
	DB           int           `envconfig:"KANAKKART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KANAKKART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KANAKKART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KANAKKART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KANAKKART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KANAKKART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"KANAKKART_AUTO_MIGRATE" default:"false"`
}

type RazorpayConfig struct {
	KeyID         string `envconfig:"KANAKKART_RAZORPAY_KEY_ID" required:"true"`
	KeySecret     string `envconfig:"KANAKKART_RAZORPAY_KEY_SECRET" required:"true"`
	WebhookSecret string `envconfig:"KANAKKART_RAZORPAY_WEBHOOK_SECRET" required:"true"`
	Currency      string `envconfig:"KANAKKART_RAZORPAY_CURRENCY" default:"INR"`
}

type ShiprocketConfig struct {
	BaseURL        string        `envconfig:"KANAKKART_SHIPROCKET_BASE_URL" default:"https://apiv2.shiprocket.in/v1/external"`
	Email          string        `envconfig:"KANAKKART_SHIPROCKET_EMAIL"`
	Password       string        `envconfig:"KANAKKART_SHIPROCKET_PASSWORD"`
	PickupLocation string        `envconfig:"KANAKKART_SHIPROCKET_PICKUP_LOCATION" default:"Primary"`
	RequestTimeout time.Duration `envconfig:"KANAKKART_SHIPROCKET_TIMEOUT" default:"15s"`
	TokenTTL       time.Duration `envconfig:"KANAKKART_SHIPROCKET_TOKEN_TTL" default:"216h"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"KANAKKART_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"KANAKKART_SENDGRID_FROM_EMAIL"`
	FromName    string `envconfig:"KANAKKART_SENDGRID_FROM_NAME" default:"KanakKart"`
}

type NotifyConfig struct {
	QueueSize   int           `envconfig:"KANAKKART_NOTIFY_QUEUE_SIZE" default:"256"`
	MaxAttempts int           `envconfig:"KANAKKART_NOTIFY_MAX_ATTEMPTS" default:"3"`
	RetryDelay  time.Duration `envconfig:"KANAKKART_NOTIFY_RETRY_DELAY" default:"30s"`
	SendTimeout time.Duration `envconfig:"KANAKKART_NOTIFY_SEND_TIMEOUT" default:"10s"`
}

type SweepConfig struct {
	Interval  time.Duration `envconfig:"KANAKKART_SHIPMENT_SWEEP_INTERVAL" default:"10m"`
	BatchSize int           `envconfig:"KANAKKART_SHIPMENT_SWEEP_BATCH" default:"25"`
}

type RateLimitConfig struct {
	Window        time.Duration `envconfig:"KANAKKART_RATE_LIMIT_WINDOW" default:"1m"`
	CheckoutLimit int           `envconfig:"KANAKKART_RATE_LIMIT_CHECKOUT" default:"30"`
	WebhookLimit  int           `envconfig:"KANAKKART_RATE_LIMIT_WEBHOOK" default:"120"`
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

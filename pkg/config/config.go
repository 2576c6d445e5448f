package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable the platform reads.
	EnvPrefix = "DORCE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "DORCE_DB_DSN"
	EnvDBHost = "DORCE_DB_HOST"
	EnvDBUser = "DORCE_DB_USER"
	EnvDBName = "DORCE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Checkout     CheckoutConfig
	Gateway      GatewayConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"DORCE_APP_ENV" required:"true"`
	Port         string `envconfig:"DORCE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"DORCE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DORCE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"DORCE_DB_DSN"`
	Driver string `envconfig:"DORCE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DORCE_DB_HOST"`
	LegacyPort     int    `envconfig:"DORCE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DORCE_DB_USER"`
	LegacyPassword string `envconfig:"DORCE_DB_PASSWORD"`
	LegacyName     string `envconfig:"DORCE_DB_NAME"`
	LegacySSLMode  string `envconfig:"DORCE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DORCE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DORCE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DORCE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DORCE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DORCE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DORCE_REDIS_ADDR"`
	Password     string        `envconfig:"DORCE_REDIS_PASSWORD"`
	DB           int           `envconfig:"DORCE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DORCE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DORCE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DORCE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DORCE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DORCE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CheckoutConfig carries the money knobs the cart and checkout pipeline use.
// All amounts are minor currency units; rates are basis points.
type CheckoutConfig struct {
	Currency              string        `envconfig:"DORCE_CHECKOUT_CURRENCY" default:"NGN"`
	TaxRateBps            int64         `envconfig:"DORCE_CHECKOUT_TAX_RATE_BPS" default:"500"`
	ShippingFlatFeeCents  int64         `envconfig:"DORCE_CHECKOUT_SHIPPING_FLAT_FEE" default:"500"`
	FreeShippingThreshold int64         `envconfig:"DORCE_CHECKOUT_FREE_SHIPPING_THRESHOLD" default:"2500000"`
	CartTTL               time.Duration `envconfig:"DORCE_CHECKOUT_CART_TTL" default:"24h"`
	GatewayTimeout        time.Duration `envconfig:"DORCE_CHECKOUT_GATEWAY_TIMEOUT" default:"15s"`
	CallbackURL           string        `envconfig:"DORCE_CHECKOUT_CALLBACK_URL"`
	OrderNumberAttempts   int           `envconfig:"DORCE_CHECKOUT_ORDER_NUMBER_ATTEMPTS" default:"3"`
}

type GatewayConfig struct {
	StripeAPIKey string `envconfig:"DORCE_STRIPE_API_KEY"`
	StripeEnv    string `envconfig:"DORCE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized gateway environment (test/live).
func (g GatewayConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(g.StripeEnv))
	if env == "" {
		return "test"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"DORCE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"DORCE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"DORCE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"DORCE_PUBSUB_DOMAIN_TOPIC" default:"dorce-domain-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"DORCE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"DORCE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"DORCE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"DORCE_AUTO_MIGRATE" default:"false"`
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

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
	HTTP         HTTPConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	POS          POSConfig
	Pricing      PricingConfig
	Store        StoreConfig
	Gateway      GatewayConfig
	Square       SquareConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.POS.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"POS_APP_ENV" required:"true"`
	Port         string `envconfig:"POS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"POS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"POS_LOG_WARN_STACK" default:"false"`
}

// HTTPConfig covers the browser-facing surface: allowed origins and login throttling.
type HTTPConfig struct {
	CORSOrigins     []string      `envconfig:"POS_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	LoginWindow     time.Duration `envconfig:"POS_LOGIN_RATE_WINDOW" default:"1m"`
	LoginIPLimit    int           `envconfig:"POS_LOGIN_RATE_IP_LIMIT" default:"20"`
	LoginStaffLimit int           `envconfig:"POS_LOGIN_RATE_STAFF_LIMIT" default:"5"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"POS_DB_DSN"`
	Driver string `envconfig:"POS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"POS_DB_HOST"`
	LegacyPort     int    `envconfig:"POS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"POS_DB_USER"`
	LegacyPassword string `envconfig:"POS_DB_PASSWORD"`
	LegacyName     string `envconfig:"POS_DB_NAME"`
	LegacySSLMode  string `envconfig:"POS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"POS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"POS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"POS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"POS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	TxAttempts      int           `envconfig:"POS_DB_TX_ATTEMPTS" default:"3"`
}

type RedisConfig struct {
	URL          string        `envconfig:"POS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"POS_REDIS_ADDR"`
	Password     string        `envconfig:"POS_REDIS_PASSWORD"`
	DB           int           `envconfig:"POS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"POS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"POS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"POS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"POS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"POS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"POS_JWT_EXPIRATION_MINUTES" default:"720"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"POS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"POS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"POS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"POS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"POS_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"POS_AUTO_MIGRATE" default:"false"`
}

// POSConfig drives register behavior: idle handling, SKU sequencing, finalize guards.
type POSConfig struct {
	IdleTimeout         time.Duration `envconfig:"POS_IDLE_TIMEOUT" default:"5m"`
	WatchdogInterval    time.Duration `envconfig:"POS_WATCHDOG_INTERVAL" default:"10s"`
	ClearCartOnIdle     bool          `envconfig:"POS_CLEAR_CART_ON_IDLE" default:"false"`
	SKUSequenceBackend  string        `envconfig:"POS_SKU_SEQUENCE_BACKEND" default:"db"`
	FinalizeGuardTTL    time.Duration `envconfig:"POS_FINALIZE_GUARD_TTL" default:"24h"`
	RegisterLockTTL     time.Duration `envconfig:"POS_REGISTER_LOCK_TTL" default:"12h"`
	CardCollectTimeout  time.Duration `envconfig:"POS_CARD_COLLECT_TIMEOUT" default:"2m"`
	GatewayStepTimeout  time.Duration `envconfig:"POS_GATEWAY_STEP_TIMEOUT" default:"30s"`
	DefaultCurrencyCode string        `envconfig:"POS_DEFAULT_CURRENCY" default:"CAD"`
}

func (p POSConfig) validate() error {
	if p.IdleTimeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvIdleTimeout)
	}
	if p.WatchdogInterval <= 0 {
		return fmt.Errorf("%s must be positive", EnvWatchdogInterval)
	}
	switch p.SequenceBackend() {
	case SequenceBackendDB, SequenceBackendRedis:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvSKUSequenceBackend, SequenceBackendDB, SequenceBackendRedis)
	}
	return nil
}

// SequenceBackend returns the normalized SKU counter backend name.
func (p POSConfig) SequenceBackend() string {
	backend := strings.TrimSpace(strings.ToLower(p.SKUSequenceBackend))
	if backend == "" {
		return SequenceBackendDB
	}
	return backend
}

// PricingConfig holds fallback tax rates when the settings table has no row.
type PricingConfig struct {
	RegisterTaxRate string `envconfig:"POS_REGISTER_TAX_RATE" default:"0.13"`
	FederalTaxRate  string `envconfig:"POS_FEDERAL_TAX_RATE" default:"0.05"`
	ProvincialRate  string `envconfig:"POS_PROVINCIAL_TAX_RATE" default:"0.08"`
}

// StoreConfig seeds the receipt header when no store profile is persisted.
type StoreConfig struct {
	Name    string `envconfig:"POS_STORE_NAME" default:"MAISON"`
	Address string `envconfig:"POS_STORE_ADDRESS"`
	Phone   string `envconfig:"POS_STORE_PHONE"`
	TaxID   string `envconfig:"POS_STORE_TAX_ID"`
	Footer  string `envconfig:"POS_RECEIPT_FOOTER" default:"Thank you for shopping with us"`
}

type GatewayConfig struct {
	Driver string `envconfig:"POS_GATEWAY_DRIVER" default:"simulated"`
}

// IsSquare reports whether card payments run through Square.
func (g GatewayConfig) IsSquare() bool {
	return strings.EqualFold(strings.TrimSpace(g.Driver), GatewayDriverSquare)
}

type SquareConfig struct {
	AccessToken string   `envconfig:"POS_SQUARE_ACCESS_TOKEN"`
	Env         string   `envconfig:"POS_SQUARE_ENV" default:"sandbox"`
	LocationID  string   `envconfig:"POS_SQUARE_LOCATION_ID"`
	DeviceIDs   []string `envconfig:"POS_SQUARE_DEVICE_IDS"`
	SourceID    string   `envconfig:"POS_SQUARE_SANDBOX_SOURCE_ID" default:"cnon:card-nonce-ok"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"POS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"POS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"POS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic       string `envconfig:"POS_PUBSUB_ORDERS_TOPIC" default:"pos-order-events"`
	NotificationTopic string `envconfig:"POS_PUBSUB_NOTIFICATION_TOPIC" default:"pos-notification-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"POS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"POS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"POS_OUTBOX_MAX_ATTEMPTS" default:"10"`
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

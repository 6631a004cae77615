package config

// EnvPrefix is handed to envconfig; every field carries an explicit key.
const EnvPrefix = "POS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	SequenceBackendDB    = "db"
	SequenceBackendRedis = "redis"

	GatewayDriverSquare    = "square"
	GatewayDriverSimulated = "simulated"
)

const (
	EnvAppEnv             = "POS_APP_ENV"
	EnvPort               = "POS_APP_PORT"
	EnvDBDSN              = "POS_DB_DSN"
	EnvDBHost             = "POS_DB_HOST"
	EnvDBUser             = "POS_DB_USER"
	EnvDBName             = "POS_DB_NAME"
	EnvRedisURL           = "POS_REDIS_URL"
	EnvJWTSecret          = "POS_JWT_SECRET"
	EnvJWTIssuer          = "POS_JWT_ISSUER"
	EnvIdleTimeout        = "POS_IDLE_TIMEOUT"
	EnvWatchdogInterval   = "POS_WATCHDOG_INTERVAL"
	EnvSKUSequenceBackend = "POS_SKU_SEQUENCE_BACKEND"
	EnvSquareDeviceIDs    = "POS_SQUARE_DEVICE_IDS"
	EnvGatewayDriver      = "POS_GATEWAY_DRIVER"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

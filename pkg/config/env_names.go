package config

const EnvPrefix = "FOODSEARCH"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv         = "FOODSEARCH_APP_ENV"
	EnvPort           = "FOODSEARCH_APP_PORT"
	EnvLogLevel       = "FOODSEARCH_LOG_LEVEL"
	EnvRedisURL       = "FOODSEARCH_REDIS_URL"
	EnvBackendBaseURL = "FOODSEARCH_BACKEND_BASE_URL"
	EnvBackendTimeout = "FOODSEARCH_BACKEND_TIMEOUT"
)

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App     AppConfig
	Redis   RedisConfig
	Backend BackendConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Backend.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FOODSEARCH_APP_ENV" required:"true"`
	Port         string `envconfig:"FOODSEARCH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FOODSEARCH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FOODSEARCH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type RedisConfig struct {
	URL          string        `envconfig:"FOODSEARCH_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FOODSEARCH_REDIS_ADDR"`
	Password     string        `envconfig:"FOODSEARCH_REDIS_PASSWORD"`
	DB           int           `envconfig:"FOODSEARCH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FOODSEARCH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FOODSEARCH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FOODSEARCH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FOODSEARCH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FOODSEARCH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// BackendConfig points at the remote FoodSearch commerce API.
type BackendConfig struct {
	BaseURL string        `envconfig:"FOODSEARCH_BACKEND_BASE_URL" required:"true"`
	Timeout time.Duration `envconfig:"FOODSEARCH_BACKEND_TIMEOUT" default:"15s"`
}

func (b *BackendConfig) validate() error {
	parsed, err := url.Parse(b.BaseURL)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvBackendBaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url", EnvBackendBaseURL)
	}
	b.BaseURL = strings.TrimRight(b.BaseURL, "/")
	if b.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvBackendTimeout)
	}
	return nil
}

// Package relay provides the runtime configuration for the relay service,
// loaded from the environment with sane defaults for local development.
package relay

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the relay configuration, including transport limits and the
// per-connection rate-limiting parameters.
type Config struct {
	Port                    string        `envconfig:"SERVER_PORT" default:":8080"`
	AllowedOrigins          []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	MaxMessageSize          int64         `envconfig:"MAX_MESSAGE_SIZE" default:"512"`
	RateLimitBurst          int           `envconfig:"RATE_LIMIT_BURST" default:"5"`
	RateLimitRefillInterval time.Duration `envconfig:"RATE_LIMIT_REFILL_INTERVAL" default:"1s"`
	ShutdownTimeout         time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// NewConfig returns a Config populated with the built-in defaults, ignoring
// the environment. Useful for tests and embedding.
func NewConfig() Config {
	return Config{
		Port:                    ":8080",
		AllowedOrigins:          []string{"http://localhost:8080"},
		MaxMessageSize:          512,
		RateLimitBurst:          5,
		RateLimitRefillInterval: time.Second,
		ShutdownTimeout:         10 * time.Second,
	}
}

// LoadConfig reads the configuration from environment variables, falling back
// to defaults for anything unset, and sanitizes out-of-range values.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return sanitizeConfig(cfg), nil
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = ":8080"
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 512
	}

	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 5
	}

	if cfg.RateLimitRefillInterval <= 0 {
		cfg.RateLimitRefillInterval = time.Second
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	return cfg
}

package relay

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	// Make sure ambient environment does not leak into the test. t.Setenv
	// registers the restore; the unset makes the variable truly absent.
	for _, key := range []string{
		"SERVER_PORT", "ALLOWED_ORIGINS", "MAX_MESSAGE_SIZE",
		"RATE_LIMIT_BURST", "RATE_LIMIT_REFILL_INTERVAL", "SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(key, "placeholder")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(512), cfg.MaxMessageSize)
	assert.Equal(t, 5, cfg.RateLimitBurst)
	assert.Equal(t, time.Second, cfg.RateLimitRefillInterval)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com,https://staging.example.com")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("RATE_LIMIT_BURST", "20")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, []string{"https://app.example.com", "https://staging.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(1024), cfg.MaxMessageSize)
	assert.Equal(t, 20, cfg.RateLimitBurst)
	assert.Equal(t, 2*time.Second, cfg.RateLimitRefillInterval)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestSanitizeConfigRestoresDefaults(t *testing.T) {
	cfg := sanitizeConfig(Config{
		Port:                    "",
		MaxMessageSize:          -1,
		RateLimitBurst:          0,
		RateLimitRefillInterval: -time.Second,
		ShutdownTimeout:         0,
	})

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, int64(512), cfg.MaxMessageSize)
	assert.Equal(t, 5, cfg.RateLimitBurst)
	assert.Equal(t, time.Second, cfg.RateLimitRefillInterval)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

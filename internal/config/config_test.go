package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) *Config {
	t.Helper()
	var cfg Config
	parser, err := kong.New(&cfg, kong.Name("bookeasy"))
	require.NoError(t, err)
	_, err = parser.Parse(args)
	require.NoError(t, err)
	return &cfg
}

func TestDefaults(t *testing.T) {
	cfg := parse(t)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 10*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 5, cfg.RateLimit.Max)
	assert.Equal(t, AlgorithmFixed, cfg.RateLimit.Algorithm)
	assert.Equal(t, StoreMemory, cfg.RateLimit.Store)
	assert.Zero(t, cfg.RateLimit.SweepInterval)
	assert.Equal(t, "unknown", cfg.RateLimit.UnknownClient)
	assert.Equal(t, []string{"X-Forwarded-For", "X-Real-IP"}, cfg.RateLimit.ClientHeaders)
	assert.Equal(t, "UTC", cfg.Booking.Timezone)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestEnvironmentAndFlags(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX", "3")
	t.Setenv("RATE_LIMIT_WINDOW", "1m")
	t.Setenv("KV_URL", "redis://kv:6379/0")

	cfg := parse(t, "--rate-limit-store=redis", "--booking-timezone=America/New_York")

	assert.Equal(t, 3, cfg.RateLimit.Max)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, StoreRedis, cfg.RateLimit.Store)
	assert.Equal(t, "redis://kv:6379/0", cfg.StorageURL())
	assert.Equal(t, "America/New_York", cfg.Location().String())
	assert.NoError(t, cfg.Validate())
}

func TestStorageURL_PrefersRedisURL(t *testing.T) {
	cfg := &Config{RedisURL: " redis://primary:6379 ", KVURL: "redis://kv:6379"}
	assert.Equal(t, "redis://primary:6379", cfg.StorageURL())

	cfg.RedisURL = ""
	assert.Equal(t, "redis://kv:6379", cfg.StorageURL())

	cfg.KVURL = ""
	assert.Empty(t, cfg.StorageURL())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{name: "zero max", mutate: func(c *Config) { c.RateLimit.Max = 0 }, field: "rate-limit-max"},
		{name: "negative window", mutate: func(c *Config) { c.RateLimit.Window = -time.Second }, field: "rate-limit-window"},
		{name: "sub-millisecond window", mutate: func(c *Config) { c.RateLimit.Window = 500 * time.Microsecond }, field: "rate-limit-window"},
		{name: "negative sweep", mutate: func(c *Config) { c.RateLimit.SweepInterval = -time.Second }, field: "rate-limit-sweep-interval"},
		{name: "unknown algorithm", mutate: func(c *Config) { c.RateLimit.Algorithm = "token" }, field: "rate-limit-algorithm"},
		{name: "sliding in memory", mutate: func(c *Config) { c.RateLimit.Algorithm = AlgorithmSliding }, field: "rate-limit-algorithm"},
		{name: "unknown store", mutate: func(c *Config) { c.RateLimit.Store = "disk" }, field: "rate-limit-store"},
		{name: "redis without url", mutate: func(c *Config) { c.RateLimit.Store = StoreRedis }, field: "rate-limit-store"},
		{name: "bad timezone", mutate: func(c *Config) { c.Booking.Timezone = "Mars/Olympus" }, field: "booking-timezone"},
		{name: "empty listen addr", mutate: func(c *Config) { c.ListenAddr = " " }, field: "listen-addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := parse(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("BOOKEASY_TEST_A=from-file\nBOOKEASY_TEST_B=from-file\n"), 0o600))

	t.Setenv("BOOKEASY_TEST_B", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("BOOKEASY_TEST_A") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("BOOKEASY_TEST_A"))
	assert.Equal(t, "from-env", os.Getenv("BOOKEASY_TEST_B"))
}

// Package config centralizes the runtime configuration. Values come from flags, environment
// variables and .env files, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AlgorithmFixed   = "fixed"
	AlgorithmSliding = "sliding"

	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	ListenAddr      string        `name:"listen-addr" env:"LISTEN_ADDR" default:":8080" help:"HTTP listen address."`
	Environment     string        `name:"environment" env:"APP_ENV" default:"development" help:"Deployment environment reported by the status endpoint."`
	LogLevel        string        `name:"log-level" env:"LOG_LEVEL" default:"info" help:"Log level (debug, info, warn, error)."`
	LogFormat       string        `name:"log-format" env:"LOG_FORMAT" default:"json" enum:"json,console" help:"Log format (json, console)."`
	RedisURL        string        `name:"redis-url" env:"REDIS_URL" help:"Redis URL for content storage and shared rate limiting."`
	KVURL           string        `name:"kv-url" env:"KV_URL" help:"Managed KV Redis URL, used when --redis-url is empty."`
	ShutdownTimeout time.Duration `name:"shutdown-timeout" env:"SHUTDOWN_TIMEOUT" default:"10s" help:"Grace period for in-flight requests on shutdown."`

	RateLimit RateLimitConfig `embed:"" prefix:"rate-limit-" envprefix:"RATE_LIMIT_"`
	Booking   BookingConfig   `embed:"" prefix:"booking-" envprefix:"BOOKING_"`
}

type RateLimitConfig struct {
	Window        time.Duration `name:"window" env:"WINDOW" default:"10m" help:"Length of a rate limit window."`
	Max           int           `name:"max" env:"MAX" default:"5" help:"Requests allowed per client per window."`
	Algorithm     string        `name:"algorithm" env:"ALGORITHM" default:"fixed" help:"Counting algorithm (fixed, sliding)."`
	Store         string        `name:"store" env:"STORE" default:"memory" help:"Counter store (memory, redis)."`
	SweepInterval time.Duration `name:"sweep-interval" env:"SWEEP_INTERVAL" default:"0s" help:"How often expired in-memory counters are dropped; 0 never drops them."`
	UnknownClient string        `name:"unknown-client" env:"UNKNOWN_CLIENT" default:"unknown" help:"Key shared by requests without client headers."`
	ClientHeaders []string      `name:"client-headers" env:"CLIENT_HEADERS" default:"X-Forwarded-For,X-Real-IP" help:"Headers holding the client address, in order of preference."`
}

type BookingConfig struct {
	Timezone string `name:"timezone" env:"TIMEZONE" default:"UTC" help:"IANA timezone appointment dates and times are read in."`
}

// ValidationError reports a configuration value that cannot be used.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Message)
}

func (c *Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.ListenAddr) == "" {
		add("listen-addr", "is required")
	}
	if c.RateLimit.Window < time.Millisecond {
		add("rate-limit-window", "must be at least 1ms, got %s", c.RateLimit.Window)
	}
	if c.RateLimit.Max <= 0 {
		add("rate-limit-max", "must be positive, got %d", c.RateLimit.Max)
	}
	if c.RateLimit.SweepInterval < 0 {
		add("rate-limit-sweep-interval", "must not be negative, got %s", c.RateLimit.SweepInterval)
	}

	switch c.RateLimit.Algorithm {
	case AlgorithmFixed:
	case AlgorithmSliding:
		if c.RateLimit.Store != StoreRedis {
			add("rate-limit-algorithm", "%q requires --rate-limit-store=redis", AlgorithmSliding)
		}
	default:
		add("rate-limit-algorithm", "unknown algorithm %q", c.RateLimit.Algorithm)
	}

	switch c.RateLimit.Store {
	case StoreMemory:
	case StoreRedis:
		if c.StorageURL() == "" {
			add("rate-limit-store", "%q requires --redis-url or --kv-url", StoreRedis)
		}
	default:
		add("rate-limit-store", "unknown store %q", c.RateLimit.Store)
	}

	if _, err := time.LoadLocation(c.Booking.Timezone); err != nil {
		add("booking-timezone", "%v", err)
	}

	return errors.Join(errs...)
}

// StorageURL is the Redis URL to connect to, empty when no storage is configured.
func (c *Config) StorageURL() string {
	if url := strings.TrimSpace(c.RedisURL); url != "" {
		return url
	}
	return strings.TrimSpace(c.KVURL)
}

// Location resolves Booking.Timezone. Call Validate first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadDotEnv loads .env files into the environment without overwriting variables that are
// already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

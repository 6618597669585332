package ratelimiter

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPolicy is matched by every ConfigError.
var ErrInvalidPolicy = errors.New("invalid rate limit policy")

// ConfigError reports a rate limit policy that cannot be evaluated.
type ConfigError struct {
	Field   string
	Message string
}

func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidPolicy, e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidPolicy
}

func validatePolicy(limit int, window time.Duration) error {
	if limit <= 0 {
		return NewConfigError("limit", fmt.Sprintf("must be positive, got %d", limit))
	}
	// windows are stored with millisecond precision
	if window < time.Millisecond {
		return NewConfigError("duration", fmt.Sprintf("must be at least 1ms, got %s", window))
	}
	return nil
}

package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/lowc1012/bookeasy/internal/log"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ RateLimiter = &RedisFixedWindowLimiter{}

// fixedWindowScript returns {allowed, count, ttlMs}. A full window is reported without INCR so the
// stored count never goes past the limit.
var fixedWindowScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count == 0 then
  redis.call('SET', KEYS[1], '1', 'PX', ARGV[2])
  return {1, 1, window}
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
  ttl = window
end
if count >= limit then
  return {0, count, ttl}
end
count = redis.call('INCR', KEYS[1])
return {1, count, ttl}
`)

// RedisFixedWindowLimiter makes the same decisions as FixedWindowLimiter but keeps the counters in
// Redis, so every process sharing the instance shares one budget per key.
type RedisFixedWindowLimiter struct {
	client    *redis.Client
	timeNow   func() time.Time
	keyPrefix string
}

func NewRedisFixedWindowLimiter(client *redis.Client, now func() time.Time) *RedisFixedWindowLimiter {
	if now == nil {
		now = time.Now
	}
	return &RedisFixedWindowLimiter{
		client:    client,
		timeNow:   now,
		keyPrefix: "ratelimit:fixed:",
	}
}

func (l *RedisFixedWindowLimiter) Type() Type {
	return FixedWindowLimiterType
}

func (l *RedisFixedWindowLimiter) Run(ctx context.Context, r *Request) (*Result, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	key := l.keyPrefix + r.Key
	reply, err := fixedWindowScript.Run(ctx, l.client, []string{key}, r.Limit, r.Duration.Milliseconds()).Int64Slice()
	if err != nil {
		log.Logger().Error("Failed to run fixed window script", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("fixed window script: %w", err)
	}
	if len(reply) != 3 {
		return nil, fmt.Errorf("fixed window script: unexpected reply %v", reply)
	}

	allowed, count, ttl := reply[0] == 1, int(reply[1]), time.Duration(reply[2])*time.Millisecond
	resetAt := l.timeNow().Add(ttl)

	if !allowed {
		return &Result{
			State:     Deny,
			Limit:     r.Limit,
			Remaining: 0,
			ResetAt:   resetAt,
		}, nil
	}

	remaining := r.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		State:     Allow,
		Limit:     r.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lowc1012/bookeasy/internal/log"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ RateLimiter = &SlidingWindowLimiter{}

// slidingWindowScript trims the log, checks the count and logs the request in one step, so
// concurrent callers cannot all pass the check. It returns {allowed, count, resetMs}; on deny
// resetMs is when the oldest logged request leaves the window.
var slidingWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
local count = redis.call('ZCARD', KEYS[1])
if count >= limit then
  local reset = now + window
  local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
  if oldest[2] then
    reset = tonumber(oldest[2]) + window
  end
  return {0, count, reset}
end
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return {1, count + 1, now + window}
`)

// SlidingWindowLimiter keeps a log of request timestamps per key in a Redis sorted set and
// admits a request when fewer than Limit requests were logged in the trailing Duration.
type SlidingWindowLimiter struct {
	client    *redis.Client
	now       func() time.Time
	keyPrefix string
}

func NewSlidingWindowLimiter(client *redis.Client, now func() time.Time) *SlidingWindowLimiter {
	if now == nil {
		now = time.Now
	}
	return &SlidingWindowLimiter{
		client:    client,
		now:       now,
		keyPrefix: "ratelimit:sliding:",
	}
}

func (s *SlidingWindowLimiter) Type() Type {
	return SlidingWindowLimiterType
}

func (s *SlidingWindowLimiter) Run(ctx context.Context, r *Request) (*Result, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	key := s.keyPrefix + r.Key
	now := s.now()
	nowMs := now.UnixMilli()

	// uuid members keep requests logged in the same millisecond apart
	reply, err := slidingWindowScript.Run(ctx, s.client, []string{key},
		nowMs, r.Duration.Milliseconds(), r.Limit, uuid.NewString()).Int64Slice()
	if err != nil {
		log.Logger().Error("Failed to run sliding window script", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("sliding window script: %w", err)
	}
	if len(reply) != 3 {
		return nil, fmt.Errorf("sliding window script: unexpected reply %v", reply)
	}

	if reply[0] != 1 {
		return &Result{
			State:     Deny,
			Limit:     r.Limit,
			Remaining: 0,
			ResetAt:   now.Add(time.Duration(reply[2]-nowMs) * time.Millisecond),
		}, nil
	}

	remaining := r.Limit - int(reply[1])
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		State:     Allow,
		Limit:     r.Limit,
		Remaining: remaining,
		ResetAt:   now.Add(r.Duration),
	}, nil
}

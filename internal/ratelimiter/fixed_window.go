package ratelimiter

import (
	"context"
	"sync"
	"time"

	"github.com/lowc1012/bookeasy/internal/log"
	"go.uber.org/zap"
)

// ensure that FixedWindowLimiter satisfies an interface RateLimiter
var _ RateLimiter = &FixedWindowLimiter{}

type counter struct {
	count     int
	expiresAt time.Time
}

// FixedWindowLimiter counts requests per key in fixed windows that start at the first request
// after the previous window expired. State is process-local.
//
// Expired counters are replaced in place on the next request for the same key and are otherwise
// kept forever, unless Sweep or RunJanitor is used to drop them.
type FixedWindowLimiter struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
}

type Option func(*FixedWindowLimiter)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *FixedWindowLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

func NewFixedWindowLimiter(opts ...Option) *FixedWindowLimiter {
	l := &FixedWindowLimiter{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *FixedWindowLimiter) Type() Type {
	return FixedWindowLimiterType
}

func (l *FixedWindowLimiter) Run(_ context.Context, req *Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[req.Key]
	if !ok || !c.expiresAt.After(now) {
		c = &counter{count: 1, expiresAt: now.Add(req.Duration)}
		l.counters[req.Key] = c
		return &Result{
			State:     Allow,
			Limit:     req.Limit,
			Remaining: req.Limit - 1,
			ResetAt:   c.expiresAt,
		}, nil
	}

	// the window is full: reject without touching the counter
	if c.count >= req.Limit {
		return &Result{
			State:     Deny,
			Limit:     req.Limit,
			Remaining: 0,
			ResetAt:   c.expiresAt,
		}, nil
	}

	c.count++
	return &Result{
		State:     Allow,
		Limit:     req.Limit,
		Remaining: req.Limit - c.count,
		ResetAt:   c.expiresAt,
	}, nil
}

// Len returns the number of keys currently tracked.
func (l *FixedWindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}

// Sweep drops every counter whose window ended at or before now and returns how many were removed.
func (l *FixedWindowLimiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, c := range l.counters {
		if !c.expiresAt.After(now) {
			delete(l.counters, key)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps expired counters every interval until ctx is done. A non-positive interval
// disables sweeping and returns immediately.
func (l *FixedWindowLimiter) RunJanitor(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		return nil
	}

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if removed := l.Sweep(l.now()); removed > 0 {
				log.Logger().Debug("Swept expired rate limit counters",
					zap.Int("removed", removed), zap.Int("remaining", l.Len()))
			}
		}
	}
}

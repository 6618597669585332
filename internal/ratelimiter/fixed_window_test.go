package ratelimiter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestFixedWindowLimiter_Run(t *testing.T) {
	var start = time.Date(2022, 5, 10, 9, 15, 0, 0, time.UTC)

	var tests = []struct {
		name       string
		runs       int
		request    *Request
		advance    time.Duration
		lastResult *Result
	}{
		{
			name:    "returns Allow for request under limit",
			runs:    50,
			request: &Request{Key: "user", Limit: 60, Duration: time.Minute},
			lastResult: &Result{
				State:     Allow,
				Limit:     60,
				Remaining: 10,
				ResetAt:   time.Date(2022, 5, 10, 9, 16, 0, 0, time.UTC),
			},
		},
		{
			name:    "returns Allow for the last request at the limit",
			runs:    50,
			request: &Request{Key: "user", Limit: 50, Duration: time.Minute},
			lastResult: &Result{
				State:     Allow,
				Limit:     50,
				Remaining: 0,
				ResetAt:   time.Date(2022, 5, 10, 9, 16, 0, 0, time.UTC),
			},
		},
		{
			name:    "returns Deny for request over limit",
			runs:    51,
			request: &Request{Key: "user", Limit: 50, Duration: time.Minute},
			lastResult: &Result{
				State:     Deny,
				Limit:     50,
				Remaining: 0,
				ResetAt:   time.Date(2022, 5, 10, 9, 16, 0, 0, time.UTC),
			},
		},
		{
			name:    "window expires and starts again",
			runs:    100,
			request: &Request{Key: "user", Limit: 100, Duration: time.Minute},
			advance: time.Second,
			// requests 61..100 land in the second window, which starts at 9:16:00
			lastResult: &Result{
				State:     Allow,
				Limit:     100,
				Remaining: 60,
				ResetAt:   time.Date(2022, 5, 10, 9, 17, 0, 0, time.UTC),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: start}
			limiter := NewFixedWindowLimiter(WithClock(clock.Now))

			var lastResult *Result
			for i := 0; i < tt.runs; i++ {
				var err error
				lastResult, err = limiter.Run(context.Background(), tt.request)
				require.NoError(t, err)
				clock.Advance(tt.advance)
			}

			assert.Equal(t, tt.lastResult, lastResult)
		})
	}
}

func TestFixedWindowLimiter_BookingScenario(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	limiter := NewFixedWindowLimiter(WithClock(clock.Now))
	req := &Request{Key: "1.2.3.4", Limit: 5, Duration: 600000 * time.Millisecond}
	ctx := context.Background()

	var resetAt time.Time
	for i, want := range []int{4, 3, 2, 1, 0} {
		res, err := limiter.Run(ctx, req)
		require.NoError(t, err)
		assert.True(t, res.Allowed(), "call %d", i+1)
		assert.Equal(t, want, res.Remaining, "call %d", i+1)
		if i == 0 {
			resetAt = res.ResetAt
			assert.Equal(t, clock.Now().Add(10*time.Minute), resetAt)
		} else {
			assert.Equal(t, resetAt, res.ResetAt)
		}
	}

	res, err := limiter.Run(ctx, req)
	require.NoError(t, err)
	assert.False(t, res.Allowed())
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, resetAt, res.ResetAt)

	clock.Advance(600001 * time.Millisecond)
	res, err = limiter.Run(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Allowed())
	assert.Equal(t, 4, res.Remaining)
	assert.Equal(t, clock.Now().Add(10*time.Minute), res.ResetAt)
}

func TestFixedWindowLimiter_ExpiresExactlyAtResetAt(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := NewFixedWindowLimiter(WithClock(clock.Now))
	req := &Request{Key: "k", Limit: 1, Duration: time.Minute}

	first, err := limiter.Run(context.Background(), req)
	require.NoError(t, err)
	require.True(t, first.Allowed())

	clock.Advance(time.Minute - time.Millisecond)
	denied, err := limiter.Run(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, denied.Allowed())

	clock.Advance(time.Millisecond)
	again, err := limiter.Run(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, again.Allowed())
	assert.Equal(t, clock.Now().Add(time.Minute), again.ResetAt)
}

func TestFixedWindowLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewFixedWindowLimiter()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := limiter.Run(ctx, &Request{Key: "a", Limit: 3, Duration: time.Minute})
		require.NoError(t, err)
	}

	res, err := limiter.Run(ctx, &Request{Key: "b", Limit: 3, Duration: time.Minute})
	require.NoError(t, err)
	assert.True(t, res.Allowed())
	assert.Equal(t, 2, res.Remaining)
	assert.Equal(t, 2, limiter.Len())
}

// Fixed windows admit up to 2*limit requests around a window boundary.
func TestFixedWindowLimiter_BoundaryBurst(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := NewFixedWindowLimiter(WithClock(clock.Now))
	req := &Request{Key: "burst", Limit: 5, Duration: time.Minute}

	clock.Advance(time.Minute - time.Second)
	allowed := 0
	for i := 0; i < 5; i++ {
		res, err := limiter.Run(context.Background(), req)
		require.NoError(t, err)
		if res.Allowed() {
			allowed++
		}
	}
	clock.Advance(time.Minute)
	for i := 0; i < 5; i++ {
		res, err := limiter.Run(context.Background(), req)
		require.NoError(t, err)
		if res.Allowed() {
			allowed++
		}
	}
	assert.Equal(t, 10, allowed)
}

func TestFixedWindowLimiter_InvalidPolicy(t *testing.T) {
	limiter := NewFixedWindowLimiter()

	tests := []struct {
		name  string
		req   *Request
		field string
	}{
		{name: "nil request", req: nil, field: "request"},
		{name: "zero limit", req: &Request{Key: "k", Limit: 0, Duration: time.Minute}, field: "limit"},
		{name: "negative limit", req: &Request{Key: "k", Limit: -1, Duration: time.Minute}, field: "limit"},
		{name: "zero window", req: &Request{Key: "k", Limit: 1}, field: "duration"},
		{name: "negative window", req: &Request{Key: "k", Limit: 1, Duration: -time.Second}, field: "duration"},
		{name: "sub-millisecond window", req: &Request{Key: "k", Limit: 1, Duration: 500 * time.Microsecond}, field: "duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := limiter.Run(context.Background(), tt.req)
			assert.Nil(t, res)
			require.ErrorIs(t, err, ErrInvalidPolicy)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
	assert.Equal(t, 0, limiter.Len())
}

func TestFixedWindowLimiter_ConcurrentRunsNeverExceedLimit(t *testing.T) {
	limiter := NewFixedWindowLimiter()
	req := &Request{Key: "shared", Limit: 25, Duration: time.Hour}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := limiter.Run(context.Background(), req)
			if err != nil || !res.Allowed() {
				return
			}
			mu.Lock()
			allowed++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 25, allowed)
}

func TestFixedWindowLimiter_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := NewFixedWindowLimiter(WithClock(clock.Now))
	ctx := context.Background()

	_, err := limiter.Run(ctx, &Request{Key: "short", Limit: 1, Duration: time.Second})
	require.NoError(t, err)
	_, err = limiter.Run(ctx, &Request{Key: "long", Limit: 1, Duration: time.Hour})
	require.NoError(t, err)

	assert.Equal(t, 0, limiter.Sweep(clock.Now()))
	assert.Equal(t, 1, limiter.Sweep(clock.Now().Add(time.Second)))
	assert.Equal(t, 1, limiter.Len())

	// the surviving key keeps its count
	res, err := limiter.Run(ctx, &Request{Key: "long", Limit: 1, Duration: time.Hour})
	require.NoError(t, err)
	assert.False(t, res.Allowed())
}

func TestFixedWindowLimiter_RunJanitor(t *testing.T) {
	limiter := NewFixedWindowLimiter()
	_, err := limiter.Run(context.Background(), &Request{Key: "k", Limit: 1, Duration: time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- limiter.RunJanitor(ctx, 5*time.Millisecond) }()

	assert.Eventually(t, func() bool { return limiter.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}

func TestFixedWindowLimiter_RunJanitorDisabled(t *testing.T) {
	limiter := NewFixedWindowLimiter()
	assert.NoError(t, limiter.RunJanitor(context.Background(), 0))
}

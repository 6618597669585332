package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lowc1012/bookeasy/internal/booking"
	"github.com/lowc1012/bookeasy/internal/cms"
	"github.com/lowc1012/bookeasy/internal/config"
	"github.com/lowc1012/bookeasy/internal/log"
	"github.com/lowc1012/bookeasy/internal/metrics"
	"github.com/lowc1012/bookeasy/internal/ratelimiter"
	"github.com/lowc1012/bookeasy/internal/server"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisPingTimeout = 3 * time.Second

// app holds the components shared by the commands.
type app struct {
	cfg     *config.Config
	redis   *redis.Client
	limiter ratelimiter.RateLimiter
	cms     *cms.Service
	booking *booking.Service
	metrics *metrics.Metrics
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New()}

	client, err := newRedisClient(ctx, cfg.StorageURL())
	if err != nil {
		return nil, err
	}
	a.redis = client

	var store cms.Store = cms.DefaultStore{}
	if client != nil {
		store = cms.NewRedisStore(client)
	} else {
		log.Logger().Warn("No storage configured, CMS content changes will not persist")
	}
	a.cms = cms.NewService(store, a.metrics)

	a.limiter, err = newLimiter(cfg.RateLimit, client)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.booking = booking.NewService(booking.SimulatedScheduler{}, cfg.Location())
	return a, nil
}

func (a *app) Server() (*http.Server, error) {
	return server.New(server.Deps{
		Config:  a.cfg,
		Limiter: a.limiter,
		CMS:     a.cms,
		Booking: a.booking,
		Metrics: a.metrics,
	})
}

func (a *app) Close() {
	if a.redis == nil {
		return
	}
	if err := a.redis.Close(); err != nil {
		log.Logger().Warn("Failed to close redis client", zap.Error(err))
	}
}

// newRedisClient returns nil when url is empty. An unreachable server is logged, not fatal: the
// client reconnects on its own once Redis comes up.
func newRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Logger().Warn("Redis is not reachable yet", zap.String("addr", opts.Addr), zap.Error(err))
	} else {
		log.Logger().Info("Connected to redis", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	}
	return client, nil
}

func newLimiter(cfg config.RateLimitConfig, client *redis.Client) (ratelimiter.RateLimiter, error) {
	if client == nil && (cfg.Store == config.StoreRedis || cfg.Algorithm == config.AlgorithmSliding) {
		return nil, fmt.Errorf("rate limit store %q with algorithm %q needs a redis url", cfg.Store, cfg.Algorithm)
	}
	switch {
	case cfg.Algorithm == config.AlgorithmSliding:
		return ratelimiter.NewSlidingWindowLimiter(client, time.Now), nil
	case cfg.Store == config.StoreRedis:
		return ratelimiter.NewRedisFixedWindowLimiter(client, time.Now), nil
	default:
		return ratelimiter.NewFixedWindowLimiter(), nil
	}
}

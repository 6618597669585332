// Package server wires the HTTP API: booking behind the rate limiter, the CMS content endpoints
// and the operational endpoints.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lowc1012/bookeasy/internal/booking"
	"github.com/lowc1012/bookeasy/internal/cms"
	"github.com/lowc1012/bookeasy/internal/config"
	"github.com/lowc1012/bookeasy/internal/log"
	"github.com/lowc1012/bookeasy/internal/metrics"
	"github.com/lowc1012/bookeasy/internal/ratelimiter"
	"github.com/lowc1012/bookeasy/internal/utils"
	"go.uber.org/zap"
)

type Deps struct {
	Config  *config.Config
	Limiter ratelimiter.RateLimiter
	CMS     *cms.Service
	Booking *booking.Service
	Metrics *metrics.Metrics
	// Clock defaults to time.Now.
	Clock func() time.Time
}

func (d *Deps) validate() error {
	switch {
	case d.Config == nil:
		return errors.New("server: config is required")
	case d.Limiter == nil:
		return errors.New("server: limiter is required")
	case d.CMS == nil:
		return errors.New("server: cms service is required")
	case d.Booking == nil:
		return errors.New("server: booking service is required")
	case d.Metrics == nil:
		return errors.New("server: metrics are required")
	}
	return nil
}

type api struct {
	cfg     *config.Config
	cms     *cms.Service
	booking *booking.Service
	metrics *metrics.Metrics
}

// NewRouter builds the chi router serving the whole API.
func NewRouter(deps Deps) (http.Handler, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	limit, err := ratelimiter.Middleware(&ratelimiter.Config{
		Extractor: utils.NewHTTPHeadersExtractor(deps.Config.RateLimit.UnknownClient, deps.Config.RateLimit.ClientHeaders...),
		Limiter:   deps.Limiter,
		Limit:     deps.Config.RateLimit.Max,
		Window:    deps.Config.RateLimit.Window,
		Recorder:  deps.Metrics,
		Clock:     deps.Clock,
	})
	if err != nil {
		return nil, err
	}

	a := &api{cfg: deps.Config, cms: deps.CMS, booking: deps.Booking, metrics: deps.Metrics}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog)
	r.Use(deps.Metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.With(limit).Post("/book-appointment", a.bookAppointment)

		r.Route("/cms", func(r chi.Router) {
			r.Get("/", a.getContent)
			r.Post("/", a.saveContent)
			r.Post("/reset", a.resetContent)
			r.Get("/status", a.status)
		})
	})

	return r, nil
}

// New returns an http.Server for the API listening on the configured address.
func New(deps Deps) (*http.Server, error) {
	router, err := NewRouter(deps)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              deps.Config.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}, nil
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		log.Logger().Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("requestId", middleware.GetReqID(r.Context())))
	})
}

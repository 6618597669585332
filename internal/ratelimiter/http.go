package ratelimiter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/lowc1012/bookeasy/internal/log"
	"github.com/lowc1012/bookeasy/internal/utils"
	"go.uber.org/zap"
)

const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"

	tooManyRequestsMessage = "Too many requests. Please try again later."
)

// DecisionRecorder is notified of every decision the handler makes.
type DecisionRecorder interface {
	RecordDecision(state State)
}

// Config defines the configuration for the rate limiter handler.
type Config struct {
	Extractor utils.Extractor
	Limiter   RateLimiter
	// Limit requests are admitted per Window for every key.
	Limit  int
	Window time.Duration

	Recorder DecisionRecorder
	Clock    func() time.Time
}

func (c *Config) Validate() error {
	if c == nil {
		return NewConfigError("config", "must not be nil")
	}
	if c.Extractor == nil {
		return NewConfigError("extractor", "is required")
	}
	if c.Limiter == nil {
		return NewConfigError("limiter", "is required")
	}
	return validatePolicy(c.Limit, c.Window)
}

type httpRateLimiterHandler struct {
	handler http.Handler
	config  Config
}

// NewHTTPRateLimiterHandler wraps an existing http.Handler performing rate limiting before
// sending the request to the wrapped handler. Denied requests and limiter failures are answered
// here and never reach the wrapped handler.
func NewHTTPRateLimiterHandler(originalHandler http.Handler, config *Config) (http.Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	cfg := *config
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &httpRateLimiterHandler{
		handler: originalHandler,
		config:  cfg,
	}, nil
}

// Middleware is NewHTTPRateLimiterHandler shaped for router middleware chains.
func Middleware(config *Config) (func(http.Handler) http.Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return func(next http.Handler) http.Handler {
		h, _ := NewHTTPRateLimiterHandler(next, config)
		return h
	}, nil
}

func (h *httpRateLimiterHandler) writeError(writer http.ResponseWriter, status int, msg string) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(map[string]string{"error": msg}); err != nil {
		log.Logger().Warn("Failed to write rate limit response", zap.Error(err))
	}
}

// ServeHTTP runs the limiter for the request key and, when allowed, hands the request to the
// wrapped handler. The rate limit headers are set on both outcomes.
func (h *httpRateLimiterHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	key, err := h.config.Extractor.Extract(request)
	if err != nil {
		h.writeError(writer, http.StatusBadRequest, "failed to collect rate limiting key from request")
		return
	}

	result, err := h.config.Limiter.Run(request.Context(), &Request{
		Key:      key,
		Limit:    h.config.Limit,
		Duration: h.config.Window,
	})
	if err != nil {
		log.Logger().Error("Failed to run rate limiting", zap.String("key", key), zap.Error(err))
		h.writeError(writer, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	if h.config.Recorder != nil {
		h.config.Recorder.RecordDecision(result.State)
	}

	writer.Header().Set(HeaderLimit, strconv.Itoa(result.Limit))
	writer.Header().Set(HeaderRemaining, strconv.Itoa(result.Remaining))
	writer.Header().Set(HeaderReset, strconv.FormatInt(ResetSeconds(result.ResetAt), 10))

	if !result.Allowed() {
		retryAfter := ceilSeconds(result.ResetAt.Sub(h.config.Clock()))
		writer.Header().Set(HeaderRetryAfter, strconv.FormatInt(retryAfter, 10))
		log.Logger().Info("Rate limit exceeded",
			zap.String("key", key),
			zap.String("path", request.URL.Path),
			zap.Time("resetAt", result.ResetAt))
		h.writeError(writer, http.StatusTooManyRequests, tooManyRequestsMessage)
		return
	}

	h.handler.ServeHTTP(writer, request)
}

// ResetSeconds converts a reset time to whole seconds since the epoch, rounding up.
func ResetSeconds(resetAt time.Time) int64 {
	ms := resetAt.UnixMilli()
	secs := ms / 1000
	if ms%1000 > 0 {
		secs++
	}
	return secs
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	secs := int64(d / time.Second)
	if d%time.Second > 0 {
		secs++
	}
	return secs
}

package ratelimiter

import (
	"context"
	"time"
)

// Request is a single evaluation of Key against a policy of Limit requests per Duration.
type Request struct {
	Key      string
	Limit    int
	Duration time.Duration
}

// Validate rejects policies the limiters cannot evaluate.
func (r *Request) Validate() error {
	if r == nil {
		return NewConfigError("request", "must not be nil")
	}
	return validatePolicy(r.Limit, r.Duration)
}

// State is the outcome of a single evaluation.
type State uint32

const (
	Deny State = iota
	Allow
)

func (s State) String() string {
	if s == Allow {
		return "allow"
	}
	return "deny"
}

// Result is the decision for one Request, with what the client needs to know about its quota.
type Result struct {
	State     State
	Limit     int
	Remaining int
	// ResetAt is the end of the window the request was counted against.
	ResetAt time.Time
}

// Allowed reports whether the request may proceed. A nil Result is never allowed.
func (r *Result) Allowed() bool {
	return r != nil && r.State == Allow
}

// Type defines the type of rate limiter.
type Type uint32

const (
	FixedWindowLimiterType Type = iota
	SlidingWindowLimiterType
)

func (t Type) String() string {
	switch t {
	case FixedWindowLimiterType:
		return "fixed"
	case SlidingWindowLimiterType:
		return "sliding"
	default:
		return "unknown"
	}
}

// RateLimiter defines the interface for a rate limiter.
type RateLimiter interface {
	Run(ctx context.Context, req *Request) (*Result, error)
	Type() Type
}

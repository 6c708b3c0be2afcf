// Package ratelimit provides per-key token bucket rate limiting for the
// MCP tools and the HTTP mutation routes.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is wrapped by CheckLimit when a call is rejected.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter is a per-key token bucket rate limiter.
// Each key gets its own bucket with the configured rate and burst.
// It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	nowFunc  func() time.Time // injectable clock for testing
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
// The burst size also serves as the initial number of tokens available.
func NewLimiter(perSecond float64, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		nowFunc:  time.Now,
	}
}

// Allow reports whether a request for key may proceed, consuming a token if so.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = lim
	}
	now := l.nowFunc()
	l.mu.Unlock()

	return lim.AllowN(now, 1)
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default set of per-tool rate limiters.
// Queries are cheap and get generous limits; mutations are tighter.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"fuzzbrake_infer":             NewLimiter(5.0, 20),       // 300/minute, burst 20
		"fuzzbrake_state":             NewLimiter(5.0, 20),       // 300/minute, burst 20
		"fuzzbrake_curves":            NewLimiter(1.0, 10),       // 60/minute, burst 10
		"fuzzbrake_set_inputs":        NewLimiter(2.0, 10),       // 120/minute, burst 10
		"fuzzbrake_simulation":        NewLimiter(2.0, 10),       // 120/minute, burst 10
		"fuzzbrake_update_membership": NewLimiter(30.0/60.0, 5),  // 30/minute, burst 5
		"fuzzbrake_rules":             NewLimiter(30.0/60.0, 10), // 30/minute, burst 10
	}
}

// CheckLimit checks the rate limit for a given tool name.
// Returns nil if allowed, or an error wrapping ErrRateLimited.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil // No limiter configured = no limit
	}

	if !limiter.Allow(toolName) {
		return fmt.Errorf("%w for %s, please try again shortly", ErrRateLimited, toolName)
	}

	return nil
}

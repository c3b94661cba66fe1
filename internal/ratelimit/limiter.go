// Package ratelimit enforces per-client request budgets with a sliding
// window. The Redis limiter shares budgets across replicas; the in-memory
// limiter is the standalone fallback when Redis is not configured.
package ratelimit

import (
	"context"
	"time"
)

// Limit is one request budget: at most Limit requests per Window.
type Limit struct {
	Limit  int
	Window time.Duration
}

// PerMinute is the budget shorthand the middleware uses.
func PerMinute(n int) Limit {
	return Limit{Limit: n, Window: time.Minute}
}

// Result is the outcome of one rate limit check. Count includes the request
// just checked when it was admitted.
type Result struct {
	Allowed    bool          `json:"allowed"`
	Count      int           `json:"count"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after"`
	ResetTime  time.Time     `json:"reset_time"`
}

// Limiter admits or rejects requests against a keyed budget.
type Limiter interface {
	Check(ctx context.Context, key string, limit Limit) (*Result, error)
	Reset(ctx context.Context, key string) error
	Close() error
}

// Package retry runs operations with exponential backoff and jitter. The
// storage adapters and the report delivery dispatcher use it for transient
// failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Config tunes the retry loop.
type Config struct {
	MaxAttempts     int           // 0 means unlimited
	InitialDelay    time.Duration // delay before the second attempt
	MaxDelay        time.Duration // backoff ceiling
	Multiplier      float64       // per-attempt delay growth
	RandomizeFactor float64       // jitter fraction in [0,1]
	RetryIf         func(error) bool
}

// DefaultConfig is three attempts with 100ms initial delay, doubling up to
// 30s, 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:     3,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        30 * time.Second,
		Multiplier:      2.0,
		RandomizeFactor: 0.1,
		RetryIf:         DefaultRetryIf,
	}
}

// ExponentialBackoff is DefaultConfig with a custom attempt budget and a
// one-minute ceiling.
func ExponentialBackoff(maxAttempts int) *Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = maxAttempts
	cfg.MaxDelay = time.Minute
	return cfg
}

// Operation is a retryable unit of work.
type Operation func(ctx context.Context) error

// Result reports how a retry loop ended. Err is nil on success.
type Result struct {
	Attempts int
	Duration time.Duration
	Err      error
}

// Retrier executes operations under one retry configuration.
type Retrier struct {
	config *Config
}

// New creates a retrier, clamping nonsensical configuration values.
func New(config *Config) *Retrier {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Multiplier < 1 {
		config.Multiplier = 1
	}
	if config.RandomizeFactor < 0 {
		config.RandomizeFactor = 0
	} else if config.RandomizeFactor > 1 {
		config.RandomizeFactor = 1
	}
	if config.RetryIf == nil {
		config.RetryIf = DefaultRetryIf
	}
	return &Retrier{config: config}
}

// Do runs op until it succeeds, the attempt budget is spent, the error is
// classified non-retryable, or the context ends.
func (r *Retrier) Do(ctx context.Context, op Operation) *Result {
	start := time.Now()
	result := &Result{}

	var lastErr error
	delay := r.config.InitialDelay

loop:
	for attempt := 1; r.config.MaxAttempts == 0 || attempt <= r.config.MaxAttempts; attempt++ {
		result.Attempts = attempt

		if err := ctx.Err(); err != nil {
			lastErr = fmt.Errorf("context cancelled: %w", err)
			break
		}

		err := op(ctx)
		if err == nil {
			result.Duration = time.Since(start)
			return result
		}
		lastErr = err

		if !r.config.RetryIf(err) {
			break
		}
		if r.config.MaxAttempts > 0 && attempt >= r.config.MaxAttempts {
			break
		}

		select {
		case <-time.After(r.jitter(delay)):
			delay = r.grow(delay)
		case <-ctx.Done():
			lastErr = fmt.Errorf("context cancelled during retry delay: %w", ctx.Err())
			break loop
		}
	}

	result.Duration = time.Since(start)
	result.Err = lastErr
	return result
}

// jitter spreads a delay uniformly within +-RandomizeFactor of itself.
func (r *Retrier) jitter(delay time.Duration) time.Duration {
	if r.config.RandomizeFactor == 0 {
		return delay
	}
	delta := float64(delay) * r.config.RandomizeFactor
	return time.Duration(float64(delay) - delta + rand.Float64()*2*delta)
}

func (r *Retrier) grow(delay time.Duration) time.Duration {
	next := time.Duration(float64(delay) * r.config.Multiplier)
	if next > r.config.MaxDelay {
		return r.config.MaxDelay
	}
	return next
}

// Retry runs op with the default configuration.
func Retry(ctx context.Context, op Operation) error {
	return New(DefaultConfig()).Do(ctx, op).Err
}

// RetryWithConfig runs op with a custom configuration.
func RetryWithConfig(ctx context.Context, config *Config, op Operation) error {
	return New(config).Do(ctx, op).Err
}

// TemporaryError marks an error as retryable.
type TemporaryError struct {
	Err error
}

func (e *TemporaryError) Error() string {
	return fmt.Sprintf("temporary error: %v", e.Err)
}

func (e *TemporaryError) Unwrap() error { return e.Err }

func (e *TemporaryError) Temporary() bool { return true }

// PermanentError marks an error as not worth retrying.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// DefaultRetryIf retries everything except errors wrapped in PermanentError
// or carrying a Temporary() method that reports false.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	type temporary interface {
		Temporary() bool
	}
	var te temporary
	if errors.As(err, &te) {
		return te.Temporary()
	}

	var perm *PermanentError
	return !errors.As(err, &perm)
}

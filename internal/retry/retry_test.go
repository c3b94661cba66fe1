package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts:     maxAttempts,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		Multiplier:      2.0,
		RandomizeFactor: 0,
		RetryIf:         DefaultRetryIf,
	}
}

func TestRetrier_SucceedsFirstAttempt(t *testing.T) {
	r := New(fastConfig(3))

	calls := 0
	result := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.NoError(t, result.Err)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, calls)
}

func TestRetrier_RetriesUntilSuccess(t *testing.T) {
	r := New(fastConfig(5))

	calls := 0
	result := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, result.Err)
	assert.Equal(t, 3, result.Attempts)
}

func TestRetrier_ExhaustsAttemptBudget(t *testing.T) {
	r := New(fastConfig(3))

	calls := 0
	result := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fmt.Errorf("failure %d", calls)
	})

	require.Error(t, result.Err)
	assert.Equal(t, 3, result.Attempts)
	assert.ErrorContains(t, result.Err, "failure 3")
}

func TestRetrier_PermanentErrorStopsImmediately(t *testing.T) {
	r := New(fastConfig(5))

	calls := 0
	result := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return &PermanentError{Err: errors.New("schema mismatch")}
	})

	require.Error(t, result.Err)
	assert.Equal(t, 1, calls)
}

func TestRetrier_ContextCancellation(t *testing.T) {
	r := New(fastConfig(0)) // unlimited attempts

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	result := r.Do(ctx, func(ctx context.Context) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("transient")
	})

	require.Error(t, result.Err)
	assert.ErrorContains(t, result.Err, "context cancelled")
	assert.LessOrEqual(t, calls, 3)
}

func TestNew_ClampsConfig(t *testing.T) {
	r := New(&Config{
		MaxAttempts:     1,
		Multiplier:      0.5,
		RandomizeFactor: 7,
	})
	assert.Equal(t, 1.0, r.config.Multiplier)
	assert.Equal(t, 1.0, r.config.RandomizeFactor)
	assert.NotNil(t, r.config.RetryIf)

	// nil config falls back to defaults
	assert.Equal(t, 3, New(nil).config.MaxAttempts)
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "plain error", err: errors.New("boom"), want: true},
		{name: "temporary error", err: &TemporaryError{Err: errors.New("net")}, want: true},
		{name: "permanent error", err: &PermanentError{Err: errors.New("bad input")}, want: false},
		{name: "wrapped permanent", err: fmt.Errorf("op: %w", &PermanentError{Err: errors.New("x")}), want: false},
		{name: "wrapped temporary", err: fmt.Errorf("op: %w", &TemporaryError{Err: errors.New("x")}), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultRetryIf(tt.err))
		})
	}
}

func TestRetry_Helpers(t *testing.T) {
	calls := 0
	err := RetryWithConfig(context.Background(), fastConfig(2), func(ctx context.Context) error {
		calls++
		return errors.New("always")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)

	assert.NoError(t, Retry(context.Background(), func(ctx context.Context) error {
		return nil
	}))
}

func TestExponentialBackoff(t *testing.T) {
	cfg := ExponentialBackoff(7)
	assert.Equal(t, 7, cfg.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.MaxDelay)
}

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterAdmitsUnderBudget(t *testing.T) {
	ml := NewMemoryLimiter()
	defer func() { _ = ml.Close() }()
	ctx := context.Background()
	limit := PerMinute(3)

	for i := 1; i <= 3; i++ {
		result, err := ml.Check(ctx, "client-a", limit)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, i, result.Count)
		assert.Equal(t, 3-i, result.Remaining)
	}

	result, err := ml.Check(ctx, "client-a", limit)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 3, result.Count)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, 3, result.Limit)
}

func TestMemoryLimiterSlidesWindow(t *testing.T) {
	ml := NewMemoryLimiter()
	defer func() { _ = ml.Close() }()
	ctx := context.Background()
	limit := Limit{Limit: 1, Window: 20 * time.Millisecond}

	first, err := ml.Check(ctx, "client-a", limit)
	require.NoError(t, err)
	assert.True(t, first.Allowed)

	denied, err := ml.Check(ctx, "client-a", limit)
	require.NoError(t, err)
	assert.False(t, denied.Allowed)

	time.Sleep(25 * time.Millisecond)

	again, err := ml.Check(ctx, "client-a", limit)
	require.NoError(t, err)
	assert.True(t, again.Allowed, "window should have slid past the first request")
	assert.Equal(t, 1, again.Count)
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	ml := NewMemoryLimiter()
	defer func() { _ = ml.Close() }()
	ctx := context.Background()
	limit := PerMinute(1)

	a, err := ml.Check(ctx, "client-a", limit)
	require.NoError(t, err)
	assert.True(t, a.Allowed)

	b, err := ml.Check(ctx, "client-b", limit)
	require.NoError(t, err)
	assert.True(t, b.Allowed, "budgets must be tracked per key")
}

func TestMemoryLimiterReset(t *testing.T) {
	ml := NewMemoryLimiter()
	defer func() { _ = ml.Close() }()
	ctx := context.Background()
	limit := PerMinute(1)

	_, err := ml.Check(ctx, "client-a", limit)
	require.NoError(t, err)

	denied, err := ml.Check(ctx, "client-a", limit)
	require.NoError(t, err)
	require.False(t, denied.Allowed)

	require.NoError(t, ml.Reset(ctx, "client-a"))

	allowed, err := ml.Check(ctx, "client-a", limit)
	require.NoError(t, err)
	assert.True(t, allowed.Allowed)
}

func TestMemoryLimiterDropsIdleWindows(t *testing.T) {
	ml := NewMemoryLimiter()
	defer func() { _ = ml.Close() }()
	ctx := context.Background()

	_, err := ml.Check(ctx, "client-a", PerMinute(10))
	require.NoError(t, err)

	ml.dropIdleWindows(time.Now().Add(windowIdleLimit + time.Second))

	ml.mu.Lock()
	_, exists := ml.windows["client-a"]
	ml.mu.Unlock()
	assert.False(t, exists)
}

func TestParseScriptResult(t *testing.T) {
	limit := PerMinute(10)

	t.Run("admitted", func(t *testing.T) {
		resetMs := time.Now().Add(time.Minute).UnixMilli()
		result, err := parseScriptResult([]interface{}{int64(1), int64(4), int64(6), resetMs}, limit)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 4, result.Count)
		assert.Equal(t, 6, result.Remaining)
		assert.Equal(t, 10, result.Limit)
		assert.Greater(t, result.RetryAfter, time.Duration(0))
	})

	t.Run("denied", func(t *testing.T) {
		resetMs := time.Now().Add(time.Minute).UnixMilli()
		result, err := parseScriptResult([]interface{}{int64(0), int64(10), int64(0), resetMs}, limit)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, 0, result.Remaining)
	})

	t.Run("past reset clamps retry", func(t *testing.T) {
		resetMs := time.Now().Add(-time.Second).UnixMilli()
		result, err := parseScriptResult([]interface{}{int64(1), int64(1), int64(9), resetMs}, limit)
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), result.RetryAfter)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := parseScriptResult("not a tuple", limit)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid script result format")

		_, err = parseScriptResult([]interface{}{int64(1), int64(1)}, limit)
		require.Error(t, err)
	})
}

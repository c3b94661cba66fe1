package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"vigil/internal/config"
	"vigil/internal/logging"
)

const keyPrefix = "vigil:ratelimit:"

// slidingWindowScript admits a request when the number of requests inside
// the trailing window is under the limit. Timestamps live in a sorted set
// scored by milliseconds; expired members are trimmed on every check.
//
// KEYS[1]: window key
// ARGV[1]: limit
// ARGV[2]: window in milliseconds
// ARGV[3]: current time in milliseconds
//
// Returns {allowed(0/1), count, remaining, reset time in milliseconds}.
const slidingWindowScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

local current = redis.call('ZCARD', key)
local allowed = 0

if current < limit then
    allowed = 1
    redis.call('ZADD', key, now, now .. ':' .. math.random())
    current = current + 1
    redis.call('EXPIRE', key, math.ceil(window / 1000))
end

local remaining = limit - current
if remaining < 0 then
    remaining = 0
end

return {allowed, current, remaining, now + window}
`

// RedisLimiter shares sliding windows across server replicas through a
// Redis sorted set per key.
type RedisLimiter struct {
	client *redis.Client
	script *redis.Script
	logger logging.Logger
}

// NewRedisLimiter connects to Redis and verifies the connection with a
// five-second ping.
func NewRedisLimiter(cfg *config.RedisConfig, logger logging.Logger) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log := logger.WithComponent("ratelimit")
	log.Info("redis rate limiter connected", "addr", cfg.Addr, "db", cfg.DB)

	return &RedisLimiter{
		client: client,
		script: redis.NewScript(slidingWindowScript),
		logger: log,
	}, nil
}

// Check runs the sliding window script for key. Run falls back from EVALSHA
// to EVAL on its own, so scripts survive a Redis restart.
func (rl *RedisLimiter) Check(ctx context.Context, key string, limit Limit) (*Result, error) {
	now := time.Now()

	raw, err := rl.script.Run(ctx, rl.client, []string{keyPrefix + key},
		limit.Limit, limit.Window.Milliseconds(), now.UnixMilli()).Result()
	if err != nil {
		return nil, fmt.Errorf("sliding window script failed: %w", err)
	}

	return parseScriptResult(raw, limit)
}

// Reset drops the window for key.
func (rl *RedisLimiter) Reset(ctx context.Context, key string) error {
	return rl.client.Del(ctx, keyPrefix+key).Err()
}

// HealthCheck verifies Redis is reachable.
func (rl *RedisLimiter) HealthCheck(ctx context.Context) error {
	return rl.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (rl *RedisLimiter) Close() error {
	return rl.client.Close()
}

// parseScriptResult decodes the {allowed, count, remaining, resetMs} tuple
// the script returns.
func parseScriptResult(raw interface{}, limit Limit) (*Result, error) {
	values, ok := raw.([]interface{})
	if !ok || len(values) < 4 {
		return nil, fmt.Errorf("invalid script result format")
	}

	allowed, err := strconv.ParseInt(fmt.Sprintf("%v", values[0]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse allowed: %w", err)
	}
	count, err := strconv.Atoi(fmt.Sprintf("%v", values[1]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse count: %w", err)
	}
	remaining, err := strconv.Atoi(fmt.Sprintf("%v", values[2]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse remaining: %w", err)
	}
	resetMs, err := strconv.ParseInt(fmt.Sprintf("%v", values[3]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reset time: %w", err)
	}

	resetTime := time.Unix(0, resetMs*int64(time.Millisecond))
	retryAfter := time.Until(resetTime)
	if retryAfter < 0 {
		retryAfter = 0
	}

	return &Result{
		Allowed:    allowed == 1,
		Count:      count,
		Limit:      limit.Limit,
		Remaining:  remaining,
		RetryAfter: retryAfter,
		ResetTime:  resetTime,
	}, nil
}

package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	janitorInterval = time.Minute
	windowIdleLimit = 5 * time.Minute
)

// MemoryLimiter keeps sliding windows in process memory. Budgets are not
// shared across replicas; it exists so single-node deployments can rate
// limit without Redis.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow

	closeOnce sync.Once
	done      chan struct{}
}

type memoryWindow struct {
	requests []time.Time
	lastSeen time.Time
}

// NewMemoryLimiter creates an in-memory limiter and starts its janitor,
// which drops windows idle for more than five minutes.
func NewMemoryLimiter() *MemoryLimiter {
	ml := &MemoryLimiter{
		windows: make(map[string]*memoryWindow),
		done:    make(chan struct{}),
	}
	go ml.janitor()
	return ml
}

// Check admits the request when the trailing window holds fewer than
// limit.Limit requests, mirroring the Redis script.
func (ml *MemoryLimiter) Check(ctx context.Context, key string, limit Limit) (*Result, error) {
	now := time.Now()

	ml.mu.Lock()
	defer ml.mu.Unlock()

	win, ok := ml.windows[key]
	if !ok {
		win = &memoryWindow{}
		ml.windows[key] = win
	}
	win.lastSeen = now

	cutoff := now.Add(-limit.Window)
	kept := win.requests[:0]
	for _, ts := range win.requests {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	win.requests = kept

	count := len(win.requests)
	allowed := count < limit.Limit
	if allowed {
		win.requests = append(win.requests, now)
		count++
	}

	remaining := limit.Limit - count
	if remaining < 0 {
		remaining = 0
	}

	resetTime := now.Add(limit.Window)
	return &Result{
		Allowed:    allowed,
		Count:      count,
		Limit:      limit.Limit,
		Remaining:  remaining,
		RetryAfter: limit.Window,
		ResetTime:  resetTime,
	}, nil
}

// Reset drops the window for key.
func (ml *MemoryLimiter) Reset(ctx context.Context, key string) error {
	ml.mu.Lock()
	delete(ml.windows, key)
	ml.mu.Unlock()
	return nil
}

// Close stops the janitor.
func (ml *MemoryLimiter) Close() error {
	ml.closeOnce.Do(func() { close(ml.done) })
	return nil
}

func (ml *MemoryLimiter) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ml.dropIdleWindows(time.Now())
		case <-ml.done:
			return
		}
	}
}

func (ml *MemoryLimiter) dropIdleWindows(now time.Time) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	for key, win := range ml.windows {
		if now.Sub(win.lastSeen) > windowIdleLimit {
			delete(ml.windows, key)
		}
	}
}

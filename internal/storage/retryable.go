package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vigil/internal/retry"
	"vigil/pkg/types"
)

// RetryableStore wraps a SnapshotStore with retry logic for transient
// failures. Close is the only method that passes through unretried.
type RetryableStore struct {
	store   SnapshotStore
	retrier *retry.Retrier
}

// NewRetryableStore wraps store. A nil config selects the storage defaults.
func NewRetryableStore(store SnapshotStore, config *retry.Config) SnapshotStore {
	if config == nil {
		config = defaultRetryConfig()
	}
	return &RetryableStore{
		store:   store,
		retrier: retry.New(config),
	}
}

// defaultRetryConfig is tuned for snapshot writes: three attempts with a
// short initial delay so a flapping database does not stall the callers.
func defaultRetryConfig() *retry.Config {
	return &retry.Config{
		MaxAttempts:     3,
		InitialDelay:    200 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		Multiplier:      2.0,
		RandomizeFactor: 0.1,
		RetryIf:         isRetryableStorageError,
	}
}

// isRetryableStorageError reports whether a storage error looks transient.
func isRetryableStorageError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"too many requests",
		"service unavailable",
		"database is locked",
		"bad gateway",
		"gateway timeout",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	type temporary interface {
		Temporary() bool
	}
	var te temporary
	if errors.As(err, &te) {
		return te.Temporary()
	}

	return false
}

// Initialize creates the schema with retries.
func (r *RetryableStore) Initialize(ctx context.Context) error {
	result := r.retrier.Do(ctx, func(ctx context.Context) error {
		return r.store.Initialize(ctx)
	})
	if result.Err != nil {
		return fmt.Errorf("failed to initialize after %d attempts: %w", result.Attempts, result.Err)
	}
	return nil
}

// SaveAlerts saves the alert snapshot with retries.
func (r *RetryableStore) SaveAlerts(ctx context.Context, alerts []types.Alert) error {
	result := r.retrier.Do(ctx, func(ctx context.Context) error {
		return r.store.SaveAlerts(ctx, alerts)
	})
	if result.Err != nil {
		return fmt.Errorf("failed to save alerts after %d attempts: %w", result.Attempts, result.Err)
	}
	return nil
}

// LoadAlerts loads the alert snapshot with retries.
func (r *RetryableStore) LoadAlerts(ctx context.Context) ([]types.Alert, error) {
	var alerts []types.Alert
	result := r.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		alerts, err = r.store.LoadAlerts(ctx)
		return err
	})
	if result.Err != nil {
		return nil, fmt.Errorf("failed to load alerts after %d attempts: %w", result.Attempts, result.Err)
	}
	return alerts, nil
}

// SaveAnomalies saves the anomaly snapshot with retries.
func (r *RetryableStore) SaveAnomalies(ctx context.Context, records []types.AnomalyRecord) error {
	result := r.retrier.Do(ctx, func(ctx context.Context) error {
		return r.store.SaveAnomalies(ctx, records)
	})
	if result.Err != nil {
		return fmt.Errorf("failed to save anomalies after %d attempts: %w", result.Attempts, result.Err)
	}
	return nil
}

// LoadAnomalies loads the anomaly snapshot with retries.
func (r *RetryableStore) LoadAnomalies(ctx context.Context) ([]types.AnomalyRecord, error) {
	var records []types.AnomalyRecord
	result := r.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		records, err = r.store.LoadAnomalies(ctx)
		return err
	})
	if result.Err != nil {
		return nil, fmt.Errorf("failed to load anomalies after %d attempts: %w", result.Attempts, result.Err)
	}
	return records, nil
}

// SaveSLAHistory saves the compliance history with retries.
func (r *RetryableStore) SaveSLAHistory(ctx context.Context, history []types.SLACompliance) error {
	result := r.retrier.Do(ctx, func(ctx context.Context) error {
		return r.store.SaveSLAHistory(ctx, history)
	})
	if result.Err != nil {
		return fmt.Errorf("failed to save sla history after %d attempts: %w", result.Attempts, result.Err)
	}
	return nil
}

// LoadSLAHistory loads the compliance history with retries.
func (r *RetryableStore) LoadSLAHistory(ctx context.Context) ([]types.SLACompliance, error) {
	var history []types.SLACompliance
	result := r.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		history, err = r.store.LoadSLAHistory(ctx)
		return err
	})
	if result.Err != nil {
		return nil, fmt.Errorf("failed to load sla history after %d attempts: %w", result.Attempts, result.Err)
	}
	return history, nil
}

// HealthCheck probes the store with a more aggressive retry strategy than
// the data paths use.
func (r *RetryableStore) HealthCheck(ctx context.Context) error {
	healthConfig := &retry.Config{
		MaxAttempts:     5,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        2 * time.Second,
		Multiplier:      1.5,
		RandomizeFactor: 0.1,
		RetryIf:         isRetryableStorageError,
	}

	result := retry.New(healthConfig).Do(ctx, func(ctx context.Context) error {
		return r.store.HealthCheck(ctx)
	})
	if result.Err != nil {
		return fmt.Errorf("health check failed after %d attempts: %w", result.Attempts, result.Err)
	}
	return nil
}

// Close releases the underlying store without retrying.
func (r *RetryableStore) Close() error {
	return r.store.Close()
}

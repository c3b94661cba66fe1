package storage

import (
	"context"
	"time"

	"vigil/internal/circuitbreaker"
	"vigil/internal/logging"
	"vigil/pkg/types"
)

// CircuitBreakerStore wraps a SnapshotStore with a circuit breaker. Saves
// fail fast while the circuit is open; loads fall back to an empty snapshot
// so the subsystems can start with what they have in memory.
type CircuitBreakerStore struct {
	store SnapshotStore
	cb    *circuitbreaker.CircuitBreaker
}

// NewCircuitBreakerStore wraps store. A nil config selects defaults that
// open after five consecutive failures and probe again after 30 seconds.
func NewCircuitBreakerStore(store SnapshotStore, config *circuitbreaker.Config, logger logging.Logger) *CircuitBreakerStore {
	log := logger.WithComponent("storage")
	if config == nil {
		config = &circuitbreaker.Config{
			FailureThreshold:      5,
			SuccessThreshold:      2,
			Timeout:               30 * time.Second,
			MaxConcurrentRequests: 3,
		}
	}
	if config.OnStateChange == nil {
		config.OnStateChange = func(from, to circuitbreaker.State) {
			log.Warn("snapshot store circuit state changed", "from", from.String(), "to", to.String())
		}
	}

	return &CircuitBreakerStore{
		store: store,
		cb:    circuitbreaker.New(config),
	}
}

// Initialize creates the schema, failing fast when the circuit is open.
func (s *CircuitBreakerStore) Initialize(ctx context.Context) error {
	return s.cb.Execute(ctx, func(ctx context.Context) error {
		return s.store.Initialize(ctx)
	})
}

// SaveAlerts saves the alert snapshot, failing fast when the circuit is open.
func (s *CircuitBreakerStore) SaveAlerts(ctx context.Context, alerts []types.Alert) error {
	return s.cb.Execute(ctx, func(ctx context.Context) error {
		return s.store.SaveAlerts(ctx, alerts)
	})
}

// LoadAlerts loads the alert snapshot, falling back to an empty one when the
// circuit is open.
func (s *CircuitBreakerStore) LoadAlerts(ctx context.Context) ([]types.Alert, error) {
	var result []types.Alert

	err := s.cb.ExecuteWithFallback(ctx,
		func(ctx context.Context) error {
			var err error
			result, err = s.store.LoadAlerts(ctx)
			return err
		},
		func(ctx context.Context, cbErr error) error {
			result = []types.Alert{}
			return nil
		},
	)

	return result, err
}

// SaveAnomalies saves the anomaly snapshot, failing fast when the circuit is
// open.
func (s *CircuitBreakerStore) SaveAnomalies(ctx context.Context, records []types.AnomalyRecord) error {
	return s.cb.Execute(ctx, func(ctx context.Context) error {
		return s.store.SaveAnomalies(ctx, records)
	})
}

// LoadAnomalies loads the anomaly snapshot, falling back to an empty one
// when the circuit is open.
func (s *CircuitBreakerStore) LoadAnomalies(ctx context.Context) ([]types.AnomalyRecord, error) {
	var result []types.AnomalyRecord

	err := s.cb.ExecuteWithFallback(ctx,
		func(ctx context.Context) error {
			var err error
			result, err = s.store.LoadAnomalies(ctx)
			return err
		},
		func(ctx context.Context, cbErr error) error {
			result = []types.AnomalyRecord{}
			return nil
		},
	)

	return result, err
}

// SaveSLAHistory saves the compliance history, failing fast when the circuit
// is open.
func (s *CircuitBreakerStore) SaveSLAHistory(ctx context.Context, history []types.SLACompliance) error {
	return s.cb.Execute(ctx, func(ctx context.Context) error {
		return s.store.SaveSLAHistory(ctx, history)
	})
}

// LoadSLAHistory loads the compliance history, falling back to an empty one
// when the circuit is open.
func (s *CircuitBreakerStore) LoadSLAHistory(ctx context.Context) ([]types.SLACompliance, error) {
	var result []types.SLACompliance

	err := s.cb.ExecuteWithFallback(ctx,
		func(ctx context.Context) error {
			var err error
			result, err = s.store.LoadSLAHistory(ctx)
			return err
		},
		func(ctx context.Context, cbErr error) error {
			result = []types.SLACompliance{}
			return nil
		},
	)

	return result, err
}

// HealthCheck probes the store. An open circuit reports unhealthy without
// touching the database.
func (s *CircuitBreakerStore) HealthCheck(ctx context.Context) error {
	return s.cb.Execute(ctx, func(ctx context.Context) error {
		return s.store.HealthCheck(ctx)
	})
}

// Close releases the underlying store. The breaker does not gate shutdown.
func (s *CircuitBreakerStore) Close() error {
	return s.store.Close()
}

// BreakerStats exposes the circuit metrics for the health endpoint.
func (s *CircuitBreakerStore) BreakerStats() circuitbreaker.Stats {
	return s.cb.GetStats()
}

// Package storage persists alert, anomaly, and SLA compliance snapshots
// across restarts. The subsystems keep their working state in memory and
// bind a store optionally; every adapter here satisfies the narrow seams
// declared by the alerting, anomaly, and sla packages.
package storage

import (
	"context"
	"fmt"

	"vigil/internal/config"
	"vigil/internal/logging"
	"vigil/pkg/types"
)

// SnapshotStore is the union of the persistence seams the subsystems
// declare. Saves replace the previous snapshot wholesale; loads return it
// in the order it was written.
type SnapshotStore interface {
	Initialize(ctx context.Context) error
	SaveAlerts(ctx context.Context, alerts []types.Alert) error
	LoadAlerts(ctx context.Context) ([]types.Alert, error)
	SaveAnomalies(ctx context.Context, records []types.AnomalyRecord) error
	LoadAnomalies(ctx context.Context) ([]types.AnomalyRecord, error)
	SaveSLAHistory(ctx context.Context, history []types.SLACompliance) error
	LoadSLAHistory(ctx context.Context) ([]types.SLACompliance, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// NewStore builds the adapter named by cfg.Driver. Noop is the default and
// keeps nothing; postgres and sqlite are the durable bindings.
func NewStore(cfg *config.StorageConfig, logger logging.Logger) (SnapshotStore, error) {
	switch cfg.Driver {
	case config.StorageDriverPostgres:
		return NewPostgresStore(cfg.PostgresDSN, logger)
	case config.StorageDriverSQLite:
		return NewSQLiteStore(cfg.SQLitePath, logger)
	case config.StorageDriverNoop, "":
		return NewNoopStore(logger), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}

// NoopStore discards saves and loads empty snapshots. It keeps the wiring
// uniform when persistence is disabled.
type NoopStore struct {
	logger logging.Logger
}

// NewNoopStore creates a store that persists nothing.
func NewNoopStore(logger logging.Logger) *NoopStore {
	return &NoopStore{logger: logger.WithComponent("storage")}
}

// Initialize does nothing.
func (s *NoopStore) Initialize(ctx context.Context) error {
	s.logger.Debug("noop store initialized, snapshots will not survive restarts")
	return nil
}

// SaveAlerts discards the snapshot.
func (s *NoopStore) SaveAlerts(ctx context.Context, alerts []types.Alert) error {
	s.logger.Debug("discarding alert snapshot", "count", len(alerts))
	return nil
}

// LoadAlerts returns an empty snapshot.
func (s *NoopStore) LoadAlerts(ctx context.Context) ([]types.Alert, error) {
	return nil, nil
}

// SaveAnomalies discards the snapshot.
func (s *NoopStore) SaveAnomalies(ctx context.Context, records []types.AnomalyRecord) error {
	s.logger.Debug("discarding anomaly snapshot", "count", len(records))
	return nil
}

// LoadAnomalies returns an empty snapshot.
func (s *NoopStore) LoadAnomalies(ctx context.Context) ([]types.AnomalyRecord, error) {
	return nil, nil
}

// SaveSLAHistory discards the snapshot.
func (s *NoopStore) SaveSLAHistory(ctx context.Context, history []types.SLACompliance) error {
	s.logger.Debug("discarding sla history snapshot", "count", len(history))
	return nil
}

// LoadSLAHistory returns an empty snapshot.
func (s *NoopStore) LoadSLAHistory(ctx context.Context) ([]types.SLACompliance, error) {
	return nil, nil
}

// HealthCheck always passes.
func (s *NoopStore) HealthCheck(ctx context.Context) error {
	return nil
}

// Close does nothing.
func (s *NoopStore) Close() error {
	return nil
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"vigil/internal/logging"
	"vigil/pkg/types"
)

// PostgresStore keeps snapshots in Postgres, one table per subsystem and one
// row per record with the full record JSON-encoded in a JSONB column. A save
// replaces the table contents in a single transaction, so a load always sees
// a complete snapshot.
type PostgresStore struct {
	db     *sql.DB
	logger logging.Logger
}

// NewPostgresStore opens a connection pool for the given DSN. The schema is
// created by Initialize, not here.
func NewPostgresStore(dsn string, logger logging.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	return &PostgresStore{
		db:     db,
		logger: logger.WithComponent("storage"),
	}, nil
}

// Initialize creates the snapshot tables and indexes if they are missing.
func (s *PostgresStore) Initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS vigil_alerts (
		seq BIGSERIAL PRIMARY KEY,
		alert_id TEXT NOT NULL,
		payload JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_vigil_alerts_alert_id ON vigil_alerts(alert_id);

	CREATE TABLE IF NOT EXISTS vigil_anomalies (
		seq BIGSERIAL PRIMARY KEY,
		anomaly_id TEXT NOT NULL,
		payload JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_vigil_anomalies_anomaly_id ON vigil_anomalies(anomaly_id);

	CREATE TABLE IF NOT EXISTS vigil_sla_history (
		seq BIGSERIAL PRIMARY KEY,
		service_name TEXT NOT NULL,
		payload JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_vigil_sla_history_service ON vigil_sla_history(service_name);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create postgres schema: %w", err)
	}

	s.logger.Info("postgres snapshot store initialized")
	return nil
}

// SaveAlerts replaces the stored alert snapshot.
func (s *PostgresStore) SaveAlerts(ctx context.Context, alerts []types.Alert) error {
	rows := make([]snapshotRow, 0, len(alerts))
	for i := range alerts {
		payload, err := json.Marshal(&alerts[i])
		if err != nil {
			return fmt.Errorf("failed to marshal alert %s: %w", alerts[i].ID, err)
		}
		rows = append(rows, snapshotRow{id: alerts[i].ID, payload: payload})
	}
	return s.replaceSnapshot(ctx, "vigil_alerts", "alert_id", rows)
}

// LoadAlerts returns the stored alert snapshot in save order.
func (s *PostgresStore) LoadAlerts(ctx context.Context) ([]types.Alert, error) {
	payloads, err := s.loadPayloads(ctx, "vigil_alerts")
	if err != nil {
		return nil, err
	}

	alerts := make([]types.Alert, 0, len(payloads))
	for _, payload := range payloads {
		var alert types.Alert
		if err := json.Unmarshal(payload, &alert); err != nil {
			return nil, fmt.Errorf("failed to unmarshal alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// SaveAnomalies replaces the stored anomaly snapshot.
func (s *PostgresStore) SaveAnomalies(ctx context.Context, records []types.AnomalyRecord) error {
	rows := make([]snapshotRow, 0, len(records))
	for i := range records {
		payload, err := json.Marshal(&records[i])
		if err != nil {
			return fmt.Errorf("failed to marshal anomaly %s: %w", records[i].ID, err)
		}
		rows = append(rows, snapshotRow{id: records[i].ID, payload: payload})
	}
	return s.replaceSnapshot(ctx, "vigil_anomalies", "anomaly_id", rows)
}

// LoadAnomalies returns the stored anomaly snapshot in save order.
func (s *PostgresStore) LoadAnomalies(ctx context.Context) ([]types.AnomalyRecord, error) {
	payloads, err := s.loadPayloads(ctx, "vigil_anomalies")
	if err != nil {
		return nil, err
	}

	records := make([]types.AnomalyRecord, 0, len(payloads))
	for _, payload := range payloads {
		var record types.AnomalyRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal anomaly: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}

// SaveSLAHistory replaces the stored compliance history snapshot.
func (s *PostgresStore) SaveSLAHistory(ctx context.Context, history []types.SLACompliance) error {
	rows := make([]snapshotRow, 0, len(history))
	for i := range history {
		payload, err := json.Marshal(&history[i])
		if err != nil {
			return fmt.Errorf("failed to marshal sla compliance for %s: %w", history[i].ServiceName, err)
		}
		rows = append(rows, snapshotRow{id: history[i].ServiceName, payload: payload})
	}
	return s.replaceSnapshot(ctx, "vigil_sla_history", "service_name", rows)
}

// LoadSLAHistory returns the stored compliance history in save order.
func (s *PostgresStore) LoadSLAHistory(ctx context.Context) ([]types.SLACompliance, error) {
	payloads, err := s.loadPayloads(ctx, "vigil_sla_history")
	if err != nil {
		return nil, err
	}

	history := make([]types.SLACompliance, 0, len(payloads))
	for _, payload := range payloads {
		var compliance types.SLACompliance
		if err := json.Unmarshal(payload, &compliance); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sla compliance: %w", err)
		}
		history = append(history, compliance)
	}
	return history, nil
}

// HealthCheck verifies the database is reachable.
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres health check failed: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// snapshotRow is one record ready for insertion: its identifying value and
// the JSON-encoded payload.
type snapshotRow struct {
	id      string
	payload []byte
}

// replaceSnapshot deletes the table contents and inserts the given rows in
// one transaction.
func (s *PostgresStore) replaceSnapshot(ctx context.Context, table, idColumn string, rows []snapshotRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s, payload) VALUES ($1, $2)", table, idColumn))
	if err != nil {
		return fmt.Errorf("failed to prepare insert for %s: %w", table, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.id, row.payload); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot for %s: %w", table, err)
	}

	s.logger.Debug("snapshot replaced", "table", table, "rows", len(rows))
	return nil
}

// loadPayloads reads every payload from a table in insertion order.
func (s *PostgresStore) loadPayloads(ctx context.Context, table string) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM "+table+" ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var payloads [][]byte
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan payload from %s: %w", table, err)
		}
		payloads = append(payloads, payload)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", table, err)
	}
	return payloads, nil
}

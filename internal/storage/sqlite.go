package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"vigil/internal/logging"
	"vigil/pkg/types"
)

// SQLiteStore keeps snapshots in a local SQLite file. Same layout as the
// postgres adapter: one table per subsystem, one JSON payload per row,
// saves replace the table contents transactionally.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

// NewSQLiteStore opens the database file, creating its directory when
// missing. The schema is created by Initialize.
func NewSQLiteStore(path string, logger logging.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_sync=NORMAL&_cache_size=10000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	return &SQLiteStore{
		db:     db,
		logger: logger.WithComponent("storage"),
	}, nil
}

// Initialize creates the snapshot tables and indexes if they are missing.
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS vigil_alerts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		alert_id TEXT NOT NULL,
		payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_vigil_alerts_alert_id ON vigil_alerts(alert_id);

	CREATE TABLE IF NOT EXISTS vigil_anomalies (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		anomaly_id TEXT NOT NULL,
		payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_vigil_anomalies_anomaly_id ON vigil_anomalies(anomaly_id);

	CREATE TABLE IF NOT EXISTS vigil_sla_history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		service_name TEXT NOT NULL,
		payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_vigil_sla_history_service ON vigil_sla_history(service_name);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create sqlite schema: %w", err)
	}

	s.logger.Info("sqlite snapshot store initialized")
	return nil
}

// SaveAlerts replaces the stored alert snapshot.
func (s *SQLiteStore) SaveAlerts(ctx context.Context, alerts []types.Alert) error {
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
func (s *SQLiteStore) LoadAlerts(ctx context.Context) ([]types.Alert, error) {
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
func (s *SQLiteStore) SaveAnomalies(ctx context.Context, records []types.AnomalyRecord) error {
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
func (s *SQLiteStore) LoadAnomalies(ctx context.Context) ([]types.AnomalyRecord, error) {
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
func (s *SQLiteStore) SaveSLAHistory(ctx context.Context, history []types.SLACompliance) error {
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
func (s *SQLiteStore) LoadSLAHistory(ctx context.Context) ([]types.SLACompliance, error) {
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

// HealthCheck verifies the database file is usable.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite health check failed: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// replaceSnapshot deletes the table contents and inserts the given rows in
// one transaction.
func (s *SQLiteStore) replaceSnapshot(ctx context.Context, table, idColumn string, rows []snapshotRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s, payload) VALUES (?, ?)", table, idColumn))
	if err != nil {
		return fmt.Errorf("failed to prepare insert for %s: %w", table, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.id, string(row.payload)); err != nil {
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
func (s *SQLiteStore) loadPayloads(ctx context.Context, table string) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM "+table+" ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var payloads [][]byte
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan payload from %s: %w", table, err)
		}
		payloads = append(payloads, []byte(payload))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", table, err)
	}
	return payloads, nil
}

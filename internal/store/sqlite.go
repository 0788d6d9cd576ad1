package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is the durable store backed by a local SQLite file, the only
// persistence available on-device.
type SQLite struct {
	conn *sql.DB
	mu   sync.Mutex
}

// NewSQLite opens (or creates) the database at path. Use ":memory:"
// for tests.
func NewSQLite(path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	s := &SQLite{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ensemble_weights (
		backend TEXT PRIMARY KEY,
		weight REAL NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS backend_metrics (
		backend TEXT PRIMARY KEY,
		mean_confidence REAL NOT NULL DEFAULT 0,
		mean_latency_ms REAL NOT NULL DEFAULT 0,
		mean_abs_error REAL NOT NULL DEFAULT 0,
		sample_count INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	_, err := s.conn.Exec(schema)
	return err
}

// Close closes the underlying connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// LoadWeights returns the persisted weight set.
func (s *SQLite) LoadWeights() (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(`SELECT backend, weight FROM ensemble_weights`)
	if err != nil {
		return nil, fmt.Errorf("failed to load weights: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var backend string
		var weight float64
		if err := rows.Scan(&backend, &weight); err != nil {
			return nil, fmt.Errorf("failed to scan weight row: %w", err)
		}
		out[backend] = weight
	}
	return out, rows.Err()
}

// SaveWeights replaces the persisted weight set in one transaction.
func (s *SQLite) SaveWeights(weights map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM ensemble_weights`); err != nil {
		return fmt.Errorf("failed to clear weights: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO ensemble_weights (backend, weight) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for backend, weight := range weights {
		if _, err := stmt.Exec(backend, weight); err != nil {
			return fmt.Errorf("failed to insert weight for %s: %w", backend, err)
		}
	}
	return tx.Commit()
}

// LoadMetrics returns the persisted per-backend metrics.
func (s *SQLite) LoadMetrics() (map[string]BackendMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(`
		SELECT backend, mean_confidence, mean_latency_ms, mean_abs_error, sample_count
		FROM backend_metrics`)
	if err != nil {
		return nil, fmt.Errorf("failed to load metrics: %w", err)
	}
	defer rows.Close()

	out := make(map[string]BackendMetric)
	for rows.Next() {
		var m BackendMetric
		if err := rows.Scan(&m.Backend, &m.MeanConfidence, &m.MeanLatencyMs, &m.MeanAbsError, &m.SampleCount); err != nil {
			return nil, fmt.Errorf("failed to scan metric row: %w", err)
		}
		out[m.Backend] = m
	}
	return out, rows.Err()
}

// SaveMetrics upserts metrics for the given backends in one transaction.
func (s *SQLite) SaveMetrics(metrics []BackendMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO backend_metrics (backend, mean_confidence, mean_latency_ms, mean_abs_error, sample_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(backend) DO UPDATE SET
			mean_confidence = excluded.mean_confidence,
			mean_latency_ms = excluded.mean_latency_ms,
			mean_abs_error = excluded.mean_abs_error,
			sample_count = excluded.sample_count,
			updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, m := range metrics {
		if _, err := stmt.Exec(m.Backend, m.MeanConfidence, m.MeanLatencyMs, m.MeanAbsError, m.SampleCount); err != nil {
			return fmt.Errorf("failed to upsert metric for %s: %w", m.Backend, err)
		}
	}
	return tx.Commit()
}

// Package sink uploads audit runs to a central PostgreSQL database so
// reports from many hosts can be queried in one place.
package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/osiriscare/winaudit/internal/report"
)

// Sink wraps a pgx connection pool for audit uploads.
type Sink struct {
	pool *pgxpool.Pool
}

// New creates a Sink from a connection string and verifies the
// connection with a ping.
func New(ctx context.Context, connString string) (*Sink, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Sink{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Sink) Close() {
	s.pool.Close()
}

// EnsureSchema creates the audit tables if they do not exist.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS audit_runs (
			id UUID PRIMARY KEY,
			report TEXT NOT NULL,
			host TEXT NOT NULL,
			collected_at TIMESTAMPTZ NOT NULL,
			columns JSONB NOT NULL,
			row_count INTEGER NOT NULL,
			uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create audit_runs: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS audit_rows (
			run_id UUID NOT NULL REFERENCES audit_runs(id) ON DELETE CASCADE,
			n INTEGER NOT NULL,
			data JSONB NOT NULL,
			PRIMARY KEY (run_id, n)
		)
	`)
	if err != nil {
		return fmt.Errorf("create audit_rows: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_audit_runs_report_host
		ON audit_runs (report, host, uploaded_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// WriteReport uploads one report under the given run ID. Re-uploading
// the same run ID replaces the previous rows.
func (s *Sink) WriteReport(ctx context.Context, runID string, rep *report.Report) error {
	if runID == "" {
		return fmt.Errorf("run ID is required")
	}

	columns, err := json.Marshal(rep.Columns)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO audit_runs (id, report, host, collected_at, columns, row_count)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		ON CONFLICT (id) DO UPDATE SET
			report = EXCLUDED.report,
			host = EXCLUDED.host,
			collected_at = EXCLUDED.collected_at,
			columns = EXCLUDED.columns,
			row_count = EXCLUDED.row_count,
			uploaded_at = NOW()
	`, runID, rep.Name, rep.Host, rep.CollectedAt, string(columns), len(rep.Rows))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM audit_rows WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("clear rows: %w", err)
	}

	batch := &pgx.Batch{}
	for n, row := range rep.Rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal row %d: %w", n, err)
		}
		batch.Queue(
			`INSERT INTO audit_rows (run_id, n, data) VALUES ($1, $2, $3::jsonb)`,
			runID, n, string(data),
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range rep.Rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert rows: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

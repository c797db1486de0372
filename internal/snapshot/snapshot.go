// Package snapshot persists report runs to a local SQLite database so
// later runs can be compared against them.
package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/osiriscare/winaudit/internal/report"
)

// Store is a snapshot database. Uses SQLite with WAL mode for durability.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// RunInfo summarizes one saved run.
type RunInfo struct {
	ID          string
	Report      string
	Host        string
	CollectedAt time.Time
	RowCount    int
}

// Open opens or creates the snapshot database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			report TEXT NOT NULL,
			host TEXT NOT NULL,
			collected_at TEXT NOT NULL,
			columns TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create runs table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS run_rows (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			n INTEGER NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (run_id, n)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create run_rows table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_runs_report_host ON runs(report, host)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &Store{db: db}, nil
}

// Save stores a report and returns the generated run ID.
func (s *Store) Save(rep *report.Report) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runID := uuid.New().String()

	columns, err := json.Marshal(rep.Columns)
	if err != nil {
		return "", fmt.Errorf("failed to marshal columns: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO runs (id, report, host, collected_at, columns, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		runID, rep.Name, rep.Host,
		rep.CollectedAt.UTC().Format(time.RFC3339),
		string(columns),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for n, row := range rep.Rows {
		data, err := json.Marshal(row)
		if err != nil {
			return "", fmt.Errorf("failed to marshal row %d: %w", n, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO run_rows (run_id, n, data) VALUES (?, ?, ?)",
			runID, n, string(data),
		); err != nil {
			return "", fmt.Errorf("failed to insert row %d: %w", n, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}

	return runID, nil
}

// Runs lists saved runs for a report, newest first. An empty host
// matches any host.
func (s *Store) Runs(reportName, host string) ([]RunInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		SELECT id, report, host, collected_at,
			(SELECT COUNT(*) FROM run_rows WHERE run_id = runs.id) AS row_count
		FROM runs
		WHERE report = ?
	`
	args := []interface{}{reportName}
	if host != "" {
		query += " AND host = ?"
		args = append(args, host)
	}
	query += " ORDER BY rowid DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var infos []RunInfo
	for rows.Next() {
		var info RunInfo
		var collected string
		if err := rows.Scan(&info.ID, &info.Report, &info.Host, &collected, &info.RowCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		info.CollectedAt, _ = time.Parse(time.RFC3339, collected)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Load reconstructs a saved report by run ID.
func (s *Store) Load(runID string) (*report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(runID)
}

func (s *Store) load(runID string) (*report.Report, error) {
	var name, host, collected, columnsJSON string
	err := s.db.QueryRow(
		"SELECT report, host, collected_at, columns FROM runs WHERE id = ?",
		runID,
	).Scan(&name, &host, &collected, &columnsJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	var columns []string
	if err := json.Unmarshal([]byte(columnsJSON), &columns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal columns: %w", err)
	}

	rep := report.New(name, host, columns...)
	rep.CollectedAt, _ = time.Parse(time.RFC3339, collected)

	rows, err := s.db.Query(
		"SELECT data FROM run_rows WHERE run_id = ? ORDER BY n ASC",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load rows for run %s: %w", runID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var row report.Row
		if err := json.Unmarshal([]byte(data), &row); err != nil {
			return nil, fmt.Errorf("failed to unmarshal row: %w", err)
		}
		rep.AddRow(row)
	}
	return rep, rows.Err()
}

// LastTwo returns the two most recent runs of a report on a host,
// oldest of the pair first.
func (s *Store) LastTwo(reportName, host string) (older, newer *report.Report, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		"SELECT id FROM runs WHERE report = ? AND host = ? ORDER BY rowid DESC LIMIT 2",
		reportName, host,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if len(ids) < 2 {
		return nil, nil, fmt.Errorf("need two saved runs of %s for %s, have %d", reportName, host, len(ids))
	}

	newer, err = s.load(ids[0])
	if err != nil {
		return nil, nil, err
	}
	older, err = s.load(ids[1])
	if err != nil {
		return nil, nil, err
	}
	return older, newer, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Package storage keeps a history of recommendation runs in SQLite.
//
// Runs are rotated so the database never holds more than the configured
// number; the oldest are removed first.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/rewired-gh/hawcbmd/internal/models"
)

// ErrRunNotFound is returned when a run id or endpoint has no stored run.
var ErrRunNotFound = eris.New("storage: run not found")

// Storage is a SQLite-backed run history. It is safe for concurrent use.
type Storage struct {
	db      *sql.DB
	maxRuns int
	path    string
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	endpoint_id   INTEGER NOT NULL,
	endpoint_name TEXT NOT NULL DEFAULT '',
	session_id    INTEGER NOT NULL DEFAULT 0,
	session_url   TEXT NOT NULL,
	data_type     TEXT NOT NULL,
	dose_units    INTEGER NOT NULL DEFAULT 0,
	rule_source   TEXT NOT NULL,
	models        TEXT NOT NULL,
	created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_endpoint ON runs(endpoint_id);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// New opens (creating if needed) the run database at dbPath. An empty path
// uses the OS temp directory; ":memory:" keeps everything in memory.
func New(maxRuns int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "hawcbmd", "runs.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, eris.Wrap(err, "sqlite: create data directory")
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// one connection: in-memory databases are per connection
	db.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA busy_timeout=5000"}
	if dbPath != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	if _, err := db.Exec(migration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: migrate")
	}

	return &Storage{db: db, maxRuns: maxRuns, path: dbPath}, nil
}

// Path returns the database location.
func (s *Storage) Path() string { return s.path }

// Close closes the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveRun stores a run, assigning an id and timestamp when missing.
func (s *Storage) SaveRun(ctx context.Context, run *models.Run) error {
	if err := run.Validate(); err != nil {
		return eris.Wrap(err, "invalid run")
	}
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	modelsJSON, err := json.Marshal(run.Models)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal models")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, endpoint_id, endpoint_name, session_id, session_url, data_type, dose_units, rule_source, models, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.EndpointID, run.EndpointName, run.SessionID, run.SessionURL,
		string(run.DataType), run.DoseUnits, string(run.RuleSource), string(modelsJSON), run.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
	}
	return nil
}

const selectRun = `SELECT id, endpoint_id, endpoint_name, session_id, session_url, data_type, dose_units, rule_source, models, created_at FROM runs`

// GetRun retrieves a run by id.
func (s *Storage) GetRun(ctx context.Context, id string) (*models.Run, error) {
	row := s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id)
	r, err := scanRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "get run %s", id)
	}
	return r, nil
}

// LatestRun returns the most recent run for an endpoint.
func (s *Storage) LatestRun(ctx context.Context, endpointID int) (*models.Run, error) {
	row := s.db.QueryRowContext(ctx, selectRun+` WHERE endpoint_id = ? ORDER BY created_at DESC LIMIT 1`, endpointID)
	r, err := scanRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "latest run for endpoint %d", endpointID)
	}
	return r, nil
}

// ListRuns returns up to limit runs, newest first. endpointID 0 lists all.
func (s *Storage) ListRuns(ctx context.Context, endpointID, limit int) ([]models.Run, error) {
	query := selectRun
	var args []any
	if endpointID != 0 {
		query += ` WHERE endpoint_id = ?`
		args = append(args, endpointID)
	}
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// RotateRuns removes the oldest runs exceeding the max limit. It returns
// the number removed.
func (s *Storage) RotateRuns(ctx context.Context) (int, error) {
	if s.maxRuns <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY created_at DESC LIMIT ?)`,
		s.maxRuns,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rotate runs")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "rows affected")
	}
	return int(n), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*models.Run, error) {
	var r models.Run
	var dataType, ruleSource, modelsJSON string

	err := row.Scan(&r.ID, &r.EndpointID, &r.EndpointName, &r.SessionID, &r.SessionURL,
		&dataType, &r.DoseUnits, &ruleSource, &modelsJSON, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.DataType = models.DataType(dataType)
	r.RuleSource = models.RuleSource(ruleSource)

	if err := json.Unmarshal([]byte(modelsJSON), &r.Models); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal models")
	}
	return &r, nil
}

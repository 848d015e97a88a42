package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	results_dir TEXT NOT NULL,
	bundles     INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

const DefaultListLimit = 50

// Fixed width so started_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type RunStore struct {
	db *sql.DB
}

var _ domain.RunRepository = (*RunStore)(nil)

// Open creates the database file (and its directory) when missing.
func Open(path string) (*RunStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	// sqlite allows a single writer; one connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate run store: %w", err)
	}
	return &RunStore{db: db}, nil
}

func (s *RunStore) Close() error {
	return s.db.Close()
}

func (s *RunStore) Create(ctx context.Context, run domain.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at, results_dir, bundles, error) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID.String(), string(run.Status), formatTime(run.StartedAt), run.ResultsDir, run.Bundles, run.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

func (s *RunStore) Finish(ctx context.Context, id uuid.UUID, status domain.RunStatus, bundles int, errMsg string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, bundles = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), bundles, errMsg, formatTime(at), id.String(),
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update run %s: %w", id, domain.ErrRunNotFound)
	}
	return nil
}

func (s *RunStore) Get(ctx context.Context, id uuid.UUID) (domain.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, started_at, finished_at, results_dir, bundles, error FROM runs WHERE id = ?`,
		id.String(),
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Run{}, fmt.Errorf("run %s: %w", id, domain.ErrRunNotFound)
	}
	return run, err
}

// List returns the newest runs first.
func (s *RunStore) List(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, started_at, finished_at, results_dir, bundles, error FROM runs ORDER BY started_at DESC, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ret []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, run)
	}
	return ret, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (domain.Run, error) {
	var (
		run                 domain.Run
		id, status, started string
		finished            sql.NullString
	)
	if err := sc.Scan(&id, &status, &started, &finished, &run.ResultsDir, &run.Bundles, &run.Error); err != nil {
		return domain.Run{}, err
	}

	var err error
	if run.ID, err = uuid.Parse(id); err != nil {
		return domain.Run{}, fmt.Errorf("run id %q: %w", id, err)
	}
	run.Status = domain.RunStatus(status)
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return domain.Run{}, err
	}
	if finished.Valid {
		t, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return domain.Run{}, err
		}
		run.FinishedAt = &t
	}
	return run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

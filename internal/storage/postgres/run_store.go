package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/streamprice-crawler/internal/crawler"
)

// DefaultRunTable tracks scrape runs.
const DefaultRunTable = "scrape_runs"

// RunStore implements crawler.RunStore using Postgres.
type RunStore struct {
	pool  txPool
	table string
}

// NewRunStoreWithPool constructs a RunStore over an existing pool. Callers sharing one pool
// between stores close it themselves.
func NewRunStoreWithPool(pool txPool, table string) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(table, DefaultRunTable)
	if err != nil {
		return nil, err
	}
	return &RunStore{pool: pool, table: table}, nil
}

// EnsureSchema creates the run table when it does not exist.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	countries     TEXT[] NOT NULL,
	failed        TEXT[] NOT NULL DEFAULT '{}',
	plans         INTEGER NOT NULL DEFAULT 0,
	latest_uri    TEXT NOT NULL DEFAULT '',
	archive_uri   TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	submitted_at  TIMESTAMPTZ NOT NULL,
	started_at    TIMESTAMPTZ,
	finished_at   TIMESTAMPTZ
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// CreateRun inserts a queued run.
func (s *RunStore) CreateRun(ctx context.Context, run crawler.Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	status := run.Status
	if status == "" {
		status = crawler.RunStatusQueued
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, status, countries, submitted_at)
VALUES ($1, $2, $3, $4)`, s.table)
	if _, err := s.pool.Exec(ctx, query, run.ID, string(status), run.Countries, run.Submitted); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateRun records a status transition. Running sets started_at once; terminal statuses write
// the results and finished_at.
func (s *RunStore) UpdateRun(ctx context.Context, id string, update crawler.RunUpdate) error {
	var (
		query string
		args  []any
	)
	if update.Status.Terminal() {
		failed := update.Failed
		if failed == nil {
			failed = []string{}
		}
		query = fmt.Sprintf(`
UPDATE %s
SET status = $1, failed = $2, plans = $3, latest_uri = $4, archive_uri = $5,
	error_message = $6, finished_at = $7
WHERE id = $8`, s.table)
		args = []any{
			string(update.Status), failed, update.Plans, update.LatestURI, update.ArchiveURI,
			update.Error, update.At, id,
		}
	} else {
		query = fmt.Sprintf(`
UPDATE %s
SET status = $1, started_at = COALESCE(started_at, $2)
WHERE id = $3`, s.table)
		args = []any{string(update.Status), update.At, id}
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return crawler.ErrRunNotFound
	}
	return nil
}

// GetRun retrieves a single run by its ID.
func (s *RunStore) GetRun(ctx context.Context, id string) (crawler.Run, error) {
	query := fmt.Sprintf(`
SELECT id, status, countries, failed, plans, latest_uri, archive_uri, error_message,
	submitted_at, started_at, finished_at
FROM %s
WHERE id = $1`, s.table)
	var (
		run    crawler.Run
		status string
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&run.ID,
		&status,
		&run.Countries,
		&run.Failed,
		&run.Plans,
		&run.LatestURI,
		&run.ArchiveURI,
		&run.Error,
		&run.Submitted,
		&run.Started,
		&run.Finished,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return crawler.Run{}, crawler.ErrRunNotFound
		}
		return crawler.Run{}, fmt.Errorf("get run: %w", err)
	}
	run.Status = crawler.RunStatus(status)
	return run, nil
}

// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/streamprice-crawler/internal/crawler"
)

// DefaultPlanTable receives one row per scraped plan.
const DefaultPlanTable = "plan_prices"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type txPool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Connect opens a pool for cfg.DSN.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// PlanStore writes scraped plans into Postgres.
type PlanStore struct {
	pool  txPool
	table string
	now   func() time.Time
}

// NewPlanStore connects to Postgres using cfg.
func NewPlanStore(ctx context.Context, cfg Config) (*PlanStore, error) {
	table, err := tableName(cfg.Table, DefaultPlanTable)
	if err != nil {
		return nil, err
	}
	pool, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PlanStore{pool: pool, table: table, now: time.Now}, nil
}

// NewPlanStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewPlanStoreWithPool(pool txPool, table string) (*PlanStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(table, DefaultPlanTable)
	if err != nil {
		return nil, err
	}
	return &PlanStore{pool: pool, table: table, now: time.Now}, nil
}

func tableName(name, fallback string) (string, error) {
	if name == "" {
		name = fallback
	}
	if !validTableName.MatchString(name) {
		return "", fmt.Errorf("invalid table name %q", name)
	}
	return name, nil
}

// Close releases the underlying pool resources.
func (s *PlanStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the plan table when it does not exist.
func (s *PlanStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id        TEXT NOT NULL,
	country_code  TEXT NOT NULL,
	country_name  TEXT NOT NULL,
	plan_name     TEXT NOT NULL,
	original_name TEXT NOT NULL,
	plan_group    TEXT NOT NULL,
	bundle        BOOLEAN NOT NULL DEFAULT FALSE,
	label         TEXT NOT NULL,
	currency      TEXT NOT NULL,
	price_text    TEXT NOT NULL,
	price_number  DOUBLE PRECISION NOT NULL,
	monthly_price DOUBLE PRECISION NOT NULL,
	scraped_at    TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// SaveRun inserts every plan of snap in a single transaction. Countries without plans write
// nothing.
func (s *PlanStore) SaveRun(ctx context.Context, runID string, snap crawler.Snapshot) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("plan store is not configured")
	}
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if snap.PlanCount() == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin plan insert: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	country_code,
	country_name,
	plan_name,
	original_name,
	plan_group,
	bundle,
	label,
	currency,
	price_text,
	price_number,
	monthly_price,
	scraped_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)`, s.table)

	for _, code := range snap.Codes() {
		cs := snap[code]
		scraped := cs.ScrapedAt
		if scraped.IsZero() {
			scraped = s.now().UTC()
		}
		for _, p := range cs.Plans {
			_, err := tx.Exec(ctx, query,
				runID,
				code,
				cs.CountryName,
				p.PlanName,
				p.OriginalName,
				string(p.PlanGroup),
				p.Bundle,
				p.Label,
				p.Currency,
				p.PriceText,
				p.PriceNumber,
				p.MonthlyPrice,
				scraped,
			)
			if err != nil {
				_ = tx.Rollback(ctx)
				return fmt.Errorf("insert plan %s/%s: %w", code, p.PlanName, err)
			}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit plans: %w", err)
	}
	return nil
}

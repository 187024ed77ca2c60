package state

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/circular-watch/internal/circular"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// stateRowID pins the table to a single row.
const stateRowID = 1

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// PostgresStore keeps the last circular number in a single-row table.
type PostgresStore struct {
	pool  pool
	table string
}

// NewPostgresStore connects to dsn and ensures the state table exists.
func NewPostgresStore(ctx context.Context, dsn, table string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("state.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	poolCfg.MaxConns = 2
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewPostgresStoreWithPool(p, table)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewPostgresStoreWithPool(p pool, table string) (*PostgresStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "circular_state"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresStore{pool: p, table: table}, nil
}

// EnsureSchema creates the state table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id            INT PRIMARY KEY,
			last_circular TEXT NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		);`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create state table: %w", err)
	}
	return nil
}

// Load returns the stored circular number, if any.
func (s *PostgresStore) Load(ctx context.Context) (string, bool, error) {
	query := fmt.Sprintf(`SELECT last_circular FROM %s WHERE id = $1`, s.table)
	var value string
	if err := s.pool.QueryRow(ctx, query, stateRowID).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("load state: %w", err)
	}
	if value == "" {
		return "", false, nil
	}
	return value, true, nil
}

// Save upserts circularNumber as the single state row.
func (s *PostgresStore) Save(ctx context.Context, circularNumber string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, last_circular, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE
		SET last_circular = EXCLUDED.last_circular, updated_at = EXCLUDED.updated_at;`, s.table)
	if _, err := s.pool.Exec(ctx, query, stateRowID, circularNumber); err != nil {
		return fmt.Errorf("%w: upsert state: %w", circular.ErrStateWrite, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

package lock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the record as a single row in PostgreSQL, for
// processes spread over several hosts.
type PostgresStore struct {
	pool *pgxpool.Pool
	name string
}

// OpenPostgres connects to dsn and ensures the table exists.
func OpenPostgres(ctx context.Context, dsn, lockName string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	if lockName == "" {
		lockName = DefaultLockName
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS session_lock (
  lock_name  TEXT PRIMARY KEY,
  holder     TEXT NOT NULL,
  start_time TEXT NOT NULL,
  total      INTEGER NOT NULL,
  status     TEXT NOT NULL,
  session_id TEXT NOT NULL,
  started_at TIMESTAMPTZ NOT NULL
)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create session_lock table: %w", err)
	}

	return &PostgresStore{pool: pool, name: lockName}, nil
}

// Create inserts the row unless one exists.
func (s *PostgresStore) Create(ctx context.Context, rec Record) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
INSERT INTO session_lock (lock_name, holder, start_time, total, status, session_id, started_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (lock_name) DO NOTHING`,
		s.name, rec.Holder, rec.StartTime, rec.Total, rec.Status, rec.SessionID, rec.StartedAt)
	if err != nil {
		return false, fmt.Errorf("insert lock row: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Load reads the row.
func (s *PostgresStore) Load(ctx context.Context) (*Record, error) {
	var rec Record
	err := s.pool.QueryRow(ctx, `
SELECT holder, start_time, total, status, session_id, started_at
FROM session_lock WHERE lock_name = $1`, s.name).
		Scan(&rec.Holder, &rec.StartTime, &rec.Total, &rec.Status, &rec.SessionID, &rec.StartedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select lock row: %w", err)
	}

	if err := rec.validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes the row.
func (s *PostgresStore) Delete(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM session_lock WHERE lock_name = $1`, s.name); err != nil {
		return fmt.Errorf("delete lock row: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

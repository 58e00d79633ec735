package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultLockName names the row holding the record in SQL stores.
const DefaultLockName = "urlcheck"

// SQLiteStore keeps the record as a single row keyed by lock name.
// The primary key makes the insert the arbiter.
type SQLiteStore struct {
	db   *sql.DB
	name string
}

// SQLiteConfig holds SQLite store settings.
type SQLiteConfig struct {
	Path        string
	LockName    string
	BusyTimeout time.Duration
}

// OpenSQLite opens (and creates if needed) the database at cfg.Path.
func OpenSQLite(ctx context.Context, cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if cfg.LockName == "" {
		cfg.LockName = DefaultLockName
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
		cfg.Path,
		int(cfg.BusyTimeout.Milliseconds()),
	)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS session_lock (
  lock_name     TEXT PRIMARY KEY,
  holder        TEXT NOT NULL,
  start_time    TEXT NOT NULL,
  total         INTEGER NOT NULL,
  status        TEXT NOT NULL,
  session_id    TEXT NOT NULL,
  started_at_ns INTEGER NOT NULL
);
`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create session_lock table: %w", err)
	}

	return &SQLiteStore{db: db, name: cfg.LockName}, nil
}

// Create inserts the row unless one exists.
func (s *SQLiteStore) Create(ctx context.Context, rec Record) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO session_lock (lock_name, holder, start_time, total, status, session_id, started_at_ns)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(lock_name) DO NOTHING;
`, s.name, rec.Holder, rec.StartTime, rec.Total, rec.Status, rec.SessionID, rec.StartedAt.UnixNano())
	if err != nil {
		return false, fmt.Errorf("insert lock row: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Load reads the row.
func (s *SQLiteStore) Load(ctx context.Context) (*Record, error) {
	var (
		rec       Record
		startedNs int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT holder, start_time, total, status, session_id, started_at_ns
FROM session_lock WHERE lock_name = ?;
`, s.name).Scan(&rec.Holder, &rec.StartTime, &rec.Total, &rec.Status, &rec.SessionID, &startedNs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select lock row: %w", err)
	}
	rec.StartedAt = time.Unix(0, startedNs)

	if err := rec.validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes the row.
func (s *SQLiteStore) Delete(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_lock WHERE lock_name = ?;`, s.name); err != nil {
		return fmt.Errorf("delete lock row: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

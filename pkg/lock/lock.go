// Package lock serializes check sessions across processes with a single
// persisted marker record.
//
// Acquisition relies on an atomic create-if-absent primitive in the backing
// Store: exclusive file creation, Redis SETNX, or a primary-key insert in
// SQLite or PostgreSQL. There is no check-then-write window.
//
// Release performs no ownership check. ForceRelease exists so an operator can
// clear a marker left behind by a crashed session.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrLocked reports that another session holds the lock.
	ErrLocked = errors.New("session lock held by another holder")

	// ErrCorruptRecord indicates a stored marker that cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt lock record")
)

// Store persists the single lock record.
type Store interface {
	// Create stores rec only if no record exists. It reports whether rec was stored.
	Create(ctx context.Context, rec Record) (bool, error)

	// Load returns the stored record, or nil if there is none.
	// A malformed record yields an error wrapping ErrCorruptRecord.
	Load(ctx context.Context) (*Record, error)

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context) error
}

// Locker is the mutual-exclusion service over a Store.
type Locker struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a Locker.
func New(store Store, logger zerolog.Logger) *Locker {
	return &Locker{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// NewDefault creates a Locker with the global logger.
func NewDefault(store Store) *Locker {
	return New(store, log.With().Str("component", "lock").Logger())
}

// Status reports whether a session is running and by whom. An unreadable or
// corrupt marker counts as unlocked so a bad record can never block status
// rendering.
func (l *Locker) Status(ctx context.Context) (bool, *Record) {
	rec, err := l.store.Load(ctx)
	if err != nil {
		l.logger.Warn().Err(err).Msg("Lock marker unreadable, treating as unlocked")
		return false, nil
	}
	if rec == nil {
		return false, nil
	}
	return true, rec
}

// TryAcquire attempts to take the lock for holder. It returns false, nil
// when another session already holds it.
func (l *Locker) TryAcquire(ctx context.Context, holder string, total int) (bool, error) {
	return l.Acquire(ctx, NewRecord(holder, total, l.now()))
}

// Acquire attempts to store rec as the lock marker.
func (l *Locker) Acquire(ctx context.Context, rec Record) (bool, error) {
	if rec.Holder == "" {
		return false, fmt.Errorf("holder is required")
	}
	if rec.Status == "" {
		rec.Status = StatusRunning
	}

	ok, err := l.store.Create(ctx, rec)
	if err != nil {
		acquireTotal.WithLabelValues("error").Inc()
		l.logger.Error().Err(err).Str("holder", rec.Holder).Msg("Lock acquire failed")
		return false, fmt.Errorf("create lock record: %w", err)
	}
	if !ok {
		acquireTotal.WithLabelValues("held").Inc()
		l.logger.Info().Str("holder", rec.Holder).Msg("Lock already held")
		return false, nil
	}

	acquireTotal.WithLabelValues("acquired").Inc()
	l.logger.Info().
		Str("holder", rec.Holder).
		Str("session_id", rec.SessionID).
		Int("total", rec.Total).
		Msg("Lock acquired")
	return true, nil
}

// Release removes the marker. Releasing an unlocked state is a no-op.
func (l *Locker) Release(ctx context.Context) error {
	return l.release(ctx, "release")
}

// ForceRelease removes the marker regardless of who holds it.
func (l *Locker) ForceRelease(ctx context.Context) error {
	if locked, rec := l.Status(ctx); locked {
		l.logger.Warn().
			Str("holder", rec.Holder).
			Str("session_id", rec.SessionID).
			Str("start_time", rec.StartTime).
			Msg("Forcing lock release")
	}
	return l.release(ctx, "force")
}

func (l *Locker) release(ctx context.Context, kind string) error {
	if err := l.store.Delete(ctx); err != nil {
		l.logger.Error().Err(err).Str("kind", kind).Msg("Lock release failed")
		return fmt.Errorf("delete lock record: %w", err)
	}
	releasesTotal.WithLabelValues(kind).Inc()
	l.logger.Info().Str("kind", kind).Msg("Lock released")
	return nil
}

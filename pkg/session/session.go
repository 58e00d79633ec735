// Package session runs one end-to-end URL check under the session lock.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/urlcheck/pkg/checker"
	"github.com/Sternrassler/urlcheck/pkg/lock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrHolderRequired is returned when no holder name is given.
	ErrHolderRequired = errors.New("holder name is required")

	// ErrRunPanicked wraps a panic recovered while the check was running.
	ErrRunPanicked = errors.New("check run panicked")
)

// releaseTimeout bounds the release call made after the run.
const releaseTimeout = 10 * time.Second

// Lock is the part of lock.Locker a session needs.
type Lock interface {
	Acquire(ctx context.Context, rec lock.Record) (bool, error)
	Release(ctx context.Context) error
}

// Runner checks a URL list.
type Runner interface {
	Run(ctx context.Context, urls []string, progress checker.ProgressFunc) ([]checker.Result, error)
}

// Report summarizes a finished session.
type Report struct {
	SessionID string
	Holder    string
	StartedAt time.Time
	Duration  time.Duration

	Results []checker.Result

	OK       int
	Broken   int
	Switched int
}

// Manager runs sessions.
type Manager struct {
	lock   Lock
	runner Runner
	logger zerolog.Logger
}

// New creates a Manager.
func New(l Lock, r Runner, logger zerolog.Logger) *Manager {
	return &Manager{lock: l, runner: r, logger: logger}
}

// NewDefault creates a Manager with the global logger.
func NewDefault(l Lock, r Runner) *Manager {
	return New(l, r, log.With().Str("component", "session").Logger())
}

// Run acquires the lock for holder, checks urls, and releases the lock on
// every exit path, including a panic in the runner. It returns lock.ErrLocked
// when another session is running.
func (m *Manager) Run(ctx context.Context, holder string, urls []string, progress checker.ProgressFunc) (report *Report, err error) {
	if holder == "" {
		return nil, ErrHolderRequired
	}

	rec := lock.NewRecord(holder, len(urls), time.Now())
	acquired, err := m.lock.Acquire(ctx, rec)
	if err != nil {
		sessionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	if !acquired {
		sessionsTotal.WithLabelValues("locked").Inc()
		return nil, lock.ErrLocked
	}

	logger := m.logger.With().
		Str("session_id", rec.SessionID).
		Str("holder", holder).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Check run panicked")
			report, err = nil, fmt.Errorf("%w: %v", ErrRunPanicked, r)
		}

		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if releaseErr := m.lock.Release(releaseCtx); releaseErr != nil {
			logger.Error().Err(releaseErr).Msg("Failed to release session lock")
			if err == nil {
				err = fmt.Errorf("release session lock: %w", releaseErr)
			}
		}

		result := "ok"
		if err != nil {
			result = "failed"
		}
		sessionsTotal.WithLabelValues(result).Inc()
	}()

	logger.Info().Int("total", len(urls)).Msg("Session started")

	results, runErr := m.runner.Run(ctx, urls, progress)
	report = summarize(rec, results)

	if runErr != nil {
		logger.Error().Err(runErr).Int("total", len(urls)).Msg("Session aborted")
		return report, fmt.Errorf("run check: %w", runErr)
	}

	logger.Info().
		Int("total", len(results)).
		Int("ok", report.OK).
		Int("broken", report.Broken).
		Int("switched", report.Switched).
		Float64("minutes", report.Duration.Minutes()).
		Msg("Session complete")

	return report, nil
}

func summarize(rec lock.Record, results []checker.Result) *Report {
	report := &Report{
		SessionID: rec.SessionID,
		Holder:    rec.Holder,
		StartedAt: rec.StartedAt,
		Duration:  time.Since(rec.StartedAt),
		Results:   results,
	}
	for _, res := range results {
		if res.Broken() {
			report.Broken++
		} else {
			report.OK++
		}
		if res.Switched() {
			report.Switched++
		}
	}
	return report
}

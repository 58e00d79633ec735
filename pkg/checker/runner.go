package checker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/urlcheck/pkg/probe"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ErrInvalidConfig is returned by NewRunner for unusable settings.
var ErrInvalidConfig = errors.New("invalid checker config")

// Config holds batch runner configuration.
type Config struct {
	// Concurrency is the maximum number of requests in flight within a batch.
	// Recommendation: 5-10.
	Concurrency int

	// BatchSize is the number of input entries per batch.
	BatchSize int

	// BatchInterval is the pause between batches. No pause follows the last batch.
	BatchInterval time.Duration

	// Probe configures each request.
	Probe probe.Config
}

// DefaultConfig returns the recommended configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:   10,
		BatchSize:     500,
		BatchInterval: 2 * time.Second,
		Probe:         probe.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be > 0 (got %d)", ErrInvalidConfig, c.Concurrency)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be > 0 (got %d)", ErrInvalidConfig, c.BatchSize)
	}
	if c.BatchInterval < 0 {
		return fmt.Errorf("%w: batch interval must be >= 0 (got %s)", ErrInvalidConfig, c.BatchInterval)
	}
	return nil
}

// Progress is reported after each batch.
type Progress struct {
	// Done is the number of input entries covered by completed batches.
	Done  int
	Total int

	Batch   int
	Batches int
}

// ProgressFunc receives progress events. It is called from the goroutine running Run.
type ProgressFunc func(Progress)

// TransportFactory builds the round tripper for one batch.
type TransportFactory func(maxConns int) http.RoundTripper

// Option configures a Runner.
type Option func(*Runner)

// WithTransportFactory replaces the per-batch transport.
func WithTransportFactory(f TransportFactory) Option {
	return func(r *Runner) {
		r.newTransport = f
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// Runner checks a URL list in sequential batches with bounded concurrency inside each batch.
type Runner struct {
	config       Config
	newTransport TransportFactory
	logger       zerolog.Logger
}

// NewRunner creates a Runner.
func NewRunner(cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		config: cfg,
		newTransport: func(maxConns int) http.RoundTripper {
			return probe.NewTransport(maxConns)
		},
		logger: log.With().Str("component", "runner").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// IsCheckable reports whether trimmed input starts with an http or https scheme.
func IsCheckable(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Run checks every URL and returns one Result per input entry, in input order.
// Per-URL failures never stop the run. If ctx is cancelled, Run returns the
// results gathered so far together with ctx.Err(), including when the
// cancellation lands in the last batch.
func (r *Runner) Run(ctx context.Context, urls []string, progress ProgressFunc) ([]Result, error) {
	start := time.Now()
	total := len(urls)
	results := make([]Result, total)
	batches := (total + r.config.BatchSize - 1) / r.config.BatchSize

	r.logger.Info().
		Int("total", total).
		Int("batches", batches).
		Int("concurrency", r.config.Concurrency).
		Msg("Starting URL check")

	for batch, offset := 0, 0; offset < total; batch, offset = batch+1, offset+r.config.BatchSize {
		end := min(offset+r.config.BatchSize, total)

		r.runBatch(ctx, urls[offset:end], offset, results)

		// Rows in flight at cancellation hold aborted outcomes, not site failures.
		if err := ctx.Err(); err != nil {
			r.logger.Warn().Int("batch", batch+1).Int("total", total).Msg("Check interrupted during batch")
			return results, err
		}

		r.logger.Info().
			Int("batch", batch+1).
			Int("batches", batches).
			Int("done", end).
			Int("total", total).
			Msg("Batch complete")

		if progress != nil {
			progress(Progress{Done: end, Total: total, Batch: batch + 1, Batches: batches})
		}

		if end < total {
			if err := r.pause(ctx); err != nil {
				r.logger.Warn().Int("done", end).Int("total", total).Msg("Check interrupted between batches")
				return results, err
			}
		}
	}

	r.logger.Info().
		Int("total", total).
		Dur("duration", time.Since(start)).
		Msg("URL check complete")

	return results, nil
}

// runBatch dispatches every checkable entry of batch at once and writes each
// result to results[Index] as it completes. The batch gets its own transport
// and gate so stragglers cannot hold slots needed by the next batch.
func (r *Runner) runBatch(ctx context.Context, batch []string, offset int, results []Result) {
	start := time.Now()

	transport := r.newTransport(r.config.Concurrency)
	defer closeIdle(transport)

	prober := probe.New(r.config.Probe,
		probe.WithTransport(transport),
		probe.WithGate(semaphore.NewWeighted(int64(r.config.Concurrency))),
		probe.WithLogger(r.logger),
	)
	fetcher := NewFetcher(prober, r.logger)

	completed := make(chan Result, len(batch))
	var g errgroup.Group

	for i, raw := range batch {
		index := offset + i
		target := strings.TrimSpace(raw)
		if !IsCheckable(target) {
			results[index] = invalidResult(index, raw)
			invalidURLs.Inc()
			continue
		}

		g.Go(func() error {
			completed <- fetcher.FetchWithRetry(ctx, index, target)
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(completed)
	}()

	for res := range completed {
		results[res.Index] = res
	}

	batchesTotal.Inc()
	batchDuration.Observe(time.Since(start).Seconds())
}

// pause stalls for the batch interval. Nothing runs meanwhile.
func (r *Runner) pause(ctx context.Context) error {
	if r.config.BatchInterval <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(r.config.BatchInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func closeIdle(rt http.RoundTripper) {
	if c, ok := rt.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
}

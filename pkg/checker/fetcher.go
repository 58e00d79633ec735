package checker

import (
	"context"
	"strings"

	"github.com/Sternrassler/urlcheck/pkg/probe"
	"github.com/rs/zerolog"
)

// Prober performs one classified network attempt.
type Prober interface {
	Probe(ctx context.Context, rawURL string) probe.Outcome
}

// Fetcher wraps a Prober with the scheme-swap retry policy.
type Fetcher struct {
	prober Prober
	logger zerolog.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(p Prober, logger zerolog.Logger) *Fetcher {
	return &Fetcher{prober: p, logger: logger}
}

// SwapScheme returns rawURL with its http: prefix replaced by https: or the
// other way round. ok is false when rawURL has neither prefix.
func SwapScheme(rawURL string) (alternate string, ok bool) {
	switch {
	case strings.HasPrefix(rawURL, "http:"):
		return "https:" + strings.TrimPrefix(rawURL, "http:"), true
	case strings.HasPrefix(rawURL, "https:"):
		return "http:" + strings.TrimPrefix(rawURL, "https:"), true
	default:
		return "", false
	}
}

// FetchWithRetry probes rawURL and, if that attempt fails, probes the
// alternate-scheme URL once. At most two attempts are made. When both fail
// the first attempt's outcome is reported. No alternate attempt is made once
// ctx is done. The returned Result carries index unchanged.
func (f *Fetcher) FetchWithRetry(ctx context.Context, index int, rawURL string) Result {
	first := f.prober.Probe(ctx, rawURL)
	if first.OK() {
		return resultFromOutcome(index, rawURL, first, "")
	}

	// An aborted attempt says nothing about the site.
	if ctx.Err() != nil {
		return resultFromOutcome(index, rawURL, first, "")
	}

	alternate, ok := SwapScheme(rawURL)
	if !ok {
		return resultFromOutcome(index, rawURL, first, "")
	}

	second := f.prober.Probe(ctx, alternate)
	if second.OK() {
		schemeSwitches.WithLabelValues("recovered").Inc()
		f.logger.Debug().
			Int("index", index).
			Str("url", rawURL).
			Str("alternate", alternate).
			Int("status_code", second.StatusCode).
			Msg("Recovered with alternate scheme")
		return resultFromOutcome(index, rawURL, second, alternate)
	}

	if ctx.Err() != nil {
		return resultFromOutcome(index, rawURL, first, "")
	}

	schemeSwitches.WithLabelValues("failed").Inc()
	f.logger.Warn().
		Int("index", index).
		Str("url", rawURL).
		Str("code", first.Code()).
		Str("alternate_code", second.Code()).
		Msg("URL unreachable on both schemes")

	return resultFromOutcome(index, rawURL, first, "")
}

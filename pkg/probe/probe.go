// Package probe performs single liveness requests against a URL and
// classifies the outcome. It never retries; retry policy lives with the caller.
package probe

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Default request headers. Some sites reject requests that do not look like a browser.
const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultAccept    = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
)

// Config holds the probe configuration.
type Config struct {
	// Timeout bounds one attempt, including reading the body.
	Timeout time.Duration

	// UserAgent and Accept are sent on every request.
	UserAgent string
	Accept    string
}

// DefaultConfig returns the recommended probe configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:   20 * time.Second,
		UserAgent: DefaultUserAgent,
		Accept:    DefaultAccept,
	}
}

// Gate bounds how many probes may be in flight at once.
// *semaphore.Weighted from golang.org/x/sync satisfies it.
type Gate interface {
	Acquire(ctx context.Context, n int64) error
	Release(n int64)
}

// Option configures a Prober.
type Option func(*Prober)

// WithTransport sets the round tripper used for requests.
func WithTransport(rt http.RoundTripper) Option {
	return func(p *Prober) {
		p.client.Transport = rt
	}
}

// WithGate makes every probe hold a slot of g while its request is in flight.
func WithGate(g Gate) Option {
	return func(p *Prober) {
		p.gate = g
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Prober) {
		p.logger = logger
	}
}

// Prober issues GET requests and classifies their outcome.
type Prober struct {
	client *http.Client
	config Config
	gate   Gate
	logger zerolog.Logger
}

// New creates a Prober. Without WithTransport it uses NewTransport(0).
func New(cfg Config, opts ...Option) *Prober {
	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.Accept == "" {
		cfg.Accept = defaults.Accept
	}

	p := &Prober{
		client: &http.Client{Transport: NewTransport(0)},
		config: cfg,
		logger: log.With().Str("component", "probe").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewTransport returns a transport with certificate verification disabled.
// maxConns caps connections per host when positive.
func NewTransport(maxConns int) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		// Liveness only; certificate trust is not checked.
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxConnsPerHost:       maxConns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Probe performs one GET against rawURL. Redirects are followed and the
// final status is reported. The timeout starts once a gate slot is held.
func (p *Prober) Probe(ctx context.Context, rawURL string) Outcome {
	if p.gate != nil {
		if err := p.gate.Acquire(ctx, 1); err != nil {
			return p.observe(rawURL, time.Now(), Classify(err))
		}
		defer p.gate.Release(1)
	}

	inflightRequests.Inc()
	defer inflightRequests.Dec()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return p.observe(rawURL, start, Classify(err))
	}
	req.Header.Set("User-Agent", p.config.UserAgent)
	req.Header.Set("Accept", p.config.Accept)

	resp, err := p.client.Do(req)
	if err != nil {
		return p.observe(rawURL, start, Classify(err))
	}
	defer resp.Body.Close()

	// Read to the end so the exchange is really complete.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return p.observe(rawURL, start, Classify(err))
	}

	return p.observe(rawURL, start, Success(resp.StatusCode))
}

func (p *Prober) observe(rawURL string, start time.Time, out Outcome) Outcome {
	probesTotal.WithLabelValues(string(out.Status)).Inc()
	probeDuration.Observe(time.Since(start).Seconds())

	p.logger.Debug().
		Str("url", rawURL).
		Str("status", string(out.Status)).
		Str("code", out.Code()).
		Dur("duration", time.Since(start)).
		Msg("Probe finished")

	return out
}

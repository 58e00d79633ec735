// Package metrics exposes the Prometheus registry and HTTP handler for urlcheck.
// Metrics themselves are defined in the packages that record them (probe,
// checker, lock, session) with promauto.With(Registry).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every urlcheck metric lands in.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Probe Metrics (pkg/probe):
//   - urlcheck_probes_total{outcome} (Counter): Attempts by outcome (ok, timeout, connect_error, other_error)
//   - urlcheck_probe_duration_seconds (Histogram): Attempt duration including body read
//   - urlcheck_inflight_requests (Gauge): Requests currently holding a concurrency slot
//
// Checker Metrics (pkg/checker):
//   - urlcheck_scheme_switches_total{result} (Counter): Alternate-scheme retries (recovered, failed)
//   - urlcheck_invalid_urls_total (Counter): Entries skipped for lacking a scheme
//   - urlcheck_batches_total (Counter): Completed batches
//   - urlcheck_batch_duration_seconds (Histogram): Batch wall time
//
// Lock Metrics (pkg/lock):
//   - urlcheck_lock_acquire_total{result} (Counter): Acquire attempts (acquired, held, error)
//   - urlcheck_lock_releases_total{kind} (Counter): Releases (release, force)
//
// Session Metrics (pkg/session):
//   - urlcheck_sessions_total{result} (Counter): Sessions (ok, failed, locked, error)
//
// Example Prometheus Queries:
//
//   # Share of attempts that timed out
//   sum(rate(urlcheck_probes_total{outcome="timeout"}[5m])) / sum(rate(urlcheck_probes_total[5m]))
//
//   # Sessions refused because another one was running
//   increase(urlcheck_sessions_total{result="locked"}[1h])
//
//   # P95 attempt latency
//   histogram_quantile(0.95, rate(urlcheck_probe_duration_seconds_bucket[5m]))

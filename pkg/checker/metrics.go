package checker

import (
	"github.com/Sternrassler/urlcheck/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	schemeSwitches = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "urlcheck_scheme_switches_total",
		Help: "Alternate-scheme retries by result",
	}, []string{"result"}) // "recovered", "failed"

	invalidURLs = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "urlcheck_invalid_urls_total",
		Help: "Input entries rejected without a request because they lack an http(s) scheme",
	})

	batchesTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "urlcheck_batches_total",
		Help: "Batches completed",
	})

	batchDuration = promauto.With(metrics.Registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "urlcheck_batch_duration_seconds",
		Help:    "Time to complete one batch, excluding the pause after it",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	})
)

package probe

import (
	"github.com/Sternrassler/urlcheck/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	probesTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "urlcheck_probes_total",
		Help: "Total probe attempts by outcome",
	}, []string{"outcome"})

	probeDuration = promauto.With(metrics.Registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "urlcheck_probe_duration_seconds",
		Help:    "Probe duration in seconds, including body read",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20},
	})

	inflightRequests = promauto.With(metrics.Registry).NewGauge(prometheus.GaugeOpts{
		Name: "urlcheck_inflight_requests",
		Help: "Number of probe requests currently in flight",
	})
)

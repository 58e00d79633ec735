package lock

import (
	"github.com/Sternrassler/urlcheck/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	acquireTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "urlcheck_lock_acquire_total",
		Help: "Lock acquire attempts by result",
	}, []string{"result"}) // "acquired", "held", "error"

	releasesTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "urlcheck_lock_releases_total",
		Help: "Lock releases by kind",
	}, []string{"kind"}) // "release", "force"
)

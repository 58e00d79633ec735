package session

import (
	"github.com/Sternrassler/urlcheck/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sessionsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
	Name: "urlcheck_sessions_total",
	Help: "Check sessions by result",
}, []string{"result"}) // "ok", "failed", "locked", "error"

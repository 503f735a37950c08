package holders

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics for the holder cache.
type Metrics struct {
	lookups     *prometheus.CounterVec
	queries     prometheus.Counter
	queryErrors prometheus.Counter
}

// NewMetrics creates and registers the metrics for the holder cache.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holders_cache_lookups_total",
			Help: "Total holder cache lookups, labeled by hit or miss.",
		}, []string{"result"}),
		queries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holders_ranking_queries_total",
			Help: "Total queries sent to the holder ranking source.",
		}),
		queryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holders_ranking_query_errors_total",
			Help: "Total failed queries to the holder ranking source.",
		}),
	}
	reg.MustRegister(m.lookups, m.queries, m.queryErrors)
	return m
}

package funding

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	pathSpecial = "special"
	pathDrain   = "drain"
)

// Metrics holds all the Prometheus metrics for the funding engine.
type Metrics struct {
	fundDuration   *prometheus.HistogramVec
	fundsTotal     *prometheus.CounterVec
	holdersDrained prometheus.Counter
}

// NewMetrics creates and registers the metrics for the funding engine.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fundDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "funding_fund_duration_seconds",
			Help:    "Time taken to satisfy a single funding request.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
		fundsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "funding_requests_total",
			Help: "Total funding requests, labeled by path and result.",
		}, []string{"path", "result"}),
		holdersDrained: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "funding_holder_transfers_total",
			Help: "Total transfers made out of ranked holders.",
		}),
	}
	reg.MustRegister(m.fundDuration, m.fundsTotal, m.holdersDrained)
	return m
}

func (m *Metrics) observe(path string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.fundDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	m.fundsTotal.WithLabelValues(path, result).Inc()
}

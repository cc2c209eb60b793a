package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the discovery loop and ingestion.
type Metrics struct {
	// Discovery cycles by outcome: idle, discovered, deleted, failed
	DiscoveryCycles *prometheus.CounterVec

	// Search attempts by result: ok, transient, terminal
	SearchAttempts *prometheus.CounterVec

	SearchLatency prometheus.Histogram

	// Ingested index records by result: created, merged, failed
	IngestedRecords *prometheus.CounterVec
}

// New registers every metric with reg. Passing nil registers with the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		DiscoveryCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "companydir_discovery_cycles_total",
			Help: "Total discovery cycles by outcome",
		}, []string{"outcome"}),

		SearchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "companydir_search_attempts_total",
			Help: "Total search API attempts by result",
		}, []string{"result"}),

		SearchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "companydir_search_duration_seconds",
			Help:    "Duration of a single search API call",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		IngestedRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "companydir_ingested_records_total",
			Help: "Total EDGAR index records ingested by result",
		}, []string{"result"}),
	}
}

// IncrementCycle records the outcome of one discovery cycle.
func (m *Metrics) IncrementCycle(outcome string) {
	if m != nil {
		m.DiscoveryCycles.WithLabelValues(outcome).Inc()
	}
}

// ObserveSearch records one search attempt and its duration.
func (m *Metrics) ObserveSearch(result string, d time.Duration) {
	if m != nil {
		m.SearchAttempts.WithLabelValues(result).Inc()
		m.SearchLatency.Observe(d.Seconds())
	}
}

// IncrementIngested records one ingested index record.
func (m *Metrics) IncrementIngested(result string) {
	if m != nil {
		m.IngestedRecords.WithLabelValues(result).Inc()
	}
}

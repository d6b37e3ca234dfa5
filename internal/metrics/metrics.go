package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded for article list requests.
const (
	OutcomeOK         = "ok"
	OutcomeDenied     = "denied"
	OutcomeStoreError = "store_error"
)

// Metrics groups the collectors exported by the service.
type Metrics struct {
	listRequests *prometheus.CounterVec
	listQuery    prometheus.Histogram
	ingestEvents *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		listRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "articles_list_requests_total",
			Help: "Article list requests by outcome.",
		}, []string{"outcome"}),
		listQuery: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "articles_list_query_seconds",
			Help:    "Duration of the article list query.",
			Buckets: prometheus.DefBuckets,
		}),
		ingestEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_events_total",
			Help: "Content events handled by the worker.",
		}, []string{"op", "result"}),
	}
	reg.MustRegister(m.listRequests, m.listQuery, m.ingestEvents)
	return m
}

// ListRequest counts one article list request. Safe on a nil receiver.
func (m *Metrics) ListRequest(outcome string) {
	if m == nil {
		return
	}
	m.listRequests.WithLabelValues(outcome).Inc()
}

// ObserveListQuery records how long the listing query took.
func (m *Metrics) ObserveListQuery(d time.Duration) {
	if m == nil {
		return
	}
	m.listQuery.Observe(d.Seconds())
}

// IngestEvent counts one consumed content event.
func (m *Metrics) IngestEvent(op, result string) {
	if m == nil {
		return
	}
	m.ingestEvents.WithLabelValues(op, result).Inc()
}

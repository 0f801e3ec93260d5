package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcomes of relaying one outbox row.
const (
	RelayPublished    = "published"
	RelayRetried      = "retried"
	RelayDeadLettered = "dead_lettered"
)

// OutboxMetrics counts relay outcomes per event type.
type OutboxMetrics struct {
	events *prometheus.CounterVec
	lag    prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_outbox_events_total",
			Help: "Outbox rows handled by the relay, by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		lag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_outbox_publish_lag_seconds",
			Help:    "Time between an outbox row being written and its publish.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 15, 60, 300},
		}),
	}
	reg.MustRegister(m.events, m.lag)
	return m
}

func (m *OutboxMetrics) Record(eventType, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(eventType, outcome).Inc()
}

func (m *OutboxMetrics) ObserveLag(seconds float64) {
	if m == nil || m.lag == nil || seconds < 0 {
		return
	}
	m.lag.Observe(seconds)
}

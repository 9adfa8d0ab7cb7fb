package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the broker and outbox metrics shared by both services.
type Metrics struct {
	FactsPublished *prometheus.CounterVec
	FactsConsumed  *prometheus.CounterVec
	ConsumeLatency *prometheus.HistogramVec
	OutboxRelayed  *prometheus.CounterVec
	OutboxBacklog  prometheus.Gauge
}

// New creates and registers the metrics on reg. Pass prometheus.DefaultRegisterer
// in main and a fresh registry in tests.
func New(reg prometheus.Registerer, service string) *Metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"service": service}
	return &Metrics{
		FactsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "personsync_facts_published_total",
			Help:        "Person facts handed to the broker, by topic and result",
			ConstLabels: labels,
		}, []string{"topic", "result"}),
		FactsConsumed: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "personsync_facts_consumed_total",
			Help:        "Person facts received from the broker, by topic and result",
			ConstLabels: labels,
		}, []string{"topic", "result"}),
		ConsumeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "personsync_fact_consume_duration_seconds",
			Help:        "Time spent handling one delivered fact",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"topic"}),
		OutboxRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "personsync_outbox_relayed_total",
			Help:        "Outbox entries processed by the relay, by result",
			ConstLabels: labels,
		}, []string{"result"}),
		OutboxBacklog: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "personsync_outbox_backlog",
			Help:        "Unprocessed outbox entries seen by the last relay poll",
			ConstLabels: labels,
		}),
	}
}

func (m *Metrics) IncPublished(topic, result string) {
	if m == nil {
		return
	}
	m.FactsPublished.WithLabelValues(topic, result).Inc()
}

func (m *Metrics) IncConsumed(topic, result string) {
	if m == nil {
		return
	}
	m.FactsConsumed.WithLabelValues(topic, result).Inc()
}

func (m *Metrics) ObserveConsume(topic string, seconds float64) {
	if m == nil {
		return
	}
	m.ConsumeLatency.WithLabelValues(topic).Observe(seconds)
}

func (m *Metrics) IncRelayed(result string) {
	if m == nil {
		return
	}
	m.OutboxRelayed.WithLabelValues(result).Inc()
}

func (m *Metrics) SetBacklog(n int) {
	if m == nil {
		return
	}
	m.OutboxBacklog.Set(float64(n))
}

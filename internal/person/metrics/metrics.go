package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"personsync/pkg/personfact"
)

// Metrics holds Person service metrics.
type Metrics struct {
	PersonCommands    *prometheus.CounterVec
	ResyncRepublished prometheus.Counter
	RequestLatency    *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PersonCommands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "person_commands_total",
			Help: "Person commands applied to the system of record, by command, source and outcome",
		}, []string{"command", "source", "outcome"}),
		ResyncRepublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "person_resync_republished_total",
			Help: "Updated facts enqueued by resync runs",
		}),
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "person_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) ObserveCommand(command string, source personfact.Source, outcome string) {
	if m == nil {
		return
	}
	m.PersonCommands.WithLabelValues(command, string(source), outcome).Inc()
}

func (m *Metrics) AddResync(n int) {
	if m == nil {
		return
	}
	m.ResyncRepublished.Add(float64(n))
}

func (m *Metrics) ObserveRequest(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.RequestLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(seconds)
}

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"personsync/pkg/personfact"
)

// Metrics holds Address service metrics.
type Metrics struct {
	PersonCommands  *prometheus.CounterVec
	AddressCommands *prometheus.CounterVec
	ReferenceChecks *prometheus.CounterVec
	RequestLatency  *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PersonCommands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "address_person_commands_total",
			Help: "Person commands applied to the replica, by command, source and outcome",
		}, []string{"command", "source", "outcome"}),
		AddressCommands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "address_commands_total",
			Help: "Address mutations, by operation and result",
		}, []string{"operation", "result"}),
		ReferenceChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "address_person_reference_checks_total",
			Help: "Replica lookups made while validating addresses, by result",
		}, []string{"result"}),
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "address_http_request_duration_seconds",
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

func (m *Metrics) IncAddressCommand(operation, result string) {
	if m == nil {
		return
	}
	m.AddressCommands.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) IncReferenceCheck(result string) {
	if m == nil {
		return
	}
	m.ReferenceChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.RequestLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(seconds)
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"personsync/pkg/personfact"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveCommand("create_person", personfact.SourceReplication, "applied")
	m.ObserveCommand("create_person", personfact.SourceReplication, "applied")
	m.IncReferenceCheck("missing")
	m.IncAddressCommand("create", "not_found")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PersonCommands.WithLabelValues("create_person", "replication", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReferenceChecks.WithLabelValues("missing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AddressCommands.WithLabelValues("create", "not_found")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveCommand("create_person", personfact.SourceAPI, "applied")
	m.IncReferenceCheck("found")
	m.IncAddressCommand("create", "ok")
	m.ObserveRequest("GET", "/addresses", 200, 0.01)
}

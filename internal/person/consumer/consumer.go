// Package consumer subscribes the Person service to the person facts the
// Address service publishes for its own person mutations.
package consumer

import (
	"log/slog"

	"personsync/internal/platform/broker"
	"personsync/internal/platform/metrics"
	"personsync/internal/replication"
	"personsync/pkg/personfact"
)

// New returns a router applying Address-side person facts to the system of
// record. Echoes of facts this service published are skipped.
func New(cmds replication.PersonCommands, topics personfact.Topics, origin string, m *metrics.Metrics, logger *slog.Logger) *broker.Router {
	handlers := replication.NewCommandHandlers(cmds,
		replication.IgnoreOrigin(origin),
		replication.WithHandlerMetrics(m),
		replication.WithHandlerLogger(logger.With("component", "address-person-consumer")),
	)
	return replication.NewRouter(topics, handlers, logger)
}

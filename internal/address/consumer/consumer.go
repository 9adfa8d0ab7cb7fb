// Package consumer subscribes the Address service to the person facts
// published by the Person service and applies them to the replica.
package consumer

import (
	"log/slog"

	"personsync/internal/platform/broker"
	"personsync/internal/platform/metrics"
	"personsync/internal/replication"
	"personsync/pkg/personfact"
)

// New returns a router with the Created, Updated and Deleted handlers bound to
// the person topics. Facts carrying origin are echoes of this service's own
// publications and are skipped.
func New(cmds replication.PersonCommands, topics personfact.Topics, origin string, m *metrics.Metrics, logger *slog.Logger) *broker.Router {
	handlers := replication.NewCommandHandlers(cmds,
		replication.IgnoreOrigin(origin),
		replication.WithHandlerMetrics(m),
		replication.WithHandlerLogger(logger.With("component", "person-consumer")),
	)
	return replication.NewRouter(topics, handlers, logger)
}

package replication

import (
	"log/slog"

	"personsync/internal/platform/broker"
	"personsync/pkg/personfact"
)

// Handlers are the three per-kind consumers of one service.
type Handlers struct {
	Created broker.Handler
	Updated broker.Handler
	Deleted broker.Handler
}

// NewRouter registers each handler on the topic carrying its kind.
func NewRouter(topics personfact.Topics, h Handlers, logger *slog.Logger) *broker.Router {
	r := broker.NewRouter(logger, nil)
	r.Register(topics.Created, h.Created)
	r.Register(topics.Updated, h.Updated)
	r.Register(topics.Deleted, h.Deleted)
	return r
}

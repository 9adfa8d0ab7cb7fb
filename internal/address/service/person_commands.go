package service

import (
	"context"
	"errors"

	"personsync/internal/address/models"
	"personsync/internal/address/store/replica"
	"personsync/internal/replication"
	id "personsync/pkg/domain"
	dErrors "personsync/pkg/domain-errors"
	"personsync/pkg/platform/sentinel"
	txcontext "personsync/pkg/platform/tx"
)

// PersonCommandHandler applies person commands to the replica. The consumers
// drive it with replicated commands; the Address API drives it with local
// ones, which are published on this service's own topics.
type PersonCommandHandler struct {
	*replication.Commands
	replica *replica.Store
}

func NewPersonCommandHandler(store *replica.Store, runner txcontext.Runner, opts ...replication.CommandsOption) *PersonCommandHandler {
	return &PersonCommandHandler{
		Commands: replication.NewCommands(store, runner, opts...),
		replica:  store,
	}
}

// GetPerson reads one person from the replica.
func (h *PersonCommandHandler) GetPerson(ctx context.Context, personID id.PersonID) (*models.PersonReplica, error) {
	p, err := h.replica.Get(ctx, personID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "person not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read person replica")
	}
	return p, nil
}

// ListPersons lists every replicated person.
func (h *PersonCommandHandler) ListPersons(ctx context.Context) ([]*models.PersonReplica, error) {
	out, err := h.replica.All(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list person replica")
	}
	return out, nil
}

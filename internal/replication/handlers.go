package replication

import (
	"context"

	"personsync/pkg/personfact"
)

// PersonCommands is the command surface the consumers drive.
type PersonCommands interface {
	CreatePerson(ctx context.Context, cmd CreatePerson) (Result, error)
	UpdatePerson(ctx context.Context, cmd UpdatePerson) (Result, error)
	DeletePerson(ctx context.Context, cmd DeletePerson) (Result, error)
}

// NewCommandHandlers maps each fact kind to the matching command. Every
// command is marked as replicated, so applying it never publishes.
func NewCommandHandlers(cmds PersonCommands, opts ...HandlerOption) Handlers {
	return Handlers{
		Created: NewFactHandler(personfact.KindCreated, func(ctx context.Context, f personfact.Fact) (personfact.Outcome, error) {
			res, err := cmds.CreatePerson(ctx, CreatePerson{
				ID:         f.ID,
				Attributes: f.Attributes,
				OccurredAt: f.OccurredAt,
				Source:     personfact.SourceReplication,
			})
			return res.Outcome, err
		}, opts...),
		Updated: NewFactHandler(personfact.KindUpdated, func(ctx context.Context, f personfact.Fact) (personfact.Outcome, error) {
			res, err := cmds.UpdatePerson(ctx, UpdatePerson{
				ID:         f.ID,
				Attributes: f.Attributes,
				OccurredAt: f.OccurredAt,
				Source:     personfact.SourceReplication,
			})
			return res.Outcome, err
		}, opts...),
		Deleted: NewFactHandler(personfact.KindDeleted, func(ctx context.Context, f personfact.Fact) (personfact.Outcome, error) {
			res, err := cmds.DeletePerson(ctx, DeletePerson{
				ID:         f.ID,
				OccurredAt: f.OccurredAt,
				Source:     personfact.SourceReplication,
			})
			return res.Outcome, err
		}, opts...),
	}
}

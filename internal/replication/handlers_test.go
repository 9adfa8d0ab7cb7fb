package replication_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"personsync/internal/platform/broker"
	"personsync/internal/replication"
	"personsync/internal/replication/mocks"
	id "personsync/pkg/domain"
	"personsync/pkg/personfact"
)

//go:generate mockgen -source=handlers.go -destination=mocks/commands_mock.go -package=mocks PersonCommands

func encoded(t *testing.T, fact personfact.Fact) *broker.Message {
	t.Helper()
	data, err := personfact.Encode(fact)
	require.NoError(t, err)
	return &broker.Message{Topic: "create-person", Key: []byte(fact.ID.String()), Value: data}
}

func TestNewCommandHandlers(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	attrs := personfact.Attributes{FirstName: "Anthony", LastName: "Piccirilli", Title: "Mr."}

	t.Run("each kind becomes a replicated command", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		cmds := mocks.NewMockPersonCommands(ctrl)
		h := replication.NewCommandHandlers(cmds, replication.WithHandlerLogger(logger))
		personID := id.NewPersonID()

		cmds.EXPECT().CreatePerson(gomock.Any(), replication.CreatePerson{
			ID: personID, Attributes: attrs, OccurredAt: at, Source: personfact.SourceReplication,
		}).Return(replication.Result{Outcome: personfact.Applied}, nil)
		cmds.EXPECT().UpdatePerson(gomock.Any(), replication.UpdatePerson{
			ID: personID, Attributes: attrs, OccurredAt: at, Source: personfact.SourceReplication,
		}).Return(replication.Result{Outcome: personfact.AlreadyApplied}, nil)
		cmds.EXPECT().DeletePerson(gomock.Any(), replication.DeletePerson{
			ID: personID, OccurredAt: at, Source: personfact.SourceReplication,
		}).Return(replication.Result{Outcome: personfact.Applied}, nil)

		require.NoError(t, h.Created.Handle(ctx, encoded(t, personfact.Created(personID, attrs, at))))
		require.NoError(t, h.Updated.Handle(ctx, encoded(t, personfact.Updated(personID, attrs, at))))
		require.NoError(t, h.Deleted.Handle(ctx, encoded(t, personfact.Deleted(personID, at))))
	})

	t.Run("transient command failures are returned for redelivery", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		cmds := mocks.NewMockPersonCommands(ctrl)
		h := replication.NewCommandHandlers(cmds, replication.WithHandlerLogger(logger))
		boom := errors.New("connection reset")

		cmds.EXPECT().UpdatePerson(gomock.Any(), gomock.Any()).Return(replication.Result{}, boom)

		err := h.Updated.Handle(ctx, encoded(t, personfact.Updated(id.NewPersonID(), attrs, at)))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("echoed facts never reach the commands", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		cmds := mocks.NewMockPersonCommands(ctrl)
		h := replication.NewCommandHandlers(cmds, replication.IgnoreOrigin("person"), replication.WithHandlerLogger(logger))

		msg := encoded(t, personfact.Created(id.NewPersonID(), attrs, at))
		msg.Headers = map[string]string{personfact.HeaderOrigin: "person"}
		assert.NoError(t, h.Created.Handle(ctx, msg))
	})
}

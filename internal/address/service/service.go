// Package service implements the Address service commands and queries, and
// the person command handler that keeps the local replica current.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"personsync/internal/address/metrics"
	"personsync/internal/address/models"
	id "personsync/pkg/domain"
	dErrors "personsync/pkg/domain-errors"
	"personsync/pkg/platform/sentinel"
	txcontext "personsync/pkg/platform/tx"
	"personsync/pkg/requestcontext"
)

var tracer = otel.Tracer("personsync/internal/address/service")

// Store persists addresses. It returns sentinel.ErrNotFound for unknown ids.
type Store interface {
	Create(ctx context.Context, a *models.Address) error
	Update(ctx context.Context, a *models.Address) error
	Delete(ctx context.Context, addressID id.AddressID) error
	FindByID(ctx context.Context, addressID id.AddressID) (*models.Address, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Address, error)
}

// Service runs address commands behind the referential validator.
type Service struct {
	store     Store
	validator *Validator
	tx        txcontext.Runner
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(store Store, replica ReplicaReader, runner txcontext.Runner, opts ...Option) *Service {
	s := &Service{store: store, tx: runner, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.validator = NewValidator(replica, store, s.metrics)
	return s
}

func (s *Service) Create(ctx context.Context, req models.CreateAddressRequest) (*models.Address, error) {
	ctx, span := tracer.Start(ctx, "address.create")
	defer span.End()

	candidate, err := s.validator.ValidateCreate(ctx, req)
	if err != nil {
		return nil, s.fail("create", err)
	}
	now := requestcontext.Now(ctx).UTC()
	candidate.ID = id.NewAddressID()
	candidate.CreatedAt = now
	candidate.UpdatedAt = now
	span.SetAttributes(attribute.String("address.id", candidate.ID.String()))

	if err := s.store.Create(ctx, &candidate); err != nil {
		return nil, s.fail("create", dErrors.Wrap(err, dErrors.CodeInternal, "save address"))
	}
	s.metrics.IncAddressCommand("create", "ok")
	s.logger.InfoContext(ctx, "address created",
		"address_id", candidate.ID.String(),
		"person_id", candidate.PersonID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return &candidate, nil
}

func (s *Service) Update(ctx context.Context, addressID id.AddressID, req models.UpdateAddressRequest) (*models.Address, error) {
	ctx, span := tracer.Start(ctx, "address.update")
	defer span.End()
	span.SetAttributes(attribute.String("address.id", addressID.String()))

	var updated models.Address
	ctx = txcontext.WithShardKey(ctx, addressID.String())
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		candidate, err := s.validator.ValidateUpdate(ctx, addressID, req)
		if err != nil {
			return err
		}
		candidate.UpdatedAt = requestcontext.Now(ctx).UTC()
		if err := s.store.Update(ctx, &candidate); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "address not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "save address")
		}
		updated = candidate
		return nil
	})
	if err != nil {
		return nil, s.fail("update", err)
	}
	s.metrics.IncAddressCommand("update", "ok")
	s.logger.InfoContext(ctx, "address updated",
		"address_id", addressID.String(),
		"person_id", updated.PersonID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return &updated, nil
}

func (s *Service) Delete(ctx context.Context, addressID id.AddressID) error {
	ctx, span := tracer.Start(ctx, "address.delete")
	defer span.End()
	span.SetAttributes(attribute.String("address.id", addressID.String()))

	err := s.store.Delete(ctx, addressID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return s.fail("delete", dErrors.New(dErrors.CodeNotFound, "address not found"))
	}
	if err != nil {
		return s.fail("delete", dErrors.Wrap(err, dErrors.CodeInternal, "delete address"))
	}
	s.metrics.IncAddressCommand("delete", "ok")
	s.logger.InfoContext(ctx, "address deleted",
		"address_id", addressID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

func (s *Service) Get(ctx context.Context, addressID id.AddressID) (*models.Address, error) {
	a, err := s.store.FindByID(ctx, addressID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "address not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load address")
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, filter models.Filter) ([]*models.Address, error) {
	out, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list addresses")
	}
	return out, nil
}

// ListByPerson lists the addresses of one person.
func (s *Service) ListByPerson(ctx context.Context, personID id.PersonID) ([]*models.Address, error) {
	return s.List(ctx, models.Filter{PersonID: personID})
}

func (s *Service) fail(operation string, err error) error {
	s.metrics.IncAddressCommand(operation, string(dErrors.CodeOf(err)))
	return err
}

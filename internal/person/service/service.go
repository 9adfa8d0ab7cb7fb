// Package service is the Person service's command handler and queries.
package service

import (
	"context"
	"errors"
	"log/slog"

	"personsync/internal/person/metrics"
	"personsync/internal/person/models"
	"personsync/internal/person/store"
	"personsync/internal/replication"
	id "personsync/pkg/domain"
	dErrors "personsync/pkg/domain-errors"
	"personsync/pkg/platform/sentinel"
	txcontext "personsync/pkg/platform/tx"
)

// Service applies person commands to the system of record. API commands
// publish on the person topics; commands replicated from the Address service
// apply without publishing.
type Service struct {
	*replication.Commands
	store   *store.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	cmdOpts []replication.CommandsOption
}

// Option configures a Service.
type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithPublisher enables publication of API mutations.
func WithPublisher(p *replication.Publisher) Option {
	return func(s *Service) { s.cmdOpts = append(s.cmdOpts, replication.WithPublisher(p)) }
}

// WithApplyAttempts bounds optimistic-concurrency retries per command.
func WithApplyAttempts(n int) Option {
	return func(s *Service) { s.cmdOpts = append(s.cmdOpts, replication.WithApplyAttempts(n)) }
}

func New(st *store.Store, runner txcontext.Runner, opts ...Option) *Service {
	s := &Service{store: st, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	cmdOpts := append([]replication.CommandsOption{
		replication.WithCommandsLogger(s.logger),
		replication.WithObserver(s.metrics),
	}, s.cmdOpts...)
	s.Commands = replication.NewCommands(st, runner, cmdOpts...)
	return s
}

func (s *Service) GetPerson(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	p, err := s.store.Get(ctx, personID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "person not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load person")
	}
	return p, nil
}

func (s *Service) ListPersons(ctx context.Context, filter models.Filter) ([]*models.Person, error) {
	out, err := s.store.Find(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list persons")
	}
	return out, nil
}

// Resync republishes an Updated fact for every live person so that a new or
// drifted replica converges. Facts go through the outbox; the returned
// response counts how many also reached the broker immediately.
func (s *Service) Resync(ctx context.Context) (models.ResyncResponse, error) {
	recs, err := s.store.Records(ctx)
	if err != nil {
		return models.ResyncResponse{}, dErrors.Wrap(err, dErrors.CodeInternal, "list persons")
	}

	var out models.ResyncResponse
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := s.Republish(ctx, rec)
		if err != nil {
			s.metrics.AddResync(out.Enqueued)
			return out, err
		}
		out.Enqueued++
		if res.Published {
			out.Published++
		}
	}
	s.metrics.AddResync(out.Enqueued)
	s.logger.InfoContext(ctx, "person resync enqueued",
		"enqueued", out.Enqueued,
		"published", out.Published,
	)
	return out, nil
}

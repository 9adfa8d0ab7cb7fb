package replication

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"personsync/internal/platform/outbox"
	"personsync/internal/replication/projection"
	id "personsync/pkg/domain"
	dErrors "personsync/pkg/domain-errors"
	"personsync/pkg/personfact"
	txcontext "personsync/pkg/platform/tx"
	"personsync/pkg/requestcontext"
)

// CreatePerson creates a person. API callers leave ID and OccurredAt zero;
// replicated commands carry both from the fact.
type CreatePerson struct {
	ID         id.PersonID
	Attributes personfact.Attributes
	OccurredAt time.Time
	Source     personfact.Source
}

// UpdatePerson replaces a person's attributes.
type UpdatePerson struct {
	ID         id.PersonID
	Attributes personfact.Attributes
	OccurredAt time.Time
	Source     personfact.Source
}

// DeletePerson removes a person.
type DeletePerson struct {
	ID         id.PersonID
	OccurredAt time.Time
	Source     personfact.Source
}

// Result reports what a command did.
type Result struct {
	Record  *projection.Record
	Outcome personfact.Outcome
	// Published is true when the resulting fact reached the broker.
	Published bool
	// Deferred is true when the fact was committed to the outbox but could not
	// be published right away; the relay will retry it.
	Deferred bool
}

// CommandObserver receives one call per handled command.
type CommandObserver interface {
	ObserveCommand(command string, source personfact.Source, outcome string)
}

// Commands is the person command handler shared by a service's API and its
// consumers. Only API-sourced commands publish facts; replicated commands
// never do, which keeps the two services from echoing each other.
type Commands struct {
	store       projection.Store
	tx          txcontext.Runner
	publisher   *Publisher
	observer    CommandObserver
	logger      *slog.Logger
	maxAttempts int
	now         func() time.Time
}

// CommandsOption configures Commands.
type CommandsOption func(*Commands)

// WithPublisher enables fact publication for API-sourced commands.
func WithPublisher(p *Publisher) CommandsOption {
	return func(c *Commands) { c.publisher = p }
}

func WithObserver(o CommandObserver) CommandsOption {
	return func(c *Commands) { c.observer = o }
}

func WithCommandsLogger(logger *slog.Logger) CommandsOption {
	return func(c *Commands) { c.logger = logger }
}

// WithApplyAttempts bounds optimistic-concurrency retries per command.
func WithApplyAttempts(n int) CommandsOption {
	return func(c *Commands) { c.maxAttempts = n }
}

// WithClock overrides the request time used to stamp API facts.
func WithClock(now func() time.Time) CommandsOption {
	return func(c *Commands) { c.now = now }
}

func NewCommands(store projection.Store, runner txcontext.Runner, opts ...CommandsOption) *Commands {
	c := &Commands{
		store:       store,
		tx:          runner,
		logger:      slog.Default(),
		maxAttempts: projection.DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Commands) CreatePerson(ctx context.Context, cmd CreatePerson) (Result, error) {
	if err := personfact.ValidateAttributes(cmd.Attributes); err != nil {
		return Result{}, err
	}
	personID := cmd.ID
	if personID.IsNil() {
		if cmd.Source == personfact.SourceReplication {
			return Result{}, dErrors.NewField(dErrors.CodeValidation, "id", "is required")
		}
		personID = id.NewPersonID()
	}
	fact := personfact.Created(personID, cmd.Attributes, c.stamp(ctx, cmd.OccurredAt))
	return c.execute(ctx, "create_person", cmd.Source, fact)
}

func (c *Commands) UpdatePerson(ctx context.Context, cmd UpdatePerson) (Result, error) {
	if cmd.ID.IsNil() {
		return Result{}, dErrors.NewField(dErrors.CodeValidation, "id", "is required")
	}
	if err := personfact.ValidateAttributes(cmd.Attributes); err != nil {
		return Result{}, err
	}
	fact := personfact.Updated(cmd.ID, cmd.Attributes, c.stamp(ctx, cmd.OccurredAt))
	return c.execute(ctx, "update_person", cmd.Source, fact)
}

func (c *Commands) DeletePerson(ctx context.Context, cmd DeletePerson) (Result, error) {
	if cmd.ID.IsNil() {
		return Result{}, dErrors.NewField(dErrors.CodeValidation, "id", "is required")
	}
	fact := personfact.Deleted(cmd.ID, c.stamp(ctx, cmd.OccurredAt))
	return c.execute(ctx, "delete_person", cmd.Source, fact)
}

// Republish enqueues and flushes an Updated fact for an existing record
// without changing it. Resync uses it to let replicas converge.
func (c *Commands) Republish(ctx context.Context, rec projection.Record) (Result, error) {
	if c.publisher == nil {
		return Result{}, dErrors.New(dErrors.CodeUnavailable, "fact publication is disabled")
	}
	fact := personfact.Updated(rec.ID, rec.State.Attributes, rec.State.Version)
	entry, err := c.publisher.Enqueue(ctx, fact)
	if err != nil {
		return Result{}, err
	}
	res := Result{Record: &rec, Outcome: personfact.AlreadyApplied}
	c.flush(ctx, entry, &res)
	return res, nil
}

func (c *Commands) execute(ctx context.Context, command string, source personfact.Source, fact personfact.Fact) (Result, error) {
	ctx, span := tracer.Start(ctx, "replication.command")
	defer span.End()
	span.SetAttributes(
		attribute.String("command", command),
		attribute.String("source", string(source)),
		attribute.String("person.id", fact.ID.String()),
	)

	local := source != personfact.SourceReplication
	opts := []projection.ApplyOption{projection.WithMaxAttempts(c.maxAttempts)}
	if local {
		opts = append(opts, projection.Restamp())
		if fact.Kind != personfact.KindCreated {
			opts = append(opts, projection.RequireLive())
		}
	}

	var (
		applied projection.Result
		entry   *outbox.Entry
	)
	ctx = txcontext.WithShardKey(ctx, fact.ID.String())
	err := c.tx.RunInTx(ctx, func(ctx context.Context) error {
		res, err := projection.Apply(ctx, c.store, fact, opts...)
		if err != nil {
			return err
		}
		applied = res
		if local && c.publisher != nil && res.Outcome() == personfact.Applied {
			e, err := c.publisher.Enqueue(ctx, res.Fact)
			if err != nil {
				return err
			}
			entry = &e
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		c.observe(command, source, string(dErrors.CodeOf(err)))
		return Result{}, err
	}

	res := Result{Record: applied.Record, Outcome: applied.Outcome()}
	if entry != nil {
		c.flush(ctx, *entry, &res)
	}
	c.observe(command, source, res.Outcome.String())
	c.logger.Debug("person command handled",
		"command", command,
		"source", string(source),
		"person_id", fact.ID.String(),
		"outcome", res.Outcome.String(),
		"published", res.Published,
	)
	return res, nil
}

// flush publishes a committed entry. Failure does not undo the mutation.
func (c *Commands) flush(ctx context.Context, entry outbox.Entry, res *Result) {
	published, err := c.publisher.Flush(ctx, entry)
	res.Published = published
	if err != nil {
		res.Deferred = true
		c.logger.Warn("person fact not published, left for outbox relay",
			"person_id", entry.AggregateID,
			"topic", entry.Topic,
			"error", err,
		)
	}
}

func (c *Commands) stamp(ctx context.Context, at time.Time) time.Time {
	switch {
	case !at.IsZero():
		return at
	case c.now != nil:
		return c.now()
	default:
		return requestcontext.Now(ctx)
	}
}

func (c *Commands) observe(command string, source personfact.Source, outcome string) {
	if c.observer != nil {
		c.observer.ObserveCommand(command, source, outcome)
	}
}

// Package projection stores versioned person projections and applies facts to
// them with optimistic concurrency: load, decide, then a conditional write on
// the row revision. A lost race reloads and decides again.
package projection

import (
	"context"
	"errors"
	"time"

	id "personsync/pkg/domain"
	dErrors "personsync/pkg/domain-errors"
	"personsync/pkg/personfact"
	"personsync/pkg/platform/sentinel"
)

// DefaultMaxAttempts bounds retries after lost revision races.
const DefaultMaxAttempts = 5

// Record is one stored projection row. Revision starts at 1 and increases on
// every write.
type Record struct {
	ID        id.PersonID
	State     personfact.State
	Revision  int64
	UpdatedAt time.Time
}

// Live reports whether the record represents an existing person.
func (r *Record) Live() bool { return r != nil && !r.State.Deleted }

// Store persists records.
type Store interface {
	// Load returns sentinel.ErrNotFound when no row exists, tombstones included.
	Load(ctx context.Context, personID id.PersonID) (*Record, error)
	// Insert returns sentinel.ErrConflict when a row already exists.
	Insert(ctx context.Context, rec Record) error
	// Swap replaces the row only if its revision still equals expected,
	// otherwise it returns sentinel.ErrConflict.
	Swap(ctx context.Context, rec Record, expected int64) error
	// List returns live records.
	List(ctx context.Context) ([]Record, error)
}

// Result describes one apply.
type Result struct {
	// Fact is the fact as applied; API-sourced facts may be restamped.
	Fact     personfact.Fact
	Decision personfact.Decision
	// Record is the stored row after the apply, nil when none exists.
	Record *Record
}

// Outcome is shorthand for r.Decision.Outcome.
func (r Result) Outcome() personfact.Outcome { return r.Decision.Outcome }

type applyOptions struct {
	maxAttempts int
	requireLive bool
	restamp     bool
	now         func() time.Time
}

// ApplyOption tunes Apply.
type ApplyOption func(*applyOptions)

// WithMaxAttempts overrides DefaultMaxAttempts.
func WithMaxAttempts(n int) ApplyOption {
	return func(o *applyOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// RequireLive fails with CodeNotFound when the person does not exist. API
// updates and deletes use it; replicated facts are tolerant instead.
func RequireLive() ApplyOption {
	return func(o *applyOptions) { o.requireLive = true }
}

// Restamp moves the fact timestamp past the stored version when the local
// clock is behind it, so a local mutation is never superseded by the row it
// was made against.
func Restamp() ApplyOption {
	return func(o *applyOptions) { o.restamp = true }
}

// Apply folds fact into the stored projection.
func Apply(ctx context.Context, store Store, fact personfact.Fact, opts ...ApplyOption) (Result, error) {
	o := applyOptions{maxAttempts: DefaultMaxAttempts, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		current, err := store.Load(ctx, fact.ID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "load person projection")
		}
		if o.requireLive && !current.Live() {
			return Result{}, dErrors.New(dErrors.CodeNotFound, "person not found")
		}

		applied := fact
		var state *personfact.State
		if current != nil {
			state = &current.State
			if o.restamp && !applied.OccurredAt.After(current.State.Version) {
				applied.OccurredAt = current.State.Version.Add(time.Microsecond)
			}
		}

		d := personfact.Decide(state, applied)
		if !d.Write {
			return Result{Fact: applied, Decision: d, Record: current}, nil
		}

		next := Record{ID: fact.ID, State: d.Next, Revision: 1, UpdatedAt: o.now().UTC()}
		if current == nil {
			err = store.Insert(ctx, next)
		} else {
			next.Revision = current.Revision + 1
			err = store.Swap(ctx, next, current.Revision)
		}
		if errors.Is(err, sentinel.ErrConflict) {
			continue
		}
		if err != nil {
			return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "write person projection")
		}
		return Result{Fact: applied, Decision: d, Record: &next}, nil
	}
	return Result{}, dErrors.New(dErrors.CodeConflict, "person projection changed concurrently, retries exhausted")
}

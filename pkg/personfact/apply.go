package personfact

import "time"

// Outcome is the result of applying a fact to a projection. None of the values
// is an error: redelivered and out-of-order facts are expected.
type Outcome int

const (
	// Applied means the projection changed.
	Applied Outcome = iota + 1
	// AlreadyApplied means the projection already reflected the fact.
	AlreadyApplied
	// Superseded means a newer fact had already been applied and this one was ignored.
	Superseded
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case AlreadyApplied:
		return "already_applied"
	case Superseded:
		return "superseded"
	}
	return "unknown"
}

// State is the versioned projection of one person. Version is the OccurredAt
// of the last fact written; Deleted marks a tombstone.
type State struct {
	Attributes Attributes
	Version    time.Time
	Deleted    bool
}

// Live reports whether the projection represents an existing person.
func (s *State) Live() bool { return s != nil && !s.Deleted }

// Decision tells a store what to persist. Write is false when the stored row
// must be left untouched.
type Decision struct {
	Next    State
	Outcome Outcome
	Write   bool
}

// Decide computes the next projection for f given current, which is nil when
// no row exists. It is the single place where ordering rules live:
//
//   - a fact older than the stored version is Superseded;
//   - on equal timestamps a tombstone wins, otherwise the incoming fact does;
//   - a delete for an unknown person leaves a tombstone so that a late Created
//     cannot resurrect it.
func Decide(current *State, f Fact) Decision {
	next := State{Version: f.OccurredAt, Deleted: f.Kind == KindDeleted}
	if !next.Deleted {
		next.Attributes = f.Attributes
	}

	if current == nil {
		if next.Deleted {
			return Decision{Next: next, Outcome: AlreadyApplied, Write: true}
		}
		return Decision{Next: next, Outcome: Applied, Write: true}
	}

	same := current.Deleted == next.Deleted && (next.Deleted || current.Attributes == next.Attributes)

	switch {
	case f.OccurredAt.Before(current.Version):
		return Decision{Next: *current, Outcome: Superseded}
	case f.OccurredAt.Equal(current.Version):
		if same {
			return Decision{Next: *current, Outcome: AlreadyApplied}
		}
		if current.Deleted {
			return Decision{Next: *current, Outcome: Superseded}
		}
		return Decision{Next: next, Outcome: Applied, Write: true}
	}

	if same {
		// Nothing visible changes; advance the version so older facts stay ignored.
		return Decision{Next: next, Outcome: AlreadyApplied, Write: true}
	}
	return Decision{Next: next, Outcome: Applied, Write: true}
}

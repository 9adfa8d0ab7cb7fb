package personfact

import (
	"time"

	id "personsync/pkg/domain"
	dErrors "personsync/pkg/domain-errors"
)

// Attributes are the replicated person fields.
type Attributes struct {
	FirstName     string `json:"firstName"`
	MiddleInitial string `json:"middleInitial,omitempty"`
	LastName      string `json:"lastName"`
	Title         string `json:"title"`
}

// Fact is one immutable assertion about a person. Kind decides which fields
// are meaningful: a Deleted fact carries only ID and OccurredAt.
type Fact struct {
	ID         id.PersonID
	Kind       Kind
	OccurredAt time.Time
	Attributes Attributes
}

// Timestamps are kept at microsecond precision, the resolution Postgres stores,
// so a fact read back from any store compares equal to the one published.
func stamp(at time.Time) time.Time { return at.UTC().Truncate(time.Microsecond) }

// Created builds a Created fact.
func Created(personID id.PersonID, attrs Attributes, at time.Time) Fact {
	return Fact{ID: personID, Kind: KindCreated, OccurredAt: stamp(at), Attributes: attrs}
}

// Updated builds an Updated fact.
func Updated(personID id.PersonID, attrs Attributes, at time.Time) Fact {
	return Fact{ID: personID, Kind: KindUpdated, OccurredAt: stamp(at), Attributes: attrs}
}

// Deleted builds a Deleted fact.
func Deleted(personID id.PersonID, at time.Time) Fact {
	return Fact{ID: personID, Kind: KindDeleted, OccurredAt: stamp(at)}
}

// Validate checks the envelope: identity, kind and timestamp are always
// required, attributes unless the fact is a deletion. Field formats are checked
// separately by ValidateAttributes.
func (f Fact) Validate() error {
	if f.ID.IsNil() {
		return dErrors.NewField(dErrors.CodeValidation, "id", "is required")
	}
	if !f.Kind.Valid() {
		return dErrors.NewField(dErrors.CodeValidation, "kind", "is not a known fact kind")
	}
	if f.OccurredAt.IsZero() {
		return dErrors.NewField(dErrors.CodeValidation, "createdAt", "is required")
	}
	if f.Kind == KindDeleted {
		return nil
	}
	if f.Attributes.FirstName == "" {
		return dErrors.NewField(dErrors.CodeValidation, "firstName", "is required")
	}
	if f.Attributes.LastName == "" {
		return dErrors.NewField(dErrors.CodeValidation, "lastName", "is required")
	}
	if f.Attributes.Title == "" {
		return dErrors.NewField(dErrors.CodeValidation, "title", "is required")
	}
	return nil
}

package personfact

import (
	"encoding/json"
	"fmt"
	"time"

	id "personsync/pkg/domain"
	dErrors "personsync/pkg/domain-errors"
)

// wireFact is the JSON body on every kind-specific topic. The kind is implied
// by the topic; Deleted bodies carry only id and createdAt.
type wireFact struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"createdAt"`
	FirstName     string    `json:"firstName,omitempty"`
	MiddleInitial string    `json:"middleInitial,omitempty"`
	LastName      string    `json:"lastName,omitempty"`
	Title         string    `json:"title,omitempty"`
}

// Encode serializes a fact for its kind-specific topic.
func Encode(f Fact) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	w := wireFact{ID: f.ID.String(), CreatedAt: f.OccurredAt.UTC()}
	if f.Kind != KindDeleted {
		w.FirstName = f.Attributes.FirstName
		w.MiddleInitial = f.Attributes.MiddleInitial
		w.LastName = f.Attributes.LastName
		w.Title = f.Attributes.Title
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal %s fact: %w", f.Kind, err)
	}
	return b, nil
}

// Decode parses a body received on the topic for kind. Malformed bodies come
// back as CodeInvalidInput so consumers can tell them from transient failures.
func Decode(kind Kind, data []byte) (Fact, error) {
	if !kind.Valid() {
		return Fact{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown fact kind %q", kind)
	}
	var w wireFact
	if err := json.Unmarshal(data, &w); err != nil {
		return Fact{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed "+kind.String()+" fact")
	}
	personID, err := id.ParsePersonID(w.ID)
	if err != nil {
		return Fact{}, err
	}
	f := Fact{ID: personID, Kind: kind, OccurredAt: stamp(w.CreatedAt)}
	if kind != KindDeleted {
		f.Attributes = Attributes{
			FirstName:     w.FirstName,
			MiddleInitial: w.MiddleInitial,
			LastName:      w.LastName,
			Title:         w.Title,
		}
	}
	if err := f.Validate(); err != nil {
		return Fact{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "incomplete "+kind.String()+" fact")
	}
	return f, nil
}

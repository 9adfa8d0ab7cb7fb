package models

import (
	"strings"
	"time"

	id "personsync/pkg/domain"
	"personsync/pkg/personfact"
)

// Person is the system-of-record view of a person.
type Person struct {
	ID            id.PersonID `json:"id"`
	FirstName     string      `json:"firstName"`
	MiddleInitial string      `json:"middleInitial,omitempty"`
	LastName      string      `json:"lastName"`
	Title         string      `json:"title"`
	Version       time.Time   `json:"version"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Filter narrows person listings by exact attribute match. Empty fields match
// everything.
type Filter struct {
	FirstName     string
	MiddleInitial string
	LastName      string
	Title         string
}

func (f Filter) Matches(p *Person) bool {
	switch {
	case f.FirstName != "" && p.FirstName != f.FirstName:
		return false
	case f.MiddleInitial != "" && p.MiddleInitial != f.MiddleInitial:
		return false
	case f.LastName != "" && p.LastName != f.LastName:
		return false
	case f.Title != "" && p.Title != f.Title:
		return false
	}
	return true
}

// PersonRequest is the body of POST /persons and PUT /persons/{id}.
type PersonRequest struct {
	FirstName     string `json:"firstName"`
	MiddleInitial string `json:"middleInitial,omitempty"`
	LastName      string `json:"lastName"`
	Title         string `json:"title"`
}

// Attributes trims the request into fact attributes.
func (r PersonRequest) Attributes() personfact.Attributes {
	return personfact.Attributes{
		FirstName:     strings.TrimSpace(r.FirstName),
		MiddleInitial: strings.TrimSpace(r.MiddleInitial),
		LastName:      strings.TrimSpace(r.LastName),
		Title:         strings.TrimSpace(r.Title),
	}
}

// MutationResponse reports a person mutation.
type MutationResponse struct {
	Person    *Person `json:"person,omitempty"`
	Outcome   string  `json:"outcome"`
	Published bool    `json:"published"`
}

// ResyncResponse reports a resync run.
type ResyncResponse struct {
	Enqueued  int `json:"enqueued"`
	Published int `json:"published"`
}

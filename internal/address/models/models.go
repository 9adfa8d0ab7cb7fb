package models

import (
	"time"

	id "personsync/pkg/domain"
)

// Address belongs to a person known to the local replica.
type Address struct {
	ID        id.AddressID `json:"id"`
	PersonID  id.PersonID  `json:"personId"`
	Type      string       `json:"type"`
	Street    string       `json:"street"`
	City      string       `json:"city"`
	State     string       `json:"state"`
	ZipCode   string       `json:"zipCode"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Filter narrows address listings. Empty fields match everything.
type Filter struct {
	PersonID id.PersonID
	Type     string
	Street   string
	City     string
	State    string
	ZipCode  string
}

// Matches reports whether a satisfies every set field of f.
func (f Filter) Matches(a *Address) bool {
	switch {
	case !f.PersonID.IsNil() && a.PersonID != f.PersonID:
		return false
	case f.Type != "" && a.Type != f.Type:
		return false
	case f.Street != "" && a.Street != f.Street:
		return false
	case f.City != "" && a.City != f.City:
		return false
	case f.State != "" && a.State != f.State:
		return false
	case f.ZipCode != "" && a.ZipCode != f.ZipCode:
		return false
	}
	return true
}

// PersonReplica is the read model of a replicated person.
type PersonReplica struct {
	ID            id.PersonID `json:"id"`
	FirstName     string      `json:"firstName"`
	MiddleInitial string      `json:"middleInitial,omitempty"`
	LastName      string      `json:"lastName"`
	Title         string      `json:"title"`
	Version       time.Time   `json:"version"`
}

package models

import (
	"strings"

	"personsync/pkg/personfact"
)

// CreateAddressRequest is the body of POST /addresses.
type CreateAddressRequest struct {
	PersonID string `json:"personId"`
	Type     string `json:"type"`
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	ZipCode  string `json:"zipCode"`
}

// Normalize trims surrounding whitespace from every field.
func (r *CreateAddressRequest) Normalize() {
	r.PersonID = strings.TrimSpace(r.PersonID)
	r.Type = strings.TrimSpace(r.Type)
	r.Street = strings.TrimSpace(r.Street)
	r.City = strings.TrimSpace(r.City)
	r.State = strings.TrimSpace(r.State)
	r.ZipCode = strings.TrimSpace(r.ZipCode)
}

// UpdateAddressRequest is the body of PUT /addresses/{id}. Nil fields keep
// the stored value.
type UpdateAddressRequest struct {
	PersonID *string `json:"personId,omitempty"`
	Type     *string `json:"type,omitempty"`
	Street   *string `json:"street,omitempty"`
	City     *string `json:"city,omitempty"`
	State    *string `json:"state,omitempty"`
	ZipCode  *string `json:"zipCode,omitempty"`
}

func (r *UpdateAddressRequest) Normalize() {
	for _, p := range []*string{r.PersonID, r.Type, r.Street, r.City, r.State, r.ZipCode} {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
}

// PersonRequest is the body of the person mutation endpoints.
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

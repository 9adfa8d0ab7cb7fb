package handler

import (
	"time"

	"personsync/internal/replication"
	id "personsync/pkg/domain"
)

// PersonResponse is returned by the person mutation endpoints.
type PersonResponse struct {
	ID            id.PersonID `json:"id"`
	FirstName     string      `json:"firstName"`
	MiddleInitial string      `json:"middleInitial,omitempty"`
	LastName      string      `json:"lastName"`
	Title         string      `json:"title"`
	Version       time.Time   `json:"version"`
	Outcome       string      `json:"outcome"`
	Published     bool        `json:"published"`
}

func toPersonResponse(res replication.Result) PersonResponse {
	out := PersonResponse{Outcome: res.Outcome.String(), Published: res.Published}
	if rec := res.Record; rec != nil {
		a := rec.State.Attributes
		out.ID = rec.ID
		out.FirstName = a.FirstName
		out.MiddleInitial = a.MiddleInitial
		out.LastName = a.LastName
		out.Title = a.Title
		out.Version = rec.State.Version
	}
	return out
}

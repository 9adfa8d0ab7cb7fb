package service

import (
	"context"
	"errors"

	"personsync/internal/address/metrics"
	"personsync/internal/address/models"
	id "personsync/pkg/domain"
	dErrors "personsync/pkg/domain-errors"
	"personsync/pkg/platform/sentinel"
)

// ReplicaReader answers whether a person is known to the local replica.
type ReplicaReader interface {
	Exists(ctx context.Context, personID id.PersonID) (bool, error)
}

// AddressReader loads stored addresses.
type AddressReader interface {
	FindByID(ctx context.Context, addressID id.AddressID) (*models.Address, error)
}

// Validator gates address mutations on the local person replica. It never
// calls the Person service: an address for a person that has not replicated
// yet is rejected with CodeNotFound and succeeds once the fact is consumed.
type Validator struct {
	replica   ReplicaReader
	addresses AddressReader
	metrics   *metrics.Metrics
}

func NewValidator(replica ReplicaReader, addresses AddressReader, m *metrics.Metrics) *Validator {
	return &Validator{replica: replica, addresses: addresses, metrics: m}
}

// ValidateCreate builds a candidate from req and validates it.
func (v *Validator) ValidateCreate(ctx context.Context, req models.CreateAddressRequest) (models.Address, error) {
	req.Normalize()
	personID, err := parsePersonID(req.PersonID)
	if err != nil {
		return models.Address{}, err
	}
	candidate := models.Address{
		PersonID: personID,
		Type:     req.Type,
		Street:   req.Street,
		City:     req.City,
		State:    req.State,
		ZipCode:  req.ZipCode,
	}
	return candidate, v.Validate(ctx, candidate)
}

// ValidateUpdate overlays req on the stored address and validates the result.
func (v *Validator) ValidateUpdate(ctx context.Context, addressID id.AddressID, req models.UpdateAddressRequest) (models.Address, error) {
	req.Normalize()
	existing, err := v.addresses.FindByID(ctx, addressID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Address{}, dErrors.New(dErrors.CodeNotFound, "address not found")
	}
	if err != nil {
		return models.Address{}, dErrors.Wrap(err, dErrors.CodeInternal, "load address")
	}

	candidate := *existing
	if req.PersonID != nil {
		personID, err := parsePersonID(*req.PersonID)
		if err != nil {
			return models.Address{}, err
		}
		candidate.PersonID = personID
	}
	overlay(&candidate.Type, req.Type)
	overlay(&candidate.Street, req.Street)
	overlay(&candidate.City, req.City)
	overlay(&candidate.State, req.State)
	overlay(&candidate.ZipCode, req.ZipCode)
	return candidate, v.Validate(ctx, candidate)
}

// Validate checks the person reference against the replica, then the field
// rules.
func (v *Validator) Validate(ctx context.Context, candidate models.Address) error {
	if candidate.PersonID.IsNil() {
		return dErrors.NewField(dErrors.CodeValidation, "personId", "is required")
	}
	exists, err := v.replica.Exists(ctx, candidate.PersonID)
	if err != nil {
		v.metrics.IncReferenceCheck("error")
		return dErrors.Wrap(err, dErrors.CodeInternal, "read person replica")
	}
	if !exists {
		v.metrics.IncReferenceCheck("missing")
		return dErrors.NewField(dErrors.CodeNotFound, "personId", "referenced person not found")
	}
	v.metrics.IncReferenceCheck("found")
	return candidate.Validate()
}

func parsePersonID(raw string) (id.PersonID, error) {
	if raw == "" {
		return id.PersonID{}, dErrors.NewField(dErrors.CodeValidation, "personId", "is required")
	}
	personID, err := id.ParsePersonID(raw)
	if err != nil {
		return id.PersonID{}, dErrors.NewField(dErrors.CodeValidation, "personId", "must be a valid UUID")
	}
	return personID, nil
}

func overlay(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

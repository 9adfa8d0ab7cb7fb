package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "personsync/pkg/domain-errors"
)

// PersonID identifies a person across both services. The Person service assigns
// it once; the Address service replica reuses the same value.
type PersonID uuid.UUID

// AddressID identifies an address owned by the Address service.
type AddressID uuid.UUID

func NewPersonID() PersonID   { return PersonID(uuid.New()) }
func NewAddressID() AddressID { return AddressID(uuid.New()) }

func (id PersonID) String() string  { return uuid.UUID(id).String() }
func (id AddressID) String() string { return uuid.UUID(id).String() }

func (id PersonID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id AddressID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// ParsePersonID parses a person identifier at a trust boundary.
func ParsePersonID(s string) (PersonID, error) {
	u, err := parseUUID(s, "person id")
	return PersonID(u), err
}

// ParseAddressID parses an address identifier at a trust boundary.
func ParseAddressID(s string) (AddressID, error) {
	u, err := parseUUID(s, "address id")
	return AddressID(u), err
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be nil")
	}
	return u, nil
}

// Text marshalling keeps typed IDs readable in JSON payloads and headers.

func (id PersonID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *PersonID) UnmarshalText(b []byte) error {
	parsed, err := ParsePersonID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id AddressID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *AddressID) UnmarshalText(b []byte) error {
	parsed, err := ParseAddressID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

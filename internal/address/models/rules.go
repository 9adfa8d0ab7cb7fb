package models

import (
	"regexp"
	"unicode/utf8"

	dErrors "personsync/pkg/domain-errors"
)

var (
	lettersOnly  = regexp.MustCompile(`^[A-Za-z]+$`)
	streetFormat = regexp.MustCompile(`^[ A-Za-z0-9]+$`)
	zipFormat    = regexp.MustCompile(`^[0-9]{5}$`)
)

const (
	MaxTypeLen   = 10
	MaxStreetLen = 100
	MaxCityLen   = 100
	MaxStateLen  = 100
)

// Validate applies the address field rules and reports the first failing
// field as a CodeValidation error. It does not check the person reference.
func (a *Address) Validate() error {
	if a.PersonID.IsNil() {
		return dErrors.NewField(dErrors.CodeValidation, "personId", "is required")
	}
	if err := match("type", a.Type, MaxTypeLen, lettersOnly, "must contain letters only"); err != nil {
		return err
	}
	if err := match("street", a.Street, MaxStreetLen, streetFormat, "must contain letters, digits and spaces only"); err != nil {
		return err
	}
	if err := match("city", a.City, MaxCityLen, lettersOnly, "must contain letters only"); err != nil {
		return err
	}
	if err := match("state", a.State, MaxStateLen, lettersOnly, "must contain letters only"); err != nil {
		return err
	}
	if a.ZipCode == "" {
		return dErrors.NewField(dErrors.CodeValidation, "zipCode", "is required")
	}
	if !zipFormat.MatchString(a.ZipCode) {
		return dErrors.NewField(dErrors.CodeValidation, "zipCode", "must be exactly 5 digits")
	}
	return nil
}

func match(field, value string, maxLen int, re *regexp.Regexp, msg string) error {
	switch {
	case value == "":
		return dErrors.NewField(dErrors.CodeValidation, field, "is required")
	case utf8.RuneCountInString(value) > maxLen:
		return dErrors.NewField(dErrors.CodeValidation, field, "is too long")
	case !re.MatchString(value):
		return dErrors.NewField(dErrors.CodeValidation, field, msg)
	}
	return nil
}

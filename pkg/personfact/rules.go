package personfact

import (
	"regexp"
	"unicode/utf8"

	dErrors "personsync/pkg/domain-errors"
)

var (
	lettersOnly = regexp.MustCompile(`^[A-Za-z]+$`)
	titleFormat = regexp.MustCompile(`^[A-Za-z]+\.?$`)
)

// Field length limits for replicated person attributes.
const (
	MaxFirstNameLen     = 40
	MaxMiddleInitialLen = 1
	MaxLastNameLen      = 50
	MaxTitleLen         = 4
)

// ValidateAttributes applies the person field rules shared by both services.
// The first failing field is reported as a CodeValidation error naming it.
func ValidateAttributes(a Attributes) error {
	if err := letters("firstName", a.FirstName, MaxFirstNameLen, true); err != nil {
		return err
	}
	if err := letters("middleInitial", a.MiddleInitial, MaxMiddleInitialLen, false); err != nil {
		return err
	}
	if err := letters("lastName", a.LastName, MaxLastNameLen, true); err != nil {
		return err
	}
	switch {
	case a.Title == "":
		return dErrors.NewField(dErrors.CodeValidation, "title", "is required")
	case utf8.RuneCountInString(a.Title) > MaxTitleLen:
		return dErrors.NewField(dErrors.CodeValidation, "title", "must be at most 4 characters")
	case !titleFormat.MatchString(a.Title):
		return dErrors.NewField(dErrors.CodeValidation, "title", "must contain letters only")
	}
	return nil
}

func letters(field, value string, maxLen int, required bool) error {
	if value == "" {
		if required {
			return dErrors.NewField(dErrors.CodeValidation, field, "is required")
		}
		return nil
	}
	if utf8.RuneCountInString(value) > maxLen {
		return dErrors.NewField(dErrors.CodeValidation, field, "is too long")
	}
	if !lettersOnly.MatchString(value) {
		return dErrors.NewField(dErrors.CodeValidation, field, "must contain letters only")
	}
	return nil
}

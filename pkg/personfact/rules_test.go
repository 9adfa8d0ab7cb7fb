package personfact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "personsync/pkg/domain-errors"
)

func TestValidateAttributes(t *testing.T) {
	valid := Attributes{FirstName: "Anthony", LastName: "Piccirilli", Title: "Mr."}

	t.Run("accepts a complete person", func(t *testing.T) {
		assert.NoError(t, ValidateAttributes(valid))
		withInitial := valid
		withInitial.MiddleInitial = "J"
		assert.NoError(t, ValidateAttributes(withInitial))
	})

	tests := []struct {
		name   string
		mutate func(*Attributes)
		field  string
	}{
		{"missing first name", func(a *Attributes) { a.FirstName = "" }, "firstName"},
		{"first name too long", func(a *Attributes) { a.FirstName = strings.Repeat("a", 41) }, "firstName"},
		{"first name with digits", func(a *Attributes) { a.FirstName = "Ant0ny" }, "firstName"},
		{"middle initial too long", func(a *Attributes) { a.MiddleInitial = "JR" }, "middleInitial"},
		{"middle initial punctuation", func(a *Attributes) { a.MiddleInitial = "." }, "middleInitial"},
		{"missing last name", func(a *Attributes) { a.LastName = "" }, "lastName"},
		{"last name too long", func(a *Attributes) { a.LastName = strings.Repeat("b", 51) }, "lastName"},
		{"missing title", func(a *Attributes) { a.Title = "" }, "title"},
		{"title too long", func(a *Attributes) { a.Title = "Prof." }, "title"},
		{"title with inner dot", func(a *Attributes) { a.Title = "M.r" }, "title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid
			tt.mutate(&a)
			err := ValidateAttributes(a)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Equal(t, tt.field, dErrors.FieldOf(err))
		})
	}
}

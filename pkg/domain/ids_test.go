package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "personsync/pkg/domain-errors"
)

// TestParsePersonID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParsePersonID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParsePersonID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParsePersonID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParsePersonID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParsePersonID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, PersonID(validUUID), id)
	})
}

func TestParseID_TrustBoundary(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE persons;--", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errPerson := ParsePersonID(tt.input)
			_, errAddress := ParseAddressID(tt.input)
			if tt.wantErr {
				require.Error(t, errPerson)
				require.Error(t, errAddress)
				assert.True(t, dErrors.HasCode(errPerson, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, errPerson)
				require.NoError(t, errAddress)
			}
		})
	}
}

func TestPersonID_JSONRoundTrip(t *testing.T) {
	type payload struct {
		PersonID PersonID `json:"personId"`
	}
	in := payload{PersonID: NewPersonID()}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), in.PersonID.String())

	var out payload
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in.PersonID, out.PersonID)

	err = json.Unmarshal([]byte(`{"personId":"nope"}`), &out)
	require.Error(t, err)
}

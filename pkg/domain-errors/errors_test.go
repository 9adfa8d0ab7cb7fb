package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches wrapped code deeper in the chain", func(t *testing.T) {
		inner := New(CodeNotFound, "person not found")
		outer := Wrap(inner, CodeInternal, "load failed")

		assert.True(t, HasCode(outer, CodeInternal))
		assert.True(t, HasCode(outer, CodeNotFound))
		assert.False(t, HasCode(outer, CodeValidation))
	})

	t.Run("sees through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", New(CodeConflict, "exists"))
		assert.True(t, HasCode(err, CodeConflict))
		assert.Equal(t, CodeConflict, CodeOf(err))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		err := fmt.Errorf("boom")
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, CodeInternal, "ignored"))

	err := Wrap(context.Canceled, CodeTimeout, "aborted")
	require.Error(t, err)
	assert.True(t, Is(err, context.Canceled))
	assert.Equal(t, "aborted: context canceled", err.Error())
}

func TestNewField(t *testing.T) {
	err := NewField(CodeValidation, "zipCode", "must be 5 characters")
	assert.Equal(t, "zipCode", FieldOf(err))
	assert.Equal(t, "zipCode: must be 5 characters", err.Error())
}

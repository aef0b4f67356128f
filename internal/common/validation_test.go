package common

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorCollectsErrors(t *testing.T) {
	v := NewValidator().
		Field("owner_id", "", Required).
		Field("mode", "graph", OneOf("table", "field", "text")).
		Field("name", "abcdef", MaxLength(3)).
		Field("page_range", "1-x", Matches(regexp.MustCompile(`^[0-9,\-]+$`), "must be a page range"))

	require.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 4)
	assert.ErrorIs(t, v.Error(), ErrInvalidInput)
}

func TestValidatorPasses(t *testing.T) {
	v := NewValidator().
		Field("owner_id", "acme", Required).
		Field("mode", "Table", OneOf("table", "field", "text")).
		Field("page_range", "1, 3-4", Matches(regexp.MustCompile(`^[0-9,\-]+$`), "must be a page range"))

	assert.False(t, v.HasErrors())
	assert.NoError(t, v.Error())
	assert.Empty(t, v.ErrorMessage())
}

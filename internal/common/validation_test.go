package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator(t *testing.T) {
	name := "plan.pdf"
	v := NewValidator().
		Field("project_id", "p1", Required).
		Field("filename", name, Required, MaxLength(255)).
		Field("display_name", &name, Required).
		Field("kind", "areas", OneOf("areas", "equipment", "materials"))
	assert.False(t, v.HasErrors())
	assert.NoError(t, v.Err())

	var missing *string
	v = NewValidator().
		Field("project_id", "  ", Required).
		Field("display_name", missing, Required).
		Field("language", strings.Repeat("א", 9), MaxLength(8)).
		Field("kind", "doors", OneOf("areas", "equipment")).
		Check(false, "file_id", nil, "exactly one of file_id or bim_model_id is required")
	assert.Len(t, v.Errors(), 5)

	err := v.Err()
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "project_id is required")
	assert.Contains(t, err.Error(), "language must be at most 8 characters")
	assert.Contains(t, err.Error(), "kind must be one of areas, equipment (got doors)")
	assert.Contains(t, err.Error(), "exactly one of file_id")
}

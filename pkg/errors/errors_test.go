package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(errors.New("db down"))
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Equal(t, ErrInternal.Message, err.Message)
}

func TestFromErrorKeepsTyped(t *testing.T) {
	wrapped := fmt.Errorf("ctx: %w", Clone(ErrNotFound, "item not found"))
	err := FromError(wrapped)
	assert.Equal(t, "NOT_FOUND", err.Code)
	assert.Equal(t, "item not found", err.Message)
}

func TestIsComparesCodes(t *testing.T) {
	assert.True(t, errors.Is(Clone(ErrInvalidStateTransition, "already delivered"), ErrInvalidStateTransition))
	assert.False(t, errors.Is(Clone(ErrConflict, "dup"), ErrInvalidStateTransition))
}

func TestValidationCollectsFields(t *testing.T) {
	type payload struct {
		Email    string `validate:"required,email"`
		Password string `validate:"required,min=6"`
	}
	verr := validator.New().Struct(payload{Email: "bad", Password: "123"})
	require.Error(t, verr)

	err := Validation(verr, "invalid payload")
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, "must be a valid email address", err.Fields["Email"])
	assert.Equal(t, "must be at least 6 characters", err.Fields["Password"])
}

func TestFieldBuildsSingleFieldError(t *testing.T) {
	err := Field("searchTerm", "must have at least 2 characters")
	assert.Equal(t, "VALIDATION_ERROR", err.Code)
	assert.Equal(t, map[string]string{"searchTerm": "must have at least 2 characters"}, err.Fields)
	assert.Nil(t, ErrValidation.Fields)
}

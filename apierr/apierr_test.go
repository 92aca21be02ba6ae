package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalidInputCarriesField(t *testing.T) {
	err := InvalidInput("real_distance", "must be greater than zero")
	assert.Equal(t, "real_distance: must be greater than zero", err.Error())
	assert.Equal(t, http.StatusBadRequest, StatusOf(err))
	assert.True(t, IsCode(err, CodeInvalidInput))
}

func TestWrappedErrorsAreFound(t *testing.T) {
	err := fmt.Errorf("load: %w", NotFound("sheet", 9))
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
	assert.Equal(t, "sheet 9 not found", Message(err))
}

func TestInternalMessageDoesNotLeak(t *testing.T) {
	err := Internal(errors.New("disk full"))
	assert.Equal(t, GenericMessage, Message(err))
	assert.NotContains(t, Message(err), "disk full")
	assert.Equal(t, GenericMessage, Message(errors.New("raw failure")))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("raw failure")))
}

func TestConstructorCodes(t *testing.T) {
	cases := []struct {
		err    *Error
		code   string
		status int
	}{
		{InvalidInput("x", "bad"), CodeInvalidInput, http.StatusBadRequest},
		{NotFound("asset", 1), CodeNotFound, http.StatusNotFound},
		{Conflict("dup"), CodeConflict, http.StatusConflict},
		{Internal(errors.New("boom")), CodeInternal, http.StatusInternalServerError},
		{Unauthorized("no token"), CodeUnauthorized, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, tc.err.Code)
		assert.Equal(t, tc.status, StatusOf(tc.err))
	}
}

func TestRowError(t *testing.T) {
	assert.Equal(t, "Row 3: Missing asset_id (column 'TN')", RowError{Row: 3, Reason: "Missing asset_id (column 'TN')"}.Error())

	// row failures are plain errors, never *Error
	_, ok := As(RowError{Row: 2, Reason: "x"})
	assert.False(t, ok)
}

package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := Newf(CodeInvalidUnit, "unknown unit %q", "furlong")

	assert.True(t, errors.Is(err, ErrInvalidUnit))
	assert.False(t, errors.Is(err, ErrInvalidCategory))

	wrapped := fmt.Errorf("convert: %w", err)
	assert.True(t, errors.Is(wrapped, ErrInvalidUnit))
}

func TestError_WrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, CodeExportFailure, "failed to write drawing")

	assert.Equal(t, "failed to write drawing: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrExportFailure)
}

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeInvalidCategory, http.StatusBadRequest},
		{CodeInvalidNumber, http.StatusBadRequest},
		{CodeValidation, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeExportFailure, http.StatusUnprocessableEntity},
		{CodeNoValidInput, http.StatusUnprocessableEntity},
		{CodeTooManyRequests, http.StatusTooManyRequests},
		{CodePayloadTooLarge, http.StatusRequestEntityTooLarge},
		{CodeInternal, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestError_WithDetails(t *testing.T) {
	base := Validation("validation failed")
	detailed := base.WithDetails(map[string]string{"body": "is required"})

	assert.Nil(t, base.Details)
	assert.Equal(t, map[string]string{"body": "is required"}, detailed.Details)
	assert.Equal(t, CodeValidation, detailed.Code)
}

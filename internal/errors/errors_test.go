package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundError_Creation(t *testing.T) {
	message := "order not found"
	err := NewNotFoundError(message)

	assert.NotNil(t, err)
	assert.Equal(t, message, err.Message)
	assert.Equal(t, message, err.Error())
}

func TestNotFoundError_IsNotFoundError(t *testing.T) {
	err := NewNotFoundError("test not found")

	notFoundErr, ok := IsNotFoundError(err)
	assert.True(t, ok)
	assert.NotNil(t, notFoundErr)
	assert.Equal(t, "test not found", notFoundErr.Message)
}

func TestNotFoundError_IsNotFoundError_Wrapped(t *testing.T) {
	err := fmt.Errorf("loading ticket: %w", NewNotFoundError("ticket not found"))

	notFoundErr, ok := IsNotFoundError(err)
	assert.True(t, ok)
	assert.Equal(t, "ticket not found", notFoundErr.Message)
}

func TestNotFoundError_IsNotFoundError_WithOtherError(t *testing.T) {
	err := errors.New("some other error")

	notFoundErr, ok := IsNotFoundError(err)
	assert.False(t, ok)
	assert.Nil(t, notFoundErr)
}

func TestValidationError_Creation(t *testing.T) {
	message := "validation failed"
	details := []ValidationDetail{
		{Field: "tableId", Message: "tableId is required"},
		{Field: "itemIds", Message: "itemIds must not be empty"},
	}

	err := NewValidationError(message, details...)

	assert.NotNil(t, err)
	assert.Equal(t, message, err.Message)
	assert.Equal(t, message, err.Error())
	assert.Len(t, err.Details, 2)
}

func TestInvalidStatusTransitionError_Message(t *testing.T) {
	err := NewInvalidStatusTransitionError("order item", "item-1", "READY", "PENDING")

	assert.Equal(t, "invalid order item status transition for item-1: READY -> PENDING", err.Error())

	ite, ok := IsInvalidStatusTransitionError(err)
	assert.True(t, ok)
	assert.Equal(t, "READY", ite.From)
	assert.Equal(t, "PENDING", ite.To)
}

func TestCartEmptyError_Message(t *testing.T) {
	err := NewCartEmptyError("tenant-1", "T4")

	assert.Equal(t, "cart for table T4 is empty", err.Error())
}

func TestItemUnavailableError_Message(t *testing.T) {
	assert.Equal(t, "item Burger is unavailable: SOLD_OUT", NewItemUnavailableError("m-1", "Burger", "SOLD_OUT").Error())
	assert.Equal(t, "item m-1 is unavailable", NewItemUnavailableError("m-1", "", "").Error())
}

func TestInternalError_Creation(t *testing.T) {
	cause := errors.New("database error")
	err := NewInternalError("failed to query database", cause)

	assert.NotNil(t, err)
	assert.Equal(t, "failed to query database", err.Message)
	assert.Equal(t, cause, err.Cause)
	assert.Contains(t, err.Error(), "failed to query database")
	assert.Contains(t, err.Error(), "database error")
}

func TestInternalError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := NewInternalError("wrapper", cause)

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
}

func TestCode(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   int
		status int
	}{
		{"validation", NewValidationError("bad"), CodeValidation, http.StatusBadRequest},
		{"unauthorized", NewUnauthorizedError("no"), CodeUnauthorized, http.StatusUnauthorized},
		{"not found", NewNotFoundError("missing"), CodeNotFound, http.StatusNotFound},
		{"conflict", NewConflictError("busy"), CodeConflict, http.StatusConflict},
		{"transition", NewInvalidStatusTransitionError("ticket", "", "READY", "PENDING"), CodeInvalidStatusTransition, http.StatusConflict},
		{"cart empty", NewCartEmptyError("t", "x"), CodeCartEmpty, http.StatusBadRequest},
		{"unavailable", NewItemUnavailableError("m", "", ""), CodeItemUnavailable, http.StatusUnprocessableEntity},
		{"wrapped", fmt.Errorf("checkout: %w", NewCartEmptyError("t", "x")), CodeCartEmpty, http.StatusBadRequest},
		{"plain", errors.New("boom"), CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, Code(tt.err))
			assert.Equal(t, tt.status, HTTPStatus(Code(tt.err)))
		})
	}
}

func TestFromCode_RoundTrip(t *testing.T) {
	codes := []int{
		CodeValidation,
		CodeUnauthorized,
		CodeNotFound,
		CodeConflict,
		CodeInvalidStatusTransition,
		CodeCartEmpty,
		CodeItemUnavailable,
		CodeInternal,
	}

	for _, code := range codes {
		err := FromCode(code, "remote message")
		assert.Equal(t, code, Code(err), Name(code))
	}

	err := FromCode(CodeInvalidStatusTransition, "invalid order item status transition: READY -> PREPARING")
	assert.Equal(t, "invalid order item status transition: READY -> PREPARING", err.Error())
}

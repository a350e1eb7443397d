package dto

import (
	"time"

	apperrors "comanda/internal/errors"
)

// ErrorResponse is the structured error body shared by every service. Code is
// the stable numeric code; Error is its label.
type ErrorResponse struct {
	TraceID   string                       `json:"traceId,omitempty"`
	Code      int                          `json:"code"`
	Error     string                       `json:"error"`
	Message   string                       `json:"message"`
	Details   []apperrors.ValidationDetail `json:"details,omitempty"`
	Timestamp time.Time                    `json:"timestamp"`
}

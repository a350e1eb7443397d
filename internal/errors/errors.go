package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Stable numeric codes returned to callers in every structured error response.
const (
	CodeValidation              = 1001
	CodeUnauthorized            = 1002
	CodeNotFound                = 1004
	CodeConflict                = 1009
	CodeInvalidStatusTransition = 1010
	CodeCartEmpty               = 1011
	CodeItemUnavailable         = 1012
	CodeInternal                = 1500
)

type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Message string
	Details []ValidationDetail
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string, details ...ValidationDetail) *ValidationError {
	return &ValidationError{
		Message: message,
		Details: details,
	}
}

func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if stderrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{Message: message}
}

func IsNotFoundError(err error) (*NotFoundError, bool) {
	var nfe *NotFoundError
	if stderrors.As(err, &nfe) {
		return nfe, true
	}
	return nil, false
}

type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

func IsConflictError(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	return e.Message
}

func NewUnauthorizedError(message string) *UnauthorizedError {
	return &UnauthorizedError{Message: message}
}

func IsUnauthorizedError(err error) (*UnauthorizedError, bool) {
	var ue *UnauthorizedError
	if stderrors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// InvalidStatusTransitionError names the entity and both ends of the rejected edge.
type InvalidStatusTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string

	// remote carries the message of a transition error relayed from another service.
	remote string
}

func (e *InvalidStatusTransitionError) Error() string {
	if e.remote != "" {
		return e.remote
	}
	if e.ID != "" {
		return fmt.Sprintf("invalid %s status transition for %s: %s -> %s", e.Entity, e.ID, e.From, e.To)
	}
	return fmt.Sprintf("invalid %s status transition: %s -> %s", e.Entity, e.From, e.To)
}

func NewInvalidStatusTransitionError(entity, id, from, to string) *InvalidStatusTransitionError {
	return &InvalidStatusTransitionError{
		Entity: entity,
		ID:     id,
		From:   from,
		To:     to,
	}
}

func IsInvalidStatusTransitionError(err error) (*InvalidStatusTransitionError, bool) {
	var ite *InvalidStatusTransitionError
	if stderrors.As(err, &ite) {
		return ite, true
	}
	return nil, false
}

type CartEmptyError struct {
	TenantID string
	TableID  string

	message string
}

func (e *CartEmptyError) Error() string {
	if e.message != "" {
		return e.message
	}
	return fmt.Sprintf("cart for table %s is empty", e.TableID)
}

func NewCartEmptyError(tenantID, tableID string) *CartEmptyError {
	return &CartEmptyError{TenantID: tenantID, TableID: tableID}
}

func IsCartEmptyError(err error) (*CartEmptyError, bool) {
	var cee *CartEmptyError
	if stderrors.As(err, &cee) {
		return cee, true
	}
	return nil, false
}

type ItemUnavailableError struct {
	MenuItemID string
	Name       string
	Reason     string
}

func (e *ItemUnavailableError) Error() string {
	name := e.Name
	if name == "" {
		name = e.MenuItemID
	}
	if e.Reason != "" {
		return fmt.Sprintf("item %s is unavailable: %s", name, e.Reason)
	}
	return fmt.Sprintf("item %s is unavailable", name)
}

func NewItemUnavailableError(menuItemID, name, reason string) *ItemUnavailableError {
	return &ItemUnavailableError{
		MenuItemID: menuItemID,
		Name:       name,
		Reason:     reason,
	}
}

func IsItemUnavailableError(err error) (*ItemUnavailableError, bool) {
	var iue *ItemUnavailableError
	if stderrors.As(err, &iue) {
		return iue, true
	}
	return nil, false
}

type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{
		Message: message,
		Cause:   cause,
	}
}

// Code maps an error to its stable numeric code. Unknown errors are internal.
func Code(err error) int {
	switch {
	case err == nil:
		return 0
	case isType[*ValidationError](err):
		return CodeValidation
	case isType[*UnauthorizedError](err):
		return CodeUnauthorized
	case isType[*NotFoundError](err):
		return CodeNotFound
	case isType[*ConflictError](err):
		return CodeConflict
	case isType[*InvalidStatusTransitionError](err):
		return CodeInvalidStatusTransition
	case isType[*CartEmptyError](err):
		return CodeCartEmpty
	case isType[*ItemUnavailableError](err):
		return CodeItemUnavailable
	default:
		return CodeInternal
	}
}

// Name is the string label sent next to the numeric code.
func Name(code int) string {
	switch code {
	case CodeValidation:
		return "VALIDATION_ERROR"
	case CodeUnauthorized:
		return "UNAUTHORIZED"
	case CodeNotFound:
		return "NOT_FOUND"
	case CodeConflict:
		return "CONFLICT"
	case CodeInvalidStatusTransition:
		return "INVALID_STATUS_TRANSITION"
	case CodeCartEmpty:
		return "CART_EMPTY"
	case CodeItemUnavailable:
		return "ITEM_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

func HTTPStatus(code int) int {
	switch code {
	case CodeValidation, CodeCartEmpty:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidStatusTransition:
		return http.StatusConflict
	case CodeItemUnavailable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// FromCode rebuilds a typed error from a remote structured response.
func FromCode(code int, message string) error {
	switch code {
	case CodeValidation:
		return NewValidationError(message)
	case CodeUnauthorized:
		return NewUnauthorizedError(message)
	case CodeNotFound:
		return NewNotFoundError(message)
	case CodeConflict:
		return NewConflictError(message)
	case CodeInvalidStatusTransition:
		return &InvalidStatusTransitionError{Entity: "remote", remote: message}
	case CodeCartEmpty:
		return &CartEmptyError{message: message}
	case CodeItemUnavailable:
		return &ItemUnavailableError{Reason: message}
	default:
		return NewInternalError(message, nil)
	}
}

func isType[T error](err error) bool {
	var target T
	return stderrors.As(err, &target)
}

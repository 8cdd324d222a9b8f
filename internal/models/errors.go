package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrKind classifies a core failure. Rule violations and conflicts are
// expected outcomes of a healthy auction, never system errors.
type ErrKind string

const (
	ErrValidation    ErrKind = "validation"
	ErrNotFound      ErrKind = "not_found"
	ErrRuleViolation ErrKind = "rule_violation"
	ErrConflict      ErrKind = "conflict"
	ErrStore         ErrKind = "store"
)

// AppError is the error type every core operation returns. Rule
// violations always carry the violated threshold so callers can show it
// (the decrement value, the max tries, the window deadline).
type AppError struct {
	Kind      ErrKind     `json:"kind"`
	Message   string      `json:"message"`
	Threshold interface{} `json:"threshold,omitempty"`
	cause     error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.cause }

// HTTPStatus maps the error kind to a response code.
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrRuleViolation:
		return http.StatusUnprocessableEntity
	case ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func NewValidationError(msg string) *AppError {
	return &AppError{Kind: ErrValidation, Message: msg}
}

func NewNotFoundError(msg string) *AppError {
	return &AppError{Kind: ErrNotFound, Message: msg}
}

// NewRuleViolation builds an expected rejection carrying the violated
// threshold for user feedback.
func NewRuleViolation(msg string, threshold interface{}) *AppError {
	return &AppError{Kind: ErrRuleViolation, Message: msg, Threshold: threshold}
}

func NewConflictError(msg string) *AppError {
	return &AppError{Kind: ErrConflict, Message: msg}
}

// NewStoreError wraps a record-store or channel failure. The caller
// sees an opaque retryable message; the cause is for internal logs.
func NewStoreError(cause error) *AppError {
	return &AppError{Kind: ErrStore, Message: "storage operation failed, please retry", cause: cause}
}

// AsAppError unwraps err into an *AppError, defaulting unknown errors
// to the opaque store kind.
func AsAppError(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return NewStoreError(err)
}

package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	ErrCodeInvalid  ErrorCode = "INVALID"
	ErrCodeStorage  ErrorCode = "STORAGE"
	ErrCodeDelivery ErrorCode = "DELIVERY"
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches sentinel errors by code and message so wrapped copies still compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Validation errors surfaced to the user.
var (
	ErrMissingSeparator = NewError(ErrCodeInvalid, "expected format: <description> ; <YYYY-MM-DD HH:MM>")
	ErrEmptyDescription = NewError(ErrCodeInvalid, "task description is empty")
	ErrInvalidDeadline  = NewError(ErrCodeInvalid, "invalid deadline, expected YYYY-MM-DD HH:MM")
	ErrInvalidTaskID    = NewError(ErrCodeInvalid, "invalid task id")
	ErrInvalidOwner     = NewError(ErrCodeInvalid, "invalid owner id")
)

var ErrTaskNotFound = NewError(ErrCodeNotFound, "task not found")

// StorageError classifies a failure of the underlying persistence.
func StorageError(op string, err error) *Error {
	return WrapError(ErrCodeStorage, op, err)
}

// DeliveryError classifies a failed reminder delivery.
func DeliveryError(err error) *Error {
	return WrapError(ErrCodeDelivery, "reminder delivery failed", err)
}

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

func IsValidation(err error) bool { return IsDomainError(err, ErrCodeInvalid) }
func IsStorage(err error) bool    { return IsDomainError(err, ErrCodeStorage) }
func IsDelivery(err error) bool   { return IsDomainError(err, ErrCodeDelivery) }

// Package apperror defines the error codes shared by the approval services and
// the HTTP envelope.
package apperror

import (
	"errors"
	"fmt"
)

// Code identifies an error class in API responses
type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeSelfApproval        Code = "BIZ_SELF_APPROVAL"
	CodeInvalidStatus       Code = "INVALID_STATUS"
	CodeAlreadyApproved     Code = "ALREADY_APPROVED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeNotFound            Code = "NOT_FOUND"
	CodeConflict            Code = "CONFLICT"
	CodeDuplicatePending    Code = "BIZ_DUPLICATE_PENDING"
	CodeInvalidDate         Code = "BIZ_INVALID_DATE"
	CodeDuplicateSubmission Code = "DUPLICATE_SUBMISSION"
	CodeInternal            Code = "INTERNAL_ERROR"
)

// Error is a classified application error
type Error struct {
	Code    Code
	Message string
	Details map[string]interface{}
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetail returns a copy of the error carrying an extra detail entry
func (e *Error) WithDetail(key string, value interface{}) *Error {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value

	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// New creates an error with the given code
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with a formatted message
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

func Validation(field, message string) *Error {
	return &Error{
		Code:    CodeValidation,
		Message: message,
		Details: map[string]interface{}{"field": field},
	}
}

func NotFound(resource string, id int64) *Error {
	return Newf(CodeNotFound, "%s %d not found", resource, id)
}

func Forbidden(message string) *Error {
	return New(CodeForbidden, message)
}

func InvalidStatus(message string) *Error {
	return New(CodeInvalidStatus, message)
}

func Conflict(message string) *Error {
	return New(CodeConflict, message)
}

// CodeOf returns the code of a classified error, or CodeInternal
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

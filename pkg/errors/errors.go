// Package errors provides structured error types for knotview.
//
// Every failure that crosses a package boundary carries a machine-readable
// [Code] so that the CLI, the HTTP API and the scene controller can react to
// the category (a missing surface is silent, a broken join is fatal) without
// matching on strings.
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: grammar or input validation failures
//   - *_NOT_FOUND: a referenced resource does not exist
//   - DATA_INTEGRITY: loaded data contradicts the grammar
//   - NETWORK_*: data-client failures
//   - INTERNAL_*: unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeUnresolvableKnot, "knot %q not found", id)
//	if errors.Is(err, errors.ErrCodeUnresolvableKnot) {
//	    // report to the caller
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "fetch layer %s", id)
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidGrammar Code = "INVALID_GRAMMAR"
	ErrCodeInvalidLevel   Code = "INVALID_LEVEL"
	ErrCodeInvalidFormat  Code = "INVALID_FORMAT"
	ErrCodeInvalidPath    Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeNotFound         Code = "NOT_FOUND"
	ErrCodeResourceNotFound Code = "RESOURCE_NOT_FOUND"
	ErrCodeLayerNotFound    Code = "LAYER_NOT_FOUND"
	ErrCodeFileNotFound     Code = "FILE_NOT_FOUND"

	// Consistency errors between grammar and loaded data
	ErrCodeDataIntegrity    Code = "DATA_INTEGRITY"
	ErrCodeUnresolvableKnot Code = "UNRESOLVABLE_KNOT"

	// Lifecycle errors
	ErrCodeNotReady Code = "NOT_READY"
	ErrCodeDisposed Code = "DISPOSED"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps an error code to the status the HTTP API answers with.
func HTTPStatus(err error) int {
	switch category(GetCode(err)) {
	case catInput:
		return http.StatusBadRequest
	case catNotFound:
		return http.StatusNotFound
	case catLifecycle:
		return http.StatusServiceUnavailable
	case catIntegrity:
		return http.StatusUnprocessableEntity
	case catNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ExitCode maps an error to the knotview process exit status: 0 for nil,
// 2 for invalid input, 3 for missing resources, 4 for grammar/data
// mismatches, 5 for data-client failures and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch category(GetCode(err)) {
	case catInput:
		return 2
	case catNotFound:
		return 3
	case catIntegrity:
		return 4
	case catNetwork:
		return 5
	default:
		return 1
	}
}

type codeCategory int

const (
	catOther codeCategory = iota
	catInput
	catNotFound
	catLifecycle
	catIntegrity
	catNetwork
)

func category(code Code) codeCategory {
	switch code {
	case ErrCodeInvalidInput, ErrCodeInvalidGrammar, ErrCodeInvalidLevel, ErrCodeInvalidFormat, ErrCodeInvalidPath:
		return catInput
	case ErrCodeNotFound, ErrCodeResourceNotFound, ErrCodeLayerNotFound, ErrCodeFileNotFound, ErrCodeUnresolvableKnot:
		return catNotFound
	case ErrCodeNotReady, ErrCodeDisposed:
		return catLifecycle
	case ErrCodeDataIntegrity:
		return catIntegrity
	case ErrCodeNetwork, ErrCodeTimeout:
		return catNetwork
	default:
		return catOther
	}
}

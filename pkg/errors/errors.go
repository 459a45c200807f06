// Package errors provides structured error types for pps.
//
// Every failure the search pipeline can produce carries a [Code] so the CLI
// and the HTTP API can tell the categories apart without string matching:
//   - TRANSPORT_ERROR: network failure, timeout or non-success HTTP status
//   - EXTRACTION_ERROR: a search result entry could not be turned into a package
//   - PARSE_ERROR: a local inventory line was malformed
//   - ENRICHMENT_ERROR: download statistics could not be obtained or decoded
//   - INVALID_*: caller input rejected before any I/O
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "pages must be at least 1, got %d", n)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeTransport, origErr, "fetch page %d", page)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidSortKey Code = "INVALID_SORT_KEY"
	ErrCodeInvalidConfig  Code = "INVALID_CONFIG"

	// Pipeline errors
	ErrCodeTransport  Code = "TRANSPORT_ERROR"
	ErrCodeExtraction Code = "EXTRACTION_ERROR"
	ErrCodeParse      Code = "PARSE_ERROR"
	ErrCodeEnrichment Code = "ENRICHMENT_ERROR"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
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
// It returns the code of the outermost *Error in the chain, so a transport
// failure wrapped as an enrichment failure reports ENRICHMENT_ERROR.
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
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}

// Hint returns a short suggestion the CLI can print below an error, or ""
// when there is nothing actionable to add.
func Hint(err error) string {
	switch GetCode(err) {
	case ErrCodeTransport:
		return "check your network connection or try again later"
	case ErrCodeExtraction:
		return "the search page layout may have changed"
	case ErrCodeParse:
		return "check the installed-package listing format (name and version per line)"
	case ErrCodeEnrichment:
		return "download statistics are optional; retry with --lenient to skip failures"
	case ErrCodeInvalidSortKey:
		return "valid sort keys: pypi, date, name, downloads"
	}
	return ""
}

// Package errors provides structured error types for the graph SDK.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the library and CLI
//   - Machine-readable error codes for programmatic handling
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - KEY_*: Key resolution and cryptographic key failures
//   - PAGE_*/GRAPH_*: Capacity and layout failures
//   - CODEC_*: Serialization, compression and encryption failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidSchemaID, "unknown schema id %d", id)
//	if errors.Is(err, errors.ErrCodeInvalidSchemaID) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeCodecDecrypt, origErr, "page %d", pageID)
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
	ErrCodeInvalidInput     Code = "INVALID_INPUT"
	ErrCodeInvalidUserID    Code = "INVALID_USER_ID"
	ErrCodeInvalidSchemaID  Code = "INVALID_SCHEMA_ID"
	ErrCodeInvalidPageID    Code = "INVALID_PAGE_ID"
	ErrCodeInvalidPublicKey Code = "INVALID_PUBLIC_KEY"
	ErrCodeInvalidSecretKey Code = "INVALID_SECRET_KEY"
	ErrCodeKeyPairMismatch  Code = "KEY_PAIR_MISMATCH"

	// Graph state errors
	ErrCodeUserNotImported     Code = "USER_GRAPH_NOT_IMPORTED"
	ErrCodeConnectionExists    Code = "CONNECTION_ALREADY_EXISTS"
	ErrCodeConnectionNotFound  Code = "CONNECTION_DOES_NOT_EXIST"
	ErrCodeDuplicateConnection Code = "DUPLICATE_CONNECTION"
	ErrCodeDuplicateUpdate     Code = "DUPLICATE_UPDATE_EVENT"
	ErrCodeWrongPrivacyType    Code = "WRONG_PRIVACY_TYPE"

	// Key management errors
	ErrCodeNoActiveKey         Code = "NO_RESOLVED_ACTIVE_KEY"
	ErrCodeNoPublicKey         Code = "NO_PUBLIC_KEY_FOR_USER"
	ErrCodeNoImportedPRIDs     Code = "NO_PRIDS_IMPORTED_FOR_USER"
	ErrCodeKeyAlreadyExists    Code = "PUBLIC_KEY_ALREADY_EXISTS"
	ErrCodeImportedKeyNotFound Code = "IMPORTED_KEY_NOT_FOUND"

	// Capacity errors
	ErrCodePageTriviallyFull    Code = "PAGE_TRIVIALLY_FULL"
	ErrCodePageAggressivelyFull Code = "PAGE_AGGRESSIVELY_FULL"
	ErrCodeGraphFull            Code = "GRAPH_IS_FULL"

	// Codec errors
	ErrCodeCodecEncode  Code = "CODEC_ENCODE"
	ErrCodeCodecDecode  Code = "CODEC_DECODE"
	ErrCodeCodecEncrypt Code = "CODEC_ENCRYPT"
	ErrCodeCodecDecrypt Code = "CODEC_DECRYPT"

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

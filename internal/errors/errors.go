// Package errors provides structured error types with codes for the client.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for categorizing errors.
const (
	CodeNotFound            = "not_found"
	CodeInvalidURL          = "invalid_url"
	CodeNetwork             = "network_error"
	CodeDecoding            = "decoding_error"
	CodeEncoding            = "encoding_error"
	CodeRegistrationFailed  = "registration_failed"
	CodeDecryptionFailed    = "decryption_failed"
	CodeInvalidAuthData     = "invalid_auth_data"
	CodeMissingDeviceInfo   = "missing_device_info"
	CodeMissingCustomerInfo = "missing_customer_info"
)

// Error represents a structured error with a code and message.
type Error struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the given code and message.
func New(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a code and message.
func Wrap(err error, code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// NotFound creates a not found error.
func NotFound(resource string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: resource + " not found",
	}
}

// InvalidURL creates an invalid URL error.
func InvalidURL(message string) *Error {
	return &Error{
		Code:    CodeInvalidURL,
		Message: message,
	}
}

// Network creates a network error.
func Network(message string, err error) *Error {
	return &Error{
		Code:    CodeNetwork,
		Message: message,
		Err:     err,
	}
}

// Decoding creates a decoding error for malformed or unexpectedly shaped data.
func Decoding(message string, err error) *Error {
	return &Error{
		Code:    CodeDecoding,
		Message: message,
		Err:     err,
	}
}

// RegistrationFailed creates a registration error carrying vendor response detail.
func RegistrationFailed(detail string) *Error {
	return &Error{
		Code:    CodeRegistrationFailed,
		Message: detail,
	}
}

// DecryptionFailed creates a voucher decryption or parse error.
func DecryptionFailed(detail string) *Error {
	return &Error{
		Code:    CodeDecryptionFailed,
		Message: detail,
	}
}

// InvalidAuthData creates an error for malformed persisted credentials.
func InvalidAuthData(detail string, err error) *Error {
	return &Error{
		Code:    CodeInvalidAuthData,
		Message: detail,
		Err:     err,
	}
}

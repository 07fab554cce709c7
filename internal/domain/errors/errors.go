// Package errors provides domain-specific errors for connectsync.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common domain error conditions.
var (
	ErrNotConnected       = errors.New("bus not connected")
	ErrStreamClosed       = errors.New("signal stream closed")
	ErrInvalidPayload     = errors.New("invalid signal payload")
	ErrInvalidTarget      = errors.New("invalid sync target")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrConnectionReleased = errors.New("connection already released")
	ErrUnknownBackend     = errors.New("unknown dedup backend")
	ErrSequenceClosed     = errors.New("sequence closed")
)

// ErrorCode categorizes errors for handling and reporting.
type ErrorCode string

const (
	CodeValidation    ErrorCode = "VALIDATION"
	CodeTransport     ErrorCode = "TRANSPORT"
	CodeDecode        ErrorCode = "DECODE"
	CodeStorage       ErrorCode = "STORAGE"
	CodeConfiguration ErrorCode = "CONFIG"
)

// ConnectsyncError wraps errors with a code and key/value context.
type ConnectsyncError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error returns a formatted error string including the code, message, and cause if present.
func (e *ConnectsyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for use with errors.Is and errors.As.
func (e *ConnectsyncError) Unwrap() error {
	return e.Cause
}

// NewError creates a new ConnectsyncError with the given code, message, and optional cause.
func NewError(code ErrorCode, message string, cause error) *ConnectsyncError {
	return &ConnectsyncError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Transport wraps a bus failure.
func Transport(message string, cause error) *ConnectsyncError {
	return NewError(CodeTransport, message, cause)
}

// Decode wraps a payload decoding failure. The cause always matches ErrInvalidPayload.
func Decode(message string, cause error) *ConnectsyncError {
	if cause == nil {
		cause = ErrInvalidPayload
	} else if !errors.Is(cause, ErrInvalidPayload) {
		cause = fmt.Errorf("%w: %v", ErrInvalidPayload, cause)
	}
	return NewError(CodeDecode, message, cause)
}

// WithContext adds a key-value pair to the error's context and returns the error.
func WithContext(err *ConnectsyncError, key string, value interface{}) *ConnectsyncError {
	if err.Context == nil {
		err.Context = make(map[string]interface{})
	}
	err.Context[key] = value
	return err
}

// CodeOf returns the code of the first ConnectsyncError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var cerr *ConnectsyncError
	if errors.As(err, &cerr) {
		return cerr.Code
	}
	return ""
}

// Is reports whether err matches target using errors.Is semantics.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join is errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Package domainerrors provides coded errors for the service layer.
//
// Stores return sentinel errors (pkg/platform/sentinel) describing infrastructure
// facts; services translate those into coded domain errors that handlers can map
// to HTTP responses. The code is the contract: callers branch on HasCode, never
// on message text.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of domain error. Values double as the wire-level
// error identifier in JSON envelopes.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_error"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeInternal           Code = "internal_error"
	CodeInvariantViolation Code = "invariant_violation"

	// Registration-flow taxonomy.
	CodeNotQualified         Code = "not_qualified"
	CodeInvalidCode          Code = "invalid_code"
	CodeCodeExpired          Code = "code_expired"
	CodeCodeExhausted        Code = "code_exhausted"
	CodeVerificationRequired Code = "verification_required"
	CodeRegistrationClosed   Code = "registration_closed"
	CodeInvalidToken         Code = "invalid_token"
	CodeTokenExpired         Code = "token_expired"
	CodeTransferConflict     Code = "transfer_conflict"
	CodeRateLimited          Code = "rate_limited"
)

// terminalCodes are not recoverable by retrying the same flow with the same
// input. Handlers use IsTerminal to suppress "try again" affordances.
var terminalCodes = map[Code]bool{
	CodeNotQualified:       true,
	CodeRegistrationClosed: true,
}

// Error is a coded domain error. Fields optionally carries the identifiers of
// the offending input fields (e.g. missing required form fields) so callers
// can point users at exactly what to fix.
type Error struct {
	Code    Code
	Message string
	Fields  []string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// New creates a coded error with a human-readable message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is/As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, wrapped: err}
}

// WithFields creates a coded error carrying field identifiers.
func WithFields(code Code, message string, fields []string) error {
	return &Error{Code: code, Message: message, Fields: fields}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for call-site readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the code from err, defaulting to CodeInternal for uncoded
// errors so unknown failures never leak details to clients.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the human-readable message from err, empty for uncoded errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// FieldsOf extracts field identifiers from err, nil when absent.
func FieldsOf(err error) []string {
	var de *Error
	if errors.As(err, &de) {
		return de.Fields
	}
	return nil
}

// IsTerminal reports whether err is a terminal failure: retrying the same
// input cannot succeed, so callers should not offer a retry.
func IsTerminal(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return terminalCodes[de.Code]
	}
	return false
}

// Package domainerrors carries typed error codes across service boundaries.
//
// Services return *Error values; transports translate the Code into a status
// and a stable machine-readable string. Wrapped causes stay reachable through
// errors.Is / errors.As but are never rendered to clients.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable, client-facing error identifier.
type Code string

// Generic codes.
const (
	CodeBadRequest   Code = "bad_request"
	CodeValidation   Code = "validation_error"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal_error"
)

// Voting domain codes.
const (
	CodeElectionClosed               Code = "election_closed"
	CodeUnregisteredVoter            Code = "unregistered_voter"
	CodeAlreadyVoted                 Code = "already_voted"
	CodeAlreadyRegistered            Code = "already_registered"
	CodeUnknownIdentity              Code = "unknown_identity"
	CodeDuplicateDescriptor          Code = "duplicate_descriptor"
	CodeBiometricMismatch            Code = "biometric_mismatch"
	CodeChallengeMissingOrExpired    Code = "challenge_missing_or_expired"
	CodeCredentialVerificationFailed Code = "credential_verification_failed"
	CodeChainIntegrityViolation      Code = "chain_integrity_violation"
	CodeInvalidCandidate             Code = "invalid_candidate"
)

// Error is a domain error with a code and a client-safe message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error without an underlying cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// As returns the outermost domain error in the chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether the outermost domain error in err carries code.
func HasCode(err error, code Code) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

// Is is an alias of HasCode kept for call-site readability in tests.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

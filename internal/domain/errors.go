package domain

import "fmt"

// Error types for consistent error handling across the importer.

// ErrUnknownCurrency indicates a currency code missing from the
// ISO 4217 table; the minor-unit amount of such an entry cannot be
// converted. Fatal to the whole batch by default.
type ErrUnknownCurrency struct {
	Code string
}

func (e *ErrUnknownCurrency) Error() string {
	return fmt.Sprintf("unknown currency code: %q", e.Code)
}

// ErrMalformedDocument indicates a statement document that could not be
// parsed. It is contained at the normalization boundary and treated as
// an empty result, never surfaced to the end user.
type ErrMalformedDocument struct {
	Format StatementFormat
	Err    error
}

func (e *ErrMalformedDocument) Error() string {
	return fmt.Sprintf("malformed %s document: %v", e.Format, e.Err)
}

func (e *ErrMalformedDocument) Unwrap() error {
	return e.Err
}

// ErrMissingInput indicates a caller contract violation: a required
// workflow input was absent. Fails fast, never contained.
type ErrMissingInput struct {
	Field string
}

func (e *ErrMissingInput) Error() string {
	return fmt.Sprintf("missing required input: %s", e.Field)
}

// ErrChallengeRejected indicates the bank rejected the submitted TAN.
// Not retried automatically; the caller must re-prompt.
type ErrChallengeRejected struct {
	Reason string
}

func (e *ErrChallengeRejected) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("challenge rejected: %s", e.Reason)
	}
	return "challenge rejected"
}

// ErrExternalService indicates a failure in an external service call
// (bank bridge, ledger backend).
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrSessionNotFound indicates an unknown or expired import session.
type ErrSessionNotFound struct {
	ID string
}

func (e *ErrSessionNotFound) Error() string {
	return fmt.Sprintf("import session not found: %s", e.ID)
}

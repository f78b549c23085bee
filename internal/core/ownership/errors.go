package ownership

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable rejection category. The HTTP bridge maps each
// kind to a distinct status code; clients decide retry behavior from it.
type Kind string

const (
	// KindMalformedInput marks a request missing required fields or
	// carrying values that fail shape validation. Never retried.
	KindMalformedInput Kind = "malformed_input"

	// KindSignatureInvalid marks a transition where at least one
	// participant's signature failed cryptographic verification.
	KindSignatureInvalid Kind = "signature_invalid"

	// KindOwnershipMismatch marks a transition whose claimed previous
	// owner set does not equal the recorded owners of the latest edition.
	KindOwnershipMismatch Kind = "ownership_mismatch"

	// KindDuplicateEdition marks a transition reusing an edition hash
	// already recorded on the certificate's chain.
	KindDuplicateEdition Kind = "duplicate_edition"

	// KindKeyResolutionFailure marks a participant whose public key
	// material could not be obtained or parsed. Infrastructure error,
	// safe to retry; no state was touched.
	KindKeyResolutionFailure Kind = "key_resolution_failure"

	// KindSubstrateUnavailable marks a failure on the ledger read or
	// write path. Infrastructure error, safe to retry.
	KindSubstrateUnavailable Kind = "substrate_unavailable"
)

// Error is the typed rejection returned by the validator and the registry.
// KeyID names the offending participant's key identifier when the failure
// is attributable to one participant.
type Error struct {
	Kind    Kind
	KeyID   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.KeyID != "" {
		msg = fmt.Sprintf("%s (kms_key_id %s)", msg, e.KeyID)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// New creates an error with a kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates an error with a kind and a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error that wraps an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the kind from err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

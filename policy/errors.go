/*
errors.go - Error taxonomy for the policy service

ERROR CATEGORIES:
  1. ErrInvalidRequest  - malformed identity, id on create, id mismatch,
                          missing or blank required fields
  2. ErrNotFound        - the addressed policy does not exist
  3. ErrStoreUnavailable - the backing store could not be reached

USAGE:
  Callers classify with errors.Is or the helpers at the bottom:

    if policy.IsNotFound(err) {
        // 404
    }

  RequestError carries the human-readable message shown to clients and
  unwraps to one of the sentinels.
*/
package policy

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidRequest is returned when the request violates an identity or
	// validation rule. Not retryable.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound is returned when no policy matches the id.
	ErrNotFound = errors.New("policy not found")

	// ErrStoreUnavailable is returned when the store cannot be reached.
	// Retries, if any, are the store adapter's business.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// RequestError is a classified error with a client-facing message.
type RequestError struct {
	Kind    error // one of the sentinels above
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Kind
}

func invalid(msg string) error {
	return &RequestError{Kind: ErrInvalidRequest, Message: msg}
}

func notFound(msg string) error {
	return &RequestError{Kind: ErrNotFound, Message: msg}
}

// Unavailable wraps a backend failure as ErrStoreUnavailable.
// Store adapters use it for every driver-level error.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}

// IsNotFound returns true if the error indicates a missing policy.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnavailable returns true if the store could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// Message returns the client-facing message of err.
func Message(err error) string {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Message
	}
	switch {
	case IsUnavailable(err):
		return "store unavailable"
	case IsNotFound(err):
		return "entity not found"
	}
	return err.Error()
}

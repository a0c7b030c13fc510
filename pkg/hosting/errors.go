package hosting

import (
	"errors"
	"fmt"
	"strings"
)

// Common store errors that can be checked with errors.Is().
var (
	// ErrValidation is returned when a provisioning record is malformed
	// or conflicts with existing records.
	ErrValidation = errors.New("invalid provisioning record")

	// ErrNotFound is returned when a session or certificate ID is unknown.
	ErrNotFound = errors.New("not found")

	// ErrCertificateInUse is returned when a certificate deletion is
	// blocked by an active distribution reference.
	ErrCertificateInUse = errors.New("certificate in use")

	// ErrUpstream is returned when an operation forwarded to the external
	// proxy process fails.
	ErrUpstream = errors.New("upstream proxy operation failed")
)

// ValidationError reports a malformed or conflicting provisioning record.
// The record is rejected without mutating store state.
type ValidationError struct {
	// Field is the dotted path of the offending field, when known.
	Field string

	// Message describes the problem.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid provisioning record: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid provisioning record: %s", e.Message)
}

// Is implements error matching for errors.Is().
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError reports a reference to an unknown session or certificate.
type NotFoundError struct {
	// Kind is "session" or "certificate".
	Kind string

	// ID is the identifier that was not found.
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Is implements error matching for errors.Is().
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// InUseError reports a certificate deletion blocked by sessions that
// still reference it.
type InUseError struct {
	// CertificateID is the certificate that could not be deleted.
	CertificateID string

	// SessionIDs are the sessions still referencing it.
	SessionIDs []string
}

// Error implements the error interface.
func (e *InUseError) Error() string {
	return fmt.Sprintf("certificate %q still in use by sessions: %s",
		e.CertificateID, strings.Join(e.SessionIDs, ", "))
}

// Is implements error matching for errors.Is().
func (e *InUseError) Is(target error) bool {
	return target == ErrCertificateInUse
}

// UpstreamError reports a failed operation forwarded to the supervised
// proxy process, such as a cache purge.
type UpstreamError struct {
	// Op names the forwarded operation.
	Op string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("proxy %s failed: %v", e.Op, e.Cause)
}

// Is implements error matching for errors.Is().
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// Unwrap returns the wrapped error for error chain traversal.
func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

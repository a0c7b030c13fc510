package supervisor

import (
	"errors"
	"fmt"
)

// Common supervisor errors that can be checked with errors.Is().
var (
	// ErrConfigInvalid is returned when a candidate artifact fails the
	// proxy's configuration check. The running proxy is untouched.
	ErrConfigInvalid = errors.New("proxy configuration invalid")

	// ErrStartup is returned when the proxy could not be brought up
	// within the retry budget.
	ErrStartup = errors.New("proxy startup failed")

	// ErrReload is returned when a promoted artifact failed to take
	// effect.
	ErrReload = errors.New("proxy reload failed")

	// ErrFailed is returned by operations attempted while the supervisor
	// is in the failed state.
	ErrFailed = errors.New("supervisor is in failed state")
)

// ConfigInvalidError reports a candidate artifact rejected by the
// proxy's validator before promotion.
type ConfigInvalidError struct {
	// Cause carries the validator output.
	Cause error
}

// Error implements the error interface.
func (e *ConfigInvalidError) Error() string {
	return fmt.Sprintf("proxy configuration invalid: %v", e.Cause)
}

// Is implements error matching for errors.Is().
func (e *ConfigInvalidError) Is(target error) bool {
	return target == ErrConfigInvalid
}

// Unwrap returns the wrapped error for error chain traversal.
func (e *ConfigInvalidError) Unwrap() error {
	return e.Cause
}

// StartupError reports an exhausted startup retry budget.
type StartupError struct {
	// Attempts is how many launches were tried.
	Attempts int

	// Cause is the error from the final attempt.
	Cause error
}

// Error implements the error interface.
func (e *StartupError) Error() string {
	return fmt.Sprintf("proxy startup failed after %d attempts: %v", e.Attempts, e.Cause)
}

// Is implements error matching for errors.Is().
func (e *StartupError) Is(target error) bool {
	return target == ErrStartup
}

// Unwrap returns the wrapped error for error chain traversal.
func (e *StartupError) Unwrap() error {
	return e.Cause
}

// ReloadError reports a reload that did not take effect.
type ReloadError struct {
	// RolledBack is true when the previous artifact was restored and
	// the proxy is healthy on it.
	RolledBack bool

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ReloadError) Error() string {
	if e.RolledBack {
		return fmt.Sprintf("proxy reload failed, rolled back to previous configuration: %v", e.Cause)
	}
	return fmt.Sprintf("proxy reload failed: %v", e.Cause)
}

// Is implements error matching for errors.Is().
func (e *ReloadError) Is(target error) bool {
	return target == ErrReload
}

// Unwrap returns the wrapped error for error chain traversal.
func (e *ReloadError) Unwrap() error {
	return e.Cause
}

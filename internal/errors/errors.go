// Package errors provides centralized error definitions and error handling
// utilities for the safewrite codebase. It defines domain-specific errors,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Domain-specific errors represent errors from the two core subsystems:
//   - LockError: errors related to the lock lifecycle (acquire, reclaim, release)
//   - WriteError: errors related to the atomic write/replace sequence
//
// Sentinel errors represent the fixed failure taxonomy:
//   - ErrLockHeld: an active, non-stale lock is owned by another session
//   - ErrLockLost: a stale-lock reclaim race was lost after the overwrite
//   - ErrLockCorrupt: the on-disk lock record cannot be parsed
//   - ErrNotLocked: a write was attempted without a held session
//   - ErrReplaceFailed: the atomic rename step itself failed
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewLockError("acquisition retries exhausted", errors.ErrLockHeld).
//		WithPath("/data/state.yaml").WithHolder(4321, "a91f03c2e7d8")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrLockHeld) { ... }
//
//	var lockErr *errors.LockError
//	if errors.As(err, &lockErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient contention that may succeed on retry (ErrLockHeld)
//   - UserFacing: errors safe to display to users (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
//
// ErrReplaceFailed and ErrLockCorrupt are never retryable: after a failed
// replace the filesystem state is ambiguous, and a corrupt record needs a
// human (or a forced reclaim), not another attempt.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Lock lifecycle sentinel errors
var (
	// ErrLockHeld indicates an active, non-stale lock owned by another session,
	// reported after the configured retries are exhausted.
	ErrLockHeld = New("lock held by another session")
	// ErrLockLost indicates a reclaim race that was lost: the re-read after
	// overwriting a stale record no longer matched our descriptor.
	ErrLockLost = New("lock reclaimed by another session")
	// ErrLockCorrupt indicates that the on-disk lock record is unparseable.
	ErrLockCorrupt = New("lock record is corrupt")
	// ErrLockStale indicates a lock record whose holder is dead or which has
	// exceeded the maximum permitted age.
	ErrLockStale = New("lock record is stale")
)

// Atomic write sentinel errors
var (
	// ErrNotLocked indicates a write attempted without a held session.
	ErrNotLocked = New("write attempted without a held lock")
	// ErrReplaceFailed indicates that the atomic rename step itself failed.
	// Filesystem state is ambiguous afterwards, so this is never retried.
	ErrReplaceFailed = New("atomic replace failed")
)

// General sentinel errors
var (
	// ErrCanceled indicates that an operation was canceled by the caller.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// SafewriteError is the base interface for all safewrite errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type SafewriteError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	// This is used by errors.Is() for error comparison.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// LockError represents errors related to the lock lifecycle.
//
// Example:
//
//	err := errors.NewLockError("retries exhausted", errors.ErrLockHeld)
//	err = err.WithPath("/data/state.yaml").WithHolder(4321, "a91f03c2e7d8")
//	fmt.Println(err) // "lock error [path=/data/state.yaml, pid=4321, session=a91f03c2e7d8]: retries exhausted: lock held by another session"
type LockError struct {
	baseError
	Path      string
	HolderPID int
	SessionID string
}

// NewLockError creates a new LockError.
func NewLockError(message string, cause error) *LockError {
	return &LockError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  errors.Is(cause, ErrLockHeld),
			userFacing: true,
		},
	}
}

// WithPath adds the target path to the error context.
func (e *LockError) WithPath(path string) *LockError {
	e.Path = path
	return e
}

// WithHolder adds the blocking holder's identity to the error context.
func (e *LockError) WithHolder(pid int, sessionID string) *LockError {
	e.HolderPID = pid
	e.SessionID = sessionID
	return e
}

// WithSeverity sets the error severity.
func (e *LockError) WithSeverity(s Severity) *LockError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *LockError) WithRetryable(r bool) *LockError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *LockError) Error() string {
	var parts []string
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	if e.HolderPID != 0 {
		parts = append(parts, fmt.Sprintf("pid=%d", e.HolderPID))
	}
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}

	prefix := "lock error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("lock error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *LockError) Is(target error) bool {
	if _, ok := target.(*LockError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// WriteError represents errors related to the atomic write/replace sequence.
//
// Example:
//
//	err := errors.NewWriteError("rename failed", errors.ErrReplaceFailed)
//	err = err.WithPath("/data/state.yaml").WithTempPath("/data/.safewrite-1a2b")
type WriteError struct {
	baseError
	Path     string
	TempPath string
}

// NewWriteError creates a new WriteError.
func NewWriteError(message string, cause error) *WriteError {
	return &WriteError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithPath adds the target path to the error context.
func (e *WriteError) WithPath(path string) *WriteError {
	e.Path = path
	return e
}

// WithTempPath adds the temp file path to the error context. The temp file is
// left in place after a failed replace, so the path matters for forensics.
func (e *WriteError) WithTempPath(path string) *WriteError {
	e.TempPath = path
	return e
}

// WithSeverity sets the error severity.
func (e *WriteError) WithSeverity(s Severity) *WriteError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *WriteError) Error() string {
	var parts []string
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	if e.TempPath != "" {
		parts = append(parts, fmt.Sprintf("temp=%s", e.TempPath))
	}

	prefix := "write error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("write error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *WriteError) Is(target error) bool {
	if _, ok := target.(*WriteError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or configuration.
//
// Example:
//
//	err := errors.NewValidationError("max attempts must be positive")
//	err = err.WithField("lock.max_attempts").WithValue(-1)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. Only lock contention is retryable; a failed
// replace or a corrupt record never is.
//
// Example:
//
//	if errors.IsRetryable(err) {
//	    time.Sleep(delay)
//	    return retry(operation)
//	}
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var swErr SafewriteError
	if As(err, &swErr) {
		return swErr.IsRetryable()
	}

	return Is(err, ErrLockHeld)
}

// IsUserFacing returns true if the error message is safe to display to end users.
//
// Example:
//
//	if errors.IsUserFacing(err) {
//	    displayToUser(err.Error())
//	} else {
//	    displayToUser("An internal error occurred")
//	    log.Error("internal error", "err", err)
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var swErr SafewriteError
	if As(err, &swErr) {
		return swErr.IsUserFacing()
	}

	var validation *ValidationError
	return As(err, &validation)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement SafewriteError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var swErr SafewriteError
	if As(err, &swErr) {
		return swErr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to persist record")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to lock %s", path)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

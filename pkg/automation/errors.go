// Package automation implements the trigger-matching, scheduling and
// execution core of the tenant automation engine.
package automation

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an execution failure for retry policy.
type ErrorKind int

const (
	// ErrorKindTransient failures (collaborator unreachable, rate-limited,
	// timeout) are retried with exponential backoff up to max_attempts.
	ErrorKindTransient ErrorKind = iota
	// ErrorKindPermanent failures (workflow gone, malformed configuration,
	// recipient without a contact method) fail the execution immediately.
	ErrorKindPermanent
)

func (k ErrorKind) String() string {
	if k == ErrorKindPermanent {
		return "permanent"
	}

	return "transient"
}

// ExecutionError carries the retry classification alongside the underlying
// failure. The scheduler branches on the kind via errors.As, never on
// message text.
type ExecutionError struct {
	Kind ErrorKind
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable failure.
func Transient(err error) error {
	return &ExecutionError{Kind: ErrorKindTransient, Err: err}
}

// Transientf formats a retryable failure.
func Transientf(format string, args ...any) error {
	return Transient(fmt.Errorf(format, args...))
}

// Permanent wraps err as a non-retryable failure.
func Permanent(err error) error {
	return &ExecutionError{Kind: ErrorKindPermanent, Err: err}
}

// Permanentf formats a non-retryable failure.
func Permanentf(format string, args ...any) error {
	return Permanent(fmt.Errorf(format, args...))
}

// IsPermanent reports whether err is classified as non-retryable. Errors
// without a classification count as transient: when a collaborator forgot to
// classify, retrying is the safer default.
func IsPermanent(err error) bool {
	var executionErr *ExecutionError
	if errors.As(err, &executionErr) {
		return executionErr.Kind == ErrorKindPermanent
	}

	return false
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return err != nil && !IsPermanent(err)
}

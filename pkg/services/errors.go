// Package services provides the application services behind the HTTP API:
// workflow management and the execution audit trail.
package services

import (
	"errors"
	"fmt"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest        = errors.New("invalid request")
	ErrWorkflowNil           = errors.New("workflow cannot be nil")
	ErrTenantRequired        = errors.New("tenant ID is required")
	ErrUnknownTriggerType    = errors.New("unknown trigger type")
	ErrStepsRequired         = errors.New("workflow must have at least one action step")
	ErrInvalidStepConfig     = errors.New("invalid action step configuration")
	ErrInvalidBusinessHours  = errors.New("invalid business hours policy")
	ErrInvalidExecutionQuery = errors.New("invalid execution log query")

	// Business Logic Conflicts (409 Conflict).
	ErrTenantMismatch = errors.New("workflow belongs to another tenant")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrTenantRequired) ||
		errors.Is(err, ErrUnknownTriggerType) ||
		errors.Is(err, ErrStepsRequired) ||
		errors.Is(err, ErrInvalidStepConfig) ||
		errors.Is(err, ErrInvalidBusinessHours) ||
		errors.Is(err, ErrInvalidExecutionQuery)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrTenantMismatch)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

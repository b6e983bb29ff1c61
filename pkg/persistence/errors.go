// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionLogNotFound indicates an execution log was not found by the given identifier.
	ErrExecutionLogNotFound = errors.New("execution log not found")

	// ErrExecutionNotClaimable indicates a conditional status transition lost
	// the race: the entry is not in the state the caller expected.
	ErrExecutionNotClaimable = errors.New("execution log not in expected status")

	// ErrTerminalExecution indicates an attempt to mutate a completed or
	// failed execution log.
	ErrTerminalExecution = errors.New("execution log already terminal")
)

// WorkflowError wraps workflow storage errors with operation context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g. "Save", "Delete")
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{Op: op, WorkflowID: workflowID, Err: err}
}

// ExecutionLogError wraps execution-log storage errors with operation context.
type ExecutionLogError struct {
	Op          string
	ExecutionID string
	Err         error
}

func (e *ExecutionLogError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionLogError) Unwrap() error {
	return e.Err
}

func (e *ExecutionLogError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionLogError creates a new execution-log error with context.
func NewExecutionLogError(op, executionID string, err error) *ExecutionLogError {
	return &ExecutionLogError{Op: op, ExecutionID: executionID, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsExecutionLogNotFound checks if an error indicates an execution log was not found.
func IsExecutionLogNotFound(err error) bool {
	return errors.Is(err, ErrExecutionLogNotFound)
}

// IsNotClaimable checks if an error indicates a lost conditional transition.
func IsNotClaimable(err error) bool {
	return errors.Is(err, ErrExecutionNotClaimable)
}

// IsTerminalExecution checks if an error indicates a mutation of a terminal entry.
func IsTerminalExecution(err error) bool {
	return errors.Is(err, ErrTerminalExecution)
}

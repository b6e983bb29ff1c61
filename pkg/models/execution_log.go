package models

import "time"

// ExecutionStatus is the state of one queued workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusDeferred  ExecutionStatus = "deferred"
)

// IsTerminal reports whether the status admits no further transitions.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// Known reports whether s is one of the defined execution statuses.
func (s ExecutionStatus) Known() bool {
	switch s {
	case ExecutionStatusPending, ExecutionStatusRunning, ExecutionStatusCompleted,
		ExecutionStatusFailed, ExecutionStatusDeferred:
		return true
	default:
		return false
	}
}

// StepStatus is the outcome of a single action step within one attempt.
type StepStatus string

const (
	StepStatusSuccess StepStatus = "success"
	StepStatusFailure StepStatus = "failure"
	StepStatusSkipped StepStatus = "skipped"
)

// StepOutcome records what happened to one step of one dispatch attempt.
// The audit history view renders this list verbatim.
type StepOutcome struct {
	StepIndex  int           `json:"step_index"`
	Variant    ActionVariant `json:"variant"`
	Status     StepStatus    `json:"status"`
	Error      string        `json:"error,omitempty"`
	ExternalID string        `json:"external_id,omitempty"`
}

// ExecutionLog is the durable record of one attempt to run one workflow
// against one business event. It doubles as the retry queue entry: the
// scheduler claims pending rows and drives the
// pending -> running -> {completed|failed|deferred} state machine.
type ExecutionLog struct {
	ID         string      `json:"id"`
	WorkflowID string      `json:"workflow_id"`
	TenantID   string      `json:"tenant_id"`

	TriggerType TriggerType `json:"trigger_type"`
	// TriggerPayload is an immutable snapshot of the event at enqueue time so
	// replays stay reproducible even if the source entity changes afterwards.
	TriggerPayload BusinessEvent `json:"trigger_payload"`

	Status        ExecutionStatus `json:"status"`
	AttemptCount  int             `json:"attempt_count"`
	MaxAttempts   int             `json:"max_attempts"`
	NextAttemptAt *time.Time      `json:"next_attempt_at,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ErrorMessage holds the most recent failure only.
	ErrorMessage string `json:"error_message,omitempty"`
	// ActionsExecuted is append-only across attempts.
	ActionsExecuted []StepOutcome `json:"actions_executed,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExecutionLogFilter narrows audit reads over a tenant's execution history.
type ExecutionLogFilter struct {
	WorkflowID  string
	Status      ExecutionStatus
	TriggerType TriggerType
	Limit       int
	Offset      int
}

package models

import "time"

// Workflow is a tenant-owned automation definition: a trigger type, a flat
// AND-list of conditions, and an ordered sequence of action steps.
type Workflow struct {
	ID                string      `json:"id"`
	TenantID          string      `json:"tenant_id"      validate:"required"`
	Name              string      `json:"name"           validate:"required,min=3"`
	Active            bool        `json:"active"`
	TriggerType       TriggerType `json:"trigger_type"   validate:"required"`
	TriggerConditions []Predicate `json:"trigger_conditions"`
	Steps             []ActionStep `json:"steps"          validate:"required,min=1,dive"`

	BusinessHours *BusinessHoursPolicy `json:"business_hours,omitempty"`

	// Monotonic counters, updated only by the scheduler's finalizing writes.
	ExecutionCount int64 `json:"execution_count"`
	SuccessCount   int64 `json:"success_count"`
	FailureCount   int64 `json:"failure_count"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Eligible reports whether the workflow may be matched against events.
// A workflow with zero steps is never matched, even if it slipped past
// save-time validation.
func (w *Workflow) Eligible() bool {
	return w.Active && len(w.Steps) > 0 && w.DeletedAt == nil
}

// WorkflowCounters is the audit-facing counter snapshot for one workflow.
type WorkflowCounters struct {
	WorkflowID     string `json:"workflow_id"`
	ExecutionCount int64  `json:"execution_count"`
	SuccessCount   int64  `json:"success_count"`
	FailureCount   int64  `json:"failure_count"`
}

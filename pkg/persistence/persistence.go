// Package persistence provides the data storage abstraction for workflows
// and execution logs.
package persistence

import (
	"context"
	"time"

	"github.com/dispatchd/fieldline/pkg/models"
)

// Persistence is the durable store behind the automation engine. The two
// tables it fronts — workflows and execution_logs — are the subsystem's only
// persisted state, and every execution-log state transition is a conditional
// update on the current status so concurrent schedulers never double-claim
// an entry.
type Persistence interface {
	WorkflowRepository
	ExecutionLogRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores tenant workflow definitions. Writes come from the
// builder API only; the matching path is read-mostly.
type WorkflowRepository interface {
	Workflows(ctx context.Context, tenantID string) ([]*models.Workflow, error)

	// ActiveWorkflowsByTrigger returns the tenant's active workflows for one
	// trigger type in creation order, which fixes the fan-out order when an
	// event matches several workflows.
	ActiveWorkflowsByTrigger(ctx context.Context, tenantID string, trigger models.TriggerType) ([]*models.Workflow, error)

	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error

	// DeleteWorkflow soft-deletes the workflow. Historical execution logs are
	// orphaned, never mutated.
	DeleteWorkflow(ctx context.Context, id string) error

	WorkflowCounters(ctx context.Context, workflowID string) (*models.WorkflowCounters, error)
}

// ExecutionLogRepository stores the durable execution queue and audit trail.
//
// Claim and finalization methods must be conditional on the expected current
// status; a method that finds the row in another state returns
// ErrExecutionNotClaimable (claims) or ErrTerminalExecution (finalized rows)
// rather than overwriting it.
type ExecutionLogRepository interface {
	CreateExecutionLog(ctx context.Context, entry *models.ExecutionLog) error
	ExecutionLogByID(ctx context.Context, id string) (*models.ExecutionLog, error)
	ExecutionLogs(ctx context.Context, tenantID string, filter models.ExecutionLogFilter) ([]*models.ExecutionLog, error)

	// RequeueDueDeferred flips deferred entries whose next_attempt_at has
	// passed back to pending, and reports how many it moved.
	RequeueDueDeferred(ctx context.Context, now time.Time) (int, error)

	// ClaimDueExecutions atomically transitions up to limit pending entries
	// that are due (next_attempt_at null or <= now) to running, oldest first,
	// recording started_at. Each returned entry is owned exclusively by the
	// caller until it is finalized, rescheduled or deferred.
	ClaimDueExecutions(ctx context.Context, now time.Time, limit int) ([]*models.ExecutionLog, error)

	// DeferExecution parks a running entry until nextAttemptAt.
	DeferExecution(ctx context.Context, id string, nextAttemptAt time.Time) error

	// RescheduleRetry returns a running entry to pending with an updated
	// attempt count, backoff deadline and last error.
	RescheduleRetry(ctx context.Context, id string, attemptCount int, nextAttemptAt time.Time, errorMessage string, outcomes []models.StepOutcome) error

	// FinalizeCompleted marks a running entry completed and, in the same
	// write, bumps the workflow's execution and success counters.
	FinalizeCompleted(ctx context.Context, id string, attemptCount int, outcomes []models.StepOutcome) error

	// FinalizeFailed marks a running entry failed with the final error and,
	// in the same write, bumps the workflow's execution and failure counters.
	FinalizeFailed(ctx context.Context, id string, attemptCount int, errorMessage string, outcomes []models.StepOutcome) error

	// ReapStaleRunning returns entries stuck in running longer than the
	// cutoff (crashed worker) to pending, and reports how many it moved.
	ReapStaleRunning(ctx context.Context, olderThan time.Time) (int, error)
}

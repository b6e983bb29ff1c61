// Package memory provides an in-memory persistence implementation for tests
// and local development. It honors the same conditional state-transition
// contract as the SQL implementation, so scheduler behavior is identical
// against either store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dispatchd/fieldline/pkg/models"
	"github.com/dispatchd/fieldline/pkg/persistence"
)

type Persistence struct {
	mu         sync.Mutex
	workflows  map[string]*models.Workflow
	executions map[string]*models.ExecutionLog
}

// NewPersistence creates an empty in-memory store.
func NewPersistence() *Persistence {
	return &Persistence{
		workflows:  make(map[string]*models.Workflow),
		executions: make(map[string]*models.ExecutionLog),
	}
}

func (p *Persistence) HealthCheck(ctx context.Context) error { return nil }

func (p *Persistence) Close(ctx context.Context) error { return nil }

func (p *Persistence) Workflows(ctx context.Context, tenantID string) ([]*models.Workflow, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([]*models.Workflow, 0)

	for _, workflow := range p.workflows {
		if workflow.TenantID == tenantID && workflow.DeletedAt == nil {
			result = append(result, copyWorkflow(workflow))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (p *Persistence) ActiveWorkflowsByTrigger(ctx context.Context, tenantID string, trigger models.TriggerType) ([]*models.Workflow, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([]*models.Workflow, 0)

	for _, workflow := range p.workflows {
		if workflow.TenantID == tenantID &&
			workflow.TriggerType == trigger &&
			workflow.Active &&
			workflow.DeletedAt == nil {
			result = append(result, copyWorkflow(workflow))
		}
	}

	// Creation order fixes the fan-out order for multi-match events.
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	workflow, exists := p.workflows[id]
	if !exists || workflow.DeletedAt != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return copyWorkflow(workflow), nil
}

func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if existing, exists := p.workflows[workflow.ID]; exists {
		// Counters belong to the scheduler's finalizing writes.
		workflow.ExecutionCount = existing.ExecutionCount
		workflow.SuccessCount = existing.SuccessCount
		workflow.FailureCount = existing.FailureCount
		workflow.CreatedAt = existing.CreatedAt
	}

	p.workflows[workflow.ID] = copyWorkflow(workflow)

	return nil
}

func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	workflow, exists := p.workflows[id]
	if !exists || workflow.DeletedAt != nil {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	now := time.Now().UTC()
	workflow.DeletedAt = &now
	workflow.Active = false
	workflow.UpdatedAt = now

	return nil
}

func (p *Persistence) WorkflowCounters(ctx context.Context, workflowID string) (*models.WorkflowCounters, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	workflow, exists := p.workflows[workflowID]
	if !exists {
		return nil, persistence.NewWorkflowError("Counters", workflowID, persistence.ErrWorkflowNotFound)
	}

	return &models.WorkflowCounters{
		WorkflowID:     workflowID,
		ExecutionCount: workflow.ExecutionCount,
		SuccessCount:   workflow.SuccessCount,
		FailureCount:   workflow.FailureCount,
	}, nil
}

func (p *Persistence) CreateExecutionLog(ctx context.Context, entry *models.ExecutionLog) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}

	entry.UpdatedAt = now

	if entry.Status == "" {
		entry.Status = models.ExecutionStatusPending
	}

	p.executions[entry.ID] = copyExecutionLog(entry)

	return nil
}

func (p *Persistence) ExecutionLogByID(ctx context.Context, id string) (*models.ExecutionLog, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, exists := p.executions[id]
	if !exists {
		return nil, persistence.NewExecutionLogError("GetByID", id, persistence.ErrExecutionLogNotFound)
	}

	return copyExecutionLog(entry), nil
}

func (p *Persistence) ExecutionLogs(ctx context.Context, tenantID string, filter models.ExecutionLogFilter) ([]*models.ExecutionLog, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([]*models.ExecutionLog, 0)

	for _, entry := range p.executions {
		if entry.TenantID != tenantID {
			continue
		}

		if filter.WorkflowID != "" && entry.WorkflowID != filter.WorkflowID {
			continue
		}

		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}

		if filter.TriggerType != "" && entry.TriggerType != filter.TriggerType {
			continue
		}

		result = append(result, copyExecutionLog(entry))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*models.ExecutionLog{}, nil
		}

		result = result[filter.Offset:]
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	if len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func (p *Persistence) RequeueDueDeferred(ctx context.Context, now time.Time) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	moved := 0

	for _, entry := range p.executions {
		if entry.Status == models.ExecutionStatusDeferred &&
			entry.NextAttemptAt != nil &&
			!entry.NextAttemptAt.After(now) {
			entry.Status = models.ExecutionStatusPending
			entry.UpdatedAt = now.UTC()
			moved++
		}
	}

	return moved, nil
}

func (p *Persistence) ClaimDueExecutions(ctx context.Context, now time.Time, limit int) ([]*models.ExecutionLog, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	due := make([]*models.ExecutionLog, 0)

	for _, entry := range p.executions {
		if entry.Status != models.ExecutionStatusPending {
			continue
		}

		if entry.NextAttemptAt != nil && entry.NextAttemptAt.After(now) {
			continue
		}

		due = append(due, entry)
	}

	// Oldest first: FIFO fairness within a poll batch.
	sort.Slice(due, func(i, j int) bool {
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})

	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*models.ExecutionLog, 0, len(due))
	startedAt := now.UTC()

	for _, entry := range due {
		entry.Status = models.ExecutionStatusRunning
		entry.StartedAt = &startedAt
		entry.UpdatedAt = startedAt
		claimed = append(claimed, copyExecutionLog(entry))
	}

	return claimed, nil
}

func (p *Persistence) DeferExecution(ctx context.Context, id string, nextAttemptAt time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, err := p.runningEntry("Defer", id)
	if err != nil {
		return err
	}

	next := nextAttemptAt.UTC()
	entry.Status = models.ExecutionStatusDeferred
	entry.NextAttemptAt = &next
	entry.StartedAt = nil
	entry.UpdatedAt = time.Now().UTC()

	return nil
}

func (p *Persistence) RescheduleRetry(ctx context.Context, id string, attemptCount int, nextAttemptAt time.Time, errorMessage string, outcomes []models.StepOutcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, err := p.runningEntry("RescheduleRetry", id)
	if err != nil {
		return err
	}

	next := nextAttemptAt.UTC()
	entry.Status = models.ExecutionStatusPending
	entry.AttemptCount = attemptCount
	entry.NextAttemptAt = &next
	entry.ErrorMessage = errorMessage
	entry.ActionsExecuted = append(entry.ActionsExecuted, outcomes...)
	entry.StartedAt = nil
	entry.UpdatedAt = time.Now().UTC()

	return nil
}

func (p *Persistence) FinalizeCompleted(ctx context.Context, id string, attemptCount int, outcomes []models.StepOutcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.finalize("FinalizeCompleted", id, models.ExecutionStatusCompleted, attemptCount, "", outcomes)
}

func (p *Persistence) FinalizeFailed(ctx context.Context, id string, attemptCount int, errorMessage string, outcomes []models.StepOutcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.finalize("FinalizeFailed", id, models.ExecutionStatusFailed, attemptCount, errorMessage, outcomes)
}

func (p *Persistence) ReapStaleRunning(ctx context.Context, olderThan time.Time) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	moved := 0

	for _, entry := range p.executions {
		if entry.Status == models.ExecutionStatusRunning &&
			entry.StartedAt != nil &&
			entry.StartedAt.Before(olderThan) {
			entry.Status = models.ExecutionStatusPending
			entry.StartedAt = nil
			entry.UpdatedAt = time.Now().UTC()
			moved++
		}
	}

	return moved, nil
}

// finalize applies a terminal transition and bumps the workflow counters in
// the same critical section, mirroring the SQL implementation's transaction.
// Callers must hold the lock.
func (p *Persistence) finalize(op, id string, status models.ExecutionStatus, attemptCount int, errorMessage string, outcomes []models.StepOutcome) error {
	entry, err := p.runningEntry(op, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	entry.Status = status
	entry.AttemptCount = attemptCount
	entry.ErrorMessage = errorMessage
	entry.ActionsExecuted = append(entry.ActionsExecuted, outcomes...)
	entry.CompletedAt = &now
	entry.NextAttemptAt = nil
	entry.UpdatedAt = now

	workflow, exists := p.workflows[entry.WorkflowID]
	if exists {
		workflow.ExecutionCount++

		if status == models.ExecutionStatusCompleted {
			workflow.SuccessCount++
		} else {
			workflow.FailureCount++
		}
	}

	return nil
}

// runningEntry fetches an entry expected to be in running state. Callers must
// hold the lock.
func (p *Persistence) runningEntry(op, id string) (*models.ExecutionLog, error) {
	entry, exists := p.executions[id]
	if !exists {
		return nil, persistence.NewExecutionLogError(op, id, persistence.ErrExecutionLogNotFound)
	}

	if entry.Status.IsTerminal() {
		return nil, persistence.NewExecutionLogError(op, id, persistence.ErrTerminalExecution)
	}

	if entry.Status != models.ExecutionStatusRunning {
		return nil, persistence.NewExecutionLogError(op, id, persistence.ErrExecutionNotClaimable)
	}

	return entry, nil
}

func copyWorkflow(workflow *models.Workflow) *models.Workflow {
	clone := *workflow

	clone.TriggerConditions = append([]models.Predicate(nil), workflow.TriggerConditions...)
	clone.Steps = append([]models.ActionStep(nil), workflow.Steps...)

	if workflow.BusinessHours != nil {
		policy := *workflow.BusinessHours

		if workflow.BusinessHours.Days != nil {
			policy.Days = make(map[string]models.BusinessWindow, len(workflow.BusinessHours.Days))
			for day, window := range workflow.BusinessHours.Days {
				policy.Days[day] = window
			}
		}

		clone.BusinessHours = &policy
	}

	if workflow.DeletedAt != nil {
		deletedAt := *workflow.DeletedAt
		clone.DeletedAt = &deletedAt
	}

	return &clone
}

func copyExecutionLog(entry *models.ExecutionLog) *models.ExecutionLog {
	clone := *entry

	clone.ActionsExecuted = append([]models.StepOutcome(nil), entry.ActionsExecuted...)

	if entry.NextAttemptAt != nil {
		next := *entry.NextAttemptAt
		clone.NextAttemptAt = &next
	}

	if entry.StartedAt != nil {
		started := *entry.StartedAt
		clone.StartedAt = &started
	}

	if entry.CompletedAt != nil {
		completed := *entry.CompletedAt
		clone.CompletedAt = &completed
	}

	return &clone
}

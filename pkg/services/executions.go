package services

import (
	"context"
	"fmt"

	"github.com/dispatchd/fieldline/pkg/models"
	"github.com/dispatchd/fieldline/pkg/persistence"
)

// ErrExecutionLogNotFound is returned when an execution log is not found.
var ErrExecutionLogNotFound = persistence.ErrExecutionLogNotFound

// Executions is the read service over the execution audit trail.
type Executions struct {
	persistence persistence.Persistence
}

// NewExecutions creates a new execution log service.
func NewExecutions(persistence persistence.Persistence) *Executions {
	return &Executions{persistence: persistence}
}

// List retrieves a tenant's execution logs, newest first, with optional
// workflow, status and trigger-type filters.
func (e *Executions) List(ctx context.Context, tenantID string, filter models.ExecutionLogFilter) ([]*models.ExecutionLog, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}

	if filter.Status != "" && !filter.Status.Known() {
		return nil, NewValidationError(
			"ListExecutions",
			"INVALID_STATUS",
			fmt.Sprintf("unknown execution status '%s'", filter.Status),
			ErrInvalidExecutionQuery,
		)
	}

	logs, err := e.persistence.ExecutionLogs(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution logs: %w", err)
	}

	return logs, nil
}

// FetchByID retrieves one execution log, scoped to the tenant.
func (e *Executions) FetchByID(ctx context.Context, tenantID, id string) (*models.ExecutionLog, error) {
	entry, err := e.persistence.ExecutionLogByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if entry.TenantID != tenantID {
		return nil, ErrExecutionLogNotFound
	}

	return entry, nil
}

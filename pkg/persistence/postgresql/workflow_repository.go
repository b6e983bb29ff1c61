package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dispatchd/fieldline/pkg/models"
	"github.com/dispatchd/fieldline/pkg/persistence"
)

const workflowColumns = `
	id
  , tenant_id
  , name
  , active
  , trigger_type
  , trigger_conditions
  , steps
  , business_hours
  , execution_count
  , success_count
  , failure_count
  , created_at
  , updated_at
  , deleted_at
`

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger.With("module", "workflow_repository")}
}

// GetAll returns all live workflows for a tenant, newest first.
func (r *WorkflowRepository) GetAll(ctx context.Context, tenantID string) ([]*models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`

	return r.queryWorkflows(ctx, query, tenantID)
}

// GetActiveByTrigger returns active workflows for a tenant and trigger type
// in creation order, which fixes the fan-out order for multi-match events.
func (r *WorkflowRepository) GetActiveByTrigger(ctx context.Context, tenantID string, trigger models.TriggerType) ([]*models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE tenant_id = $1
		  AND trigger_type = $2
		  AND active
		  AND deleted_at IS NULL
		ORDER BY created_at ASC
	`

	return r.queryWorkflows(ctx, query, tenantID, string(trigger))
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE id = $1 AND deleted_at IS NULL
	`

	workflow, err := r.scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

// Save upserts a workflow. Counters are never written here; they belong to
// the scheduler's finalizing updates.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	conditions, err := json.Marshal(workflow.TriggerConditions)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("failed to marshal trigger conditions: %w", err))
	}

	steps, err := json.Marshal(workflow.Steps)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("failed to marshal steps: %w", err))
	}

	var businessHours any

	if workflow.BusinessHours != nil {
		encoded, err := json.Marshal(workflow.BusinessHours)
		if err != nil {
			return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("failed to marshal business hours: %w", err))
		}

		businessHours = encoded
	}

	query := `
		INSERT INTO workflows (
			id, tenant_id, name, active, trigger_type,
			trigger_conditions, steps, business_hours,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , active = EXCLUDED.active
		  , trigger_type = EXCLUDED.trigger_type
		  , trigger_conditions = EXCLUDED.trigger_conditions
		  , steps = EXCLUDED.steps
		  , business_hours = EXCLUDED.business_hours
		  , updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.TenantID,
		workflow.Name,
		workflow.Active,
		string(workflow.TriggerType),
		conditions,
		steps,
		businessHours,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

// Delete soft-deletes a workflow. Execution logs for it are left untouched.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE workflows SET deleted_at = $1, active = FALSE, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL",
		time.Now().UTC(), id,
	)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// Counters returns the workflow's monotonic execution counters.
func (r *WorkflowRepository) Counters(ctx context.Context, workflowID string) (*models.WorkflowCounters, error) {
	counters := &models.WorkflowCounters{WorkflowID: workflowID}

	err := r.db.QueryRowContext(ctx,
		"SELECT execution_count, success_count, failure_count FROM workflows WHERE id = $1",
		workflowID,
	).Scan(&counters.ExecutionCount, &counters.SuccessCount, &counters.FailureCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("Counters", workflowID, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to query workflow counters: %w", err)
	}

	return counters, nil
}

func (r *WorkflowRepository) queryWorkflows(ctx context.Context, query string, args ...any) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := r.scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *WorkflowRepository) scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow      models.Workflow
		triggerType   string
		conditions    []byte
		steps         []byte
		businessHours []byte
		deletedAt     sql.NullTime
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.TenantID,
		&workflow.Name,
		&workflow.Active,
		&triggerType,
		&conditions,
		&steps,
		&businessHours,
		&workflow.ExecutionCount,
		&workflow.SuccessCount,
		&workflow.FailureCount,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	workflow.TriggerType = models.TriggerType(triggerType)

	err = json.Unmarshal(conditions, &workflow.TriggerConditions)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger conditions: %w", err)
	}

	err = json.Unmarshal(steps, &workflow.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}

	if len(businessHours) > 0 {
		workflow.BusinessHours = &models.BusinessHoursPolicy{}

		err = json.Unmarshal(businessHours, workflow.BusinessHours)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal business hours: %w", err)
		}
	}

	if deletedAt.Valid {
		workflow.DeletedAt = &deletedAt.Time
	}

	return &workflow, nil
}

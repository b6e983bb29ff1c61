package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dispatchd/fieldline/pkg/models"
	"github.com/dispatchd/fieldline/pkg/persistence"
	"github.com/dispatchd/fieldline/pkg/registry"
)

// ErrWorkflowNotFound is returned when a workflow is not found.
var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

// WorkflowInvalidator is notified when a workflow definition changes so any
// cached copy can be dropped. The redis cache implements it.
type WorkflowInvalidator interface {
	Invalidate(ctx context.Context, tenantID string, trigger models.TriggerType)
}

// Workflow is the workflow management service behind the builder API.
type Workflow struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	validate    *validator.Validate
	invalidator WorkflowInvalidator
}

// NewWorkflow creates a new workflow service. invalidator may be nil when no
// cache sits in front of the store.
func NewWorkflow(persistence persistence.Persistence, reg *registry.Registry, invalidator WorkflowInvalidator) *Workflow {
	return &Workflow{
		persistence: persistence,
		registry:    reg,
		validate:    validator.New(),
		invalidator: invalidator,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List retrieves all of a tenant's workflows.
func (w *Workflow) List(ctx context.Context, tenantID string) ([]*models.Workflow, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}

	workflows, err := w.persistence.Workflows(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// FetchByID retrieves a workflow by its ID, scoped to the tenant.
func (w *Workflow) FetchByID(ctx context.Context, tenantID, id string) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow.TenantID != tenantID {
		// Cross-tenant probes look identical to a miss.
		return nil, ErrWorkflowNotFound
	}

	return workflow, nil
}

// Create validates and stores a new workflow.
func (w *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	err := w.validateWorkflow(workflow)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	workflow.ID = uuid.New().String()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now
	workflow.ExecutionCount = 0
	workflow.SuccessCount = 0
	workflow.FailureCount = 0

	err = w.persistence.SaveWorkflow(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	w.invalidate(ctx, workflow)

	return workflow, nil
}

// Update modifies an existing workflow by its ID.
func (w *Workflow) Update(ctx context.Context, tenantID, workflowID string, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	existing, err := w.FetchByID(ctx, tenantID, workflowID)
	if err != nil {
		return nil, err
	}

	workflow.TenantID = tenantID

	err = w.validateWorkflow(workflow)
	if err != nil {
		return nil, err
	}

	workflow.ID = workflowID
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = time.Now().UTC()

	err = w.persistence.SaveWorkflow(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	w.invalidate(ctx, existing)
	w.invalidate(ctx, workflow)

	return workflow, nil
}

// Delete soft-deletes a workflow by its ID. Historical execution logs are
// kept.
func (w *Workflow) Delete(ctx context.Context, tenantID, workflowID string) error {
	existing, err := w.FetchByID(ctx, tenantID, workflowID)
	if err != nil {
		return err
	}

	err = w.persistence.DeleteWorkflow(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	w.invalidate(ctx, existing)

	return nil
}

// Counters returns the workflow's audit counters.
func (w *Workflow) Counters(ctx context.Context, tenantID, workflowID string) (*models.WorkflowCounters, error) {
	_, err := w.FetchByID(ctx, tenantID, workflowID)
	if err != nil {
		return nil, err
	}

	return w.persistence.WorkflowCounters(ctx, workflowID)
}

func (w *Workflow) invalidate(ctx context.Context, workflow *models.Workflow) {
	if w.invalidator == nil {
		return
	}

	w.invalidator.Invalidate(ctx, workflow.TenantID, workflow.TriggerType)
}

// validateWorkflow enforces the save-time contract: struct-level constraints,
// a known trigger type, valid predicates and at least one schema-valid step.
func (w *Workflow) validateWorkflow(workflow *models.Workflow) error {
	err := w.validate.Struct(workflow)
	if err != nil {
		return NewValidationError("validateWorkflow", "INVALID_WORKFLOW", err.Error(), ErrInvalidRequest)
	}

	if !models.IsKnownTriggerType(workflow.TriggerType) {
		return NewValidationError(
			"validateWorkflow",
			"UNKNOWN_TRIGGER_TYPE",
			fmt.Sprintf("unknown trigger type '%s'", workflow.TriggerType),
			ErrUnknownTriggerType,
		)
	}

	if len(workflow.Steps) == 0 {
		return NewValidationError("validateWorkflow", "STEPS_REQUIRED", "workflow has no action steps", ErrStepsRequired)
	}

	for index, condition := range workflow.TriggerConditions {
		err = condition.Validate()
		if err != nil {
			return NewValidationError(
				"validateWorkflow",
				"INVALID_CONDITION",
				fmt.Sprintf("condition %d: %v", index, err),
				ErrInvalidRequest,
			)
		}
	}

	for index, step := range workflow.Steps {
		err = w.registry.ValidateStep(step)
		if err != nil {
			return NewValidationError(
				"validateWorkflow",
				"INVALID_STEP",
				fmt.Sprintf("step %d: %v", index, err),
				ErrInvalidStepConfig,
			)
		}
	}

	if workflow.BusinessHours != nil && workflow.BusinessHours.Enabled {
		err = workflow.BusinessHours.Validate()
		if err != nil {
			return NewValidationError("validateWorkflow", "INVALID_BUSINESS_HOURS", err.Error(), ErrInvalidBusinessHours)
		}
	}

	return nil
}

package services_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchd/fieldline/pkg/models"
	"github.com/dispatchd/fieldline/pkg/persistence/memory"
	"github.com/dispatchd/fieldline/pkg/registry"
	"github.com/dispatchd/fieldline/pkg/services"
)

func newWorkflowService() (*services.Workflow, *memory.Persistence) {
	store := memory.NewPersistence()

	return services.NewWorkflow(store, registry.NewRegistry(slog.Default()), nil), store
}

func validWorkflow() *models.Workflow {
	return &models.Workflow{
		TenantID:    "tenant-1",
		Name:        "overdue invoice chaser",
		Active:      true,
		TriggerType: models.TriggerInvoiceOverdue,
		TriggerConditions: []models.Predicate{
			{Field: "entity.total", Operator: models.OperatorGte, Value: 50},
		},
		Steps: []models.ActionStep{
			{
				Variant: models.ActionSendEmail,
				Email: &models.EmailStepConfig{
					RecipientSelector: "entity.client.email",
					Subject:           "Invoice overdue",
					Body:              "Please pay",
				},
			},
		},
	}
}

func TestWorkflowService_CreateAssignsIdentityAndResetsCounters(t *testing.T) {
	service, _ := newWorkflowService()

	input := validWorkflow()
	input.ExecutionCount = 99

	created, err := service.Create(t.Context(), input)
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Zero(t, created.ExecutionCount)

	fetched, err := service.FetchByID(t.Context(), "tenant-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, fetched.Name)
}

func TestWorkflowService_CreateRejectsZeroStepWorkflow(t *testing.T) {
	service, _ := newWorkflowService()

	input := validWorkflow()
	input.Steps = nil

	_, err := service.Create(t.Context(), input)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestWorkflowService_CreateRejectsUnknownTriggerType(t *testing.T) {
	service, _ := newWorkflowService()

	input := validWorkflow()
	input.TriggerType = "job.teleported"

	_, err := service.Create(t.Context(), input)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrUnknownTriggerType)
}

func TestWorkflowService_CreateRejectsBadStepConfig(t *testing.T) {
	service, _ := newWorkflowService()

	input := validWorkflow()
	input.Steps = []models.ActionStep{
		{
			Variant: models.ActionSendEmail,
			Email:   &models.EmailStepConfig{RecipientSelector: "entity.client.email"},
		},
	}

	_, err := service.Create(t.Context(), input)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrInvalidStepConfig)
}

func TestWorkflowService_CreateRejectsBadPredicate(t *testing.T) {
	service, _ := newWorkflowService()

	input := validWorkflow()
	input.TriggerConditions = []models.Predicate{
		{Field: "entity.total", Operator: "resembles", Value: 10},
	}

	_, err := service.Create(t.Context(), input)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestWorkflowService_CreateRejectsBadBusinessHours(t *testing.T) {
	service, _ := newWorkflowService()

	input := validWorkflow()
	input.BusinessHours = &models.BusinessHoursPolicy{
		Enabled:  true,
		Timezone: "America/Atlantis",
		Mode:     models.BusinessHoursDefer,
		Days:     map[string]models.BusinessWindow{"monday": {Open: "09:00", Close: "17:00"}},
	}

	_, err := service.Create(t.Context(), input)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrInvalidBusinessHours)
}

func TestWorkflowService_FetchByIDHidesOtherTenants(t *testing.T) {
	service, _ := newWorkflowService()

	created, err := service.Create(t.Context(), validWorkflow())
	require.NoError(t, err)

	_, err = service.FetchByID(t.Context(), "tenant-2", created.ID)
	assert.ErrorIs(t, err, services.ErrWorkflowNotFound)
}

func TestWorkflowService_UpdatePreservesCreationTime(t *testing.T) {
	service, _ := newWorkflowService()

	created, err := service.Create(t.Context(), validWorkflow())
	require.NoError(t, err)

	replacement := validWorkflow()
	replacement.Name = "renamed chaser"

	updated, err := service.Update(t.Context(), "tenant-1", created.ID, replacement)
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "renamed chaser", updated.Name)
}

func TestWorkflowService_DeleteIsSoft(t *testing.T) {
	service, store := newWorkflowService()

	created, err := service.Create(t.Context(), validWorkflow())
	require.NoError(t, err)

	require.NoError(t, service.Delete(t.Context(), "tenant-1", created.ID))

	candidates, err := store.ActiveWorkflowsByTrigger(t.Context(), "tenant-1", models.TriggerInvoiceOverdue)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestExecutionsService_RejectsUnknownStatusFilter(t *testing.T) {
	store := memory.NewPersistence()
	service := services.NewExecutions(store)

	_, err := service.List(t.Context(), "tenant-1", models.ExecutionLogFilter{Status: "limbo"})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrInvalidExecutionQuery)
}

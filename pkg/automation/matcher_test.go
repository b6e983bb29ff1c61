package automation

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchd/fieldline/pkg/models"
	"github.com/dispatchd/fieldline/pkg/persistence/memory"
)

func savedWorkflow(t *testing.T, store *memory.Persistence, id, tenantID string, trigger models.TriggerType, conditions []models.Predicate) *models.Workflow {
	t.Helper()

	workflow := &models.Workflow{
		ID:                id,
		TenantID:          tenantID,
		Name:              "workflow " + id,
		Active:            true,
		TriggerType:       trigger,
		TriggerConditions: conditions,
		Steps: []models.ActionStep{
			{
				Variant: models.ActionSendSms,
				Sms: &models.SmsStepConfig{
					RecipientSelector: "entity.client.phone",
					Body:              "hello",
				},
			},
		},
	}

	require.NoError(t, store.SaveWorkflow(t.Context(), workflow))

	return workflow
}

func TestTriggerMatcher_FanOutInCreationOrder(t *testing.T) {
	store := memory.NewPersistence()
	matcher := NewTriggerMatcher(store, slog.Default())

	savedWorkflow(t, store, "wf-1", "tenant-1", models.TriggerJobCompleted, nil)
	time.Sleep(time.Millisecond)
	savedWorkflow(t, store, "wf-2", "tenant-1", models.TriggerJobCompleted, []models.Predicate{
		{Field: "entity.total", Operator: models.OperatorGt, Value: 100},
	})
	time.Sleep(time.Millisecond)
	savedWorkflow(t, store, "wf-3", "tenant-1", models.TriggerJobCompleted, []models.Predicate{
		{Field: "entity.status", Operator: models.OperatorEq, Value: "cancelled"},
	})

	matches, err := matcher.Match(t.Context(), models.BusinessEvent{
		ID:       "evt-1",
		TenantID: "tenant-1",
		Type:     models.TriggerJobCompleted,
		EntityID: "job-1",
		Entity:   map[string]any{"total": 250, "status": "completed"},
	})
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.Equal(t, "wf-1", matches[0].ID)
	assert.Equal(t, "wf-2", matches[1].ID)
}

func TestTriggerMatcher_TenantIsolation(t *testing.T) {
	store := memory.NewPersistence()
	matcher := NewTriggerMatcher(store, slog.Default())

	savedWorkflow(t, store, "wf-other", "tenant-2", models.TriggerInvoicePaid, nil)

	matches, err := matcher.Match(t.Context(), models.BusinessEvent{
		ID:       "evt-1",
		TenantID: "tenant-1",
		Type:     models.TriggerInvoicePaid,
	})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestTriggerMatcher_TriggerTypeMustMatch(t *testing.T) {
	store := memory.NewPersistence()
	matcher := NewTriggerMatcher(store, slog.Default())

	savedWorkflow(t, store, "wf-1", "tenant-1", models.TriggerEstimateSent, nil)

	matches, err := matcher.Match(t.Context(), models.BusinessEvent{
		ID:       "evt-1",
		TenantID: "tenant-1",
		Type:     models.TriggerEstimateAccepted,
	})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestTriggerMatcher_SkipsZeroStepWorkflows(t *testing.T) {
	store := memory.NewPersistence()
	matcher := NewTriggerMatcher(store, slog.Default())

	workflow := savedWorkflow(t, store, "wf-1", "tenant-1", models.TriggerClientCreated, nil)
	workflow.Steps = nil
	require.NoError(t, store.SaveWorkflow(t.Context(), workflow))

	matches, err := matcher.Match(t.Context(), models.BusinessEvent{
		ID:       "evt-1",
		TenantID: "tenant-1",
		Type:     models.TriggerClientCreated,
	})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

package automation

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchd/fieldline/pkg/models"
	"github.com/dispatchd/fieldline/pkg/persistence/memory"
)

func newService(store *memory.Persistence) *Service {
	logger := slog.Default()

	return NewService(
		NewTriggerMatcher(store, logger),
		NewEnqueuer(store, 0, logger),
		logger,
	)
}

func TestService_SubmitEventEnqueuesEachMatch(t *testing.T) {
	store := memory.NewPersistence()
	service := newService(store)

	savedWorkflow(t, store, "wf-1", "tenant-1", models.TriggerInvoicePaid, nil)
	savedWorkflow(t, store, "wf-2", "tenant-1", models.TriggerInvoicePaid, nil)

	enqueued, err := service.SubmitEvent(t.Context(), models.BusinessEvent{
		TenantID: "tenant-1",
		Type:     models.TriggerInvoicePaid,
		EntityID: "inv-1",
	})
	require.NoError(t, err)
	require.Len(t, enqueued, 2)

	for _, entry := range enqueued {
		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, models.ExecutionStatusPending, entry.Status)
		assert.Equal(t, DefaultMaxAttempts, entry.MaxAttempts)
		assert.NotEmpty(t, entry.TriggerPayload.ID)
		assert.False(t, entry.TriggerPayload.OccurredAt.IsZero())
	}
}

func TestService_SubmitEventRejectsMissingTenant(t *testing.T) {
	service := newService(memory.NewPersistence())

	_, err := service.SubmitEvent(t.Context(), models.BusinessEvent{
		Type: models.TriggerInvoicePaid,
	})
	assert.ErrorIs(t, err, ErrMissingTenant)
}

func TestService_SubmitEventRejectsUnknownTriggerType(t *testing.T) {
	service := newService(memory.NewPersistence())

	_, err := service.SubmitEvent(t.Context(), models.BusinessEvent{
		TenantID: "tenant-1",
		Type:     "job.telepathy",
	})
	assert.ErrorIs(t, err, ErrUnknownTriggerType)
}

func TestService_SubmitEventWithNoMatchesIsNotAnError(t *testing.T) {
	service := newService(memory.NewPersistence())

	enqueued, err := service.SubmitEvent(t.Context(), models.BusinessEvent{
		TenantID: "tenant-1",
		Type:     models.TriggerJobCreated,
	})
	require.NoError(t, err)
	assert.Empty(t, enqueued)
}

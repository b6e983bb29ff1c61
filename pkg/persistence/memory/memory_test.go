package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchd/fieldline/pkg/models"
	"github.com/dispatchd/fieldline/pkg/persistence"
)

func smsWorkflow(tenantID string) *models.Workflow {
	return &models.Workflow{
		TenantID:    tenantID,
		Name:        "Completion SMS",
		Active:      true,
		TriggerType: models.TriggerJobStatusChanged,
		Steps: []models.ActionStep{
			{
				Variant: models.ActionSendSms,
				Sms:     &models.SmsStepConfig{RecipientSelector: "client.phone", Body: "Job done"},
			},
		},
	}
}

func pendingLog(t *testing.T, store *Persistence, workflowID string, createdAt time.Time) *models.ExecutionLog {
	t.Helper()

	entry := &models.ExecutionLog{
		WorkflowID:  workflowID,
		TenantID:    "tenant-1",
		TriggerType: models.TriggerJobStatusChanged,
		TriggerPayload: models.BusinessEvent{
			TenantID: "tenant-1",
			Type:     models.TriggerJobStatusChanged,
			NewValue: "completed",
		},
		MaxAttempts: 3,
		CreatedAt:   createdAt,
	}

	require.NoError(t, store.CreateExecutionLog(t.Context(), entry))

	return entry
}

func TestPersistence_SaveWorkflowPreservesCounters(t *testing.T) {
	store := NewPersistence()

	workflow := smsWorkflow("tenant-1")
	require.NoError(t, store.SaveWorkflow(t.Context(), workflow))

	entry := pendingLog(t, store, workflow.ID, time.Now())
	claimed, err := store.ClaimDueExecutions(t.Context(), time.Now(), 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, store.FinalizeCompleted(t.Context(), entry.ID, 1, nil))

	// An edit from the builder must not reset counters.
	workflow.Name = "Completion SMS v2"
	require.NoError(t, store.SaveWorkflow(t.Context(), workflow))

	counters, err := store.WorkflowCounters(t.Context(), workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counters.ExecutionCount)
	assert.Equal(t, int64(1), counters.SuccessCount)
	assert.Equal(t, int64(0), counters.FailureCount)
}

func TestPersistence_ActiveWorkflowsByTrigger_CreationOrder(t *testing.T) {
	store := NewPersistence()

	first := smsWorkflow("tenant-1")
	first.CreatedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, store.SaveWorkflow(t.Context(), first))

	second := smsWorkflow("tenant-1")
	second.CreatedAt = time.Now().Add(-1 * time.Hour)
	require.NoError(t, store.SaveWorkflow(t.Context(), second))

	inactive := smsWorkflow("tenant-1")
	inactive.Active = false
	require.NoError(t, store.SaveWorkflow(t.Context(), inactive))

	otherTenant := smsWorkflow("tenant-2")
	require.NoError(t, store.SaveWorkflow(t.Context(), otherTenant))

	matches, err := store.ActiveWorkflowsByTrigger(t.Context(), "tenant-1", models.TriggerJobStatusChanged)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, first.ID, matches[0].ID)
	assert.Equal(t, second.ID, matches[1].ID)
}

func TestPersistence_ClaimDueExecutions_FIFOAndDueFilter(t *testing.T) {
	store := NewPersistence()
	now := time.Now()

	older := pendingLog(t, store, "wf-1", now.Add(-2*time.Minute))
	newer := pendingLog(t, store, "wf-1", now.Add(-1*time.Minute))

	notYet := now.Add(time.Hour)
	require.NoError(t, store.CreateExecutionLog(t.Context(), &models.ExecutionLog{
		WorkflowID:    "wf-1",
		TenantID:      "tenant-1",
		TriggerType:   models.TriggerJobStatusChanged,
		MaxAttempts:   3,
		NextAttemptAt: &notYet,
		CreatedAt:     now.Add(-3 * time.Minute),
	}))

	claimed, err := store.ClaimDueExecutions(t.Context(), now, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2, "entry with future next_attempt_at is not due")
	assert.Equal(t, older.ID, claimed[0].ID, "oldest entry claimed first")
	assert.Equal(t, newer.ID, claimed[1].ID)
	assert.Equal(t, models.ExecutionStatusRunning, claimed[0].Status)
	assert.NotNil(t, claimed[0].StartedAt)
}

func TestPersistence_ClaimIsExclusive(t *testing.T) {
	store := NewPersistence()
	pendingLog(t, store, "wf-1", time.Now())

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		totalClaims int
	)

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			claimed, err := store.ClaimDueExecutions(t.Context(), time.Now(), 10)
			require.NoError(t, err)

			mu.Lock()
			totalClaims += len(claimed)
			mu.Unlock()
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, totalClaims, "exactly one scheduler wins the claim")
}

func TestPersistence_TerminalEntriesAreImmutable(t *testing.T) {
	store := NewPersistence()
	require.NoError(t, store.SaveWorkflow(t.Context(), smsWorkflow("tenant-1")))

	entry := pendingLog(t, store, "wf-1", time.Now())

	claimed, err := store.ClaimDueExecutions(t.Context(), time.Now(), 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, store.FinalizeFailed(t.Context(), entry.ID, 3, "sms provider down", nil))

	err = store.FinalizeCompleted(t.Context(), entry.ID, 4, nil)
	assert.True(t, persistence.IsTerminalExecution(err))

	err = store.DeferExecution(t.Context(), entry.ID, time.Now().Add(time.Hour))
	assert.True(t, persistence.IsTerminalExecution(err))

	err = store.RescheduleRetry(t.Context(), entry.ID, 4, time.Now(), "late", nil)
	assert.True(t, persistence.IsTerminalExecution(err))

	stored, err := store.ExecutionLogByID(t.Context(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, stored.Status)
	assert.Equal(t, 3, stored.AttemptCount)
	assert.Equal(t, "sms provider down", stored.ErrorMessage)
}

func TestPersistence_RequeueDueDeferred(t *testing.T) {
	store := NewPersistence()
	now := time.Now()

	entry := pendingLog(t, store, "wf-1", now.Add(-time.Minute))

	claimed, err := store.ClaimDueExecutions(t.Context(), now, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	wakeAt := now.Add(30 * time.Minute)
	require.NoError(t, store.DeferExecution(t.Context(), entry.ID, wakeAt))

	moved, err := store.RequeueDueDeferred(t.Context(), now)
	require.NoError(t, err)
	assert.Zero(t, moved, "not due yet")

	moved, err = store.RequeueDueDeferred(t.Context(), wakeAt.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	stored, err := store.ExecutionLogByID(t.Context(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPending, stored.Status)
}

func TestPersistence_ReapStaleRunning(t *testing.T) {
	store := NewPersistence()
	now := time.Now()

	entry := pendingLog(t, store, "wf-1", now.Add(-time.Hour))

	claimed, err := store.ClaimDueExecutions(t.Context(), now.Add(-30*time.Minute), 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	moved, err := store.ReapStaleRunning(t.Context(), now.Add(-45*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, moved, "claim newer than cutoff is left alone")

	moved, err = store.ReapStaleRunning(t.Context(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	stored, err := store.ExecutionLogByID(t.Context(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPending, stored.Status)
	assert.Nil(t, stored.StartedAt)
}

func TestPersistence_ExecutionLogsFilters(t *testing.T) {
	store := NewPersistence()
	now := time.Now()

	first := pendingLog(t, store, "wf-1", now.Add(-2*time.Minute))
	pendingLog(t, store, "wf-2", now.Add(-1*time.Minute))

	logs, err := store.ExecutionLogs(t.Context(), "tenant-1", models.ExecutionLogFilter{})
	require.NoError(t, err)
	assert.Len(t, logs, 2)
	assert.Equal(t, "wf-2", logs[0].WorkflowID, "newest first")

	logs, err = store.ExecutionLogs(t.Context(), "tenant-1", models.ExecutionLogFilter{WorkflowID: "wf-1"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, first.ID, logs[0].ID)

	logs, err = store.ExecutionLogs(t.Context(), "tenant-1", models.ExecutionLogFilter{Status: models.ExecutionStatusFailed})
	require.NoError(t, err)
	assert.Empty(t, logs)

	logs, err = store.ExecutionLogs(t.Context(), "other-tenant", models.ExecutionLogFilter{})
	require.NoError(t, err)
	assert.Empty(t, logs)
}

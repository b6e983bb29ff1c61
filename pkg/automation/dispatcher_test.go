package automation

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dispatchd/fieldline/pkg/mocks"
	"github.com/dispatchd/fieldline/pkg/models"
)

func dispatchFixtures(steps ...models.ActionStep) (*models.Workflow, *models.ExecutionLog) {
	workflow := &models.Workflow{
		ID:          "wf-1",
		TenantID:    "tenant-1",
		Name:        "follow up",
		Active:      true,
		TriggerType: models.TriggerJobCompleted,
		Steps:       steps,
	}

	entry := &models.ExecutionLog{
		ID:          "exec-1",
		WorkflowID:  workflow.ID,
		TenantID:    workflow.TenantID,
		TriggerType: models.TriggerJobCompleted,
		TriggerPayload: models.BusinessEvent{
			ID:         "evt-1",
			TenantID:   "tenant-1",
			Type:       models.TriggerJobCompleted,
			EntityType: "job",
			EntityID:   "job-1",
			Entity: map[string]any{
				"client": map[string]any{
					"email": "client@example.com",
					"phone": "+15550001111",
				},
			},
		},
		Status:      models.ExecutionStatusRunning,
		MaxAttempts: 3,
	}

	return workflow, entry
}

func TestDispatcher_RunsStepsInOrder(t *testing.T) {
	collabMocks, set := mocks.NewCollaboratorMocks()
	dispatcher := NewDispatcher(set, slog.Default())

	workflow, entry := dispatchFixtures(
		models.ActionStep{
			Variant: models.ActionSendEmail,
			Email: &models.EmailStepConfig{
				RecipientSelector: "entity.client.email",
				Subject:           "Job done",
				Body:              "Thanks for your business",
			},
		},
		models.ActionStep{
			Variant: models.ActionSendSms,
			Sms: &models.SmsStepConfig{
				RecipientSelector: "entity.client.phone",
				Body:              "Job done",
			},
		},
	)

	collabMocks.Email.On("SendEmail", mock.Anything, "client@example.com", "Job done", "Thanks for your business", mock.Anything).
		Return("email-123", nil).Once()
	collabMocks.Sms.On("SendSms", mock.Anything, "+15550001111", "Job done", mock.Anything).
		Return("sms-456", nil).Once()

	outcomes, err := dispatcher.Dispatch(t.Context(), workflow, entry)
	require.NoError(t, err)

	require.Len(t, outcomes, 2)
	assert.Equal(t, 0, outcomes[0].StepIndex)
	assert.Equal(t, models.StepStatusSuccess, outcomes[0].Status)
	assert.Equal(t, "email-123", outcomes[0].ExternalID)
	assert.Equal(t, 1, outcomes[1].StepIndex)
	assert.Equal(t, "sms-456", outcomes[1].ExternalID)

	collabMocks.AssertExpectations(t)
}

func TestDispatcher_AbortsAndSkipsRemainingSteps(t *testing.T) {
	collabMocks, set := mocks.NewCollaboratorMocks()
	dispatcher := NewDispatcher(set, slog.Default())

	workflow, entry := dispatchFixtures(
		models.ActionStep{
			Variant: models.ActionSendSms,
			Sms:     &models.SmsStepConfig{RecipientSelector: "entity.client.phone", Body: "hi"},
		},
		models.ActionStep{
			Variant: models.ActionCreateTask,
			Task:    &models.TaskStepConfig{Description: "call back", DueInHours: 24},
		},
	)

	collabMocks.Sms.On("SendSms", mock.Anything, "+15550001111", "hi", mock.Anything).
		Return("", Transientf("sms gateway unavailable")).Once()

	outcomes, err := dispatcher.Dispatch(t.Context(), workflow, entry)
	require.Error(t, err)
	assert.True(t, IsTransient(err))

	require.Len(t, outcomes, 2)
	assert.Equal(t, models.StepStatusFailure, outcomes[0].Status)
	assert.Contains(t, outcomes[0].Error, "sms gateway unavailable")
	assert.Equal(t, models.StepStatusSkipped, outcomes[1].Status)

	collabMocks.Tasks.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcher_BestEffortStepContinuesOnTransientFailure(t *testing.T) {
	collabMocks, set := mocks.NewCollaboratorMocks()
	dispatcher := NewDispatcher(set, slog.Default())

	workflow, entry := dispatchFixtures(
		models.ActionStep{
			Variant:    models.ActionSendVoiceCall,
			BestEffort: true,
			Voice:      &models.VoiceStepConfig{RecipientSelector: "entity.client.phone"},
		},
		models.ActionStep{
			Variant: models.ActionUpdateEntityStatus,
			Status:  &models.StatusStepConfig{EntityType: "job", NewStatus: "archived"},
		},
	)

	collabMocks.Voice.On("SendVoiceCall", mock.Anything, "+15550001111", mock.Anything).
		Return("", Transientf("carrier timeout")).Once()
	collabMocks.Status.On("UpdateEntityStatus", mock.Anything, "job", "job-1", "archived").
		Return("job-1", nil).Once()

	outcomes, err := dispatcher.Dispatch(t.Context(), workflow, entry)
	require.NoError(t, err)

	require.Len(t, outcomes, 2)
	assert.Equal(t, models.StepStatusFailure, outcomes[0].Status)
	assert.Equal(t, models.StepStatusSuccess, outcomes[1].Status)

	collabMocks.AssertExpectations(t)
}

func TestDispatcher_BestEffortDoesNotSwallowPermanentFailure(t *testing.T) {
	collabMocks, set := mocks.NewCollaboratorMocks()
	dispatcher := NewDispatcher(set, slog.Default())

	workflow, entry := dispatchFixtures(
		models.ActionStep{
			Variant:    models.ActionSendEmail,
			BestEffort: true,
			Email:      &models.EmailStepConfig{RecipientSelector: "entity.client.missing", Subject: "s", Body: "b"},
		},
		models.ActionStep{
			Variant: models.ActionSendSms,
			Sms:     &models.SmsStepConfig{RecipientSelector: "entity.client.phone", Body: "hi"},
		},
	)

	outcomes, err := dispatcher.Dispatch(t.Context(), workflow, entry)
	require.Error(t, err)
	assert.True(t, IsPermanent(err))

	require.Len(t, outcomes, 2)
	assert.Equal(t, models.StepStatusFailure, outcomes[0].Status)
	assert.Equal(t, models.StepStatusSkipped, outcomes[1].Status)

	collabMocks.Sms.AssertNotCalled(t, "SendSms", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcher_MissingRecipientIsPermanent(t *testing.T) {
	_, set := mocks.NewCollaboratorMocks()
	dispatcher := NewDispatcher(set, slog.Default())

	workflow, entry := dispatchFixtures(models.ActionStep{
		Variant: models.ActionSendSms,
		Sms:     &models.SmsStepConfig{RecipientSelector: "entity.client.fax", Body: "hi"},
	})

	outcomes, err := dispatcher.Dispatch(t.Context(), workflow, entry)
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	require.Len(t, outcomes, 1)
	assert.Equal(t, models.StepStatusFailure, outcomes[0].Status)
}

func TestDispatcher_StatusUpdateNeedsAnEntity(t *testing.T) {
	_, set := mocks.NewCollaboratorMocks()
	dispatcher := NewDispatcher(set, slog.Default())

	workflow, entry := dispatchFixtures(models.ActionStep{
		Variant: models.ActionUpdateEntityStatus,
		Status:  &models.StatusStepConfig{EntityType: "job", NewStatus: "done"},
	})
	entry.TriggerPayload.EntityID = ""

	_, err := dispatcher.Dispatch(t.Context(), workflow, entry)
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}

func TestDispatcher_WaitStep(t *testing.T) {
	_, set := mocks.NewCollaboratorMocks()
	dispatcher := NewDispatcher(set, slog.Default())

	workflow, entry := dispatchFixtures(models.ActionStep{
		Variant: models.ActionWait,
		Wait:    &models.WaitStepConfig{Duration: 10 * time.Millisecond},
	})

	outcomes, err := dispatcher.Dispatch(t.Context(), workflow, entry)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, models.StepStatusSuccess, outcomes[0].Status)
}

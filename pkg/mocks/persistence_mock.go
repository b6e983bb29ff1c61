package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dispatchd/fieldline/pkg/models"
)

// MockPersistence is a mock implementation of persistence.Persistence.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) Workflows(ctx context.Context, tenantID string) ([]*models.Workflow, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockPersistence) ActiveWorkflowsByTrigger(ctx context.Context, tenantID string, triggerType models.TriggerType) ([]*models.Workflow, error) {
	args := m.Called(ctx, tenantID, triggerType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockPersistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockPersistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockPersistence) DeleteWorkflow(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockPersistence) WorkflowCounters(ctx context.Context, id string) (*models.WorkflowCounters, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowCounters), args.Error(1)
}

func (m *MockPersistence) CreateExecutionLog(ctx context.Context, entry *models.ExecutionLog) error {
	args := m.Called(ctx, entry)

	return args.Error(0)
}

func (m *MockPersistence) ExecutionLogByID(ctx context.Context, id string) (*models.ExecutionLog, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ExecutionLog), args.Error(1)
}

func (m *MockPersistence) ExecutionLogs(ctx context.Context, tenantID string, filter models.ExecutionLogFilter) ([]*models.ExecutionLog, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ExecutionLog), args.Error(1)
}

func (m *MockPersistence) RequeueDueDeferred(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)

	return args.Int(0), args.Error(1)
}

func (m *MockPersistence) ClaimDueExecutions(ctx context.Context, now time.Time, limit int) ([]*models.ExecutionLog, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ExecutionLog), args.Error(1)
}

func (m *MockPersistence) DeferExecution(ctx context.Context, id string, nextAttemptAt time.Time) error {
	args := m.Called(ctx, id, nextAttemptAt)

	return args.Error(0)
}

func (m *MockPersistence) RescheduleRetry(ctx context.Context, id string, attemptCount int, nextAttemptAt time.Time, errorMessage string, outcomes []models.StepOutcome) error {
	args := m.Called(ctx, id, attemptCount, nextAttemptAt, errorMessage, outcomes)

	return args.Error(0)
}

func (m *MockPersistence) FinalizeCompleted(ctx context.Context, id string, attemptCount int, outcomes []models.StepOutcome) error {
	args := m.Called(ctx, id, attemptCount, outcomes)

	return args.Error(0)
}

func (m *MockPersistence) FinalizeFailed(ctx context.Context, id string, attemptCount int, errorMessage string, outcomes []models.StepOutcome) error {
	args := m.Called(ctx, id, attemptCount, errorMessage, outcomes)

	return args.Error(0)
}

func (m *MockPersistence) ReapStaleRunning(ctx context.Context, olderThan time.Time) (int, error) {
	args := m.Called(ctx, olderThan)

	return args.Int(0), args.Error(1)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

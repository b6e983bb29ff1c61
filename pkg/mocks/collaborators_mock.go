package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dispatchd/fieldline/pkg/collaborators"
)

// MockEmailSender is a mock implementation of collaborators.EmailSender.
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendEmail(ctx context.Context, to, subject, body string, templateVars map[string]any) (string, error) {
	args := m.Called(ctx, to, subject, body, templateVars)

	return args.String(0), args.Error(1)
}

// MockSmsSender is a mock implementation of collaborators.SmsSender.
type MockSmsSender struct {
	mock.Mock
}

func (m *MockSmsSender) SendSms(ctx context.Context, to, body string, templateVars map[string]any) (string, error) {
	args := m.Called(ctx, to, body, templateVars)

	return args.String(0), args.Error(1)
}

// MockVoiceCaller is a mock implementation of collaborators.VoiceCaller.
type MockVoiceCaller struct {
	mock.Mock
}

func (m *MockVoiceCaller) SendVoiceCall(ctx context.Context, to string, scriptVars map[string]any) (string, error) {
	args := m.Called(ctx, to, scriptVars)

	return args.String(0), args.Error(1)
}

// MockTaskCreator is a mock implementation of collaborators.TaskCreator.
type MockTaskCreator struct {
	mock.Mock
}

func (m *MockTaskCreator) CreateTask(ctx context.Context, tenantID, description, assignee string, dueAt time.Time) (string, error) {
	args := m.Called(ctx, tenantID, description, assignee, dueAt)

	return args.String(0), args.Error(1)
}

// MockStatusUpdater is a mock implementation of collaborators.StatusUpdater.
type MockStatusUpdater struct {
	mock.Mock
}

func (m *MockStatusUpdater) UpdateEntityStatus(ctx context.Context, entityType, entityID, newStatus string) (string, error) {
	args := m.Called(ctx, entityType, entityID, newStatus)

	return args.String(0), args.Error(1)
}

// CollaboratorMocks bundles one mock per collaborator interface.
type CollaboratorMocks struct {
	Email  *MockEmailSender
	Sms    *MockSmsSender
	Voice  *MockVoiceCaller
	Tasks  *MockTaskCreator
	Status *MockStatusUpdater
}

// NewCollaboratorMocks returns a full mock set plus the collaborators.Set
// view a dispatcher consumes.
func NewCollaboratorMocks() (*CollaboratorMocks, collaborators.Set) {
	m := &CollaboratorMocks{
		Email:  &MockEmailSender{},
		Sms:    &MockSmsSender{},
		Voice:  &MockVoiceCaller{},
		Tasks:  &MockTaskCreator{},
		Status: &MockStatusUpdater{},
	}

	return m, collaborators.Set{
		Email:  m.Email,
		Sms:    m.Sms,
		Voice:  m.Voice,
		Tasks:  m.Tasks,
		Status: m.Status,
	}
}

// AssertExpectations asserts expectations on every mock in the set.
func (m *CollaboratorMocks) AssertExpectations(t mock.TestingT) {
	m.Email.AssertExpectations(t)
	m.Sms.AssertExpectations(t)
	m.Voice.AssertExpectations(t)
	m.Tasks.AssertExpectations(t)
	m.Status.AssertExpectations(t)
}

// Package mocks provides testify mock implementations of the engine's
// interfaces for use in tests.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dispatchd/fieldline/pkg/eventbus"
	"github.com/dispatchd/fieldline/pkg/models"
)

// MockEventBus is a mock implementation of eventbus.EventBus.
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, event models.BusinessEvent) error {
	args := m.Called(ctx, event)

	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context, handler eventbus.EventHandler) error {
	args := m.Called(ctx, handler)

	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()

	return args.Error(0)
}

func (m *MockEventBus) GenerateID() string {
	args := m.Called()

	return args.String(0)
}

package eventbus_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchd/fieldline/pkg/channels/gochannel"
	"github.com/dispatchd/fieldline/pkg/eventbus"
	"github.com/dispatchd/fieldline/pkg/models"
)

func newTestBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, slog.Default())
	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestWatermillEventBus_PublishSubscribe(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan models.BusinessEvent, 1)

	err := bus.Subscribe(t.Context(), func(_ context.Context, event models.BusinessEvent) error {
		received <- event

		return nil
	})
	require.NoError(t, err)

	sent := models.BusinessEvent{
		ID:       "evt-1",
		TenantID: "tenant-1",
		Type:     models.TriggerJobCompleted,
		EntityID: "job-9",
		Entity:   map[string]any{"status": "completed"},
	}

	require.NoError(t, bus.Publish(t.Context(), sent))

	select {
	case event := <-received:
		assert.Equal(t, sent.ID, event.ID)
		assert.Equal(t, sent.TenantID, event.TenantID)
		assert.Equal(t, sent.Type, event.Type)
		assert.Equal(t, "completed", event.Entity["status"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event delivery")
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newTestBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

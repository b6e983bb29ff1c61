// Package eventbus carries business events between the producing systems and
// the automation engine.
package eventbus

import (
	"context"

	"github.com/dispatchd/fieldline/pkg/models"
)

// Topic is the single stream all business events travel on.
const Topic = "fieldline.business_events"

// Message metadata keys.
const (
	TenantIDMetadataKey    = "tenant_id"
	TriggerTypeMetadataKey = "trigger_type"
)

// EventHandler processes one delivered business event. A non-nil error nacks
// the message for redelivery.
type EventHandler func(ctx context.Context, event models.BusinessEvent) error

type EventPublisher interface {
	Publish(ctx context.Context, event models.BusinessEvent) error
}

type EventSubscriber interface {
	Subscribe(ctx context.Context, handler EventHandler) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

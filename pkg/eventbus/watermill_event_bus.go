package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/dispatchd/fieldline/pkg/models"
)

// WatermillEventBus adapts any watermill publisher/subscriber pair (Kafka in
// production, GoChannel in tests) to the business-event stream.
type WatermillEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber, logger *slog.Logger) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:  pub,
		subscriber: sub,
		logger:     logger.With("module", "eventbus"),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, event models.BusinessEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(TenantIDMetadataKey, event.TenantID)
	msg.Metadata.Set(TriggerTypeMetadataKey, string(event.Type))

	return eb.publisher.Publish(Topic, msg)
}

// Subscribe consumes the business-event stream until the context ends.
// Malformed payloads are acked and dropped so a poison message cannot wedge
// the partition; handler errors nack for redelivery.
func (eb *WatermillEventBus) Subscribe(ctx context.Context, handler EventHandler) error {
	messages, err := eb.subscriber.Subscribe(ctx, Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			var event models.BusinessEvent

			err := json.Unmarshal(msg.Payload, &event)
			if err != nil {
				eb.logger.ErrorContext(ctx, "Dropping malformed business event",
					"message_id", msg.UUID,
					"error", err)
				msg.Ack()

				continue
			}

			err = handler(ctx, event)
			if err != nil {
				eb.logger.WarnContext(ctx, "Business event handler failed, nacking",
					"message_id", msg.UUID,
					"event_id", event.ID,
					"error", err)
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}

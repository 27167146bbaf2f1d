package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"autoservice/internal/models"
	"autoservice/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher writes keyed messages to the event topic
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer Publisher
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer Publisher) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func orderKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderUpdated publishes OrderUpdated event
func (ep *EventPublisher) PublishOrderUpdated(ctx context.Context, event *models.OrderUpdatedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderCompleted publishes OrderCompleted event
func (ep *EventPublisher) PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishPaymentRecorded publishes PaymentRecorded event
func (ep *EventPublisher) PublishPaymentRecorded(ctx context.Context, event *models.PaymentRecordedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishPaymentDeleted publishes PaymentDeleted event
func (ep *EventPublisher) PublishPaymentDeleted(ctx context.Context, event *models.PaymentDeletedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishPartStockAdjusted publishes PartStockAdjusted event, keyed by part
// so that adjustments of one part stay ordered
func (ep *EventPublisher) PublishPartStockAdjusted(ctx context.Context, event *models.PartStockAdjustedEvent) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("part-%d", event.PartID), event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onOrderCreated      func(context.Context, *models.OrderCreatedEvent) error
	onOrderCompleted    func(context.Context, *models.OrderCompletedEvent) error
	onPaymentRecorded   func(context.Context, *models.PaymentRecordedEvent) error
	onPaymentDeleted    func(context.Context, *models.PaymentDeletedEvent) error
	onPartStockAdjusted func(context.Context, *models.PartStockAdjustedEvent) error
	logger              *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderCreated registers a handler for OrderCreated events
func (eh *EventHandler) OnOrderCreated(handler func(context.Context, *models.OrderCreatedEvent) error) {
	eh.onOrderCreated = handler
}

// OnOrderCompleted registers a handler for OrderCompleted events
func (eh *EventHandler) OnOrderCompleted(handler func(context.Context, *models.OrderCompletedEvent) error) {
	eh.onOrderCompleted = handler
}

// OnPaymentRecorded registers a handler for PaymentRecorded events
func (eh *EventHandler) OnPaymentRecorded(handler func(context.Context, *models.PaymentRecordedEvent) error) {
	eh.onPaymentRecorded = handler
}

// OnPaymentDeleted registers a handler for PaymentDeleted events
func (eh *EventHandler) OnPaymentDeleted(handler func(context.Context, *models.PaymentDeletedEvent) error) {
	eh.onPaymentDeleted = handler
}

// OnPartStockAdjusted registers a handler for PartStockAdjusted events
func (eh *EventHandler) OnPartStockAdjusted(handler func(context.Context, *models.PartStockAdjustedEvent) error) {
	eh.onPartStockAdjusted = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderCreated:
		if eh.onOrderCreated != nil {
			var event models.OrderCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCreated event: %w", err)
			}
			return eh.onOrderCreated(ctx, &event)
		}

	case models.EventTypeOrderCompleted:
		if eh.onOrderCompleted != nil {
			var event models.OrderCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCompleted event: %w", err)
			}
			return eh.onOrderCompleted(ctx, &event)
		}

	case models.EventTypePaymentRecorded:
		if eh.onPaymentRecorded != nil {
			var event models.PaymentRecordedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentRecorded event: %w", err)
			}
			return eh.onPaymentRecorded(ctx, &event)
		}

	case models.EventTypePaymentDeleted:
		if eh.onPaymentDeleted != nil {
			var event models.PaymentDeletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentDeleted event: %w", err)
			}
			return eh.onPaymentDeleted(ctx, &event)
		}

	case models.EventTypePartStockAdjusted:
		if eh.onPartStockAdjusted != nil {
			var event models.PartStockAdjustedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PartStockAdjusted event: %w", err)
			}
			return eh.onPartStockAdjusted(ctx, &event)
		}

	case models.EventTypeOrderUpdated:
		// informational only

	default:
		eh.logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}

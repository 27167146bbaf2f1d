package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autoservice/internal/models"
	"autoservice/internal/store"

	"github.com/google/uuid"
)

var (
	// ErrInvalidInput is returned for requests the caller should have rejected
	ErrInvalidInput = errors.New("invalid input")
	// ErrVehicleMismatch is returned when an order's vehicle belongs to another customer
	ErrVehicleMismatch = errors.New("vehicle does not belong to customer")
	// ErrRequestInFlight is returned while a request with the same idempotency key is running
	ErrRequestInFlight = errors.New("request with this idempotency key is in flight")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// EventPublisher publishes domain events once the owning transaction committed
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderUpdated(ctx context.Context, event *models.OrderUpdatedEvent) error
	PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error
	PublishPaymentRecorded(ctx context.Context, event *models.PaymentRecordedEvent) error
	PublishPaymentDeleted(ctx context.Context, event *models.PaymentDeletedEvent) error
	PublishPartStockAdjusted(ctx context.Context, event *models.PartStockAdjustedEvent) error
}

// StockCache mirrors part stock counters for fast reads. version is the id
// of the latest stock movement the quantity reflects; lower versions never
// replace higher ones.
type StockCache interface {
	SetStock(ctx context.Context, partID int64, quantity int, version int64) error
	GetStock(ctx context.Context, partID int64) (int, bool, error)
}

// IdempotencyStore remembers the result of a request for a while
type IdempotencyStore interface {
	GetIdempotencyKey(ctx context.Context, key string) (string, bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// nopPublisher drops every event; used when no broker is configured
type nopPublisher struct{}

func (nopPublisher) PublishOrderCreated(context.Context, *models.OrderCreatedEvent) error {
	return nil
}

func (nopPublisher) PublishOrderUpdated(context.Context, *models.OrderUpdatedEvent) error {
	return nil
}

func (nopPublisher) PublishOrderCompleted(context.Context, *models.OrderCompletedEvent) error {
	return nil
}

func (nopPublisher) PublishPaymentRecorded(context.Context, *models.PaymentRecordedEvent) error {
	return nil
}

func (nopPublisher) PublishPaymentDeleted(context.Context, *models.PaymentDeletedEvent) error {
	return nil
}

func (nopPublisher) PublishPartStockAdjusted(context.Context, *models.PartStockAdjustedEvent) error {
	return nil
}

// NopPublisher returns a publisher that discards events
func NopPublisher() EventPublisher {
	return nopPublisher{}
}

// failureReason labels a failed command for the metrics
func failureReason(err error) string {
	switch {
	case errors.Is(err, store.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrVehicleMismatch):
		return "vehicle_mismatch"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	}
	return "db_error"
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

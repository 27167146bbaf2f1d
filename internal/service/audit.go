package service

import (
	"context"
	"fmt"

	"autoservice/internal/models"
	"autoservice/internal/store"
	"autoservice/internal/util"

	"go.uber.org/zap"
)

// AuditRecorder writes consumed order events into the order audit log
type AuditRecorder struct {
	repo   store.Repository
	logger *zap.Logger
}

// NewAuditRecorder creates a new audit recorder
func NewAuditRecorder(repo store.Repository) *AuditRecorder {
	return &AuditRecorder{
		repo:   repo,
		logger: util.GetLogger(),
	}
}

// HandleOrderCreated records the creation of an order
func (ar *AuditRecorder) HandleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ar.record(ctx, event.BaseEvent, event.OrderID,
		fmt.Sprintf("created with total %s", event.TotalAmount))
}

// HandleOrderCompleted records that payment forced the order to completed
func (ar *AuditRecorder) HandleOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	return ar.record(ctx, event.BaseEvent, event.OrderID,
		fmt.Sprintf("completed by payment: paid %s of %s, %d service lines done",
			event.PaidTotal, event.TotalAmount, event.ItemsDone))
}

// HandlePaymentRecorded records a ledger insert
func (ar *AuditRecorder) HandlePaymentRecorded(ctx context.Context, event *models.PaymentRecordedEvent) error {
	return ar.record(ctx, event.BaseEvent, event.OrderID,
		fmt.Sprintf("payment #%d of %s, now %s", event.PaymentID, event.Amount, event.PaymentStatus))
}

// HandlePaymentDeleted records a ledger delete
func (ar *AuditRecorder) HandlePaymentDeleted(ctx context.Context, event *models.PaymentDeletedEvent) error {
	return ar.record(ctx, event.BaseEvent, event.OrderID,
		fmt.Sprintf("payment #%d removed, now %s", event.PaymentID, event.PaymentStatus))
}

// record appends the entry and marks the event processed in one transaction
func (ar *AuditRecorder) record(ctx context.Context, base models.BaseEvent, orderID int64, detail string) error {
	ctx, span := util.StartSpan(ctx, "AuditRecorder."+base.EventType, util.OrderAttr(orderID))
	defer span.End()

	skipped := false
	err := ar.repo.InTx(ctx, func(q store.Queries) error {
		processed, err := q.IsEventProcessed(ctx, base.EventID)
		if err != nil {
			return fmt.Errorf("failed to check event processed: %w", err)
		}
		if processed {
			skipped = true
			return nil
		}

		entry := &models.OrderEvent{
			OrderID:   orderID,
			EventType: base.EventType,
			Detail:    detail,
		}
		if err := q.CreateOrderEvent(ctx, entry); err != nil {
			return err
		}
		return q.MarkEventProcessed(ctx, base.EventID, base.EventType)
	})

	switch {
	case err == nil && skipped:
		ar.logger.Info("Event already processed", zap.String("event_id", base.EventID))
	case err == nil:
		ar.logger.Info("Order event recorded",
			zap.Int64("order_id", orderID),
			zap.String("event_type", base.EventType))
	case isNotFound(err):
		// the order was deleted before the event was consumed
		ar.logger.Warn("Order gone, audit entry dropped",
			zap.Int64("order_id", orderID),
			zap.String("event_id", base.EventID))
		return nil
	}
	return err
}

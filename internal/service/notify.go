package service

import (
	"context"
	"errors"
	"fmt"

	"autoservice/internal/models"
	"autoservice/internal/store"
	"autoservice/internal/util"

	"go.uber.org/zap"
)

// stockChange is one applied stock delta
type stockChange struct {
	PartID     int64
	OrderID    *int64
	Delta      int
	StockAfter int
	Kind       string
	Movement   models.StockMovement
}

// applyStockDelta adjusts the part stock relative to its stored value and
// appends the movement row. It must run in the same transaction as the line write.
func applyStockDelta(ctx context.Context, q store.Queries, m models.StockMovement) (*stockChange, error) {
	after, err := q.AdjustPartStock(ctx, m.PartID, m.Quantity)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			util.InsufficientStockTotal.Inc()
			return nil, fmt.Errorf("part %d needs %d more: %w", m.PartID, -m.Quantity, err)
		}
		return nil, fmt.Errorf("failed to adjust stock: %w", err)
	}

	m.StockAfter = after
	m.StockBefore = after - m.Quantity
	if err := q.CreateStockMovement(ctx, &m); err != nil {
		return nil, fmt.Errorf("failed to record stock movement: %w", err)
	}

	return &stockChange{
		PartID:     m.PartID,
		OrderID:    m.OrderID,
		Delta:      m.Quantity,
		StockAfter: after,
		Kind:       m.Kind,
		Movement:   m,
	}, nil
}

// notifier reports committed changes: metrics, logs, events and the stock mirror
type notifier struct {
	publisher EventPublisher
	cache     StockCache
	logger    *zap.Logger
}

// newNotifier builds a notifier; cache may be nil
func newNotifier(publisher EventPublisher, cache StockCache) notifier {
	if publisher == nil {
		publisher = NopPublisher()
	}
	return notifier{publisher: publisher, cache: cache, logger: util.GetLogger()}
}

func (n notifier) stockAdjusted(ctx context.Context, change *stockChange) {
	if change == nil || change.Delta == 0 {
		return
	}

	direction := "in"
	if change.Delta < 0 {
		direction = "out"
	}
	util.StockAdjustmentsTotal.WithLabelValues(direction).Inc()

	if n.cache != nil {
		if err := n.cache.SetStock(ctx, change.PartID, change.StockAfter, change.Movement.ID); err != nil {
			n.logger.Warn("Failed to mirror stock to Redis",
				zap.Int64("part_id", change.PartID),
				zap.Error(err))
		}
	}

	event := &models.PartStockAdjustedEvent{
		BaseEvent:  newBaseEvent(models.EventTypePartStockAdjusted),
		PartID:     change.PartID,
		OrderID:    change.OrderID,
		Delta:      change.Delta,
		StockAfter: change.StockAfter,
		Kind:       change.Kind,
	}
	if err := n.publisher.PublishPartStockAdjusted(ctx, event); err != nil {
		n.logger.Error("Failed to publish PartStockAdjusted event",
			zap.Int64("part_id", change.PartID),
			zap.Error(err))
	}
}

func (n notifier) reconciled(ctx context.Context, orderID int64, outcome *reconcileOutcome) {
	if outcome == nil {
		return
	}

	if outcome.Previous != outcome.Result.PaymentStatus {
		util.PaymentStatusTransitions.WithLabelValues(
			string(outcome.Previous), string(outcome.Result.PaymentStatus)).Inc()
		n.logger.Info("Payment status changed",
			zap.Int64("order_id", orderID),
			zap.String("from", string(outcome.Previous)),
			zap.String("to", string(outcome.Result.PaymentStatus)),
			zap.String("paid_total", outcome.PaidTotal.String()))
	}

	if !outcome.AutoCompleted {
		return
	}

	util.OrdersAutoCompletedTotal.Inc()
	n.logger.Info("Order completed by payment",
		zap.Int64("order_id", orderID),
		zap.String("total_amount", outcome.TotalAmount.String()),
		zap.Int64("items_done", outcome.ItemsDone))

	event := &models.OrderCompletedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderCompleted),
		OrderID:     orderID,
		TotalAmount: outcome.TotalAmount.StringFixed(2),
		PaidTotal:   outcome.PaidTotal.StringFixed(2),
		ItemsDone:   outcome.ItemsDone,
	}
	if err := n.publisher.PublishOrderCompleted(ctx, event); err != nil {
		n.logger.Error("Failed to publish OrderCompleted event", zap.Error(err))
	}
}

func (n notifier) orderUpdated(ctx context.Context, order *models.Order) {
	if order == nil {
		return
	}
	event := &models.OrderUpdatedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeOrderUpdated),
		OrderID:       order.ID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		TotalAmount:   order.TotalAmount.StringFixed(2),
	}
	if err := n.publisher.PublishOrderUpdated(ctx, event); err != nil {
		n.logger.Error("Failed to publish OrderUpdated event", zap.Error(err))
	}
}

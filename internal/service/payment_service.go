package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"autoservice/internal/models"
	"autoservice/internal/store"
	"autoservice/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const paymentLockTTL = 10 * time.Second

// PaymentRequest is a manually recorded payment
type PaymentRequest struct {
	Amount      decimal.Decimal      `json:"amount"`
	PaymentType models.PaymentMethod `json:"payment_type"`
	Note        string               `json:"note,omitempty"`
}

func (r *PaymentRequest) validate() error {
	if !r.Amount.IsPositive() {
		return invalid("amount must be positive")
	}
	if !r.PaymentType.Valid() {
		return invalid("unknown payment type %q", r.PaymentType)
	}
	return nil
}

func (r *PaymentRequest) toModel(orderID int64) *models.Payment {
	return &models.Payment{
		OrderID:     orderID,
		Amount:      r.Amount,
		PaymentType: r.PaymentType,
		Note:        r.Note,
	}
}

// PaymentResult is a ledger change with the reconciled order state
type PaymentResult struct {
	Payment       *models.Payment      `json:"payment,omitempty"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	Status        models.OrderStatus   `json:"status"`
	PaidTotal     decimal.Decimal      `json:"paid_total"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	Replayed      bool                 `json:"replayed,omitempty"`
}

// PaymentService records and removes payments. Every ledger change
// reconciles the order in the same transaction.
type PaymentService struct {
	repo           store.Repository
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
	notifier       notifier
	logger         *zap.Logger
}

// NewPaymentService creates a new payment service. idempotency may be nil,
// in which case Idempotency-Key replays are not detected.
func NewPaymentService(repo store.Repository, publisher EventPublisher, idempotency IdempotencyStore, ttl time.Duration) *PaymentService {
	return &PaymentService{
		repo:           repo,
		idempotency:    idempotency,
		idempotencyTTL: ttl,
		notifier:       newNotifier(publisher, nil),
		logger:         util.GetLogger(),
	}
}

// RecordPayment appends a payment to the order ledger
func (ps *PaymentService) RecordPayment(ctx context.Context, orderID int64, req *PaymentRequest, idempotencyKey string) (*PaymentResult, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.RecordPayment", util.OrderAttr(orderID))
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, err
	}

	cacheKey := ""
	if idempotencyKey != "" && ps.idempotency != nil {
		cacheKey = fmt.Sprintf("payment:%d:%s", orderID, idempotencyKey)
		acquired, err := ps.idempotency.AcquireLock(ctx, cacheKey, paymentLockTTL)
		if err != nil {
			ps.logger.Warn("Idempotency lock failed", zap.String("key", cacheKey), zap.Error(err))
		} else if !acquired {
			return nil, ErrRequestInFlight
		} else {
			defer func() {
				if err := ps.idempotency.ReleaseLock(ctx, cacheKey); err != nil {
					ps.logger.Warn("Failed to release idempotency lock", zap.String("key", cacheKey), zap.Error(err))
				}
			}()
		}

		if result, ok := ps.replay(ctx, orderID, cacheKey); ok {
			return result, nil
		}
	}

	payment := req.toModel(orderID)
	var outcome *reconcileOutcome
	err := ps.repo.InTx(ctx, func(q store.Queries) error {
		if _, err := q.LockOrder(ctx, orderID); err != nil {
			return err
		}
		if err := q.CreatePayment(ctx, payment); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		var err error
		outcome, err = reconcilePayments(ctx, q, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	util.PaymentsRecordedTotal.WithLabelValues(string(payment.PaymentType)).Inc()
	ps.logger.Info("Payment recorded",
		zap.Int64("order_id", orderID),
		zap.Int64("payment_id", payment.ID),
		zap.String("amount", payment.Amount.String()),
		zap.String("payment_status", string(outcome.Result.PaymentStatus)))

	if cacheKey != "" {
		if err := ps.idempotency.SetIdempotencyKey(ctx, cacheKey, payment.ID, ps.idempotencyTTL); err != nil {
			ps.logger.Warn("Failed to store idempotency key",
				zap.String("key", cacheKey),
				zap.Error(err))
		}
	}

	event := &models.PaymentRecordedEvent{
		BaseEvent:     newBaseEvent(models.EventTypePaymentRecorded),
		OrderID:       orderID,
		PaymentID:     payment.ID,
		Amount:        payment.Amount.StringFixed(2),
		PaymentStatus: string(outcome.Result.PaymentStatus),
	}
	if err := ps.notifier.publisher.PublishPaymentRecorded(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentRecorded event", zap.Error(err))
	}
	ps.notifier.reconciled(ctx, orderID, outcome)

	return &PaymentResult{
		Payment:       payment,
		PaymentStatus: outcome.Result.PaymentStatus,
		Status:        outcome.Result.Status,
		PaidTotal:     outcome.PaidTotal,
		TotalAmount:   outcome.TotalAmount,
	}, nil
}

// replay returns the payment recorded earlier under the same key
func (ps *PaymentService) replay(ctx context.Context, orderID int64, cacheKey string) (*PaymentResult, bool) {
	value, found, err := ps.idempotency.GetIdempotencyKey(ctx, cacheKey)
	if err != nil {
		ps.logger.Warn("Idempotency lookup failed", zap.String("key", cacheKey), zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}

	paymentID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, false
	}

	payment, err := ps.repo.GetPayment(ctx, orderID, paymentID)
	if err != nil {
		// the payment was deleted since; record anew
		return nil, false
	}
	order, err := ps.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, false
	}
	paid, err := ps.repo.SumPayments(ctx, orderID)
	if err != nil {
		return nil, false
	}

	ps.logger.Info("Duplicate payment request detected",
		zap.String("key", cacheKey),
		zap.Int64("payment_id", payment.ID))

	return &PaymentResult{
		Payment:       payment,
		PaymentStatus: order.PaymentStatus,
		Status:        order.Status,
		PaidTotal:     paid,
		TotalAmount:   order.TotalAmount,
		Replayed:      true,
	}, true
}

// DeletePayment removes a payment from the order ledger
func (ps *PaymentService) DeletePayment(ctx context.Context, orderID, paymentID int64) (*PaymentResult, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.DeletePayment", util.OrderAttr(orderID))
	defer span.End()

	var outcome *reconcileOutcome
	err := ps.repo.InTx(ctx, func(q store.Queries) error {
		if _, err := q.LockOrder(ctx, orderID); err != nil {
			return err
		}
		if err := q.DeletePayment(ctx, orderID, paymentID); err != nil {
			return err
		}
		var err error
		outcome, err = reconcilePayments(ctx, q, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	util.PaymentsDeletedTotal.Inc()
	ps.logger.Info("Payment deleted",
		zap.Int64("order_id", orderID),
		zap.Int64("payment_id", paymentID),
		zap.String("payment_status", string(outcome.Result.PaymentStatus)))

	event := &models.PaymentDeletedEvent{
		BaseEvent:     newBaseEvent(models.EventTypePaymentDeleted),
		OrderID:       orderID,
		PaymentID:     paymentID,
		PaymentStatus: string(outcome.Result.PaymentStatus),
	}
	if err := ps.notifier.publisher.PublishPaymentDeleted(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentDeleted event", zap.Error(err))
	}
	ps.notifier.reconciled(ctx, orderID, outcome)

	return &PaymentResult{
		PaymentStatus: outcome.Result.PaymentStatus,
		Status:        outcome.Result.Status,
		PaidTotal:     outcome.PaidTotal,
		TotalAmount:   outcome.TotalAmount,
	}, nil
}

// ListPayments returns the ledger of an order
func (ps *PaymentService) ListPayments(ctx context.Context, orderID int64) ([]models.Payment, error) {
	if _, err := ps.repo.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return ps.repo.ListPayments(ctx, orderID)
}

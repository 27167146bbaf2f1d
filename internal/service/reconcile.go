package service

import (
	"context"
	"fmt"
	"time"

	"autoservice/internal/models"
	"autoservice/internal/store"
	"autoservice/internal/util"

	"github.com/shopspring/decimal"
)

// paymentTolerance absorbs rounding between the paid total and the order total
var paymentTolerance = decimal.New(1, -2)

// ReconcileInput is the state payment reconciliation derives from
type ReconcileInput struct {
	TotalAmount decimal.Decimal
	PaidTotal   decimal.Decimal
	Status      models.OrderStatus
}

// Reconciliation is the derived payment and workflow state
type Reconciliation struct {
	PaymentStatus models.PaymentStatus
	Status        models.OrderStatus
	// AutoCompleted is set when the payment moved the order into completed
	AutoCompleted bool
	// CompleteItems is set whenever the resulting status is completed
	CompleteItems bool
}

// Reconcile derives the payment status from the total and the paid amount.
// Rules are checked in order: nothing paid, paid within tolerance of the
// total, underpaid, overpaid. Full payment forces the order to completed.
func Reconcile(in ReconcileInput) Reconciliation {
	out := Reconciliation{Status: in.Status}

	switch {
	case in.PaidTotal.Sign() <= 0:
		out.PaymentStatus = models.PaymentStatusUnpaid
	case in.PaidTotal.Sub(in.TotalAmount).Abs().LessThan(paymentTolerance):
		out.PaymentStatus = models.PaymentStatusPaid
		out.complete()
	case in.PaidTotal.LessThan(in.TotalAmount):
		out.PaymentStatus = models.PaymentStatusPartial
	default:
		out.PaymentStatus = models.PaymentStatusPaid
		out.complete()
	}

	out.CompleteItems = out.Status == models.OrderStatusCompleted
	return out
}

func (r *Reconciliation) complete() {
	if r.Status != models.OrderStatusCompleted {
		r.Status = models.OrderStatusCompleted
		r.AutoCompleted = true
	}
}

// recalculateTotal recomputes the order total from its current lines and
// stores it rounded to cents
func recalculateTotal(ctx context.Context, q store.Queries, orderID int64) (decimal.Decimal, error) {
	services, err := q.ListServiceItems(ctx, orderID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list service items: %w", err)
	}
	parts, err := q.ListPartItems(ctx, orderID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list part items: %w", err)
	}

	total := models.ComputeTotal(services, parts).Round(2)
	if err := q.UpdateOrderTotal(ctx, orderID, total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to update order total: %w", err)
	}
	return total, nil
}

// reconcileOutcome is what reconcilePayments changed
type reconcileOutcome struct {
	PaidTotal     decimal.Decimal
	Previous      models.PaymentStatus
	Result        Reconciliation
	ItemsDone     int64
	TotalAmount   decimal.Decimal
	AutoCompleted bool
}

// reconcilePayments applies Reconcile to the stored order and persists the
// result, completing open service lines when the order ends up completed
func reconcilePayments(ctx context.Context, q store.Queries, orderID int64) (*reconcileOutcome, error) {
	start := time.Now()
	defer func() {
		util.ReconcileLatency.Observe(time.Since(start).Seconds())
	}()

	order, err := q.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	paid, err := q.SumPayments(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum payments: %w", err)
	}

	result := Reconcile(ReconcileInput{
		TotalAmount: order.TotalAmount,
		PaidTotal:   paid,
		Status:      order.Status,
	})

	if err := q.UpdateOrderState(ctx, orderID, result.Status, result.PaymentStatus); err != nil {
		return nil, fmt.Errorf("failed to update order state: %w", err)
	}

	outcome := &reconcileOutcome{
		PaidTotal:     paid,
		Previous:      order.PaymentStatus,
		Result:        result,
		TotalAmount:   order.TotalAmount,
		AutoCompleted: result.AutoCompleted,
	}

	if result.CompleteItems {
		n, err := q.CompleteServiceItems(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("failed to complete service items: %w", err)
		}
		outcome.ItemsDone = n
	}

	return outcome, nil
}

// recalculateAndReconcile is the tail of every command that touches lines
func recalculateAndReconcile(ctx context.Context, q store.Queries, orderID int64) (*reconcileOutcome, error) {
	if _, err := recalculateTotal(ctx, q, orderID); err != nil {
		return nil, err
	}
	return reconcilePayments(ctx, q, orderID)
}

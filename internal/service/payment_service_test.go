package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"autoservice/internal/models"
	"autoservice/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFullPaymentCompletesOrder(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	detail, _ := w.seedScenarioOrder(t, ctx)

	result, err := w.payments.RecordPayment(ctx, detail.ID, &PaymentRequest{
		Amount: amount("90000"), PaymentType: models.PaymentMethodCash,
	}, "")
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPaid, result.PaymentStatus)
	assert.Equal(t, models.OrderStatusCompleted, result.Status)
	assert.False(t, result.Replayed)

	reloaded, err := w.orders.GetOrder(ctx, detail.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Services, 1)
	assert.Equal(t, models.ServiceStatusDone, reloaded.Services[0].Status)
	assert.True(t, reloaded.RemainingAmount.IsZero())

	completed := w.publisher.completed()
	require.Len(t, completed, 1)
	assert.Equal(t, detail.ID, completed[0].OrderID)
	assert.Equal(t, int64(1), completed[0].ItemsDone)
	assert.Equal(t, "90000.00", completed[0].PaidTotal)
}

func TestPartialPaymentThenDelete(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	detail, _ := w.seedScenarioOrder(t, ctx)

	result, err := w.payments.RecordPayment(ctx, detail.ID, &PaymentRequest{
		Amount: amount("30000"), PaymentType: models.PaymentMethodCard,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPartial, result.PaymentStatus)
	assert.Equal(t, models.OrderStatusInProgress, result.Status)
	assert.True(t, amount("30000").Equal(result.PaidTotal))

	deleted, err := w.payments.DeletePayment(ctx, detail.ID, result.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusUnpaid, deleted.PaymentStatus)
	assert.Equal(t, models.OrderStatusInProgress, deleted.Status)
	assert.True(t, deleted.PaidTotal.IsZero())

	assert.Empty(t, w.publisher.completed())
}

func TestPaymentsWithinToleranceComplete(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	customer, vehicle := w.seedCustomer(t, ctx)
	svc := w.seedService(t, ctx, "100.01")

	detail, err := w.orders.CreateOrder(ctx, &CreateOrderRequest{
		CustomerID: customer.ID,
		VehicleID:  vehicle.ID,
		Services:   []ServiceLineRequest{{ServiceID: svc.ID, Status: models.ServiceStatusChecking}},
	})
	require.NoError(t, err)

	result, err := w.payments.RecordPayment(ctx, detail.ID, &PaymentRequest{
		Amount: amount("100.00"), PaymentType: models.PaymentMethodCash,
	}, "")
	require.NoError(t, err)

	// one cent short is outside the band
	assert.Equal(t, models.PaymentStatusPartial, result.PaymentStatus)

	result, err = w.payments.RecordPayment(ctx, detail.ID, &PaymentRequest{
		Amount: amount("50"), PaymentType: models.PaymentMethodCash,
	}, "")
	require.NoError(t, err)

	// overpayment is still just paid
	assert.Equal(t, models.PaymentStatusPaid, result.PaymentStatus)
	assert.Equal(t, models.OrderStatusCompleted, result.Status)
}

func TestCompletionLeavesDoneLinesAlone(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	detail, _ := w.seedScenarioOrder(t, ctx)
	svc := w.seedService(t, ctx, "0")

	_, err := w.lines.AddService(ctx, detail.ID, &ServiceLineRequest{ServiceID: svc.ID, Status: models.ServiceStatusDone})
	require.NoError(t, err)

	_, err = w.payments.RecordPayment(ctx, detail.ID, &PaymentRequest{
		Amount: amount("90000"), PaymentType: models.PaymentMethodCash,
	}, "")
	require.NoError(t, err)

	completed := w.publisher.completed()
	require.Len(t, completed, 1)
	assert.Equal(t, int64(1), completed[0].ItemsDone)

	items, err := w.store.ListServiceItems(ctx, detail.ID)
	require.NoError(t, err)
	for _, item := range items {
		assert.Equal(t, models.ServiceStatusDone, item.Status)
	}
}

func TestRecordPaymentIdempotencyKey(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	detail, _ := w.seedScenarioOrder(t, ctx)
	req := &PaymentRequest{Amount: amount("30000"), PaymentType: models.PaymentMethodCard}

	first, err := w.payments.RecordPayment(ctx, detail.ID, req, "key-1")
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := w.payments.RecordPayment(ctx, detail.ID, req, "key-1")
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Payment.ID, second.Payment.ID)
	assert.True(t, amount("30000").Equal(second.PaidTotal))

	payments, err := w.payments.ListPayments(ctx, detail.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	// the lock is released once the request finished
	assert.Empty(t, w.kv.locks)
}

func TestRecordPaymentReplayAfterDeleteRecordsAgain(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	detail, _ := w.seedScenarioOrder(t, ctx)
	req := &PaymentRequest{Amount: amount("100"), PaymentType: models.PaymentMethodCash}

	first, err := w.payments.RecordPayment(ctx, detail.ID, req, "key-2")
	require.NoError(t, err)
	_, err = w.payments.DeletePayment(ctx, detail.ID, first.Payment.ID)
	require.NoError(t, err)

	again, err := w.payments.RecordPayment(ctx, detail.ID, req, "key-2")
	require.NoError(t, err)
	assert.False(t, again.Replayed)
	assert.NotEqual(t, first.Payment.ID, again.Payment.ID)
}

func TestRecordPaymentInFlight(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	detail, _ := w.seedScenarioOrder(t, ctx)

	locked, err := w.kv.AcquireLock(ctx, fmt.Sprintf("payment:%d:busy", detail.ID), time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	_, err = w.payments.RecordPayment(ctx, detail.ID, &PaymentRequest{
		Amount: amount("10"), PaymentType: models.PaymentMethodCash,
	}, "busy")
	assert.ErrorIs(t, err, ErrRequestInFlight)
}

func TestPaymentValidationAndScope(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	detail, _ := w.seedScenarioOrder(t, ctx)
	other, _ := w.seedScenarioOrder(t, ctx)

	_, err := w.payments.RecordPayment(ctx, detail.ID, &PaymentRequest{
		Amount: amount("-1"), PaymentType: models.PaymentMethodCash,
	}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = w.payments.RecordPayment(ctx, detail.ID, &PaymentRequest{
		Amount: amount("1"), PaymentType: "barter",
	}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = w.payments.RecordPayment(ctx, 9999, &PaymentRequest{
		Amount: amount("1"), PaymentType: models.PaymentMethodCash,
	}, "")
	assert.ErrorIs(t, err, store.ErrNotFound)

	result, err := w.payments.RecordPayment(ctx, detail.ID, &PaymentRequest{
		Amount: amount("1"), PaymentType: models.PaymentMethodCash,
	}, "")
	require.NoError(t, err)

	// a payment can only be removed through its own order
	_, err = w.payments.DeletePayment(ctx, other.ID, result.Payment.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecordPaymentWithoutIdempotencyStore(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	detail, _ := w.seedScenarioOrder(t, ctx)
	payments := NewPaymentService(w.store, nil, nil, time.Hour)
	req := &PaymentRequest{Amount: amount("10"), PaymentType: models.PaymentMethodCash}

	_, err := payments.RecordPayment(ctx, detail.ID, req, "key-3")
	require.NoError(t, err)
	_, err = payments.RecordPayment(ctx, detail.ID, req, "key-3")
	require.NoError(t, err)

	listed, err := payments.ListPayments(ctx, detail.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

package service

import (
	"context"
	"testing"

	"autoservice/internal/models"
	"autoservice/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrderComputesTotal(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()

	detail, part := w.seedScenarioOrder(t, ctx)

	assert.True(t, amount("90000").Equal(detail.TotalAmount), "got %s", detail.TotalAmount)
	assert.Equal(t, models.PaymentStatusUnpaid, detail.PaymentStatus)
	assert.Equal(t, models.OrderStatusInProgress, detail.Status)
	require.Len(t, detail.Services, 1)
	require.Len(t, detail.Parts, 1)
	assert.Equal(t, models.ServiceStatusInProgress, detail.Services[0].Status)
	assert.Equal(t, 1, detail.Services[0].Quantity)
	assert.True(t, amount("90000").Equal(detail.RemainingAmount))

	assert.Equal(t, 8, w.stockOf(t, ctx, part.ID))
}

func TestCreateOrderSkipsEmptyRows(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	customer, vehicle := w.seedCustomer(t, ctx)

	detail, err := w.orders.CreateOrder(ctx, &CreateOrderRequest{
		CustomerID: customer.ID,
		VehicleID:  vehicle.ID,
		Services:   []ServiceLineRequest{{}},
		Parts:      []PartLineRequest{{}},
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusNew, detail.Status)
	assert.Empty(t, detail.Services)
	assert.Empty(t, detail.Parts)
	assert.True(t, detail.TotalAmount.IsZero())
}

func TestCreateOrderWithFullPaymentCompletes(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	customer, vehicle := w.seedCustomer(t, ctx)
	svc := w.seedService(t, ctx, "1500")

	detail, err := w.orders.CreateOrder(ctx, &CreateOrderRequest{
		CustomerID: customer.ID,
		VehicleID:  vehicle.ID,
		Services:   []ServiceLineRequest{{ServiceID: svc.ID}},
		Payments:   []PaymentRequest{{Amount: amount("1500"), PaymentType: models.PaymentMethodCash}},
	})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPaid, detail.PaymentStatus)
	assert.Equal(t, models.OrderStatusCompleted, detail.Status)
	assert.Equal(t, models.ServiceStatusDone, detail.Services[0].Status)
	assert.Len(t, w.publisher.completed(), 1)
}

func TestCreateOrderRejectsForeignVehicle(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	owner, vehicle := w.seedCustomer(t, ctx)
	other, _ := w.seedCustomer(t, ctx)
	require.NotEqual(t, owner.ID, other.ID)

	_, err := w.orders.CreateOrder(ctx, &CreateOrderRequest{
		CustomerID: other.ID,
		VehicleID:  vehicle.ID,
	})
	assert.ErrorIs(t, err, ErrVehicleMismatch)

	orders, err := w.store.ListOrdersByCustomer(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreateOrderInsufficientStockRollsBack(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	customer, vehicle := w.seedCustomer(t, ctx)
	part := w.seedPart(t, ctx, "100", 1)

	_, err := w.orders.CreateOrder(ctx, &CreateOrderRequest{
		CustomerID: customer.ID,
		VehicleID:  vehicle.ID,
		Parts:      []PartLineRequest{{PartID: part.ID, Quantity: 2}},
	})
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	assert.Equal(t, 1, w.stockOf(t, ctx, part.ID))
	orders, err := w.store.ListOrdersByCustomer(ctx, customer.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreateOrderValidation(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	customer, vehicle := w.seedCustomer(t, ctx)
	svc := w.seedService(t, ctx, "100")

	tests := []struct {
		name string
		req  CreateOrderRequest
	}{
		{"missing vehicle", CreateOrderRequest{CustomerID: customer.ID}},
		{"bad status", CreateOrderRequest{CustomerID: customer.ID, VehicleID: vehicle.ID, Status: "archived"}},
		{"discount above 100", CreateOrderRequest{
			CustomerID: customer.ID, VehicleID: vehicle.ID,
			Services: []ServiceLineRequest{{ServiceID: svc.ID, Discount: discount("101")}},
		}},
		{"zero payment", CreateOrderRequest{
			CustomerID: customer.ID, VehicleID: vehicle.ID,
			Payments: []PaymentRequest{{Amount: amount("0"), PaymentType: models.PaymentMethodCash}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.orders.CreateOrder(ctx, &tt.req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestRecalculateTotalIsIdempotent(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	detail, _ := w.seedScenarioOrder(t, ctx)

	first, err := w.orders.RecalculateTotal(ctx, detail.ID)
	require.NoError(t, err)
	second, err := w.orders.RecalculateTotal(ctx, detail.ID)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.True(t, amount("90000").Equal(first))
}

func TestRecalculateTotalRoundsToCents(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	customer, vehicle := w.seedCustomer(t, ctx)
	svc := w.seedService(t, ctx, "99.99")

	detail, err := w.orders.CreateOrder(ctx, &CreateOrderRequest{
		CustomerID: customer.ID,
		VehicleID:  vehicle.ID,
		Services:   []ServiceLineRequest{{ServiceID: svc.ID, Discount: discount("12.5")}},
	})
	require.NoError(t, err)

	assert.Equal(t, "87.49", detail.TotalAmount.StringFixed(2))
	assert.True(t, amount("87.49").Equal(detail.TotalAmount))
}

func TestUpdatePaymentStateReturnsPaidTotal(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	detail, _ := w.seedScenarioOrder(t, ctx)

	_, err := w.payments.RecordPayment(ctx, detail.ID, &PaymentRequest{
		Amount: amount("30000"), PaymentType: models.PaymentMethodCard,
	}, "")
	require.NoError(t, err)

	paid, err := w.orders.UpdatePaymentState(ctx, detail.ID)
	require.NoError(t, err)
	assert.True(t, amount("30000").Equal(paid))

	_, err = w.orders.UpdatePaymentState(ctx, 404)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateOrderReconciles(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	detail, _ := w.seedScenarioOrder(t, ctx)

	updated, err := w.orders.UpdateOrder(ctx, detail.ID, &UpdateOrderRequest{
		CustomerID:  detail.CustomerID,
		VehicleID:   detail.VehicleID,
		Description: "brakes squeal",
		Status:      models.OrderStatusChecking,
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusChecking, updated.Status)
	assert.Equal(t, "brakes squeal", updated.Description)
	assert.Equal(t, models.PaymentStatusUnpaid, updated.PaymentStatus)
}

func TestGetOrderNotFound(t *testing.T) {
	w := newWorkshop(t)

	_, err := w.orders.GetOrder(context.Background(), 42)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteOrderKeepsStock(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	detail, part := w.seedScenarioOrder(t, ctx)

	require.NoError(t, w.orders.DeleteOrder(ctx, detail.ID))

	_, err := w.orders.GetOrder(ctx, detail.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 8, w.stockOf(t, ctx, part.ID))

	// the part is no longer referenced and can be removed
	require.NoError(t, w.catalog.DeletePart(ctx, part.ID))
}

func TestOrderHistoryLists(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	customer, vehicle := w.seedCustomer(t, ctx)

	var ids []int64
	for i := 0; i < 2; i++ {
		detail, err := w.orders.CreateOrder(ctx, &CreateOrderRequest{CustomerID: customer.ID, VehicleID: vehicle.ID})
		require.NoError(t, err)
		ids = append(ids, detail.ID)
	}

	byVehicle, err := w.orders.ListByVehicle(ctx, vehicle.ID)
	require.NoError(t, err)
	require.Len(t, byVehicle, 2)
	assert.Equal(t, ids[1], byVehicle[0].ID)

	byCustomer, err := w.orders.ListByCustomer(ctx, customer.ID)
	require.NoError(t, err)
	assert.Len(t, byCustomer, 2)

	_, err = w.orders.ListByCustomer(ctx, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPhotos(t *testing.T) {
	w := newWorkshop(t)
	ctx := context.Background()
	detail, _ := w.seedScenarioOrder(t, ctx)

	photo, err := w.orders.AttachPhoto(ctx, detail.ID, &PhotoRequest{ImagePath: "orders/1/before.jpg", IsBefore: true})
	require.NoError(t, err)

	_, err = w.orders.AttachPhoto(ctx, detail.ID, &PhotoRequest{ImagePath: " "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	photos, err := w.orders.ListPhotos(ctx, detail.ID)
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.True(t, photos[0].IsBefore)

	assert.ErrorIs(t, w.orders.DeletePhoto(ctx, detail.ID+1, photo.ID), store.ErrNotFound)
	require.NoError(t, w.orders.DeletePhoto(ctx, detail.ID, photo.ID))
}

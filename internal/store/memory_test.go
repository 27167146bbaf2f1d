package store

import (
	"context"
	"errors"
	"testing"

	"autoservice/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreStockNeverNegative(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, part := seedOrder(t, ctx, s)

	stock, err := s.AdjustPartStock(ctx, part.ID, -3)
	require.NoError(t, err)
	assert.Equal(t, 0, stock)

	_, err = s.AdjustPartStock(ctx, part.ID, -1)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, err = s.AdjustPartStock(ctx, 999, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreInTxRollsBack(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	order, part := seedOrder(t, ctx, s)

	errBoom := errors.New("boom")
	err := s.InTx(ctx, func(q Queries) error {
		require.NoError(t, q.CreatePayment(ctx, &models.Payment{
			OrderID: order.ID, Amount: decimal.NewFromInt(10), PaymentType: models.PaymentMethodCard,
		}))
		_, err := q.AdjustPartStock(ctx, part.ID, -1)
		require.NoError(t, err)
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	payments, err := s.ListPayments(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)

	reloaded, err := s.GetPart(ctx, part.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.StockQuantity)
}

func TestMemoryStoreInTxCommits(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	order, _ := seedOrder(t, ctx, s)

	err := s.InTx(ctx, func(q Queries) error {
		return q.UpdateOrderState(ctx, order.ID, models.OrderStatusCompleted, models.PaymentStatusPaid)
	})
	require.NoError(t, err)

	reloaded, err := s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, reloaded.Status)
	assert.Equal(t, models.PaymentStatusPaid, reloaded.PaymentStatus)
}

func TestMemoryStoreProtectedCatalog(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	order, part := seedOrder(t, ctx, s)

	svc := &models.Service{Name: "Diagnostics", BasePrice: decimal.NewFromInt(50)}
	require.NoError(t, s.CreateService(ctx, svc))
	require.NoError(t, s.CreateServiceItem(ctx, &models.ServiceItem{
		OrderID: order.ID, ServiceID: svc.ID, Quantity: 1, Price: svc.BasePrice, Status: models.ServiceStatusInProgress,
	}))
	require.NoError(t, s.CreatePartItem(ctx, &models.PartItem{
		OrderID: order.ID, PartID: part.ID, Quantity: 1, Price: part.Price,
	}))

	assert.ErrorIs(t, s.DeleteService(ctx, svc.ID), ErrProtected)
	assert.ErrorIs(t, s.DeletePart(ctx, part.ID), ErrProtected)

	require.NoError(t, s.DeleteOrder(ctx, order.ID))
	assert.NoError(t, s.DeleteService(ctx, svc.ID))
	assert.NoError(t, s.DeletePart(ctx, part.ID))
}

func TestMemoryStoreCustomerCascade(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	order, part := seedOrder(t, ctx, s)

	item := &models.PartItem{OrderID: order.ID, PartID: part.ID, Quantity: 1, Price: part.Price}
	require.NoError(t, s.CreatePartItem(ctx, item))
	orderID := order.ID
	require.NoError(t, s.CreateStockMovement(ctx, &models.StockMovement{
		PartID: part.ID, OrderID: &orderID, PartItemID: &item.ID,
		Kind: models.MovementOrderPartCreated, Quantity: -1, StockBefore: 3, StockAfter: 2,
	}))

	require.NoError(t, s.DeleteCustomer(ctx, order.CustomerID))

	_, err := s.GetOrder(ctx, order.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetVehicle(ctx, order.VehicleID)
	assert.ErrorIs(t, err, ErrNotFound)

	// movements survive with their order references cleared
	movements, err := s.ListStockMovements(ctx, part.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Nil(t, movements[0].OrderID)
	assert.Nil(t, movements[0].PartItemID)
}

func TestMemoryStoreCompleteServiceItems(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	order, _ := seedOrder(t, ctx, s)

	svc := &models.Service{Name: "Alignment", BasePrice: decimal.NewFromInt(30)}
	require.NoError(t, s.CreateService(ctx, svc))
	for _, st := range []models.ServiceStatus{
		models.ServiceStatusInProgress, models.ServiceStatusChecking, models.ServiceStatusDone,
	} {
		require.NoError(t, s.CreateServiceItem(ctx, &models.ServiceItem{
			OrderID: order.ID, ServiceID: svc.ID, Quantity: 1, Price: svc.BasePrice, Status: st,
		}))
	}

	n, err := s.CompleteServiceItems(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	items, err := s.ListServiceItems(ctx, order.ID)
	require.NoError(t, err)
	for _, item := range items {
		assert.Equal(t, models.ServiceStatusDone, item.Status)
	}
}

func TestMemoryStoreDuplicateArticle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreatePart(ctx, &models.Part{Name: "Pad", Article: "BP-1", Price: decimal.NewFromInt(5)}))
	err := s.CreatePart(ctx, &models.Part{Name: "Pad 2", Article: "BP-1", Price: decimal.NewFromInt(6)})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMemoryStoreScopedLookups(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	order, _ := seedOrder(t, ctx, s)
	other, _ := seedOrder(t, ctx, s)

	p := &models.Payment{OrderID: order.ID, Amount: decimal.NewFromInt(1), PaymentType: models.PaymentMethodCash}
	require.NoError(t, s.CreatePayment(ctx, p))

	_, err := s.GetPayment(ctx, other.ID, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeletePayment(ctx, other.ID, p.ID), ErrNotFound)
}

func TestMemoryStoreMasterWorkload(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	order, _ := seedOrder(t, ctx, s)

	busy := &models.Master{FullName: "Oleg"}
	idle := &models.Master{FullName: "Sergey"}
	require.NoError(t, s.CreateMaster(ctx, busy))
	require.NoError(t, s.CreateMaster(ctx, idle))

	order.MasterID = &busy.ID
	require.NoError(t, s.UpdateOrder(ctx, order))

	workload, err := s.MasterWorkload(ctx)
	require.NoError(t, err)
	require.Len(t, workload, 2)
	assert.Equal(t, 1, workload[0].TotalOrders)
	assert.Equal(t, 0, workload[1].TotalOrders)

	require.NoError(t, s.DeleteMaster(ctx, busy.ID))
	reloaded, err := s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.MasterID)
}

func TestMemoryStorePartStockVersion(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	order, part := seedOrder(t, ctx, s)

	ps, err := s.GetPartStock(ctx, part.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, ps.StockQuantity)
	assert.Zero(t, ps.Version)

	var last int64
	for _, delta := range []int{-1, 2} {
		m := &models.StockMovement{PartID: part.ID, OrderID: &order.ID, Kind: models.MovementManualAdjustment, Quantity: delta}
		require.NoError(t, s.InTx(ctx, func(q Queries) error {
			after, err := q.AdjustPartStock(ctx, part.ID, delta)
			if err != nil {
				return err
			}
			m.StockAfter = after
			return q.CreateStockMovement(ctx, m)
		}))
		last = m.ID
	}

	ps, err = s.GetPartStock(ctx, part.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, ps.StockQuantity)
	assert.Equal(t, last, ps.Version)

	movements, err := s.ListStockMovements(ctx, part.ID)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, last, movements[0].ID)

	_, err = s.GetPartStock(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreOrderDeletionKeepsMovements(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	order, part := seedOrder(t, ctx, s)

	item := &models.PartItem{OrderID: order.ID, PartID: part.ID, Quantity: 1, Price: part.Price}
	require.NoError(t, s.CreatePartItem(ctx, item))
	require.NoError(t, s.CreateStockMovement(ctx, &models.StockMovement{
		PartID: part.ID, OrderID: &order.ID, PartItemID: &item.ID, Kind: models.MovementOrderPartCreated, Quantity: -1,
	}))

	require.NoError(t, s.DeleteOrder(ctx, order.ID))

	movements, err := s.ListStockMovements(ctx, part.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Nil(t, movements[0].OrderID)
	assert.Nil(t, movements[0].PartItemID)

	items, err := s.ListPartItems(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	// the part is free to delete once no line uses it
	require.NoError(t, s.DeletePart(ctx, part.ID))
}

package store

import (
	"context"
	"fmt"
	"os"
	"testing"

	"autoservice/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore connects to TEST_DATABASE_URL and applies migrations
func openTestStore(t *testing.T) *Store {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires database (set TEST_DATABASE_URL)")
	}

	require.NoError(t, Migrate(url))

	store, err := NewStore(url)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedOrder(t *testing.T, ctx context.Context, q Queries) (*models.Order, *models.Part) {
	customer := &models.Customer{FullName: "Ivan Petrov", Phone: "+70000000001"}
	require.NoError(t, q.CreateCustomer(ctx, customer))

	vehicle := &models.Vehicle{CustomerID: customer.ID, Brand: "Lada", Model: "Vesta", PlateNumber: "A001AA"}
	require.NoError(t, q.CreateVehicle(ctx, vehicle))

	part := &models.Part{
		Name:          "Oil filter",
		Article:       fmt.Sprintf("OF-%d", customer.ID),
		Price:         decimal.RequireFromString("12.50"),
		StockQuantity: 3,
	}
	require.NoError(t, q.CreatePart(ctx, part))

	order := &models.Order{
		CustomerID:    customer.ID,
		VehicleID:     vehicle.ID,
		Status:        models.OrderStatusNew,
		PaymentStatus: models.PaymentStatusUnpaid,
		TotalAmount:   decimal.Zero,
	}
	require.NoError(t, q.CreateOrder(ctx, order))
	return order, part
}

func TestPostgresStockCheckConstraint(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, part := seedOrder(t, ctx, store)

	stock, err := store.AdjustPartStock(ctx, part.ID, -2)
	require.NoError(t, err)
	assert.Equal(t, 1, stock)

	_, err = store.AdjustPartStock(ctx, part.ID, -2)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	reloaded, err := store.GetPart(ctx, part.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.StockQuantity)
}

func TestPostgresTransactionRollback(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	order, part := seedOrder(t, ctx, store)

	err := store.InTx(ctx, func(q Queries) error {
		item := &models.PartItem{OrderID: order.ID, PartID: part.ID, Quantity: 5, Price: part.Price}
		if err := q.CreatePartItem(ctx, item); err != nil {
			return err
		}
		_, err := q.AdjustPartStock(ctx, part.ID, -5)
		return err
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	items, err := store.ListPartItems(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPostgresProtectedPart(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	order, part := seedOrder(t, ctx, store)
	require.NoError(t, store.CreatePartItem(ctx, &models.PartItem{
		OrderID: order.ID, PartID: part.ID, Quantity: 1, Price: part.Price,
	}))

	assert.ErrorIs(t, store.DeletePart(ctx, part.ID), ErrProtected)
}

func TestPostgresSumPayments(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	order, _ := seedOrder(t, ctx, store)

	paid, err := store.SumPayments(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, paid.IsZero())

	for _, amount := range []string{"40.00", "59.99"} {
		require.NoError(t, store.CreatePayment(ctx, &models.Payment{
			OrderID:     order.ID,
			Amount:      decimal.RequireFromString(amount),
			PaymentType: models.PaymentMethodCash,
		}))
	}

	paid, err = store.SumPayments(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("99.99").Equal(paid), paid.String())
}

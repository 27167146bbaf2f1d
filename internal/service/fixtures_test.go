package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"autoservice/internal/models"
	"autoservice/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// recordingPublisher keeps every published event in order
type recordingPublisher struct {
	mu     sync.Mutex
	events []interface{}
	err    error
}

func (p *recordingPublisher) add(event interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) PublishOrderCreated(_ context.Context, e *models.OrderCreatedEvent) error {
	return p.add(e)
}

func (p *recordingPublisher) PublishOrderUpdated(_ context.Context, e *models.OrderUpdatedEvent) error {
	return p.add(e)
}

func (p *recordingPublisher) PublishOrderCompleted(_ context.Context, e *models.OrderCompletedEvent) error {
	return p.add(e)
}

func (p *recordingPublisher) PublishPaymentRecorded(_ context.Context, e *models.PaymentRecordedEvent) error {
	return p.add(e)
}

func (p *recordingPublisher) PublishPaymentDeleted(_ context.Context, e *models.PaymentDeletedEvent) error {
	return p.add(e)
}

func (p *recordingPublisher) PublishPartStockAdjusted(_ context.Context, e *models.PartStockAdjustedEvent) error {
	return p.add(e)
}

func (p *recordingPublisher) completed() []*models.OrderCompletedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*models.OrderCompletedEvent
	for _, e := range p.events {
		if c, ok := e.(*models.OrderCompletedEvent); ok {
			out = append(out, c)
		}
	}
	return out
}

func (p *recordingPublisher) stockAdjusted() []*models.PartStockAdjustedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*models.PartStockAdjustedEvent
	for _, e := range p.events {
		if s, ok := e.(*models.PartStockAdjustedEvent); ok {
			out = append(out, s)
		}
	}
	return out
}

// memoryKV stands in for Redis in service tests
type memoryKV struct {
	mu     sync.Mutex
	values map[string]string
	locks  map[string]bool
	stock  map[int64]mirroredStock
}

type mirroredStock struct {
	quantity int
	version  int64
}

func newMemoryKV() *memoryKV {
	return &memoryKV{
		values: map[string]string{},
		locks:  map[string]bool{},
		stock:  map[int64]mirroredStock{},
	}
}

func (kv *memoryKV) GetIdempotencyKey(_ context.Context, key string) (string, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.values[key]
	return v, ok, nil
}

func (kv *memoryKV) SetIdempotencyKey(_ context.Context, key string, value interface{}, _ time.Duration) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.values[key] = fmt.Sprint(value)
	return nil
}

func (kv *memoryKV) AcquireLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.locks[key] {
		return false, nil
	}
	kv.locks[key] = true
	return true, nil
}

func (kv *memoryKV) ReleaseLock(_ context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.locks, key)
	return nil
}

// SetStock keeps the higher version, like the Redis script
func (kv *memoryKV) SetStock(_ context.Context, partID int64, quantity int, version int64) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if stored, ok := kv.stock[partID]; ok && stored.version > version {
		return nil
	}
	kv.stock[partID] = mirroredStock{quantity: quantity, version: version}
	return nil
}

func (kv *memoryKV) GetStock(_ context.Context, partID int64) (int, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.stock[partID]
	return v.quantity, ok, nil
}

// workshop wires every service to one memory store
type workshop struct {
	store     *store.MemoryStore
	publisher *recordingPublisher
	kv        *memoryKV
	orders    *OrderService
	lines     *LineService
	payments  *PaymentService
	catalog   *CatalogService
	inventory *InventoryClient
	audit     *AuditRecorder
}

func newWorkshop(t *testing.T) *workshop {
	t.Helper()

	s := store.NewMemoryStore()
	pub := &recordingPublisher{}
	kv := newMemoryKV()
	return &workshop{
		store:     s,
		publisher: pub,
		kv:        kv,
		orders:    NewOrderService(s, pub, kv),
		lines:     NewLineService(s, pub, kv),
		payments:  NewPaymentService(s, pub, kv, time.Hour),
		catalog:   NewCatalogService(s, pub, kv),
		inventory: NewInventoryClient(s, kv, 2),
		audit:     NewAuditRecorder(s),
	}
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func discount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(amount(s))
}

// seedCustomer creates a customer with one vehicle
func (w *workshop) seedCustomer(t *testing.T, ctx context.Context) (*models.Customer, *models.Vehicle) {
	t.Helper()

	customer := &models.Customer{FullName: "Ivan Petrov", Phone: "+7 900 000 00 00"}
	require.NoError(t, w.catalog.CreateCustomer(ctx, customer))

	vehicle := &models.Vehicle{
		CustomerID:  customer.ID,
		Brand:       "Lada",
		Model:       "Vesta",
		PlateNumber: "A" + strconv.FormatInt(customer.ID, 10) + "BC77",
	}
	require.NoError(t, w.catalog.CreateVehicle(ctx, vehicle))
	return customer, vehicle
}

func (w *workshop) seedService(t *testing.T, ctx context.Context, price string) *models.Service {
	t.Helper()
	svc := &models.Service{Name: "Engine diagnostics", BasePrice: amount(price)}
	require.NoError(t, w.catalog.CreateService(ctx, svc))
	return svc
}

func (w *workshop) seedPart(t *testing.T, ctx context.Context, price string, stock int) *models.Part {
	t.Helper()
	part := &models.Part{
		Name:          "Brake pad",
		Article:       fmt.Sprintf("BP-%d-%d", stock, time.Now().UnixNano()),
		Price:         amount(price),
		StockQuantity: stock,
	}
	require.NoError(t, w.catalog.CreatePart(ctx, part))
	return part
}

// seedScenarioOrder builds the 45000 service + 2 × 25000 at 10% order
func (w *workshop) seedScenarioOrder(t *testing.T, ctx context.Context) (*OrderDetail, *models.Part) {
	t.Helper()

	customer, vehicle := w.seedCustomer(t, ctx)
	svc := w.seedService(t, ctx, "45000")
	part := w.seedPart(t, ctx, "25000", 10)

	detail, err := w.orders.CreateOrder(ctx, &CreateOrderRequest{
		CustomerID: customer.ID,
		VehicleID:  vehicle.ID,
		Status:     models.OrderStatusInProgress,
		Services:   []ServiceLineRequest{{ServiceID: svc.ID}},
		Parts:      []PartLineRequest{{PartID: part.ID, Quantity: 2, Discount: discount("10")}},
	})
	require.NoError(t, err)
	return detail, part
}

func (w *workshop) stockOf(t *testing.T, ctx context.Context, partID int64) int {
	t.Helper()
	part, err := w.store.GetPart(ctx, partID)
	require.NoError(t, err)
	return part.StockQuantity
}

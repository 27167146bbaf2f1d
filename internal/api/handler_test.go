package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"autoservice/internal/models"
	"autoservice/internal/service"
	"autoservice/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryKV is an in-process idempotency store
type memoryKV struct {
	mu     sync.Mutex
	values map[string]string
	locks  map[string]bool
}

func newKV() *memoryKV {
	return &memoryKV{values: map[string]string{}, locks: map[string]bool{}}
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

type testServer struct {
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := store.NewMemoryStore()
	publisher := service.NopPublisher()
	handler := NewHandler(Services{
		Orders:    service.NewOrderService(s, publisher, nil),
		Lines:     service.NewLineService(s, publisher, nil),
		Payments:  service.NewPaymentService(s, publisher, newKV(), time.Hour),
		Catalog:   service.NewCatalogService(s, publisher, nil),
		Inventory: service.NewInventoryClient(s, nil, 0),
		Store:     s,
	})

	router := gin.New()
	handler.SetupRoutes(router)
	return &testServer{router: router}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

// seed creates a customer with a vehicle, a service and a part
func (ts *testServer) seed(t *testing.T) (customer models.Customer, vehicle models.Vehicle, svc models.Service, part models.Part) {
	t.Helper()

	w := ts.do(t, http.MethodPost, "/api/v1/customers", gin.H{"full_name": "Anna Smirnova", "phone": "+7 901 111 22 33"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decode(t, w, &customer)

	w = ts.do(t, http.MethodPost, "/api/v1/vehicles", gin.H{
		"customer_id": customer.ID, "brand": "Kia", "model": "Rio", "plate_number": fmt.Sprintf("K%dMM77", customer.ID),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decode(t, w, &vehicle)

	w = ts.do(t, http.MethodPost, "/api/v1/services", gin.H{"name": "Oil change", "base_price": "45000"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decode(t, w, &svc)

	w = ts.do(t, http.MethodPost, "/api/v1/parts", gin.H{
		"name": "Oil filter", "article": fmt.Sprintf("OF-%d", customer.ID), "price": "25000", "stock_quantity": 10,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decode(t, w, &part)
	return
}

type orderBody struct {
	ID            int64                `json:"id"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	Services      []models.ServiceItem `json:"services"`
}

func TestOrderPaymentFlow(t *testing.T) {
	ts := newTestServer(t)
	customer, vehicle, svc, part := ts.seed(t)

	w := ts.do(t, http.MethodPost, "/api/v1/orders", gin.H{
		"customer_id": customer.ID,
		"vehicle_id":  vehicle.ID,
		"status":      "in_progress",
		"services":    []gin.H{{"service_id": svc.ID}},
		"parts":       []gin.H{{"part_id": part.ID, "quantity": 2, "discount": 10}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order orderBody
	decode(t, w, &order)
	assert.True(t, decimal.NewFromInt(90000).Equal(order.TotalAmount), "got %s", order.TotalAmount)
	assert.Equal(t, models.PaymentStatusUnpaid, order.PaymentStatus)

	payment := gin.H{"amount": "90000", "payment_type": "cash"}
	path := fmt.Sprintf("/api/v1/orders/%d/payments", order.ID)

	w = ts.do(t, http.MethodPost, path, payment, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var result service.PaymentResult
	decode(t, w, &result)
	assert.Equal(t, models.PaymentStatusPaid, result.PaymentStatus)
	assert.Equal(t, models.OrderStatusCompleted, result.Status)

	w = ts.do(t, http.MethodPost, path, payment, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var replay service.PaymentResult
	decode(t, w, &replay)
	assert.True(t, replay.Replayed)
	assert.Equal(t, result.Payment.ID, replay.Payment.ID)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", order.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &order)
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	require.Len(t, order.Services, 1)
	assert.Equal(t, models.ServiceStatusDone, order.Services[0].Status)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/parts/%d/stock", part.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stock struct {
		StockQuantity int `json:"stock_quantity"`
	}
	decode(t, w, &stock)
	assert.Equal(t, 8, stock.StockQuantity)

	w = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/orders/%d/payments/%d", order.ID, result.Payment.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &result)
	assert.Equal(t, models.PaymentStatusUnpaid, result.PaymentStatus)
}

func TestErrorStatusMapping(t *testing.T) {
	ts := newTestServer(t)
	customer, vehicle, _, part := ts.seed(t)
	other, _, _, _ := ts.seed(t)

	w := ts.do(t, http.MethodPost, "/api/v1/orders", gin.H{
		"customer_id": customer.ID,
		"vehicle_id":  vehicle.ID,
		"parts":       []gin.H{{"part_id": part.ID, "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order orderBody
	decode(t, w, &order)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"missing order", http.MethodGet, "/api/v1/orders/9999", nil, http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/v1/orders/abc", nil, http.StatusBadRequest},
		{"protected part", http.MethodDelete, fmt.Sprintf("/api/v1/parts/%d", part.ID), nil, http.StatusConflict},
		{"insufficient stock", http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/parts", order.ID),
			gin.H{"part_id": part.ID, "quantity": 100}, http.StatusConflict},
		{"foreign vehicle", http.MethodPost, "/api/v1/orders",
			gin.H{"customer_id": other.ID, "vehicle_id": vehicle.ID}, http.StatusBadRequest},
		{"missing vehicle id", http.MethodPost, "/api/v1/orders",
			gin.H{"customer_id": customer.ID}, http.StatusBadRequest},
		{"negative payment", http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/payments", order.ID),
			gin.H{"amount": "-5", "payment_type": "cash"}, http.StatusBadRequest},
		{"duplicate article", http.MethodPost, "/api/v1/parts",
			gin.H{"name": "Copy", "article": part.Article, "price": "1"}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())

			var body map[string]interface{}
			decode(t, w, &body)
			assert.Contains(t, body, "error")
		})
	}
}

func TestStockAdjustmentEndpoints(t *testing.T) {
	ts := newTestServer(t)
	_, _, _, part := ts.seed(t)

	w := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/parts/%d/stock", part.ID), gin.H{"delta": 5, "reason": "delivery"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var movement models.StockMovement
	decode(t, w, &movement)
	assert.Equal(t, 10, movement.StockBefore)
	assert.Equal(t, 15, movement.StockAfter)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/parts/%d/movements", part.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var movements []models.StockMovement
	decode(t, w, &movements)
	require.Len(t, movements, 1)
	assert.Equal(t, "delivery", movements[0].Reason)
}

func TestHealthAndReadiness(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/ready", nil).Code)
}

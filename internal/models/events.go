package models

import "time"

// Event types
const (
	EventTypeOrderCreated      = "ORDER_CREATED"
	EventTypeOrderUpdated      = "ORDER_UPDATED"
	EventTypeOrderCompleted    = "ORDER_COMPLETED"
	EventTypePaymentRecorded   = "PAYMENT_RECORDED"
	EventTypePaymentDeleted    = "PAYMENT_DELETED"
	EventTypePartStockAdjusted = "PART_STOCK_ADJUSTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an order is created
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	CustomerID  int64  `json:"customer_id"`
	VehicleID   int64  `json:"vehicle_id"`
	TotalAmount string `json:"total_amount"`
}

// OrderUpdatedEvent published after the order header or its lines changed
type OrderUpdatedEvent struct {
	BaseEvent
	OrderID       int64  `json:"order_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	TotalAmount   string `json:"total_amount"`
}

// OrderCompletedEvent published when reconciliation forces an order to completed
type OrderCompletedEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	TotalAmount string `json:"total_amount"`
	PaidTotal   string `json:"paid_total"`
	ItemsDone   int64  `json:"items_done"`
}

// PaymentRecordedEvent published when a ledger entry is added
type PaymentRecordedEvent struct {
	BaseEvent
	OrderID       int64  `json:"order_id"`
	PaymentID     int64  `json:"payment_id"`
	Amount        string `json:"amount"`
	PaymentStatus string `json:"payment_status"`
}

// PaymentDeletedEvent published when a ledger entry is removed
type PaymentDeletedEvent struct {
	BaseEvent
	OrderID       int64  `json:"order_id"`
	PaymentID     int64  `json:"payment_id"`
	PaymentStatus string `json:"payment_status"`
}

// PartStockAdjustedEvent published after a part's stock changed
type PartStockAdjustedEvent struct {
	BaseEvent
	PartID     int64  `json:"part_id"`
	OrderID    *int64 `json:"order_id,omitempty"`
	Delta      int    `json:"delta"`
	StockAfter int    `json:"stock_after"`
	Kind       string `json:"kind"`
}

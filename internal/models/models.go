package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is the owner of one or more vehicles
type Customer struct {
	ID               int64     `db:"id" json:"id"`
	FullName         string    `db:"full_name" json:"full_name"`
	Phone            string    `db:"phone" json:"phone"`
	TelegramUsername string    `db:"telegram_username" json:"telegram_username,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Vehicle belongs to exactly one customer
type Vehicle struct {
	ID          int64     `db:"id" json:"id"`
	CustomerID  int64     `db:"customer_id" json:"customer_id"`
	Brand       string    `db:"brand" json:"brand"`
	Model       string    `db:"model" json:"model"`
	PlateNumber string    `db:"plate_number" json:"plate_number"`
	VIN         string    `db:"vin" json:"vin,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Master is a mechanic that orders can be assigned to
type Master struct {
	ID             int64     `db:"id" json:"id"`
	FullName       string    `db:"full_name" json:"full_name"`
	Phone          string    `db:"phone" json:"phone,omitempty"`
	Specialization string    `db:"specialization" json:"specialization,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// MasterWorkload is the number of orders assigned to a master
type MasterWorkload struct {
	MasterID    int64  `db:"master_id" json:"master_id"`
	FullName    string `db:"full_name" json:"full_name"`
	TotalOrders int    `db:"total_orders" json:"total_orders"`
}

// Service is a catalog entry for labour
type Service struct {
	ID        int64           `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	BasePrice decimal.Decimal `db:"base_price" json:"base_price"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Part is a catalog entry for a spare part with its stock counter
type Part struct {
	ID            int64           `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Article       string          `db:"article" json:"article"`
	Price         decimal.Decimal `db:"price" json:"price"`
	StockQuantity int             `db:"stock_quantity" json:"stock_quantity"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// PartStock is the stock of a part as of its latest movement. Version is
// that movement's id, 0 when the part has none.
type PartStock struct {
	PartID        int64 `db:"part_id" json:"part_id"`
	StockQuantity int   `db:"stock_quantity" json:"stock_quantity"`
	Version       int64 `db:"version" json:"version"`
}

// Stock movement kinds
const (
	MovementOrderPartCreated = "order_part_created"
	MovementOrderPartUpdated = "order_part_updated"
	MovementManualAdjustment = "manual_adjustment"
)

// StockMovement records one relative change of a part's stock.
// Quantity is signed: negative leaves the shelf, positive returns to it.
type StockMovement struct {
	ID          int64     `db:"id" json:"id"`
	PartID      int64     `db:"part_id" json:"part_id"`
	OrderID     *int64    `db:"order_id" json:"order_id,omitempty"`
	PartItemID  *int64    `db:"part_item_id" json:"part_item_id,omitempty"`
	Kind        string    `db:"kind" json:"kind"`
	Quantity    int       `db:"quantity" json:"quantity"`
	StockBefore int       `db:"stock_before" json:"stock_before"`
	StockAfter  int       `db:"stock_after" json:"stock_after"`
	Reason      string    `db:"reason" json:"reason,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

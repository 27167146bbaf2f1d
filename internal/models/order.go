package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the workflow status of an order
type OrderStatus string

// Order statuses
const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusChecking   OrderStatus = "checking"
	OrderStatusCompleted  OrderStatus = "completed"
)

// Valid reports whether s is a known workflow status
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusNew, OrderStatusInProgress, OrderStatusChecking, OrderStatusCompleted:
		return true
	}
	return false
}

// ServiceStatus is the sub-status of a service line
type ServiceStatus string

// Service line statuses
const (
	ServiceStatusInProgress ServiceStatus = "in_progress"
	ServiceStatusChecking   ServiceStatus = "checking"
	ServiceStatusDone       ServiceStatus = "done"
)

// Valid reports whether s is a known service line status
func (s ServiceStatus) Valid() bool {
	switch s {
	case ServiceStatusInProgress, ServiceStatusChecking, ServiceStatusDone:
		return true
	}
	return false
}

// PaymentStatus is derived from the order total and its payment ledger
type PaymentStatus string

// Payment statuses
const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// PaymentMethod is how a ledger entry was paid
type PaymentMethod string

// Payment methods
const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodTransfer PaymentMethod = "transfer"
)

// Valid reports whether m is a known payment method
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer:
		return true
	}
	return false
}

// Order is a work ticket for one vehicle.
// TotalAmount is a cached value, refreshed only by recalculation.
type Order struct {
	ID            int64           `db:"id" json:"id"`
	CustomerID    int64           `db:"customer_id" json:"customer_id"`
	VehicleID     int64           `db:"vehicle_id" json:"vehicle_id"`
	MasterID      *int64          `db:"master_id" json:"master_id,omitempty"`
	Description   string          `db:"description" json:"description,omitempty"`
	Status        OrderStatus     `db:"status" json:"status"`
	PaymentStatus PaymentStatus   `db:"payment_status" json:"payment_status"`
	PaymentType   string          `db:"payment_type" json:"payment_type,omitempty"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// ServiceItem is a service line of an order. Price is a snapshot of the
// catalog price taken when the line was created. Quantity does not take
// part in the line total: a service is billed once.
type ServiceItem struct {
	ID        int64               `db:"id" json:"id"`
	OrderID   int64               `db:"order_id" json:"order_id"`
	ServiceID int64               `db:"service_id" json:"service_id"`
	Quantity  int                 `db:"quantity" json:"quantity"`
	Price     decimal.Decimal     `db:"price" json:"price"`
	Discount  decimal.NullDecimal `db:"discount" json:"discount"`
	Status    ServiceStatus       `db:"status" json:"status"`
}

// LineTotal returns price reduced by the discount percentage
func (i *ServiceItem) LineTotal() decimal.Decimal {
	return applyDiscount(i.Price, i.Discount)
}

// PartItem is a part line of an order
type PartItem struct {
	ID       int64               `db:"id" json:"id"`
	OrderID  int64               `db:"order_id" json:"order_id"`
	PartID   int64               `db:"part_id" json:"part_id"`
	Quantity int                 `db:"quantity" json:"quantity"`
	Price    decimal.Decimal     `db:"price" json:"price"`
	Discount decimal.NullDecimal `db:"discount" json:"discount"`
}

// LineTotal returns price × quantity reduced by the discount percentage
func (i *PartItem) LineTotal() decimal.Decimal {
	return applyDiscount(i.Price.Mul(decimal.NewFromInt(int64(i.Quantity))), i.Discount)
}

var hundred = decimal.NewFromInt(100)

// applyDiscount does not clamp the percentage; range checks belong to callers.
func applyDiscount(amount decimal.Decimal, discount decimal.NullDecimal) decimal.Decimal {
	if !discount.Valid || discount.Decimal.IsZero() {
		return amount
	}
	return amount.Mul(decimal.NewFromInt(1).Sub(discount.Decimal.Div(hundred)))
}

// ComputeTotal sums the line totals of all service and part lines
func ComputeTotal(services []ServiceItem, parts []PartItem) decimal.Decimal {
	total := decimal.Zero
	for i := range services {
		total = total.Add(services[i].LineTotal())
	}
	for i := range parts {
		total = total.Add(parts[i].LineTotal())
	}
	return total
}

// Payment is an entry of the order payment ledger
type Payment struct {
	ID          int64           `db:"id" json:"id"`
	OrderID     int64           `db:"order_id" json:"order_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	PaymentType PaymentMethod   `db:"payment_type" json:"payment_type"`
	Note        string          `db:"note" json:"note,omitempty"`
	PaidAt      time.Time       `db:"paid_at" json:"paid_at"`
}

// SumPayments returns the paid total of a ledger, zero when empty
func SumPayments(payments []Payment) decimal.Decimal {
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	return paid
}

// Photo is a before/after picture attached to an order
type Photo struct {
	ID         int64     `db:"id" json:"id"`
	OrderID    int64     `db:"order_id" json:"order_id"`
	ImagePath  string    `db:"image_path" json:"image_path"`
	IsBefore   bool      `db:"is_before" json:"is_before"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// OrderEvent is an entry of the order audit log
type OrderEvent struct {
	ID        int64     `db:"id" json:"id"`
	OrderID   int64     `db:"order_id" json:"order_id"`
	EventType string    `db:"event_type" json:"event_type"`
	Detail    string    `db:"detail" json:"detail,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

package store

import (
	"context"

	"autoservice/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// CreateOrder creates a new order header
func (q *queries) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (customer_id, vehicle_id, master_id, description, status, payment_status, payment_type, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := q.db.QueryRowxContext(ctx, query,
		order.CustomerID, order.VehicleID, order.MasterID, order.Description,
		order.Status, order.PaymentStatus, order.PaymentType, order.TotalAmount).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	return translate(err, ErrNotFound)
}

// GetOrder retrieves an order by ID
func (q *queries) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, q.db, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "order", id)
	}
	return &order, nil
}

// LockOrder retrieves an order with FOR UPDATE so concurrent edits of the
// same order are serialized
func (q *queries) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, q.db, &order, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, notFound(err, "order", id)
	}
	return &order, nil
}

// UpdateOrder updates the header fields an operator can edit
func (q *queries) UpdateOrder(ctx context.Context, order *models.Order) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE orders
		SET customer_id = $1, vehicle_id = $2, master_id = $3, description = $4,
		    status = $5, payment_type = $6, updated_at = NOW()
		WHERE id = $7`,
		order.CustomerID, order.VehicleID, order.MasterID, order.Description,
		order.Status, order.PaymentType, order.ID)
	return mustAffect(res, translate(err, ErrNotFound), "order", order.ID)
}

// UpdateOrderTotal stores a recalculated total
func (q *queries) UpdateOrderTotal(ctx context.Context, id int64, total decimal.Decimal) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE orders SET total_amount = $1, updated_at = NOW() WHERE id = $2",
		total, id)
	return mustAffect(res, err, "order", id)
}

// UpdateOrderState stores the reconciled workflow and payment status
func (q *queries) UpdateOrderState(ctx context.Context, id int64, status models.OrderStatus, paymentStatus models.PaymentStatus) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, payment_status = $2, updated_at = NOW() WHERE id = $3",
		status, paymentStatus, id)
	return mustAffect(res, err, "order", id)
}

// DeleteOrder deletes an order with its lines, photos and payments
func (q *queries) DeleteOrder(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", id)
	return mustAffect(res, err, "order", id)
}

// ListOrdersByCustomer retrieves orders for a customer
func (q *queries) ListOrdersByCustomer(ctx context.Context, customerID int64) ([]models.Order, error) {
	var orders []models.Order
	err := sqlx.SelectContext(ctx, q.db, &orders,
		"SELECT * FROM orders WHERE customer_id = $1 ORDER BY created_at DESC, id DESC", customerID)
	return orders, err
}

// ListOrdersByVehicle retrieves the repair history of a vehicle
func (q *queries) ListOrdersByVehicle(ctx context.Context, vehicleID int64) ([]models.Order, error) {
	var orders []models.Order
	err := sqlx.SelectContext(ctx, q.db, &orders,
		"SELECT * FROM orders WHERE vehicle_id = $1 ORDER BY created_at DESC, id DESC", vehicleID)
	return orders, err
}

// CreateServiceItem creates a service line
func (q *queries) CreateServiceItem(ctx context.Context, item *models.ServiceItem) error {
	query := `
		INSERT INTO order_services (order_id, service_id, quantity, price, discount, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := q.db.QueryRowxContext(ctx, query,
		item.OrderID, item.ServiceID, item.Quantity, item.Price, item.Discount, item.Status).
		Scan(&item.ID)
	return translate(err, ErrNotFound)
}

// GetServiceItem retrieves a service line of an order
func (q *queries) GetServiceItem(ctx context.Context, orderID, id int64) (*models.ServiceItem, error) {
	var item models.ServiceItem
	err := sqlx.GetContext(ctx, q.db, &item,
		"SELECT * FROM order_services WHERE id = $1 AND order_id = $2", id, orderID)
	if err != nil {
		return nil, notFound(err, "service item", id)
	}
	return &item, nil
}

// UpdateServiceItem updates a service line
func (q *queries) UpdateServiceItem(ctx context.Context, item *models.ServiceItem) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE order_services
		SET service_id = $1, quantity = $2, price = $3, discount = $4, status = $5
		WHERE id = $6 AND order_id = $7`,
		item.ServiceID, item.Quantity, item.Price, item.Discount, item.Status, item.ID, item.OrderID)
	return mustAffect(res, translate(err, ErrNotFound), "service item", item.ID)
}

// DeleteServiceItem deletes a service line
func (q *queries) DeleteServiceItem(ctx context.Context, orderID, id int64) error {
	res, err := q.db.ExecContext(ctx,
		"DELETE FROM order_services WHERE id = $1 AND order_id = $2", id, orderID)
	return mustAffect(res, err, "service item", id)
}

// ListServiceItems retrieves all service lines of an order
func (q *queries) ListServiceItems(ctx context.Context, orderID int64) ([]models.ServiceItem, error) {
	var items []models.ServiceItem
	err := sqlx.SelectContext(ctx, q.db, &items,
		"SELECT * FROM order_services WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// CompleteServiceItems marks every unfinished service line of an order as done
func (q *queries) CompleteServiceItems(ctx context.Context, orderID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		"UPDATE order_services SET status = $1 WHERE order_id = $2 AND status IN ($3, $4)",
		models.ServiceStatusDone, orderID, models.ServiceStatusInProgress, models.ServiceStatusChecking)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CreatePartItem creates a part line. Stock is adjusted by the caller.
func (q *queries) CreatePartItem(ctx context.Context, item *models.PartItem) error {
	query := `
		INSERT INTO order_parts (order_id, part_id, quantity, price, discount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := q.db.QueryRowxContext(ctx, query,
		item.OrderID, item.PartID, item.Quantity, item.Price, item.Discount).
		Scan(&item.ID)
	return translate(err, ErrNotFound)
}

// GetPartItem retrieves a part line of an order
func (q *queries) GetPartItem(ctx context.Context, orderID, id int64) (*models.PartItem, error) {
	var item models.PartItem
	err := sqlx.GetContext(ctx, q.db, &item,
		"SELECT * FROM order_parts WHERE id = $1 AND order_id = $2", id, orderID)
	if err != nil {
		return nil, notFound(err, "part item", id)
	}
	return &item, nil
}

// UpdatePartItem updates a part line
func (q *queries) UpdatePartItem(ctx context.Context, item *models.PartItem) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE order_parts
		SET quantity = $1, price = $2, discount = $3
		WHERE id = $4 AND order_id = $5`,
		item.Quantity, item.Price, item.Discount, item.ID, item.OrderID)
	return mustAffect(res, err, "part item", item.ID)
}

// DeletePartItem deletes a part line
func (q *queries) DeletePartItem(ctx context.Context, orderID, id int64) error {
	res, err := q.db.ExecContext(ctx,
		"DELETE FROM order_parts WHERE id = $1 AND order_id = $2", id, orderID)
	return mustAffect(res, err, "part item", id)
}

// ListPartItems retrieves all part lines of an order
func (q *queries) ListPartItems(ctx context.Context, orderID int64) ([]models.PartItem, error) {
	var items []models.PartItem
	err := sqlx.SelectContext(ctx, q.db, &items,
		"SELECT * FROM order_parts WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// CreatePayment appends a payment to the order ledger
func (q *queries) CreatePayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO order_payments (order_id, amount, payment_type, note)
		VALUES ($1, $2, $3, $4)
		RETURNING id, paid_at`

	err := q.db.QueryRowxContext(ctx, query,
		payment.OrderID, payment.Amount, payment.PaymentType, payment.Note).
		Scan(&payment.ID, &payment.PaidAt)
	return translate(err, ErrNotFound)
}

// GetPayment retrieves a ledger entry of an order
func (q *queries) GetPayment(ctx context.Context, orderID, id int64) (*models.Payment, error) {
	var payment models.Payment
	err := sqlx.GetContext(ctx, q.db, &payment,
		"SELECT * FROM order_payments WHERE id = $1 AND order_id = $2", id, orderID)
	if err != nil {
		return nil, notFound(err, "payment", id)
	}
	return &payment, nil
}

// DeletePayment removes a ledger entry
func (q *queries) DeletePayment(ctx context.Context, orderID, id int64) error {
	res, err := q.db.ExecContext(ctx,
		"DELETE FROM order_payments WHERE id = $1 AND order_id = $2", id, orderID)
	return mustAffect(res, err, "payment", id)
}

// ListPayments retrieves the ledger of an order in payment order
func (q *queries) ListPayments(ctx context.Context, orderID int64) ([]models.Payment, error) {
	var payments []models.Payment
	err := sqlx.SelectContext(ctx, q.db, &payments,
		"SELECT * FROM order_payments WHERE order_id = $1 ORDER BY paid_at, id", orderID)
	return payments, err
}

// SumPayments returns the paid total of an order, zero for an empty ledger
func (q *queries) SumPayments(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	var paid decimal.Decimal
	err := sqlx.GetContext(ctx, q.db, &paid,
		"SELECT COALESCE(SUM(amount), 0) FROM order_payments WHERE order_id = $1", orderID)
	return paid, err
}

// CreatePhoto attaches a photo to an order
func (q *queries) CreatePhoto(ctx context.Context, photo *models.Photo) error {
	query := `
		INSERT INTO order_photos (order_id, image_path, is_before)
		VALUES ($1, $2, $3)
		RETURNING id, uploaded_at`

	err := q.db.QueryRowxContext(ctx, query, photo.OrderID, photo.ImagePath, photo.IsBefore).
		Scan(&photo.ID, &photo.UploadedAt)
	return translate(err, ErrNotFound)
}

// DeletePhoto removes a photo from an order
func (q *queries) DeletePhoto(ctx context.Context, orderID, id int64) error {
	res, err := q.db.ExecContext(ctx,
		"DELETE FROM order_photos WHERE id = $1 AND order_id = $2", id, orderID)
	return mustAffect(res, err, "photo", id)
}

// ListPhotos retrieves the photos of an order
func (q *queries) ListPhotos(ctx context.Context, orderID int64) ([]models.Photo, error) {
	var photos []models.Photo
	err := sqlx.SelectContext(ctx, q.db, &photos,
		"SELECT * FROM order_photos WHERE order_id = $1 ORDER BY uploaded_at, id", orderID)
	return photos, err
}

// CreateOrderEvent appends an entry to the order audit log
func (q *queries) CreateOrderEvent(ctx context.Context, e *models.OrderEvent) error {
	query := `
		INSERT INTO order_events (order_id, event_type, detail)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := q.db.QueryRowxContext(ctx, query, e.OrderID, e.EventType, e.Detail).
		Scan(&e.ID, &e.CreatedAt)
	return translate(err, ErrNotFound)
}

// ListOrderEvents retrieves the audit log of an order
func (q *queries) ListOrderEvents(ctx context.Context, orderID int64) ([]models.OrderEvent, error) {
	var events []models.OrderEvent
	err := sqlx.SelectContext(ctx, q.db, &events,
		"SELECT * FROM order_events WHERE order_id = $1 ORDER BY created_at, id", orderID)
	return events, err
}

// IsEventProcessed checks if an event has been processed
func (q *queries) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q.db, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (q *queries) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}

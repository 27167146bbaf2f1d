package store

import (
	"context"

	"autoservice/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateCustomer creates a new customer
func (q *queries) CreateCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO customers (full_name, phone, telegram_username)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	return q.db.QueryRowxContext(ctx, query, c.FullName, c.Phone, c.TelegramUsername).
		Scan(&c.ID, &c.CreatedAt)
}

// GetCustomer retrieves a customer by ID
func (q *queries) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	var c models.Customer
	err := sqlx.GetContext(ctx, q.db, &c, "SELECT * FROM customers WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "customer", id)
	}
	return &c, nil
}

// UpdateCustomer updates customer contact data
func (q *queries) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE customers SET full_name = $1, phone = $2, telegram_username = $3 WHERE id = $4",
		c.FullName, c.Phone, c.TelegramUsername, c.ID)
	return mustAffect(res, err, "customer", c.ID)
}

// DeleteCustomer deletes a customer together with vehicles and orders
func (q *queries) DeleteCustomer(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM customers WHERE id = $1", id)
	return mustAffect(res, err, "customer", id)
}

// ListCustomers retrieves all customers
func (q *queries) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	var customers []models.Customer
	err := sqlx.SelectContext(ctx, q.db, &customers, "SELECT * FROM customers ORDER BY full_name, id")
	return customers, err
}

// CreateVehicle creates a vehicle for an existing customer
func (q *queries) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	query := `
		INSERT INTO vehicles (customer_id, brand, model, plate_number, vin)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := q.db.QueryRowxContext(ctx, query, v.CustomerID, v.Brand, v.Model, v.PlateNumber, v.VIN).
		Scan(&v.ID, &v.CreatedAt)
	return translate(err, ErrNotFound)
}

// GetVehicle retrieves a vehicle by ID
func (q *queries) GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error) {
	var v models.Vehicle
	err := sqlx.GetContext(ctx, q.db, &v, "SELECT * FROM vehicles WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "vehicle", id)
	}
	return &v, nil
}

// UpdateVehicle updates a vehicle
func (q *queries) UpdateVehicle(ctx context.Context, v *models.Vehicle) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE vehicles SET customer_id = $1, brand = $2, model = $3, plate_number = $4, vin = $5 WHERE id = $6",
		v.CustomerID, v.Brand, v.Model, v.PlateNumber, v.VIN, v.ID)
	return mustAffect(res, translate(err, ErrNotFound), "vehicle", v.ID)
}

// DeleteVehicle deletes a vehicle and its orders
func (q *queries) DeleteVehicle(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM vehicles WHERE id = $1", id)
	return mustAffect(res, err, "vehicle", id)
}

// ListVehiclesByCustomer retrieves the vehicles of a customer
func (q *queries) ListVehiclesByCustomer(ctx context.Context, customerID int64) ([]models.Vehicle, error) {
	var vehicles []models.Vehicle
	err := sqlx.SelectContext(ctx, q.db, &vehicles,
		"SELECT * FROM vehicles WHERE customer_id = $1 ORDER BY id", customerID)
	return vehicles, err
}

// CreateMaster creates a new master
func (q *queries) CreateMaster(ctx context.Context, m *models.Master) error {
	query := `
		INSERT INTO masters (full_name, phone, specialization)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	return q.db.QueryRowxContext(ctx, query, m.FullName, m.Phone, m.Specialization).
		Scan(&m.ID, &m.CreatedAt)
}

// GetMaster retrieves a master by ID
func (q *queries) GetMaster(ctx context.Context, id int64) (*models.Master, error) {
	var m models.Master
	err := sqlx.GetContext(ctx, q.db, &m, "SELECT * FROM masters WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "master", id)
	}
	return &m, nil
}

// UpdateMaster updates a master
func (q *queries) UpdateMaster(ctx context.Context, m *models.Master) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE masters SET full_name = $1, phone = $2, specialization = $3 WHERE id = $4",
		m.FullName, m.Phone, m.Specialization, m.ID)
	return mustAffect(res, err, "master", m.ID)
}

// DeleteMaster deletes a master; assigned orders keep running unassigned
func (q *queries) DeleteMaster(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM masters WHERE id = $1", id)
	return mustAffect(res, err, "master", id)
}

// ListMasters retrieves all masters
func (q *queries) ListMasters(ctx context.Context) ([]models.Master, error) {
	var masters []models.Master
	err := sqlx.SelectContext(ctx, q.db, &masters, "SELECT * FROM masters ORDER BY full_name, id")
	return masters, err
}

// MasterWorkload counts orders per master
func (q *queries) MasterWorkload(ctx context.Context) ([]models.MasterWorkload, error) {
	query := `
		SELECT m.id AS master_id, m.full_name, COUNT(o.id) AS total_orders
		FROM masters m
		LEFT JOIN orders o ON o.master_id = m.id
		GROUP BY m.id, m.full_name
		ORDER BY m.full_name, m.id`

	var workload []models.MasterWorkload
	err := sqlx.SelectContext(ctx, q.db, &workload, query)
	return workload, err
}

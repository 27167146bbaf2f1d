package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"autoservice/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a referenced row does not exist
	ErrNotFound = errors.New("not found")
	// ErrProtected is returned when deleting a catalog entry still used by order lines
	ErrProtected = errors.New("referenced by order lines")
	// ErrInsufficientStock is returned when a stock delta would drive stock below zero
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrDuplicate is returned when a unique column already holds the value
	ErrDuplicate = errors.New("already exists")
)

// Queries is the persistence contract used by the service layer. Every method
// runs either directly against the database or inside the transaction handed
// out by Repository.InTx.
type Queries interface {
	CreateCustomer(ctx context.Context, c *models.Customer) error
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, c *models.Customer) error
	DeleteCustomer(ctx context.Context, id int64) error
	ListCustomers(ctx context.Context) ([]models.Customer, error)

	CreateVehicle(ctx context.Context, v *models.Vehicle) error
	GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, v *models.Vehicle) error
	DeleteVehicle(ctx context.Context, id int64) error
	ListVehiclesByCustomer(ctx context.Context, customerID int64) ([]models.Vehicle, error)

	CreateMaster(ctx context.Context, m *models.Master) error
	GetMaster(ctx context.Context, id int64) (*models.Master, error)
	UpdateMaster(ctx context.Context, m *models.Master) error
	DeleteMaster(ctx context.Context, id int64) error
	ListMasters(ctx context.Context) ([]models.Master, error)
	MasterWorkload(ctx context.Context) ([]models.MasterWorkload, error)

	CreateService(ctx context.Context, s *models.Service) error
	GetService(ctx context.Context, id int64) (*models.Service, error)
	UpdateService(ctx context.Context, s *models.Service) error
	DeleteService(ctx context.Context, id int64) error
	ListServices(ctx context.Context) ([]models.Service, error)

	CreatePart(ctx context.Context, p *models.Part) error
	GetPart(ctx context.Context, id int64) (*models.Part, error)
	// GetPartStock returns the stock counter together with the id of the latest movement
	GetPartStock(ctx context.Context, id int64) (*models.PartStock, error)
	ListParts(ctx context.Context) ([]models.Part, error)
	UpdatePart(ctx context.Context, p *models.Part) error
	DeletePart(ctx context.Context, id int64) error
	// AdjustPartStock applies delta relative to the stored value and returns the new stock
	AdjustPartStock(ctx context.Context, partID int64, delta int) (int, error)
	CreateStockMovement(ctx context.Context, m *models.StockMovement) error
	ListStockMovements(ctx context.Context, partID int64) ([]models.StockMovement, error)

	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	// LockOrder reads the order and holds a row lock until the transaction ends
	LockOrder(ctx context.Context, id int64) (*models.Order, error)
	UpdateOrder(ctx context.Context, o *models.Order) error
	UpdateOrderTotal(ctx context.Context, id int64, total decimal.Decimal) error
	UpdateOrderState(ctx context.Context, id int64, status models.OrderStatus, paymentStatus models.PaymentStatus) error
	DeleteOrder(ctx context.Context, id int64) error
	ListOrdersByCustomer(ctx context.Context, customerID int64) ([]models.Order, error)
	ListOrdersByVehicle(ctx context.Context, vehicleID int64) ([]models.Order, error)

	CreateServiceItem(ctx context.Context, item *models.ServiceItem) error
	GetServiceItem(ctx context.Context, orderID, id int64) (*models.ServiceItem, error)
	UpdateServiceItem(ctx context.Context, item *models.ServiceItem) error
	DeleteServiceItem(ctx context.Context, orderID, id int64) error
	ListServiceItems(ctx context.Context, orderID int64) ([]models.ServiceItem, error)
	// CompleteServiceItems moves in-progress and checking lines to done
	CompleteServiceItems(ctx context.Context, orderID int64) (int64, error)

	CreatePartItem(ctx context.Context, item *models.PartItem) error
	GetPartItem(ctx context.Context, orderID, id int64) (*models.PartItem, error)
	UpdatePartItem(ctx context.Context, item *models.PartItem) error
	DeletePartItem(ctx context.Context, orderID, id int64) error
	ListPartItems(ctx context.Context, orderID int64) ([]models.PartItem, error)

	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, orderID, id int64) (*models.Payment, error)
	DeletePayment(ctx context.Context, orderID, id int64) error
	ListPayments(ctx context.Context, orderID int64) ([]models.Payment, error)
	SumPayments(ctx context.Context, orderID int64) (decimal.Decimal, error)

	CreatePhoto(ctx context.Context, p *models.Photo) error
	DeletePhoto(ctx context.Context, orderID, id int64) error
	ListPhotos(ctx context.Context, orderID int64) ([]models.Photo, error)

	CreateOrderEvent(ctx context.Context, e *models.OrderEvent) error
	ListOrderEvents(ctx context.Context, orderID int64) ([]models.OrderEvent, error)

	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Repository adds the transactional boundary to Queries
type Repository interface {
	Queries
	// InTx runs fn in one transaction: committed when fn returns nil, rolled back otherwise
	InTx(ctx context.Context, fn func(q Queries) error) error
}

type Store struct {
	*queries
	db *sqlx.DB
}

// queries runs statements against either the pool or an open transaction
type queries struct {
	db sqlx.ExtContext
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{queries: &queries{db: db}, db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn inside a database transaction
func (s *Store) InTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}

	return tx.Commit()
}

// notFound maps sql.ErrNoRows to ErrNotFound with the entity and id attached
func notFound(err error, entity string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
	}
	return err
}

// Postgres error codes
const (
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
	pqUniqueViolation     = "23505"
)

// translate maps constraint violations to the package sentinel errors.
// A foreign key violation means a missing parent on insert and a
// protected child on delete, so the caller picks which.
func translate(err error, onForeignKey error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqForeignKeyViolation:
		return fmt.Errorf("%s: %w", pqErr.Constraint, onForeignKey)
	case pqUniqueViolation:
		return fmt.Errorf("%s: %w", pqErr.Constraint, ErrDuplicate)
	case pqCheckViolation:
		if pqErr.Constraint == "parts_stock_quantity_check" {
			return ErrInsufficientStock
		}
	}
	return err
}

// mustAffect turns a zero-row delete/update into ErrNotFound
func mustAffect(res sql.Result, err error, entity string, id int64) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
	}
	return nil
}

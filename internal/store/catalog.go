package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"autoservice/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateService creates a catalog service
func (q *queries) CreateService(ctx context.Context, s *models.Service) error {
	query := `
		INSERT INTO services (name, base_price)
		VALUES ($1, $2)
		RETURNING id, created_at`

	return q.db.QueryRowxContext(ctx, query, s.Name, s.BasePrice).Scan(&s.ID, &s.CreatedAt)
}

// GetService retrieves a catalog service by ID
func (q *queries) GetService(ctx context.Context, id int64) (*models.Service, error) {
	var s models.Service
	err := sqlx.GetContext(ctx, q.db, &s, "SELECT * FROM services WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "service", id)
	}
	return &s, nil
}

// UpdateService updates name and base price. Existing order lines keep their snapshot.
func (q *queries) UpdateService(ctx context.Context, s *models.Service) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE services SET name = $1, base_price = $2 WHERE id = $3",
		s.Name, s.BasePrice, s.ID)
	return mustAffect(res, err, "service", s.ID)
}

// DeleteService deletes a catalog service unless order lines reference it
func (q *queries) DeleteService(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM services WHERE id = $1", id)
	return mustAffect(res, translate(err, ErrProtected), "service", id)
}

// ListServices retrieves the service catalog
func (q *queries) ListServices(ctx context.Context) ([]models.Service, error) {
	var services []models.Service
	err := sqlx.SelectContext(ctx, q.db, &services, "SELECT * FROM services ORDER BY name, id")
	return services, err
}

// CreatePart creates a catalog part
func (q *queries) CreatePart(ctx context.Context, p *models.Part) error {
	query := `
		INSERT INTO parts (name, article, price, stock_quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := q.db.QueryRowxContext(ctx, query, p.Name, p.Article, p.Price, p.StockQuantity).
		Scan(&p.ID, &p.CreatedAt)
	return translate(err, ErrNotFound)
}

// GetPart retrieves a catalog part by ID
func (q *queries) GetPart(ctx context.Context, id int64) (*models.Part, error) {
	var p models.Part
	err := sqlx.GetContext(ctx, q.db, &p, "SELECT * FROM parts WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "part", id)
	}
	return &p, nil
}

// GetPartStock reads the stock counter and its version in one statement
func (q *queries) GetPartStock(ctx context.Context, id int64) (*models.PartStock, error) {
	query := `
		SELECT p.id AS part_id, p.stock_quantity,
		       COALESCE((SELECT MAX(m.id) FROM stock_movements m WHERE m.part_id = p.id), 0) AS version
		FROM parts p
		WHERE p.id = $1`

	var ps models.PartStock
	if err := sqlx.GetContext(ctx, q.db, &ps, query, id); err != nil {
		return nil, notFound(err, "part", id)
	}
	return &ps, nil
}

// ListParts retrieves the part catalog
func (q *queries) ListParts(ctx context.Context) ([]models.Part, error) {
	var parts []models.Part
	err := sqlx.SelectContext(ctx, q.db, &parts, "SELECT * FROM parts ORDER BY name, id")
	return parts, err
}

// UpdatePart updates catalog fields and reads back the stock counter,
// which only moves through AdjustPartStock
func (q *queries) UpdatePart(ctx context.Context, p *models.Part) error {
	err := q.db.QueryRowxContext(ctx,
		"UPDATE parts SET name = $1, article = $2, price = $3 WHERE id = $4 RETURNING stock_quantity, created_at",
		p.Name, p.Article, p.Price, p.ID).Scan(&p.StockQuantity, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("part %d: %w", p.ID, ErrNotFound)
	}
	return translate(err, ErrNotFound)
}

// DeletePart deletes a catalog part unless order lines reference it
func (q *queries) DeletePart(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM parts WHERE id = $1", id)
	return mustAffect(res, translate(err, ErrProtected), "part", id)
}

// AdjustPartStock adds delta to the stored stock in a single statement so
// concurrent adjustments from different orders compose
func (q *queries) AdjustPartStock(ctx context.Context, partID int64, delta int) (int, error) {
	var stock int
	err := q.db.QueryRowxContext(ctx,
		"UPDATE parts SET stock_quantity = stock_quantity + $1 WHERE id = $2 RETURNING stock_quantity",
		delta, partID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("part %d: %w", partID, ErrNotFound)
	}
	if err != nil {
		return 0, translate(err, ErrNotFound)
	}
	return stock, nil
}

// CreateStockMovement appends a stock movement
func (q *queries) CreateStockMovement(ctx context.Context, m *models.StockMovement) error {
	query := `
		INSERT INTO stock_movements (part_id, order_id, part_item_id, kind, quantity, stock_before, stock_after, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	return q.db.QueryRowxContext(ctx, query,
		m.PartID, m.OrderID, m.PartItemID, m.Kind, m.Quantity, m.StockBefore, m.StockAfter, m.Reason).
		Scan(&m.ID, &m.CreatedAt)
}

// ListStockMovements retrieves the movement history of a part, newest first
func (q *queries) ListStockMovements(ctx context.Context, partID int64) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	err := sqlx.SelectContext(ctx, q.db, &movements,
		"SELECT * FROM stock_movements WHERE part_id = $1 ORDER BY created_at DESC, id DESC", partID)
	return movements, err
}

package service

import (
	"context"
	"strings"

	"autoservice/internal/models"
	"autoservice/internal/store"
	"autoservice/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService manages customers, vehicles, masters and the price lists
type CatalogService struct {
	repo     store.Repository
	notifier notifier
	logger   *zap.Logger
}

// NewCatalogService creates a new catalog service. cache may be nil.
func NewCatalogService(repo store.Repository, publisher EventPublisher, cache StockCache) *CatalogService {
	return &CatalogService{
		repo:     repo,
		notifier: newNotifier(publisher, cache),
		logger:   util.GetLogger(),
	}
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid("%s is required", field)
	}
	return nil
}

// Customers

func (s *CatalogService) CreateCustomer(ctx context.Context, c *models.Customer) error {
	if err := required("full_name", c.FullName); err != nil {
		return err
	}
	if err := required("phone", c.Phone); err != nil {
		return err
	}
	return s.repo.CreateCustomer(ctx, c)
}

func (s *CatalogService) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

func (s *CatalogService) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	if err := required("full_name", c.FullName); err != nil {
		return err
	}
	return s.repo.UpdateCustomer(ctx, c)
}

// DeleteCustomer deletes a customer with their vehicles and orders
func (s *CatalogService) DeleteCustomer(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Customer deleted", zap.Int64("customer_id", id))
	return nil
}

func (s *CatalogService) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

// Vehicles

func (s *CatalogService) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	if v.CustomerID <= 0 {
		return invalid("customer_id is required")
	}
	if err := required("plate_number", v.PlateNumber); err != nil {
		return err
	}
	return s.repo.CreateVehicle(ctx, v)
}

func (s *CatalogService) GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error) {
	return s.repo.GetVehicle(ctx, id)
}

func (s *CatalogService) UpdateVehicle(ctx context.Context, v *models.Vehicle) error {
	if v.CustomerID <= 0 {
		return invalid("customer_id is required")
	}
	if err := required("plate_number", v.PlateNumber); err != nil {
		return err
	}
	return s.repo.UpdateVehicle(ctx, v)
}

func (s *CatalogService) DeleteVehicle(ctx context.Context, id int64) error {
	return s.repo.DeleteVehicle(ctx, id)
}

func (s *CatalogService) ListVehicles(ctx context.Context, customerID int64) ([]models.Vehicle, error) {
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.ListVehiclesByCustomer(ctx, customerID)
}

// Masters

func (s *CatalogService) CreateMaster(ctx context.Context, m *models.Master) error {
	if err := required("full_name", m.FullName); err != nil {
		return err
	}
	return s.repo.CreateMaster(ctx, m)
}

func (s *CatalogService) GetMaster(ctx context.Context, id int64) (*models.Master, error) {
	return s.repo.GetMaster(ctx, id)
}

func (s *CatalogService) UpdateMaster(ctx context.Context, m *models.Master) error {
	if err := required("full_name", m.FullName); err != nil {
		return err
	}
	return s.repo.UpdateMaster(ctx, m)
}

// DeleteMaster removes a master; their orders stay unassigned
func (s *CatalogService) DeleteMaster(ctx context.Context, id int64) error {
	return s.repo.DeleteMaster(ctx, id)
}

func (s *CatalogService) ListMasters(ctx context.Context) ([]models.Master, error) {
	return s.repo.ListMasters(ctx)
}

// MasterWorkload counts the orders assigned to each master
func (s *CatalogService) MasterWorkload(ctx context.Context) ([]models.MasterWorkload, error) {
	return s.repo.MasterWorkload(ctx)
}

// Services

func (s *CatalogService) CreateService(ctx context.Context, svc *models.Service) error {
	if err := validateCatalogEntry(svc.Name, svc.BasePrice); err != nil {
		return err
	}
	return s.repo.CreateService(ctx, svc)
}

func (s *CatalogService) GetService(ctx context.Context, id int64) (*models.Service, error) {
	return s.repo.GetService(ctx, id)
}

// UpdateService changes the catalog entry; existing order lines keep their snapshot price
func (s *CatalogService) UpdateService(ctx context.Context, svc *models.Service) error {
	if err := validateCatalogEntry(svc.Name, svc.BasePrice); err != nil {
		return err
	}
	return s.repo.UpdateService(ctx, svc)
}

// DeleteService fails with store.ErrProtected while order lines reference it
func (s *CatalogService) DeleteService(ctx context.Context, id int64) error {
	return s.repo.DeleteService(ctx, id)
}

func (s *CatalogService) ListServices(ctx context.Context) ([]models.Service, error) {
	return s.repo.ListServices(ctx)
}

// Parts

func (s *CatalogService) CreatePart(ctx context.Context, p *models.Part) error {
	if err := validateCatalogEntry(p.Name, p.Price); err != nil {
		return err
	}
	if err := required("article", p.Article); err != nil {
		return err
	}
	if p.StockQuantity < 0 {
		return invalid("stock_quantity is negative")
	}
	if err := s.repo.CreatePart(ctx, p); err != nil {
		return err
	}

	s.notifier.stockAdjusted(ctx, &stockChange{
		PartID:     p.ID,
		Delta:      p.StockQuantity,
		StockAfter: p.StockQuantity,
		Kind:       models.MovementManualAdjustment,
	})
	return nil
}

func (s *CatalogService) GetPart(ctx context.Context, id int64) (*models.Part, error) {
	return s.repo.GetPart(ctx, id)
}

// UpdatePart changes name, article and price. Stock only moves through
// AdjustStock and order lines.
func (s *CatalogService) UpdatePart(ctx context.Context, p *models.Part) error {
	if err := validateCatalogEntry(p.Name, p.Price); err != nil {
		return err
	}
	if err := required("article", p.Article); err != nil {
		return err
	}

	return s.repo.UpdatePart(ctx, p)
}

// DeletePart fails with store.ErrProtected while order lines reference it
func (s *CatalogService) DeletePart(ctx context.Context, id int64) error {
	return s.repo.DeletePart(ctx, id)
}

func (s *CatalogService) ListParts(ctx context.Context) ([]models.Part, error) {
	return s.repo.ListParts(ctx)
}

// StockAdjustment is a manual stock correction, e.g. a delivery
type StockAdjustment struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason,omitempty"`
}

// AdjustStock applies a manual relative stock change and records it
func (s *CatalogService) AdjustStock(ctx context.Context, partID int64, req *StockAdjustment) (*models.StockMovement, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.AdjustStock", util.PartAttr(partID))
	defer span.End()

	if req.Delta == 0 {
		return nil, invalid("delta must not be zero")
	}

	var change *stockChange
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		var err error
		change, err = applyStockDelta(ctx, q, models.StockMovement{
			PartID:   partID,
			Kind:     models.MovementManualAdjustment,
			Quantity: req.Delta,
			Reason:   req.Reason,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Stock adjusted",
		zap.Int64("part_id", partID),
		zap.Int("delta", req.Delta),
		zap.Int("stock_after", change.StockAfter))
	s.notifier.stockAdjusted(ctx, change)
	return &change.Movement, nil
}

// ListMovements returns the stock history of a part, newest first
func (s *CatalogService) ListMovements(ctx context.Context, partID int64) ([]models.StockMovement, error) {
	if _, err := s.repo.GetPart(ctx, partID); err != nil {
		return nil, err
	}
	return s.repo.ListStockMovements(ctx, partID)
}

func validateCatalogEntry(name string, price decimal.Decimal) error {
	if err := required("name", name); err != nil {
		return err
	}
	if price.IsNegative() {
		return invalid("price %s is negative", price)
	}
	return nil
}

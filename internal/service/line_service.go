package service

import (
	"context"
	"fmt"

	"autoservice/internal/models"
	"autoservice/internal/store"
	"autoservice/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ServiceLineRequest adds a service to an order. Price defaults to the
// catalog base price and an omitted quantity to 1.
type ServiceLineRequest struct {
	ServiceID int64                `json:"service_id"`
	Quantity  int                  `json:"quantity"`
	Price     *decimal.Decimal     `json:"price,omitempty"`
	Discount  decimal.NullDecimal  `json:"discount"`
	Status    models.ServiceStatus `json:"status,omitempty"`
}

// ServiceLineUpdate replaces the editable fields of a service line.
// A nil price or an empty status keeps the stored value.
type ServiceLineUpdate struct {
	Quantity int                  `json:"quantity"`
	Price    *decimal.Decimal     `json:"price,omitempty"`
	Discount decimal.NullDecimal  `json:"discount"`
	Status   models.ServiceStatus `json:"status,omitempty"`
}

// PartLineRequest adds a part to an order. Price defaults to the catalog price.
type PartLineRequest struct {
	PartID   int64               `json:"part_id"`
	Quantity int                 `json:"quantity"`
	Price    *decimal.Decimal    `json:"price,omitempty"`
	Discount decimal.NullDecimal `json:"discount"`
}

// PartLineUpdate replaces the editable fields of a part line
type PartLineUpdate struct {
	Quantity int                 `json:"quantity"`
	Price    *decimal.Decimal    `json:"price,omitempty"`
	Discount decimal.NullDecimal `json:"discount"`
}

// LineService mutates order lines. Every mutation recalculates the order
// total and reconciles payments in the same transaction.
type LineService struct {
	repo     store.Repository
	notifier notifier
	logger   *zap.Logger
}

// NewLineService creates a new line service
func NewLineService(repo store.Repository, publisher EventPublisher, cache StockCache) *LineService {
	return &LineService{
		repo:     repo,
		notifier: newNotifier(publisher, cache),
		logger:   util.GetLogger(),
	}
}

// AddService attaches a service line to an order
func (s *LineService) AddService(ctx context.Context, orderID int64, req *ServiceLineRequest) (*models.ServiceItem, error) {
	ctx, span := util.StartSpan(ctx, "LineService.AddService", util.OrderAttr(orderID))
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, err
	}

	var item *models.ServiceItem
	var outcome *reconcileOutcome
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		if _, err := q.LockOrder(ctx, orderID); err != nil {
			return err
		}
		var err error
		if item, err = addServiceLine(ctx, q, orderID, req); err != nil {
			return err
		}
		outcome, err = recalculateAndReconcile(ctx, q, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Service line added",
		zap.Int64("order_id", orderID),
		zap.Int64("item_id", item.ID),
		zap.Int64("service_id", item.ServiceID))
	s.notifier.reconciled(ctx, orderID, outcome)
	return item, nil
}

// UpdateService edits a service line
func (s *LineService) UpdateService(ctx context.Context, orderID, itemID int64, req *ServiceLineUpdate) (*models.ServiceItem, error) {
	ctx, span := util.StartSpan(ctx, "LineService.UpdateService", util.OrderAttr(orderID))
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, err
	}

	var item *models.ServiceItem
	var outcome *reconcileOutcome
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		if _, err := q.LockOrder(ctx, orderID); err != nil {
			return err
		}
		var err error
		if item, err = q.GetServiceItem(ctx, orderID, itemID); err != nil {
			return err
		}

		item.Quantity = req.Quantity
		item.Discount = req.Discount
		if req.Price != nil {
			item.Price = *req.Price
		}
		if req.Status != "" {
			item.Status = req.Status
		}
		if err := q.UpdateServiceItem(ctx, item); err != nil {
			return fmt.Errorf("failed to update service item: %w", err)
		}

		outcome, err = recalculateAndReconcile(ctx, q, orderID)
		if err != nil {
			return err
		}
		// reconciliation may have completed the line
		item, err = q.GetServiceItem(ctx, orderID, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.reconciled(ctx, orderID, outcome)
	return item, nil
}

// DeleteService removes a service line
func (s *LineService) DeleteService(ctx context.Context, orderID, itemID int64) error {
	ctx, span := util.StartSpan(ctx, "LineService.DeleteService", util.OrderAttr(orderID))
	defer span.End()

	var outcome *reconcileOutcome
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		if _, err := q.LockOrder(ctx, orderID); err != nil {
			return err
		}
		if err := q.DeleteServiceItem(ctx, orderID, itemID); err != nil {
			return err
		}
		var err error
		outcome, err = recalculateAndReconcile(ctx, q, orderID)
		return err
	})
	if err != nil {
		return err
	}

	s.notifier.reconciled(ctx, orderID, outcome)
	return nil
}

// AddPart attaches a part line to an order and takes its quantity off the shelf
func (s *LineService) AddPart(ctx context.Context, orderID int64, req *PartLineRequest) (*models.PartItem, error) {
	ctx, span := util.StartSpan(ctx, "LineService.AddPart", util.OrderAttr(orderID))
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, err
	}

	var item *models.PartItem
	var change *stockChange
	var outcome *reconcileOutcome
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		if _, err := q.LockOrder(ctx, orderID); err != nil {
			return err
		}
		var err error
		if item, change, err = addPartLine(ctx, q, orderID, req); err != nil {
			return err
		}
		outcome, err = recalculateAndReconcile(ctx, q, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Part line added",
		zap.Int64("order_id", orderID),
		zap.Int64("part_id", item.PartID),
		zap.Int("quantity", item.Quantity),
		zap.Int("stock_after", change.StockAfter))
	s.notifier.stockAdjusted(ctx, change)
	s.notifier.reconciled(ctx, orderID, outcome)
	return item, nil
}

// UpdatePart edits a part line. Stock moves by the quantity difference
// between the stored line and the new one.
func (s *LineService) UpdatePart(ctx context.Context, orderID, itemID int64, req *PartLineUpdate) (*models.PartItem, error) {
	ctx, span := util.StartSpan(ctx, "LineService.UpdatePart", util.OrderAttr(orderID))
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, err
	}

	var item *models.PartItem
	var change *stockChange
	var outcome *reconcileOutcome
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		if _, err := q.LockOrder(ctx, orderID); err != nil {
			return err
		}
		var err error
		if item, change, err = updatePartLine(ctx, q, orderID, itemID, req); err != nil {
			return err
		}
		outcome, err = recalculateAndReconcile(ctx, q, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.stockAdjusted(ctx, change)
	s.notifier.reconciled(ctx, orderID, outcome)
	return item, nil
}

// DeletePart removes a part line. The quantity is not returned to stock.
func (s *LineService) DeletePart(ctx context.Context, orderID, itemID int64) error {
	ctx, span := util.StartSpan(ctx, "LineService.DeletePart", util.OrderAttr(orderID))
	defer span.End()

	var item *models.PartItem
	var outcome *reconcileOutcome
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		if _, err := q.LockOrder(ctx, orderID); err != nil {
			return err
		}
		var err error
		if item, err = q.GetPartItem(ctx, orderID, itemID); err != nil {
			return err
		}
		if err := q.DeletePartItem(ctx, orderID, itemID); err != nil {
			return err
		}
		outcome, err = recalculateAndReconcile(ctx, q, orderID)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Warn("Part line deleted without restoring stock",
		zap.Int64("order_id", orderID),
		zap.Int64("part_id", item.PartID),
		zap.Int("quantity", item.Quantity))
	s.notifier.reconciled(ctx, orderID, outcome)
	return nil
}

func addServiceLine(ctx context.Context, q store.Queries, orderID int64, req *ServiceLineRequest) (*models.ServiceItem, error) {
	svc, err := q.GetService(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}

	item := &models.ServiceItem{
		OrderID:   orderID,
		ServiceID: svc.ID,
		Quantity:  req.Quantity,
		Price:     svc.BasePrice,
		Discount:  req.Discount,
		Status:    req.Status,
	}
	if req.Price != nil {
		item.Price = *req.Price
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	if item.Status == "" {
		item.Status = models.ServiceStatusInProgress
	}

	if err := q.CreateServiceItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create service item: %w", err)
	}
	return item, nil
}

func addPartLine(ctx context.Context, q store.Queries, orderID int64, req *PartLineRequest) (*models.PartItem, *stockChange, error) {
	part, err := q.GetPart(ctx, req.PartID)
	if err != nil {
		return nil, nil, err
	}

	item := &models.PartItem{
		OrderID:  orderID,
		PartID:   part.ID,
		Quantity: req.Quantity,
		Price:    part.Price,
		Discount: req.Discount,
	}
	if req.Price != nil {
		item.Price = *req.Price
	}

	if err := q.CreatePartItem(ctx, item); err != nil {
		return nil, nil, fmt.Errorf("failed to create part item: %w", err)
	}

	oid, iid := item.OrderID, item.ID
	change, err := applyStockDelta(ctx, q, models.StockMovement{
		PartID:     part.ID,
		OrderID:    &oid,
		PartItemID: &iid,
		Kind:       models.MovementOrderPartCreated,
		Quantity:   -item.Quantity,
		Reason:     fmt.Sprintf("order #%d", orderID),
	})
	if err != nil {
		return nil, nil, err
	}
	return item, change, nil
}

func updatePartLine(ctx context.Context, q store.Queries, orderID, itemID int64, req *PartLineUpdate) (*models.PartItem, *stockChange, error) {
	item, err := q.GetPartItem(ctx, orderID, itemID)
	if err != nil {
		return nil, nil, err
	}

	diff := req.Quantity - item.Quantity
	item.Quantity = req.Quantity
	item.Discount = req.Discount
	if req.Price != nil {
		item.Price = *req.Price
	}

	if err := q.UpdatePartItem(ctx, item); err != nil {
		return nil, nil, fmt.Errorf("failed to update part item: %w", err)
	}

	if diff == 0 {
		return item, nil, nil
	}

	oid, iid := item.OrderID, item.ID
	change, err := applyStockDelta(ctx, q, models.StockMovement{
		PartID:     item.PartID,
		OrderID:    &oid,
		PartItemID: &iid,
		Kind:       models.MovementOrderPartUpdated,
		Quantity:   -diff,
		Reason:     fmt.Sprintf("order #%d", orderID),
	})
	if err != nil {
		return nil, nil, err
	}
	return item, change, nil
}

func validateDiscount(d decimal.NullDecimal) error {
	if !d.Valid {
		return nil
	}
	if d.Decimal.IsNegative() || d.Decimal.GreaterThan(decimal.NewFromInt(100)) {
		return invalid("discount %s is outside [0, 100]", d.Decimal)
	}
	return nil
}

func validatePrice(p *decimal.Decimal) error {
	if p != nil && p.IsNegative() {
		return invalid("price %s is negative", p)
	}
	return nil
}

func (r *ServiceLineRequest) validate() error {
	if r.ServiceID <= 0 {
		return invalid("service_id is required")
	}
	if r.Quantity < 0 {
		return invalid("quantity must be at least 1 when given")
	}
	if r.Status != "" && !r.Status.Valid() {
		return invalid("unknown service status %q", r.Status)
	}
	if err := validatePrice(r.Price); err != nil {
		return err
	}
	return validateDiscount(r.Discount)
}

func (r *ServiceLineUpdate) validate() error {
	if r.Quantity < 1 {
		return invalid("quantity must be at least 1")
	}
	if r.Status != "" && !r.Status.Valid() {
		return invalid("unknown service status %q", r.Status)
	}
	if err := validatePrice(r.Price); err != nil {
		return err
	}
	return validateDiscount(r.Discount)
}

func (r *PartLineRequest) validate() error {
	if r.PartID <= 0 {
		return invalid("part_id is required")
	}
	if r.Quantity < 1 {
		return invalid("quantity must be at least 1")
	}
	if err := validatePrice(r.Price); err != nil {
		return err
	}
	return validateDiscount(r.Discount)
}

func (r *PartLineUpdate) validate() error {
	if r.Quantity < 1 {
		return invalid("quantity must be at least 1")
	}
	if err := validatePrice(r.Price); err != nil {
		return err
	}
	return validateDiscount(r.Discount)
}

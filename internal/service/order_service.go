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

// OrderService handles order business logic
type OrderService struct {
	repo     store.Repository
	notifier notifier
	logger   *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(repo store.Repository, publisher EventPublisher, cache StockCache) *OrderService {
	return &OrderService{
		repo:     repo,
		notifier: newNotifier(publisher, cache),
		logger:   util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order with its lines
// and initial payments. Lines without a catalog reference are skipped.
type CreateOrderRequest struct {
	CustomerID  int64                `json:"customer_id" binding:"required"`
	VehicleID   int64                `json:"vehicle_id" binding:"required"`
	MasterID    *int64               `json:"master_id,omitempty"`
	Description string               `json:"description,omitempty"`
	Status      models.OrderStatus   `json:"status,omitempty"`
	PaymentType string               `json:"payment_type,omitempty"`
	Services    []ServiceLineRequest `json:"services,omitempty"`
	Parts       []PartLineRequest    `json:"parts,omitempty"`
	Payments    []PaymentRequest     `json:"payments,omitempty"`
}

// UpdateOrderRequest replaces the order header
type UpdateOrderRequest struct {
	CustomerID  int64              `json:"customer_id" binding:"required"`
	VehicleID   int64              `json:"vehicle_id" binding:"required"`
	MasterID    *int64             `json:"master_id,omitempty"`
	Description string             `json:"description,omitempty"`
	Status      models.OrderStatus `json:"status" binding:"required"`
	PaymentType string             `json:"payment_type,omitempty"`
}

// OrderDetail is an order with everything it owns
type OrderDetail struct {
	*models.Order
	Services        []models.ServiceItem `json:"services"`
	Parts           []models.PartItem    `json:"parts"`
	Payments        []models.Payment     `json:"payments"`
	Photos          []models.Photo       `json:"photos"`
	PaidTotal       decimal.Decimal      `json:"paid_total"`
	RemainingAmount decimal.Decimal      `json:"remaining_amount"`
}

// CreateOrder creates an order, its lines and payments in one transaction
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := req.validate(); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_input").Inc()
		return nil, err
	}

	var detail *OrderDetail
	var changes []*stockChange
	var outcome *reconcileOutcome
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		if err := checkOwnership(ctx, q, req.CustomerID, req.VehicleID); err != nil {
			return err
		}

		order := &models.Order{
			CustomerID:    req.CustomerID,
			VehicleID:     req.VehicleID,
			MasterID:      req.MasterID,
			Description:   req.Description,
			Status:        req.Status,
			PaymentStatus: models.PaymentStatusUnpaid,
			PaymentType:   req.PaymentType,
			TotalAmount:   decimal.Zero,
		}
		if order.Status == "" {
			order.Status = models.OrderStatusNew
		}
		if err := q.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		for i := range req.Services {
			if req.Services[i].ServiceID == 0 {
				continue
			}
			if _, err := addServiceLine(ctx, q, order.ID, &req.Services[i]); err != nil {
				return err
			}
		}

		for i := range req.Parts {
			if req.Parts[i].PartID == 0 {
				continue
			}
			_, change, err := addPartLine(ctx, q, order.ID, &req.Parts[i])
			if err != nil {
				return err
			}
			changes = append(changes, change)
		}

		for i := range req.Payments {
			p := req.Payments[i].toModel(order.ID)
			if err := q.CreatePayment(ctx, p); err != nil {
				return fmt.Errorf("failed to create payment: %w", err)
			}
		}

		var err error
		if outcome, err = recalculateAndReconcile(ctx, q, order.ID); err != nil {
			return err
		}
		detail, err = loadDetail(ctx, q, order.ID)
		return err
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		util.FailSpan(span, err)
		return nil, err
	}

	span.SetAttributes(util.OrderAttr(detail.ID))
	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", detail.ID),
		zap.String("total_amount", detail.TotalAmount.String()),
		zap.String("payment_status", string(detail.PaymentStatus)))

	event := &models.OrderCreatedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderCreated),
		OrderID:     detail.ID,
		CustomerID:  detail.CustomerID,
		VehicleID:   detail.VehicleID,
		TotalAmount: detail.TotalAmount.StringFixed(2),
	}
	if err := s.notifier.publisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	for _, change := range changes {
		s.notifier.stockAdjusted(ctx, change)
	}
	s.notifier.reconciled(ctx, detail.ID, outcome)

	return detail, nil
}

// GetOrder returns the order with its lines, payments and photos. The
// stored total is refreshed first.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder", util.OrderAttr(orderID))
	defer span.End()

	var detail *OrderDetail
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		if _, err := q.LockOrder(ctx, orderID); err != nil {
			return err
		}
		if _, err := recalculateTotal(ctx, q, orderID); err != nil {
			return err
		}
		var err error
		detail, err = loadDetail(ctx, q, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// UpdateOrder replaces the order header, then recalculates and reconciles
func (s *OrderService) UpdateOrder(ctx context.Context, orderID int64, req *UpdateOrderRequest) (*OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrder", util.OrderAttr(orderID))
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, err
	}

	var detail *OrderDetail
	var outcome *reconcileOutcome
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		order, err := q.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := checkOwnership(ctx, q, req.CustomerID, req.VehicleID); err != nil {
			return err
		}

		order.CustomerID = req.CustomerID
		order.VehicleID = req.VehicleID
		order.MasterID = req.MasterID
		order.Description = req.Description
		order.Status = req.Status
		order.PaymentType = req.PaymentType
		if err := q.UpdateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}

		if outcome, err = recalculateAndReconcile(ctx, q, orderID); err != nil {
			return err
		}
		detail, err = loadDetail(ctx, q, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order updated",
		zap.Int64("order_id", orderID),
		zap.String("status", string(detail.Status)))
	s.notifier.orderUpdated(ctx, detail.Order)
	s.notifier.reconciled(ctx, orderID, outcome)
	return detail, nil
}

// DeleteOrder deletes an order with its lines, payments and photos.
// Parts already taken off the shelf stay taken.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "OrderService.DeleteOrder", util.OrderAttr(orderID))
	defer span.End()

	var parts []models.PartItem
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		if _, err := q.LockOrder(ctx, orderID); err != nil {
			return err
		}
		var err error
		if parts, err = q.ListPartItems(ctx, orderID); err != nil {
			return err
		}
		return q.DeleteOrder(ctx, orderID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Order deleted",
		zap.Int64("order_id", orderID),
		zap.Int("part_lines_not_restocked", len(parts)))
	return nil
}

// RecalculateTotal recomputes the order total from its current lines,
// stores it and returns it
func (s *OrderService) RecalculateTotal(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.RecalculateTotal", util.OrderAttr(orderID))
	defer span.End()

	var total decimal.Decimal
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		if _, err := q.LockOrder(ctx, orderID); err != nil {
			return err
		}
		var err error
		total, err = recalculateTotal(ctx, q, orderID)
		return err
	})
	return total, err
}

// UpdatePaymentState reconciles the payment ledger against the stored total
// and returns the paid total
func (s *OrderService) UpdatePaymentState(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdatePaymentState", util.OrderAttr(orderID))
	defer span.End()

	var outcome *reconcileOutcome
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		if _, err := q.LockOrder(ctx, orderID); err != nil {
			return err
		}
		var err error
		outcome, err = reconcilePayments(ctx, q, orderID)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}

	s.notifier.reconciled(ctx, orderID, outcome)
	return outcome.PaidTotal, nil
}

// Refresh recalculates the total, reconciles payments and returns the order
func (s *OrderService) Refresh(ctx context.Context, orderID int64) (*OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Refresh", util.OrderAttr(orderID))
	defer span.End()

	var detail *OrderDetail
	var outcome *reconcileOutcome
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		if _, err := q.LockOrder(ctx, orderID); err != nil {
			return err
		}
		var err error
		if outcome, err = recalculateAndReconcile(ctx, q, orderID); err != nil {
			return err
		}
		detail, err = loadDetail(ctx, q, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.reconciled(ctx, orderID, outcome)
	return detail, nil
}

// ListByCustomer returns a customer's orders, newest first
func (s *OrderService) ListByCustomer(ctx context.Context, customerID int64) ([]models.Order, error) {
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.ListOrdersByCustomer(ctx, customerID)
}

// ListByVehicle returns the service history of a vehicle, newest first
func (s *OrderService) ListByVehicle(ctx context.Context, vehicleID int64) ([]models.Order, error) {
	if _, err := s.repo.GetVehicle(ctx, vehicleID); err != nil {
		return nil, err
	}
	return s.repo.ListOrdersByVehicle(ctx, vehicleID)
}

// ListEvents returns the audit log of an order
func (s *OrderService) ListEvents(ctx context.Context, orderID int64) ([]models.OrderEvent, error) {
	if _, err := s.repo.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.ListOrderEvents(ctx, orderID)
}

func loadDetail(ctx context.Context, q store.Queries, orderID int64) (*OrderDetail, error) {
	order, err := q.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	detail := &OrderDetail{Order: order}
	if detail.Services, err = q.ListServiceItems(ctx, orderID); err != nil {
		return nil, err
	}
	if detail.Parts, err = q.ListPartItems(ctx, orderID); err != nil {
		return nil, err
	}
	if detail.Payments, err = q.ListPayments(ctx, orderID); err != nil {
		return nil, err
	}
	if detail.Photos, err = q.ListPhotos(ctx, orderID); err != nil {
		return nil, err
	}

	detail.PaidTotal = models.SumPayments(detail.Payments)
	detail.RemainingAmount = order.TotalAmount.Sub(detail.PaidTotal)
	return detail, nil
}

// checkOwnership verifies the vehicle belongs to the customer
func checkOwnership(ctx context.Context, q store.Queries, customerID, vehicleID int64) error {
	if _, err := q.GetCustomer(ctx, customerID); err != nil {
		return err
	}
	vehicle, err := q.GetVehicle(ctx, vehicleID)
	if err != nil {
		return err
	}
	if vehicle.CustomerID != customerID {
		return fmt.Errorf("vehicle %d, customer %d: %w", vehicleID, customerID, ErrVehicleMismatch)
	}
	return nil
}

func (r *CreateOrderRequest) validate() error {
	if r.CustomerID <= 0 || r.VehicleID <= 0 {
		return invalid("customer_id and vehicle_id are required")
	}
	if r.Status != "" && !r.Status.Valid() {
		return invalid("unknown order status %q", r.Status)
	}
	for i := range r.Services {
		if r.Services[i].ServiceID == 0 {
			continue
		}
		if err := r.Services[i].validate(); err != nil {
			return fmt.Errorf("services[%d]: %w", i, err)
		}
	}
	for i := range r.Parts {
		if r.Parts[i].PartID == 0 {
			continue
		}
		if err := r.Parts[i].validate(); err != nil {
			return fmt.Errorf("parts[%d]: %w", i, err)
		}
	}
	for i := range r.Payments {
		if err := r.Payments[i].validate(); err != nil {
			return fmt.Errorf("payments[%d]: %w", i, err)
		}
	}
	return nil
}

func (r *UpdateOrderRequest) validate() error {
	if r.CustomerID <= 0 || r.VehicleID <= 0 {
		return invalid("customer_id and vehicle_id are required")
	}
	if !r.Status.Valid() {
		return invalid("unknown order status %q", r.Status)
	}
	return nil
}

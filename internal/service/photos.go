package service

import (
	"context"
	"strings"

	"autoservice/internal/models"
	"autoservice/internal/util"

	"go.uber.org/zap"
)

// PhotoRequest attaches a stored image to an order
type PhotoRequest struct {
	ImagePath string `json:"image_path"`
	IsBefore  bool   `json:"is_before"`
}

// AttachPhoto records a before/after photo of an order
func (s *OrderService) AttachPhoto(ctx context.Context, orderID int64, req *PhotoRequest) (*models.Photo, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.AttachPhoto", util.OrderAttr(orderID))
	defer span.End()

	if strings.TrimSpace(req.ImagePath) == "" {
		return nil, invalid("image_path is required")
	}

	photo := &models.Photo{OrderID: orderID, ImagePath: req.ImagePath, IsBefore: req.IsBefore}
	if err := s.repo.CreatePhoto(ctx, photo); err != nil {
		return nil, err
	}

	s.logger.Info("Photo attached",
		zap.Int64("order_id", orderID),
		zap.Int64("photo_id", photo.ID),
		zap.Bool("is_before", photo.IsBefore))
	return photo, nil
}

// DeletePhoto removes a photo from an order
func (s *OrderService) DeletePhoto(ctx context.Context, orderID, photoID int64) error {
	return s.repo.DeletePhoto(ctx, orderID, photoID)
}

// ListPhotos returns the photos of an order
func (s *OrderService) ListPhotos(ctx context.Context, orderID int64) ([]models.Photo, error) {
	if _, err := s.repo.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.ListPhotos(ctx, orderID)
}

package service

import (
	"context"
	"fmt"

	"autoservice/internal/models"
	"autoservice/internal/store"
	"autoservice/internal/util"

	"go.uber.org/zap"
)

// InventoryClient keeps the stock mirror in line with the store and
// raises low-stock alerts
type InventoryClient struct {
	repo              store.Repository
	cache             StockCache
	lowStockThreshold int
	logger            *zap.Logger
}

// NewInventoryClient creates a new inventory client. cache may be nil when
// no Redis is configured; reads then go to the store.
func NewInventoryClient(repo store.Repository, cache StockCache, lowStockThreshold int) *InventoryClient {
	return &InventoryClient{
		repo:              repo,
		cache:             cache,
		lowStockThreshold: lowStockThreshold,
		logger:            util.GetLogger(),
	}
}

// GetStock reads the mirrored stock of a part, falling back to the store
func (ic *InventoryClient) GetStock(ctx context.Context, partID int64) (int, error) {
	ctx, span := util.StartSpan(ctx, "InventoryClient.GetStock", util.PartAttr(partID))
	defer span.End()

	if ic.cache != nil {
		stock, found, err := ic.cache.GetStock(ctx, partID)
		if err == nil && found {
			return stock, nil
		}
		if err != nil {
			ic.logger.Warn("Redis stock read failed, falling back to DB",
				zap.Int64("part_id", partID),
				zap.Error(err))
		}
	}

	return ic.RefreshStock(ctx, partID)
}

// RefreshStock copies the stored stock of a part into the mirror. The
// version is read with the counter, so a slow refresh cannot overwrite a
// newer value written after a later movement.
func (ic *InventoryClient) RefreshStock(ctx context.Context, partID int64) (int, error) {
	stock, err := ic.repo.GetPartStock(ctx, partID)
	if err != nil {
		return 0, err
	}
	ic.mirror(ctx, stock)

	if stock.StockQuantity <= ic.lowStockThreshold {
		util.LowStockAlertsTotal.Inc()
		ic.logger.Warn("Low stock",
			zap.Int64("part_id", stock.PartID),
			zap.Int("stock_quantity", stock.StockQuantity),
			zap.Int("threshold", ic.lowStockThreshold))
	}

	return stock.StockQuantity, nil
}

func (ic *InventoryClient) mirror(ctx context.Context, stock *models.PartStock) {
	if ic.cache == nil {
		return
	}
	if err := ic.cache.SetStock(ctx, stock.PartID, stock.StockQuantity, stock.Version); err != nil {
		ic.logger.Error("Failed to mirror stock to Redis",
			zap.Int64("part_id", stock.PartID),
			zap.Error(err))
	}
}

// HandleStockAdjusted refreshes the mirror once per PART_STOCK_ADJUSTED event
func (ic *InventoryClient) HandleStockAdjusted(ctx context.Context, event *models.PartStockAdjustedEvent) error {
	ctx, span := util.StartSpan(ctx, "InventoryClient.HandleStockAdjusted", util.PartAttr(event.PartID))
	defer span.End()

	processed, err := ic.repo.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		ic.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	if _, err := ic.RefreshStock(ctx, event.PartID); err != nil {
		if isNotFound(err) {
			ic.logger.Warn("Part gone, stock event dropped",
				zap.Int64("part_id", event.PartID),
				zap.String("event_id", event.EventID))
			return nil
		}
		return fmt.Errorf("failed to refresh stock of part %d: %w", event.PartID, err)
	}

	if err := ic.repo.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		ic.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}

// SyncInventoryToRedis copies every part's stock into the mirror
func (ic *InventoryClient) SyncInventoryToRedis(ctx context.Context) error {
	if ic.cache == nil {
		return nil
	}

	ic.logger.Info("Starting inventory sync to Redis")

	parts, err := ic.repo.ListParts(ctx)
	if err != nil {
		return fmt.Errorf("failed to get parts: %w", err)
	}

	for _, part := range parts {
		stock, err := ic.repo.GetPartStock(ctx, part.ID)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return fmt.Errorf("failed to read stock of part %d: %w", part.ID, err)
		}
		ic.mirror(ctx, stock)
	}

	ic.logger.Info("Inventory sync completed", zap.Int("count", len(parts)))
	return nil
}

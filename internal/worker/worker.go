package worker

import (
	"context"

	"autoservice/internal/broker"
	"autoservice/internal/service"
	"autoservice/internal/util"

	"go.uber.org/zap"
)

// MessageSource is a topic subscription the workers drain
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// StockWorker keeps the Redis stock mirror in line with stock adjustments
type StockWorker struct {
	consumer     MessageSource
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewStockWorker creates a new stock worker
func NewStockWorker(consumer MessageSource, inventory *service.InventoryClient) *StockWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnPartStockAdjusted(inventory.HandleStockAdjusted)

	return &StockWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start starts the worker
func (w *StockWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting stock worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StockWorker) Stop() error {
	w.logger.Info("Stopping stock worker")
	return w.consumer.Close()
}

// AuditWorker appends order lifecycle events to the order history
type AuditWorker struct {
	consumer     MessageSource
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer MessageSource, recorder *service.AuditRecorder) *AuditWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(recorder.HandleOrderCreated)
	eventHandler.OnOrderCompleted(recorder.HandleOrderCompleted)
	eventHandler.OnPaymentRecorded(recorder.HandlePaymentRecorded)
	eventHandler.OnPaymentDeleted(recorder.HandlePaymentDeleted)

	return &AuditWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start starts the audit worker
func (w *AuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting audit worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the audit worker
func (w *AuditWorker) Stop() error {
	w.logger.Info("Stopping audit worker")
	return w.consumer.Close()
}

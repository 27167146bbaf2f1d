package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autoservice/config"
	"autoservice/internal/api"
	"autoservice/internal/broker"
	"autoservice/internal/redisclient"
	"autoservice/internal/service"
	"autoservice/internal/store"
	"autoservice/internal/util"
	"autoservice/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type backend interface {
	store.Repository
	api.Pinger
	Close() error
}

func openStore(cfg config.DatabaseConfig, logger *zap.Logger) (backend, error) {
	if cfg.Driver == "memory" {
		logger.Warn("Using in-memory store, data is lost on restart")
		return store.NewMemoryStore(), nil
	}

	if cfg.Migrate {
		if err := store.Migrate(cfg.URL); err != nil {
			return nil, err
		}
		logger.Info("Database migrations applied")
	}
	return store.NewStore(cfg.URL)
}

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting service", zap.String("port", cfg.Server.Port))

	if cfg.Observ.JaegerEndpoint != "" {
		tp, err := util.InitTracer(cfg.Server, cfg.Observ)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	db, err := openStore(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Store ready", zap.String("driver", cfg.Database.Driver))

	// Redis is optional: without it stock reads go to the store and
	// idempotency keys are not honoured. Services write the stock mirror
	// after every committed movement; the stock worker only repairs it.
	var (
		stockCache  service.StockCache
		idempotency service.IdempotencyStore
	)
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
	} else {
		defer redisClient.Close()
		stockCache = redisClient
		idempotency = redisClient
		logger.Info("Redis connected")
	}

	publisher := service.NopPublisher()
	if cfg.Kafka.Enabled() {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	idempotencyTTL := time.Duration(cfg.Business.IdempotencyTTLSeconds) * time.Second

	inventoryClient := service.NewInventoryClient(db, stockCache, cfg.Business.LowStockThreshold)
	orderService := service.NewOrderService(db, publisher, stockCache)
	lineService := service.NewLineService(db, publisher, stockCache)
	paymentService := service.NewPaymentService(db, publisher, idempotency, idempotencyTTL)
	catalogService := service.NewCatalogService(db, publisher, stockCache)
	auditRecorder := service.NewAuditRecorder(db)

	if err := inventoryClient.SyncInventoryToRedis(context.Background()); err != nil {
		logger.Warn("Failed to sync inventory to Redis", zap.Error(err))
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var (
		stockWorker *worker.StockWorker
		auditWorker *worker.AuditWorker
	)
	if cfg.Kafka.Enabled() {
		stockConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.StockGroup)
		stockWorker = worker.NewStockWorker(stockConsumer, inventoryClient)
		go func() {
			if err := stockWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Stock worker error", zap.Error(err))
			}
		}()

		auditConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.AuditGroup)
		auditWorker = worker.NewAuditWorker(auditConsumer, auditRecorder)
		go func() {
			if err := auditWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Audit worker error", zap.Error(err))
			}
		}()
	} else {
		logger.Warn("KAFKA_BROKERS not set, events are not published and workers are disabled")
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Orders:    orderService,
		Lines:     lineService,
		Payments:  paymentService,
		Catalog:   catalogService,
		Inventory: inventoryClient,
		Store:     db,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if stockWorker != nil {
		_ = stockWorker.Stop()
	}
	if auditWorker != nil {
		_ = auditWorker.Stop()
	}

	logger.Info("Server exited")
}

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"autoservice/internal/service"
	"autoservice/internal/store"
	"autoservice/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles what the handlers call into
type Services struct {
	Orders    *service.OrderService
	Lines     *service.LineService
	Payments  *service.PaymentService
	Catalog   *service.CatalogService
	Inventory *service.InventoryClient
	Store     Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	orders    *service.OrderService
	lines     *service.LineService
	payments  *service.PaymentService
	catalog   *service.CatalogService
	inventory *service.InventoryClient
	store     Pinger
}

// NewHandler creates a new HTTP handler
func NewHandler(s Services) *Handler {
	return &Handler{
		orders:    s.Orders,
		lines:     s.Lines,
		payments:  s.Payments,
		catalog:   s.Catalog,
		inventory: s.Inventory,
		store:     s.Store,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/customers", h.listCustomers)
		v1.POST("/customers", h.createCustomer)
		v1.GET("/customers/:id", h.getCustomer)
		v1.PUT("/customers/:id", h.updateCustomer)
		v1.DELETE("/customers/:id", h.deleteCustomer)
		v1.GET("/customers/:id/vehicles", h.listCustomerVehicles)
		v1.GET("/customers/:id/orders", h.listCustomerOrders)

		v1.POST("/vehicles", h.createVehicle)
		v1.GET("/vehicles/:id", h.getVehicle)
		v1.PUT("/vehicles/:id", h.updateVehicle)
		v1.DELETE("/vehicles/:id", h.deleteVehicle)
		v1.GET("/vehicles/:id/orders", h.listVehicleOrders)

		v1.GET("/masters", h.listMasters)
		v1.POST("/masters", h.createMaster)
		v1.GET("/masters/workload", h.masterWorkload)
		v1.GET("/masters/:id", h.getMaster)
		v1.PUT("/masters/:id", h.updateMaster)
		v1.DELETE("/masters/:id", h.deleteMaster)

		v1.GET("/services", h.listServices)
		v1.POST("/services", h.createService)
		v1.GET("/services/:id", h.getService)
		v1.PUT("/services/:id", h.updateService)
		v1.DELETE("/services/:id", h.deleteService)

		v1.GET("/parts", h.listParts)
		v1.POST("/parts", h.createPart)
		v1.GET("/parts/:id", h.getPart)
		v1.PUT("/parts/:id", h.updatePart)
		v1.DELETE("/parts/:id", h.deletePart)
		v1.GET("/parts/:id/stock", h.getPartStock)
		v1.POST("/parts/:id/stock", h.adjustPartStock)
		v1.GET("/parts/:id/movements", h.listPartMovements)

		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.PUT("/orders/:id", h.updateOrder)
		v1.DELETE("/orders/:id", h.deleteOrder)
		v1.POST("/orders/:id/recalculate", h.recalculateOrder)
		v1.GET("/orders/:id/events", h.listOrderEvents)

		v1.POST("/orders/:id/services", h.addServiceLine)
		v1.PUT("/orders/:id/services/:itemId", h.updateServiceLine)
		v1.DELETE("/orders/:id/services/:itemId", h.deleteServiceLine)

		v1.POST("/orders/:id/parts", h.addPartLine)
		v1.PUT("/orders/:id/parts/:itemId", h.updatePartLine)
		v1.DELETE("/orders/:id/parts/:itemId", h.deletePartLine)

		v1.GET("/orders/:id/payments", h.listPayments)
		v1.POST("/orders/:id/payments", h.recordPayment)
		v1.DELETE("/orders/:id/payments/:paymentId", h.deletePayment)

		v1.GET("/orders/:id/photos", h.listPhotos)
		v1.POST("/orders/:id/photos", h.attachPhoto)
		v1.DELETE("/orders/:id/photos/:photoId", h.deletePhoto)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once the store answers
func (h *Handler) readinessCheck(c *gin.Context) {
	if h.store != nil {
		if err := h.store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not ready",
				"details": err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// respondError maps domain errors to HTTP statuses
func respondError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrProtected),
		errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrVehicleMismatch):
		status = http.StatusBadRequest
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

// bindJSON decodes the request body or answers 400
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

// paramID parses a path id or answers 400
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + name,
		})
		return 0, false
	}
	return id, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

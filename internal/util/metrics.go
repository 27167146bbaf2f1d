package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workshop_orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workshop_orders_failed_total",
		Help: "Total number of rejected order creations",
	}, []string{"reason"})

	OrdersAutoCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workshop_orders_auto_completed_total",
		Help: "Total number of orders completed by a payment",
	})

	PaymentsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workshop_payments_recorded_total",
		Help: "Total number of payments recorded",
	}, []string{"payment_type"})

	PaymentsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workshop_payments_deleted_total",
		Help: "Total number of payments removed from a ledger",
	})

	PaymentStatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workshop_payment_status_transitions_total",
		Help: "Payment status changes made by reconciliation",
	}, []string{"from", "to"})

	ReconcileLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "workshop_reconcile_latency_seconds",
		Help:    "Latency of payment reconciliation",
		Buckets: prometheus.DefBuckets,
	})

	StockAdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workshop_stock_adjustments_total",
		Help: "Total number of part stock adjustments",
	}, []string{"direction"})

	InsufficientStockTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workshop_insufficient_stock_total",
		Help: "Total number of stock deltas rejected for driving stock below zero",
	})

	LowStockAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workshop_low_stock_alerts_total",
		Help: "Total number of low stock alerts",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)

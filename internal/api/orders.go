package api

import (
	"net/http"

	"autoservice/internal/service"

	"github.com/gin-gonic/gin"
)

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	detail, err := h.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Failed to create order", err)
		return
	}

	c.JSON(http.StatusCreated, detail)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	detail, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, "Failed to get order", err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *Handler) updateOrder(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	detail, err := h.orders.UpdateOrder(c.Request.Context(), orderID, &req)
	if err != nil {
		respondError(c, "Failed to update order", err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *Handler) deleteOrder(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.orders.DeleteOrder(c.Request.Context(), orderID); err != nil {
		respondError(c, "Failed to delete order", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// recalculateOrder refreshes the total and the payment state
func (h *Handler) recalculateOrder(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	detail, err := h.orders.Refresh(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, "Failed to recalculate order", err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *Handler) listOrderEvents(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	events, err := h.orders.ListEvents(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, "Failed to list order events", err)
		return
	}

	c.JSON(http.StatusOK, events)
}

func (h *Handler) listCustomerOrders(c *gin.Context) {
	customerID, ok := paramID(c, "id")
	if !ok {
		return
	}

	orders, err := h.orders.ListByCustomer(c.Request.Context(), customerID)
	if err != nil {
		respondError(c, "Failed to list orders", err)
		return
	}

	c.JSON(http.StatusOK, orders)
}

func (h *Handler) listVehicleOrders(c *gin.Context) {
	vehicleID, ok := paramID(c, "id")
	if !ok {
		return
	}

	orders, err := h.orders.ListByVehicle(c.Request.Context(), vehicleID)
	if err != nil {
		respondError(c, "Failed to list orders", err)
		return
	}

	c.JSON(http.StatusOK, orders)
}

// Lines

func (h *Handler) addServiceLine(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.ServiceLineRequest
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.lines.AddService(c.Request.Context(), orderID, &req)
	if err != nil {
		respondError(c, "Failed to add service line", err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

func (h *Handler) updateServiceLine(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	itemID, ok := paramID(c, "itemId")
	if !ok {
		return
	}
	var req service.ServiceLineUpdate
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.lines.UpdateService(c.Request.Context(), orderID, itemID, &req)
	if err != nil {
		respondError(c, "Failed to update service line", err)
		return
	}

	c.JSON(http.StatusOK, item)
}

func (h *Handler) deleteServiceLine(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	itemID, ok := paramID(c, "itemId")
	if !ok {
		return
	}

	if err := h.lines.DeleteService(c.Request.Context(), orderID, itemID); err != nil {
		respondError(c, "Failed to delete service line", err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) addPartLine(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.PartLineRequest
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.lines.AddPart(c.Request.Context(), orderID, &req)
	if err != nil {
		respondError(c, "Failed to add part line", err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

func (h *Handler) updatePartLine(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	itemID, ok := paramID(c, "itemId")
	if !ok {
		return
	}
	var req service.PartLineUpdate
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.lines.UpdatePart(c.Request.Context(), orderID, itemID, &req)
	if err != nil {
		respondError(c, "Failed to update part line", err)
		return
	}

	c.JSON(http.StatusOK, item)
}

func (h *Handler) deletePartLine(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	itemID, ok := paramID(c, "itemId")
	if !ok {
		return
	}

	if err := h.lines.DeletePart(c.Request.Context(), orderID, itemID); err != nil {
		respondError(c, "Failed to delete part line", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Payments

func (h *Handler) listPayments(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	payments, err := h.payments.ListPayments(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, "Failed to list payments", err)
		return
	}

	c.JSON(http.StatusOK, payments)
}

// recordPayment honours the Idempotency-Key header
func (h *Handler) recordPayment(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.PaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.payments.RecordPayment(c.Request.Context(), orderID, &req, c.GetHeader("Idempotency-Key"))
	if err != nil {
		respondError(c, "Failed to record payment", err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

func (h *Handler) deletePayment(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	paymentID, ok := paramID(c, "paymentId")
	if !ok {
		return
	}

	result, err := h.payments.DeletePayment(c.Request.Context(), orderID, paymentID)
	if err != nil {
		respondError(c, "Failed to delete payment", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Photos

func (h *Handler) listPhotos(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	photos, err := h.orders.ListPhotos(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, "Failed to list photos", err)
		return
	}

	c.JSON(http.StatusOK, photos)
}

func (h *Handler) attachPhoto(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.PhotoRequest
	if !bindJSON(c, &req) {
		return
	}

	photo, err := h.orders.AttachPhoto(c.Request.Context(), orderID, &req)
	if err != nil {
		respondError(c, "Failed to attach photo", err)
		return
	}

	c.JSON(http.StatusCreated, photo)
}

func (h *Handler) deletePhoto(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	photoID, ok := paramID(c, "photoId")
	if !ok {
		return
	}

	if err := h.orders.DeletePhoto(c.Request.Context(), orderID, photoID); err != nil {
		respondError(c, "Failed to delete photo", err)
		return
	}

	c.Status(http.StatusNoContent)
}

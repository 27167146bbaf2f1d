package api

import (
	"net/http"

	"autoservice/internal/models"
	"autoservice/internal/service"

	"github.com/gin-gonic/gin"
)

// Customers

func (h *Handler) listCustomers(c *gin.Context) {
	customers, err := h.catalog.ListCustomers(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list customers", err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

func (h *Handler) createCustomer(c *gin.Context) {
	var customer models.Customer
	if !bindJSON(c, &customer) {
		return
	}
	if err := h.catalog.CreateCustomer(c.Request.Context(), &customer); err != nil {
		respondError(c, "Failed to create customer", err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (h *Handler) getCustomer(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	customer, err := h.catalog.GetCustomer(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Failed to get customer", err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *Handler) updateCustomer(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var customer models.Customer
	if !bindJSON(c, &customer) {
		return
	}
	customer.ID = id
	if err := h.catalog.UpdateCustomer(c.Request.Context(), &customer); err != nil {
		respondError(c, "Failed to update customer", err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *Handler) deleteCustomer(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteCustomer(c.Request.Context(), id); err != nil {
		respondError(c, "Failed to delete customer", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listCustomerVehicles(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	vehicles, err := h.catalog.ListVehicles(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Failed to list vehicles", err)
		return
	}
	c.JSON(http.StatusOK, vehicles)
}

// Vehicles

func (h *Handler) createVehicle(c *gin.Context) {
	var vehicle models.Vehicle
	if !bindJSON(c, &vehicle) {
		return
	}
	if err := h.catalog.CreateVehicle(c.Request.Context(), &vehicle); err != nil {
		respondError(c, "Failed to create vehicle", err)
		return
	}
	c.JSON(http.StatusCreated, vehicle)
}

func (h *Handler) getVehicle(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	vehicle, err := h.catalog.GetVehicle(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Failed to get vehicle", err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

func (h *Handler) updateVehicle(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var vehicle models.Vehicle
	if !bindJSON(c, &vehicle) {
		return
	}
	vehicle.ID = id
	if err := h.catalog.UpdateVehicle(c.Request.Context(), &vehicle); err != nil {
		respondError(c, "Failed to update vehicle", err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

func (h *Handler) deleteVehicle(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteVehicle(c.Request.Context(), id); err != nil {
		respondError(c, "Failed to delete vehicle", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Masters

func (h *Handler) listMasters(c *gin.Context) {
	masters, err := h.catalog.ListMasters(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list masters", err)
		return
	}
	c.JSON(http.StatusOK, masters)
}

func (h *Handler) createMaster(c *gin.Context) {
	var master models.Master
	if !bindJSON(c, &master) {
		return
	}
	if err := h.catalog.CreateMaster(c.Request.Context(), &master); err != nil {
		respondError(c, "Failed to create master", err)
		return
	}
	c.JSON(http.StatusCreated, master)
}

func (h *Handler) masterWorkload(c *gin.Context) {
	workload, err := h.catalog.MasterWorkload(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to get workload", err)
		return
	}
	c.JSON(http.StatusOK, workload)
}

func (h *Handler) getMaster(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	master, err := h.catalog.GetMaster(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Failed to get master", err)
		return
	}
	c.JSON(http.StatusOK, master)
}

func (h *Handler) updateMaster(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var master models.Master
	if !bindJSON(c, &master) {
		return
	}
	master.ID = id
	if err := h.catalog.UpdateMaster(c.Request.Context(), &master); err != nil {
		respondError(c, "Failed to update master", err)
		return
	}
	c.JSON(http.StatusOK, master)
}

func (h *Handler) deleteMaster(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteMaster(c.Request.Context(), id); err != nil {
		respondError(c, "Failed to delete master", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Services

func (h *Handler) listServices(c *gin.Context) {
	services, err := h.catalog.ListServices(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list services", err)
		return
	}
	c.JSON(http.StatusOK, services)
}

func (h *Handler) createService(c *gin.Context) {
	var svc models.Service
	if !bindJSON(c, &svc) {
		return
	}
	if err := h.catalog.CreateService(c.Request.Context(), &svc); err != nil {
		respondError(c, "Failed to create service", err)
		return
	}
	c.JSON(http.StatusCreated, svc)
}

func (h *Handler) getService(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	svc, err := h.catalog.GetService(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Failed to get service", err)
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (h *Handler) updateService(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var svc models.Service
	if !bindJSON(c, &svc) {
		return
	}
	svc.ID = id
	if err := h.catalog.UpdateService(c.Request.Context(), &svc); err != nil {
		respondError(c, "Failed to update service", err)
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (h *Handler) deleteService(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteService(c.Request.Context(), id); err != nil {
		respondError(c, "Failed to delete service", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Parts

func (h *Handler) listParts(c *gin.Context) {
	parts, err := h.catalog.ListParts(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list parts", err)
		return
	}
	c.JSON(http.StatusOK, parts)
}

func (h *Handler) createPart(c *gin.Context) {
	var part models.Part
	if !bindJSON(c, &part) {
		return
	}
	if err := h.catalog.CreatePart(c.Request.Context(), &part); err != nil {
		respondError(c, "Failed to create part", err)
		return
	}
	c.JSON(http.StatusCreated, part)
}

func (h *Handler) getPart(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	part, err := h.catalog.GetPart(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Failed to get part", err)
		return
	}
	c.JSON(http.StatusOK, part)
}

func (h *Handler) updatePart(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var part models.Part
	if !bindJSON(c, &part) {
		return
	}
	part.ID = id
	if err := h.catalog.UpdatePart(c.Request.Context(), &part); err != nil {
		respondError(c, "Failed to update part", err)
		return
	}
	c.JSON(http.StatusOK, part)
}

func (h *Handler) deletePart(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeletePart(c.Request.Context(), id); err != nil {
		respondError(c, "Failed to delete part", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// getPartStock reads the stock through the Redis mirror
func (h *Handler) getPartStock(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	stock, err := h.inventory.GetStock(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Failed to get stock", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"part_id":        id,
		"stock_quantity": stock,
	})
}

func (h *Handler) adjustPartStock(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.StockAdjustment
	if !bindJSON(c, &req) {
		return
	}
	movement, err := h.catalog.AdjustStock(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, "Failed to adjust stock", err)
		return
	}
	c.JSON(http.StatusCreated, movement)
}

func (h *Handler) listPartMovements(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	movements, err := h.catalog.ListMovements(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Failed to list movements", err)
		return
	}
	c.JSON(http.StatusOK, movements)
}

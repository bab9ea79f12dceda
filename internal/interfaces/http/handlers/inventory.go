// internal/interfaces/http/handlers/inventory.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
)

// InventoryHandler handles stock endpoints
type InventoryHandler struct {
	inventory *inventory.Service
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(inventorySvc *inventory.Service) *InventoryHandler {
	return &InventoryHandler{inventory: inventorySvc}
}

// SubscribeBackInStock registers a back-in-stock notification request
func (h *InventoryHandler) SubscribeBackInStock(c *gin.Context) {
	var req inventory.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	if err := h.inventory.SubscribeBackInStock(&req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to subscribe"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "You will be notified when this product is back in stock",
	})
}

// CreatePreOrder records a pre-order for an out-of-stock product
func (h *InventoryHandler) CreatePreOrder(c *gin.Context) {
	var req inventory.PreOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	po, err := h.inventory.CreatePreOrder(&req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create pre-order"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Pre-order recorded",
		"data":    po,
	})
}

// GetStock returns the stock level for a product (staff only)
func (h *InventoryHandler) GetStock(c *gin.Context) {
	productID, err := strconv.ParseUint(c.Param("product_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	level, err := h.inventory.Stock(uint(productID))
	if err != nil {
		if errors.Is(err, inventory.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No stock record for product"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stock"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"stock":  level,
		"is_low": level.IsLow(),
		"is_out": level.IsOut(),
	}})
}

// Restock adjusts stock for a product (staff only)
func (h *InventoryHandler) Restock(c *gin.Context) {
	var req inventory.RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	level, err := h.inventory.Restock(&req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to restock"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Stock updated",
		"data":    level,
	})
}

// ListAlerts returns stock alerts (staff only)
func (h *InventoryHandler) ListAlerts(c *gin.Context) {
	var req inventory.AlertListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid query parameters",
			"details": err.Error(),
		})
		return
	}

	alerts, total, err := h.inventory.ListAlerts(&req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": alerts,
		"meta": gin.H{
			"total": total,
			"page":  req.Page,
			"limit": req.Limit,
		},
	})
}

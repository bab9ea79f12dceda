// internal/interfaces/http/handlers/analytics.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-backend/internal/domain/analytics"
)

// AnalyticsHandler exposes the staff dashboard
type AnalyticsHandler struct {
	analytics *analytics.Service
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analyticsSvc *analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analyticsSvc}
}

// GetDashboard returns overall store statistics (staff only)
func (h *AnalyticsHandler) GetDashboard(c *gin.Context) {
	stats, err := h.analytics.GetDashboardStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

// GetTopProducts returns best-selling products (staff only)
func (h *AnalyticsHandler) GetTopProducts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	rows, err := h.analytics.GetTopProducts(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load top products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rows})
}

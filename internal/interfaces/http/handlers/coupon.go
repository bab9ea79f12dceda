// internal/interfaces/http/handlers/coupon.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-backend/internal/domain/coupon"
)

// CouponHandler handles coupon administration (staff only)
type CouponHandler struct {
	coupons *coupon.Service
}

// NewCouponHandler creates a new coupon handler
func NewCouponHandler(coupons *coupon.Service) *CouponHandler {
	return &CouponHandler{coupons: coupons}
}

// CreateCoupon creates a coupon
func (h *CouponHandler) CreateCoupon(c *gin.Context) {
	var req coupon.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	cp, err := h.coupons.Create(&req)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Coupon created",
		"data":    cp,
	})
}

// UpdateCoupon updates a coupon
func (h *CouponHandler) UpdateCoupon(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coupon ID"})
		return
	}

	var req coupon.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	cp, err := h.coupons.Update(uint(id), &req)
	if err != nil {
		var rej *coupon.RejectionError
		if errors.As(err, &rej) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Coupon not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update coupon"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Coupon updated",
		"data":    cp,
	})
}

// ListCoupons returns coupons with pagination
func (h *CouponHandler) ListCoupons(c *gin.Context) {
	var req coupon.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid query parameters",
			"details": err.Error(),
		})
		return
	}

	coupons, total, err := h.coupons.List(&req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list coupons"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": coupons,
		"meta": gin.H{
			"total": total,
			"page":  req.Page,
			"limit": req.Limit,
		},
	})
}

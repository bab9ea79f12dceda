// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/checkout"
	"github.com/your-org/storefront-backend/internal/domain/coupon"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
)

// CheckoutHandler handles order placement
type CheckoutHandler struct {
	checkout *checkout.Service
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkoutSvc *checkout.Service) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkoutSvc}
}

// PlaceOrder converts the caller's cart into a pending order
func (h *CheckoutHandler) PlaceOrder(c *gin.Context) {
	id, ok := cartIdentity(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No cart session"})
		return
	}

	var req checkout.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	o, err := h.checkout.PlaceOrder(c.Request.Context(), id, &req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Order placed",
		"data":    o,
	})
}

func (h *CheckoutHandler) renderError(c *gin.Context, err error) {
	var rej *coupon.RejectionError
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
	case errors.Is(err, checkout.ErrPriceChanged):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Product prices changed since the cart was built"})
	case errors.Is(err, inventory.ErrInsufficient):
		c.JSON(http.StatusConflict, gin.H{"error": "Insufficient stock for one or more items"})
	case errors.Is(err, cart.ErrInactiveProduct):
		c.JSON(http.StatusBadRequest, gin.H{"error": "A product in the cart is no longer available"})
	case errors.As(err, &rej):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Coupon rejected",
			"reason": rej.Reason,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to place order"})
	}
}

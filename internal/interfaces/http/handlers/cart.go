// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"github.com/your-org/storefront-backend/internal/domain/coupon"
	"github.com/your-org/storefront-backend/internal/interfaces/http/middleware"
)

// CartHandler handles shopping cart endpoints
type CartHandler struct {
	carts   *cart.Service
	coupons *coupon.Service
}

// NewCartHandler creates a new cart handler
func NewCartHandler(carts *cart.Service, coupons *coupon.Service) *CartHandler {
	return &CartHandler{
		carts:   carts,
		coupons: coupons,
	}
}

// cartView is the cart response enriched with the applied coupon
type cartView struct {
	*cart.Cart
	Coupon   *appliedCoupon `json:"coupon,omitempty"`
	Discount int64          `json:"discount"`
	Total    int64          `json:"total"`
}

type appliedCoupon struct {
	Code string      `json:"code"`
	Kind coupon.Kind `json:"kind"`
}

func cartIdentity(c *gin.Context) (cart.Identity, bool) {
	if userID, ok := middleware.GetUserIDFromContext(c); ok {
		return cart.UserIdentity(userID), true
	}
	if key := middleware.GetSessionKeyFromContext(c); key != "" {
		return cart.SessionIdentity(key), true
	}
	return cart.Identity{}, false
}

func couponActor(id cart.Identity) coupon.Actor {
	return coupon.Actor{UserID: id.UserID, SessionKey: id.SessionKey}
}

// view assembles the cart response, revalidating any pinned coupon
// against the current subtotal. A coupon that no longer qualifies is
// reported without a discount rather than blocking the cart.
func (h *CartHandler) view(c *gin.Context, id cart.Identity, contents *cart.Cart) *cartView {
	v := &cartView{Cart: contents, Total: contents.Subtotal}

	code, err := h.coupons.Applied(c.Request.Context(), couponActor(id))
	if err != nil || code == "" {
		return v
	}

	cp, err := h.coupons.Validate(code, couponActor(id), contents.Subtotal)
	if err != nil {
		v.Coupon = &appliedCoupon{Code: code}
		return v
	}

	v.Coupon = &appliedCoupon{Code: cp.Code, Kind: cp.Kind}
	v.Discount = coupon.Quote(cp, contents.Subtotal)
	v.Total = contents.Subtotal - v.Discount
	return v
}

// GetCart returns the caller's cart
func (h *CartHandler) GetCart(c *gin.Context) {
	id, ok := cartIdentity(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No cart session"})
		return
	}

	contents, err := h.carts.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": h.view(c, id, contents),
	})
}

// AddItem adds a product to the cart
func (h *CartHandler) AddItem(c *gin.Context) {
	id, ok := cartIdentity(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No cart session"})
		return
	}

	var req cart.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	contents, err := h.carts.AddItem(c.Request.Context(), id, &req)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrNotFound), errors.Is(err, cart.ErrInactiveProduct):
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not available"})
		case errors.Is(err, cart.ErrInvalidQuantity):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add item"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item added to cart",
		"data":    h.view(c, id, contents),
	})
}

// UpdateItem changes the quantity of a cart line
func (h *CartHandler) UpdateItem(c *gin.Context) {
	id, ok := cartIdentity(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No cart session"})
		return
	}

	productID, err := strconv.ParseUint(c.Param("product_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	var req cart.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	contents, err := h.carts.UpdateItem(c.Request.Context(), id, uint(productID), &req)
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrItemNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not in cart"})
		case errors.Is(err, cart.ErrInvalidQuantity):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update item"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart updated",
		"data":    h.view(c, id, contents),
	})
}

// RemoveItem drops a product from the cart
func (h *CartHandler) RemoveItem(c *gin.Context) {
	id, ok := cartIdentity(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No cart session"})
		return
	}

	productID, err := strconv.ParseUint(c.Param("product_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	contents, err := h.carts.RemoveItem(c.Request.Context(), id, uint(productID))
	if err != nil {
		if errors.Is(err, cart.ErrItemNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not in cart"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed from cart",
		"data":    h.view(c, id, contents),
	})
}

// ClearCart empties the cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	id, ok := cartIdentity(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No cart session"})
		return
	}

	if err := h.carts.Clear(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cart"})
		return
	}

	if err := h.coupons.RemoveApplied(c.Request.Context(), couponActor(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}

// ApplyCouponRequest carries the coupon code to apply
type ApplyCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// ApplyCoupon validates a coupon against the cart and pins it
func (h *CartHandler) ApplyCoupon(c *gin.Context) {
	id, ok := cartIdentity(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No cart session"})
		return
	}

	var req ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	contents, err := h.carts.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cart"})
		return
	}

	cp, discount, err := h.coupons.Apply(c.Request.Context(), couponActor(id), req.Code, contents.Subtotal)
	if err != nil {
		var rej *coupon.RejectionError
		if errors.As(err, &rej) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":  "Coupon rejected",
				"reason": rej.Reason,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply coupon"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Coupon applied",
		"data": gin.H{
			"code":     cp.Code,
			"discount": discount,
			"subtotal": contents.Subtotal,
			"total":    contents.Subtotal - discount,
		},
	})
}

// RemoveCoupon unpins the applied coupon
func (h *CartHandler) RemoveCoupon(c *gin.Context) {
	id, ok := cartIdentity(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No cart session"})
		return
	}

	if err := h.coupons.RemoveApplied(c.Request.Context(), couponActor(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove coupon"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Coupon removed"})
}

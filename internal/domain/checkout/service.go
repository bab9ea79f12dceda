// internal/domain/checkout/service.go
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"github.com/your-org/storefront-backend/internal/domain/coupon"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/domain/notification"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/pkg/metrics"
	"gorm.io/gorm"
)

var (
	// ErrEmptyCart is returned when checkout is attempted on an empty cart
	ErrEmptyCart = errors.New("cart is empty")
	// ErrPriceChanged is returned in strict price mode when a cart
	// snapshot no longer matches the catalog
	ErrPriceChanged = errors.New("product price changed since it was added to the cart")
)

// Service turns a cart into a pending order. The whole pipeline runs in
// one transaction while holding the cart owner lock: price validation,
// coupon redemption, stock reservation, order creation and cart
// clearing commit or roll back together.
type Service struct {
	db            *gorm.DB
	config        *config.Config
	carts         *cart.Service
	catalog       *catalog.Service
	coupons       *coupon.Service
	inventory     *inventory.Service
	orders        *order.Service
	notifications *notification.Service
	logger        *logrus.Entry
}

// NewService creates a new checkout service
func NewService(
	db *gorm.DB,
	cfg *config.Config,
	carts *cart.Service,
	catalogSvc *catalog.Service,
	coupons *coupon.Service,
	inventorySvc *inventory.Service,
	orders *order.Service,
	notifications *notification.Service,
) *Service {
	return &Service{
		db:            db,
		config:        cfg,
		carts:         carts,
		catalog:       catalogSvc,
		coupons:       coupons,
		inventory:     inventorySvc,
		orders:        orders,
		notifications: notifications,
		logger:        logrus.WithField("component", "checkout"),
	}
}

// Request represents a checkout submission
type Request struct {
	Email           string `json:"email" binding:"required,email"`
	FullName        string `json:"full_name" binding:"required"`
	Phone           string `json:"phone"`
	ShippingAddress string `json:"shipping_address" binding:"required"`
	PaymentMethod   string `json:"payment_method" binding:"required,oneof=stripe paypal cod"`
}

// PlaceOrder runs the checkout pipeline for the cart owner and returns
// the created pending order.
func (s *Service) PlaceOrder(ctx context.Context, id cart.Identity, req *Request) (*order.Order, error) {
	unlock := s.carts.Lock(id)
	defer unlock()

	snapshot, err := s.carts.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if snapshot.IsEmpty() {
		metrics.CheckoutFailures.WithLabelValues("empty_cart").Inc()
		return nil, ErrEmptyCart
	}

	actor := coupon.Actor{UserID: id.UserID, SessionKey: id.SessionKey}
	appliedCode, err := s.coupons.Applied(ctx, actor)
	if err != nil {
		return nil, err
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	o, err := s.placeOrderTx(tx, id, actor, snapshot, appliedCode, req)
	if err != nil {
		tx.Rollback()
		s.countFailure(err)
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit checkout: %w", err)
	}

	// post-commit cleanup of Redis state; losing these only leaves a
	// stale payload behind, it cannot corrupt the order
	if !id.IsUser() {
		if err := s.carts.DropSession(ctx, id.SessionKey); err != nil {
			s.logger.WithError(err).Warn("Failed to drop session cart after checkout")
		}
	}
	if appliedCode != "" {
		if err := s.coupons.RemoveApplied(ctx, actor); err != nil {
			s.logger.WithError(err).Warn("Failed to unpin coupon after checkout")
		}
	}

	metrics.OrdersCreated.WithLabelValues(req.PaymentMethod).Inc()
	if o.CouponCode != "" {
		metrics.CouponRedemptions.Inc()
	}
	s.logger.WithFields(logrus.Fields{
		"order_number": o.OrderNumber,
		"total":        o.Total,
	}).Info("Order placed")

	return o, nil
}

func (s *Service) placeOrderTx(tx *gorm.DB, id cart.Identity, actor coupon.Actor, snapshot *cart.Cart, appliedCode string, req *Request) (*order.Order, error) {
	lines := make([]order.OrderLine, 0, len(snapshot.Items))
	var subtotal int64

	for _, item := range snapshot.Items {
		info, err := s.catalog.Lookup(item.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, cart.ErrInactiveProduct
			}
			return nil, err
		}

		unitPrice := item.UnitPrice
		if info.EffectivePrice != item.UnitPrice {
			if s.config.Checkout.StrictPrice {
				return nil, ErrPriceChanged
			}
			unitPrice = info.EffectivePrice
		}

		lineTotal := unitPrice * int64(item.Quantity)
		subtotal += lineTotal
		lines = append(lines, order.OrderLine{
			ProductID: item.ProductID,
			Name:      info.Name,
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
			LineTotal: lineTotal,
		})
	}

	var discount int64
	if appliedCode != "" {
		c, err := s.coupons.Validate(appliedCode, actor, subtotal)
		if err != nil {
			return nil, err
		}
		discount = coupon.Quote(c, subtotal)
	}

	o := &order.Order{
		UserID:            id.UserID,
		SessionKey:        id.SessionKey,
		Email:             req.Email,
		FullName:          req.FullName,
		Phone:             req.Phone,
		ShippingAddress:   req.ShippingAddress,
		PaymentMethod:     req.PaymentMethod,
		CouponCode:        appliedCode,
		Subtotal:          subtotal,
		Discount:          discount,
		Total:             subtotal - discount,
		InventoryReserved: true,
		Lines:             lines,
	}
	if err := s.orders.Create(tx, o); err != nil {
		return nil, err
	}

	if appliedCode != "" {
		if _, _, err := s.coupons.Redeem(tx, appliedCode, actor, subtotal, o.ID); err != nil {
			return nil, err
		}
	}

	for _, line := range lines {
		if err := s.inventory.Reserve(tx, line.ProductID, line.Quantity); err != nil {
			return nil, err
		}
	}

	if id.IsUser() {
		if err := s.carts.ClearTx(tx, *id.UserID); err != nil {
			return nil, err
		}
	}

	subject := fmt.Sprintf("Order %s received", o.OrderNumber)
	body := fmt.Sprintf("Thanks %s, we received your order %s for a total of %d.%02d. We will confirm once payment completes.",
		o.FullName, o.OrderNumber, o.Total/100, o.Total%100)
	if err := s.notifications.Enqueue(tx, notification.KindOrderConfirmation, o.Email, subject, body); err != nil {
		return nil, err
	}

	return o, nil
}

func (s *Service) countFailure(err error) {
	var rej *coupon.RejectionError
	switch {
	case errors.Is(err, inventory.ErrInsufficient):
		metrics.CheckoutFailures.WithLabelValues("insufficient_stock").Inc()
	case errors.Is(err, ErrPriceChanged):
		metrics.CheckoutFailures.WithLabelValues("price_changed").Inc()
	case errors.Is(err, cart.ErrInactiveProduct):
		metrics.CheckoutFailures.WithLabelValues("inactive_product").Inc()
	case errors.As(err, &rej):
		metrics.CheckoutFailures.WithLabelValues("coupon_rejected").Inc()
	default:
		metrics.CheckoutFailures.WithLabelValues("internal").Inc()
	}
}

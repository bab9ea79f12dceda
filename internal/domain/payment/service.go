// internal/domain/payment/service.go
package payment

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/domain/notification"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/pkg/metrics"
	"gorm.io/gorm"
)

// Service reconciles gateway webhook events with orders. Each event is
// applied in one transaction under an order row lock, and replays of
// already-applied events are no-ops.
type Service struct {
	db            *gorm.DB
	config        *config.Config
	orders        *order.Service
	inventory     *inventory.Service
	notifications *notification.Service
	logger        *logrus.Entry
}

// NewService creates a new payment service
func NewService(
	db *gorm.DB,
	cfg *config.Config,
	orders *order.Service,
	inventorySvc *inventory.Service,
	notifications *notification.Service,
) *Service {
	return &Service{
		db:            db,
		config:        cfg,
		orders:        orders,
		inventory:     inventorySvc,
		notifications: notifications,
		logger:        logrus.WithField("component", "payment"),
	}
}

// Apply reconciles a canonical gateway event with its order. Applied
// and duplicate events both return nil; the caller acknowledges the
// delivery either way.
func (s *Service) Apply(ev *Event) error {
	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	applied, err := s.applyTx(tx, ev)
	if err != nil {
		tx.Rollback()
		metrics.WebhookEvents.WithLabelValues(ev.Gateway, "error").Inc()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit webhook event: %w", err)
	}

	outcome := "applied"
	if !applied {
		outcome = "duplicate"
	}
	metrics.WebhookEvents.WithLabelValues(ev.Gateway, outcome).Inc()

	s.logger.WithFields(logrus.Fields{
		"gateway":  ev.Gateway,
		"kind":     ev.Kind,
		"event_id": ev.EventID,
		"outcome":  outcome,
	}).Info("Webhook event processed")
	return nil
}

func (s *Service) applyTx(tx *gorm.DB, ev *Event) (bool, error) {
	o, err := s.lockOrder(tx, ev)
	if err != nil {
		return false, err
	}

	if ev.Amount > 0 && ev.Amount != o.Total {
		s.logger.WithFields(logrus.Fields{
			"order_number":   o.OrderNumber,
			"order_total":    o.Total,
			"gateway_amount": ev.Amount,
		}).Warn("Webhook amount does not match order total")
	}

	switch ev.Kind {
	case EventPaymentSucceeded:
		return s.applySuccess(tx, o, ev)
	case EventPaymentFailed:
		return s.applyFailure(tx, o, ev)
	case EventRefund:
		return s.applyRefund(tx, o, ev)
	default:
		return false, ErrUnknownEvent
	}
}

func (s *Service) lockOrder(tx *gorm.DB, ev *Event) (*order.Order, error) {
	if ev.OrderID != 0 {
		return s.orders.LockByID(tx, ev.OrderID)
	}
	return s.orders.LockByNumber(tx, ev.OrderNumber)
}

func (s *Service) applySuccess(tx *gorm.DB, o *order.Order, ev *Event) (bool, error) {
	if o.Status == order.StatusPaid {
		return false, nil
	}
	if err := s.orders.MarkPaid(tx, o, ev.GatewayRef); err != nil {
		if errors.Is(err, order.ErrInvalidTransition) {
			// terminal state reached first; acknowledge and move on
			return false, nil
		}
		return false, err
	}

	subject := fmt.Sprintf("Payment confirmed for order %s", o.OrderNumber)
	body := fmt.Sprintf("Hi %s, we received your payment of %d.%02d for order %s. Your items are on the way.",
		o.FullName, o.Total/100, o.Total%100, o.OrderNumber)
	if err := s.notifications.Enqueue(tx, notification.KindOrderConfirmation, o.Email, subject, body); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) applyFailure(tx *gorm.DB, o *order.Order, ev *Event) (bool, error) {
	if o.Status == order.StatusFailed {
		return false, nil
	}
	if err := s.orders.MarkFailed(tx, o, ev.Reason); err != nil {
		if errors.Is(err, order.ErrInvalidTransition) {
			return false, nil
		}
		return false, err
	}

	if err := s.releaseStock(tx, o); err != nil {
		return false, err
	}

	subject := fmt.Sprintf("Payment failed for order %s", o.OrderNumber)
	body := fmt.Sprintf("Hi %s, the payment for order %s did not go through. Your items were returned to stock; please try again.",
		o.FullName, o.OrderNumber)
	if err := s.notifications.Enqueue(tx, notification.KindPaymentFailed, o.Email, subject, body); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) applyRefund(tx *gorm.DB, o *order.Order, ev *Event) (bool, error) {
	if o.Status == order.StatusRefunded {
		return false, nil
	}
	if err := s.orders.MarkRefunded(tx, o); err != nil {
		if errors.Is(err, order.ErrInvalidTransition) {
			return false, nil
		}
		return false, err
	}

	if err := s.releaseStock(tx, o); err != nil {
		return false, err
	}

	subject := fmt.Sprintf("Refund processed for order %s", o.OrderNumber)
	body := fmt.Sprintf("Hi %s, your refund of %d.%02d for order %s has been processed.",
		o.FullName, o.Total/100, o.Total%100, o.OrderNumber)
	if err := s.notifications.Enqueue(tx, notification.KindRefundProcessed, o.Email, subject, body); err != nil {
		return false, err
	}
	return true, nil
}

// releaseStock returns an order's reserved units to inventory exactly
// once, guarded by the InventoryReserved flag under the order row lock.
func (s *Service) releaseStock(tx *gorm.DB, o *order.Order) error {
	if !o.InventoryReserved {
		return nil
	}

	var lines []order.OrderLine
	if err := tx.Where("order_id = ?", o.ID).Find(&lines).Error; err != nil {
		return fmt.Errorf("failed to load order lines: %w", err)
	}
	for _, line := range lines {
		if err := s.inventory.Release(tx, line.ProductID, line.Quantity); err != nil {
			return err
		}
	}

	if err := tx.Model(o).Update("inventory_reserved", false).Error; err != nil {
		return fmt.Errorf("failed to clear reservation flag: %w", err)
	}
	o.InventoryReserved = false
	return nil
}

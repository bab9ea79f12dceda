// internal/domain/inventory/service.go
package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"github.com/your-org/storefront-backend/internal/domain/notification"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInsufficient is returned when a reservation exceeds available stock
	ErrInsufficient = errors.New("insufficient stock")
	// ErrNotFound is returned when a stock record does not exist
	ErrNotFound = errors.New("stock record not found")
)

// Service manages stock levels, alerts and availability subscriptions.
// All quantity mutations take the caller's transaction handle and lock
// the stock row so concurrent reservations cannot oversell.
type Service struct {
	db            *gorm.DB
	config        *config.Config
	notifications *notification.Service
}

// NewService creates a new inventory service
func NewService(db *gorm.DB, cfg *config.Config, notifications *notification.Service) *Service {
	return &Service{
		db:            db,
		config:        cfg,
		notifications: notifications,
	}
}

// Available returns the current on-hand quantity. Missing rows read as zero.
func (s *Service) Available(productID uint) (int, error) {
	var level StockLevel
	err := s.db.Where("product_id = ?", productID).First(&level).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read stock level: %w", err)
	}
	return level.Quantity, nil
}

// Stock returns the full stock record for a product
func (s *Service) Stock(productID uint) (*StockLevel, error) {
	var level StockLevel
	err := s.db.Where("product_id = ?", productID).First(&level).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read stock level: %w", err)
	}
	return &level, nil
}

// Reserve decrements stock for a product inside the caller's
// transaction. The stock row is locked for the duration; a missing row
// counts as zero and fails the reservation.
func (s *Service) Reserve(tx *gorm.DB, productID uint, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("reserve quantity must be positive")
	}

	var level StockLevel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", productID).
		First(&level).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInsufficient
		}
		return fmt.Errorf("failed to lock stock level: %w", err)
	}

	if level.Quantity < quantity {
		return ErrInsufficient
	}

	previous := level.Quantity
	level.Quantity -= quantity
	if err := tx.Model(&level).Update("quantity", level.Quantity).Error; err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	return s.syncAlerts(tx, &level, previous)
}

// Release increments stock for a product inside the caller's
// transaction, creating the stock row if absent. Crossing from zero to
// positive resolves alerts and dispatches availability notifications.
func (s *Service) Release(tx *gorm.DB, productID uint, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("release quantity must be positive")
	}

	var level StockLevel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", productID).
		First(&level).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to lock stock level: %w", err)
		}
		level = StockLevel{
			ProductID:         productID,
			Quantity:          0,
			LowStockThreshold: s.config.Inventory.LowStockThresholdDefault,
		}
		if err := tx.Create(&level).Error; err != nil {
			return fmt.Errorf("failed to create stock level: %w", err)
		}
	}

	previous := level.Quantity
	level.Quantity += quantity
	if err := tx.Model(&level).Update("quantity", level.Quantity).Error; err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}

	if previous == 0 && level.Quantity > 0 {
		if err := s.dispatchAvailability(tx, productID); err != nil {
			return err
		}
	}

	return s.syncAlerts(tx, &level, previous)
}

// RestockRequest represents a staff restock operation
type RestockRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,min=1"`
	Threshold *int `json:"threshold"`
}

// Restock adds stock on behalf of staff in its own transaction,
// optionally adjusting the low-stock threshold.
func (s *Service) Restock(req *RestockRequest) (*StockLevel, error) {
	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := s.Release(tx, req.ProductID, req.Quantity); err != nil {
		tx.Rollback()
		return nil, err
	}

	if req.Threshold != nil {
		if *req.Threshold < 0 {
			tx.Rollback()
			return nil, fmt.Errorf("threshold must not be negative")
		}
		err := tx.Model(&StockLevel{}).
			Where("product_id = ?", req.ProductID).
			Update("low_stock_threshold", *req.Threshold).Error
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to update threshold: %w", err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit restock: %w", err)
	}

	return s.Stock(req.ProductID)
}

// syncAlerts reconciles the product's unresolved alert with the new
// quantity. Creating an alert also queues a staff notification.
func (s *Service) syncAlerts(tx *gorm.DB, level *StockLevel, previous int) error {
	var open StockAlert
	err := tx.Where("product_id = ? AND resolved = ?", level.ProductID, false).First(&open).Error
	hasOpen := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to read stock alerts: %w", err)
	}

	switch {
	case level.Quantity == 0:
		if hasOpen {
			if open.Kind == AlertOutOfStock {
				return nil
			}
			if err := s.resolveAlert(tx, &open); err != nil {
				return err
			}
		}
		return s.openAlert(tx, level, AlertOutOfStock)

	case level.Quantity <= level.LowStockThreshold:
		if hasOpen {
			if open.Kind == AlertLowStock {
				return nil
			}
			if err := s.resolveAlert(tx, &open); err != nil {
				return err
			}
		}
		return s.openAlert(tx, level, AlertLowStock)

	default:
		if hasOpen {
			return s.resolveAlert(tx, &open)
		}
		return nil
	}
}

func (s *Service) resolveAlert(tx *gorm.DB, alert *StockAlert) error {
	now := time.Now()
	updates := map[string]interface{}{"resolved": true, "resolved_at": &now}
	if err := tx.Model(alert).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to resolve stock alert: %w", err)
	}
	return nil
}

func (s *Service) openAlert(tx *gorm.DB, level *StockLevel, kind AlertKind) error {
	alert := &StockAlert{
		ProductID: level.ProductID,
		Kind:      kind,
	}
	if err := tx.Create(alert).Error; err != nil {
		return fmt.Errorf("failed to create stock alert: %w", err)
	}

	to := s.config.Inventory.AlertEmail
	if to == "" {
		to = s.config.Email.FromEmail
	}
	name := s.productName(tx, level.ProductID)

	subject := fmt.Sprintf("Low stock: %s", name)
	body := fmt.Sprintf("%s is down to %d units (threshold %d).", name, level.Quantity, level.LowStockThreshold)
	if kind == AlertOutOfStock {
		subject = fmt.Sprintf("Out of stock: %s", name)
		body = fmt.Sprintf("%s is out of stock.", name)
	}

	return s.notifications.Enqueue(tx, notification.KindLowStockAlert, to, subject, body)
}

// dispatchAvailability queues back-in-stock and pre-order notifications
// for a product that just became available, marking each row notified
// so it fires once.
func (s *Service) dispatchAvailability(tx *gorm.DB, productID uint) error {
	name := s.productName(tx, productID)

	var subs []BackInStockSubscription
	if err := tx.Where("product_id = ? AND notified = ?", productID, false).Find(&subs).Error; err != nil {
		return fmt.Errorf("failed to load subscriptions: %w", err)
	}
	for i := range subs {
		subject := fmt.Sprintf("%s is back in stock", name)
		body := fmt.Sprintf("Good news: %s is available again at %s.", name, s.config.App.SiteURL)
		if err := s.notifications.Enqueue(tx, notification.KindBackInStock, subs[i].Email, subject, body); err != nil {
			return err
		}
		if err := tx.Model(&subs[i]).Update("notified", true).Error; err != nil {
			return fmt.Errorf("failed to mark subscription notified: %w", err)
		}
	}

	var preorders []PreOrder
	if err := tx.Where("product_id = ? AND notified = ?", productID, false).Find(&preorders).Error; err != nil {
		return fmt.Errorf("failed to load pre-orders: %w", err)
	}
	for i := range preorders {
		subject := fmt.Sprintf("Your pre-order for %s is ready", name)
		body := fmt.Sprintf("%s is now in stock. You can complete your order of %d unit(s) at %s.", name, preorders[i].Quantity, s.config.App.SiteURL)
		if err := s.notifications.Enqueue(tx, notification.KindPreOrderAvailable, preorders[i].Email, subject, body); err != nil {
			return err
		}
		if err := tx.Model(&preorders[i]).Update("notified", true).Error; err != nil {
			return fmt.Errorf("failed to mark pre-order notified: %w", err)
		}
	}

	return nil
}

func (s *Service) productName(tx *gorm.DB, productID uint) string {
	var prod catalog.Product
	if err := tx.Select("name").First(&prod, productID).Error; err != nil {
		return fmt.Sprintf("product #%d", productID)
	}
	return prod.Name
}

// SubscribeRequest registers interest in a back-in-stock notification
type SubscribeRequest struct {
	ProductID uint   `json:"product_id" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
}

// SubscribeBackInStock registers an email for a one-shot availability
// notification. Repeat subscriptions are a no-op.
func (s *Service) SubscribeBackInStock(req *SubscribeRequest) error {
	sub := &BackInStockSubscription{
		ProductID: req.ProductID,
		Email:     req.Email,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "email"}},
		DoNothing: true,
	}).Create(sub).Error
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// PreOrderRequest registers a pre-order for an out-of-stock product
type PreOrderRequest struct {
	ProductID uint   `json:"product_id" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// CreatePreOrder records a pre-order
func (s *Service) CreatePreOrder(req *PreOrderRequest) (*PreOrder, error) {
	pre := &PreOrder{
		ProductID: req.ProductID,
		Email:     req.Email,
		Quantity:  req.Quantity,
	}
	if err := s.db.Create(pre).Error; err != nil {
		return nil, fmt.Errorf("failed to create pre-order: %w", err)
	}
	return pre, nil
}

// AlertListRequest represents alert list query parameters (staff surface)
type AlertListRequest struct {
	Page     int   `form:"page,default=1"`
	Limit    int   `form:"limit,default=20"`
	Resolved *bool `form:"resolved"`
}

// ListAlerts retrieves stock alerts for the staff surface
func (s *Service) ListAlerts(req *AlertListRequest) ([]StockAlert, int64, error) {
	var alerts []StockAlert
	var total int64

	query := s.db.Model(&StockAlert{})
	if req.Resolved != nil {
		query = query.Where("resolved = ?", *req.Resolved)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 20
	}

	offset := (req.Page - 1) * req.Limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(req.Limit).Find(&alerts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to retrieve alerts: %w", err)
	}

	return alerts, total, nil
}

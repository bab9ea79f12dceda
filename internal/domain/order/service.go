// internal/domain/order/service.go
package order

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/your-org/storefront-backend/internal/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when an order does not exist
	ErrNotFound = errors.New("order not found")
	// ErrInvalidTransition is returned for a disallowed status change
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Service manages order records and their status machine. Creation and
// transitions run inside a caller-supplied transaction so the checkout
// and webhook pipelines stay atomic.
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new order service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// GenerateOrderNumber creates a unique order number like ORD-20260831-48151
func GenerateOrderNumber() string {
	n, err := rand.Int(rand.Reader, big.NewInt(100000))
	if err != nil {
		n = big.NewInt(time.Now().UnixNano() % 100000)
	}
	return fmt.Sprintf("ORD-%s-%05d", time.Now().Format("20060102"), n.Int64())
}

// Create persists a new pending order with its lines using the caller's
// transaction.
func (s *Service) Create(tx *gorm.DB, o *Order) error {
	if o.OrderNumber == "" {
		o.OrderNumber = GenerateOrderNumber()
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	if err := tx.Create(o).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// LockByID loads an order with a row lock inside the caller's transaction
func (s *Service) LockByID(tx *gorm.DB, id uint) (*Order, error) {
	var o Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	return &o, nil
}

// LockByNumber loads an order by order number with a row lock
func (s *Service) LockByNumber(tx *gorm.DB, number string) (*Order, error) {
	var o Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_number = ?", number).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	return &o, nil
}

// MarkPaid transitions a pending order to paid
func (s *Service) MarkPaid(tx *gorm.DB, o *Order, gatewayRef string) error {
	if !o.CanTransitionTo(StatusPaid) {
		return ErrInvalidTransition
	}
	now := time.Now()
	updates := map[string]interface{}{
		"status":  StatusPaid,
		"paid_at": &now,
	}
	if gatewayRef != "" {
		updates["payment_reference"] = gatewayRef
	}
	if err := tx.Model(o).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}
	o.Status = StatusPaid
	o.PaidAt = &now
	return nil
}

// MarkFailed transitions a pending order to failed
func (s *Service) MarkFailed(tx *gorm.DB, o *Order, reason string) error {
	if !o.CanTransitionTo(StatusFailed) {
		return ErrInvalidTransition
	}
	updates := map[string]interface{}{
		"status":         StatusFailed,
		"failure_reason": reason,
	}
	if err := tx.Model(o).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to mark order failed: %w", err)
	}
	o.Status = StatusFailed
	o.FailureReason = reason
	return nil
}

// MarkRefunded transitions a pending or paid order to refunded
func (s *Service) MarkRefunded(tx *gorm.DB, o *Order) error {
	if !o.CanTransitionTo(StatusRefunded) {
		return ErrInvalidTransition
	}
	now := time.Now()
	updates := map[string]interface{}{
		"status":      StatusRefunded,
		"refunded_at": &now,
	}
	if err := tx.Model(o).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to mark order refunded: %w", err)
	}
	o.Status = StatusRefunded
	o.RefundedAt = &now
	return nil
}

// GetByID retrieves an order with its lines
func (s *Service) GetByID(id uint) (*Order, error) {
	var o Order
	err := s.db.Preload("Lines").First(&o, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	return &o, nil
}

// GetByNumber retrieves an order by order number with its lines
func (s *Service) GetByNumber(number string) (*Order, error) {
	var o Order
	err := s.db.Preload("Lines").Where("order_number = ?", number).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	return &o, nil
}

// GetForUser retrieves an order owned by the given user
func (s *Service) GetForUser(userID, orderID uint) (*Order, error) {
	var o Order
	err := s.db.Preload("Lines").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	return &o, nil
}

// ListRequest represents order list query parameters
type ListRequest struct {
	Page   int    `form:"page,default=1"`
	Limit  int    `form:"limit,default=20"`
	Status string `form:"status"`
}

// ListForUser retrieves a user's order history, newest first
func (s *Service) ListForUser(userID uint, req *ListRequest) ([]Order, int64, error) {
	return s.list(s.db.Where("user_id = ?", userID), req)
}

// List retrieves orders for the staff surface
func (s *Service) List(req *ListRequest) ([]Order, int64, error) {
	return s.list(s.db, req)
}

func (s *Service) list(scope *gorm.DB, req *ListRequest) ([]Order, int64, error) {
	var orders []Order
	var total int64

	query := scope.Model(&Order{})
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 20
	}

	offset := (req.Page - 1) * req.Limit
	err := query.Preload("Lines").
		Order("created_at DESC").
		Offset(offset).
		Limit(req.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to retrieve orders: %w", err)
	}

	return orders, total, nil
}

// internal/domain/coupon/service.go
package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/your-org/storefront-backend/internal/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service validates, quotes and redeems coupons. An applied-but-not-yet
// redeemed code is pinned to the cart owner in Redis so it survives
// until checkout.
type Service struct {
	db          *gorm.DB
	redisClient *redis.Client
	config      *config.Config
}

// NewService creates a new coupon service
func NewService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *Service {
	return &Service{
		db:          db,
		redisClient: redisClient,
		config:      cfg,
	}
}

func appliedKey(actor Actor) string {
	return fmt.Sprintf("cart:coupon:%s", actor.Key())
}

// Validate checks a code against the actor and cart subtotal, returning
// the coupon or a RejectionError naming the first failed rule.
func (s *Service) Validate(code string, actor Actor, subtotal int64) (*Coupon, error) {
	return s.validate(s.db, code, actor, subtotal, false)
}

func (s *Service) validate(db *gorm.DB, code string, actor Actor, subtotal int64, forUpdate bool) (*Coupon, error) {
	normalized := NormalizeCode(code)

	var c Coupon
	query := db.Where("code = ?", normalized)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := query.First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &RejectionError{Code: normalized, Reason: ReasonUnknown}
		}
		return nil, fmt.Errorf("failed to look up coupon: %w", err)
	}

	now := time.Now()
	switch {
	case !c.IsActive:
		return nil, &RejectionError{Code: normalized, Reason: ReasonInactive}
	case now.Before(c.StartsAt):
		return nil, &RejectionError{Code: normalized, Reason: ReasonNotYetValid}
	case c.EndsAt != nil && now.After(*c.EndsAt):
		return nil, &RejectionError{Code: normalized, Reason: ReasonExpired}
	case c.MaxUses != nil && c.UsedCount >= *c.MaxUses:
		return nil, &RejectionError{Code: normalized, Reason: ReasonExhausted}
	case subtotal < c.MinPurchaseAmount:
		return nil, &RejectionError{Code: normalized, Reason: ReasonBelowMinimum}
	}

	var allowed int64
	if err := db.Model(&CouponAllowedUser{}).Where("coupon_id = ?", c.ID).Count(&allowed).Error; err != nil {
		return nil, fmt.Errorf("failed to check coupon allow list: %w", err)
	}
	if allowed > 0 {
		if actor.UserID == nil {
			return nil, &RejectionError{Code: normalized, Reason: ReasonNotAllowedUser}
		}
		var member int64
		err := db.Model(&CouponAllowedUser{}).
			Where("coupon_id = ? AND user_id = ?", c.ID, *actor.UserID).
			Count(&member).Error
		if err != nil {
			return nil, fmt.Errorf("failed to check coupon allow list: %w", err)
		}
		if member == 0 {
			return nil, &RejectionError{Code: normalized, Reason: ReasonNotAllowedUser}
		}
	}

	usage := db.Model(&Redemption{}).Where("coupon_id = ?", c.ID)
	if actor.UserID != nil {
		usage = usage.Where("user_id = ?", *actor.UserID)
	} else {
		usage = usage.Where("session_key = ?", actor.SessionKey)
	}
	var used int64
	if err := usage.Count(&used).Error; err != nil {
		return nil, fmt.Errorf("failed to check coupon usage: %w", err)
	}
	if used >= int64(c.MaxUsesPerUser) {
		return nil, &RejectionError{Code: normalized, Reason: ReasonPerUserExhausted}
	}

	return &c, nil
}

// Quote computes the discount a coupon yields on a subtotal. Percentage
// discounts round down; fixed discounts never exceed the subtotal.
func Quote(c *Coupon, subtotal int64) int64 {
	var discount int64
	switch c.Kind {
	case KindPercentage:
		discount = subtotal * c.Magnitude / 100
	case KindFixed:
		discount = c.Magnitude
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// Apply validates a code and pins it to the actor's cart. Returns the
// coupon and the discount it would currently yield.
func (s *Service) Apply(ctx context.Context, actor Actor, code string, subtotal int64) (*Coupon, int64, error) {
	c, err := s.Validate(code, actor, subtotal)
	if err != nil {
		return nil, 0, err
	}
	ttl := s.config.Cart.SessionTTL
	if err := s.redisClient.Set(ctx, appliedKey(actor), c.Code, ttl).Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to pin applied coupon: %w", err)
	}
	return c, Quote(c, subtotal), nil
}

// Applied returns the code currently pinned to the actor's cart, if any.
func (s *Service) Applied(ctx context.Context, actor Actor) (string, error) {
	code, err := s.redisClient.Get(ctx, appliedKey(actor)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read applied coupon: %w", err)
	}
	return code, nil
}

// RemoveApplied unpins any coupon from the actor's cart
func (s *Service) RemoveApplied(ctx context.Context, actor Actor) error {
	if err := s.redisClient.Del(ctx, appliedKey(actor)).Err(); err != nil {
		return fmt.Errorf("failed to remove applied coupon: %w", err)
	}
	return nil
}

// Redeem consumes a coupon use inside the caller's transaction. The
// coupon row is locked and revalidated so concurrent checkouts cannot
// exceed the use limits.
func (s *Service) Redeem(tx *gorm.DB, code string, actor Actor, subtotal int64, orderID uint) (*Coupon, int64, error) {
	c, err := s.validate(tx, code, actor, subtotal, true)
	if err != nil {
		return nil, 0, err
	}

	discount := Quote(c, subtotal)

	err = tx.Model(c).Update("used_count", gorm.Expr("used_count + 1")).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to increment coupon uses: %w", err)
	}

	redemption := &Redemption{
		CouponID:   c.ID,
		UserID:     actor.UserID,
		SessionKey: actor.SessionKey,
		OrderID:    orderID,
		Discount:   discount,
	}
	if err := tx.Create(redemption).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to record coupon redemption: %w", err)
	}

	return c, discount, nil
}

// CreateRequest represents staff coupon creation data
type CreateRequest struct {
	Code              string     `json:"code" binding:"required"`
	Kind              Kind       `json:"kind" binding:"required,oneof=percentage fixed"`
	Magnitude         int64      `json:"magnitude" binding:"required,min=1"`
	MinPurchaseAmount int64      `json:"min_purchase_amount"`
	MaxUses           *int       `json:"max_uses"`
	MaxUsesPerUser    int        `json:"max_uses_per_user"`
	StartsAt          *time.Time `json:"starts_at"`
	EndsAt            *time.Time `json:"ends_at"`
	AllowedUserIDs    []uint     `json:"allowed_user_ids"`
	AllowedProductIDs []uint     `json:"allowed_product_ids"`
}

// Create creates a coupon (staff surface)
func (s *Service) Create(req *CreateRequest) (*Coupon, error) {
	if req.Kind == KindPercentage && req.Magnitude > 100 {
		return nil, fmt.Errorf("percentage magnitude must not exceed 100")
	}

	startsAt := time.Now()
	if req.StartsAt != nil {
		startsAt = *req.StartsAt
	}
	perUser := req.MaxUsesPerUser
	if perUser <= 0 {
		perUser = 1
	}

	c := &Coupon{
		Code:              NormalizeCode(req.Code),
		Kind:              req.Kind,
		Magnitude:         req.Magnitude,
		MinPurchaseAmount: req.MinPurchaseAmount,
		MaxUses:           req.MaxUses,
		MaxUsesPerUser:    perUser,
		StartsAt:          startsAt,
		EndsAt:            req.EndsAt,
		IsActive:          true,
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(c).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to create coupon: %w", err)
	}
	for _, userID := range req.AllowedUserIDs {
		if err := tx.Create(&CouponAllowedUser{CouponID: c.ID, UserID: userID}).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to attach allowed user: %w", err)
		}
	}
	for _, productID := range req.AllowedProductIDs {
		if err := tx.Create(&CouponAllowedProduct{CouponID: c.ID, ProductID: productID}).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to attach allowed product: %w", err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit coupon: %w", err)
	}
	return c, nil
}

// UpdateRequest represents staff coupon update data
type UpdateRequest struct {
	Magnitude         *int64     `json:"magnitude"`
	MinPurchaseAmount *int64     `json:"min_purchase_amount"`
	MaxUses           *int       `json:"max_uses"`
	MaxUsesPerUser    *int       `json:"max_uses_per_user"`
	EndsAt            *time.Time `json:"ends_at"`
	IsActive          *bool      `json:"is_active"`
}

// Update updates a coupon (staff surface)
func (s *Service) Update(id uint, req *UpdateRequest) (*Coupon, error) {
	var c Coupon
	if err := s.db.First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &RejectionError{Reason: ReasonUnknown}
		}
		return nil, fmt.Errorf("failed to retrieve coupon: %w", err)
	}

	updates := map[string]interface{}{}
	if req.Magnitude != nil {
		updates["magnitude"] = *req.Magnitude
	}
	if req.MinPurchaseAmount != nil {
		updates["min_purchase_amount"] = *req.MinPurchaseAmount
	}
	if req.MaxUses != nil {
		updates["max_uses"] = *req.MaxUses
	}
	if req.MaxUsesPerUser != nil {
		updates["max_uses_per_user"] = *req.MaxUsesPerUser
	}
	if req.EndsAt != nil {
		updates["ends_at"] = *req.EndsAt
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) == 0 {
		return &c, nil
	}
	if err := s.db.Model(&c).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update coupon: %w", err)
	}
	return &c, nil
}

// ListRequest represents coupon list query parameters (staff surface)
type ListRequest struct {
	Page   int   `form:"page,default=1"`
	Limit  int   `form:"limit,default=20"`
	Active *bool `form:"active"`
}

// List retrieves coupons for the staff surface
func (s *Service) List(req *ListRequest) ([]Coupon, int64, error) {
	var coupons []Coupon
	var total int64

	query := s.db.Model(&Coupon{})
	if req.Active != nil {
		query = query.Where("is_active = ?", *req.Active)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count coupons: %w", err)
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 20
	}

	offset := (req.Page - 1) * req.Limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(req.Limit).Find(&coupons).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to retrieve coupons: %w", err)
	}

	return coupons, total, nil
}

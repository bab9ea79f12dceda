// internal/domain/coupon/entity.go
package coupon

import (
	"fmt"
	"strings"
	"time"
)

// Kind discriminates how a coupon's magnitude is interpreted
type Kind string

const (
	KindPercentage Kind = "percentage"
	KindFixed      Kind = "fixed"
)

// Coupon is a discount code. Magnitude is a percent for percentage
// coupons and an amount in cents for fixed coupons.
type Coupon struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Code              string     `gorm:"uniqueIndex;not null;size:50" json:"code"`
	Kind              Kind       `gorm:"not null;size:20" json:"kind"`
	Magnitude         int64      `gorm:"not null" json:"magnitude"`
	MinPurchaseAmount int64      `gorm:"not null;default:0" json:"min_purchase_amount"`
	MaxUses           *int       `json:"max_uses,omitempty"` // nil means unlimited
	MaxUsesPerUser    int        `gorm:"not null;default:1" json:"max_uses_per_user"`
	UsedCount         int        `gorm:"not null;default:0" json:"used_count"`
	StartsAt          time.Time  `gorm:"not null" json:"starts_at"`
	EndsAt            *time.Time `json:"ends_at,omitempty"` // nil means no expiry
	IsActive          bool       `json:"is_active"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName overrides the table name
func (Coupon) TableName() string {
	return "coupons"
}

// NormalizeCode canonicalizes a coupon code for lookup
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CouponAllowedUser restricts a coupon to specific users. A coupon with
// no rows here is open to everyone.
type CouponAllowedUser struct {
	ID       uint `gorm:"primaryKey" json:"id"`
	CouponID uint `gorm:"not null;uniqueIndex:idx_coupon_allowed_user" json:"coupon_id"`
	UserID   uint `gorm:"not null;uniqueIndex:idx_coupon_allowed_user" json:"user_id"`
}

// TableName overrides the table name
func (CouponAllowedUser) TableName() string {
	return "coupon_allowed_users"
}

// CouponAllowedProduct scopes a coupon to specific products. Stored for
// the staff surface; the discount applies to the order total.
type CouponAllowedProduct struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CouponID  uint `gorm:"not null;uniqueIndex:idx_coupon_allowed_product" json:"coupon_id"`
	ProductID uint `gorm:"not null;uniqueIndex:idx_coupon_allowed_product" json:"product_id"`
}

// TableName overrides the table name
func (CouponAllowedProduct) TableName() string {
	return "coupon_allowed_products"
}

// Redemption records a consumed coupon use, tied to the redeeming user
// or anonymous session.
type Redemption struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CouponID   uint      `gorm:"not null;index" json:"coupon_id"`
	UserID     *uint     `gorm:"index" json:"user_id,omitempty"`
	SessionKey string    `gorm:"size:255;index" json:"session_key,omitempty"`
	OrderID    uint      `gorm:"not null" json:"order_id"`
	Discount   int64     `gorm:"not null" json:"discount"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName overrides the table name
func (Redemption) TableName() string {
	return "coupon_redemptions"
}

// Actor identifies who is trying to use a coupon
type Actor struct {
	UserID     *uint
	SessionKey string
}

// Key returns a stable cache key for the actor
func (a Actor) Key() string {
	if a.UserID != nil {
		return fmt.Sprintf("user:%d", *a.UserID)
	}
	return fmt.Sprintf("session:%s", a.SessionKey)
}

// Reason explains why a coupon was rejected
type Reason string

const (
	ReasonUnknown          Reason = "unknown_code"
	ReasonInactive         Reason = "inactive"
	ReasonNotYetValid      Reason = "not_yet_valid"
	ReasonExpired          Reason = "expired"
	ReasonExhausted        Reason = "exhausted"
	ReasonPerUserExhausted Reason = "per_user_exhausted"
	ReasonBelowMinimum     Reason = "below_minimum"
	ReasonNotAllowedUser   Reason = "not_allowed_user"
)

// RejectionError reports a coupon that failed validation
type RejectionError struct {
	Code   string
	Reason Reason
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("coupon %s rejected: %s", e.Code, e.Reason)
}

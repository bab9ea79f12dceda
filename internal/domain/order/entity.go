// internal/domain/order/entity.go
package order

import (
	"time"
)

// Status represents the order payment lifecycle
type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusFailed   Status = "failed"
	StatusRefunded Status = "refunded"
)

// Order represents a placed order. Money fields are cents. The line
// prices are snapshots frozen at checkout.
type Order struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	OrderNumber       string     `gorm:"uniqueIndex;not null;size:50" json:"order_number"`
	UserID            *uint      `gorm:"index" json:"user_id,omitempty"`
	SessionKey        string     `gorm:"size:255;index" json:"session_key,omitempty"`
	Email             string     `gorm:"not null;size:255" json:"email"`
	FullName          string     `gorm:"not null;size:255" json:"full_name"`
	Phone             string     `gorm:"size:50" json:"phone"`
	ShippingAddress   string     `gorm:"type:text;not null" json:"shipping_address"`
	Status            Status     `gorm:"not null;size:20;default:'pending';index" json:"status"`
	PaymentMethod     string     `gorm:"not null;size:20" json:"payment_method"`
	PaymentReference  string     `gorm:"size:255;index" json:"payment_reference,omitempty"`
	CouponCode        string     `gorm:"size:50" json:"coupon_code,omitempty"`
	Subtotal          int64      `gorm:"not null" json:"subtotal"`
	Discount          int64      `gorm:"not null;default:0" json:"discount"`
	Total             int64      `gorm:"not null" json:"total"`
	InventoryReserved bool       `gorm:"not null;default:false" json:"-"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
	RefundedAt        *time.Time `json:"refunded_at,omitempty"`
	FailureReason     string     `gorm:"size:255" json:"failure_reason,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	Lines []OrderLine `gorm:"foreignKey:OrderID" json:"lines,omitempty"`
}

// TableName overrides the table name
func (Order) TableName() string {
	return "orders"
}

// CanTransitionTo reports whether the status machine permits the move
func (o *Order) CanTransitionTo(next Status) bool {
	switch next {
	case StatusPaid, StatusFailed:
		return o.Status == StatusPending
	case StatusRefunded:
		return o.Status == StatusPending || o.Status == StatusPaid
	default:
		return false
	}
}

// OrderLine is one product position on an order
type OrderLine struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"not null;index" json:"order_id"`
	ProductID uint      `gorm:"not null" json:"product_id"`
	Name      string    `gorm:"not null;size:255" json:"name"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	UnitPrice int64     `gorm:"not null" json:"unit_price"`
	LineTotal int64     `gorm:"not null" json:"line_total"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name
func (OrderLine) TableName() string {
	return "order_lines"
}

// internal/domain/notification/entity.go
package notification

import (
	"time"
)

// Status represents the delivery state of a queued notification
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Kind labels what triggered the notification
type Kind string

const (
	KindOrderConfirmation Kind = "order_confirmation"
	KindPaymentFailed     Kind = "payment_failed"
	KindRefundProcessed   Kind = "refund_processed"
	KindLowStockAlert     Kind = "low_stock_alert"
	KindBackInStock       Kind = "back_in_stock"
	KindPreOrderAvailable Kind = "preorder_available"
)

// Notification is a queued outbound email. Rows are written inside the
// transaction of the business event that triggered them and delivered
// asynchronously by the worker.
type Notification struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Kind         Kind       `gorm:"not null;size:50;index" json:"kind"`
	ToEmail      string     `gorm:"not null;size:255" json:"to_email"`
	Subject      string     `gorm:"not null;size:255" json:"subject"`
	Body         string     `gorm:"type:text;not null" json:"body"`
	Status       Status     `gorm:"not null;size:20;default:'pending';index" json:"status"`
	RetryCount   int        `gorm:"default:0" json:"retry_count"`
	MaxRetries   int        `gorm:"default:3" json:"max_retries"`
	ScheduledFor time.Time  `gorm:"not null;index" json:"scheduled_for"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	LastError    string     `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName overrides the table name
func (Notification) TableName() string {
	return "notifications"
}

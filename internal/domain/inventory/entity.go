// internal/domain/inventory/entity.go
package inventory

import (
	"time"
)

// AlertKind classifies a stock alert
type AlertKind string

const (
	AlertLowStock   AlertKind = "low_stock"
	AlertOutOfStock AlertKind = "out_of_stock"
)

// StockLevel tracks on-hand quantity for a product. A missing row is
// treated as zero stock.
type StockLevel struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ProductID         uint      `gorm:"uniqueIndex;not null" json:"product_id"`
	Quantity          int       `gorm:"not null;default:0" json:"quantity"`
	LowStockThreshold int       `gorm:"not null;default:10" json:"low_stock_threshold"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (StockLevel) TableName() string {
	return "stock_levels"
}

// IsLow reports whether the quantity is at or below the threshold
func (s *StockLevel) IsLow() bool {
	return s.Quantity <= s.LowStockThreshold
}

// IsOut reports whether the product is sold out
func (s *StockLevel) IsOut() bool {
	return s.Quantity <= 0
}

// StockAlert records a low or out-of-stock condition. A product carries
// at most one unresolved alert at a time.
type StockAlert struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	ProductID  uint       `gorm:"not null;index" json:"product_id"`
	Kind       AlertKind  `gorm:"not null;size:20" json:"kind"`
	Resolved   bool       `gorm:"not null;default:false;index" json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName overrides the table name
func (StockAlert) TableName() string {
	return "stock_alerts"
}

// BackInStockSubscription registers an email to be told once when a
// sold-out product becomes available again.
type BackInStockSubscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_bis_product_email" json:"product_id"`
	Email     string    `gorm:"not null;size:255;uniqueIndex:idx_bis_product_email" json:"email"`
	Notified  bool      `gorm:"not null;default:false" json:"notified"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (BackInStockSubscription) TableName() string {
	return "back_in_stock_subscriptions"
}

// PreOrder records interest in purchasing a product that is currently
// out of stock.
type PreOrder struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID uint      `gorm:"not null;index" json:"product_id"`
	Email     string    `gorm:"not null;size:255" json:"email"`
	Quantity  int       `gorm:"not null;default:1" json:"quantity"`
	Notified  bool      `gorm:"not null;default:false" json:"notified"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (PreOrder) TableName() string {
	return "pre_orders"
}

// internal/domain/catalog/entity.go
package catalog

import (
	"time"

	"gorm.io/gorm"
)

// Product represents the catalog product entity. The order-lifecycle
// core treats products as read-only: prices are managed by staff
// through the admin surface, never mutated by cart or checkout.
type Product struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	SKU         string         `gorm:"uniqueIndex;not null;size:100" json:"sku"`
	Name        string         `gorm:"not null;size:255" json:"name"`
	Slug        string         `gorm:"uniqueIndex;not null;size:255" json:"slug"`
	Description string         `gorm:"type:text" json:"description"`
	Brand       string         `gorm:"size:100;index" json:"brand"`
	Price       int64          `gorm:"not null" json:"price"` // Price in cents
	SalePrice   *int64         `json:"sale_price,omitempty"`  // Discounted price in cents when on sale
	IsActive    bool           `json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (Product) TableName() string {
	return "products"
}

// EffectivePrice returns the sale price when set and strictly below the
// list price, otherwise the list price.
func (p *Product) EffectivePrice() int64 {
	if p.SalePrice != nil && *p.SalePrice > 0 && *p.SalePrice < p.Price {
		return *p.SalePrice
	}
	return p.Price
}

// IsOnSale reports whether the effective price differs from the list price
func (p *Product) IsOnSale() bool {
	return p.EffectivePrice() != p.Price
}

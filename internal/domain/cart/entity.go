// internal/domain/cart/entity.go
package cart

import (
	"fmt"
	"time"
)

// Identity names a cart owner: an authenticated user or an anonymous
// session, never both.
type Identity struct {
	UserID     *uint
	SessionKey string
}

// UserIdentity returns an identity for an authenticated user
func UserIdentity(userID uint) Identity {
	return Identity{UserID: &userID}
}

// SessionIdentity returns an identity for an anonymous session
func SessionIdentity(key string) Identity {
	return Identity{SessionKey: key}
}

// IsUser reports whether the identity belongs to an authenticated user
func (id Identity) IsUser() bool {
	return id.UserID != nil
}

// Key returns a stable lock/cache key for the identity
func (id Identity) Key() string {
	if id.UserID != nil {
		return fmt.Sprintf("user:%d", *id.UserID)
	}
	return fmt.Sprintf("session:%s", id.SessionKey)
}

// CartItem is a persisted cart line for an authenticated user. UnitPrice
// is a snapshot of the product's effective price, refreshed whenever the
// line is added to or updated.
type CartItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_cart_user_product" json:"user_id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_cart_user_product" json:"product_id"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	UnitPrice int64     `gorm:"not null" json:"unit_price"` // Price snapshot in cents
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (CartItem) TableName() string {
	return "cart_items"
}

// sessionLine is a cart line stored in the Redis session payload
type sessionLine struct {
	ProductID uint   `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// sessionCart is the JSON payload stored per anonymous session
type sessionCart struct {
	Items     []sessionLine `json:"items"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Line is a cart line in the read model handed to callers
type Line struct {
	ProductID uint   `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	LineTotal int64  `json:"line_total"`
}

// Cart is the assembled cart read model
type Cart struct {
	Items     []Line `json:"items"`
	ItemCount int    `json:"item_count"`
	Subtotal  int64  `json:"subtotal"`
}

// IsEmpty reports whether the cart holds no lines
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// internal/domain/cart/service.go
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"github.com/your-org/storefront-backend/internal/pkg/keyedmutex"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInactiveProduct is returned when the product cannot be purchased
	ErrInactiveProduct = errors.New("product is not available")
	// ErrItemNotFound is returned when the cart has no line for the product
	ErrItemNotFound = errors.New("cart item not found")
	// ErrInvalidQuantity is returned for non-positive quantities
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Service handles cart operations for both authenticated users
// (Postgres-backed lines) and anonymous sessions (Redis-backed JSON
// payloads). Operations on one cart are serialized through a per-owner
// mutex.
type Service struct {
	db          *gorm.DB
	redisClient *redis.Client
	config      *config.Config
	catalog     *catalog.Service
	locks       *keyedmutex.KeyedMutex
}

// NewService creates a new cart service
func NewService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, catalogSvc *catalog.Service) *Service {
	return &Service{
		db:          db,
		redisClient: redisClient,
		config:      cfg,
		catalog:     catalogSvc,
		locks:       keyedmutex.New(),
	}
}

func sessionKey(key string) string {
	return fmt.Sprintf("cart:session:%s", key)
}

// Get assembles the cart read model for the identity. An unknown owner
// yields an empty cart, never an error.
func (s *Service) Get(ctx context.Context, id Identity) (*Cart, error) {
	s.locks.Lock(id.Key())
	defer s.locks.Unlock(id.Key())
	return s.load(ctx, id)
}

// AddItemRequest represents an add-to-cart payload
type AddItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,min=1"`
}

// AddItem puts a product in the cart, summing quantities with any
// existing line. The line's unit price snapshot is refreshed to the
// product's current effective price.
func (s *Service) AddItem(ctx context.Context, id Identity, req *AddItemRequest) (*Cart, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	info, err := s.catalog.Lookup(req.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, ErrInactiveProduct
		}
		return nil, err
	}

	s.locks.Lock(id.Key())
	defer s.locks.Unlock(id.Key())

	if id.IsUser() {
		item := CartItem{
			UserID:    *id.UserID,
			ProductID: info.ID,
			Quantity:  req.Quantity,
			UnitPrice: info.EffectivePrice,
		}
		err := s.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity":   gorm.Expr("cart_items.quantity + ?", req.Quantity),
				"unit_price": info.EffectivePrice,
			}),
		}).Create(&item).Error
		if err != nil {
			return nil, fmt.Errorf("failed to add cart item: %w", err)
		}
		return s.load(ctx, id)
	}

	sc, err := s.loadSession(ctx, id.SessionKey)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range sc.Items {
		if sc.Items[i].ProductID == info.ID {
			sc.Items[i].Quantity += req.Quantity
			sc.Items[i].UnitPrice = info.EffectivePrice
			sc.Items[i].Name = info.Name
			found = true
			break
		}
	}
	if !found {
		sc.Items = append(sc.Items, sessionLine{
			ProductID: info.ID,
			Name:      info.Name,
			Quantity:  req.Quantity,
			UnitPrice: info.EffectivePrice,
		})
	}
	if err := s.saveSession(ctx, id.SessionKey, sc); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// UpdateItemRequest represents a quantity update payload
type UpdateItemRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateItem sets the quantity of an existing line and refreshes its
// price snapshot. A quantity of zero or less removes the line.
func (s *Service) UpdateItem(ctx context.Context, id Identity, productID uint, req *UpdateItemRequest) (*Cart, error) {
	if req.Quantity <= 0 {
		return s.RemoveItem(ctx, id, productID)
	}

	info, err := s.catalog.Lookup(productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, ErrInactiveProduct
		}
		return nil, err
	}

	s.locks.Lock(id.Key())
	defer s.locks.Unlock(id.Key())

	if id.IsUser() {
		result := s.db.Model(&CartItem{}).
			Where("user_id = ? AND product_id = ?", *id.UserID, productID).
			Updates(map[string]interface{}{
				"quantity":   req.Quantity,
				"unit_price": info.EffectivePrice,
			})
		if result.Error != nil {
			return nil, fmt.Errorf("failed to update cart item: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, ErrItemNotFound
		}
		return s.load(ctx, id)
	}

	sc, err := s.loadSession(ctx, id.SessionKey)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range sc.Items {
		if sc.Items[i].ProductID == productID {
			sc.Items[i].Quantity = req.Quantity
			sc.Items[i].UnitPrice = info.EffectivePrice
			found = true
			break
		}
	}
	if !found {
		return nil, ErrItemNotFound
	}
	if err := s.saveSession(ctx, id.SessionKey, sc); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// RemoveItem deletes a line from the cart
func (s *Service) RemoveItem(ctx context.Context, id Identity, productID uint) (*Cart, error) {
	s.locks.Lock(id.Key())
	defer s.locks.Unlock(id.Key())

	if id.IsUser() {
		result := s.db.Where("user_id = ? AND product_id = ?", *id.UserID, productID).Delete(&CartItem{})
		if result.Error != nil {
			return nil, fmt.Errorf("failed to remove cart item: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, ErrItemNotFound
		}
		return s.load(ctx, id)
	}

	sc, err := s.loadSession(ctx, id.SessionKey)
	if err != nil {
		return nil, err
	}
	kept := sc.Items[:0]
	found := false
	for _, line := range sc.Items {
		if line.ProductID == productID {
			found = true
			continue
		}
		kept = append(kept, line)
	}
	if !found {
		return nil, ErrItemNotFound
	}
	sc.Items = kept
	if err := s.saveSession(ctx, id.SessionKey, sc); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Clear removes every line from the cart
func (s *Service) Clear(ctx context.Context, id Identity) error {
	s.locks.Lock(id.Key())
	defer s.locks.Unlock(id.Key())
	return s.clearLocked(ctx, id, s.db)
}

// ClearTx removes every line of a user cart using the caller's
// transaction. The caller is expected to hold the cart lock.
func (s *Service) ClearTx(tx *gorm.DB, userID uint) error {
	if err := tx.Where("user_id = ?", userID).Delete(&CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// DropSession deletes a session cart payload without taking the owner
// lock. Intended for callers that hold the lock via Lock.
func (s *Service) DropSession(ctx context.Context, sessionKeyStr string) error {
	if err := s.redisClient.Del(ctx, sessionKey(sessionKeyStr)).Err(); err != nil {
		return fmt.Errorf("failed to drop session cart: %w", err)
	}
	return nil
}

func (s *Service) clearLocked(ctx context.Context, id Identity, db *gorm.DB) error {
	if id.IsUser() {
		return s.ClearTx(db, *id.UserID)
	}
	if err := s.redisClient.Del(ctx, sessionKey(id.SessionKey)).Err(); err != nil {
		return fmt.Errorf("failed to clear session cart: %w", err)
	}
	return nil
}

// Merge folds an anonymous session cart into a user cart, used at
// login. Quantities for the same product sum; the session's price
// snapshot wins because it is the one the shopper last saw. The session
// payload is deleted afterwards.
func (s *Service) Merge(ctx context.Context, sessionKeyStr string, userID uint) error {
	if sessionKeyStr == "" {
		return nil
	}

	user := UserIdentity(userID)
	session := SessionIdentity(sessionKeyStr)

	// lock ordering: session first, then user
	s.locks.Lock(session.Key())
	defer s.locks.Unlock(session.Key())
	s.locks.Lock(user.Key())
	defer s.locks.Unlock(user.Key())

	sc, err := s.loadSession(ctx, sessionKeyStr)
	if err != nil {
		return err
	}
	if len(sc.Items) == 0 {
		return nil
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for _, line := range sc.Items {
		item := CartItem{
			UserID:    userID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity":   gorm.Expr("cart_items.quantity + ?", line.Quantity),
				"unit_price": line.UnitPrice,
			}),
		}).Create(&item).Error
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to merge cart line: %w", err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit cart merge: %w", err)
	}

	if err := s.redisClient.Del(ctx, sessionKey(sessionKeyStr)).Err(); err != nil {
		return fmt.Errorf("failed to drop merged session cart: %w", err)
	}
	return nil
}

// Lock takes the per-owner cart mutex for callers coordinating multi-step
// operations, returning the unlock function.
func (s *Service) Lock(id Identity) func() {
	key := id.Key()
	s.locks.Lock(key)
	return func() { s.locks.Unlock(key) }
}

// Snapshot returns the cart read model without taking the owner lock.
// Intended for callers that hold the lock via Lock.
func (s *Service) Snapshot(ctx context.Context, id Identity) (*Cart, error) {
	return s.load(ctx, id)
}

func (s *Service) load(ctx context.Context, id Identity) (*Cart, error) {
	cart := &Cart{Items: []Line{}}

	if id.IsUser() {
		var items []CartItem
		if err := s.db.Where("user_id = ?", *id.UserID).Order("created_at ASC").Find(&items).Error; err != nil {
			return nil, fmt.Errorf("failed to load cart: %w", err)
		}
		for _, item := range items {
			name := ""
			if info, err := s.catalog.Lookup(item.ProductID); err == nil {
				name = info.Name
			}
			cart.Items = append(cart.Items, Line{
				ProductID: item.ProductID,
				Name:      name,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
				LineTotal: item.UnitPrice * int64(item.Quantity),
			})
		}
	} else {
		sc, err := s.loadSession(ctx, id.SessionKey)
		if err != nil {
			return nil, err
		}
		for _, line := range sc.Items {
			cart.Items = append(cart.Items, Line{
				ProductID: line.ProductID,
				Name:      line.Name,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
				LineTotal: line.UnitPrice * int64(line.Quantity),
			})
		}
	}

	for _, line := range cart.Items {
		cart.ItemCount += line.Quantity
		cart.Subtotal += line.LineTotal
	}
	return cart, nil
}

func (s *Service) loadSession(ctx context.Context, key string) (*sessionCart, error) {
	raw, err := s.redisClient.Get(ctx, sessionKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &sessionCart{}, nil
		}
		return nil, fmt.Errorf("failed to load session cart: %w", err)
	}
	var sc sessionCart
	if err := json.Unmarshal([]byte(raw), &sc); err != nil {
		return nil, fmt.Errorf("failed to decode session cart: %w", err)
	}
	return &sc, nil
}

func (s *Service) saveSession(ctx context.Context, key string, sc *sessionCart) error {
	sc.UpdatedAt = time.Now()
	payload, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("failed to encode session cart: %w", err)
	}
	ttl := s.config.Cart.SessionTTL
	if err := s.redisClient.Set(ctx, sessionKey(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session cart: %w", err)
	}
	return nil
}

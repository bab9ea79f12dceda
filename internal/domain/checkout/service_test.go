package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"github.com/your-org/storefront-backend/internal/domain/coupon"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/domain/notification"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type env struct {
	db        *gorm.DB
	mr        *miniredis.Miniredis
	cfg       *config.Config
	carts     *cart.Service
	coupons   *coupon.Service
	inventory *inventory.Service
	orders    *order.Service
	checkout  *Service
}

func setupEnv(t *testing.T) *env {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&catalog.Product{},
		&cart.CartItem{},
		&coupon.Coupon{},
		&coupon.CouponAllowedUser{},
		&coupon.CouponAllowedProduct{},
		&coupon.Redemption{},
		&inventory.StockLevel{},
		&inventory.StockAlert{},
		&inventory.BackInStockSubscription{},
		&inventory.PreOrder{},
		&order.Order{},
		&order.OrderLine{},
		&notification.Notification{},
	))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &config.Config{}
	cfg.Cart.SessionTTL = 24 * time.Hour
	cfg.Inventory.LowStockThresholdDefault = 10
	cfg.Notification.MaxRetries = 3
	cfg.Email.FromEmail = "shop@example.com"

	notifications := notification.NewService(db, cfg)
	inventorySvc := inventory.NewService(db, cfg, notifications)
	catalogSvc := catalog.NewService(db, cfg, inventorySvc)
	carts := cart.NewService(db, client, cfg, catalogSvc)
	coupons := coupon.NewService(db, client, cfg)
	orders := order.NewService(db, cfg)

	return &env{
		db:        db,
		mr:        mr,
		cfg:       cfg,
		carts:     carts,
		coupons:   coupons,
		inventory: inventorySvc,
		orders:    orders,
		checkout:  NewService(db, cfg, carts, catalogSvc, coupons, inventorySvc, orders, notifications),
	}
}

func (e *env) seedProduct(t *testing.T, id uint, price int64, stock int) {
	t.Helper()
	require.NoError(t, e.db.Create(&catalog.Product{
		ID:       id,
		SKU:      "SKU-" + t.Name() + string(rune('A'+id)),
		Name:     "Matte Finish 5L",
		Slug:     t.Name() + "-" + string(rune('a'+id)),
		Price:    price,
		IsActive: true,
	}).Error)
	require.NoError(t, e.db.Create(&inventory.StockLevel{ProductID: id, Quantity: stock, LowStockThreshold: 2}).Error)
}

func checkoutRequest() *Request {
	return &Request{
		Email:           "buyer@example.com",
		FullName:        "Ada Buyer",
		ShippingAddress: "1 Test Lane",
		PaymentMethod:   "stripe",
	}
}

func TestPlaceOrderHappyPath(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedProduct(t, 1, 2000, 10)
	e.seedProduct(t, 2, 900, 10)

	require.NoError(t, e.db.Create(&coupon.Coupon{
		Code:           "SAVE10",
		Kind:           coupon.KindPercentage,
		Magnitude:      10,
		StartsAt:       time.Now().Add(-time.Hour),
		MaxUsesPerUser: 1,
		IsActive:       true,
	}).Error)

	id := cart.SessionIdentity("sess-checkout")
	actor := coupon.Actor{SessionKey: "sess-checkout"}

	_, err := e.carts.AddItem(ctx, id, &cart.AddItemRequest{ProductID: 1, Quantity: 2})
	require.NoError(t, err)
	_, err = e.carts.AddItem(ctx, id, &cart.AddItemRequest{ProductID: 2, Quantity: 3})
	require.NoError(t, err)
	_, _, err = e.coupons.Apply(ctx, actor, "SAVE10", 6700)
	require.NoError(t, err)

	o, err := e.checkout.PlaceOrder(ctx, id, checkoutRequest())
	require.NoError(t, err)

	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, int64(6700), o.Subtotal)
	assert.Equal(t, int64(670), o.Discount)
	assert.Equal(t, int64(6030), o.Total)
	assert.Equal(t, "SAVE10", o.CouponCode)
	assert.True(t, o.InventoryReserved)
	require.Len(t, o.Lines, 2)

	// stock reserved
	qty, err := e.inventory.Available(1)
	require.NoError(t, err)
	assert.Equal(t, 8, qty)

	// coupon consumed and recorded against the order
	var c coupon.Coupon
	require.NoError(t, e.db.Where("code = ?", "SAVE10").First(&c).Error)
	assert.Equal(t, 1, c.UsedCount)
	var redemption coupon.Redemption
	require.NoError(t, e.db.First(&redemption).Error)
	assert.Equal(t, o.ID, redemption.OrderID)

	// cart and pinned coupon are gone
	got, err := e.carts.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
	code, err := e.coupons.Applied(ctx, actor)
	require.NoError(t, err)
	assert.Empty(t, code)

	// confirmation queued
	var queued int64
	require.NoError(t, e.db.Model(&notification.Notification{}).
		Where("kind = ?", notification.KindOrderConfirmation).Count(&queued).Error)
	assert.Equal(t, int64(1), queued)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	e := setupEnv(t)
	_, err := e.checkout.PlaceOrder(context.Background(), cart.SessionIdentity("empty"), checkoutRequest())
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestPlaceOrderInsufficientStockRollsBack(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedProduct(t, 1, 2000, 1)

	id := cart.UserIdentity(4)
	_, err := e.carts.AddItem(ctx, id, &cart.AddItemRequest{ProductID: 1, Quantity: 5})
	require.NoError(t, err)

	_, err = e.checkout.PlaceOrder(ctx, id, checkoutRequest())
	assert.ErrorIs(t, err, inventory.ErrInsufficient)

	// nothing committed
	var orders int64
	require.NoError(t, e.db.Model(&order.Order{}).Count(&orders).Error)
	assert.Equal(t, int64(0), orders)

	qty, err := e.inventory.Available(1)
	require.NoError(t, err)
	assert.Equal(t, 1, qty)

	// the cart survives for the shopper to fix
	got, err := e.carts.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5, got.ItemCount)
}

func TestPlaceOrderStrictPrice(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.cfg.Checkout.StrictPrice = true
	e.seedProduct(t, 1, 2000, 10)

	id := cart.UserIdentity(5)
	_, err := e.carts.AddItem(ctx, id, &cart.AddItemRequest{ProductID: 1, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, e.db.Model(&catalog.Product{}).Where("id = ?", 1).Update("price", 2500).Error)

	_, err = e.checkout.PlaceOrder(ctx, id, checkoutRequest())
	assert.ErrorIs(t, err, ErrPriceChanged)
}

func TestPlaceOrderRepricesWhenNotStrict(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedProduct(t, 1, 2000, 10)

	id := cart.UserIdentity(6)
	_, err := e.carts.AddItem(ctx, id, &cart.AddItemRequest{ProductID: 1, Quantity: 2})
	require.NoError(t, err)

	require.NoError(t, e.db.Model(&catalog.Product{}).Where("id = ?", 1).Update("price", 1500).Error)

	o, err := e.checkout.PlaceOrder(ctx, id, checkoutRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(3000), o.Subtotal)
	assert.Equal(t, int64(1500), o.Lines[0].UnitPrice)
}

func TestPlaceOrderCouponExhaustedAtCheckout(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.seedProduct(t, 1, 2000, 10)

	maxOne := 1
	require.NoError(t, e.db.Create(&coupon.Coupon{
		Code:           "LAST1",
		Kind:           coupon.KindFixed,
		Magnitude:      500,
		StartsAt:       time.Now().Add(-time.Hour),
		MaxUses:        &maxOne,
		MaxUsesPerUser: 1,
		IsActive:       true,
	}).Error)

	id := cart.SessionIdentity("sess-late")
	actor := coupon.Actor{SessionKey: "sess-late"}

	_, err := e.carts.AddItem(ctx, id, &cart.AddItemRequest{ProductID: 1, Quantity: 1})
	require.NoError(t, err)
	_, _, err = e.coupons.Apply(ctx, actor, "LAST1", 2000)
	require.NoError(t, err)

	// someone else burns the last use between apply and checkout
	require.NoError(t, e.db.Model(&coupon.Coupon{}).Where("code = ?", "LAST1").Update("used_count", 1).Error)

	_, err = e.checkout.PlaceOrder(ctx, id, checkoutRequest())
	var rej *coupon.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, coupon.ReasonExhausted, rej.Reason)

	var orders int64
	require.NoError(t, e.db.Model(&order.Order{}).Count(&orders).Error)
	assert.Equal(t, int64(0), orders)
}

package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/domain/notification"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type env struct {
	db        *gorm.DB
	inventory *inventory.Service
	orders    *order.Service
	payments  *Service
}

func setupEnv(t *testing.T) *env {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&catalog.Product{},
		&inventory.StockLevel{},
		&inventory.StockAlert{},
		&inventory.BackInStockSubscription{},
		&inventory.PreOrder{},
		&order.Order{},
		&order.OrderLine{},
		&notification.Notification{},
	))

	cfg := &config.Config{}
	cfg.Inventory.LowStockThresholdDefault = 5
	cfg.Notification.MaxRetries = 3
	cfg.Email.FromEmail = "shop@example.com"

	notifications := notification.NewService(db, cfg)
	inventorySvc := inventory.NewService(db, cfg, notifications)
	orders := order.NewService(db, cfg)

	return &env{
		db:        db,
		inventory: inventorySvc,
		orders:    orders,
		payments:  NewService(db, cfg, orders, inventorySvc, notifications),
	}
}

func (e *env) seedOrder(t *testing.T, total int64, qty int) *order.Order {
	t.Helper()
	require.NoError(t, e.db.Create(&catalog.Product{
		ID: 1, SKU: "SKU-" + t.Name(), Name: "Semi-Gloss 5L", Slug: "semi-gloss-" + t.Name(),
		Price: total, IsActive: true,
	}).Error)
	// stock after the checkout reservation already took qty units
	require.NoError(t, e.db.Create(&inventory.StockLevel{ProductID: 1, Quantity: 20, LowStockThreshold: 2}).Error)

	o := &order.Order{
		Email:             "buyer@example.com",
		FullName:          "Ada Buyer",
		ShippingAddress:   "1 Test Lane",
		PaymentMethod:     "stripe",
		Subtotal:          total,
		Total:             total,
		InventoryReserved: true,
		Lines: []order.OrderLine{
			{ProductID: 1, Name: "Semi-Gloss 5L", Quantity: qty, UnitPrice: total / int64(qty), LineTotal: total},
		},
	}
	tx := e.db.Begin()
	require.NoError(t, e.orders.Create(tx, o))
	require.NoError(t, tx.Commit().Error)
	return o
}

func (e *env) notificationCount(t *testing.T, kind notification.Kind) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&notification.Notification{}).Where("kind = ?", kind).Count(&n).Error)
	return n
}

func TestApplySuccessIsIdempotent(t *testing.T) {
	e := setupEnv(t)
	o := e.seedOrder(t, 6030, 2)

	ev := &Event{Gateway: "stripe", Kind: EventPaymentSucceeded, EventID: "evt_1", OrderID: o.ID, GatewayRef: "pi_42", Amount: 6030}
	require.NoError(t, e.payments.Apply(ev))

	got, err := e.orders.GetByID(o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, got.Status)
	assert.Equal(t, "pi_42", got.PaymentReference)
	assert.Equal(t, int64(1), e.notificationCount(t, notification.KindOrderConfirmation))

	// replayed delivery changes nothing
	require.NoError(t, e.payments.Apply(ev))
	got, err = e.orders.GetByID(o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, got.Status)
	assert.Equal(t, int64(1), e.notificationCount(t, notification.KindOrderConfirmation))
}

func TestApplyFailureReleasesStockOnce(t *testing.T) {
	e := setupEnv(t)
	o := e.seedOrder(t, 4000, 4)

	ev := &Event{Gateway: "stripe", Kind: EventPaymentFailed, EventID: "evt_2", OrderID: o.ID, Reason: "card_declined"}
	require.NoError(t, e.payments.Apply(ev))

	got, err := e.orders.GetByID(o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusFailed, got.Status)
	assert.Equal(t, "card_declined", got.FailureReason)

	qty, err := e.inventory.Available(1)
	require.NoError(t, err)
	assert.Equal(t, 24, qty)
	assert.Equal(t, int64(1), e.notificationCount(t, notification.KindPaymentFailed))

	// replay does not release again
	require.NoError(t, e.payments.Apply(ev))
	qty, err = e.inventory.Available(1)
	require.NoError(t, err)
	assert.Equal(t, 24, qty)
	assert.Equal(t, int64(1), e.notificationCount(t, notification.KindPaymentFailed))
}

func TestApplyRefundAfterPayment(t *testing.T) {
	e := setupEnv(t)
	o := e.seedOrder(t, 4000, 4)

	require.NoError(t, e.payments.Apply(&Event{Gateway: "stripe", Kind: EventPaymentSucceeded, EventID: "evt_3", OrderID: o.ID, GatewayRef: "pi_9"}))
	require.NoError(t, e.payments.Apply(&Event{Gateway: "stripe", Kind: EventRefund, EventID: "evt_4", OrderID: o.ID, GatewayRef: "pi_9"}))

	got, err := e.orders.GetByID(o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusRefunded, got.Status)
	require.NotNil(t, got.RefundedAt)

	qty, err := e.inventory.Available(1)
	require.NoError(t, err)
	assert.Equal(t, 24, qty)
	assert.Equal(t, int64(1), e.notificationCount(t, notification.KindRefundProcessed))

	// a late failure event for a refunded order is acknowledged silently
	require.NoError(t, e.payments.Apply(&Event{Gateway: "stripe", Kind: EventPaymentFailed, EventID: "evt_5", OrderID: o.ID}))
	got, err = e.orders.GetByID(o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusRefunded, got.Status)
}

func TestApplyByOrderNumber(t *testing.T) {
	e := setupEnv(t)
	o := e.seedOrder(t, 2000, 2)

	ev := &Event{Gateway: "paypal", Kind: EventPaymentSucceeded, EventID: "WH-1", OrderNumber: o.OrderNumber, GatewayRef: "cap_1", Amount: 2000}
	require.NoError(t, e.payments.Apply(ev))

	got, err := e.orders.GetByNumber(o.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, got.Status)
}

func TestApplyUnknownOrder(t *testing.T) {
	e := setupEnv(t)
	err := e.payments.Apply(&Event{Gateway: "stripe", Kind: EventPaymentSucceeded, EventID: "evt_9", OrderID: 999})
	assert.ErrorIs(t, err, order.ErrNotFound)
}

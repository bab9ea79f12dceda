package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"github.com/your-org/storefront-backend/internal/domain/notification"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupService(t *testing.T) (*gorm.DB, *Service) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&catalog.Product{},
		&StockLevel{},
		&StockAlert{},
		&BackInStockSubscription{},
		&PreOrder{},
		&notification.Notification{},
	))

	cfg := &config.Config{}
	cfg.Inventory.LowStockThresholdDefault = 10
	cfg.Inventory.AlertEmail = "ops@example.com"
	cfg.Notification.MaxRetries = 3
	cfg.App.SiteURL = "http://localhost:8080"

	return db, NewService(db, cfg, notification.NewService(db, cfg))
}

func seedStock(t *testing.T, db *gorm.DB, productID uint, qty, threshold int) {
	t.Helper()
	require.NoError(t, db.Create(&catalog.Product{
		ID:       productID,
		SKU:      "SKU-" + t.Name(),
		Name:     "Satin Finish 1L",
		Slug:     "satin-finish-1l-" + t.Name(),
		Price:    1900,
		IsActive: true,
	}).Error)
	require.NoError(t, db.Create(&StockLevel{ProductID: productID, Quantity: qty, LowStockThreshold: threshold}).Error)
}

func TestReserve(t *testing.T) {
	db, svc := setupService(t)
	seedStock(t, db, 1, 20, 5)

	tx := db.Begin()
	require.NoError(t, svc.Reserve(tx, 1, 3))
	require.NoError(t, tx.Commit().Error)

	qty, err := svc.Available(1)
	require.NoError(t, err)
	assert.Equal(t, 17, qty)

	tx = db.Begin()
	err = svc.Reserve(tx, 1, 100)
	assert.ErrorIs(t, err, ErrInsufficient)
	tx.Rollback()
}

func TestReserveMissingRowFails(t *testing.T) {
	db, svc := setupService(t)

	tx := db.Begin()
	err := svc.Reserve(tx, 42, 1)
	assert.ErrorIs(t, err, ErrInsufficient)
	tx.Rollback()

	qty, err := svc.Available(42)
	require.NoError(t, err)
	assert.Equal(t, 0, qty)
}

func TestAlertLifecycle(t *testing.T) {
	db, svc := setupService(t)
	seedStock(t, db, 1, 6, 5)

	// 6 -> 4 crosses the threshold and opens a low-stock alert
	tx := db.Begin()
	require.NoError(t, svc.Reserve(tx, 1, 2))
	require.NoError(t, tx.Commit().Error)

	var alerts []StockAlert
	require.NoError(t, db.Find(&alerts).Error)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertLowStock, alerts[0].Kind)
	assert.False(t, alerts[0].Resolved)

	// staying low does not open a second alert
	tx = db.Begin()
	require.NoError(t, svc.Reserve(tx, 1, 1))
	require.NoError(t, tx.Commit().Error)
	require.NoError(t, db.Find(&alerts).Error)
	require.Len(t, alerts, 1)

	// hitting zero resolves the low-stock alert and opens a fresh
	// out-of-stock one, keeping the history intact
	tx = db.Begin()
	require.NoError(t, svc.Reserve(tx, 1, 3))
	require.NoError(t, tx.Commit().Error)
	require.NoError(t, db.Order("id").Find(&alerts).Error)
	require.Len(t, alerts, 2)
	assert.Equal(t, AlertLowStock, alerts[0].Kind)
	assert.True(t, alerts[0].Resolved)
	require.NotNil(t, alerts[0].ResolvedAt)
	assert.Equal(t, AlertOutOfStock, alerts[1].Kind)
	assert.False(t, alerts[1].Resolved)

	// restocking above threshold resolves the open alert
	_, err := svc.Restock(&RestockRequest{ProductID: 1, Quantity: 50})
	require.NoError(t, err)
	require.NoError(t, db.Order("id").Find(&alerts).Error)
	require.Len(t, alerts, 2)
	assert.True(t, alerts[1].Resolved)
	require.NotNil(t, alerts[1].ResolvedAt)

	// each opened alert queued a staff notification
	var queued int64
	require.NoError(t, db.Model(&notification.Notification{}).
		Where("kind = ?", notification.KindLowStockAlert).Count(&queued).Error)
	assert.Equal(t, int64(2), queued)
}

func TestAvailabilityDispatchFiresOnce(t *testing.T) {
	db, svc := setupService(t)
	seedStock(t, db, 1, 0, 5)

	require.NoError(t, svc.SubscribeBackInStock(&SubscribeRequest{ProductID: 1, Email: "fan@example.com"}))
	require.NoError(t, svc.SubscribeBackInStock(&SubscribeRequest{ProductID: 1, Email: "fan@example.com"}))
	_, err := svc.CreatePreOrder(&PreOrderRequest{ProductID: 1, Email: "early@example.com", Quantity: 2})
	require.NoError(t, err)

	var subs int64
	require.NoError(t, db.Model(&BackInStockSubscription{}).Count(&subs).Error)
	assert.Equal(t, int64(1), subs)

	_, err = svc.Restock(&RestockRequest{ProductID: 1, Quantity: 10})
	require.NoError(t, err)

	var backInStock, preorder int64
	require.NoError(t, db.Model(&notification.Notification{}).
		Where("kind = ?", notification.KindBackInStock).Count(&backInStock).Error)
	require.NoError(t, db.Model(&notification.Notification{}).
		Where("kind = ?", notification.KindPreOrderAvailable).Count(&preorder).Error)
	assert.Equal(t, int64(1), backInStock)
	assert.Equal(t, int64(1), preorder)

	// a second zero-crossing does not notify the same rows again
	tx := db.Begin()
	require.NoError(t, svc.Reserve(tx, 1, 10))
	require.NoError(t, tx.Commit().Error)
	_, err = svc.Restock(&RestockRequest{ProductID: 1, Quantity: 10})
	require.NoError(t, err)

	require.NoError(t, db.Model(&notification.Notification{}).
		Where("kind = ?", notification.KindBackInStock).Count(&backInStock).Error)
	assert.Equal(t, int64(1), backInStock)
}

func TestRestockCreatesMissingRow(t *testing.T) {
	db, svc := setupService(t)
	require.NoError(t, db.Create(&catalog.Product{ID: 9, SKU: "SKU-9", Name: "Primer", Slug: "primer-9", Price: 800, IsActive: true}).Error)

	threshold := 3
	level, err := svc.Restock(&RestockRequest{ProductID: 9, Quantity: 25, Threshold: &threshold})
	require.NoError(t, err)
	assert.Equal(t, 25, level.Quantity)
	assert.Equal(t, 3, level.LowStockThreshold)
}

func TestStockLevelFlags(t *testing.T) {
	level := &StockLevel{Quantity: 0, LowStockThreshold: 5}
	assert.True(t, level.IsOut())
	assert.True(t, level.IsLow())

	level.Quantity = 5
	assert.False(t, level.IsOut())
	assert.True(t, level.IsLow())

	level.Quantity = 6
	assert.False(t, level.IsLow())
	assert.False(t, level.IsOut())
}

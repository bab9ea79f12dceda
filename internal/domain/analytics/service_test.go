package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"github.com/your-org/storefront-backend/internal/domain/coupon"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/user"
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
		&user.User{},
		&catalog.Product{},
		&coupon.Redemption{},
		&inventory.StockLevel{},
		&order.Order{},
		&order.OrderLine{},
	))

	return db, NewService(db, &config.Config{})
}

func TestDashboardStats(t *testing.T) {
	db, svc := setupService(t)

	require.NoError(t, db.Create(&catalog.Product{SKU: "A", Name: "A", Slug: "a", Price: 100, IsActive: true}).Error)
	require.NoError(t, db.Create(&inventory.StockLevel{ProductID: 1, Quantity: 0, LowStockThreshold: 5}).Error)

	orders := []order.Order{
		{OrderNumber: "ORD-1", Email: "a@b.c", FullName: "A", ShippingAddress: "x", PaymentMethod: "cod", Status: order.StatusPaid, Subtotal: 4000, Total: 4000},
		{OrderNumber: "ORD-2", Email: "a@b.c", FullName: "A", ShippingAddress: "x", PaymentMethod: "cod", Status: order.StatusPaid, Subtotal: 2000, Total: 2000},
		{OrderNumber: "ORD-3", Email: "a@b.c", FullName: "A", ShippingAddress: "x", PaymentMethod: "cod", Status: order.StatusPending, Subtotal: 999, Total: 999},
	}
	for i := range orders {
		require.NoError(t, db.Create(&orders[i]).Error)
	}

	stats, err := svc.GetDashboardStats()
	require.NoError(t, err)

	assert.Equal(t, int64(6000), stats.TotalRevenue)
	assert.Equal(t, int64(3), stats.TotalOrders)
	assert.Equal(t, int64(2), stats.PaidOrders)
	assert.Equal(t, int64(1), stats.PendingOrders)
	assert.Equal(t, int64(3000), stats.AvgOrderValue)
	assert.Equal(t, int64(1), stats.OutOfStockProducts)
	assert.Equal(t, int64(1), stats.ActiveProducts)
}

func TestTopProducts(t *testing.T) {
	db, svc := setupService(t)

	paid := order.Order{OrderNumber: "ORD-10", Email: "a@b.c", FullName: "A", ShippingAddress: "x", PaymentMethod: "cod", Status: order.StatusPaid, Subtotal: 9000, Total: 9000}
	require.NoError(t, db.Create(&paid).Error)
	pending := order.Order{OrderNumber: "ORD-11", Email: "a@b.c", FullName: "A", ShippingAddress: "x", PaymentMethod: "cod", Status: order.StatusPending, Subtotal: 500, Total: 500}
	require.NoError(t, db.Create(&pending).Error)

	require.NoError(t, db.Create(&order.OrderLine{OrderID: paid.ID, ProductID: 1, Name: "Wall White", Quantity: 3, UnitPrice: 2000, LineTotal: 6000}).Error)
	require.NoError(t, db.Create(&order.OrderLine{OrderID: paid.ID, ProductID: 2, Name: "Trim Blue", Quantity: 1, UnitPrice: 3000, LineTotal: 3000}).Error)
	require.NoError(t, db.Create(&order.OrderLine{OrderID: pending.ID, ProductID: 2, Name: "Trim Blue", Quantity: 9, UnitPrice: 500, LineTotal: 4500}).Error)

	rows, err := svc.GetTopProducts(10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, uint(1), rows[0].ProductID)
	assert.Equal(t, int64(3), rows[0].UnitsSold)
	assert.Equal(t, int64(6000), rows[0].Revenue)
	assert.Equal(t, int64(1), rows[1].UnitsSold)
}

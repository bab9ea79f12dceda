// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"github.com/your-org/storefront-backend/internal/domain/coupon"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/domain/notification"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/user"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db *gorm.DB
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB) *Migration {
	return &Migration{
		db: db,
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	logrus.Info("Running database auto-migrations")

	// Models in dependency order
	models := []interface{}{
		// Base tables
		&user.User{},
		&catalog.Product{},

		// Inventory domain
		&inventory.StockLevel{},
		&inventory.StockAlert{},
		&inventory.BackInStockSubscription{},
		&inventory.PreOrder{},

		// Cart domain
		&cart.CartItem{},

		// Coupon domain
		&coupon.Coupon{},
		&coupon.CouponAllowedUser{},
		&coupon.CouponAllowedProduct{},
		&coupon.Redemption{},

		// Order domain
		&order.Order{},
		&order.OrderLine{},

		// Notification queue
		&notification.Notification{},
	}

	for _, model := range models {
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	logrus.Info("Database auto-migrations completed")
	return nil
}

// CreateIndexes creates additional indexes beyond what the model tags declare
func (m *Migration) CreateIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_users_email_active ON users(email, is_active)",
		"CREATE INDEX IF NOT EXISTS idx_products_brand_active ON products(brand, is_active)",
		"CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_orders_user_status ON orders(user_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_orders_email ON orders(email)",
		"CREATE INDEX IF NOT EXISTS idx_coupon_redemptions_coupon_user ON coupon_redemptions(coupon_id, user_id)",
		"CREATE INDEX IF NOT EXISTS idx_coupon_redemptions_coupon_session ON coupon_redemptions(coupon_id, session_key)",
		"CREATE INDEX IF NOT EXISTS idx_notifications_status_scheduled ON notifications(status, scheduled_for)",
		"CREATE INDEX IF NOT EXISTS idx_stock_alerts_product_resolved ON stock_alerts(product_id, resolved)",
	}

	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			logrus.WithError(err).Warn("Failed to create index")
		}
	}
	return nil
}

// SeedInitialData inserts initial data into the database
func (m *Migration) SeedInitialData() error {
	logrus.Info("Seeding initial data")

	if err := m.seedStaffUser(); err != nil {
		return fmt.Errorf("failed to seed staff user: %w", err)
	}
	if err := m.seedSampleProducts(); err != nil {
		return fmt.Errorf("failed to seed sample products: %w", err)
	}
	if err := m.seedSampleCoupons(); err != nil {
		return fmt.Errorf("failed to seed sample coupons: %w", err)
	}

	return nil
}

func (m *Migration) seedStaffUser() error {
	var existing user.User
	result := m.db.Where("email = ?", "staff@example.com").First(&existing)
	if result.Error == nil {
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("staff123"), 10)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	staff := user.User{
		Email:     "staff@example.com",
		Password:  string(hashedPassword),
		FirstName: "Store",
		LastName:  "Staff",
		IsActive:  true,
		IsStaff:   true,
	}
	if err := m.db.Create(&staff).Error; err != nil {
		return fmt.Errorf("failed to create staff user: %w", err)
	}

	logrus.Info("Created staff user staff@example.com (password: staff123)")
	return nil
}

func (m *Migration) seedSampleProducts() error {
	var count int64
	m.db.Model(&catalog.Product{}).Count(&count)
	if count > 0 {
		return nil
	}

	salePrice := int64(2200)
	samples := []struct {
		product catalog.Product
		stock   int
	}{
		{
			product: catalog.Product{
				SKU:         "PNT-INT-001",
				Name:        "Interior Matte White 5L",
				Slug:        "interior-matte-white-5l",
				Description: "Low-odour matte emulsion for interior walls and ceilings.",
				Brand:       "ColorMax",
				Price:       2500,
				SalePrice:   &salePrice,
				IsActive:    true,
			},
			stock: 120,
		},
		{
			product: catalog.Product{
				SKU:         "PNT-EXT-001",
				Name:        "Exterior Satin Grey 10L",
				Slug:        "exterior-satin-grey-10l",
				Description: "Weather-resistant satin finish for exterior masonry.",
				Brand:       "DuraCoat",
				Price:       6400,
				IsActive:    true,
			},
			stock: 45,
		},
		{
			product: catalog.Product{
				SKU:         "PNT-PRM-001",
				Name:        "Universal Primer 2.5L",
				Slug:        "universal-primer-2-5l",
				Description: "Multi-surface primer for wood, metal and plaster.",
				Brand:       "ColorMax",
				Price:       1800,
				IsActive:    true,
			},
			stock: 8,
		},
	}

	for _, sample := range samples {
		if err := m.db.Create(&sample.product).Error; err != nil {
			return err
		}
		level := inventory.StockLevel{
			ProductID:         sample.product.ID,
			Quantity:          sample.stock,
			LowStockThreshold: 10,
		}
		if err := m.db.Create(&level).Error; err != nil {
			return err
		}
	}

	logrus.WithField("count", len(samples)).Info("Seeded sample products")
	return nil
}

func (m *Migration) seedSampleCoupons() error {
	var count int64
	m.db.Model(&coupon.Coupon{}).Count(&count)
	if count > 0 {
		return nil
	}

	maxUses := 100
	samples := []coupon.Coupon{
		{
			Code:              "WELCOME10",
			Kind:              coupon.KindPercentage,
			Magnitude:         10,
			MinPurchaseAmount: 2000,
			MaxUses:           &maxUses,
			MaxUsesPerUser:    1,
			StartsAt:          time.Now(),
			IsActive:          true,
		},
		{
			Code:           "PAINT500",
			Kind:           coupon.KindFixed,
			Magnitude:      500,
			MaxUsesPerUser: 1,
			StartsAt:       time.Now(),
			IsActive:       true,
		},
	}

	for _, c := range samples {
		if err := m.db.Create(&c).Error; err != nil {
			return err
		}
	}

	logrus.WithField("count", len(samples)).Info("Seeded sample coupons")
	return nil
}

// DropAllTables drops all tables (use with extreme caution)
func (m *Migration) DropAllTables() error {
	logrus.Warn("Dropping all database tables")

	// Reverse dependency order
	tables := []string{
		"notifications",
		"coupon_redemptions",
		"coupon_allowed_products",
		"coupon_allowed_users",
		"coupons",
		"order_lines",
		"orders",
		"cart_items",
		"pre_orders",
		"back_in_stock_subscriptions",
		"stock_alerts",
		"stock_levels",
		"products",
		"users",
	}

	for _, table := range tables {
		if err := m.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)).Error; err != nil {
			logrus.WithError(err).WithField("table", table).Warn("Failed to drop table")
		}
	}
	return nil
}

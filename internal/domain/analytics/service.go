// internal/domain/analytics/service.go
package analytics

import (
	"time"

	"github.com/your-org/storefront-backend/internal/config"
	"gorm.io/gorm"
)

// Service assembles the staff dashboard numbers
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new analytics service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// DashboardStats represents overall dashboard statistics. Money fields
// are cents, counted over paid orders only.
type DashboardStats struct {
	TotalRevenue     int64 `json:"total_revenue"`
	RevenueToday     int64 `json:"revenue_today"`
	RevenueThisMonth int64 `json:"revenue_this_month"`

	TotalOrders    int64 `json:"total_orders"`
	PendingOrders  int64 `json:"pending_orders"`
	PaidOrders     int64 `json:"paid_orders"`
	FailedOrders   int64 `json:"failed_orders"`
	RefundedOrders int64 `json:"refunded_orders"`
	OrdersToday    int64 `json:"orders_today"`

	TotalUsers    int64 `json:"total_users"`
	NewUsersToday int64 `json:"new_users_today"`

	ActiveProducts     int64 `json:"active_products"`
	OutOfStockProducts int64 `json:"out_of_stock_products"`
	LowStockProducts   int64 `json:"low_stock_products"`

	CouponsRedeemed int64 `json:"coupons_redeemed"`
	TotalDiscounted int64 `json:"total_discounted"`

	AvgOrderValue int64 `json:"avg_order_value"`
}

// TopProduct is one row of the best-sellers listing
type TopProduct struct {
	ProductID uint   `json:"product_id"`
	Name      string `json:"name"`
	UnitsSold int64  `json:"units_sold"`
	Revenue   int64  `json:"revenue"`
}

// GetDashboardStats retrieves overall dashboard statistics
func (s *Service) GetDashboardStats() (*DashboardStats, error) {
	stats := &DashboardStats{}
	now := time.Now().UTC()

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	s.db.Raw("SELECT COALESCE(SUM(total), 0) FROM orders WHERE status = 'paid'").Scan(&stats.TotalRevenue)
	s.db.Raw("SELECT COALESCE(SUM(total), 0) FROM orders WHERE status = 'paid' AND created_at >= ?", today).Scan(&stats.RevenueToday)
	s.db.Raw("SELECT COALESCE(SUM(total), 0) FROM orders WHERE status = 'paid' AND created_at >= ?", thisMonth).Scan(&stats.RevenueThisMonth)

	s.db.Raw("SELECT COUNT(*) FROM orders").Scan(&stats.TotalOrders)
	s.db.Raw("SELECT COUNT(*) FROM orders WHERE status = 'pending'").Scan(&stats.PendingOrders)
	s.db.Raw("SELECT COUNT(*) FROM orders WHERE status = 'paid'").Scan(&stats.PaidOrders)
	s.db.Raw("SELECT COUNT(*) FROM orders WHERE status = 'failed'").Scan(&stats.FailedOrders)
	s.db.Raw("SELECT COUNT(*) FROM orders WHERE status = 'refunded'").Scan(&stats.RefundedOrders)
	s.db.Raw("SELECT COUNT(*) FROM orders WHERE created_at >= ?", today).Scan(&stats.OrdersToday)

	s.db.Raw("SELECT COUNT(*) FROM users").Scan(&stats.TotalUsers)
	s.db.Raw("SELECT COUNT(*) FROM users WHERE created_at >= ?", today).Scan(&stats.NewUsersToday)

	s.db.Raw("SELECT COUNT(*) FROM products WHERE is_active = ? AND deleted_at IS NULL", true).Scan(&stats.ActiveProducts)
	s.db.Raw("SELECT COUNT(*) FROM stock_levels WHERE quantity <= 0").Scan(&stats.OutOfStockProducts)
	s.db.Raw("SELECT COUNT(*) FROM stock_levels WHERE quantity > 0 AND quantity <= low_stock_threshold").Scan(&stats.LowStockProducts)

	s.db.Raw("SELECT COUNT(*) FROM redemptions").Scan(&stats.CouponsRedeemed)
	s.db.Raw("SELECT COALESCE(SUM(discount), 0) FROM redemptions").Scan(&stats.TotalDiscounted)

	if stats.PaidOrders > 0 {
		stats.AvgOrderValue = stats.TotalRevenue / stats.PaidOrders
	}

	return stats, nil
}

// GetTopProducts retrieves the best-selling products over paid orders
func (s *Service) GetTopProducts(limit int) ([]TopProduct, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	var rows []TopProduct
	err := s.db.Raw(`
		SELECT ol.product_id, ol.name,
		       SUM(ol.quantity) AS units_sold,
		       SUM(ol.line_total) AS revenue
		FROM order_lines ol
		JOIN orders o ON o.id = ol.order_id
		WHERE o.status = 'paid'
		GROUP BY ol.product_id, ol.name
		ORDER BY units_sold DESC
		LIMIT ?`, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

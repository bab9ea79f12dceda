// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/analytics"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/catalog"
	"github.com/your-org/storefront-backend/internal/domain/checkout"
	"github.com/your-org/storefront-backend/internal/domain/coupon"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/domain/notification"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/payment"
	"github.com/your-org/storefront-backend/internal/domain/user"
	"github.com/your-org/storefront-backend/internal/interfaces/http/handlers"
	"github.com/your-org/storefront-backend/internal/interfaces/http/middleware"
	"github.com/your-org/storefront-backend/internal/pkg/pdf"
	"gorm.io/gorm"
)

// SetupRoutes wires all API routes
func SetupRoutes(router *gin.RouterGroup, db *gorm.DB, redisClient *redis.Client, cfg *config.Config) {
	// Domain services. Construction order follows the dependency
	// chain: notifications feed inventory, inventory feeds catalog
	// stock reads.
	notifications := notification.NewService(db, cfg)
	inventorySvc := inventory.NewService(db, cfg, notifications)
	catalogSvc := catalog.NewService(db, cfg, inventorySvc)
	carts := cart.NewService(db, redisClient, cfg, catalogSvc)
	coupons := coupon.NewService(db, redisClient, cfg)
	orders := order.NewService(db, cfg)
	checkoutSvc := checkout.NewService(db, cfg, carts, catalogSvc, coupons, inventorySvc, orders, notifications)
	payments := payment.NewService(db, cfg, orders, inventorySvc, notifications)
	users := user.NewService(db, cfg)

	authHandler := handlers.NewAuthHandler(users, carts)
	productHandler := handlers.NewProductHandler(catalogSvc, inventorySvc)
	cartHandler := handlers.NewCartHandler(carts, coupons)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutSvc)
	orderHandler := handlers.NewOrderHandler(orders, pdf.NewService(cfg))
	inventoryHandler := handlers.NewInventoryHandler(inventorySvc)
	couponHandler := handlers.NewCouponHandler(coupons)
	notificationHandler := handlers.NewNotificationHandler(notifications)
	webhookHandler := handlers.NewWebhookHandler(payments, cfg)
	analyticsHandler := handlers.NewAnalyticsHandler(analytics.NewService(db, cfg))

	session := middleware.Session(cfg.IsProduction())
	optionalAuth := middleware.OptionalAuthMiddleware(cfg)
	requireAuth := middleware.AuthMiddleware(cfg)
	requireStaff := middleware.StaffMiddleware()

	// Authentication
	auth := router.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", session, authHandler.Login)

		protected := auth.Group("", requireAuth)
		{
			protected.GET("/profile", authHandler.GetProfile)
			protected.PUT("/profile", authHandler.UpdateProfile)
			protected.PUT("/password", authHandler.ChangePassword)
		}
	}

	// Public catalog
	products := router.Group("/products")
	{
		products.GET("", productHandler.ListProducts)
		products.GET("/:id", productHandler.GetProduct)
		products.GET("/:id/stock", productHandler.GetProductStock)
	}

	// Shopping cart: anonymous sessions and authenticated users share
	// the same surface
	cartRoutes := router.Group("/cart", session, optionalAuth)
	{
		cartRoutes.GET("", cartHandler.GetCart)
		cartRoutes.DELETE("", cartHandler.ClearCart)
		cartRoutes.POST("/items", cartHandler.AddItem)
		cartRoutes.PUT("/items/:product_id", cartHandler.UpdateItem)
		cartRoutes.DELETE("/items/:product_id", cartHandler.RemoveItem)
		cartRoutes.POST("/coupon", cartHandler.ApplyCoupon)
		cartRoutes.DELETE("/coupon", cartHandler.RemoveCoupon)
	}

	// Checkout
	router.POST("/checkout", session, optionalAuth, checkoutHandler.PlaceOrder)

	// Order history
	orderRoutes := router.Group("/orders", requireAuth)
	{
		orderRoutes.GET("", orderHandler.ListMyOrders)
		orderRoutes.GET("/:id", orderHandler.GetMyOrder)
		orderRoutes.GET("/:id/receipt", orderHandler.GetMyOrderReceipt)
	}

	// Stock availability signups
	inventoryRoutes := router.Group("/inventory")
	{
		inventoryRoutes.POST("/subscriptions", inventoryHandler.SubscribeBackInStock)
		inventoryRoutes.POST("/preorders", inventoryHandler.CreatePreOrder)
	}

	// Gateway callbacks authenticate with signatures, not sessions
	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/stripe", webhookHandler.Stripe)
		webhooks.POST("/paypal", webhookHandler.PayPal)
	}

	// Staff surface
	admin := router.Group("/admin", requireAuth, requireStaff)
	{
		admin.POST("/products", productHandler.CreateProduct)
		admin.PUT("/products/:id", productHandler.UpdateProduct)

		admin.GET("/orders", orderHandler.ListOrders)
		admin.GET("/orders/:id", orderHandler.GetOrder)
		admin.GET("/orders/:id/receipt", orderHandler.GetOrderReceipt)

		admin.GET("/coupons", couponHandler.ListCoupons)
		admin.POST("/coupons", couponHandler.CreateCoupon)
		admin.PUT("/coupons/:id", couponHandler.UpdateCoupon)

		admin.GET("/inventory/stock/:product_id", inventoryHandler.GetStock)
		admin.POST("/inventory/restock", inventoryHandler.Restock)
		admin.GET("/inventory/alerts", inventoryHandler.ListAlerts)

		admin.GET("/notifications", notificationHandler.ListNotifications)

		admin.GET("/dashboard", analyticsHandler.GetDashboard)
		admin.GET("/dashboard/top-products", analyticsHandler.GetTopProducts)
	}
}

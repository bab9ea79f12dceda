package routes

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
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
	"github.com/your-org/storefront-backend/internal/domain/user"
	"github.com/your-org/storefront-backend/internal/pkg/auth"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testAPI struct {
	router *gin.Engine
	db     *gorm.DB
	cfg    *config.Config
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&user.User{},
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
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.AccessTokenExpiry = time.Hour
	cfg.Security.BcryptCost = 4
	cfg.Cart.SessionTTL = time.Hour
	cfg.Inventory.LowStockThresholdDefault = 5
	cfg.Notification.MaxRetries = 3
	cfg.Email.FromEmail = "shop@example.com"
	cfg.Gateways.StripeWebhookSecret = "whsec_test"

	router := gin.New()
	SetupRoutes(router.Group("/api/v1"), db, client, cfg)

	return &testAPI{router: router, db: db, cfg: cfg}
}

func (a *testAPI) request(t *testing.T, method, path string, payload interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(encoded)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) seedProduct(t *testing.T, name string, price int64, stock int) *catalog.Product {
	t.Helper()
	p := &catalog.Product{SKU: "SKU-" + name, Name: name, Slug: name, Price: price, IsActive: true}
	require.NoError(t, a.db.Create(p).Error)
	require.NoError(t, a.db.Create(&inventory.StockLevel{
		ProductID: p.ID, Quantity: stock, LowStockThreshold: 2,
	}).Error)
	return p
}

func signStripeBody(body []byte, secret string) string {
	ts := time.Now()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestAnonymousCartCheckoutFlow(t *testing.T) {
	api := setupAPI(t)
	p := api.seedProduct(t, "interior-white", 2500, 10)

	require.NoError(t, api.db.Create(&coupon.Coupon{
		Code: "SAVE10", Kind: coupon.KindPercentage, Magnitude: 10,
		MaxUsesPerUser: 1, StartsAt: time.Now().Add(-time.Hour), IsActive: true,
	}).Error)

	session := map[string]string{"Cookie": "cart_session=flow-session"}

	rec := api.request(t, http.MethodPost, "/api/v1/cart/items",
		gin.H{"product_id": p.ID, "quantity": 2}, session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.request(t, http.MethodGet, "/api/v1/cart", nil, session)
	require.Equal(t, http.StatusOK, rec.Code)
	var cartResp struct {
		Data struct {
			Subtotal int64 `json:"subtotal"`
			Total    int64 `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cartResp))
	assert.Equal(t, int64(5000), cartResp.Data.Subtotal)

	rec = api.request(t, http.MethodPost, "/api/v1/cart/coupon",
		gin.H{"code": "SAVE10"}, session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.request(t, http.MethodPost, "/api/v1/checkout", gin.H{
		"email":            "buyer@example.com",
		"full_name":        "Test Buyer",
		"shipping_address": "1 Main St",
		"payment_method":   "cod",
	}, session)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var orderResp struct {
		Data order.Order `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orderResp))
	assert.Equal(t, int64(5000), orderResp.Data.Subtotal)
	assert.Equal(t, int64(500), orderResp.Data.Discount)
	assert.Equal(t, int64(4500), orderResp.Data.Total)
	assert.Equal(t, order.StatusPending, orderResp.Data.Status)

	rec = api.request(t, http.MethodGet, "/api/v1/cart", nil, session)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cartResp))
	assert.Equal(t, int64(0), cartResp.Data.Subtotal)

	var level inventory.StockLevel
	require.NoError(t, api.db.Where("product_id = ?", p.ID).First(&level).Error)
	assert.Equal(t, 8, level.Quantity)
}

func TestCheckoutRejectedCouponReturnsReason(t *testing.T) {
	api := setupAPI(t)
	p := api.seedProduct(t, "primer-grey", 1000, 5)

	session := map[string]string{"Cookie": "cart_session=reject-session"}

	rec := api.request(t, http.MethodPost, "/api/v1/cart/items",
		gin.H{"product_id": p.ID, "quantity": 1}, session)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.request(t, http.MethodPost, "/api/v1/cart/coupon",
		gin.H{"code": "NOPE"}, session)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "reason")
}

func TestStripeWebhookMarksOrderPaid(t *testing.T) {
	api := setupAPI(t)

	o := &order.Order{
		OrderNumber: "ORD-20260831-00001",
		Email:       "buyer@example.com",
		FullName:    "Test Buyer",
		Status:      order.StatusPending,
		Subtotal:    4500, Total: 4500,
		PaymentMethod:     "stripe",
		ShippingAddress:   "1 Main St",
		InventoryReserved: true,
	}
	require.NoError(t, api.db.Create(o).Error)

	body := []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_1", "amount": 4500, "metadata": {"order_id": "%d"}}}
	}`, o.ID))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", signStripeBody(body, "whsec_test"))
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got order.Order
	require.NoError(t, api.db.First(&got, o.ID).Error)
	assert.Equal(t, order.StatusPaid, got.Status)
	assert.Equal(t, "pi_1", got.PaymentReference)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutesRequireStaff(t *testing.T) {
	api := setupAPI(t)

	rec := api.request(t, http.MethodGet, "/api/v1/admin/orders", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	jwtManager := auth.NewJWTManager(api.cfg)

	customerToken, err := jwtManager.GenerateAccessToken(1, "user@example.com", false)
	require.NoError(t, err)
	rec = api.request(t, http.MethodGet, "/api/v1/admin/orders", nil,
		map[string]string{"Authorization": "Bearer " + customerToken})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	staffToken, err := jwtManager.GenerateAccessToken(2, "staff@example.com", true)
	require.NoError(t, err)
	rec = api.request(t, http.MethodGet, "/api/v1/admin/orders", nil,
		map[string]string{"Authorization": "Bearer " + staffToken})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRegisterLoginMergesSessionCart(t *testing.T) {
	api := setupAPI(t)
	p := api.seedProduct(t, "gloss-red", 3000, 10)

	rec := api.request(t, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email":            "merge@example.com",
		"password":         "superSecret1",
		"confirm_password": "superSecret1",
		"first_name":       "Merge",
		"last_name":        "Tester",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	session := map[string]string{"Cookie": "cart_session=merge-session"}
	rec = api.request(t, http.MethodPost, "/api/v1/cart/items",
		gin.H{"product_id": p.ID, "quantity": 3}, session)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.request(t, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    "merge@example.com",
		"password": "superSecret1",
	}, session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var loginResp struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginResp))

	rec = api.request(t, http.MethodGet, "/api/v1/cart", nil,
		map[string]string{"Authorization": "Bearer " + loginResp.Data.AccessToken})
	require.Equal(t, http.StatusOK, rec.Code)

	var cartResp struct {
		Data struct {
			Subtotal int64 `json:"subtotal"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cartResp))
	assert.Equal(t, int64(9000), cartResp.Data.Subtotal)
}

func TestStripeWebhookUnknownOrderAcked(t *testing.T) {
	api := setupAPI(t)

	body := []byte(`{
		"id": "evt_ghost",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_ghost", "amount": 100, "metadata": {"order_id": "999"}}}
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", signStripeBody(body, "whsec_test"))
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "acknowledged")

	// decodable event with no order reference gets the same ack
	body = []byte(`{
		"id": "evt_noref",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_noref", "amount": 100}}
	}`)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", signStripeBody(body, "whsec_test"))
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestCheckoutInactiveProductReturns400(t *testing.T) {
	api := setupAPI(t)
	p := api.seedProduct(t, "discontinued-teal", 2000, 5)

	session := map[string]string{"Cookie": "cart_session=inactive-session"}
	rec := api.request(t, http.MethodPost, "/api/v1/cart/items",
		gin.H{"product_id": p.ID, "quantity": 1}, session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NoError(t, api.db.Model(&catalog.Product{}).
		Where("id = ?", p.ID).Update("is_active", false).Error)

	rec = api.request(t, http.MethodPost, "/api/v1/checkout", gin.H{
		"email":            "buyer@example.com",
		"full_name":        "Test Buyer",
		"shipping_address": "1 Main St",
		"payment_method":   "cod",
	}, session)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestProductStockFlags(t *testing.T) {
	api := setupAPI(t)
	healthy := api.seedProduct(t, "stocked-blue", 1500, 10)
	scarce := api.seedProduct(t, "scarce-green", 1500, 1)

	var stockResp struct {
		Data struct {
			Available int  `json:"available"`
			InStock   bool `json:"in_stock"`
			IsLow     bool `json:"is_low"`
			IsOut     bool `json:"is_out"`
		} `json:"data"`
	}

	rec := api.request(t, http.MethodGet,
		fmt.Sprintf("/api/v1/products/%d/stock", healthy.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stockResp))
	assert.Equal(t, 10, stockResp.Data.Available)
	assert.True(t, stockResp.Data.InStock)
	assert.False(t, stockResp.Data.IsLow)
	assert.False(t, stockResp.Data.IsOut)

	rec = api.request(t, http.MethodGet,
		fmt.Sprintf("/api/v1/products/%d/stock", scarce.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stockResp))
	assert.Equal(t, 1, stockResp.Data.Available)
	assert.True(t, stockResp.Data.InStock)
	assert.True(t, stockResp.Data.IsLow)
	assert.False(t, stockResp.Data.IsOut)
}

package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&User{}))

	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.AccessTokenExpiry = time.Hour
	cfg.Security.BcryptCost = 4 // keep hashing fast in tests

	return NewService(db, cfg)
}

func registration() *RegisterRequest {
	return &RegisterRequest{
		Email:           "Ada@Example.com",
		Password:        "supersecret1",
		ConfirmPassword: "supersecret1",
		FirstName:       "Ada",
		LastName:        "Buyer",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	svc := setupService(t)

	resp, err := svc.Register(registration())
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "ada@example.com", resp.User.Email)
	assert.Empty(t, resp.User.Password)

	_, err = svc.Register(registration())
	assert.ErrorIs(t, err, ErrEmailTaken)

	// duplicate detection is case-insensitive, matching the stored form
	variant := registration()
	variant.Email = "ADA@EXAMPLE.COM"
	_, err = svc.Register(variant)
	assert.ErrorIs(t, err, ErrEmailTaken)

	login, err := svc.Login(&LoginRequest{Email: "ada@example.com", Password: "supersecret1"})
	require.NoError(t, err)
	require.NotNil(t, login.User.LastLoginAt)

	_, err = svc.Login(&LoginRequest{Email: "Ada@Example.com", Password: "supersecret1"})
	require.NoError(t, err)

	_, err = svc.Login(&LoginRequest{Email: "ada@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(&LoginRequest{Email: "nobody@example.com", Password: "supersecret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	svc := setupService(t)

	req := registration()
	req.ConfirmPassword = "different"
	_, err := svc.Register(req)
	assert.Error(t, err)

	req = registration()
	req.Password = "short"
	req.ConfirmPassword = "short"
	_, err = svc.Register(req)
	assert.Error(t, err)
}

func TestChangePassword(t *testing.T) {
	svc := setupService(t)

	resp, err := svc.Register(registration())
	require.NoError(t, err)

	err = svc.ChangePassword(resp.User.ID, "wrong", "newpassword1")
	assert.Error(t, err)

	require.NoError(t, svc.ChangePassword(resp.User.ID, "supersecret1", "newpassword1"))

	_, err = svc.Login(&LoginRequest{Email: "ada@example.com", Password: "newpassword1"})
	require.NoError(t, err)
}

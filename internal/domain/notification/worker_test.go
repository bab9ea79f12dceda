package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/pkg/email"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingSender struct {
	sent []email.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg email.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Notification{}))
	return db
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Notification.MaxRetries = 3
	cfg.Notification.SendTimeout = time.Second
	return cfg
}

func TestEnqueueAndProcess(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	svc := NewService(db, cfg)
	sender := &recordingSender{}
	worker := NewWorker(db, cfg, sender)

	require.NoError(t, svc.Enqueue(db, KindOrderConfirmation, "buyer@example.com", "Order confirmed", "Thanks for your order"))

	n, err := worker.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "buyer@example.com", sender.sent[0].To)

	var row Notification
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, StatusSent, row.Status)
	require.NotNil(t, row.SentAt)
}

func TestEnqueueRollsBackWithTransaction(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, testConfig())

	tx := db.Begin()
	require.NoError(t, svc.Enqueue(tx, KindLowStockAlert, "staff@example.com", "Low stock", "Interior White is low"))
	tx.Rollback()

	var count int64
	require.NoError(t, db.Model(&Notification{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestScheduledNotificationsWait(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	svc := NewService(db, cfg)
	sender := &recordingSender{}
	worker := NewWorker(db, cfg, sender)

	require.NoError(t, svc.EnqueueAt(db, KindBackInStock, "fan@example.com", "Back in stock", "It is back", time.Now().Add(time.Hour)))

	n, err := worker.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, sender.sent)
}

func TestRetryUntilFailed(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	svc := NewService(db, cfg)
	sender := &recordingSender{err: errors.New("smtp down")}
	worker := NewWorker(db, cfg, sender)

	require.NoError(t, svc.Enqueue(db, KindPaymentFailed, "buyer@example.com", "Payment failed", "Please retry"))

	for i := 0; i < 3; i++ {
		_, err := worker.ProcessDue(context.Background())
		require.NoError(t, err)
	}

	var row Notification
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, StatusFailed, row.Status)
	assert.Equal(t, 3, row.RetryCount)
	assert.Contains(t, row.LastError, "smtp down")

	n, err := worker.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// internal/domain/notification/worker.go
package notification

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/pkg/email"
	"github.com/your-org/storefront-backend/internal/pkg/metrics"
	"gorm.io/gorm"
)

// Worker drains the notification queue. It polls for due pending rows,
// sends each through the configured email sender, and records the
// outcome. A send failure increments the retry counter; the row moves
// to failed once retries are exhausted.
type Worker struct {
	db     *gorm.DB
	config *config.Config
	sender email.Sender
	logger *logrus.Entry
}

// NewWorker creates a new notification worker
func NewWorker(db *gorm.DB, cfg *config.Config, sender email.Sender) *Worker {
	return &Worker{
		db:     db,
		config: cfg,
		sender: sender,
		logger: logrus.WithField("component", "notification_worker"),
	}
}

// Run polls the queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	interval := w.config.Notification.PollInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.WithField("interval", interval.String()).Info("Notification worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Notification worker stopped")
			return
		case <-ticker.C:
			if n, err := w.ProcessDue(ctx); err != nil {
				w.logger.WithError(err).Error("Failed to process notification queue")
			} else if n > 0 {
				w.logger.WithField("processed", n).Debug("Processed notifications")
			}
		}
	}
}

// ProcessDue sends every pending notification whose scheduled time has
// passed and returns how many rows it handled.
func (w *Worker) ProcessDue(ctx context.Context) (int, error) {
	var due []Notification
	err := w.db.
		Where("status = ? AND scheduled_for <= ?", StatusPending, time.Now()).
		Order("scheduled_for ASC").
		Limit(50).
		Find(&due).Error
	if err != nil {
		return 0, err
	}

	for i := range due {
		if ctx.Err() != nil {
			return i, ctx.Err()
		}
		w.deliver(ctx, &due[i])
	}

	return len(due), nil
}

func (w *Worker) deliver(ctx context.Context, n *Notification) {
	timeout := w.config.Notification.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sendErr := w.sender.Send(sendCtx, email.Message{
		To:      n.ToEmail,
		Subject: n.Subject,
		Body:    n.Body,
	})

	if sendErr == nil {
		now := time.Now()
		updates := map[string]interface{}{
			"status":  StatusSent,
			"sent_at": &now,
		}
		if err := w.db.Model(n).Updates(updates).Error; err != nil {
			w.logger.WithError(err).WithField("notification_id", n.ID).Error("Failed to mark notification sent")
			return
		}
		metrics.NotificationsSent.WithLabelValues(string(StatusSent)).Inc()
		return
	}

	n.RetryCount++
	updates := map[string]interface{}{
		"retry_count": n.RetryCount,
		"last_error":  sendErr.Error(),
	}
	if n.RetryCount >= n.MaxRetries {
		updates["status"] = StatusFailed
		metrics.NotificationsSent.WithLabelValues(string(StatusFailed)).Inc()
		w.logger.WithError(sendErr).WithFields(logrus.Fields{
			"notification_id": n.ID,
			"retries":         n.RetryCount,
		}).Warn("Notification permanently failed")
	} else {
		w.logger.WithError(sendErr).WithFields(logrus.Fields{
			"notification_id": n.ID,
			"retries":         n.RetryCount,
		}).Debug("Notification send failed, will retry")
	}

	if err := w.db.Model(n).Updates(updates).Error; err != nil {
		w.logger.WithError(err).WithField("notification_id", n.ID).Error("Failed to record notification failure")
	}
}

// internal/domain/notification/service.go
package notification

import (
	"fmt"
	"time"

	"github.com/your-org/storefront-backend/internal/config"
	"gorm.io/gorm"
)

// Service enqueues notifications. Enqueue takes the caller's transaction
// handle so the queue row commits or rolls back together with the
// business event that produced it.
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new notification service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// Enqueue writes a pending notification row using the supplied handle,
// which may be a transaction. Delivery happens out of band.
func (s *Service) Enqueue(tx *gorm.DB, kind Kind, toEmail, subject, body string) error {
	return s.EnqueueAt(tx, kind, toEmail, subject, body, time.Now())
}

// EnqueueAt schedules a notification for delivery no earlier than at.
func (s *Service) EnqueueAt(tx *gorm.DB, kind Kind, toEmail, subject, body string, at time.Time) error {
	n := &Notification{
		Kind:         kind,
		ToEmail:      toEmail,
		Subject:      subject,
		Body:         body,
		Status:       StatusPending,
		MaxRetries:   s.config.Notification.MaxRetries,
		ScheduledFor: at,
	}
	if err := tx.Create(n).Error; err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

// ListRequest represents notification list query parameters (staff surface)
type ListRequest struct {
	Page   int    `form:"page,default=1"`
	Limit  int    `form:"limit,default=20"`
	Status string `form:"status"`
}

// List retrieves queued notifications for the staff surface
func (s *Service) List(req *ListRequest) ([]Notification, int64, error) {
	var rows []Notification
	var total int64

	query := s.db.Model(&Notification{})
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 20
	}

	offset := (req.Page - 1) * req.Limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(req.Limit).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to retrieve notifications: %w", err)
	}

	return rows, total, nil
}

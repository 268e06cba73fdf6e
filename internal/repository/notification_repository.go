package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/madrasati/madrasati-api/internal/models"
)

// NotificationRepository stores stage-wide broadcast messages.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new instance of NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a broadcast.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	const query = `INSERT INTO notifications (id, principal_id, stage, sender_name, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(ctx, query,
		notification.ID, notification.PrincipalID, notification.Stage,
		notification.SenderName, notification.Message, notification.CreatedAt); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListByStage returns the latest broadcasts for one stage, newest first.
func (r *NotificationRepository) ListByStage(ctx context.Context, principalID, stage string, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	const query = `SELECT id, principal_id, stage, sender_name, message, created_at FROM notifications
		WHERE principal_id = $1 AND stage = $2 ORDER BY created_at DESC LIMIT $3`
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, principalID, stage, limit); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

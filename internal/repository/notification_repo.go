package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/muhammaddzaki123/NutripathBack/internal/models"
)

type NotificationRepository struct {
	db DBTX
}

func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	query := `
		INSERT INTO notifications (id, recipient_id, type, title, description, chat_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	return r.db.QueryRow(
		ctx,
		query,
		notification.ID,
		notification.RecipientID,
		notification.Type,
		notification.Title,
		notification.Description,
		notification.ChatID,
	).Scan(&notification.CreatedAt)
}

// FindRecent returns the newest notification of the given type for the
// recipient referencing the conversation, created inside the trailing window.
func (r *NotificationRepository) FindRecent(
	ctx context.Context,
	recipientID string,
	notificationType string,
	chatID string,
	window time.Duration,
) (*models.Notification, error) {
	query := `
		SELECT id, recipient_id, type, title, description, chat_id, created_at
		FROM notifications
		WHERE recipient_id = $1
		  AND type = $2
		  AND chat_id = $3
		  AND created_at > NOW() - make_interval(secs => $4)
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var notification models.Notification
	err := r.db.QueryRow(ctx, query, recipientID, notificationType, chatID, window.Seconds()).Scan(
		&notification.ID,
		&notification.RecipientID,
		&notification.Type,
		&notification.Title,
		&notification.Description,
		&notification.ChatID,
		&notification.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &notification, nil
}

func (r *NotificationRepository) ListForRecipient(
	ctx context.Context,
	recipientID string,
	limit int,
	offset int,
) ([]models.Notification, error) {
	query := `
		SELECT id, recipient_id, type, title, description, chat_id, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, recipientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanNotifications(rows)
}

func scanNotifications(rows pgx.Rows) ([]models.Notification, error) {
	notifications := make([]models.Notification, 0)
	for rows.Next() {
		var notification models.Notification
		if err := rows.Scan(
			&notification.ID,
			&notification.RecipientID,
			&notification.Type,
			&notification.Title,
			&notification.Description,
			&notification.ChatID,
			&notification.CreatedAt,
		); err != nil {
			return nil, err
		}

		notifications = append(notifications, notification)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return notifications, nil
}

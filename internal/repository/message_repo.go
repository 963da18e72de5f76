package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/muhammaddzaki123/NutripathBack/internal/models"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	query := `
		INSERT INTO messages (id, chat_id, sender_role, user_id, nutritionist_id, text, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		RETURNING created_at
	`

	return r.db.QueryRow(
		ctx,
		query,
		message.ID,
		message.ChatID,
		message.SenderRole,
		message.UserID,
		message.NutritionistID,
		message.Text,
	).Scan(&message.CreatedAt)
}

func (r *MessageRepository) GetByID(ctx context.Context, messageID string) (*models.Message, error) {
	query := `
		SELECT id, chat_id, sender_role, user_id, nutritionist_id, text, is_read, created_at
		FROM messages
		WHERE id = $1
	`

	var message models.Message
	err := r.db.QueryRow(ctx, query, messageID).Scan(
		&message.ID,
		&message.ChatID,
		&message.SenderRole,
		&message.UserID,
		&message.NutritionistID,
		&message.Text,
		&message.IsRead,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

// FindRecentDuplicate returns the newest message in the conversation with the
// same sender role and text created inside the trailing window. Used to treat
// a rapid re-submission as a retry of the same logical send.
func (r *MessageRepository) FindRecentDuplicate(
	ctx context.Context,
	chatID string,
	senderRole string,
	text string,
	window time.Duration,
) (*models.Message, error) {
	query := `
		SELECT id, chat_id, sender_role, user_id, nutritionist_id, text, is_read, created_at
		FROM messages
		WHERE chat_id = $1
		  AND sender_role = $2
		  AND text = $3
		  AND created_at > NOW() - make_interval(secs => $4)
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var message models.Message
	err := r.db.QueryRow(ctx, query, chatID, senderRole, text, window.Seconds()).Scan(
		&message.ID,
		&message.ChatID,
		&message.SenderRole,
		&message.UserID,
		&message.NutritionistID,
		&message.Text,
		&message.IsRead,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

func (r *MessageRepository) ListByChat(ctx context.Context, chatID string) ([]models.Message, error) {
	query := `
		SELECT id, chat_id, sender_role, user_id, nutritionist_id, text, is_read, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListForNutritionist returns every message across all of a nutritionist's
// conversations, ordered per conversation. Feeds the bulk-hydration path.
func (r *MessageRepository) ListForNutritionist(
	ctx context.Context,
	nutritionistID string,
) ([]models.Message, error) {
	query := `
		SELECT id, chat_id, sender_role, user_id, nutritionist_id, text, is_read, created_at
		FROM messages
		WHERE nutritionist_id = $1
		ORDER BY chat_id ASC, created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, nutritionistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// MarkRead flips the read flag. Marking an already-read or unknown message is
// a no-op.
func (r *MessageRepository) MarkRead(ctx context.Context, messageID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE messages
		SET is_read = TRUE
		WHERE id = $1
		  AND is_read = FALSE
	`, messageID)
	return err
}

// CountUnread counts messages authored by the opposite role that the viewer
// has not read yet.
func (r *MessageRepository) CountUnread(
	ctx context.Context,
	chatID string,
	viewerRole string,
) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE chat_id = $1
		  AND sender_role <> $2
		  AND is_read = FALSE
	`

	var count int
	if err := r.db.QueryRow(ctx, query, chatID, viewerRole).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

func scanMessages(rows pgx.Rows) ([]models.Message, error) {
	messages := make([]models.Message, 0)
	for rows.Next() {
		var message models.Message
		if err := rows.Scan(
			&message.ID,
			&message.ChatID,
			&message.SenderRole,
			&message.UserID,
			&message.NutritionistID,
			&message.Text,
			&message.IsRead,
			&message.CreatedAt,
		); err != nil {
			return nil, err
		}

		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

package repository

import (
	"context"
	"database/sql"

	"github.com/muhammaddzaki123/NutripathBack/internal/models"
)

type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) CreateOrGet(
	ctx context.Context,
	chatID string,
	userID string,
	nutritionistID string,
) (*models.Conversation, error) {
	query := `
		INSERT INTO conversations (chat_id, user_id, nutritionist_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (chat_id)
		DO UPDATE SET updated_at = conversations.updated_at
		RETURNING chat_id, user_id, nutritionist_id, created_at, updated_at
	`

	var conversation models.Conversation
	err := r.db.QueryRow(ctx, query, chatID, userID, nutritionistID).Scan(
		&conversation.ChatID,
		&conversation.UserID,
		&conversation.NutritionistID,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &conversation, nil
}

func (r *ConversationRepository) GetByChatIDForParticipant(
	ctx context.Context,
	chatID string,
	participantID string,
) (*models.Conversation, error) {
	query := `
		SELECT chat_id, user_id, nutritionist_id, created_at, updated_at
		FROM conversations
		WHERE chat_id = $1 AND (user_id = $2 OR nutritionist_id = $2)
	`

	var conversation models.Conversation
	err := r.db.QueryRow(ctx, query, chatID, participantID).Scan(
		&conversation.ChatID,
		&conversation.UserID,
		&conversation.NutritionistID,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &conversation, nil
}

// ListForParticipant returns the participant's conversations with the latest
// message and the count of messages from the other role still unread.
func (r *ConversationRepository) ListForParticipant(
	ctx context.Context,
	participantID string,
	viewerRole string,
) ([]models.ConversationSummary, error) {
	query := `
		SELECT
			c.chat_id,
			c.user_id,
			c.nutritionist_id,
			c.created_at,
			c.updated_at,
			lm.id,
			lm.sender_role,
			lm.text,
			lm.is_read,
			lm.created_at,
			COALESCE(uc.unread_count, 0)
		FROM conversations c
		LEFT JOIN LATERAL (
			SELECT id, sender_role, text, is_read, created_at
			FROM messages
			WHERE chat_id = c.chat_id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) lm ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM messages
			WHERE chat_id = c.chat_id
			  AND sender_role <> $2
			  AND is_read = FALSE
		) uc ON TRUE
		WHERE c.user_id = $1 OR c.nutritionist_id = $1
		ORDER BY COALESCE(lm.created_at, c.updated_at, c.created_at) DESC, c.chat_id DESC
	`

	rows, err := r.db.Query(ctx, query, participantID, viewerRole)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var summary models.ConversationSummary
		var messageID sql.NullString
		var messageSenderRole sql.NullString
		var messageText sql.NullString
		var messageIsRead sql.NullBool
		var messageCreatedAt sql.NullTime

		if err := rows.Scan(
			&summary.ChatID,
			&summary.UserID,
			&summary.NutritionistID,
			&summary.CreatedAt,
			&summary.UpdatedAt,
			&messageID,
			&messageSenderRole,
			&messageText,
			&messageIsRead,
			&messageCreatedAt,
			&summary.UnreadCount,
		); err != nil {
			return nil, err
		}

		if messageID.Valid {
			summary.LastMessage = &models.Message{
				ID:             messageID.String,
				ChatID:         summary.ChatID,
				SenderRole:     messageSenderRole.String,
				UserID:         summary.UserID,
				NutritionistID: summary.NutritionistID,
				Text:           messageText.String,
				IsRead:         messageIsRead.Bool,
				CreatedAt:      messageCreatedAt.Time,
			}
		}

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

func (r *ConversationRepository) Touch(ctx context.Context, chatID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET updated_at = NOW()
		WHERE chat_id = $1
	`, chatID)
	return err
}

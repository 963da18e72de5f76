package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/muhammaddzaki123/NutripathBack/internal/models"
)

const (
	chatMessageType = "chat_message"

	// A second chat notification for the same recipient and conversation
	// inside this window is skipped; the first one already covers it.
	notificationDedupWindow = 5 * time.Second
)

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	FindRecent(ctx context.Context, recipientID, notificationType, chatID string, window time.Duration) (*models.Notification, error)
	ListForRecipient(ctx context.Context, recipientID string, limit, offset int) ([]models.Notification, error)
}

type NotificationService struct {
	notifications notificationStore
	profiles      profileReader
}

func NewNotificationService(notifications notificationStore, profiles profileReader) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		profiles:      profiles,
	}
}

// NotifyMessage records a notification for the party on the other side of a
// freshly sent message. Recent duplicates for the same recipient and
// conversation are suppressed.
func (s *NotificationService) NotifyMessage(ctx context.Context, message *models.Message) error {
	recipientID := message.RecipientID()

	existing, err := s.notifications.FindRecent(
		ctx,
		recipientID,
		chatMessageType,
		message.ChatID,
		notificationDedupWindow,
	)
	if err == nil && existing != nil {
		return nil
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	senderName := s.senderName(ctx, message)

	notification := &models.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Type:        chatMessageType,
		Title:       fmt.Sprintf("New message from %s (%s)", senderName, message.SenderRole),
		Description: message.Text,
		ChatID:      message.ChatID,
	}
	return s.notifications.Create(ctx, notification)
}

func (s *NotificationService) ListForRecipient(
	ctx context.Context,
	recipientID string,
	limit int,
	offset int,
) ([]models.Notification, error) {
	if limit <= 0 || offset < 0 {
		return nil, ErrInvalidInput
	}
	return s.notifications.ListForRecipient(ctx, recipientID, limit, offset)
}

// senderName resolves the sender's display name, falling back to a generic
// role label when the profile is missing.
func (s *NotificationService) senderName(ctx context.Context, message *models.Message) string {
	profile, err := s.profiles.GetByID(ctx, message.SenderID())
	if err != nil || profile.DisplayName == "" {
		if message.SenderRole == models.RoleNutritionist {
			return "your nutritionist"
		}
		return "a user"
	}
	return profile.DisplayName
}

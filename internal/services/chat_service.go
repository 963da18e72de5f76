package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/muhammaddzaki123/NutripathBack/internal/chatid"
	"github.com/muhammaddzaki123/NutripathBack/internal/models"
	"github.com/muhammaddzaki123/NutripathBack/internal/transcript"
)

const (
	maxMessageLength = 1000

	// A same-text resend from the same role inside this window is treated
	// as a retry of the same logical send, not a new message.
	sendDedupWindow = 3 * time.Second
)

type messageStore interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, messageID string) (*models.Message, error)
	FindRecentDuplicate(ctx context.Context, chatID, senderRole, text string, window time.Duration) (*models.Message, error)
	ListByChat(ctx context.Context, chatID string) ([]models.Message, error)
	ListForNutritionist(ctx context.Context, nutritionistID string) ([]models.Message, error)
	MarkRead(ctx context.Context, messageID string) error
	CountUnread(ctx context.Context, chatID, viewerRole string) (int, error)
}

type conversationStore interface {
	CreateOrGet(ctx context.Context, chatID, userID, nutritionistID string) (*models.Conversation, error)
	GetByChatIDForParticipant(ctx context.Context, chatID, participantID string) (*models.Conversation, error)
	ListForParticipant(ctx context.Context, participantID, viewerRole string) ([]models.ConversationSummary, error)
	Touch(ctx context.Context, chatID string) error
}

type profileReader interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
}

type feedPublisher interface {
	PublishMessageCreated(ctx context.Context, message *models.Message) error
}

type messageNotifier interface {
	NotifyMessage(ctx context.Context, message *models.Message) error
}

type ChatService struct {
	messages      messageStore
	conversations conversationStore
	profiles      profileReader
	feed          feedPublisher
	notifier      messageNotifier
}

func NewChatService(
	messages messageStore,
	conversations conversationStore,
	profiles profileReader,
	feed feedPublisher,
	notifier messageNotifier,
) *ChatService {
	return &ChatService{
		messages:      messages,
		conversations: conversations,
		profiles:      profiles,
		feed:          feed,
		notifier:      notifier,
	}
}

// Send persists one message in the pair's conversation. Re-submissions of the
// same text by the same role inside the dedup window return the already
// persisted message. Feed publication and the notification to the other party
// are side effects of a successful send and never fail it.
func (s *ChatService) Send(
	ctx context.Context,
	senderRole string,
	userID string,
	nutritionistID string,
	text string,
) (*models.Message, error) {
	if senderRole != models.RoleUser && senderRole != models.RoleNutritionist {
		return nil, ErrForbidden
	}

	chatID, err := chatid.Derive(userID, nutritionistID)
	if err != nil {
		return nil, ErrInvalidInput
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrInvalidInput
	}
	if utf8.RuneCountInString(trimmed) > maxMessageLength {
		return nil, ErrMessageTooLong
	}

	if _, err := s.conversations.CreateOrGet(ctx, chatID, userID, nutritionistID); err != nil {
		return nil, err
	}

	existing, err := s.messages.FindRecentDuplicate(ctx, chatID, senderRole, trimmed, sendDedupWindow)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	message := &models.Message{
		ID:             uuid.NewString(),
		ChatID:         chatID,
		SenderRole:     senderRole,
		UserID:         userID,
		NutritionistID: nutritionistID,
		Text:           trimmed,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, err
	}

	if err := s.conversations.Touch(ctx, chatID); err != nil {
		log.Printf("chat: touch conversation %s: %v", chatID, err)
	}
	if err := s.feed.PublishMessageCreated(ctx, message); err != nil {
		log.Printf("chat: publish message %s: %v", message.ID, err)
	}
	if err := s.notifier.NotifyMessage(ctx, message); err != nil {
		log.Printf("chat: notify recipient of %s: %v", message.ID, err)
	}

	return message, nil
}

// Fetch returns the conversation transcript in canonical merged order.
func (s *ChatService) Fetch(ctx context.Context, chatID string) ([]models.Message, error) {
	messages, err := s.messages.ListByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return transcript.Merge(messages), nil
}

// FetchAllConversationsFor hydrates every conversation of a nutritionist at
// once, grouped by conversation key.
func (s *ChatService) FetchAllConversationsFor(
	ctx context.Context,
	nutritionistID string,
) (map[string][]models.Message, error) {
	messages, err := s.messages.ListForNutritionist(ctx, nutritionistID)
	if err != nil {
		return nil, err
	}
	return transcript.Group(messages), nil
}

// MarkRead flips a message's read flag; marking twice is a no-op.
func (s *ChatService) MarkRead(ctx context.Context, messageID string) error {
	return s.messages.MarkRead(ctx, messageID)
}

func (s *ChatService) UnreadCount(ctx context.Context, chatID, viewerRole string) (int, error) {
	if viewerRole != models.RoleUser && viewerRole != models.RoleNutritionist {
		return 0, ErrForbidden
	}
	return s.messages.CountUnread(ctx, chatID, viewerRole)
}

func (s *ChatService) ListConversations(
	ctx context.Context,
	actorID string,
	role string,
) ([]models.ConversationSummary, error) {
	if role != models.RoleUser && role != models.RoleNutritionist {
		return nil, ErrForbidden
	}
	return s.conversations.ListForParticipant(ctx, actorID, role)
}

// OpenConversation creates or returns the conversation between the actor and
// a participant of the opposite role.
func (s *ChatService) OpenConversation(
	ctx context.Context,
	actorID string,
	role string,
	targetID string,
) (*models.Conversation, error) {
	if role != models.RoleUser && role != models.RoleNutritionist {
		return nil, ErrForbidden
	}
	if targetID == "" || targetID == actorID {
		return nil, ErrInvalidInput
	}

	target, err := s.profiles.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if target.Role == role {
		return nil, ErrInvalidInput
	}

	userID, nutritionistID := actorID, targetID
	if role == models.RoleNutritionist {
		userID, nutritionistID = targetID, actorID
	}

	chatID, err := chatid.Derive(userID, nutritionistID)
	if err != nil {
		return nil, ErrInvalidInput
	}

	return s.conversations.CreateOrGet(ctx, chatID, userID, nutritionistID)
}

// ConversationForParticipant authorizes the actor's access to a conversation.
func (s *ChatService) ConversationForParticipant(
	ctx context.Context,
	chatID string,
	actorID string,
) (*models.Conversation, error) {
	conversation, err := s.conversations.GetByChatIDForParticipant(ctx, chatID, actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return conversation, nil
}

// MessageForParticipant returns a message only when the actor belongs to its
// conversation.
func (s *ChatService) MessageForParticipant(
	ctx context.Context,
	messageID string,
	actorID string,
) (*models.Message, error) {
	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if message.UserID != actorID && message.NutritionistID != actorID {
		return nil, ErrForbidden
	}
	return message, nil
}

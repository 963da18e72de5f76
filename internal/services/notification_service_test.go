package services

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/muhammaddzaki123/NutripathBack/internal/models"
)

type stubNotificationStore struct {
	created   []*models.Notification
	recent    *models.Notification
	createErr error
	listed    []models.Notification

	lastRecipient string
	lastType      string
	lastChatID    string
	lastWindow    time.Duration
}

func (s *stubNotificationStore) Create(_ context.Context, notification *models.Notification) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, notification)
	return nil
}

func (s *stubNotificationStore) FindRecent(_ context.Context, recipientID, notificationType, chatID string, window time.Duration) (*models.Notification, error) {
	s.lastRecipient = recipientID
	s.lastType = notificationType
	s.lastChatID = chatID
	s.lastWindow = window
	if s.recent == nil {
		return nil, pgx.ErrNoRows
	}
	return s.recent, nil
}

func (s *stubNotificationStore) ListForRecipient(_ context.Context, _ string, _, _ int) ([]models.Notification, error) {
	return s.listed, nil
}

func buildMessageFromUser() *models.Message {
	return &models.Message{
		ID:             "m1",
		ChatID:         "n1-u1",
		SenderRole:     models.RoleUser,
		UserID:         "u1",
		NutritionistID: "n1",
		Text:           "Halo",
	}
}

func TestNotifyMessageTargetsTheOtherParty(t *testing.T) {
	store := &stubNotificationStore{}
	profiles := &stubProfileReader{profiles: map[string]*models.Profile{
		"u1": {ID: "u1", Role: models.RoleUser, DisplayName: "Dina"},
	}}
	service := NewNotificationService(store, profiles)

	if err := service.NotifyMessage(context.Background(), buildMessageFromUser()); err != nil {
		t.Fatalf("NotifyMessage: %v", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("expected one notification, got %d", len(store.created))
	}
	notification := store.created[0]
	if notification.RecipientID != "n1" {
		t.Errorf("expected recipient n1, got %q", notification.RecipientID)
	}
	if notification.Title != "New message from Dina (user)" {
		t.Errorf("unexpected title %q", notification.Title)
	}
	if notification.Description != "Halo" {
		t.Errorf("expected message text as description, got %q", notification.Description)
	}
	if notification.ChatID != "n1-u1" {
		t.Errorf("expected canonical chat id payload, got %q", notification.ChatID)
	}
}

func TestNotifyMessageSuppressesRecentDuplicate(t *testing.T) {
	store := &stubNotificationStore{
		recent: &models.Notification{ID: "existing", RecipientID: "n1", ChatID: "n1-u1"},
	}
	service := NewNotificationService(store, &stubProfileReader{})

	if err := service.NotifyMessage(context.Background(), buildMessageFromUser()); err != nil {
		t.Fatalf("NotifyMessage: %v", err)
	}

	if len(store.created) != 0 {
		t.Errorf("expected no new notification inside the dedup window")
	}
	if store.lastWindow != notificationDedupWindow {
		t.Errorf("expected %v window, got %v", notificationDedupWindow, store.lastWindow)
	}
}

func TestNotifyMessageFallsBackToRoleLabel(t *testing.T) {
	store := &stubNotificationStore{}
	service := NewNotificationService(store, &stubProfileReader{})

	message := buildMessageFromUser()
	message.SenderRole = models.RoleNutritionist
	if err := service.NotifyMessage(context.Background(), message); err != nil {
		t.Fatalf("NotifyMessage: %v", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("expected one notification, got %d", len(store.created))
	}
	if store.created[0].RecipientID != "u1" {
		t.Errorf("expected recipient u1, got %q", store.created[0].RecipientID)
	}
	if store.created[0].Title != "New message from your nutritionist (nutritionist)" {
		t.Errorf("unexpected fallback title %q", store.created[0].Title)
	}
}

func TestListForRecipientValidatesPaging(t *testing.T) {
	service := NewNotificationService(&stubNotificationStore{}, &stubProfileReader{})

	if _, err := service.ListForRecipient(context.Background(), "u1", 0, 0); err == nil {
		t.Errorf("expected paging validation error")
	}
	if _, err := service.ListForRecipient(context.Background(), "u1", 20, 0); err != nil {
		t.Errorf("expected valid paging to pass, got %v", err)
	}
}

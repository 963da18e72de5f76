package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/muhammaddzaki123/NutripathBack/internal/models"
)

type stubMessageStore struct {
	created        []*models.Message
	duplicate      *models.Message
	duplicateErr   error
	createErr      error
	byID           map[string]*models.Message
	listResult     []models.Message
	listErr        error
	bulkResult     []models.Message
	unreadCount    int
	markedRead     []string
	markReadErr    error
	lastDupChatID  string
	lastDupText    string
	lastDupWindow  time.Duration
	lastUnreadRole string
}

func (s *stubMessageStore) Create(_ context.Context, message *models.Message) error {
	if s.createErr != nil {
		return s.createErr
	}
	message.CreatedAt = time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	s.created = append(s.created, message)
	return nil
}

func (s *stubMessageStore) GetByID(_ context.Context, messageID string) (*models.Message, error) {
	message, ok := s.byID[messageID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return message, nil
}

func (s *stubMessageStore) FindRecentDuplicate(_ context.Context, chatID, _, text string, window time.Duration) (*models.Message, error) {
	s.lastDupChatID = chatID
	s.lastDupText = text
	s.lastDupWindow = window
	if s.duplicateErr != nil {
		return nil, s.duplicateErr
	}
	if s.duplicate == nil {
		return nil, pgx.ErrNoRows
	}
	return s.duplicate, nil
}

func (s *stubMessageStore) ListByChat(_ context.Context, _ string) ([]models.Message, error) {
	return s.listResult, s.listErr
}

func (s *stubMessageStore) ListForNutritionist(_ context.Context, _ string) ([]models.Message, error) {
	return s.bulkResult, s.listErr
}

func (s *stubMessageStore) MarkRead(_ context.Context, messageID string) error {
	if s.markReadErr != nil {
		return s.markReadErr
	}
	s.markedRead = append(s.markedRead, messageID)
	return nil
}

func (s *stubMessageStore) CountUnread(_ context.Context, _, viewerRole string) (int, error) {
	s.lastUnreadRole = viewerRole
	return s.unreadCount, nil
}

type stubConversationStore struct {
	conversations map[string]*models.Conversation
	summaries     []models.ConversationSummary
	touched       []string
}

func (s *stubConversationStore) CreateOrGet(_ context.Context, chatID, userID, nutritionistID string) (*models.Conversation, error) {
	if s.conversations == nil {
		s.conversations = make(map[string]*models.Conversation)
	}
	if existing, ok := s.conversations[chatID]; ok {
		return existing, nil
	}
	conversation := &models.Conversation{ChatID: chatID, UserID: userID, NutritionistID: nutritionistID}
	s.conversations[chatID] = conversation
	return conversation, nil
}

func (s *stubConversationStore) GetByChatIDForParticipant(_ context.Context, chatID, participantID string) (*models.Conversation, error) {
	conversation, ok := s.conversations[chatID]
	if !ok || (conversation.UserID != participantID && conversation.NutritionistID != participantID) {
		return nil, pgx.ErrNoRows
	}
	return conversation, nil
}

func (s *stubConversationStore) ListForParticipant(_ context.Context, _, _ string) ([]models.ConversationSummary, error) {
	return s.summaries, nil
}

func (s *stubConversationStore) Touch(_ context.Context, chatID string) error {
	s.touched = append(s.touched, chatID)
	return nil
}

type stubProfileReader struct {
	profiles map[string]*models.Profile
}

func (s *stubProfileReader) GetByID(_ context.Context, id string) (*models.Profile, error) {
	profile, ok := s.profiles[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return profile, nil
}

type stubFeedPublisher struct {
	published []*models.Message
	err       error
}

func (s *stubFeedPublisher) PublishMessageCreated(_ context.Context, message *models.Message) error {
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, message)
	return nil
}

type stubNotifier struct {
	notified []*models.Message
	err      error
}

func (s *stubNotifier) NotifyMessage(_ context.Context, message *models.Message) error {
	if s.err != nil {
		return s.err
	}
	s.notified = append(s.notified, message)
	return nil
}

func buildChatService(messages *stubMessageStore, conversations *stubConversationStore) (*ChatService, *stubFeedPublisher, *stubNotifier) {
	feed := &stubFeedPublisher{}
	notifier := &stubNotifier{}
	service := NewChatService(messages, conversations, &stubProfileReader{}, feed, notifier)
	return service, feed, notifier
}

func TestSendCreatesMessageUnderCanonicalChatID(t *testing.T) {
	messages := &stubMessageStore{}
	conversations := &stubConversationStore{}
	service, feed, notifier := buildChatService(messages, conversations)

	message, err := service.Send(context.Background(), models.RoleUser, "u1", "n1", "  Halo  ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if message.ChatID != "n1-u1" {
		t.Errorf("expected canonical chat id n1-u1, got %q", message.ChatID)
	}
	if message.Text != "Halo" {
		t.Errorf("expected trimmed text, got %q", message.Text)
	}
	if message.IsRead {
		t.Errorf("expected new message to start unread")
	}
	if len(messages.created) != 1 {
		t.Fatalf("expected one persisted message, got %d", len(messages.created))
	}
	if len(feed.published) != 1 || feed.published[0].ID != message.ID {
		t.Errorf("expected message published on the feed")
	}
	if len(notifier.notified) != 1 || notifier.notified[0].ID != message.ID {
		t.Errorf("expected recipient notified")
	}
	if len(conversations.touched) != 1 {
		t.Errorf("expected conversation touched")
	}
}

func TestSendValidatesText(t *testing.T) {
	messages := &stubMessageStore{}
	service, _, _ := buildChatService(messages, &stubConversationStore{})

	if _, err := service.Send(context.Background(), models.RoleUser, "u1", "n1", "   "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for blank text, got %v", err)
	}

	long := strings.Repeat("a", 1001)
	if _, err := service.Send(context.Background(), models.RoleUser, "u1", "n1", long); !errors.Is(err, ErrMessageTooLong) {
		t.Errorf("expected ErrMessageTooLong for 1001 runes, got %v", err)
	}

	boundary := strings.Repeat("a", 1000)
	if _, err := service.Send(context.Background(), models.RoleUser, "u1", "n1", boundary); err != nil {
		t.Errorf("expected 1000 runes to be accepted, got %v", err)
	}
}

func TestSendRejectsMalformedParticipants(t *testing.T) {
	service, _, _ := buildChatService(&stubMessageStore{}, &stubConversationStore{})

	if _, err := service.Send(context.Background(), models.RoleUser, "", "n1", "Halo"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty user id, got %v", err)
	}
	if _, err := service.Send(context.Background(), "admin", "u1", "n1", "Halo"); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for unknown role, got %v", err)
	}
}

func TestSendReturnsExistingMessageInsideDedupWindow(t *testing.T) {
	existing := &models.Message{
		ID:         "m1",
		ChatID:     "n1-u1",
		SenderRole: models.RoleUser,
		UserID:     "u1",
		Text:       "Halo",
	}
	messages := &stubMessageStore{duplicate: existing}
	service, feed, notifier := buildChatService(messages, &stubConversationStore{})

	message, err := service.Send(context.Background(), models.RoleUser, "u1", "n1", "Halo")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if message.ID != "m1" {
		t.Errorf("expected the existing message back, got %s", message.ID)
	}
	if len(messages.created) != 0 {
		t.Errorf("expected no second persisted message")
	}
	if len(feed.published) != 0 || len(notifier.notified) != 0 {
		t.Errorf("expected no side effects for a suppressed duplicate")
	}
	if messages.lastDupWindow != sendDedupWindow {
		t.Errorf("expected %v dedup window, got %v", sendDedupWindow, messages.lastDupWindow)
	}
}

func TestSendSideEffectFailuresDoNotFailTheSend(t *testing.T) {
	messages := &stubMessageStore{}
	conversations := &stubConversationStore{}
	feed := &stubFeedPublisher{err: errors.New("redis down")}
	notifier := &stubNotifier{err: errors.New("notification store down")}
	service := NewChatService(messages, conversations, &stubProfileReader{}, feed, notifier)

	message, err := service.Send(context.Background(), models.RoleNutritionist, "u1", "n1", "Halo")
	if err != nil {
		t.Fatalf("expected send to succeed despite side-effect failures, got %v", err)
	}
	if message == nil || len(messages.created) != 1 {
		t.Fatalf("expected the message to be persisted")
	}
}

func TestSendPersistFailurePropagates(t *testing.T) {
	messages := &stubMessageStore{createErr: errors.New("insert failed")}
	service, feed, notifier := buildChatService(messages, &stubConversationStore{})

	if _, err := service.Send(context.Background(), models.RoleUser, "u1", "n1", "Halo"); err == nil {
		t.Fatalf("expected persist failure to propagate")
	}
	if len(feed.published) != 0 || len(notifier.notified) != 0 {
		t.Errorf("expected no side effects after a failed persist")
	}
}

func TestFetchReturnsCanonicalTranscript(t *testing.T) {
	base := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	messages := &stubMessageStore{
		listResult: []models.Message{
			{ID: "m2", ChatID: "n1-u1", CreatedAt: base.Add(time.Second)},
			{ID: "m1", ChatID: "n1-u1", CreatedAt: base},
			{ID: "m2", ChatID: "n1-u1", CreatedAt: base.Add(time.Second)},
		},
	}
	service, _, _ := buildChatService(messages, &stubConversationStore{})

	transcript, err := service.Fetch(context.Background(), "n1-u1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(transcript) != 2 || transcript[0].ID != "m1" || transcript[1].ID != "m2" {
		t.Fatalf("expected deduplicated ascending transcript, got %v", transcript)
	}
}

func TestFetchAllConversationsGroupsByChatID(t *testing.T) {
	base := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	messages := &stubMessageStore{
		bulkResult: []models.Message{
			{ID: "a1", ChatID: "n1-u1", CreatedAt: base},
			{ID: "b1", ChatID: "n1-u2", CreatedAt: base},
			{ID: "a2", ChatID: "n1-u1", CreatedAt: base.Add(time.Second)},
		},
	}
	service, _, _ := buildChatService(messages, &stubConversationStore{})

	conversations, err := service.FetchAllConversationsFor(context.Background(), "n1")
	if err != nil {
		t.Fatalf("FetchAllConversationsFor: %v", err)
	}
	if len(conversations) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(conversations))
	}
	if got := conversations["n1-u1"]; len(got) != 2 || got[0].ID != "a1" {
		t.Errorf("unexpected transcript for n1-u1: %v", got)
	}
}

func TestUnreadCountUsesViewerRole(t *testing.T) {
	messages := &stubMessageStore{unreadCount: 3}
	service, _, _ := buildChatService(messages, &stubConversationStore{})

	count, err := service.UnreadCount(context.Background(), "n1-u1", models.RoleNutritionist)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3, got %d", count)
	}
	if messages.lastUnreadRole != models.RoleNutritionist {
		t.Errorf("expected viewer role forwarded, got %q", messages.lastUnreadRole)
	}

	if _, err := service.UnreadCount(context.Background(), "n1-u1", "admin"); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for unknown role, got %v", err)
	}
}

func TestOpenConversationDerivesSameKeyForBothRoles(t *testing.T) {
	profiles := &stubProfileReader{profiles: map[string]*models.Profile{
		"u1": {ID: "u1", Role: models.RoleUser, DisplayName: "Dina"},
		"n1": {ID: "n1", Role: models.RoleNutritionist, DisplayName: "Dr. Sari"},
	}}
	conversations := &stubConversationStore{}
	service := NewChatService(&stubMessageStore{}, conversations, profiles, &stubFeedPublisher{}, &stubNotifier{})

	byUser, err := service.OpenConversation(context.Background(), "u1", models.RoleUser, "n1")
	if err != nil {
		t.Fatalf("OpenConversation as user: %v", err)
	}
	byNutritionist, err := service.OpenConversation(context.Background(), "n1", models.RoleNutritionist, "u1")
	if err != nil {
		t.Fatalf("OpenConversation as nutritionist: %v", err)
	}

	if byUser.ChatID != byNutritionist.ChatID {
		t.Errorf("expected one conversation key, got %q and %q", byUser.ChatID, byNutritionist.ChatID)
	}
	if len(conversations.conversations) != 1 {
		t.Errorf("expected a single conversation row, got %d", len(conversations.conversations))
	}
}

func TestOpenConversationRejectsSameRoleTarget(t *testing.T) {
	profiles := &stubProfileReader{profiles: map[string]*models.Profile{
		"u2": {ID: "u2", Role: models.RoleUser},
	}}
	service := NewChatService(&stubMessageStore{}, &stubConversationStore{}, profiles, &stubFeedPublisher{}, &stubNotifier{})

	if _, err := service.OpenConversation(context.Background(), "u1", models.RoleUser, "u2"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for user-to-user conversation, got %v", err)
	}
	if _, err := service.OpenConversation(context.Background(), "u1", models.RoleUser, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown target, got %v", err)
	}
}

func TestMessageForParticipantEnforcesMembership(t *testing.T) {
	messages := &stubMessageStore{byID: map[string]*models.Message{
		"m1": {ID: "m1", ChatID: "n1-u1", UserID: "u1", NutritionistID: "n1"},
	}}
	service, _, _ := buildChatService(messages, &stubConversationStore{})

	if _, err := service.MessageForParticipant(context.Background(), "m1", "u1"); err != nil {
		t.Errorf("expected participant access, got %v", err)
	}
	if _, err := service.MessageForParticipant(context.Background(), "m1", "u9"); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for outsider, got %v", err)
	}
	if _, err := service.MessageForParticipant(context.Background(), "missing", "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkReadIsIdempotentThroughTheStore(t *testing.T) {
	messages := &stubMessageStore{}
	service, _, _ := buildChatService(messages, &stubConversationStore{})

	if err := service.MarkRead(context.Background(), "m1"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := service.MarkRead(context.Background(), "m1"); err != nil {
		t.Fatalf("second MarkRead should not error: %v", err)
	}
}

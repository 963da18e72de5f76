// Package session holds the live state of one signed-in chat participant:
// hydrated transcripts, the currently open conversation, unread counters and
// the realtime subscriptions feeding them.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/muhammaddzaki123/NutripathBack/internal/chatid"
	"github.com/muhammaddzaki123/NutripathBack/internal/models"
	"github.com/muhammaddzaki123/NutripathBack/internal/realtime"
	"github.com/muhammaddzaki123/NutripathBack/internal/transcript"
)

const pendingIDPrefix = "pending-"

// ErrSessionClosed is returned when Start or Open is called on a session that
// has already been torn down.
var ErrSessionClosed = errors.New("session: closed")

type chatClient interface {
	Send(ctx context.Context, senderRole, userID, nutritionistID, text string) (*models.Message, error)
	Fetch(ctx context.Context, chatID string) ([]models.Message, error)
	MarkRead(ctx context.Context, messageID string) error
	UnreadCount(ctx context.Context, chatID, viewerRole string) (int, error)
	FetchAllConversationsFor(ctx context.Context, nutritionistID string) (map[string][]models.Message, error)
}

type feed interface {
	Subscribe(ctx context.Context, scope realtime.Scope, fn realtime.Handler) (realtime.Subscription, error)
}

type presenceUpdater interface {
	SetOnline(ctx context.Context, nutritionistID string) error
	SetOffline(ctx context.Context, nutritionistID string) error
}

// Update tells a consumer that the named conversation changed and should be
// re-read through the accessors.
type Update struct {
	ChatID string
}

type Session struct {
	chat     chatClient
	feed     feed
	presence presenceUpdater

	actorID string
	role    string

	mu            sync.Mutex
	closed        bool
	current       string
	conversations map[string][]models.Message
	unread        map[string]int
	currentSub    realtime.Subscription
	rootSub       realtime.Subscription

	updates chan Update
}

func New(chat chatClient, feed feed, presence presenceUpdater, actorID, role string) *Session {
	return &Session{
		chat:          chat,
		feed:          feed,
		presence:      presence,
		actorID:       actorID,
		role:          role,
		conversations: make(map[string][]models.Message),
		unread:        make(map[string]int),
		updates:       make(chan Update, 64),
	}
}

// Start brings the session live. A nutritionist hydrates every conversation
// at once, subscribes across all of them and goes online; a user hydrates
// lazily when a conversation is opened.
func (s *Session) Start(ctx context.Context) error {
	if s.role != models.RoleNutritionist {
		return nil
	}

	conversations, err := s.chat.FetchAllConversationsFor(ctx, s.actorID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	for chatID, messages := range conversations {
		s.conversations[chatID] = transcript.Merge(messages)
	}
	s.mu.Unlock()

	sub, err := s.feed.Subscribe(ctx, realtime.NutritionistScope(s.actorID), s.handleEvent)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Unsubscribe()
		return ErrSessionClosed
	}
	s.rootSub = sub
	s.mu.Unlock()

	if err := s.presence.SetOnline(ctx, s.actorID); err != nil {
		log.Printf("session: set %s online: %v", s.actorID, err)
	}
	return nil
}

// Open makes the conversation current: its transcript is fetched, a dedicated
// subscription replaces the previous one, and every unread message from the
// other party is marked read one at a time. A failed mark only skips that
// message.
func (s *Session) Open(ctx context.Context, chatID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.mu.Unlock()

	messages, err := s.chat.Fetch(ctx, chatID)
	if err != nil {
		return err
	}

	sub, err := s.feed.Subscribe(ctx, realtime.ChatScope(chatID), s.handleEvent)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Unsubscribe()
		return ErrSessionClosed
	}
	previous := s.currentSub
	s.current = chatID
	s.currentSub = sub
	merged := transcript.Merge(s.conversations[chatID], messages)
	s.conversations[chatID] = merged
	pending := unreadFromOther(merged, s.role)
	s.mu.Unlock()

	if previous != nil {
		previous.Unsubscribe()
	}

	for _, messageID := range pending {
		if err := s.chat.MarkRead(ctx, messageID); err != nil {
			log.Printf("session: mark %s read: %v", messageID, err)
			continue
		}
		s.markReadLocally(chatID, messageID)
	}

	count, err := s.chat.UnreadCount(ctx, chatID, s.role)
	if err != nil {
		log.Printf("session: refresh unread for %s: %v", chatID, err)
		count = 0
	}

	s.mu.Lock()
	s.unread[chatID] = count
	s.mu.Unlock()

	s.publishUpdate(chatID)
	return nil
}

// Send inserts an optimistic placeholder, persists the message, and swaps the
// placeholder for the confirmed copy. On failure the placeholder is removed
// and the error rethrown so the caller can surface a retry.
func (s *Session) Send(ctx context.Context, targetID, text string) (*models.Message, error) {
	userID, nutritionistID := s.actorID, targetID
	if s.role == models.RoleNutritionist {
		userID, nutritionistID = targetID, s.actorID
	}

	chatID, err := chatid.Derive(userID, nutritionistID)
	if err != nil {
		return nil, err
	}

	placeholder := models.Message{
		ID:             pendingIDPrefix + uuid.NewString(),
		ChatID:         chatID,
		SenderRole:     s.role,
		UserID:         userID,
		NutritionistID: nutritionistID,
		Text:           text,
		Status:         models.StatusPending,
		CreatedAt:      time.Now().UTC(),
	}

	s.mu.Lock()
	s.conversations[chatID] = transcript.Merge(s.conversations[chatID], []models.Message{placeholder})
	s.mu.Unlock()
	s.publishUpdate(chatID)

	confirmed, err := s.chat.Send(ctx, s.role, userID, nutritionistID, text)
	if err != nil {
		s.mu.Lock()
		s.conversations[chatID] = transcript.Without(s.conversations[chatID], placeholder.ID)
		s.mu.Unlock()
		s.publishUpdate(chatID)
		return nil, err
	}

	settled := *confirmed
	settled.Status = models.StatusConfirmed

	s.mu.Lock()
	without := transcript.Without(s.conversations[chatID], placeholder.ID)
	s.conversations[chatID] = transcript.Merge(without, []models.Message{settled})
	s.mu.Unlock()
	s.publishUpdate(chatID)

	return &settled, nil
}

// Close tears the session down: all subscriptions are cancelled and a
// nutritionist goes offline. Safe to call more than once.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	currentSub := s.currentSub
	rootSub := s.rootSub
	s.currentSub = nil
	s.rootSub = nil
	s.mu.Unlock()

	if currentSub != nil {
		currentSub.Unsubscribe()
	}
	if rootSub != nil {
		rootSub.Unsubscribe()
	}

	if s.role == models.RoleNutritionist {
		if err := s.presence.SetOffline(ctx, s.actorID); err != nil {
			log.Printf("session: set %s offline: %v", s.actorID, err)
		}
	}
}

// handleEvent ingests one realtime message-created event. Transcript merging
// is idempotent, so overlapping deliveries from the bulk hydration, the
// dedicated subscription and the nutritionist-wide one are safe in any order.
func (s *Session) handleEvent(message models.Message) {
	message.Status = models.StatusConfirmed

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	known := false
	for _, existing := range s.conversations[message.ChatID] {
		if existing.ID == message.ID {
			known = true
			break
		}
	}

	s.conversations[message.ChatID] = transcript.Merge(
		s.conversations[message.ChatID],
		[]models.Message{message},
	)

	if !known && message.SenderRole != s.role && message.ChatID != s.current {
		s.unread[message.ChatID]++
	}
	s.mu.Unlock()

	s.publishUpdate(message.ChatID)
}

// Messages returns a copy of the conversation's transcript.
func (s *Session) Messages(chatID string) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, len(s.conversations[chatID]))
	copy(out, s.conversations[chatID])
	return out
}

// Conversations returns a copy of every hydrated transcript keyed by chat id.
func (s *Session) Conversations() map[string][]models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]models.Message, len(s.conversations))
	for chatID, messages := range s.conversations {
		copied := make([]models.Message, len(messages))
		copy(copied, messages)
		out[chatID] = copied
	}
	return out
}

func (s *Session) Unread(chatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[chatID]
}

func (s *Session) CurrentConversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Updates delivers change hints for consumers that render from this session.
// Slow consumers miss hints rather than block delivery.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

func (s *Session) publishUpdate(chatID string) {
	select {
	case s.updates <- Update{ChatID: chatID}:
	default:
	}
}

func (s *Session) markReadLocally(chatID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := s.conversations[chatID]
	for i := range messages {
		if messages[i].ID == messageID {
			messages[i].IsRead = true
			return
		}
	}
}

func unreadFromOther(messages []models.Message, viewerRole string) []string {
	ids := make([]string, 0)
	for _, message := range messages {
		if !message.IsRead && message.SenderRole != viewerRole {
			ids = append(ids, message.ID)
		}
	}
	return ids
}

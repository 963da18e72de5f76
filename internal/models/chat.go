package models

import "time"

const (
	RoleUser         = "user"
	RoleNutritionist = "nutritionist"
)

// Client-side delivery states for a message. Pending entries exist only in
// session memory while a send is in flight; the store never persists them.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
)

type Conversation struct {
	ChatID         string    `json:"chat_id"`
	UserID         string    `json:"user_id"`
	NutritionistID string    `json:"nutritionist_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Message struct {
	ID             string    `json:"id"`
	ChatID         string    `json:"chat_id"`
	SenderRole     string    `json:"sender_role"`
	UserID         string    `json:"user_id"`
	NutritionistID string    `json:"nutritionist_id"`
	Text           string    `json:"text"`
	IsRead         bool      `json:"is_read"`
	Status         string    `json:"status,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// SenderID returns the participant id that authored the message.
func (m *Message) SenderID() string {
	if m.SenderRole == RoleNutritionist {
		return m.NutritionistID
	}
	return m.UserID
}

// RecipientID returns the participant on the other side of the conversation.
func (m *Message) RecipientID() string {
	if m.SenderRole == RoleNutritionist {
		return m.UserID
	}
	return m.NutritionistID
}

type ConversationSummary struct {
	Conversation
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int      `json:"unread_count"`
}

type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ChatID      string    `json:"chat_id"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

type Presence struct {
	NutritionistID string    `json:"nutritionist_id"`
	Status         string    `json:"status"`
	LastSeen       time.Time `json:"last_seen"`
}

type Profile struct {
	ID             string     `json:"id"`
	Role           string     `json:"role"`
	DisplayName    string     `json:"display_name"`
	Specialization *string    `json:"specialization,omitempty"`
	Status         string     `json:"status"`
	LastSeen       *time.Time `json:"last_seen,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Package realtime carries message-created events between writer and open
// chat sessions over a redis pub/sub channel and hands them to subscribers
// exactly once per logical message.
package realtime

import (
	"github.com/muhammaddzaki123/NutripathBack/internal/models"
)

type EventKind string

const (
	EventMessageCreated EventKind = "message.created"
)

type Event struct {
	Kind    EventKind      `json:"kind"`
	Message models.Message `json:"message"`
}

// Scope filters the feed down to one conversation, to every conversation of a
// nutritionist, or to everything when both fields are empty.
type Scope struct {
	ChatID         string
	NutritionistID string
}

func ChatScope(chatID string) Scope {
	return Scope{ChatID: chatID}
}

func NutritionistScope(nutritionistID string) Scope {
	return Scope{NutritionistID: nutritionistID}
}

func AllScope() Scope {
	return Scope{}
}

func (s Scope) Matches(message *models.Message) bool {
	if s.ChatID != "" {
		return message.ChatID == s.ChatID
	}
	if s.NutritionistID != "" {
		return message.NutritionistID == s.NutritionistID
	}
	return true
}

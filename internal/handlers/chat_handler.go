package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/muhammaddzaki123/NutripathBack/internal/models"
	"github.com/muhammaddzaki123/NutripathBack/internal/realtime"
	"github.com/muhammaddzaki123/NutripathBack/internal/services"
	"github.com/muhammaddzaki123/NutripathBack/internal/session"
	chatws "github.com/muhammaddzaki123/NutripathBack/internal/websocket"
	"github.com/muhammaddzaki123/NutripathBack/pkg/utils"
)

type chatApplicationService interface {
	Send(ctx context.Context, senderRole, userID, nutritionistID, text string) (*models.Message, error)
	Fetch(ctx context.Context, chatID string) ([]models.Message, error)
	MarkRead(ctx context.Context, messageID string) error
	UnreadCount(ctx context.Context, chatID, viewerRole string) (int, error)
	FetchAllConversationsFor(ctx context.Context, nutritionistID string) (map[string][]models.Message, error)
	ListConversations(ctx context.Context, actorID, role string) ([]models.ConversationSummary, error)
	OpenConversation(ctx context.Context, actorID, role, targetID string) (*models.Conversation, error)
	ConversationForParticipant(ctx context.Context, chatID, actorID string) (*models.Conversation, error)
	MessageForParticipant(ctx context.Context, messageID, actorID string) (*models.Message, error)
}

type presenceSwitch interface {
	SetOnline(ctx context.Context, nutritionistID string) error
	SetOffline(ctx context.Context, nutritionistID string) error
}

type ChatHandler struct {
	service   chatApplicationService
	hub       *chatws.Hub
	feed      *realtime.Feed
	presence  presenceSwitch
	jwtSecret string
}

type openConversationRequest struct {
	ParticipantID string `json:"participant_id"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

func NewChatHandler(
	service chatApplicationService,
	hub *chatws.Hub,
	feed *realtime.Feed,
	presence presenceSwitch,
	jwtSecret string,
) *ChatHandler {
	return &ChatHandler{
		service:   service,
		hub:       hub,
		feed:      feed,
		presence:  presence,
		jwtSecret: jwtSecret,
	}
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	actorID, role, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversations, err := h.service.ListConversations(c.Context(), actorID, role)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversations": conversations})
}

func (h *ChatHandler) OpenConversation(c *fiber.Ctx) error {
	actorID, role, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req openConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	conversation, err := h.service.OpenConversation(c.Context(), actorID, role, req.ParticipantID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"conversation": conversation})
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	actorID, _, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	chatID := c.Params("chatId")
	if _, err := h.service.ConversationForParticipant(c.Context(), chatID, actorID); err != nil {
		return mapChatError(c, err)
	}

	messages, err := h.service.Fetch(c.Context(), chatID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"messages": messages})
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	actorID, role, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	chatID := c.Params("chatId")
	conversation, err := h.service.ConversationForParticipant(c.Context(), chatID, actorID)
	if err != nil {
		return mapChatError(c, err)
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	message, err := h.service.Send(
		c.Context(),
		role,
		conversation.UserID,
		conversation.NutritionistID,
		req.Text,
	)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}

func (h *ChatHandler) MarkMessageRead(c *fiber.Ctx) error {
	actorID, _, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	messageID := c.Params("id")
	if _, err := h.service.MessageForParticipant(c.Context(), messageID, actorID); err != nil {
		return mapChatError(c, err)
	}

	if err := h.service.MarkRead(c.Context(), messageID); err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *ChatHandler) GetUnreadCount(c *fiber.Ctx) error {
	actorID, role, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	chatID := c.Params("chatId")
	if _, err := h.service.ConversationForParticipant(c.Context(), chatID, actorID); err != nil {
		return mapChatError(c, err)
	}

	count, err := h.service.UnreadCount(c.Context(), chatID, role)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"chat_id": chatID, "unread": count})
}

func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

// HandleWebSocket owns one live connection: it registers the client with the
// delivery hub and runs a chat session for the caller until the socket drops.
func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	actorID, _ := conn.Locals("user_id").(string)
	role, _ := conn.Locals("role").(string)
	if actorID == "" || (role != models.RoleUser && role != models.RoleNutritionist) {
		_ = conn.Close()
		return
	}

	client := chatws.NewClient(h.hub, conn, actorID)
	h.hub.Register(client)
	go client.WritePump()

	ctx := context.Background()
	sess := session.New(h.service, h.feed, h.presence, actorID, role)
	if err := sess.Start(ctx); err != nil {
		client.WriteError("failed to start chat session")
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go h.pushSessionUpdates(sess, client, done, stopped)

	h.readLoop(ctx, conn, client, sess)

	close(done)
	<-stopped
	sess.Close(ctx)
	h.hub.Unregister(client)
	_ = conn.Close()
}

func (h *ChatHandler) pushSessionUpdates(
	sess *session.Session,
	client *chatws.Client,
	done <-chan struct{},
	stopped chan<- struct{},
) {
	defer close(stopped)
	for {
		select {
		case <-done:
			return
		case update := <-sess.Updates():
			client.Push(chatws.Frame{
				Type:   "conversation",
				ChatID: update.ChatID,
				Unread: sess.Unread(update.ChatID),
			})
		}
	}
}

func (h *ChatHandler) readLoop(
	ctx context.Context,
	conn *websocket.Conn,
	client *chatws.Client,
	sess *session.Session,
) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming struct {
			Type   string `json:"type"`
			ChatID string `json:"chat_id"`
			To     string `json:"to"`
			Text   string `json:"text"`
		}
		if err := json.Unmarshal(payload, &incoming); err != nil {
			client.WriteError("invalid message payload")
			continue
		}

		switch incoming.Type {
		case "open":
			if err := sess.Open(ctx, incoming.ChatID); err != nil {
				client.WriteError("failed to open conversation")
			}
		case "message":
			if _, err := sess.Send(ctx, incoming.To, incoming.Text); err != nil {
				client.WriteError("failed to send message")
			}
		default:
			client.WriteError("unsupported message type")
		}
	}
}

func (h *ChatHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

func actorFromLocals(c *fiber.Ctx) (string, string, error) {
	actorID, ok := c.Locals("user_id").(string)
	if !ok || actorID == "" {
		return "", "", errors.New("missing actor")
	}
	role, ok := c.Locals("role").(string)
	if !ok || (role != models.RoleUser && role != models.RoleNutritionist) {
		return "", "", errors.New("missing role")
	}
	return actorID, role, nil
}

func mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrMessageTooLong):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Message exceeds 1000 characters"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	case errors.Is(err, realtime.ErrSubscribeFailed):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Realtime feed unavailable"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process chat request"})
	}
}

package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/muhammaddzaki123/NutripathBack/internal/models"
)

type notificationReader interface {
	ListForRecipient(ctx context.Context, recipientID string, limit, offset int) ([]models.Notification, error)
}

type NotificationHandler struct {
	service notificationReader
}

func NewNotificationHandler(service notificationReader) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	actorID, _, err := actorFromLocals(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	notifications, err := h.service.ListForRecipient(c.Context(), actorID, limit, (page-1)*limit)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{
		"notifications": notifications,
		"pagination":    buildPaginationMeta(page, limit, len(notifications)),
	})
}

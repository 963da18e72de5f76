package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/muhammaddzaki123/NutripathBack/internal/models"
)

type presenceReader interface {
	Get(ctx context.Context, nutritionistID string) (*models.Presence, error)
}

type PresenceHandler struct {
	service presenceReader
}

func NewPresenceHandler(service presenceReader) *PresenceHandler {
	return &PresenceHandler{service: service}
}

func (h *PresenceHandler) GetPresence(c *fiber.Ctx) error {
	if _, _, err := actorFromLocals(c); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	presence, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"presence": presence})
}

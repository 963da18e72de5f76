package routes

import (
	"context"
	"log"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/muhammaddzaki123/NutripathBack/internal/config"
	"github.com/muhammaddzaki123/NutripathBack/internal/handlers"
	"github.com/muhammaddzaki123/NutripathBack/internal/middleware"
	"github.com/muhammaddzaki123/NutripathBack/internal/realtime"
	"github.com/muhammaddzaki123/NutripathBack/internal/repository"
	"github.com/muhammaddzaki123/NutripathBack/internal/services"
	chatws "github.com/muhammaddzaki123/NutripathBack/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, rdb *redis.Client) {
	messageRepo := repository.NewMessageRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	profileRepo := repository.NewProfileRepository(db)

	feed := realtime.NewFeed(rdb)
	presenceCache := realtime.NewPresenceCache(rdb)

	notificationService := services.NewNotificationService(notificationRepo, profileRepo)
	presenceService := services.NewPresenceService(profileRepo, presenceCache)
	chatService := services.NewChatService(
		messageRepo,
		conversationRepo,
		profileRepo,
		feed,
		notificationService,
	)

	chatHub := chatws.NewHub()
	go chatHub.Run()
	if err := chatHub.AttachFeed(context.Background(), feed); err != nil {
		log.Printf("chat hub: attach feed: %v", err)
	}

	chatHandler := handlers.NewChatHandler(chatService, chatHub, feed, presenceService, cfg.JWTSecret)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	presenceHandler := handlers.NewPresenceHandler(presenceService)

	api := app.Group("/api")
	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	conversations := authProtected.Group("/chat/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("", chatHandler.OpenConversation)
	conversations.Get("/:chatId/messages", chatHandler.GetMessages)
	conversations.Post("/:chatId/messages", chatHandler.SendMessage)
	conversations.Get("/:chatId/unread", chatHandler.GetUnreadCount)

	authProtected.Post("/chat/messages/:id/read", chatHandler.MarkMessageRead)

	authProtected.Get("/notifications", notificationHandler.ListNotifications)
	authProtected.Get("/nutritionists/:id/presence", presenceHandler.GetPresence)

	api.Use("/v1/ws", chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))
}

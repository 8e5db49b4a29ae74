package handlers

import (
	"yield-vault-backend/middleware"
	"yield-vault-backend/services"

	"github.com/gofiber/fiber/v2"
)

func SetupNotificationRoutes(app *fiber.App, notificationService *services.NotificationService) {
	// Broadcasts fan out one row per targeted user — operator-only.
	notifications := app.Group("/api/v1/notifications", middleware.AdminAuthMiddleware())

	notifications.Post("/participants", notificationService.NotifyParticipants)
	notifications.Post("/followers", notificationService.NotifyFollowers)
}

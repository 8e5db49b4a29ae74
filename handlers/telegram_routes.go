package handlers

import (
	"yield-vault-backend/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTelegramRoutes(app *fiber.App, telegramService *services.TelegramService) {
	telegram := app.Group("/api/v1/telegram")

	telegram.Post("/generate-link", telegramService.GenerateLink)
	telegram.Post("/verify", telegramService.Verify)
}

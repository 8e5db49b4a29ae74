package handlers

import (
	"yield-vault-backend/middleware"
	"yield-vault-backend/services"

	"github.com/gofiber/fiber/v2"
)

func SetupUserRoutes(app *fiber.App, userService *services.UserService) {
	users := app.Group("/api/v1/users")

	users.Post("/register", userService.Register)
	users.Post("/submit-code", userService.SubmitCode)
	users.Post("/wallets", userService.AddWallet)
	users.Post("/link-telegram", userService.LinkTelegram)
	users.Get("/", userService.GetUser)
	users.Get("/user", userService.GetUser)
	users.Get("/stats", userService.GetUsersWithStats)
	users.Get("/early-access", userService.CheckEarlyAccess)
	users.Get("/transactions/user", userService.GetUserTransactions)

	// Code minting is operator-only.
	users.Post("/generate-code", middleware.AdminAuthMiddleware(), userService.GenerateCodes)
}

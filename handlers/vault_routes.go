package handlers

import (
	"yield-vault-backend/middleware"
	"yield-vault-backend/services"

	"github.com/gofiber/fiber/v2"
)

func SetupVaultRoutes(app *fiber.App, vaultService *services.VaultService) {
	vault := app.Group("/api/v1/vault")

	vault.Post("/create", vaultService.RegisterVault)
	vault.Post("/follow", vaultService.FollowVault)
	vault.Get("/", vaultService.GetVaults)
	vault.Get("/following", vaultService.IsFollowing)
	vault.Get("/interacted", vaultService.HasInteracted)
	vault.Get("/points", vaultService.GetUserPoints)

	// Pass-through market data lookups.
	vault.Get("/balances/:walletId", vaultService.GetBalances)
	vault.Get("/portfolio/:walletId", vaultService.GetPortfolio)

	vault.Post("/logo", middleware.AdminAuthMiddleware(), vaultService.UploadLogo)
}

func SetupStrategyRoutes(app *fiber.App, vaultService *services.VaultService) {
	strategy := app.Group("/api/v1/strategy")

	strategy.Post("/create", vaultService.RegisterStrategy)
}

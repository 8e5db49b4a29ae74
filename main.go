package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"yield-vault-backend/handlers"
	"yield-vault-backend/models"
	"yield-vault-backend/services"
	"yield-vault-backend/utils"
	"yield-vault-backend/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}
	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	defindexKey := os.Getenv("DEFINDEX_API_KEY")
	if defindexKey == "" {
		log.Fatal("DEFINDEX_API_KEY environment variable not set")
	}

	app := fiber.New()
	app.Use(logger.New())

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "*"
	} else {
		parts := strings.Split(allowedOrigins, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		allowedOrigins = strings.Join(parts, ",")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// TranslateError turns driver unique-violation errors into
	// gorm.ErrDuplicatedKey, which the services map to the
	// idempotent/conflict response paths.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.Transaction{},
		&models.Vault{},
		&models.Strategy{},
		&models.VaultMetric{},
		&models.Follow{},
		&models.VaultInteraction{},
		&models.EarlyAccessCode{},
		&models.Notification{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}

	botUsername := os.Getenv("TELEGRAM_BOT_USERNAME")
	if botUsername == "" {
		botUsername = "defi_yield_hunter_bot"
	}

	marketClient := services.NewMarketDataClient(defindexKey)
	userService := services.NewUserService(db)
	vaultService := services.NewVaultService(db, marketClient)
	notificationService := services.NewNotificationService(db)
	telegramService := services.NewTelegramService(db, botUsername)

	handlers.SetupUserRoutes(app, userService)
	handlers.SetupVaultRoutes(app, vaultService)
	handlers.SetupStrategyRoutes(app, vaultService)
	handlers.SetupTelegramRoutes(app, telegramService)
	handlers.SetupNotificationRoutes(app, notificationService)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("GOAT")
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The bot talks to this service only through the public verify endpoint.
	verifyURL := os.Getenv("API_BASE_URL")
	if verifyURL == "" {
		verifyURL = "http://localhost:" + port
	}
	verifyURL += "/api/v1/telegram/verify"

	botWorker, err := workers.NewTelegramBotWorker(botToken, verifyURL)
	if err != nil {
		log.Fatal("failed to start telegram bot:", err)
	}
	go botWorker.Start(ctx)

	vaultService.StartOnchainScheduler()

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Printf("✅ Telegram bot worker running (@%s)", botUsername)
	log.Printf("✅ CORS configured for origins: %s", allowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"yield-vault-backend/models"

	"github.com/gofiber/fiber/v2"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"
)

// linkTokenTTL bounds how long an issued deep-link token stays redeemable.
const linkTokenTTL = 15 * time.Minute

// TelegramService owns the tokenized linking flow:
// unlinked -> token issued -> linked. The bot worker drives the final
// transition through the public verify endpoint only.
type TelegramService struct {
	DB          *gorm.DB
	BotUsername string
}

func NewTelegramService(db *gorm.DB, botUsername string) *TelegramService {
	return &TelegramService{DB: db, BotUsername: botUsername}
}

// GenerateLink issues a fresh single-use token for the wallet's user and
// returns the t.me deep link. Reissuing replaces any previous token, so a
// stale link stops working the moment a new one is generated.
func (s *TelegramService) GenerateLink(c *fiber.Ctx) error {
	var body struct {
		WalletAddress string `json:"walletAddress"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body."})
	}
	if body.WalletAddress == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Missing wallet address"})
	}

	var user models.User
	if err := s.DB.Where("wallet_address = ?", body.WalletAddress).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to generate link."})
	}

	token, err := gonanoid.New(16)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to generate link."})
	}

	now := time.Now()
	err = s.DB.Model(&user).Updates(map[string]interface{}{
		"tg_auth_token":           token,
		"tg_auth_token_issued_at": now,
	}).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to generate link."})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"url": fmt.Sprintf("https://t.me/%s?start=%s", s.BotUsername, token),
	})
}

// Verify consumes a link token: it stores the chat id and username on the
// matching user and clears the token so it cannot be replayed. Unknown,
// already-consumed and expired tokens all answer the same 404.
func (s *TelegramService) Verify(c *fiber.Ctx) error {
	var body struct {
		Token            string          `json:"token"`
		TelegramChatID   json.RawMessage `json:"telegramChatId"`
		TelegramUsername string          `json:"telegramUsername"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body."})
	}

	// The bot sends the chat id as a JSON number; older clients send a
	// string. Accept both.
	chatID := strings.Trim(strings.TrimSpace(string(body.TelegramChatID)), `"`)
	if body.Token == "" || chatID == "" || chatID == "null" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Missing token or Telegram chat ID"})
	}

	var user models.User
	if err := s.DB.Where("tg_auth_token = ?", body.Token).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Invalid or expired token"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to verify token."})
	}

	if user.TgAuthTokenIssuedAt == nil || time.Since(*user.TgAuthTokenIssuedAt) > linkTokenTTL {
		// Expired tokens are dropped on sight so the index stays clean.
		s.DB.Model(&user).Updates(map[string]interface{}{
			"tg_auth_token":           nil,
			"tg_auth_token_issued_at": nil,
		})
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Invalid or expired token"})
	}

	err := s.DB.Model(&user).Updates(map[string]interface{}{
		"telegram_chat_id":        chatID,
		"telegram_username":       body.TelegramUsername,
		"tg_auth_token":           nil,
		"tg_auth_token_issued_at": nil,
	}).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to verify token."})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Telegram linked successfully"})
}

package services

import (
	"strings"
	"testing"
	"time"

	"yield-vault-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTelegramApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	svc := NewTelegramService(db, "defi_yield_hunter_bot")

	app := fiber.New()
	app.Post("/api/v1/telegram/generate-link", svc.GenerateLink)
	app.Post("/api/v1/telegram/verify", svc.Verify)
	return app, db
}

func issuedToken(t *testing.T, db *gorm.DB, userID string) string {
	t.Helper()
	var user models.User
	require.NoError(t, db.First(&user, "id = ?", userID).Error)
	require.NotNil(t, user.TgAuthToken)
	return *user.TgAuthToken
}

func TestGenerateLinkRequiresKnownWallet(t *testing.T) {
	app, _ := newTelegramApp(t)

	status, _ := doJSON(t, app, "POST", "/api/v1/telegram/generate-link", map[string]interface{}{})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = doJSON(t, app, "POST", "/api/v1/telegram/generate-link", map[string]interface{}{
		"walletAddress": "0xunknown",
	})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestLinkFlowConsumesTokenOnce(t *testing.T) {
	app, db := newTelegramApp(t)
	user := createTestUser(t, db, "0xlink")

	status, resp := doJSON(t, app, "POST", "/api/v1/telegram/generate-link", map[string]interface{}{
		"walletAddress": "0xlink",
	})
	require.Equal(t, fiber.StatusOK, status)

	token := issuedToken(t, db, user.ID)
	require.Len(t, token, 16)
	assert.Equal(t, "https://t.me/defi_yield_hunter_bot?start="+token, resp["url"])

	// The bot posts the chat id as a JSON number.
	status, _ = doJSON(t, app, "POST", "/api/v1/telegram/verify", map[string]interface{}{
		"token":            token,
		"telegramChatId":   987654321,
		"telegramUsername": "ada",
	})
	require.Equal(t, fiber.StatusOK, status)

	var linked models.User
	require.NoError(t, db.First(&linked, "id = ?", user.ID).Error)
	assert.Equal(t, "987654321", linked.TelegramChatID)
	assert.Equal(t, "ada", linked.TelegramUsername)
	assert.Nil(t, linked.TgAuthToken)
	assert.Nil(t, linked.TgAuthTokenIssuedAt)

	// Replay: the token was cleared, so it no longer matches anyone.
	status, _ = doJSON(t, app, "POST", "/api/v1/telegram/verify", map[string]interface{}{
		"token":          token,
		"telegramChatId": "987654321",
	})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestReissueInvalidatesPreviousToken(t *testing.T) {
	app, db := newTelegramApp(t)
	user := createTestUser(t, db, "0xreissue")

	status, _ := doJSON(t, app, "POST", "/api/v1/telegram/generate-link", map[string]interface{}{
		"walletAddress": "0xreissue",
	})
	require.Equal(t, fiber.StatusOK, status)
	first := issuedToken(t, db, user.ID)

	status, _ = doJSON(t, app, "POST", "/api/v1/telegram/generate-link", map[string]interface{}{
		"walletAddress": "0xreissue",
	})
	require.Equal(t, fiber.StatusOK, status)
	second := issuedToken(t, db, user.ID)
	require.NotEqual(t, first, second)

	status, _ = doJSON(t, app, "POST", "/api/v1/telegram/verify", map[string]interface{}{
		"token": first, "telegramChatId": "1",
	})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = doJSON(t, app, "POST", "/api/v1/telegram/verify", map[string]interface{}{
		"token": second, "telegramChatId": "1",
	})
	assert.Equal(t, fiber.StatusOK, status)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	app, db := newTelegramApp(t)
	user := createTestUser(t, db, "0xstale")

	status, _ := doJSON(t, app, "POST", "/api/v1/telegram/generate-link", map[string]interface{}{
		"walletAddress": "0xstale",
	})
	require.Equal(t, fiber.StatusOK, status)
	token := issuedToken(t, db, user.ID)

	// Age the token past the TTL.
	stale := time.Now().Add(-linkTokenTTL - time.Minute)
	require.NoError(t, db.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("tg_auth_token_issued_at", stale).Error)

	status, resp := doJSON(t, app, "POST", "/api/v1/telegram/verify", map[string]interface{}{
		"token": token, "telegramChatId": "1",
	})
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.True(t, strings.Contains(resp["message"].(string), "expired"))

	// The stale token was dropped entirely.
	var refreshed models.User
	require.NoError(t, db.First(&refreshed, "id = ?", user.ID).Error)
	assert.Nil(t, refreshed.TgAuthToken)
}

func TestVerifyValidation(t *testing.T) {
	app, _ := newTelegramApp(t)

	status, _ := doJSON(t, app, "POST", "/api/v1/telegram/verify", map[string]interface{}{
		"telegramChatId": "1",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = doJSON(t, app, "POST", "/api/v1/telegram/verify", map[string]interface{}{
		"token": "sometoken",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"yield-vault-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an isolated in-memory database with the full schema.
// TranslateError mirrors the production gorm.Config so duplicate-key paths
// behave the same under test.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
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
	))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, walletAddress string) *models.User {
	t.Helper()
	user := models.User{
		ID:            uuid.NewString(),
		WalletAddress: walletAddress,
		Username:      "user-" + walletAddress,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func createTestVault(t *testing.T, db *gorm.DB, contractAddress string) *models.Vault {
	t.Helper()
	vault := models.Vault{
		ID:              uuid.NewString(),
		ContractAddress: contractAddress,
		Name:            "Vault " + contractAddress,
		Network:         "stellar",
	}
	require.NoError(t, db.Create(&vault).Error)
	return &vault
}

// doJSON runs one request against the fiber app and decodes the JSON body.
func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]interface{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

// doJSONList is doJSON for endpoints that answer with a JSON array.
func doJSONList(t *testing.T, app *fiber.App, path string) []interface{} {
	t.Helper()

	req := httptest.NewRequest("GET", path, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded []interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return decoded
}

func count[T any](t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var model T
	var n int64
	require.NoError(t, db.Model(&model).Count(&n).Error)
	return n
}

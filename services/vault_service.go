package services

import (
	"errors"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"yield-vault-backend/models"
	"yield-vault-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type VaultService struct {
	DB     *gorm.DB
	Market *MarketDataClient
}

func NewVaultService(db *gorm.DB, market *MarketDataClient) *VaultService {
	return &VaultService{DB: db, Market: market}
}

// VaultView is the public projection of a vault: strategies flattened to
// names, followers aggregated to a count, metrics in raw form.
type VaultView struct {
	VaultID        string               `json:"vaultId"`
	Name           string               `json:"name"`
	Description    string               `json:"description,omitempty"`
	Address        string               `json:"address"`
	Slug           string               `json:"slug,omitempty"`
	TVL            float64              `json:"tvl"`
	Asset          string               `json:"asset,omitempty"`
	Tag            string               `json:"tag,omitempty"`
	Logo           string               `json:"logo,omitempty"`
	APY            float64              `json:"apy"`
	RiskLevel      string               `json:"riskLevel,omitempty"`
	Strategies     []string             `json:"strategies"`
	FollowersCount int64                `json:"followersCount"`
	Metrics        []models.VaultMetric `json:"metrics"`
}

func (s *VaultService) buildVaultView(vault *models.Vault, followersCount int64) VaultView {
	names := make([]string, len(vault.Strategies))
	for i, st := range vault.Strategies {
		names[i] = st.Name
	}
	metrics := vault.Metrics
	if metrics == nil {
		metrics = []models.VaultMetric{}
	}
	return VaultView{
		VaultID:        vault.ID,
		Name:           vault.Name,
		Description:    vault.Description,
		Address:        vault.ContractAddress,
		Slug:           vault.Slug,
		TVL:            vault.TVL,
		Asset:          vault.Asset,
		Tag:            vault.Tag,
		Logo:           vault.LogoURL,
		APY:            vault.APY,
		RiskLevel:      vault.RiskLevel,
		Strategies:     names,
		FollowersCount: followersCount,
		Metrics:        metrics,
	}
}

// RegisterStrategy creates a strategy, idempotent by name.
func (s *VaultService) RegisterStrategy(c *fiber.Ctx) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body."})
	}
	if body.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "name is required."})
	}

	var existing models.Strategy
	err := s.DB.Where("name = ?", body.Name).First(&existing).Error
	if err == nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message":  "Strategy already exists.",
			"strategy": existing,
		})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to create strategy."})
	}

	strategy := models.Strategy{
		ID:   uuid.NewString(),
		Name: body.Name,
		Type: "fixed",
	}
	if err := s.DB.Create(&strategy).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if err := s.DB.Where("name = ?", body.Name).First(&existing).Error; err == nil {
				return c.Status(fiber.StatusOK).JSON(fiber.Map{
					"message":  "Strategy already exists.",
					"strategy": existing,
				})
			}
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to create strategy."})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Strategy created",
		"strategy": strategy,
	})
}

// RegisterVault creates a vault, idempotent by contract address, optionally
// linking pre-existing strategies via the join table.
func (s *VaultService) RegisterVault(c *fiber.Ctx) error {
	var body struct {
		Name            string   `json:"name"`
		ContractAddress string   `json:"contractAddress"`
		Description     string   `json:"description"`
		Tag             string   `json:"tag"`
		Asset           string   `json:"asset"`
		APY             float64  `json:"apy"`
		RiskLevel       string   `json:"riskLevel"`
		TVL             float64  `json:"tvl"`
		Network         string   `json:"network"`
		LogoURL         string   `json:"logoUrl"`
		StrategyIDs     []string `json:"strategyIds"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body."})
	}
	if body.Name == "" || body.ContractAddress == "" || body.Network == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "name, contractAddress, and network are required.",
		})
	}

	var existing models.Vault
	err := s.DB.Where("contract_address = ?", body.ContractAddress).First(&existing).Error
	if err == nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Vault already exists.",
			"vault":   existing,
		})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to create vault."})
	}

	vault := models.Vault{
		ID:              uuid.NewString(),
		ContractAddress: body.ContractAddress,
		Name:            body.Name,
		Slug:            slug.Make(body.Name),
		Description:     body.Description,
		Tag:             body.Tag,
		Asset:           body.Asset,
		LogoURL:         body.LogoURL,
		Network:         body.Network,
		TVL:             body.TVL,
		APY:             body.APY,
		RiskLevel:       body.RiskLevel,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&vault).Error; err != nil {
			return err
		}
		if len(body.StrategyIDs) > 0 {
			var strategies []models.Strategy
			if err := tx.Where("id IN ?", body.StrategyIDs).Find(&strategies).Error; err != nil {
				return err
			}
			if err := tx.Model(&vault).Association("Strategies").Append(&strategies); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if err := s.DB.Where("contract_address = ?", body.ContractAddress).First(&existing).Error; err == nil {
				return c.Status(fiber.StatusOK).JSON(fiber.Map{
					"message": "Vault already exists.",
					"vault":   existing,
				})
			}
		}
		log.Printf("[vaults] create failed for %s: %v", body.ContractAddress, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to create vault."})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Vault created and linked to strategies.",
		"vault":   vault,
	})
}

// GetVaults returns a single vault view when vaultId is given, otherwise
// the full list.
func (s *VaultService) GetVaults(c *fiber.Ctx) error {
	vaultID := c.Query("vaultId")

	if vaultID != "" {
		var vault models.Vault
		err := s.DB.Preload("Strategies").Preload("Metrics").First(&vault, "id = ?", vaultID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Vault not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to fetch vault."})
		}

		var followers int64
		s.DB.Model(&models.Follow{}).Where("vault_id = ?", vault.ID).Count(&followers)

		return c.Status(fiber.StatusOK).JSON(s.buildVaultView(&vault, followers))
	}

	var vaults []models.Vault
	if err := s.DB.Preload("Strategies").Preload("Metrics").Find(&vaults).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to fetch vaults."})
	}

	// One grouped query instead of a count per vault.
	type followerCount struct {
		VaultID string
		Count   int64
	}
	var counts []followerCount
	s.DB.Model(&models.Follow{}).
		Select("vault_id, COUNT(*) AS count").
		Group("vault_id").
		Scan(&counts)
	byVault := make(map[string]int64, len(counts))
	for _, fc := range counts {
		byVault[fc.VaultID] = fc.Count
	}

	views := make([]VaultView, len(vaults))
	for i := range vaults {
		views[i] = s.buildVaultView(&vaults[i], byVault[vaults[i].ID])
	}
	return c.Status(fiber.StatusOK).JSON(views)
}

// FollowVault subscribes a user to a vault. Duplicate follows answer 200
// "already following", whether caught by the pre-check or the unique index.
func (s *VaultService) FollowVault(c *fiber.Ctx) error {
	var body struct {
		UserID  string `json:"userId"`
		VaultID string `json:"vaultId"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body."})
	}
	if body.UserID == "" || body.VaultID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Missing userId or vaultId."})
	}

	var vault models.Vault
	if err := s.DB.First(&vault, "id = ?", body.VaultID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Vault not found."})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to follow vault."})
	}

	var user models.User
	if err := s.DB.First(&user, "id = ?", body.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "User not found."})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to follow vault."})
	}

	var count int64
	s.DB.Model(&models.Follow{}).
		Where("user_id = ? AND vault_id = ?", body.UserID, body.VaultID).
		Count(&count)
	if count > 0 {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Already following this vault."})
	}

	follow := models.Follow{
		ID:      uuid.NewString(),
		UserID:  body.UserID,
		VaultID: body.VaultID,
	}
	if err := s.DB.Create(&follow).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Already following this vault."})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to follow vault."})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Vault followed successfully.",
		"follow":  follow,
	})
}

// IsFollowing reports whether the resolved user follows the vault.
func (s *VaultService) IsFollowing(c *fiber.Ctx) error {
	userID := c.Query("userId")
	walletAddress := c.Query("walletAddress")
	vaultID := c.Query("vaultId")

	if vaultID == "" || (userID == "" && walletAddress == "") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Missing vaultId and user identifier."})
	}

	user, err := findUserByIdentifier(s.DB, userID, walletAddress)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "User not found."})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to check follow."})
	}

	var count int64
	s.DB.Model(&models.Follow{}).
		Where("user_id = ? AND vault_id = ?", user.ID, vaultID).
		Count(&count)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"following": count > 0})
}

// HasInteracted is a pure presence check on vault interactions; it creates
// nothing and does not 404 on unknown ids.
func (s *VaultService) HasInteracted(c *fiber.Ctx) error {
	userID := c.Query("userId")
	vaultID := c.Query("vaultId")
	if userID == "" || vaultID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Missing identifiers."})
	}

	var count int64
	s.DB.Model(&models.VaultInteraction{}).
		Where("user_id = ? AND vault_id = ?", userID, vaultID).
		Count(&count)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"interacted": count > 0})
}

// GetUserPoints returns the points balance of the resolved user.
func (s *VaultService) GetUserPoints(c *fiber.Ctx) error {
	userID := c.Query("userId")
	walletAddress := c.Query("walletAddress")
	if userID == "" && walletAddress == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Missing identifier."})
	}

	user, err := findUserByIdentifier(s.DB, userID, walletAddress)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "User not found."})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to fetch points."})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"points": user.Points})
}

// GetBalances proxies a Horizon account-balance lookup with optional asset
// filtering (assets=USDC,EURC; XLM selects the native balance).
func (s *VaultService) GetBalances(c *fiber.Ctx) error {
	walletID := c.Params("walletId")
	if walletID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Missing walletId in request params."})
	}

	balances, err := s.Market.FetchBalances(walletID)
	if err != nil {
		if errors.Is(err, ErrUpstreamRejected) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid wallet ID or Horizon error."})
		}
		log.Printf("[balances] horizon fetch failed for %s: %v", walletID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to fetch wallet balances."})
	}

	balances = FilterBalances(balances, c.Query("assets"))

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"wallet":   walletID,
		"balances": balances,
	})
}

// PortfolioRow is the presentation view of one balance. The yield fields
// are placeholders, not computed values; the product has no real earnings
// data yet and the frontend renders these as-is.
type PortfolioRow struct {
	ID                string  `json:"id"`
	AssetType         string  `json:"assetType"`
	Asset             string  `json:"asset"`
	Balance           string  `json:"balance"`
	TotalValue        float64 `json:"totalValue"`
	CurrentAPY        string  `json:"currentAPY"`
	EarningPercentage string  `json:"earningPercentage"`
	Growth            string  `json:"growth"`
	DailyChange       string  `json:"dailyChange"`
	DailyChangePct    string  `json:"dailyChangePercent"`
	MonthlyEarnings   string  `json:"monthlyEarnings"`
}

// GetPortfolio reshapes Horizon balances into the portfolio view with the
// placeholder yield numbers.
func (s *VaultService) GetPortfolio(c *fiber.Ctx) error {
	walletID := c.Params("walletId")
	if walletID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Missing walletId parameter"})
	}

	balances, err := s.Market.FetchBalances(walletID)
	if err != nil {
		if errors.Is(err, ErrUpstreamRejected) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Unable to fetch balances"})
		}
		log.Printf("[portfolio] horizon fetch failed for %s: %v", walletID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to fetch wallet balances."})
	}

	if asset := c.Query("asset"); asset != "" {
		kept := balances[:0]
		for _, b := range balances {
			if b.AssetCode == asset {
				kept = append(kept, b)
			}
		}
		balances = kept
	}

	portfolio := make([]PortfolioRow, len(balances))
	for i, b := range balances {
		asset := b.AssetCode
		if asset == "" {
			asset = "XLM"
		}
		amount, _ := strconv.ParseFloat(b.Balance, 64)
		portfolio[i] = PortfolioRow{
			ID:                "portfolio-" + strconv.Itoa(i+1),
			AssetType:         b.AssetType,
			Asset:             asset,
			Balance:           b.Balance,
			TotalValue:        amount * 1.0, // placeholder 1:1 valuation
			CurrentAPY:        "8.1",
			EarningPercentage: "47.0",
			Growth:            "12929.00",
			DailyChange:       "12929.00",
			DailyChangePct:    "9.7",
			MonthlyEarnings:   "1683.00",
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"wallet":    walletID,
		"portfolio": portfolio,
	})
}

var logoExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".svg": true, ".webp": true,
}

// UploadLogo stores a vault logo in the R2 bucket and returns its public
// URL, meant to be passed as logoUrl to vault creation.
func (s *VaultService) UploadLogo(c *fiber.Ctx) error {
	file, err := c.FormFile("logo")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "logo file is required"})
	}
	if file.Size > 2*1024*1024 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "logo too large (max 2MB)"})
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !logoExtensions[ext] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "unsupported logo format"})
	}

	url, err := utils.UploadToR2(file, "vault-logos/"+uuid.NewString()+ext)
	if err != nil {
		log.Printf("[vaults] logo upload failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to upload logo."})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"url": url})
}

package services

import (
	"crypto/rand"
	"errors"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"yield-vault-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// findUserByIdentifier resolves a user by id or wallet address. Returns
// gorm.ErrRecordNotFound when neither matches.
func findUserByIdentifier(db *gorm.DB, userID, walletAddress string) (*models.User, error) {
	q := db.Model(&models.User{})
	if userID != "" {
		q = q.Where("id = ?", userID)
	}
	if walletAddress != "" {
		q = q.Where("wallet_address = ?", walletAddress)
	}

	var user models.User
	if err := q.First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Register creates a user plus its first wallet in one transaction.
// Registering an already-known wallet address is not an error: the existing
// id is returned so the client can link the current session. A concurrent
// duplicate insert is caught via the unique index and mapped to the same
// already-exists response.
func (s *UserService) Register(c *fiber.Ctx) error {
	var body struct {
		WalletAddress  string `json:"walletAddress"`
		FullName       string `json:"fullName"`
		FirstName      string `json:"firstName"`
		LastName       string `json:"lastName"`
		Username       string `json:"username"`
		Email          string `json:"email"`
		AuthMethod     string `json:"authMethod"`
		ProfilePicture string `json:"profilePicture"`
		PublicKey      string `json:"publicKey"`
		WalletSource   string `json:"walletSource"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body."})
	}
	if body.WalletAddress == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Missing auth provider ID."})
	}

	var existing models.User
	err := s.DB.Where("wallet_address = ?", body.WalletAddress).First(&existing).Error
	if err == nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "User already exists. Linking current session.",
			"userId":  existing.ID,
		})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to register user."})
	}

	user := models.User{
		ID:             uuid.NewString(),
		WalletAddress:  body.WalletAddress,
		FullName:       body.FullName,
		FirstName:      body.FirstName,
		LastName:       body.LastName,
		Username:       body.Username,
		Email:          body.Email,
		AuthMethod:     body.AuthMethod,
		ProfilePicture: body.ProfilePicture,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if body.PublicKey != "" || body.WalletSource != "" {
			wallet := models.Wallet{
				ID:           uuid.NewString(),
				OwnerID:      user.ID,
				PublicKey:    strings.ToLower(body.PublicKey),
				Name:         body.WalletSource,
				WalletSource: body.WalletSource,
			}
			if err := tx.Create(&wallet).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a registration race: someone inserted the same wallet
			// address between our read and write. Answer as if we had seen it.
			if err := s.DB.Where("wallet_address = ?", body.WalletAddress).First(&existing).Error; err == nil {
				return c.Status(fiber.StatusOK).JSON(fiber.Map{
					"message": "User already exists. Linking current session.",
					"userId":  existing.ID,
				})
			}
		}
		log.Printf("[users] register failed for %s: %v", body.WalletAddress, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to register user."})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully.",
		"userId":  user.ID,
	})
}

// GetUser returns a user with wallet summaries, looked up by userId or
// walletAddress query parameter.
func (s *UserService) GetUser(c *fiber.Ctx) error {
	userID := c.Query("userId")
	walletAddress := c.Query("walletAddress")

	if userID == "" && walletAddress == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Provide at least one filter: userId or walletAddress.",
		})
	}

	user, err := findUserByIdentifier(s.DB, userID, walletAddress)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "User not found."})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to fetch user."})
	}

	var wallets []models.Wallet
	if err := s.DB.Where("owner_id = ?", user.ID).Find(&wallets).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to fetch user."})
	}

	summaries := make([]models.WalletSummary, len(wallets))
	for i, w := range wallets {
		summaries[i] = models.WalletSummary{
			WalletSource: w.WalletSource,
			Name:         w.Name,
			PublicKey:    w.PublicKey,
			Active:       w.Active,
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"user": fiber.Map{
			"id":               user.ID,
			"walletAddress":    user.WalletAddress,
			"fullName":         user.FullName,
			"firstName":        user.FirstName,
			"lastName":         user.LastName,
			"username":         user.Username,
			"email":            user.Email,
			"phone":            user.Phone,
			"authMethod":       user.AuthMethod,
			"profilePicture":   user.ProfilePicture,
			"points":           user.Points,
			"earlyAccess":      user.EarlyAccess,
			"telegramChatId":   user.TelegramChatID,
			"telegramUsername": user.TelegramUsername,
			"createdAt":        user.CreatedAt,
			"wallets":          summaries,
		},
	})
}

// startOfWeek truncates t to Monday 00:00 in t's location.
func startOfWeek(t time.Time) time.Time {
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return midnight.AddDate(0, 0, -daysSinceMonday)
}

// GetUsersWithStats lists users (paginated, newest first, optional
// case-insensitive search on username/fullName) together with signup stats.
// Growth percent is defined as 100 when last week had no signups.
func (s *UserService) GetUsersWithStats(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	if limit < 1 {
		limit = 10
	}
	search := c.Query("search")

	q := s.DB.Model(&models.User{})
	if search != "" {
		term := "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
		q = q.Where("LOWER(username) LIKE ? OR LOWER(full_name) LIKE ?", term, term)
	}

	var users []models.User
	if err := q.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&users).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to fetch users."})
	}

	type userRow struct {
		ID             string    `json:"id"`
		FullName       string    `json:"fullName"`
		FirstName      string    `json:"firstName"`
		LastName       string    `json:"lastName"`
		Points         int64     `json:"points"`
		Phone          string    `json:"phone"`
		ProfilePicture string    `json:"profilePicture"`
		CreatedAt      time.Time `json:"createdAt"`
		EarlyAccess    bool      `json:"earlyAccess"`
	}
	rows := make([]userRow, len(users))
	for i, u := range users {
		rows[i] = userRow{
			ID: u.ID, FullName: u.FullName, FirstName: u.FirstName, LastName: u.LastName,
			Points: u.Points, Phone: u.Phone, ProfilePicture: u.ProfilePicture,
			CreatedAt: u.CreatedAt, EarlyAccess: u.EarlyAccess,
		}
	}

	var total int64
	if err := s.DB.Model(&models.User{}).Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to fetch users."})
	}

	now := time.Now()
	thisWeekStart := startOfWeek(now)
	lastWeekStart := thisWeekStart.AddDate(0, 0, -7)
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var thisWeek, lastWeek, today int64
	s.DB.Model(&models.User{}).Where("created_at >= ?", thisWeekStart).Count(&thisWeek)
	s.DB.Model(&models.User{}).Where("created_at >= ? AND created_at < ?", lastWeekStart, thisWeekStart).Count(&lastWeek)
	s.DB.Model(&models.User{}).Where("created_at >= ?", todayStart).Count(&today)

	growth := 100.0
	if lastWeek != 0 {
		growth = float64(thisWeek-lastWeek) / float64(lastWeek) * 100
	}
	growth = math.Round(growth*100) / 100

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"users": rows,
		"pagination": fiber.Map{
			"total": total,
			"page":  page,
			"limit": limit,
		},
		"stats": fiber.Map{
			"totalUsers":       total,
			"newUsersThisWeek": thisWeek,
			"newUsersLastWeek": lastWeek,
			"growthPercent":    growth,
			"usersToday":       today,
		},
	})
}

// GetUserTransactions returns a user's transactions, newest first, with an
// optional type filter.
func (s *UserService) GetUserTransactions(c *fiber.Ctx) error {
	userID := c.Query("userId")
	walletAddress := c.Query("walletAddress")
	if userID == "" && walletAddress == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Missing userId or walletAddress"})
	}

	user, err := findUserByIdentifier(s.DB, userID, walletAddress)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to fetch transactions."})
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	if limit < 1 {
		limit = 10
	}

	q := s.DB.Model(&models.Transaction{}).Where("user_id = ?", user.ID)
	if txType := c.Query("type"); txType != "" {
		q = q.Where("type = ?", txType)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to fetch transactions."})
	}

	var transactions []models.Transaction
	if err := q.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&transactions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to fetch transactions."})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"transactions": transactions,
		"pagination": fiber.Map{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

// AddWallet attaches an additional wallet to an existing user. Duplicate
// (owner, public key) pairs answer 409 whether caught by the pre-check or by
// the unique index.
func (s *UserService) AddWallet(c *fiber.Ctx) error {
	var body struct {
		UserID       string `json:"userId"`
		PublicKey    string `json:"publicKey"`
		WalletSource string `json:"walletSource"`
		Name         string `json:"name"`
		Chain        string `json:"chain"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body."})
	}
	if body.UserID == "" || body.PublicKey == "" || body.WalletSource == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Missing required wallet data"})
	}

	var user models.User
	if err := s.DB.First(&user, "id = ?", body.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to add wallet."})
	}

	publicKey := strings.ToLower(body.PublicKey)

	var count int64
	s.DB.Model(&models.Wallet{}).
		Where("owner_id = ? AND public_key = ?", user.ID, publicKey).
		Count(&count)
	if count > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "Wallet already exists for this user"})
	}

	name := body.Name
	if name == "" {
		name = body.WalletSource
	}
	chain := body.Chain
	if chain == "" {
		chain = "CHILIZ"
	}

	wallet := models.Wallet{
		ID:           uuid.NewString(),
		OwnerID:      user.ID,
		PublicKey:    publicKey,
		Name:         name,
		WalletSource: body.WalletSource,
		Chain:        chain,
	}
	if err := s.DB.Create(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "Wallet already exists for this user"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to add wallet."})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Wallet added", "wallet": wallet})
}

// CheckEarlyAccess reports whether the resolved user has early access.
func (s *UserService) CheckEarlyAccess(c *fiber.Ctx) error {
	userID := c.Query("userId")
	walletAddress := c.Query("walletAddress")
	if userID == "" && walletAddress == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Missing userId or walletAddress"})
	}

	user, err := findUserByIdentifier(s.DB, userID, walletAddress)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to check early access."})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"earlyAccess": user.EarlyAccess})
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// errCodeAlreadyUsed signals that a redeem transaction lost the race for an
// early-access code.
var errCodeAlreadyUsed = errors.New("early access code already used")

// generateAccessCode returns a random invitation code over an alphabet with
// no ambiguous characters.
func generateAccessCode(length int) string {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return strings.ToUpper(uuid.NewString()[:length])
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}

// GenerateCodes mints fresh early-access codes. Collisions with existing
// codes are retried a few times before giving up.
func (s *UserService) GenerateCodes(c *fiber.Ctx) error {
	count, _ := strconv.Atoi(c.Query("count", "1"))
	if count < 1 {
		count = 1
	}
	if count > 500 {
		count = 500
	}

	codes := make([]models.EarlyAccessCode, 0, count)
	for i := 0; i < count; i++ {
		var created *models.EarlyAccessCode
		for attempt := 0; attempt < 5; attempt++ {
			code := models.EarlyAccessCode{
				ID:   uuid.NewString(),
				Code: generateAccessCode(6),
			}
			err := s.DB.Create(&code).Error
			if err == nil {
				created = &code
				break
			}
			if !errors.Is(err, gorm.ErrDuplicatedKey) {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to generate codes."})
			}
		}
		if created == nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to generate codes."})
		}
		codes = append(codes, *created)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"codes": codes})
}

// SubmitCode redeems an early-access code for a wallet address. A code can
// be consumed exactly once; redemption flips early_access on every user
// registered under that wallet address.
func (s *UserService) SubmitCode(c *fiber.Ctx) error {
	var body struct {
		Code          string `json:"code"`
		WalletAddress string `json:"walletAddress"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body."})
	}
	if body.Code == "" || body.WalletAddress == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Code and wallet address are required."})
	}

	var code models.EarlyAccessCode
	if err := s.DB.Where("code = ?", body.Code).First(&code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Code not found or invalid."})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to redeem code."})
	}
	if code.Used {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "Code already used."})
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Guard against a concurrent redeem of the same code: the update
		// only applies while the row is still unused.
		res := tx.Model(&models.EarlyAccessCode{}).
			Where("code = ? AND used = ?", body.Code, false).
			Updates(map[string]interface{}{
				"used":    true,
				"used_at": time.Now(),
				"used_by": body.WalletAddress,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errCodeAlreadyUsed
		}
		return tx.Model(&models.User{}).
			Where("wallet_address = ?", body.WalletAddress).
			Update("early_access", true).Error
	})
	if err != nil {
		if errors.Is(err, errCodeAlreadyUsed) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "Code already used."})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to redeem code."})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

// LinkTelegram stores a chat id directly against a wallet address. This is
// the legacy manual path; the tokenized flow lives in TelegramService.
func (s *UserService) LinkTelegram(c *fiber.Ctx) error {
	var body struct {
		WalletAddress  string `json:"walletAddress"`
		TelegramChatID string `json:"telegramChatId"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body."})
	}
	if body.WalletAddress == "" || body.TelegramChatID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Missing walletAddress or telegramChatId."})
	}

	var user models.User
	if err := s.DB.Where("wallet_address = ?", body.WalletAddress).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "User not found."})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to link Telegram."})
	}

	if err := s.DB.Model(&user).Update("telegram_chat_id", body.TelegramChatID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to link Telegram."})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Telegram account linked successfully.",
		"userId":  user.ID,
	})
}

package services

import (
	"fmt"

	"yield-vault-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationService struct {
	DB *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

type broadcastRequest struct {
	VaultID string `json:"vaultId"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Type    string `json:"type"`
	Link    string `json:"link"`
}

// fanOut creates one notification row per user id.
func (s *NotificationService) fanOut(userIDs []string, req broadcastRequest) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]models.Notification, len(userIDs))
	for i, id := range userIDs {
		rows[i] = models.Notification{
			ID:     uuid.NewString(),
			UserID: id,
			Title:  req.Title,
			Body:   req.Body,
			Type:   req.Type,
			Link:   req.Link,
		}
	}
	return s.DB.Create(&rows).Error
}

// NotifyParticipants notifies every distinct user that has interacted with
// the vault. A user with several interactions still gets exactly one row.
func (s *NotificationService) NotifyParticipants(c *fiber.Ctx) error {
	var body broadcastRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body."})
	}
	if body.VaultID == "" || body.Title == "" || body.Type == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "vaultId, title, and type are required."})
	}

	var userIDs []string
	if err := s.DB.Model(&models.VaultInteraction{}).
		Where("vault_id = ?", body.VaultID).
		Distinct("user_id").
		Pluck("user_id", &userIDs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to send notifications."})
	}

	if err := s.fanOut(userIDs, body); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to send notifications."})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": fmt.Sprintf("Notification sent to %d depositors.", len(userIDs)),
	})
}

// NotifyFollowers notifies every follower of the vault. Deliberately not
// deduplicated against the participants broadcast: the two operations are
// independent and a follower who also interacted may receive both.
func (s *NotificationService) NotifyFollowers(c *fiber.Ctx) error {
	var body broadcastRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request body."})
	}
	if body.VaultID == "" || body.Title == "" || body.Type == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "vaultId, title, and type are required."})
	}

	var userIDs []string
	if err := s.DB.Model(&models.Follow{}).
		Where("vault_id = ?", body.VaultID).
		Pluck("user_id", &userIDs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to send notifications."})
	}

	if err := s.fanOut(userIDs, body); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to send notifications."})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": fmt.Sprintf("Notification sent to %d followers.", len(userIDs)),
	})
}

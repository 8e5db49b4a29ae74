package models

import "time"

// Notification is one in-app notification row, created by the vault
// broadcast endpoints (one row per targeted user).
type Notification struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"index;not null" json:"userId"`
	Title     string    `gorm:"not null" json:"title"`
	Body      string    `json:"body,omitempty"`
	Type      string    `gorm:"not null" json:"type"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

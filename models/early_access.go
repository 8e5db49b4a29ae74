package models

import "time"

// EarlyAccessCode is a single-use invitation code. Redemption marks it used
// and flips early_access on every user registered with the redeeming wallet.
type EarlyAccessCode struct {
	ID        string     `gorm:"primaryKey" json:"id"`
	Code      string     `gorm:"uniqueIndex;not null" json:"code"`
	Used      bool       `gorm:"default:false" json:"used"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	UsedBy    string     `json:"usedBy,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

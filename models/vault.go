package models

import "time"

// Vault is a tracked yield-generating contract. Data only: nothing here
// executes on chain. ContractAddress is the idempotency key for
// registration.
type Vault struct {
	ID              string  `gorm:"primaryKey" json:"id"`
	ContractAddress string  `gorm:"uniqueIndex;not null" json:"contractAddress"`
	Name            string  `gorm:"not null" json:"name"`
	Slug            string  `gorm:"index" json:"slug"`
	Description     string  `json:"description,omitempty"`
	Tag             string  `json:"tag,omitempty"`
	Asset           string  `json:"asset,omitempty"`
	LogoURL         string  `json:"logoUrl,omitempty"`
	Network         string  `gorm:"not null" json:"network"`
	TVL             float64 `gorm:"column:tvl" json:"tvl"`
	APY             float64 `gorm:"column:apy" json:"apy"`
	RiskLevel       string  `json:"riskLevel,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Strategies   []Strategy         `gorm:"many2many:vault_strategies" json:"strategies,omitempty"`
	Followers    []Follow           `gorm:"foreignKey:VaultID" json:"-"`
	Interactions []VaultInteraction `gorm:"foreignKey:VaultID" json:"-"`
	Metrics      []VaultMetric      `gorm:"foreignKey:VaultID" json:"metrics,omitempty"`
}

// Strategy is a named yield strategy, attachable to many vaults.
type Strategy struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	Type      string    `gorm:"default:'fixed'" json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// VaultMetric is one APY observation, appended by the on-chain refresh job.
type VaultMetric struct {
	ID      string    `gorm:"primaryKey" json:"-"`
	VaultID string    `gorm:"index;not null" json:"-"`
	APY     float64   `gorm:"column:apy" json:"apy"`
	Date    time.Time `json:"date"`
}

// Follow links a user to a vault. The composite unique index makes repeat
// follows a no-op at the schema level, not just in the handler pre-check.
type Follow struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"uniqueIndex:idx_follow_user_vault;not null" json:"userId"`
	VaultID   string    `gorm:"uniqueIndex:idx_follow_user_vault;not null" json:"vaultId"`
	CreatedAt time.Time `json:"createdAt"`
}

// VaultInteraction records that a user engaged with a vault (deposit,
// withdrawal, simulation). Deliberately not unique: the same user may
// interact many times, and notification fan-out deduplicates at query time.
type VaultInteraction struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"index;not null" json:"userId"`
	VaultID   string    `gorm:"index;not null" json:"vaultId"`
	CreatedAt time.Time `json:"createdAt"`
}

package models

import "time"

// User is the account record keyed by the auth provider's wallet address.
// Telegram linking state lives directly on the user row: an issued
// tg_auth_token means "token issued, waiting for /start"; a set
// telegram_chat_id with no token means "linked".
type User struct {
	ID             string `gorm:"primaryKey" json:"id"`
	WalletAddress  string `gorm:"uniqueIndex;not null" json:"walletAddress"`
	FullName       string `json:"fullName,omitempty"`
	FirstName      string `json:"firstName,omitempty"`
	LastName       string `json:"lastName,omitempty"`
	Username       string `gorm:"index" json:"username,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	AuthMethod     string `json:"authMethod,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`

	Points      int64 `gorm:"default:0" json:"points"`
	EarlyAccess bool  `gorm:"default:false" json:"earlyAccess"`

	TelegramChatID      string     `json:"telegramChatId,omitempty"`
	TelegramUsername    string     `json:"telegramUsername,omitempty"`
	TgAuthToken         *string    `gorm:"index" json:"-"`
	TgAuthTokenIssuedAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Wallets       []Wallet       `gorm:"foreignKey:OwnerID" json:"wallets,omitempty"`
	Follows       []Follow       `gorm:"foreignKey:UserID" json:"-"`
	Transactions  []Transaction  `gorm:"foreignKey:UserID" json:"-"`
	Notifications []Notification `gorm:"foreignKey:UserID" json:"-"`
}

// Wallet is one public key attached to a user. PublicKey is stored
// lower-cased; the (owner_id, public_key) pair is unique at the schema
// level so concurrent adds cannot double-insert.
type Wallet struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	OwnerID      string    `gorm:"uniqueIndex:idx_wallet_owner_key;not null" json:"ownerId"`
	PublicKey    string    `gorm:"uniqueIndex:idx_wallet_owner_key;not null" json:"publicKey"`
	Name         string    `json:"name"`
	WalletSource string    `json:"walletSource"`
	Chain        string    `gorm:"default:'CHILIZ'" json:"chain"`
	Active       bool      `gorm:"default:true" json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// WalletSummary is the projection of a wallet embedded in user responses.
type WalletSummary struct {
	WalletSource string `json:"walletSource"`
	Name         string `json:"name"`
	PublicKey    string `json:"publicKey"`
	Active       bool   `json:"active"`
}

type Transaction struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	UserID        string    `gorm:"index;not null" json:"userId"`
	Type          string    `gorm:"index" json:"type"`
	Amount        float64   `json:"amount"`
	Token         string    `json:"token"`
	Description   string    `json:"description,omitempty"`
	TransactionID string    `json:"transactionId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

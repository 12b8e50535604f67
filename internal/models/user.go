package models

import (
	"time"
)

type User struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	WalletAddress string    `json:"walletAddress" gorm:"uniqueIndex;size:42;not null"` // lowercase
	Email         string    `json:"email" gorm:"not null"`
	Nonce         string    `json:"-" gorm:"size:64"`
	CreatedAt     time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// PlaceholderEmail is the synthetic address stored for wallet-only users.
func PlaceholderEmail(wallet string) string {
	return wallet + "@wallet.local"
}

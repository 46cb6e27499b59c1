package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User maps to the `user` table.
// Keyed by the internal ID; TelegramID is the chat identity.
type User struct {
	ID               uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TelegramID       int64           `gorm:"column:telegram_id;uniqueIndex" json:"telegram_id"`
	Username         string          `gorm:"column:username;size:64" json:"username"`
	FirstName        string          `gorm:"column:first_name;size:128" json:"first_name"`
	LastName         string          `gorm:"column:last_name;size:128" json:"last_name"`
	IsAdmin          bool            `gorm:"column:is_admin;default:false" json:"is_admin"`
	IsBlocked        bool            `gorm:"column:is_blocked;default:false" json:"is_blocked"`
	WalletBalance    decimal.Decimal `gorm:"column:wallet_balance;type:decimal(18,2);default:0" json:"wallet_balance"`
	ReferredByUserID *uint           `gorm:"column:referred_by_user_id" json:"referred_by_user_id,omitempty"`
	ReferralCode     string          `gorm:"column:referral_code;size:32" json:"referral_code,omitempty"`
	CreatedAt        time.Time       `gorm:"column:created_at" json:"created_at"`
	LastSeenAt       *time.Time      `gorm:"column:last_seen_at" json:"last_seen_at,omitempty"`
}

func (User) TableName() string {
	return "user"
}

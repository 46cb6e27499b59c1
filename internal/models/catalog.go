package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Server maps to the `server` table. Each server declares which panel
// backend provisions it.
type Server struct {
	ID            uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name          string `gorm:"column:name;size:64;uniqueIndex" json:"name"`
	APIBaseURL    string `gorm:"column:api_base_url;size:256" json:"api_base_url"`
	APIKey        string `gorm:"column:api_key;size:256" json:"-"`
	PanelUsername string `gorm:"column:panel_username;size:128" json:"-"`
	PanelPassword string `gorm:"column:panel_password;size:128" json:"-"`
	PanelType     string `gorm:"column:panel_type;size:16;default:'mock'" json:"panel_type"`
	InboundID     int    `gorm:"column:inbound_id;default:0" json:"inbound_id"`
	IsActive      bool   `gorm:"column:is_active;default:true" json:"is_active"`
}

func (Server) TableName() string {
	return "server"
}

// Plan maps to the `plan` table.
type Plan struct {
	ID           uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ServerID     uint            `gorm:"column:server_id" json:"server_id"`
	Title        string          `gorm:"column:title;size:64" json:"title"`
	Description  string          `gorm:"column:description;size:256" json:"description,omitempty"`
	PriceIRR     decimal.Decimal `gorm:"column:price_irr;type:decimal(18,2)" json:"price_irr"`
	DurationDays int             `gorm:"column:duration_days;default:0" json:"duration_days"`
	TrafficGB    int             `gorm:"column:traffic_gb;default:0" json:"traffic_gb"`
	IsActive     bool            `gorm:"column:is_active;default:true" json:"is_active"`
}

func (Plan) TableName() string {
	return "plan"
}

// ReferralEvent maps to the `referral_event` table.
// One row per referral bonus credited to a referrer's wallet.
type ReferralEvent struct {
	ID             uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ReferrerUserID uint            `gorm:"column:referrer_user_id;index" json:"referrer_user_id"`
	BuyerUserID    uint            `gorm:"column:buyer_user_id" json:"buyer_user_id"`
	BonusAmount    decimal.Decimal `gorm:"column:bonus_amount;type:decimal(18,2)" json:"bonus_amount"`
	Description    string          `gorm:"column:description;size:256" json:"description,omitempty"`
	CreatedAt      time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (ReferralEvent) TableName() string {
	return "referral_event"
}

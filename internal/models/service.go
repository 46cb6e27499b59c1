package models

import "time"

// Service maps to the `service` table.
// A provisioned instance on a remote panel, created only after payment settles.
type Service struct {
	ID              uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID          uint       `gorm:"column:user_id;index" json:"user_id"`
	ServerID        uint       `gorm:"column:server_id" json:"server_id"`
	PlanID          uint       `gorm:"column:plan_id" json:"plan_id"`
	Remark          string     `gorm:"column:remark;size:128" json:"remark"`
	UUID            string     `gorm:"column:uuid;size:64;index" json:"uuid"`
	SubscriptionURL string     `gorm:"column:subscription_url;size:1024" json:"subscription_url"`
	IsActive        bool       `gorm:"column:is_active;default:true" json:"is_active"`
	ExpiresAt       *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
	PurchasedAt     time.Time  `gorm:"column:purchased_at" json:"purchased_at"`
}

func (Service) TableName() string {
	return "service"
}

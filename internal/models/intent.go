package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseIntent statuses.
const (
	IntentStatusPending   = "pending"
	IntentStatusPaid      = "paid"
	IntentStatusCancelled = "cancelled"
)

// PurchaseIntent maps to the `purchase_intent` table.
// Created before payment, settled exactly once, never deleted mid-flow.
type PurchaseIntent struct {
	ID                   uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID               uint            `gorm:"column:user_id;index" json:"user_id"`
	PlanID               uint            `gorm:"column:plan_id" json:"plan_id"`
	ServerID             uint            `gorm:"column:server_id" json:"server_id"`
	AmountTotal          decimal.Decimal `gorm:"column:amount_total;type:decimal(18,2)" json:"amount_total"`
	AmountPaidWallet     decimal.Decimal `gorm:"column:amount_paid_wallet;type:decimal(18,2);default:0" json:"amount_paid_wallet"`
	AmountDueReceipt     decimal.Decimal `gorm:"column:amount_due_receipt;type:decimal(18,2);default:0" json:"amount_due_receipt"`
	Status               string          `gorm:"column:status;size:16;default:'pending'" json:"status"`
	ReceiptTransactionID *uint           `gorm:"column:receipt_transaction_id" json:"receipt_transaction_id,omitempty"`
	CreatedAt            time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (PurchaseIntent) TableName() string {
	return "purchase_intent"
}

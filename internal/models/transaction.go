package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction kinds.
const (
	TxKindWalletTopup = "wallet_topup"
	TxKindPurchase    = "purchase"
	TxKindTransfer    = "transfer"
)

// Transaction statuses. Pending is the only non-terminal state.
const (
	TxStatusPending  = "pending"
	TxStatusApproved = "approved"
	TxStatusRejected = "rejected"
)

// Transaction maps to the `transaction` table.
// Amount is signed: positive credits the wallet, negative debits it.
type Transaction struct {
	ID                uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID            uint            `gorm:"column:user_id;index" json:"user_id"`
	Amount            decimal.Decimal `gorm:"column:amount;type:decimal(18,2)" json:"amount"`
	Currency          string          `gorm:"column:currency;size:8;default:'IRR'" json:"currency"`
	Kind              string          `gorm:"column:kind;size:32" json:"kind"`
	Status            string          `gorm:"column:status;size:32;default:'pending'" json:"status"`
	Description       string          `gorm:"column:description;size:512" json:"description"`
	ReceiptRef        string          `gorm:"column:receipt_ref;size:256;index" json:"receipt_ref,omitempty"`
	FraudScore        float64         `gorm:"column:fraud_score;default:0" json:"fraud_score"`
	Gateway           string          `gorm:"column:gateway;size:32" json:"gateway"`
	PurchaseIntentID  *uint           `gorm:"column:purchase_intent_id" json:"purchase_intent_id,omitempty"`
	BonusAmount       decimal.Decimal `gorm:"column:bonus_amount;type:decimal(18,2);default:0" json:"bonus_amount"`
	ApprovedByAdminID *int64          `gorm:"column:approved_by_admin_id" json:"approved_by_admin_id,omitempty"`
	ApprovedAt        *time.Time      `gorm:"column:approved_at" json:"approved_at,omitempty"`
	RejectedReason    string          `gorm:"column:rejected_reason;size:512" json:"rejected_reason,omitempty"`
	CreatedAt         time.Time       `gorm:"column:created_at;index" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transaction"
}

// IsPending reports whether the transaction can still transition.
func (t *Transaction) IsPending() bool {
	return t.Status == TxStatusPending
}

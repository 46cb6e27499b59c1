package models

// PaymentCard maps to the `payment_card` table.
// Destination card shown to the payer for card-to-card transfers.
// Read-only from the settlement core's perspective.
type PaymentCard struct {
	ID         uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	HolderName string `gorm:"column:holder_name;size:128" json:"holder_name"`
	CardNumber string `gorm:"column:card_number;size:32" json:"card_number"`
	BankName   string `gorm:"column:bank_name;size:64" json:"bank_name,omitempty"`
	Active     bool   `gorm:"column:active;default:true" json:"active"`
	IsPrimary  bool   `gorm:"column:is_primary;default:false" json:"is_primary"`
	SortOrder  int    `gorm:"column:sort_order;default:0" json:"sort_order"`
}

func (PaymentCard) TableName() string {
	return "payment_card"
}

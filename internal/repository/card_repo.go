package repository

import (
	"gorm.io/gorm"

	"vendbot/internal/models"
)

// CardRepository handles payment card reads.
type CardRepository struct {
	db *gorm.DB
}

func NewCardRepository(db *gorm.DB) *CardRepository {
	return &CardRepository{db: db}
}

// FindActive returns active cards, primary first, then by sort order.
func (r *CardRepository) FindActive() ([]models.PaymentCard, error) {
	var cards []models.PaymentCard
	err := r.db.Where("active = ?", true).
		Order("is_primary DESC, sort_order, id").Find(&cards).Error
	return cards, err
}

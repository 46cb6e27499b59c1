package repository

import (
	"errors"

	"gorm.io/gorm"

	"vendbot/internal/models"
)

// IntentRepository handles purchase intent database operations.
type IntentRepository struct {
	db *gorm.DB
}

func NewIntentRepository(db *gorm.DB) *IntentRepository {
	return &IntentRepository{db: db}
}

// Create inserts a new purchase intent.
func (r *IntentRepository) Create(intent *models.PurchaseIntent) error {
	return r.db.Create(intent).Error
}

// FindByID finds an intent by ID.
func (r *IntentRepository) FindByID(id uint) (*models.PurchaseIntent, error) {
	var intent models.PurchaseIntent
	if err := r.db.Where("id = ?", id).First(&intent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &intent, nil
}

// Update updates intent fields.
func (r *IntentRepository) Update(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.PurchaseIntent{}).Where("id = ?", id).Updates(updates).Error
}

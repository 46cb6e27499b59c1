package repository

import (
	"errors"

	"gorm.io/gorm"

	"vendbot/internal/models"
)

// CatalogRepository handles plan and server reads.
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// FindPlan finds a plan by ID.
func (r *CatalogRepository) FindPlan(id uint) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.Where("id = ?", id).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// FindServer finds a server by ID.
func (r *CatalogRepository) FindServer(id uint) (*models.Server, error) {
	var server models.Server
	if err := r.db.Where("id = ?", id).First(&server).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &server, nil
}

// ReferralRepository records referral bonus events.
type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// Create inserts a referral event.
func (r *ReferralRepository) Create(ev *models.ReferralEvent) error {
	return r.db.Create(ev).Error
}

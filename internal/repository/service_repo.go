package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"vendbot/internal/models"
)

// ServiceRepository handles provisioned service database operations.
type ServiceRepository struct {
	db *gorm.DB
}

func NewServiceRepository(db *gorm.DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

// Create inserts a new service record.
func (r *ServiceRepository) Create(svc *models.Service) error {
	return r.db.Create(svc).Error
}

// FindByID finds a service by ID.
func (r *ServiceRepository) FindByID(id uint) (*models.Service, error) {
	var svc models.Service
	if err := r.db.Where("id = ?", id).First(&svc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &svc, nil
}

// FindByUUID finds a service by its remote identifier.
func (r *ServiceRepository) FindByUUID(uuid string) (*models.Service, error) {
	var svc models.Service
	if err := r.db.Where("uuid = ?", uuid).First(&svc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &svc, nil
}

// FindByUserID returns all services owned by a user.
func (r *ServiceRepository) FindByUserID(userID uint) ([]models.Service, error) {
	var svcs []models.Service
	err := r.db.Where("user_id = ?", userID).Order("purchased_at DESC").Find(&svcs).Error
	return svcs, err
}

// FindExpired returns active services whose expiry has passed.
func (r *ServiceRepository) FindExpired(now time.Time) ([]models.Service, error) {
	var svcs []models.Service
	err := r.db.Where("is_active = ? AND expires_at IS NOT NULL AND expires_at < ?", true, now).
		Find(&svcs).Error
	return svcs, err
}

// Update updates service fields.
func (r *ServiceRepository) Update(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.Service{}).Where("id = ?", id).Updates(updates).Error
}

// Delete removes a service record.
func (r *ServiceRepository) Delete(id uint) error {
	return r.db.Where("id = ?", id).Delete(&models.Service{}).Error
}

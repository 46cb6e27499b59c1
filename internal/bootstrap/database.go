package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"vendbot/internal/models"
)

// MigrateAndSeed ensures required tables exist and inserts baseline
// catalog rows so a fresh install can provision against the mock panel.
func MigrateAndSeed(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	if err := seedDefaults(db); err != nil {
		return fmt.Errorf("seed defaults failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Transaction{},
		&models.PurchaseIntent{},
		&models.Service{},
		&models.PaymentCard{},
		&models.Server{},
		&models.Plan{},
		&models.ReferralEvent{},
	}
}

func seedDefaults(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		return ensureDefaultServer(tx)
	})
}

func ensureDefaultServer(tx *gorm.DB) error {
	var count int64
	if err := tx.Model(&models.Server{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.Create(&models.Server{
		Name:      "default",
		PanelType: "mock",
		IsActive:  true,
	}).Error
}

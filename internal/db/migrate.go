package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/koguma/bearcourt/internal/models"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Case{},
		&models.Judgment{},
		&models.ReconciliationPlan{},
		&models.GuestSession{},
		&models.QuotaCounter{},
		&models.LockEntry{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

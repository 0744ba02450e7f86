package db

import (
	"errors"

	"github.com/careerpilot-ke/careerpilot/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema for every model the service owns.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.User{},
		&models.Admin{},
		&models.Subscription{},
		&models.ProviderConfig{},
		&models.UsageLog{},
		&models.CacheEntry{},
		&models.Setting{},
	)
}

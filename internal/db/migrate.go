package db

import (
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_jukebox/internal/models"
)

// Migrate applies schema migrations for all jukebox models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Source{},
		&models.WatchedVideo{},
		&models.AppState{},
	)
}

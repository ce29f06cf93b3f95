package initializers

import (
	"github.com/megafartCc/Roblex.io/internals/models"

	"gorm.io/gorm"
)

// SyncDatabase runs the idempotent startup migration: it creates the users
// table if absent and backfills any missing columns on existing installs.
func SyncDatabase(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
	)
}

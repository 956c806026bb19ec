package database

import (
	"fmt"
	"log/slog"

	"github.com/yukikurage/busybee/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the snapshot tables.
func Migrate(db *gorm.DB, log *slog.Logger) error {
	log.Info("running database migrations")
	err := db.AutoMigrate(
		&models.UserRecord{},
		&models.TaskRecord{},
		&models.ResponsibleRecord{},
		&models.CommentRecord{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database migrations completed")
	return nil
}

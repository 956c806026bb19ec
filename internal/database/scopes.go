package database

import "gorm.io/gorm"

// OrderByPosition restores the in-memory order of snapshot rows.
func OrderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

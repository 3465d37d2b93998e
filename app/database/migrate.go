package database

import (
	"ugc-forge/app/model"

	"gorm.io/gorm"
)

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.File{},
		&model.Pipeline{},
		&model.CreditCharge{},
	)
}

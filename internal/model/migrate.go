package model

import "gorm.io/gorm"

// AutoMigrate выполняет миграцию всех сущностей шлюза.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Provider{},
		&Fulfillment{},
		&Order{},
		&Event{},
	)
}

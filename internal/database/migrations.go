package database

import (
	"log"

	"gorm.io/gorm"
)

// RunMigrations runs data fixups that AutoMigrate cannot express.
func RunMigrations(db *gorm.DB) error {
	return normalizePrintingField(db)
}

// normalizePrintingField backfills empty printing values to 'Non-Foil' so the
// (product_id, printing) unique index never sees two spellings of the default.
// Safe to run repeatedly.
func normalizePrintingField(db *gorm.DB) error {
	if !db.Migrator().HasTable("price_snapshots") {
		return nil
	}

	result := db.Exec(`UPDATE price_snapshots SET printing = 'Non-Foil' WHERE printing IS NULL OR printing = ''`)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("Normalized printing on %d price_snapshots rows", result.RowsAffected)
	}

	return nil
}

package models

import (
	"time"
)

// Card is slowly-changing catalog metadata for a single product.
// Ingestion upserts it on every sighting; name/set/rarity are last-write-wins.
type Card struct {
	ProductID string    `json:"product_id" gorm:"primaryKey;column:product_id"`
	Name      string    `json:"name" gorm:"not null;index"`
	SetName   string    `json:"set_name"`
	Rarity    string    `json:"rarity" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

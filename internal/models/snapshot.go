package models

import (
	"time"
)

// PrintingType represents card printing variants from the JustTCG API
type PrintingType string

const (
	PrintingNonFoil PrintingType = "Non-Foil"
	PrintingFoil    PrintingType = "Foil"
)

// ChangeWindow selects which source-provided price delta a query reads.
type ChangeWindow string

const (
	Window24h ChangeWindow = "24h"
	Window7d  ChangeWindow = "7d"
)

// ParseChangeWindow maps user input to a ChangeWindow.
func ParseChangeWindow(s string) (ChangeWindow, bool) {
	switch s {
	case "24h", "24hr", "day":
		return Window24h, true
	case "7d", "week":
		return Window7d, true
	default:
		return "", false
	}
}

// PriceSnapshot is one stored price fact for a (product, printing) pair.
// The table holds exactly one ingestion run's output; every run replaces it
// wholesale inside a single transaction. Rows without a known market price
// are never stored, so MarketPrice is non-null while the deltas stay
// nullable (the upstream does not always provide them).
type PriceSnapshot struct {
	ID             uint         `json:"id" gorm:"primaryKey;autoIncrement"`
	ProductID      string       `json:"product_id" gorm:"not null;index;uniqueIndex:idx_product_printing"`
	Printing       PrintingType `json:"printing" gorm:"not null;default:'Non-Foil';uniqueIndex:idx_product_printing"`
	SnapshotDate   time.Time    `json:"snapshot_date" gorm:"not null;index"`
	MarketPrice    float64      `json:"market_price" gorm:"not null"`
	PriceChange24h *float64     `json:"price_change_24h,omitempty" gorm:"column:price_change_24h"`
	PriceChange7d  *float64     `json:"price_change_7d,omitempty" gorm:"column:price_change_7d"`
	CreatedAt      time.Time    `json:"created_at"`
}

// SnapshotRow is a normalized row candidate headed for the store. Numeric
// fields stay NullFloat so "unknown" never collapses into zero; the store
// drops candidates whose price is absent at write time.
type SnapshotRow struct {
	ProductID string
	Name      string
	SetName   string
	Rarity    string
	Printing  PrintingType
	Price     NullFloat
	Change24h NullFloat
	Change7d  NullFloat
}

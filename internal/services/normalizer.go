package services

import (
	"encoding/json"
	"strings"

	"github.com/codyseavey/riftbound-tracker/backend/internal/models"
)

// NormalizeCards flattens fetched cards into snapshot row candidates: one row
// per (card, printing), keeping absent prices so the store decides what gets
// persisted. When a printing appears under several conditions the Near Mint
// variant is canonical, otherwise the first one listed. A card with no
// variants, or a variants field that is not a list, contributes zero rows.
func NormalizeCards(cards []RawCard) []models.SnapshotRow {
	rows := make([]models.SnapshotRow, 0, len(cards))

	for _, card := range cards {
		if len(card.Variants) == 0 {
			continue
		}
		var variants []RawVariant
		if err := json.Unmarshal(card.Variants, &variants); err != nil {
			continue
		}

		seen := make(map[models.PrintingType]keptVariant)
		for _, v := range variants {
			printing := NormalizePrinting(v.Printing)
			row := models.SnapshotRow{
				ProductID: card.ID,
				Name:      card.Name,
				SetName:   card.SetName,
				Rarity:    card.Rarity,
				Printing:  printing,
				Price:     v.Price,
				Change24h: v.PriceChange24h,
				Change7d:  v.PriceChange7d,
			}

			kept, ok := seen[printing]
			if !ok {
				seen[printing] = keptVariant{idx: len(rows), nearMint: isNearMint(v.Condition)}
				rows = append(rows, row)
				continue
			}
			// A Near Mint variant displaces a non-NM one; the first NM wins
			// over later NM listings.
			if !kept.nearMint && isNearMint(v.Condition) {
				rows[kept.idx] = row
				kept.nearMint = true
				seen[printing] = kept
			}
		}
	}

	return rows
}

// NormalizePrinting maps upstream printing tags onto our PrintingType,
// defaulting to Non-Foil when the variant omits one.
func NormalizePrinting(printing string) models.PrintingType {
	p := strings.TrimSpace(printing)
	switch strings.ToLower(p) {
	case "", "normal", "non-foil", "nonfoil":
		return models.PrintingNonFoil
	case "foil":
		return models.PrintingFoil
	default:
		return models.PrintingType(p)
	}
}

// keptVariant records which rows slot a printing occupies and whether that
// row already came from a Near Mint variant.
type keptVariant struct {
	idx      int
	nearMint bool
}

func isNearMint(condition string) bool {
	switch strings.ToUpper(strings.TrimSpace(condition)) {
	case "NM", "NEAR MINT":
		return true
	default:
		return false
	}
}

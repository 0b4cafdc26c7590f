package services

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codyseavey/riftbound-tracker/backend/internal/models"
)

// ErrEmptySnapshot is returned when a run produced no rows with a known
// price. A full replace with zero rows would wipe the only snapshot we have,
// so the write is refused and the prior snapshot stays authoritative.
var ErrEmptySnapshot = errors.New("snapshot has no rows with a known price")

const snapshotInsertBatchSize = 200

// SnapshotStore persists card metadata and the single current price
// snapshot. Writes are full replacements inside one transaction, so readers
// always observe a complete run's output.
type SnapshotStore struct {
	db *gorm.DB
}

func NewSnapshotStore(db *gorm.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// PriceRow is one snapshot row joined with its card metadata, returned to
// callers in storage order. Nil deltas mean the upstream did not provide
// one, which is distinct from a delta of zero.
type PriceRow struct {
	ProductID      string              `json:"product_id"`
	Name           string              `json:"name"`
	SetName        string              `json:"set_name"`
	Rarity         string              `json:"rarity"`
	Printing       models.PrintingType `json:"printing"`
	MarketPrice    float64             `json:"market_price"`
	PriceChange24h *float64            `json:"price_change_24h,omitempty"`
	PriceChange7d  *float64            `json:"price_change_7d,omitempty"`
}

// ChangeFor returns the delta for the requested window, nil when unknown.
func (r PriceRow) ChangeFor(window models.ChangeWindow) *float64 {
	if window == models.Window7d {
		return r.PriceChange7d
	}
	return r.PriceChange24h
}

// WriteSnapshot replaces the entire stored snapshot with the candidates that
// carry a known price, upserting card metadata in the same transaction.
// Candidates with an absent price are skipped, never stored. On any error
// the transaction rolls back and the prior snapshot remains visible.
// Returns the number of rows stored.
func (s *SnapshotStore) WriteSnapshot(rows []models.SnapshotRow, date time.Time) (int, error) {
	day := TruncateToDay(date)

	cardsByID := make(map[string]models.Card)
	snapshots := make([]models.PriceSnapshot, 0, len(rows))
	for _, r := range rows {
		if !r.Price.Valid {
			continue
		}
		cardsByID[r.ProductID] = models.Card{
			ProductID: r.ProductID,
			Name:      r.Name,
			SetName:   r.SetName,
			Rarity:    r.Rarity,
		}
		snapshots = append(snapshots, models.PriceSnapshot{
			ProductID:      r.ProductID,
			Printing:       r.Printing,
			SnapshotDate:   day,
			MarketPrice:    r.Price.Float64,
			PriceChange24h: r.Change24h.Ptr(),
			PriceChange7d:  r.Change7d.Ptr(),
		})
	}

	if len(snapshots) == 0 {
		return 0, ErrEmptySnapshot
	}

	cards := make([]models.Card, 0, len(cardsByID))
	for _, c := range cardsByID {
		cards = append(cards, c)
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].ProductID < cards[j].ProductID })

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.PriceSnapshot{}).Error; err != nil {
			return err
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "set_name", "rarity", "updated_at"}),
		}).CreateInBatches(&cards, snapshotInsertBatchSize).Error; err != nil {
			return err
		}

		return tx.CreateInBatches(&snapshots, snapshotInsertBatchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("snapshot write failed: %w", err)
	}

	return len(snapshots), nil
}

// LatestSnapshotDate returns the as-of date of the current snapshot, or nil
// when no snapshot exists yet.
func (s *SnapshotStore) LatestSnapshotDate() (*time.Time, error) {
	var snap models.PriceSnapshot
	err := s.db.Select("snapshot_date").Order("snapshot_date DESC").First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap.SnapshotDate, nil
}

// currentRowRecord carries the snapshot date alongside each scanned row so
// the date and the row set come from one statement.
type currentRowRecord struct {
	ProductID      string
	Name           string
	SetName        string
	Rarity         string
	Printing       models.PrintingType
	MarketPrice    float64
	PriceChange24h *float64 `gorm:"column:price_change_24h"`
	PriceChange7d  *float64 `gorm:"column:price_change_7d"`
	SnapshotDate   time.Time
}

// CurrentRows returns every row of the current snapshot joined with card
// metadata, ordered by insertion so ranking ties keep storage order, plus
// the snapshot's as-of date. A single query keeps the date consistent with
// the rows when a write lands concurrently. A missing snapshot yields
// (nil, nil, nil).
func (s *SnapshotStore) CurrentRows() ([]PriceRow, *time.Time, error) {
	var records []currentRowRecord
	err := s.db.Table("price_snapshots").
		Select(`price_snapshots.product_id, cards.name, cards.set_name, cards.rarity,
			price_snapshots.printing, price_snapshots.market_price,
			price_snapshots.price_change_24h, price_snapshots.price_change_7d,
			price_snapshots.snapshot_date`).
		Joins("LEFT JOIN cards ON cards.product_id = price_snapshots.product_id").
		Order("price_snapshots.id ASC").
		Scan(&records).Error
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	rows := make([]PriceRow, len(records))
	for i, rec := range records {
		rows[i] = PriceRow{
			ProductID:      rec.ProductID,
			Name:           rec.Name,
			SetName:        rec.SetName,
			Rarity:         rec.Rarity,
			Printing:       rec.Printing,
			MarketPrice:    rec.MarketPrice,
			PriceChange24h: rec.PriceChange24h,
			PriceChange7d:  rec.PriceChange7d,
		}
	}
	date := records[0].SnapshotDate
	return rows, &date, nil
}

// TruncateToDay drops time-of-day so one calendar day maps to one snapshot
// date.
func TruncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

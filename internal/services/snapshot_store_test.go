package services

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/codyseavey/riftbound-tracker/backend/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A named shared in-memory database so the pool's connections all see
	// the same data, unique per test.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Card{}, &models.PriceSnapshot{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func testRow(productID, name, rarity string, printing models.PrintingType, price models.NullFloat, change24h, change7d models.NullFloat) models.SnapshotRow {
	return models.SnapshotRow{
		ProductID: productID,
		Name:      name,
		SetName:   "Origins",
		Rarity:    rarity,
		Printing:  printing,
		Price:     price,
		Change24h: change24h,
		Change7d:  change7d,
	}
}

func snapshotCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.PriceSnapshot{}).Count(&count).Error; err != nil {
		t.Fatalf("Failed to count snapshots: %v", err)
	}
	return count
}

func TestWriteSnapshotStoresRows(t *testing.T) {
	store := NewSnapshotStore(setupTestDB(t))
	date := time.Date(2026, 9, 1, 14, 30, 0, 0, time.UTC)

	rows := []models.SnapshotRow{
		testRow("c1", "Dragonling", "Rare", models.PrintingNonFoil, models.NewNullFloat(3.5), models.NewNullFloat(0.5), models.NullFloat{}),
		testRow("c1", "Dragonling", "Rare", models.PrintingFoil, models.NewNullFloat(9.0), models.NullFloat{}, models.NullFloat{}),
		testRow("c2", "Stone Dragon", "Common", models.PrintingNonFoil, models.NewNullFloat(0.25), models.NewNullFloat(-0.05), models.NewNullFloat(0.1)),
	}

	stored, err := store.WriteSnapshot(rows, date)
	if err != nil {
		t.Fatalf("WriteSnapshot returned error: %v", err)
	}
	if stored != 3 {
		t.Errorf("Expected 3 rows stored, got %d", stored)
	}

	latest, err := store.LatestSnapshotDate()
	if err != nil {
		t.Fatalf("LatestSnapshotDate returned error: %v", err)
	}
	want := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if latest == nil || !latest.Equal(want) {
		t.Errorf("Expected snapshot date %v, got %v", want, latest)
	}

	current, _, err := store.CurrentRows()
	if err != nil {
		t.Fatalf("CurrentRows returned error: %v", err)
	}
	if len(current) != 3 {
		t.Fatalf("Expected 3 current rows, got %d", len(current))
	}
	if current[0].Name != "Dragonling" || current[0].MarketPrice != 3.5 {
		t.Errorf("Unexpected first row: %+v", current[0])
	}
	if current[1].PriceChange24h != nil {
		t.Error("Absent delta should read back as nil")
	}
	if current[2].PriceChange24h == nil || *current[2].PriceChange24h != -0.05 {
		t.Errorf("Expected 24h change -0.05, got %v", current[2].PriceChange24h)
	}
}

func TestWriteSnapshotSkipsAbsentPrice(t *testing.T) {
	store := NewSnapshotStore(setupTestDB(t))

	rows := []models.SnapshotRow{
		testRow("c1", "Dragonling", "Rare", models.PrintingNonFoil, models.NewNullFloat(3.5), models.NullFloat{}, models.NullFloat{}),
		testRow("c2", "Stone Dragon", "Common", models.PrintingNonFoil, models.NullFloat{}, models.NewNullFloat(1.0), models.NullFloat{}),
	}

	stored, err := store.WriteSnapshot(rows, time.Now())
	if err != nil {
		t.Fatalf("WriteSnapshot returned error: %v", err)
	}
	if stored != 1 {
		t.Errorf("Expected 1 row stored, got %d", stored)
	}

	current, _, err := store.CurrentRows()
	if err != nil {
		t.Fatalf("CurrentRows returned error: %v", err)
	}
	for _, r := range current {
		if r.ProductID == "c2" {
			t.Error("Row with absent price should never be stored")
		}
	}
}

func TestWriteSnapshotReplacesPriorSnapshot(t *testing.T) {
	db := setupTestDB(t)
	store := NewSnapshotStore(db)

	first := []models.SnapshotRow{
		testRow("c1", "Dragonling", "Rare", models.PrintingNonFoil, models.NewNullFloat(3.5), models.NullFloat{}, models.NullFloat{}),
		testRow("c2", "Stone Dragon", "Common", models.PrintingNonFoil, models.NewNullFloat(0.25), models.NullFloat{}, models.NullFloat{}),
		testRow("c3", "River Sprite", "Common", models.PrintingNonFoil, models.NewNullFloat(1.0), models.NullFloat{}, models.NullFloat{}),
	}
	if _, err := store.WriteSnapshot(first, time.Now().AddDate(0, 0, -1)); err != nil {
		t.Fatalf("First WriteSnapshot returned error: %v", err)
	}

	second := []models.SnapshotRow{
		testRow("c1", "Dragonling", "Rare", models.PrintingNonFoil, models.NewNullFloat(4.0), models.NullFloat{}, models.NullFloat{}),
	}
	if _, err := store.WriteSnapshot(second, time.Now()); err != nil {
		t.Fatalf("Second WriteSnapshot returned error: %v", err)
	}

	if got := snapshotCount(t, db); got != 1 {
		t.Errorf("Expected full replacement with 1 row, got %d", got)
	}
}

func TestWriteSnapshotIdempotent(t *testing.T) {
	db := setupTestDB(t)
	store := NewSnapshotStore(db)
	date := time.Now()

	rows := []models.SnapshotRow{
		testRow("c1", "Dragonling", "Rare", models.PrintingNonFoil, models.NewNullFloat(3.5), models.NewNullFloat(0.5), models.NullFloat{}),
		testRow("c2", "Stone Dragon", "Common", models.PrintingNonFoil, models.NewNullFloat(0.25), models.NullFloat{}, models.NullFloat{}),
	}

	if _, err := store.WriteSnapshot(rows, date); err != nil {
		t.Fatalf("First WriteSnapshot returned error: %v", err)
	}
	if _, err := store.WriteSnapshot(rows, date); err != nil {
		t.Fatalf("Second WriteSnapshot returned error: %v", err)
	}

	if got := snapshotCount(t, db); got != 2 {
		t.Errorf("Expected 2 rows after repeat write, got %d", got)
	}
	var cardCount int64
	db.Model(&models.Card{}).Count(&cardCount)
	if cardCount != 2 {
		t.Errorf("Expected 2 cards after repeat write, got %d", cardCount)
	}
}

func TestWriteSnapshotEmptyRefused(t *testing.T) {
	db := setupTestDB(t)
	store := NewSnapshotStore(db)

	good := []models.SnapshotRow{
		testRow("c1", "Dragonling", "Rare", models.PrintingNonFoil, models.NewNullFloat(3.5), models.NullFloat{}, models.NullFloat{}),
	}
	if _, err := store.WriteSnapshot(good, time.Now()); err != nil {
		t.Fatalf("WriteSnapshot returned error: %v", err)
	}

	// All-absent candidates must not wipe the existing snapshot.
	bad := []models.SnapshotRow{
		testRow("c2", "Stone Dragon", "Common", models.PrintingNonFoil, models.NullFloat{}, models.NullFloat{}, models.NullFloat{}),
	}
	if _, err := store.WriteSnapshot(bad, time.Now()); !errors.Is(err, ErrEmptySnapshot) {
		t.Fatalf("Expected ErrEmptySnapshot, got %v", err)
	}

	if got := snapshotCount(t, db); got != 1 {
		t.Errorf("Prior snapshot should be intact, got %d rows", got)
	}
}

func TestWriteSnapshotRollsBackOnConstraintViolation(t *testing.T) {
	db := setupTestDB(t)
	store := NewSnapshotStore(db)

	good := []models.SnapshotRow{
		testRow("c1", "Dragonling", "Rare", models.PrintingNonFoil, models.NewNullFloat(3.5), models.NullFloat{}, models.NullFloat{}),
		testRow("c2", "Stone Dragon", "Common", models.PrintingNonFoil, models.NewNullFloat(0.25), models.NullFloat{}, models.NullFloat{}),
	}
	if _, err := store.WriteSnapshot(good, time.Now()); err != nil {
		t.Fatalf("WriteSnapshot returned error: %v", err)
	}

	// Duplicate (product, printing) violates the unique index mid-write.
	dup := []models.SnapshotRow{
		testRow("c3", "River Sprite", "Common", models.PrintingNonFoil, models.NewNullFloat(1.0), models.NullFloat{}, models.NullFloat{}),
		testRow("c3", "River Sprite", "Common", models.PrintingNonFoil, models.NewNullFloat(2.0), models.NullFloat{}, models.NullFloat{}),
	}
	if _, err := store.WriteSnapshot(dup, time.Now()); err == nil {
		t.Fatal("Expected constraint violation error")
	}

	current, _, err := store.CurrentRows()
	if err != nil {
		t.Fatalf("CurrentRows returned error: %v", err)
	}
	if len(current) != 2 {
		t.Fatalf("Expected prior snapshot intact with 2 rows, got %d", len(current))
	}
	for _, r := range current {
		if r.ProductID == "c3" {
			t.Error("Failed write must not leave partial rows behind")
		}
	}
}

func TestWriteSnapshotConcurrentReaderSeesWholeSnapshots(t *testing.T) {
	// File-backed so reader and writer contend through real database locks.
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "snapshots.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Card{}, &models.PriceSnapshot{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	store := NewSnapshotStore(db)

	const priorSize = 300
	const nextSize = 450
	makeRows := func(n int, prefix string) []models.SnapshotRow {
		rows := make([]models.SnapshotRow, 0, n)
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("%s-%03d", prefix, i)
			rows = append(rows, testRow(id, "Card "+id, "Common", models.PrintingNonFoil,
				models.NewNullFloat(1), models.NullFloat{}, models.NullFloat{}))
		}
		return rows
	}

	priorDay := TruncateToDay(time.Now().AddDate(0, 0, -1))
	nextDay := TruncateToDay(time.Now())
	if _, err := store.WriteSnapshot(makeRows(priorSize, "old"), priorDay); err != nil {
		t.Fatalf("Seed WriteSnapshot returned error: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := store.WriteSnapshot(makeRows(nextSize, "new"), nextDay)
		done <- err
	}()

	// Poll row counts while the replacement is in flight. A read may fail
	// with a busy error while the writer holds its lock; every read that
	// succeeds must see a complete snapshot, never a partial one.
	deadline := time.After(30 * time.Second)
	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Concurrent WriteSnapshot returned error: %v", err)
			}
			if got := snapshotCount(t, db); got != nextSize {
				t.Errorf("Expected %d rows after replacement, got %d", nextSize, got)
			}
			return
		case <-deadline:
			t.Fatal("Timed out waiting for concurrent WriteSnapshot")
		default:
		}

		rows, date, err := store.CurrentRows()
		if err != nil || date == nil {
			continue
		}
		switch len(rows) {
		case priorSize:
			if !date.Equal(priorDay) {
				t.Fatalf("Prior rows paired with wrong date %v", date)
			}
		case nextSize:
			if !date.Equal(nextDay) {
				t.Fatalf("New rows paired with wrong date %v", date)
			}
		default:
			t.Fatalf("Observed partial snapshot of %d rows, want %d or %d", len(rows), priorSize, nextSize)
		}
	}
}

func TestWriteSnapshotUpsertsCardMetadata(t *testing.T) {
	db := setupTestDB(t)
	store := NewSnapshotStore(db)

	first := []models.SnapshotRow{
		testRow("c1", "Dragonling", "Rare", models.PrintingNonFoil, models.NewNullFloat(3.5), models.NullFloat{}, models.NullFloat{}),
	}
	if _, err := store.WriteSnapshot(first, time.Now()); err != nil {
		t.Fatalf("WriteSnapshot returned error: %v", err)
	}

	renamed := []models.SnapshotRow{
		testRow("c1", "Dragonling, Ascendant", "Epic", models.PrintingNonFoil, models.NewNullFloat(3.5), models.NullFloat{}, models.NullFloat{}),
	}
	if _, err := store.WriteSnapshot(renamed, time.Now()); err != nil {
		t.Fatalf("WriteSnapshot returned error: %v", err)
	}

	var card models.Card
	if err := db.First(&card, "product_id = ?", "c1").Error; err != nil {
		t.Fatalf("Failed to load card: %v", err)
	}
	if card.Name != "Dragonling, Ascendant" || card.Rarity != "Epic" {
		t.Errorf("Expected last-write-wins metadata, got %+v", card)
	}

	var cardCount int64
	db.Model(&models.Card{}).Count(&cardCount)
	if cardCount != 1 {
		t.Errorf("Expected single card row, got %d", cardCount)
	}
}

func TestLatestSnapshotDateEmptyStore(t *testing.T) {
	store := NewSnapshotStore(setupTestDB(t))

	date, err := store.LatestSnapshotDate()
	if err != nil {
		t.Fatalf("LatestSnapshotDate returned error: %v", err)
	}
	if date != nil {
		t.Errorf("Expected nil date on empty store, got %v", date)
	}

	rows, date, err := store.CurrentRows()
	if err != nil {
		t.Fatalf("CurrentRows returned error: %v", err)
	}
	if rows != nil || date != nil {
		t.Errorf("Expected no rows and nil date, got %d rows, %v", len(rows), date)
	}
}

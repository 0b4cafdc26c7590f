// One-shot snapshot ingestion for cron-style scheduling. Exits non-zero when
// the run fails so the invoker can alert; the prior snapshot is left intact
// on any failure.
package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/codyseavey/riftbound-tracker/backend/internal/config"
	"github.com/codyseavey/riftbound-tracker/backend/internal/database"
	"github.com/codyseavey/riftbound-tracker/backend/internal/services"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	if err := database.Initialize(cfg.DBPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	justTCGService := services.NewJustTCGService(cfg.JustTCGAPIKey, cfg.MaxPages, cfg.PageDelay)
	snapshotStore := services.NewSnapshotStore(database.GetDB())
	queryService := services.NewPriceQueryService(snapshotStore)
	snapshotWorker := services.NewSnapshotWorker(justTCGService, snapshotStore, queryService, cfg.SnapshotHour)

	result, err := snapshotWorker.RunSnapshot(context.Background())
	if err != nil {
		log.Fatalf("Snapshot run failed: %v", err)
	}

	log.Printf("Snapshot complete: run %s stored %d rows from %d cards",
		result.RunID, result.RowsStored, result.CardsFetched)
}

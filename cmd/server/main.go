package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codyseavey/riftbound-tracker/backend/internal/api"
	"github.com/codyseavey/riftbound-tracker/backend/internal/config"
	"github.com/codyseavey/riftbound-tracker/backend/internal/database"
	"github.com/codyseavey/riftbound-tracker/backend/internal/services"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()

	// Initialize database
	if err := database.Initialize(cfg.DBPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize services
	justTCGService := services.NewJustTCGService(cfg.JustTCGAPIKey, cfg.MaxPages, cfg.PageDelay)
	snapshotStore := services.NewSnapshotStore(database.GetDB())
	queryService := services.NewPriceQueryService(snapshotStore)
	snapshotWorker := services.NewSnapshotWorker(justTCGService, snapshotStore, queryService, cfg.SnapshotHour)

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start snapshot worker in background with panic recovery
	go func() {
		for {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("PANIC in snapshot worker: %v - restarting in 30 seconds", r)
					}
				}()
				snapshotWorker.Start(ctx)
			}()

			select {
			case <-ctx.Done():
				return // Graceful shutdown
			case <-time.After(30 * time.Second):
				log.Println("Snapshot worker restarting after panic recovery...")
			}
		}
	}()

	// Setup router
	router := api.SetupRouter(queryService, snapshotWorker, cfg.CORSAllowedOrigins)

	// Create HTTP server for graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Cancel the context to stop the snapshot worker. An in-flight run is
	// abandoned; the prior snapshot stays authoritative because the write
	// only happens at the very end of a run.
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

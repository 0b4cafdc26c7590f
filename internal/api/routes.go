package api

import (
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codyseavey/riftbound-tracker/backend/internal/api/handlers"
	"github.com/codyseavey/riftbound-tracker/backend/internal/metrics"
	"github.com/codyseavey/riftbound-tracker/backend/internal/services"
)

func SetupRouter(queries *services.PriceQueryService, worker *services.SnapshotWorker, corsOrigins []string) *gin.Engine {
	router := gin.Default()

	// CORS configuration - allow origins from environment or use defaults
	config := cors.DefaultConfig()
	if len(corsOrigins) > 0 {
		config.AllowOrigins = corsOrigins
	} else {
		config.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	config.AllowCredentials = false
	router.Use(cors.New(config))

	router.Use(metricsMiddleware())

	// Initialize handlers
	priceHandler := handlers.NewPriceHandler(queries)
	snapshotHandler := handlers.NewSnapshotHandler(worker)

	// API routes
	api := router.Group("/api")
	{
		prices := api.Group("/prices")
		{
			prices.GET("/movers", priceHandler.GetMovers)
			prices.GET("/highest", priceHandler.GetHighestPriced)
		}

		cards := api.Group("/cards")
		{
			cards.GET("/search", priceHandler.SearchCardPrices)
		}

		snapshot := api.Group("/snapshot")
		{
			snapshot.POST("/trigger", snapshotHandler.Trigger)
			snapshot.GET("/status", snapshotHandler.Status)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

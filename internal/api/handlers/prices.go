package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/riftbound-tracker/backend/internal/models"
	"github.com/codyseavey/riftbound-tracker/backend/internal/services"
)

const (
	defaultLimit = 5
	maxLimit     = 50
)

type PriceHandler struct {
	queries *services.PriceQueryService
}

func NewPriceHandler(queries *services.PriceQueryService) *PriceHandler {
	return &PriceHandler{
		queries: queries,
	}
}

// GetMovers returns the biggest gainers and losers over the chosen window,
// optionally split into price tiers with ?tiered=true.
func (h *PriceHandler) GetMovers(c *gin.Context) {
	limit := parseLimit(c)

	window, ok := models.ParseChangeWindow(c.DefaultQuery("window", "24h"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "window must be 24h or 7d"})
		return
	}
	rarity := c.Query("rarity")

	if c.Query("tiered") == "true" {
		result, err := h.queries.GetTieredMovers(limit, window, rarity)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	result, err := h.queries.GetMovers(limit, window, rarity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetHighestPriced returns the most expensive cards in the current snapshot.
func (h *PriceHandler) GetHighestPriced(c *gin.Context) {
	limit := parseLimit(c)
	rarity := c.Query("rarity")

	result, err := h.queries.GetHighestPriced(limit, rarity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// SearchCardPrices returns snapshot rows whose card name contains the query.
func (h *PriceHandler) SearchCardPrices(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	limit := parseLimit(c)

	result, err := h.queries.SearchCardPrices(query, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

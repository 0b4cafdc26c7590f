package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/codyseavey/riftbound-tracker/backend/internal/metrics"
	"github.com/codyseavey/riftbound-tracker/backend/internal/models"
)

const (
	justTCGBaseURL        = "https://api.justtcg.com/v1"
	justTCGDefaultTimeout = 30 * time.Second
	justTCGGameID         = "riftbound-league-of-legends-trading-card-game"

	// justTCGPageSize is the upstream's maximum page size.
	justTCGPageSize = 20

	// defaultMaxPages bounds the pagination loop against a misbehaving
	// hasMore flag.
	defaultMaxPages = 500

	// defaultPageDelay keeps us under the upstream's 10 requests/min ceiling.
	defaultPageDelay = 6500 * time.Millisecond
)

// RawVariant is one purchasable form of a card as reported by JustTCG.
// Numeric fields decode through NullFloat so malformed values become absent
// instead of zero.
type RawVariant struct {
	Price          models.NullFloat `json:"price"`
	Printing       string           `json:"printing"`
	Condition      string           `json:"condition"`
	PriceChange24h models.NullFloat `json:"priceChange24hr"`
	PriceChange7d  models.NullFloat `json:"priceChange7d"`
}

// RawCard is a single card record from the JustTCG /cards endpoint. Variants
// stay raw until normalization so a malformed variants field drops only that
// card, never the page.
type RawCard struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	SetName  string          `json:"set"`
	Rarity   string          `json:"rarity"`
	Variants json.RawMessage `json:"variants"`
}

type justTCGCardsResponse struct {
	Data []RawCard `json:"data"`
	Meta struct {
		Total   int  `json:"total"`
		HasMore bool `json:"hasMore"`
	} `json:"meta"`
}

// FetchError reports a non-success upstream response during pagination.
// A 429 lands here too: the limiter should prevent it, but if the upstream
// rejects anyway the run aborts like any other fetch failure.
type FetchError struct {
	StatusCode int
	Offset     int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("JustTCG API error: status %d at offset %d", e.StatusCode, e.Offset)
}

// JustTCGService pulls the full Riftbound catalog from JustTCG, one page at a
// time, pacing requests with a shared limiter so back-to-back runs observe
// the same rate ceiling.
type JustTCGService struct {
	client   *http.Client
	apiKey   string
	baseURL  string
	gameID   string
	pageSize int
	maxPages int
	limiter  *rate.Limiter
}

// NewJustTCGService creates a new JustTCG API service. maxPages <= 0 and
// pageDelay <= 0 select the defaults.
func NewJustTCGService(apiKey string, maxPages int, pageDelay time.Duration) *JustTCGService {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	if pageDelay <= 0 {
		pageDelay = defaultPageDelay
	}

	return &JustTCGService{
		client: &http.Client{
			Timeout: justTCGDefaultTimeout,
		},
		apiKey:   apiKey,
		baseURL:  justTCGBaseURL,
		gameID:   justTCGGameID,
		pageSize: justTCGPageSize,
		maxPages: maxPages,
		limiter:  rate.NewLimiter(rate.Every(pageDelay), 1),
	}
}

// FetchAllCards retrieves every card record, strictly sequentially. Any page
// failure aborts the whole fetch; the caller discards partial results.
func (s *JustTCGService) FetchAllCards(ctx context.Context) ([]RawCard, error) {
	var all []RawCard
	pages := 0

	for page := 0; ; page++ {
		if page >= s.maxPages {
			log.Printf("JustTCG: max page count (%d) reached, stopping early", s.maxPages)
			break
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		offset := page * s.pageSize
		resp, err := s.fetchPage(ctx, offset)
		if err != nil {
			return nil, err
		}
		pages++

		count := len(resp.Data)
		all = append(all, resp.Data...)
		log.Printf("JustTCG: page %d (offset=%d) returned %d cards, %d total", page+1, offset, count, len(all))

		if count == 0 {
			break
		}
		// A short page is the last page even when hasMore claims otherwise.
		if count < s.pageSize {
			break
		}
		if !resp.Meta.HasMore {
			break
		}
	}

	metrics.JustTCGPagesLastFetch.Set(float64(pages))
	log.Printf("JustTCG: fetch complete, %d cards across %d pages", len(all), pages)
	return all, nil
}

func (s *JustTCGService) fetchPage(ctx context.Context, offset int) (*justTCGCardsResponse, error) {
	params := url.Values{}
	params.Set("game", s.gameID)
	params.Set("limit", strconv.Itoa(s.pageSize))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("include", "variants")

	reqURL := fmt.Sprintf("%s/cards?%s", s.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cards at offset %d: %w", offset, err)
	}
	defer resp.Body.Close()

	metrics.JustTCGRequestsTotal.Inc()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{StatusCode: resp.StatusCode, Offset: offset}
	}

	var page justTCGCardsResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode response at offset %d: %w", offset, err)
	}

	return &page, nil
}

package services

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codyseavey/riftbound-tracker/backend/internal/metrics"
	"github.com/codyseavey/riftbound-tracker/backend/internal/models"
)

// Price magnitude tiers for grouped mover displays.
const (
	tierHighMin = 20.0
	tierMidMin  = 5.0
)

const queryCacheSize = 128

// MoverRow is a snapshot row together with the delta for the queried window.
type MoverRow struct {
	PriceRow
	Change float64 `json:"change"`
}

// MoversResult holds the biggest gainers and losers for one window. Date is
// nil when no snapshot exists.
type MoversResult struct {
	Increases []MoverRow          `json:"increases"`
	Decreases []MoverRow          `json:"decreases"`
	Window    models.ChangeWindow `json:"window"`
	Date      *time.Time          `json:"date"`
}

// TierBuckets splits movers by price magnitude. An empty bucket is a valid
// "no data for this tier" result.
type TierBuckets struct {
	High []MoverRow `json:"high"`
	Mid  []MoverRow `json:"mid"`
	Low  []MoverRow `json:"low"`
}

// TieredMoversResult is MoversResult with each bucket split into tiers.
type TieredMoversResult struct {
	Increases TierBuckets         `json:"increases"`
	Decreases TierBuckets         `json:"decreases"`
	Window    models.ChangeWindow `json:"window"`
	Date      *time.Time          `json:"date"`
}

// HighestPricedResult lists the most expensive rows in the snapshot.
type HighestPricedResult struct {
	Rows []PriceRow `json:"rows"`
	Date *time.Time `json:"date"`
}

// SearchResult lists rows whose card name matched the query, with both
// windows' deltas attached.
type SearchResult struct {
	Rows []PriceRow `json:"rows"`
	Date *time.Time `json:"date"`
}

// PriceQueryService computes ranking queries over the current snapshot.
// Results are cached per request shape; the cache is purged after every
// successful snapshot write, so entries never outlive the snapshot they were
// computed from.
type PriceQueryService struct {
	store *SnapshotStore
	cache *lru.Cache[string, any]

	mu  sync.Mutex
	gen uint64 // bumped on every invalidation
}

func NewPriceQueryService(store *SnapshotStore) *PriceQueryService {
	cache, _ := lru.New[string, any](queryCacheSize)
	return &PriceQueryService{store: store, cache: cache}
}

// InvalidateCache drops all cached query results. Called after each snapshot
// write. Bumping the generation atomically with the purge means a query that
// read the previous snapshot can never add its result after the purge.
func (q *PriceQueryService) InvalidateCache() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.gen++
	q.cache.Purge()
}

func (q *PriceQueryService) generation() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.gen
}

// addIfCurrent caches a result only if no invalidation happened since gen was
// captured, i.e. since before the rows backing the result were read.
func (q *PriceQueryService) addIfCurrent(gen uint64, key string, v any) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.gen != gen {
		return
	}
	q.cache.Add(key, v)
}

func (q *PriceQueryService) cached(key string) (any, bool) {
	v, ok := q.cache.Get(key)
	if ok {
		metrics.QueryCacheHits.Inc()
	} else {
		metrics.QueryCacheMisses.Inc()
	}
	return v, ok
}

// GetMovers returns the top gainers and losers by the chosen window's delta.
// Rows without a delta for that window are ignored; rarity filters
// case-insensitively. An empty store yields empty slices and a nil date.
func (q *PriceQueryService) GetMovers(limit int, window models.ChangeWindow, rarity string) (*MoversResult, error) {
	key := fmt.Sprintf("movers|%d|%s|%s", limit, window, strings.ToLower(rarity))
	if v, ok := q.cached(key); ok {
		return v.(*MoversResult), nil
	}

	gen := q.generation()
	rows, date, err := q.store.CurrentRows()
	if err != nil {
		return nil, err
	}

	increases, decreases := splitMovers(rows, window, rarity)
	res := &MoversResult{
		Increases: truncateMovers(increases, limit),
		Decreases: truncateMovers(decreases, limit),
		Window:    window,
		Date:      date,
	}
	q.addIfCurrent(gen, key, res)
	return res, nil
}

// GetTieredMovers is GetMovers with each bucket split into High (price >= 20),
// Mid (5 <= price < 20) and Low (< 5) tiers, each independently truncated.
func (q *PriceQueryService) GetTieredMovers(limit int, window models.ChangeWindow, rarity string) (*TieredMoversResult, error) {
	key := fmt.Sprintf("tiered|%d|%s|%s", limit, window, strings.ToLower(rarity))
	if v, ok := q.cached(key); ok {
		return v.(*TieredMoversResult), nil
	}

	gen := q.generation()
	rows, date, err := q.store.CurrentRows()
	if err != nil {
		return nil, err
	}

	increases, decreases := splitMovers(rows, window, rarity)
	res := &TieredMoversResult{
		Increases: tierize(increases, limit),
		Decreases: tierize(decreases, limit),
		Window:    window,
		Date:      date,
	}
	q.addIfCurrent(gen, key, res)
	return res, nil
}

// GetHighestPriced returns the most expensive snapshot rows. Absent-price
// rows never reach the store, so every row here has a known price.
func (q *PriceQueryService) GetHighestPriced(limit int, rarity string) (*HighestPricedResult, error) {
	key := fmt.Sprintf("highest|%d|%s", limit, strings.ToLower(rarity))
	if v, ok := q.cached(key); ok {
		return v.(*HighestPricedResult), nil
	}

	gen := q.generation()
	rows, date, err := q.store.CurrentRows()
	if err != nil {
		return nil, err
	}

	filtered := make([]PriceRow, 0, len(rows))
	for _, r := range rows {
		if !matchesRarity(r.Rarity, rarity) {
			continue
		}
		filtered = append(filtered, r)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].MarketPrice > filtered[j].MarketPrice
	})

	res := &HighestPricedResult{Rows: truncateRows(filtered, limit), Date: date}
	q.addIfCurrent(gen, key, res)
	return res, nil
}

// SearchCardPrices returns rows whose card name contains the query,
// case-insensitively, ordered alphabetically by name. An empty match set is
// distinct from "no snapshot exists": the former has a non-nil date.
func (q *PriceQueryService) SearchCardPrices(query string, limit int) (*SearchResult, error) {
	key := fmt.Sprintf("search|%d|%s", limit, strings.ToLower(query))
	if v, ok := q.cached(key); ok {
		return v.(*SearchResult), nil
	}

	gen := q.generation()
	rows, date, err := q.store.CurrentRows()
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	matched := make([]PriceRow, 0)
	for _, r := range rows {
		if strings.Contains(strings.ToLower(r.Name), needle) {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return strings.ToLower(matched[i].Name) < strings.ToLower(matched[j].Name)
	})

	res := &SearchResult{Rows: truncateRows(matched, limit), Date: date}
	q.addIfCurrent(gen, key, res)
	return res, nil
}

// splitMovers partitions rows with a known delta into gainers (delta desc)
// and losers (delta asc, most negative first). Stable sorts over
// storage-ordered input keep ties in storage order. Rows with a zero delta
// belong to neither bucket.
func splitMovers(rows []PriceRow, window models.ChangeWindow, rarity string) (increases, decreases []MoverRow) {
	increases = make([]MoverRow, 0)
	decreases = make([]MoverRow, 0)

	for _, r := range rows {
		if !matchesRarity(r.Rarity, rarity) {
			continue
		}
		delta := r.ChangeFor(window)
		if delta == nil {
			continue
		}
		m := MoverRow{PriceRow: r, Change: *delta}
		switch {
		case m.Change > 0:
			increases = append(increases, m)
		case m.Change < 0:
			decreases = append(decreases, m)
		}
	}

	sort.SliceStable(increases, func(i, j int) bool { return increases[i].Change > increases[j].Change })
	sort.SliceStable(decreases, func(i, j int) bool { return decreases[i].Change < decreases[j].Change })
	return increases, decreases
}

func tierize(movers []MoverRow, limit int) TierBuckets {
	b := TierBuckets{
		High: make([]MoverRow, 0),
		Mid:  make([]MoverRow, 0),
		Low:  make([]MoverRow, 0),
	}
	for _, m := range movers {
		switch {
		case m.MarketPrice >= tierHighMin:
			b.High = append(b.High, m)
		case m.MarketPrice >= tierMidMin:
			b.Mid = append(b.Mid, m)
		default:
			b.Low = append(b.Low, m)
		}
	}
	b.High = truncateMovers(b.High, limit)
	b.Mid = truncateMovers(b.Mid, limit)
	b.Low = truncateMovers(b.Low, limit)
	return b
}

func matchesRarity(rowRarity, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.EqualFold(rowRarity, filter)
}

func truncateMovers(rows []MoverRow, limit int) []MoverRow {
	if limit >= 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

func truncateRows(rows []PriceRow, limit int) []PriceRow {
	if limit >= 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

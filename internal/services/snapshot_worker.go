package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codyseavey/riftbound-tracker/backend/internal/metrics"
)

// ErrRunInProgress is returned when a snapshot trigger arrives while another
// run is active. Triggers are dropped, never queued.
var ErrRunInProgress = errors.New("snapshot run already in progress")

// RunResult summarizes one snapshot ingestion run.
type RunResult struct {
	RunID        string    `json:"run_id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	CardsFetched int       `json:"cards_fetched"`
	RowsStored   int       `json:"rows_stored"`
	Error        string    `json:"error,omitempty"`
}

// WorkerStatus is the snapshot worker's state as exposed over the API.
type WorkerStatus struct {
	Running      bool       `json:"running"`
	SnapshotHour int        `json:"snapshot_hour"`
	LastRun      *RunResult `json:"last_run,omitempty"`
}

// SnapshotWorker runs the ingestion pipeline: fetch the full catalog, then
// normalize, then one atomic store write. Runs are single-flight; the flag
// only prevents wasted duplicate fetch work, atomicity comes from the store
// transaction.
type SnapshotWorker struct {
	justTCG *JustTCGService
	store   *SnapshotStore
	queries *PriceQueryService

	snapshotHour  int // Hour of day to take the daily snapshot (0-23)
	checkInterval time.Duration

	mu      sync.Mutex
	running bool
	lastRun *RunResult
}

// NewSnapshotWorker creates a snapshot worker. snapshotHour outside 0-23
// selects the default (11 PM).
func NewSnapshotWorker(justTCG *JustTCGService, store *SnapshotStore, queries *PriceQueryService, snapshotHour int) *SnapshotWorker {
	if snapshotHour < 0 || snapshotHour > 23 {
		snapshotHour = 23
	}
	return &SnapshotWorker{
		justTCG:       justTCG,
		store:         store,
		queries:       queries,
		snapshotHour:  snapshotHour,
		checkInterval: 15 * time.Minute,
	}
}

// Start begins the background worker that takes the daily snapshot at or
// after the configured hour. Blocks until ctx is cancelled.
func (w *SnapshotWorker) Start(ctx context.Context) {
	log.Printf("Snapshot worker started: daily snapshot at or after %02d:00", w.snapshotHour)

	w.checkAndSnapshot(ctx)

	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Snapshot worker stopping...")
			return
		case <-ticker.C:
			w.checkAndSnapshot(ctx)
		}
	}
}

func (w *SnapshotWorker) checkAndSnapshot(ctx context.Context) {
	now := time.Now()
	if now.Hour() < w.snapshotHour {
		return
	}
	if w.hasSnapshotForToday(now) {
		return
	}

	if _, err := w.RunSnapshot(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
		log.Printf("Snapshot worker: scheduled run failed: %v", err)
	}
}

func (w *SnapshotWorker) hasSnapshotForToday(now time.Time) bool {
	date, err := w.store.LatestSnapshotDate()
	if err != nil {
		log.Printf("Snapshot worker: failed to read latest snapshot date: %v", err)
		return false
	}
	return date != nil && date.Equal(TruncateToDay(now))
}

// RunSnapshot executes one full ingestion run synchronously. Returns
// ErrRunInProgress when another run holds the flag; a failed fetch or write
// leaves the prior snapshot untouched.
func (w *SnapshotWorker) RunSnapshot(ctx context.Context) (*RunResult, error) {
	if !w.tryBegin() {
		log.Println("Snapshot worker: trigger skipped, run already in progress")
		metrics.SnapshotRunsTotal.WithLabelValues("skipped").Inc()
		return nil, ErrRunInProgress
	}
	defer w.end()

	return w.run(ctx, uuid.NewString())
}

// StartRunAsync acquires the run flag and executes the run in the
// background, returning the run id immediately. Used by the manual trigger
// endpoint, which cannot hold a request open for a multi-minute fetch.
func (w *SnapshotWorker) StartRunAsync(ctx context.Context) (string, error) {
	if !w.tryBegin() {
		log.Println("Snapshot worker: trigger skipped, run already in progress")
		metrics.SnapshotRunsTotal.WithLabelValues("skipped").Inc()
		return "", ErrRunInProgress
	}

	runID := uuid.NewString()
	go func() {
		defer w.end()
		if _, err := w.run(ctx, runID); err != nil {
			log.Printf("Snapshot worker: triggered run %s failed: %v", runID, err)
		}
	}()
	return runID, nil
}

func (w *SnapshotWorker) run(ctx context.Context, runID string) (*RunResult, error) {
	started := time.Now()
	res := &RunResult{RunID: runID, StartedAt: started}
	log.Printf("Snapshot worker: run %s started", runID)

	cards, err := w.justTCG.FetchAllCards(ctx)
	if err != nil {
		return w.finish(res, "fetch_error", err)
	}
	res.CardsFetched = len(cards)

	rows := NormalizeCards(cards)

	stored, err := w.store.WriteSnapshot(rows, started)
	if err != nil {
		return w.finish(res, "store_error", err)
	}
	res.RowsStored = stored

	w.queries.InvalidateCache()

	metrics.SnapshotRowsStored.Set(float64(stored))
	metrics.SnapshotLastSuccessTimestamp.Set(float64(time.Now().Unix()))
	res, _ = w.finish(res, "success", nil)
	log.Printf("Snapshot worker: run %s complete, %d cards fetched, %d rows stored in %s",
		runID, res.CardsFetched, stored, res.FinishedAt.Sub(res.StartedAt).Round(time.Second))
	return res, nil
}

func (w *SnapshotWorker) finish(res *RunResult, outcome string, err error) (*RunResult, error) {
	res.FinishedAt = time.Now()
	if err != nil {
		res.Error = err.Error()
	}

	metrics.SnapshotRunsTotal.WithLabelValues(outcome).Inc()
	metrics.SnapshotRunDuration.Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())

	w.mu.Lock()
	w.lastRun = res
	w.mu.Unlock()

	return res, err
}

func (w *SnapshotWorker) tryBegin() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return false
	}
	w.running = true
	return true
}

func (w *SnapshotWorker) end() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

// Status reports the worker state for the API.
func (w *SnapshotWorker) Status() WorkerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WorkerStatus{
		Running:      w.running,
		SnapshotHour: w.snapshotHour,
		LastRun:      w.lastRun,
	}
}

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/riftbound-tracker/backend/internal/services"
)

type SnapshotHandler struct {
	worker *services.SnapshotWorker
}

func NewSnapshotHandler(worker *services.SnapshotWorker) *SnapshotHandler {
	return &SnapshotHandler{
		worker: worker,
	}
}

// Trigger starts a snapshot run in the background. Returns 409 when a run is
// already in flight; triggers are dropped, not queued.
func (h *SnapshotHandler) Trigger(c *gin.Context) {
	// The run outlives the request, so it must not inherit the request context.
	runID, err := h.worker.StartRunAsync(context.Background())
	if err != nil {
		if errors.Is(err, services.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "snapshot run already in progress"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"run_id": runID})
}

// Status returns the worker state and the last run's summary.
func (h *SnapshotHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.worker.Status())
}

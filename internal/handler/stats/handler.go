package stats

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/TomasB/geostat/internal/counter"
)

// Reporter returns the accumulated per-country hit counts.
type Reporter interface {
	Report(ctx context.Context) ([]counter.Entry, error)
}

// StatsResponse represents the JSON response for the stats endpoint.
type StatsResponse struct {
	Stats []counter.Entry `json:"stats"`
	Error string          `json:"error,omitempty"`
}

// Handler manages the analytics report endpoint.
type Handler struct {
	reporter Reporter
}

// NewHandler creates a new stats handler with the given Reporter.
func NewHandler(reporter Reporter) *Handler {
	return &Handler{reporter: reporter}
}

// Stats handles GET /api/v1/stats
func (h *Handler) Stats(c *gin.Context) {
	entries, err := h.reporter.Report(c.Request.Context())
	if err != nil {
		slog.Error("report failed", "error", err)
		c.JSON(http.StatusInternalServerError, StatsResponse{
			Error: "report failed",
		})
		return
	}

	// The store makes no ordering promise; sort here for stable output.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Country < entries[j].Country
	})
	if entries == nil {
		entries = []counter.Entry{}
	}

	c.JSON(http.StatusOK, StatsResponse{Stats: entries})
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "cycleledger/internal/errors"
	"cycleledger/internal/pagination"
	"cycleledger/internal/services"
)

// HistoryHandler handles cycle history requests.
type HistoryHandler struct {
	snapshotService services.SnapshotServicer
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(snapshotService services.SnapshotServicer) *HistoryHandler {
	return &HistoryHandler{snapshotService: snapshotService}
}

// ManualCycleRequest represents the request payload for recording a historical
// cycle by hand.
type ManualCycleRequest struct {
	PeriodStart string             `json:"period_start" binding:"required,iso_date"`
	LengthDays  int                `json:"length_days" binding:"omitempty,min=1"`
	Entries     []ManualEntryInput `json:"entries" binding:"required,min=1,dive"`
}

// ManualEntryInput is one category's figures in a ManualCycleRequest.
type ManualEntryInput struct {
	CategoryID string  `json:"category_id" binding:"required,uuid"`
	BudgetBase float64 `json:"budget_base"`
	Spent      float64 `json:"spent"`
}

// GetHistory lists closed cycles, newest first. Elapsed cycles are closed
// lazily on the way in, so the listing is always current.
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	page.Defaults()

	resp, err := h.snapshotService.GetHistory(ownerID, time.Now().UTC(), page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetCycleDetail returns one closed cycle's header and per-category rows,
// keyed by the cycle's start date.
func (h *HistoryHandler) GetCycleDetail(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	periodStart, err := parseDate(c.Param("periodStart"), "periodStart")
	if err != nil {
		respondWithError(c, err)
		return
	}

	snapshot, rows, err := h.snapshotService.GetCycleDetail(ownerID, periodStart)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"snapshot":   snapshot,
		"categories": rows,
	})
}

// RecordManualCycle backfills one cycle before recorded history from
// user-entered figures.
func (h *HistoryHandler) RecordManualCycle(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ManualCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	periodStart, err := parseDate(req.PeriodStart, "period_start")
	if err != nil {
		respondWithError(c, err)
		return
	}

	entries := make([]services.ManualEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, services.ManualEntry{CategoryID: e.CategoryID, BudgetBase: e.BudgetBase, Spent: e.Spent})
	}

	snapshot, err := h.snapshotService.RecordManualCycle(ownerID, periodStart, req.LengthDays, entries)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"snapshot": snapshot})
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "cycleledger/internal/errors"
	"cycleledger/internal/services"
	"cycleledger/internal/setupdiff"
)

// SetupHandler handles setup wizard preview and commit requests.
type SetupHandler struct {
	setupService services.SetupServicer
}

// NewSetupHandler creates a new SetupHandler.
func NewSetupHandler(setupService services.SetupServicer) *SetupHandler {
	return &SetupHandler{setupService: setupService}
}

// PreviewSetupRequest represents the request payload for previewing a setup diff.
type PreviewSetupRequest struct {
	Categories []setupdiff.DraftCategory `json:"categories" binding:"required"`
}

// CommitSetupRequest represents the request payload for committing the wizard.
type CommitSetupRequest struct {
	Categories      []setupdiff.DraftCategory `json:"categories" binding:"required"`
	CycleLengthDays int                       `json:"cycle_length_days" binding:"required"`
	AnchorDate      string                    `json:"anchor_date" binding:"required,iso_date"`
	IncomePerCycle  *float64                  `json:"income_per_cycle" binding:"omitempty,gte=0"`
}

// Preview computes the create/update/delete plan for a draft tree without
// touching any data.
func (h *SetupHandler) Preview(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PreviewSetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	diff, err := h.setupService.Preview(ownerID, setupdiff.DraftTree{Categories: req.Categories})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"diff": diff})
}

// Commit persists the wizard's settings and applies the diff. Row-level
// failures do not abort the batch; the summary reports them alongside what
// succeeded.
func (h *SetupHandler) Commit(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CommitSetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	anchor, err := parseDate(req.AnchorDate, "anchor_date")
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.setupService.Commit(ownerID, setupdiff.DraftTree{Categories: req.Categories}, req.CycleLengthDays, anchor, req.IncomePerCycle, time.Now().UTC())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

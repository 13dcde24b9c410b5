package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "cycleledger/internal/errors"
	"cycleledger/internal/services"
)

// SettingsHandler handles budget settings and period computation requests.
type SettingsHandler struct {
	settingsService services.SettingsServicer
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(settingsService services.SettingsServicer) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// UpdateSettingsRequest represents the request payload for updating budget settings.
type UpdateSettingsRequest struct {
	CycleLengthDays int      `json:"cycle_length_days" binding:"required"`
	AnchorDate      string   `json:"anchor_date" binding:"required,iso_date"`
	MonthlyIncome   *float64 `json:"monthly_income" binding:"omitempty,gte=0"`
}

// GetSettings returns the owner's budget settings.
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	settings, err := h.settingsService.GetSettings(ownerID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// UpdateSettings creates or replaces the owner's budget settings.
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	anchor, err := parseDate(req.AnchorDate, "anchor_date")
	if err != nil {
		respondWithError(c, err)
		return
	}

	settings, err := h.settingsService.UpsertSettings(ownerID, req.CycleLengthDays, anchor, req.MonthlyIncome)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// GetCurrentPeriod returns the cycle containing the reference date (today by
// default), shifted by an optional offset of whole cycles.
func (h *SettingsHandler) GetCurrentPeriod(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	reference := time.Now().UTC()
	if v := c.Query("reference"); v != "" {
		reference, err = parseDate(v, "reference")
		if err != nil {
			respondWithError(c, err)
			return
		}
	}

	offset := 0
	if v := c.Query("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "offset must be an integer"))
			return
		}
	}

	p, err := h.settingsService.ComputePeriod(ownerID, reference, offset)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"period": p})
}

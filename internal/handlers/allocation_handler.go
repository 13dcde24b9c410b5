package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "cycleledger/internal/errors"
	"cycleledger/internal/services"
)

// AllocationHandler handles allocation ledger requests.
type AllocationHandler struct {
	allocationService services.AllocationServicer
}

// NewAllocationHandler creates a new AllocationHandler.
func NewAllocationHandler(allocationService services.AllocationServicer) *AllocationHandler {
	return &AllocationHandler{allocationService: allocationService}
}

// SetAllocationsRequest represents the request payload for writing a category's
// allocation along with all of its subcategory amounts.
type SetAllocationsRequest struct {
	PeriodStart string                 `json:"period_start" binding:"required,iso_date"`
	Amount      float64                `json:"amount"`
	Children    []ChildAllocationInput `json:"children" binding:"omitempty,dive"`
}

// ChildAllocationInput is one subcategory amount in a SetAllocationsRequest.
type ChildAllocationInput struct {
	CategoryID string  `json:"category_id" binding:"required,uuid"`
	Amount     float64 `json:"amount"`
}

// GetAllocation returns a category's allocation for the cycle starting at the
// period_start query parameter.
func (h *AllocationHandler) GetAllocation(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	categoryID, err := parsePathUUID(c, "categoryId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	periodStart, err := parseDate(c.Query("period_start"), "period_start")
	if err != nil {
		respondWithError(c, err)
		return
	}

	view, err := h.allocationService.GetAllocation(ownerID, categoryID, periodStart)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"allocation": view})
}

// SetAllocations writes a category's allocation and its subcategory amounts in
// one shot. Amounts that do not sum up are stored anyway; the response's
// balanced flag tells the caller.
func (h *AllocationHandler) SetAllocations(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	categoryID, err := parsePathUUID(c, "categoryId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SetAllocationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	periodStart, err := parseDate(req.PeriodStart, "period_start")
	if err != nil {
		respondWithError(c, err)
		return
	}

	children := make([]services.ChildAllocation, 0, len(req.Children))
	for _, ch := range req.Children {
		children = append(children, services.ChildAllocation{CategoryID: ch.CategoryID, Amount: ch.Amount})
	}

	view, err := h.allocationService.SetAllocations(ownerID, categoryID, periodStart, req.Amount, children)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"allocation": view})
}

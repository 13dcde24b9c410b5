package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "cycleledger/internal/errors"
	"cycleledger/internal/models"
	"cycleledger/internal/services"
)

// CategoryHandler handles category-related requests.
type CategoryHandler struct {
	categoryService services.CategoryServicer
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(categoryService services.CategoryServicer) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

// CreateCategoryRequest represents the request payload for creating a category.
type CreateCategoryRequest struct {
	Name         string  `json:"name" binding:"required,min=1,max=100"`
	ParentID     *string `json:"parent_id" binding:"omitempty,uuid"`
	RolloverMode string  `json:"rollover_mode" binding:"required,rollover_mode"`
	IsDefault    bool    `json:"is_default"`
}

// UpdateCategoryRequest represents the request payload for updating a category.
type UpdateCategoryRequest struct {
	Name         string  `json:"name" binding:"omitempty,min=1,max=100"`
	ParentID     *string `json:"parent_id" binding:"omitempty"`
	RolloverMode string  `json:"rollover_mode" binding:"omitempty,rollover_mode"`
}

// CreateCategory handles the creation of a new category.
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	category, err := h.categoryService.CreateCategory(ownerID, req.Name, req.ParentID, models.RolloverMode(req.RolloverMode), req.IsDefault)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"category": category})
}

// GetCategoryTree returns the owner's categories grouped into the two-tier tree.
func (h *CategoryHandler) GetCategoryTree(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	tree, err := h.categoryService.GetCategoryTree(ownerID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if tree == nil {
		tree = []models.CategoryNode{}
	}

	c.JSON(http.StatusOK, gin.H{"categories": tree})
}

// GetCategory handles retrieving a specific category.
func (h *CategoryHandler) GetCategory(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	categoryID, err := parsePathUUID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	category, err := h.categoryService.GetCategoryByID(ownerID, categoryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// UpdateCategory handles renaming, re-parenting, or changing rollover mode.
func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	categoryID, err := parsePathUUID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	category, err := h.categoryService.UpdateCategory(ownerID, categoryID, req.Name, req.ParentID, models.RolloverMode(req.RolloverMode))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// DeleteCategory handles deleting a category.
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	categoryID, err := parsePathUUID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.categoryService.DeleteCategory(ownerID, categoryID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Category deleted successfully"})
}

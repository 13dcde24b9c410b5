package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "cycleledger/internal/errors"
	"cycleledger/internal/models"
)

// categoryService handles category-related business logic.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// CreateCategory creates a new category
func (s *categoryService) CreateCategory(ownerID, name string, parentID *string, mode models.RolloverMode, isDefault bool) (*models.Category, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}
	if !mode.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown rollover mode")
	}

	// Names are matched case-insensitively throughout setup reconciliation,
	// so uniqueness is case-insensitive too.
	var count int64
	if err := s.db.Model(&models.Category{}).
		Where("owner_id = ? AND LOWER(name) = LOWER(?)", ownerID, name).
		Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category with this name already exists")
	}

	if parentID != nil {
		if err := s.checkParent(ownerID, *parentID); err != nil {
			return nil, err
		}
	}

	category := &models.Category{
		OwnerID:      ownerID,
		Name:         name,
		ParentID:     parentID,
		RolloverMode: mode,
		IsDefault:    isDefault,
	}
	if err := s.db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return category, nil
}

// GetCategoryTree returns the owner's categories in the two-tier grouping.
func (s *categoryService) GetCategoryTree(ownerID string) ([]models.CategoryNode, error) {
	var categories []models.Category
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at").Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return models.GroupCategories(categories), nil
}

// GetCategoryByID retrieves a category by ID for a specific owner
func (s *categoryService) GetCategoryByID(ownerID, categoryID string) (*models.Category, error) {
	var category models.Category
	if err := s.db.Where("id = ? AND owner_id = ?", categoryID, ownerID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// UpdateCategory renames, re-parents, or changes the rollover mode of a category.
func (s *categoryService) UpdateCategory(ownerID, categoryID, name string, parentID *string, mode models.RolloverMode) (*models.Category, error) {
	category, err := s.GetCategoryByID(ownerID, categoryID)
	if err != nil {
		return nil, err
	}

	if parentID != nil && *parentID != "" {
		if *parentID == categoryID {
			return nil, apperrors.ErrSelfParentCategory
		}
		if err := s.checkParent(ownerID, *parentID); err != nil {
			return nil, err
		}

		// Re-parenting a category that has its own subcategories would exceed
		// the two-tier depth.
		var childCount int64
		if err := s.db.Model(&models.Category{}).Where("parent_id = ?", categoryID).Count(&childCount).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if childCount > 0 {
			return nil, apperrors.ErrCategoryDepth
		}
	}

	updates := make(map[string]interface{})
	if name != "" {
		updates["name"] = name
	}
	if mode != "" {
		if !mode.Valid() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown rollover mode")
		}
		updates["rollover_mode"] = mode
	}
	if parentID != nil {
		if *parentID == "" {
			updates["parent_id"] = nil
		} else {
			updates["parent_id"] = *parentID
		}
	}

	if len(updates) > 0 {
		if err := s.db.Model(category).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return category, nil
}

// DeleteCategory soft-deletes a category. Categories that protect history
// (default categories) or still carry data cannot be deleted; the setup apply
// layer falls back to zeroing their budget instead.
func (s *categoryService) DeleteCategory(ownerID, categoryID string) error {
	category, err := s.GetCategoryByID(ownerID, categoryID)
	if err != nil {
		return err
	}

	if category.IsDefault {
		return apperrors.ErrDefaultCategory
	}

	var childCount int64
	if err := s.db.Model(&models.Category{}).Where("parent_id = ?", categoryID).Count(&childCount).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if childCount > 0 {
		return apperrors.ErrCategoryHasChildren
	}

	var txCount int64
	if err := s.db.Model(&models.Transaction{}).Where("category_id = ?", categoryID).Count(&txCount).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if txCount > 0 {
		return apperrors.ErrCategoryInUse
	}

	// Soft delete. Closed snapshots keep their denormalized copy of the name
	// and mode, so history survives the deletion untouched.
	if err := s.db.Delete(category).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// checkParent verifies the parent exists, belongs to the owner, and is itself
// top-level (the tree is two tiers deep, never more).
func (s *categoryService) checkParent(ownerID, parentID string) error {
	var parent models.Category
	if err := s.db.Where("id = ? AND owner_id = ?", parentID, ownerID).First(&parent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.WithMessage(apperrors.ErrCategoryNotFound, "parent category not found")
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if parent.ParentID != nil {
		return apperrors.ErrCategoryDepth
	}
	return nil
}

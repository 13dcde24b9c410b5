package services

import (
	"errors"
	"math"
	"time"

	"gorm.io/gorm"

	apperrors "cycleledger/internal/errors"
	"cycleledger/internal/models"
	"cycleledger/internal/period"
)

// allocationService is the per-cycle allocation ledger. It is deliberately a
// dumb store: it records amounts and reports the parent/subcategory balance
// state, but enforcing balance is the caller's concern.
type allocationService struct {
	db *gorm.DB
}

// NewAllocationService creates a new AllocationServicer.
func NewAllocationService(db *gorm.DB) AllocationServicer {
	return &allocationService{db: db}
}

// GetAllocation returns the category's allocation for the cycle starting at
// periodStart, with its subcategory breakdown and balance state.
func (s *allocationService) GetAllocation(ownerID, categoryID string, periodStart time.Time) (*AllocationView, error) {
	periodStart = period.Day(periodStart)

	var category models.Category
	if err := s.db.Where("id = ? AND owner_id = ?", categoryID, ownerID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var children []models.Category
	if err := s.db.Where("parent_id = ?", categoryID).Order("created_at").Find(&children).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return s.buildView(ownerID, categoryID, periodStart, children)
}

// SetAllocations writes the parent amount and every subcategory amount for one
// cycle. Partial child updates are rejected rather than merged — stale
// subcategory totals are worse than a re-submitted form. The write succeeds
// whether or not the amounts balance; the returned view carries the flag.
func (s *allocationService) SetAllocations(ownerID, categoryID string, periodStart time.Time, parentAmount float64, children []ChildAllocation) (*AllocationView, error) {
	periodStart = period.Day(periodStart)

	var category models.Category
	if err := s.db.Where("id = ? AND owner_id = ?", categoryID, ownerID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if !validAmount(parentAmount) {
		return nil, apperrors.ErrInvalidAmount
	}
	for _, c := range children {
		if !validAmount(c.Amount) {
			return nil, apperrors.ErrInvalidAmount
		}
	}

	var existing []models.Category
	if err := s.db.Where("parent_id = ?", categoryID).Order("created_at").Find(&existing).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	supplied := make(map[string]float64, len(children))
	for _, c := range children {
		supplied[c.CategoryID] = c.Amount
	}
	for _, child := range existing {
		if _, ok := supplied[child.ID]; !ok {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput,
				"amounts must be supplied for every subcategory of the parent")
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := upsertAllocation(tx, ownerID, categoryID, periodStart, parentAmount); err != nil {
			return err
		}
		for _, child := range existing {
			if err := upsertAllocation(tx, ownerID, child.ID, periodStart, supplied[child.ID]); err != nil {
				return err
			}
		}
		// Amounts supplied for ids that are not subcategories of this parent
		// are dropped: the category may have been deleted or re-parented since
		// the form was loaded, and crashing the whole write over it helps nobody.
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return s.buildView(ownerID, categoryID, periodStart, existing)
}

func (s *allocationService) buildView(ownerID, categoryID string, periodStart time.Time, children []models.Category) (*AllocationView, error) {
	ids := make([]string, 0, len(children)+1)
	ids = append(ids, categoryID)
	for _, c := range children {
		ids = append(ids, c.ID)
	}

	var allocations []models.Allocation
	if err := s.db.Where("owner_id = ? AND category_id IN ? AND period_start = ?", ownerID, ids, periodStart).
		Find(&allocations).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	amounts := make(map[string]float64, len(allocations))
	for _, a := range allocations {
		amounts[a.CategoryID] = a.Amount
	}

	view := &AllocationView{
		CategoryID:  categoryID,
		PeriodStart: periodStart,
		Amount:      amounts[categoryID],
		Children:    []ChildAllocationView{},
	}
	for _, c := range children {
		view.Children = append(view.Children, ChildAllocationView{
			CategoryID: c.ID,
			Name:       c.Name,
			Amount:     amounts[c.ID],
		})
		view.ChildTotal += amounts[c.ID]
	}
	view.Balanced = len(children) == 0 ||
		math.Abs(view.ChildTotal-view.Amount) < models.BalanceEpsilon
	return view, nil
}

// upsertAllocation writes one (category, cycle) amount, replacing any
// previous value.
func upsertAllocation(tx *gorm.DB, ownerID, categoryID string, periodStart time.Time, amount float64) error {
	var alloc models.Allocation
	err := tx.Where("category_id = ? AND period_start = ?", categoryID, periodStart).First(&alloc).Error
	switch {
	case err == nil:
		return tx.Model(&alloc).Update("amount", amount).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		return tx.Create(&models.Allocation{
			OwnerID:     ownerID,
			CategoryID:  categoryID,
			PeriodStart: periodStart,
			Amount:      amount,
		}).Error
	default:
		return err
	}
}

// validAmount rejects negative and non-finite amounts.
func validAmount(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

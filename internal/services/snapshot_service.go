package services

import (
	"errors"
	"math"
	"sync"
	"time"

	"gorm.io/gorm"

	apperrors "cycleledger/internal/errors"
	"cycleledger/internal/models"
	"cycleledger/internal/pagination"
	"cycleledger/internal/period"
	"cycleledger/internal/rollover"
)

// snapshotService materializes immutable cycle snapshots. A cycle is closed
// lazily: the first history read after its end date computes spend totals,
// runs the rollover math per leaf category, and persists the header and rows.
// Once written, a snapshot is never recomputed or updated.
type snapshotService struct {
	db       *gorm.DB
	settings SettingsServicer

	// Per-owner serialization of cycle closes. The snapshot-exists check makes
	// the close idempotent; the lock prevents two concurrent closes from
	// racing past that check and both inserting for the same period start.
	mu         sync.Mutex
	ownerLocks map[string]*sync.Mutex
}

// NewSnapshotService creates a new SnapshotServicer.
func NewSnapshotService(db *gorm.DB, settings SettingsServicer) SnapshotServicer {
	return &snapshotService{
		db:         db,
		settings:   settings,
		ownerLocks: make(map[string]*sync.Mutex),
	}
}

func (s *snapshotService) ownerLock(ownerID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownerLocks[ownerID] == nil {
		s.ownerLocks[ownerID] = &sync.Mutex{}
	}
	return s.ownerLocks[ownerID]
}

// CloseElapsedCycles snapshots every fully-elapsed cycle that has none yet,
// walking forward from the latest automatic snapshot (or, when none exists,
// from the earliest allocation). Returns the number of cycles closed.
func (s *snapshotService) CloseElapsedCycles(ownerID string, today time.Time) (int, error) {
	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	settings, err := s.settings.GetSettings(ownerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrSettingsNotFound) {
			return 0, nil
		}
		return 0, err
	}
	today = period.Day(today)

	p, ok, err := s.firstUnclosedPeriod(ownerID, settings)
	if err != nil || !ok {
		return 0, err
	}

	closed := 0
	for p.End.Before(today) {
		exists, err := s.snapshotExists(ownerID, p.Start)
		if err != nil {
			return closed, err
		}
		if !exists {
			if err := s.closeCycle(ownerID, p); err != nil {
				return closed, err
			}
			closed++
		}
		// Follow the current settings grid rather than chaining p.Next, so a
		// settings change takes effect from the next boundary onward.
		p, err = period.Compute(settings.AnchorDate, settings.CycleLengthDays, p.EndExclusive(), 0)
		if err != nil {
			return closed, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return closed, nil
}

// firstUnclosedPeriod finds where the close walk should begin. Manual backfill
// snapshots are ignored here: they sit strictly before all automatic history
// and must not drag the walk back into periods nobody budgeted.
func (s *snapshotService) firstUnclosedPeriod(ownerID string, settings *models.BudgetSettings) (period.Period, bool, error) {
	var latest models.CycleSnapshot
	err := s.db.Where("owner_id = ? AND is_manual = ?", ownerID, false).
		Order("period_start DESC").First(&latest).Error
	switch {
	case err == nil:
		p, cerr := period.Compute(settings.AnchorDate, settings.CycleLengthDays, latest.PeriodEnd.AddDate(0, 0, 1), 0)
		if cerr != nil {
			return period.Period{}, false, apperrors.Wrap(apperrors.ErrInternalServer, cerr)
		}
		return p, true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		var first models.Allocation
		aerr := s.db.Where("owner_id = ?", ownerID).Order("period_start").First(&first).Error
		if errors.Is(aerr, gorm.ErrRecordNotFound) {
			return period.Period{}, false, nil
		}
		if aerr != nil {
			return period.Period{}, false, apperrors.Wrap(apperrors.ErrInternalServer, aerr)
		}
		p, cerr := period.Compute(settings.AnchorDate, settings.CycleLengthDays, first.PeriodStart, 0)
		if cerr != nil {
			return period.Period{}, false, apperrors.Wrap(apperrors.ErrInternalServer, cerr)
		}
		return p, true, nil
	default:
		return period.Period{}, false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
}

func (s *snapshotService) snapshotExists(ownerID string, periodStart time.Time) (bool, error) {
	var count int64
	if err := s.db.Model(&models.CycleSnapshot{}).
		Where("owner_id = ? AND period_start = ?", ownerID, periodStart).
		Count(&count).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return count > 0, nil
}

// closeCycle materializes the snapshot for one elapsed cycle.
func (s *snapshotService) closeCycle(ownerID string, p period.Period) error {
	var categories []models.Category
	if err := s.db.Where("owner_id = ?", ownerID).Find(&categories).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	header := models.CycleSnapshot{
		OwnerID:          ownerID,
		PeriodStart:      p.Start,
		PeriodEnd:        p.End,
		PeriodLengthDays: p.LengthDays,
	}
	var rows []models.CategoryCycleSnapshot

	for _, leaf := range models.Leaves(categories) {
		budget, hasBudget, err := s.budgetFor(ownerID, leaf.ID, p.Start)
		if err != nil {
			return err
		}
		spent, err := s.spentFor(ownerID, leaf.ID, p)
		if err != nil {
			return err
		}

		prior, appliedIn, hasPrior, err := s.priorCarryover(ownerID, leaf.ID, p.Start)
		if err != nil {
			return err
		}

		// A leaf with no allocation, no spend, and no carryover history has
		// nothing to record. It will be appended in a later cycle once it
		// carries data (headers are append-only, never rewritten).
		if !hasBudget && spent == 0 && !hasPrior {
			continue
		}

		res := rollover.Apply(leaf.RolloverMode, prior, budget-spent)
		rows = append(rows, models.CategoryCycleSnapshot{
			OwnerID:               ownerID,
			PeriodStart:           p.Start,
			CategoryID:            leaf.ID,
			CategoryName:          leaf.Name,
			RolloverMode:          leaf.RolloverMode,
			BudgetBase:            budget,
			Spent:                 spent,
			RemainingBase:         budget - spent,
			CarryoverAppliedIn:    appliedIn,
			CarryoverOut:          res.CarryoverOut,
			CarryoverRunningTotal: res.NewRunningTotal,
		})

		header.TotalBudgetBase += budget
		header.TotalSpent += spent
		header.CarryoverPositiveTotal += math.Max(res.CarryoverOut, 0)
		header.CarryoverNegativeTotal += math.Min(res.CarryoverOut, 0)
		header.CarryoverNetTotal += res.CarryoverOut
	}
	header.OverUnderBase = header.TotalBudgetBase - header.TotalSpent

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&header).Error; err != nil {
			return err
		}
		for i := range rows {
			if err := tx.Create(&rows[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func (s *snapshotService) budgetFor(ownerID, categoryID string, periodStart time.Time) (float64, bool, error) {
	var alloc models.Allocation
	err := s.db.Where("owner_id = ? AND category_id = ? AND period_start = ?", ownerID, categoryID, periodStart).
		First(&alloc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return alloc.Amount, true, nil
}

func (s *snapshotService) spentFor(ownerID, categoryID string, p period.Period) (float64, error) {
	var spent float64
	err := s.db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("owner_id = ? AND category_id = ? AND date >= ? AND date < ?",
			ownerID, categoryID, p.Start, p.EndExclusive()).
		Scan(&spent).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return spent, nil
}

// priorCarryover finds the category's most recent snapshot row before
// periodStart. Its running total seeds the rollover math and its carryover-out
// becomes this cycle's carryover-in.
func (s *snapshotService) priorCarryover(ownerID, categoryID string, periodStart time.Time) (prior, appliedIn float64, found bool, err error) {
	var row models.CategoryCycleSnapshot
	qerr := s.db.Where("owner_id = ? AND category_id = ? AND period_start < ?", ownerID, categoryID, periodStart).
		Order("period_start DESC").First(&row).Error
	if errors.Is(qerr, gorm.ErrRecordNotFound) {
		return 0, 0, false, nil
	}
	if qerr != nil {
		return 0, 0, false, apperrors.Wrap(apperrors.ErrInternalServer, qerr)
	}
	return row.CarryoverRunningTotal, row.CarryoverOut, true, nil
}

// GetHistory closes any elapsed cycles, then returns snapshot headers newest first.
func (s *snapshotService) GetHistory(ownerID string, today time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.CycleSnapshot], error) {
	if _, err := s.CloseElapsedCycles(ownerID, today); err != nil {
		return nil, err
	}

	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.CycleSnapshot{}).Where("owner_id = ?", ownerID)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var snapshots []models.CycleSnapshot
	if err := base.Order("period_start DESC").Scopes(pagination.Paginate(page)).Find(&snapshots).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(snapshots, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetCycleDetail returns the header and category rows for one closed cycle.
func (s *snapshotService) GetCycleDetail(ownerID string, periodStart time.Time) (*models.CycleSnapshot, []models.CategoryCycleSnapshot, error) {
	periodStart = period.Day(periodStart)

	var header models.CycleSnapshot
	if err := s.db.Where("owner_id = ? AND period_start = ?", ownerID, periodStart).First(&header).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.ErrSnapshotNotFound
		}
		return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var rows []models.CategoryCycleSnapshot
	if err := s.db.Where("owner_id = ? AND period_start = ?", ownerID, periodStart).
		Order("category_name").Find(&rows).Error; err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &header, rows, nil
}

// RecordManualCycle backfills history for a cycle that predates the earliest
// known snapshot. The caller supplies spent amounts directly; spend
// aggregation is skipped, but the same rollover math runs so that running
// totals stay consistent. Existing snapshots are never recomputed — manual
// entries extend history backward, nothing more.
func (s *snapshotService) RecordManualCycle(ownerID string, periodStart time.Time, lengthDays int, entries []ManualEntry) (*models.CycleSnapshot, error) {
	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	periodStart = period.Day(periodStart)

	if lengthDays <= 0 {
		settings, err := s.settings.GetSettings(ownerID)
		if err != nil {
			return nil, err
		}
		lengthDays = settings.CycleLengthDays
	}
	if len(entries) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "at least one category entry is required")
	}

	var earliest models.CycleSnapshot
	err := s.db.Where("owner_id = ?", ownerID).Order("period_start").First(&earliest).Error
	switch {
	case err == nil:
		if !periodStart.Before(earliest.PeriodStart) {
			return nil, apperrors.ErrManualCycleOutOfOrder
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No history yet; any start date is acceptable.
	default:
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	header := models.CycleSnapshot{
		OwnerID:          ownerID,
		PeriodStart:      periodStart,
		PeriodEnd:        periodStart.AddDate(0, 0, lengthDays-1),
		PeriodLengthDays: lengthDays,
		IsManual:         true,
	}
	var rows []models.CategoryCycleSnapshot

	for _, entry := range entries {
		if !validAmount(entry.BudgetBase) || !validAmount(entry.Spent) {
			return nil, apperrors.ErrInvalidAmount
		}

		// Soft-deleted categories are fair game for backfill: the history
		// being entered predates the deletion.
		var category models.Category
		if err := s.db.Unscoped().Where("id = ? AND owner_id = ?", entry.CategoryID, ownerID).
			First(&category).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Orphan reference: skip the row rather than failing the batch.
				continue
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		// A manual cycle is, by precondition, the earliest known history, so
		// there is never a prior running total to seed from.
		res := rollover.Apply(category.RolloverMode, 0, entry.BudgetBase-entry.Spent)
		rows = append(rows, models.CategoryCycleSnapshot{
			OwnerID:               ownerID,
			PeriodStart:           periodStart,
			CategoryID:            category.ID,
			CategoryName:          category.Name,
			RolloverMode:          category.RolloverMode,
			BudgetBase:            entry.BudgetBase,
			Spent:                 entry.Spent,
			RemainingBase:         entry.BudgetBase - entry.Spent,
			CarryoverOut:          res.CarryoverOut,
			CarryoverRunningTotal: res.NewRunningTotal,
		})

		header.TotalBudgetBase += entry.BudgetBase
		header.TotalSpent += entry.Spent
		header.CarryoverPositiveTotal += math.Max(res.CarryoverOut, 0)
		header.CarryoverNegativeTotal += math.Min(res.CarryoverOut, 0)
		header.CarryoverNetTotal += res.CarryoverOut
	}
	header.OverUnderBase = header.TotalBudgetBase - header.TotalSpent

	if len(rows) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrOrphanCategoryReference,
			"none of the referenced categories exist")
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&header).Error; err != nil {
			return err
		}
		for i := range rows {
			if err := tx.Create(&rows[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &header, nil
}

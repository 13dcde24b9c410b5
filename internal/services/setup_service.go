package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "cycleledger/internal/errors"
	"cycleledger/internal/models"
	"cycleledger/internal/period"
	"cycleledger/internal/setupdiff"
)

// setupService reconciles the setup wizard's draft tree against persisted
// categories and applies the resulting plan. The diff itself is pure
// (setupdiff package); this layer owns sequencing, name resolution, and the
// partial-success apply loop.
type setupService struct {
	db         *gorm.DB
	categories CategoryServicer
	settings   SettingsServicer
}

// NewSetupService creates a new SetupServicer.
func NewSetupService(db *gorm.DB, categories CategoryServicer, settings SettingsServicer) SetupServicer {
	return &setupService{db: db, categories: categories, settings: settings}
}

// Preview computes the create/update/delete plan without applying anything.
func (s *setupService) Preview(ownerID string, draft setupdiff.DraftTree) (*setupdiff.Diff, error) {
	persisted, err := s.loadPersisted(ownerID)
	if err != nil {
		return nil, err
	}
	diff := setupdiff.ComputeDiff(draft, persisted)
	return &diff, nil
}

// Commit persists the wizard's settings, computes the diff, and applies it:
// creates first (parents before children), then updates, then deletes.
// Per-row failures are collected, not fatal — the caller gets a summary of
// what succeeded and what did not.
func (s *setupService) Commit(ownerID string, draft setupdiff.DraftTree, cycleLengthDays int, anchorDate time.Time, incomePerCycle *float64, today time.Time) (*ApplyResult, error) {
	settings, err := s.settings.UpsertSettings(ownerID, cycleLengthDays, anchorDate, incomePerCycle)
	if err != nil {
		return nil, err
	}

	current, err := period.Compute(settings.AnchorDate, settings.CycleLengthDays, today, 0)
	if err != nil {
		return nil, err
	}

	persisted, err := s.loadPersisted(ownerID)
	if err != nil {
		return nil, err
	}
	diff := setupdiff.ComputeDiff(draft, persisted)

	// Case-insensitive name index over pre-existing categories, extended with
	// every create as it lands. Parent linkage and duplicate suppression both
	// resolve through it.
	nameIndex := make(map[string]string, len(persisted))
	for _, p := range persisted {
		nameIndex[strings.ToLower(p.Name)] = p.ID
	}

	result := &ApplyResult{
		Created: []string{}, Updated: []string{}, Deleted: []string{}, Zeroed: []string{},
		Errors: []ApplyError{},
	}

	s.applyCreates(ownerID, diff.Creates, nameIndex, current.Start, result)
	s.applyUpdates(ownerID, diff.Updates, nameIndex, current.Start, result)
	s.applyDeletes(ownerID, diff.Deletes, current.Start, result)

	return result, nil
}

func (s *setupService) loadPersisted(ownerID string) ([]setupdiff.PersistedCategory, error) {
	var categories []models.Category
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at").Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	persisted := make([]setupdiff.PersistedCategory, 0, len(categories))
	for _, c := range categories {
		p := setupdiff.PersistedCategory{ID: c.ID, Name: c.Name}
		if c.ParentID != nil {
			p.ParentID = *c.ParentID
		}
		persisted = append(persisted, p)
	}
	return persisted, nil
}

func (s *setupService) applyCreates(ownerID string, creates []setupdiff.Create, nameIndex map[string]string, periodStart time.Time, result *ApplyResult) {
	// Two passes: top-level creates first so child creates can resolve their
	// parent by name.
	for _, pass := range []bool{true, false} {
		for _, c := range creates {
			if (c.ParentName == "") != pass {
				continue
			}
			if !validAmount(c.Amount) {
				result.Errors = append(result.Errors, rowError("create", c.Name, "", apperrors.ErrInvalidAmount))
				continue
			}

			// An identically-named category already exists (pre-existing or
			// created moments ago): reuse it instead of creating a duplicate.
			if id, ok := nameIndex[strings.ToLower(c.Name)]; ok {
				if err := upsertAllocation(s.db, ownerID, id, periodStart, c.Amount); err != nil {
					result.Errors = append(result.Errors, rowError("create", c.Name, id, apperrors.Wrap(apperrors.ErrInternalServer, err)))
					continue
				}
				result.Updated = append(result.Updated, id)
				continue
			}

			var parentID *string
			if c.ParentName != "" {
				id, ok := nameIndex[strings.ToLower(c.ParentName)]
				if !ok {
					result.Errors = append(result.Errors, rowError("create", c.Name, "", apperrors.WithMessage(apperrors.ErrOrphanCategoryReference, "parent category could not be resolved")))
					continue
				}
				parentID = &id
			}

			category, err := s.categories.CreateCategory(ownerID, c.Name, parentID, c.RolloverMode, false)
			if err != nil {
				result.Errors = append(result.Errors, rowError("create", c.Name, "", err))
				continue
			}
			nameIndex[strings.ToLower(c.Name)] = category.ID

			if err := upsertAllocation(s.db, ownerID, category.ID, periodStart, c.Amount); err != nil {
				result.Errors = append(result.Errors, rowError("create", c.Name, category.ID, apperrors.Wrap(apperrors.ErrInternalServer, err)))
				continue
			}
			result.Created = append(result.Created, category.ID)
		}
	}
}

func (s *setupService) applyUpdates(ownerID string, updates []setupdiff.Update, nameIndex map[string]string, periodStart time.Time, result *ApplyResult) {
	for _, u := range updates {
		if !validAmount(u.Amount) {
			result.Errors = append(result.Errors, rowError("update", u.Name, u.ExistingID, apperrors.ErrInvalidAmount))
			continue
		}

		var parentID *string
		switch {
		case u.ParentExistingID != "":
			id := u.ParentExistingID
			parentID = &id
		case u.ParentName != "":
			// Parent was a pending create; it exists by now if its create
			// succeeded.
			if id, ok := nameIndex[strings.ToLower(u.ParentName)]; ok {
				parentID = &id
			}
		}

		if _, err := s.categories.UpdateCategory(ownerID, u.ExistingID, u.Name, parentID, u.RolloverMode); err != nil {
			// The category may have been deleted since the draft was built;
			// skip rather than abort the batch.
			result.Errors = append(result.Errors, rowError("update", u.Name, u.ExistingID, err))
			continue
		}
		nameIndex[strings.ToLower(u.Name)] = u.ExistingID

		if err := upsertAllocation(s.db, ownerID, u.ExistingID, periodStart, u.Amount); err != nil {
			result.Errors = append(result.Errors, rowError("update", u.Name, u.ExistingID, apperrors.Wrap(apperrors.ErrInternalServer, err)))
			continue
		}
		result.Updated = append(result.Updated, u.ExistingID)
	}
}

func (s *setupService) applyDeletes(ownerID string, deletes []string, periodStart time.Time, result *ApplyResult) {
	// Children before parents, so a parent is leaf-like by the time its own
	// delete is attempted.
	ordered := make([]string, 0, len(deletes))
	var parents []string
	for _, id := range deletes {
		category, err := s.categories.GetCategoryByID(ownerID, id)
		if err != nil {
			// Already gone; nothing to do.
			continue
		}
		if category.ParentID != nil {
			ordered = append(ordered, id)
		} else {
			parents = append(parents, id)
		}
	}
	ordered = append(ordered, parents...)

	for _, id := range ordered {
		err := s.categories.DeleteCategory(ownerID, id)
		switch {
		case err == nil:
			result.Deleted = append(result.Deleted, id)
		case errors.Is(err, apperrors.ErrCategoryInUse) || errors.Is(err, apperrors.ErrDefaultCategory):
			// Documented escape hatch: categories that cannot be removed get
			// their budget zeroed for the current cycle instead.
			if zerr := upsertAllocation(s.db, ownerID, id, periodStart, 0); zerr != nil {
				result.Errors = append(result.Errors, rowError("delete", "", id, apperrors.Wrap(apperrors.ErrInternalServer, zerr)))
				continue
			}
			result.Zeroed = append(result.Zeroed, id)
		default:
			result.Errors = append(result.Errors, rowError("delete", "", id, err))
		}
	}
}

func rowError(op, name, id string, err error) ApplyError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return ApplyError{Op: op, Name: name, ID: id, Code: appErr.Code, Message: appErr.Message}
	}
	return ApplyError{Op: op, Name: name, ID: id, Code: apperrors.ErrInternalServer.Code, Message: err.Error()}
}

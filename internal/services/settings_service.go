package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "cycleledger/internal/errors"
	"cycleledger/internal/models"
	"cycleledger/internal/period"
)

// settingsService handles budget settings business logic.
type settingsService struct {
	db *gorm.DB
}

// NewSettingsService creates a new SettingsServicer.
func NewSettingsService(db *gorm.DB) SettingsServicer {
	return &settingsService{db: db}
}

// GetSettings returns the owner's budget settings.
func (s *settingsService) GetSettings(ownerID string) (*models.BudgetSettings, error) {
	var settings models.BudgetSettings
	if err := s.db.Where("owner_id = ?", ownerID).First(&settings).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrSettingsNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &settings, nil
}

// UpsertSettings creates or replaces the owner's budget settings. The anchor
// date is normalized to UTC midnight. Already-closed snapshots are unaffected;
// only future period computation changes.
func (s *settingsService) UpsertSettings(ownerID string, cycleLengthDays int, anchorDate time.Time, monthlyIncome *float64) (*models.BudgetSettings, error) {
	if cycleLengthDays <= 0 {
		return nil, apperrors.ErrInvalidConfiguration
	}
	anchorDate = period.Day(anchorDate)

	var settings models.BudgetSettings
	err := s.db.Where("owner_id = ?", ownerID).First(&settings).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"cycle_length_days": cycleLengthDays,
			"anchor_date":       anchorDate,
			"monthly_income":    monthlyIncome,
		}
		if err := s.db.Model(&settings).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		settings = models.BudgetSettings{
			OwnerID:         ownerID,
			CycleLengthDays: cycleLengthDays,
			AnchorDate:      anchorDate,
			MonthlyIncome:   monthlyIncome,
		}
		if err := s.db.Create(&settings).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	default:
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return &settings, nil
}

// ComputePeriod returns the cycle containing reference shifted by offset
// whole cycles, under the owner's current settings.
func (s *settingsService) ComputePeriod(ownerID string, reference time.Time, offset int) (period.Period, error) {
	settings, err := s.GetSettings(ownerID)
	if err != nil {
		return period.Period{}, err
	}
	return period.Compute(settings.AnchorDate, settings.CycleLengthDays, reference, offset)
}

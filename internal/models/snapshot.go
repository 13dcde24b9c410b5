package models

import (
	"time"

	"cycleledger/internal/uuid"

	"gorm.io/gorm"
)

// CycleSnapshot is the immutable header for one closed budget cycle.
// Immutable time-series data — no Base embed, no soft deletes, never updated
// after creation.
type CycleSnapshot struct {
	ID               string    `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID          string    `gorm:"type:uuid;not null;uniqueIndex:idx_snapshot_owner_period" json:"owner_id"`
	PeriodStart      time.Time `gorm:"not null;uniqueIndex:idx_snapshot_owner_period" json:"period_start"`
	PeriodEnd        time.Time `gorm:"not null" json:"period_end"`
	PeriodLengthDays int       `gorm:"not null" json:"period_length_days"`

	TotalBudgetBase float64 `gorm:"not null" json:"total_budget_base"`
	TotalSpent      float64 `gorm:"not null" json:"total_spent"`
	OverUnderBase   float64 `gorm:"not null" json:"over_under_base"`

	CarryoverPositiveTotal float64 `gorm:"not null" json:"carryover_positive_total"`
	CarryoverNegativeTotal float64 `gorm:"not null" json:"carryover_negative_total"`
	CarryoverNetTotal      float64 `gorm:"not null" json:"carryover_net_total"`

	// IsManual marks user-entered backfill cycles, which skip spend aggregation.
	IsManual bool `gorm:"not null;default:false" json:"is_manual"`

	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (s *CycleSnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New()
	}
	return nil
}

// CategoryCycleSnapshot is one leaf category's row within a closed cycle.
// Name and rollover mode are copied at snapshot time rather than joined live,
// so renaming or deleting the category later never rewrites history.
type CategoryCycleSnapshot struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID     string    `gorm:"type:uuid;not null;index:idx_row_owner_period" json:"owner_id"`
	PeriodStart time.Time `gorm:"not null;index:idx_row_owner_period" json:"period_start"`
	CategoryID  string    `gorm:"type:uuid;not null;index" json:"category_id"`

	CategoryName string       `gorm:"not null" json:"category_name"`
	RolloverMode RolloverMode `gorm:"not null" json:"rollover_mode"`

	BudgetBase    float64 `gorm:"not null" json:"budget_base"`
	Spent         float64 `gorm:"not null" json:"spent"`
	RemainingBase float64 `gorm:"not null" json:"remaining_base"`

	CarryoverAppliedIn    float64 `gorm:"not null" json:"carryover_applied_in"`
	CarryoverOut          float64 `gorm:"not null" json:"carryover_out"`
	CarryoverRunningTotal float64 `gorm:"not null" json:"carryover_running_total"`

	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (r *CategoryCycleSnapshot) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New()
	}
	return nil
}

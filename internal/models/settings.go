package models

import "time"

// BudgetSettings holds a single owner's cycle configuration. The anchor date
// marks the start of cycle index zero; every other cycle boundary is derived
// from it and the cycle length. Changing these values affects only future
// period computation — closed snapshots store their own boundaries.
type BudgetSettings struct {
	Base
	OwnerID         string    `gorm:"type:uuid;not null;uniqueIndex" json:"owner_id"`
	CycleLengthDays int       `gorm:"not null" json:"cycle_length_days"`
	AnchorDate      time.Time `gorm:"not null" json:"anchor_date"`
	MonthlyIncome   *float64  `json:"monthly_income,omitempty"`
}

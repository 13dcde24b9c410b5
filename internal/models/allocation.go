package models

import "time"

// BalanceEpsilon is the tolerance used when comparing a parent amount against
// the sum of its subcategory amounts. Amounts are decimal currency units.
const BalanceEpsilon = 0.01

// Allocation is the budgeted amount for one category in one cycle, keyed by
// the cycle's start date.
type Allocation struct {
	Base
	OwnerID     string    `gorm:"type:uuid;not null;index:idx_alloc_owner_period" json:"owner_id"`
	CategoryID  string    `gorm:"type:uuid;not null;uniqueIndex:idx_alloc_category_period" json:"category_id"`
	PeriodStart time.Time `gorm:"not null;index:idx_alloc_owner_period;uniqueIndex:idx_alloc_category_period" json:"period_start"`
	Amount      float64   `gorm:"not null;default:0" json:"amount"`
}

package services

import (
	"time"

	"cycleledger/internal/models"
	"cycleledger/internal/pagination"
	"cycleledger/internal/period"
	"cycleledger/internal/setupdiff"
)

// SettingsServicer defines the contract for budget settings business logic.
type SettingsServicer interface {
	GetSettings(ownerID string) (*models.BudgetSettings, error)
	UpsertSettings(ownerID string, cycleLengthDays int, anchorDate time.Time, monthlyIncome *float64) (*models.BudgetSettings, error)
	ComputePeriod(ownerID string, reference time.Time, offset int) (period.Period, error)
}

// CategoryServicer defines the contract for category business logic.
type CategoryServicer interface {
	CreateCategory(ownerID, name string, parentID *string, mode models.RolloverMode, isDefault bool) (*models.Category, error)
	GetCategoryTree(ownerID string) ([]models.CategoryNode, error)
	GetCategoryByID(ownerID, categoryID string) (*models.Category, error)
	UpdateCategory(ownerID, categoryID, name string, parentID *string, mode models.RolloverMode) (*models.Category, error)
	DeleteCategory(ownerID, categoryID string) error
}

// ChildAllocation is a caller-supplied budgeted amount for one subcategory.
type ChildAllocation struct {
	CategoryID string  `json:"category_id"`
	Amount     float64 `json:"amount"`
}

// ChildAllocationView is a subcategory's stored allocation with its name resolved.
type ChildAllocationView struct {
	CategoryID string  `json:"category_id"`
	Name       string  `json:"name"`
	Amount     float64 `json:"amount"`
}

// AllocationView is a category's allocation for one cycle together with its
// subcategory breakdown. Balanced reports whether the subcategory amounts sum
// to the parent amount within tolerance; it is informational, never enforced.
type AllocationView struct {
	CategoryID  string                `json:"category_id"`
	PeriodStart time.Time             `json:"period_start"`
	Amount      float64               `json:"amount"`
	Children    []ChildAllocationView `json:"children"`
	ChildTotal  float64               `json:"child_total"`
	Balanced    bool                  `json:"balanced"`
}

// AllocationServicer defines the contract for the allocation ledger.
type AllocationServicer interface {
	GetAllocation(ownerID, categoryID string, periodStart time.Time) (*AllocationView, error)
	SetAllocations(ownerID, categoryID string, periodStart time.Time, parentAmount float64, children []ChildAllocation) (*AllocationView, error)
}

// ManualEntry is one category's user-entered figures for a manual historical cycle.
type ManualEntry struct {
	CategoryID string  `json:"category_id"`
	BudgetBase float64 `json:"budget_base"`
	Spent      float64 `json:"spent"`
}

// SnapshotServicer defines the contract for cycle history and close logic.
type SnapshotServicer interface {
	CloseElapsedCycles(ownerID string, today time.Time) (int, error)
	GetHistory(ownerID string, today time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.CycleSnapshot], error)
	GetCycleDetail(ownerID string, periodStart time.Time) (*models.CycleSnapshot, []models.CategoryCycleSnapshot, error)
	RecordManualCycle(ownerID string, periodStart time.Time, lengthDays int, entries []ManualEntry) (*models.CycleSnapshot, error)
}

// ApplyError records one non-fatal failure from a setup commit. The commit
// loop continues past these and reports them in the summary.
type ApplyError struct {
	Op      string `json:"op"`
	Name    string `json:"name,omitempty"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ApplyResult is the partial-success summary of a setup commit.
type ApplyResult struct {
	Created []string     `json:"created"`
	Updated []string     `json:"updated"`
	Deleted []string     `json:"deleted"`
	Zeroed  []string     `json:"zeroed"`
	Errors  []ApplyError `json:"errors"`
}

// SetupServicer defines the contract for the setup wizard reconciliation.
type SetupServicer interface {
	Preview(ownerID string, draft setupdiff.DraftTree) (*setupdiff.Diff, error)
	Commit(ownerID string, draft setupdiff.DraftTree, cycleLengthDays int, anchorDate time.Time, incomePerCycle *float64, today time.Time) (*ApplyResult, error)
}

package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"cycleledger/internal/models"
	"cycleledger/internal/uuid"

	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// NewOwnerID returns a fresh owner identity for a test.
func NewOwnerID() string {
	return uuid.New()
}

// Date builds a UTC midnight time from a YYYY-MM-DD literal, failing the test
// on a malformed literal.
func Date(t *testing.T, value string) time.Time {
	t.Helper()

	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("invalid date literal %q: %v", value, err)
	}
	return d
}

// CreateTestSettings creates budget settings for the owner.
func CreateTestSettings(t *testing.T, db *gorm.DB, ownerID string, cycleLengthDays int, anchorDate time.Time) *models.BudgetSettings {
	t.Helper()

	settings := &models.BudgetSettings{
		OwnerID:         ownerID,
		CycleLengthDays: cycleLengthDays,
		AnchorDate:      anchorDate,
	}
	if err := db.Create(settings).Error; err != nil {
		t.Fatalf("failed to create test settings: %v", err)
	}
	return settings
}

// CreateTestCategory creates a top-level category with the given rollover mode.
func CreateTestCategory(t *testing.T, db *gorm.DB, ownerID string, mode models.RolloverMode) *models.Category {
	t.Helper()
	return CreateTestCategoryNamed(t, db, ownerID, fmt.Sprintf("Test Category %d", nextID()), nil, mode)
}

// CreateTestSubcategory creates a subcategory under the given parent.
func CreateTestSubcategory(t *testing.T, db *gorm.DB, ownerID, parentID string, mode models.RolloverMode) *models.Category {
	t.Helper()
	return CreateTestCategoryNamed(t, db, ownerID, fmt.Sprintf("Test Subcategory %d", nextID()), &parentID, mode)
}

// CreateTestCategoryNamed creates a category with an explicit name and parent.
func CreateTestCategoryNamed(t *testing.T, db *gorm.DB, ownerID, name string, parentID *string, mode models.RolloverMode) *models.Category {
	t.Helper()

	category := &models.Category{
		OwnerID:      ownerID,
		Name:         name,
		ParentID:     parentID,
		RolloverMode: mode,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestAllocation creates an allocation for the category in the cycle
// starting at periodStart.
func CreateTestAllocation(t *testing.T, db *gorm.DB, ownerID, categoryID string, periodStart time.Time, amount float64) *models.Allocation {
	t.Helper()

	alloc := &models.Allocation{
		OwnerID:     ownerID,
		CategoryID:  categoryID,
		PeriodStart: periodStart,
		Amount:      amount,
	}
	if err := db.Create(alloc).Error; err != nil {
		t.Fatalf("failed to create test allocation: %v", err)
	}
	return alloc
}

// CreateTestTransaction creates a spend record on the given date.
func CreateTestTransaction(t *testing.T, db *gorm.DB, ownerID, categoryID string, date time.Time, amount float64) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		OwnerID:     ownerID,
		CategoryID:  &categoryID,
		Amount:      amount,
		Date:        date,
		Description: fmt.Sprintf("Test Transaction %d", nextID()),
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

package services_test

import (
	"testing"

	"cycleledger/internal/models"
	"cycleledger/internal/pagination"
	"cycleledger/internal/services"
	"cycleledger/internal/testutil"
)

func TestCloseElapsedCycles(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	settingsSvc := services.NewSettingsService(db)
	svc := services.NewSnapshotService(db, settingsSvc)

	t.Run("carryover chains across consecutive cycles", func(t *testing.T) {
		ownerID := testutil.NewOwnerID()
		testutil.CreateTestSettings(t, db, ownerID, 30, testutil.Date(t, "2024-01-01"))
		groceries := testutil.CreateTestCategoryNamed(t, db, ownerID, "Groceries", nil, models.RolloverPositive)

		// Cycle 0: 2024-01-01..01-30, budget 500, spent 420 -> carries +80.
		// Cycle 1: 2024-01-31..02-29, budget 500, spent 560 -> deficit absorbed.
		testutil.CreateTestAllocation(t, db, ownerID, groceries.ID, testutil.Date(t, "2024-01-01"), 500)
		testutil.CreateTestAllocation(t, db, ownerID, groceries.ID, testutil.Date(t, "2024-01-31"), 500)
		testutil.CreateTestTransaction(t, db, ownerID, groceries.ID, testutil.Date(t, "2024-01-05"), 420)
		testutil.CreateTestTransaction(t, db, ownerID, groceries.ID, testutil.Date(t, "2024-02-10"), 560)

		closed, err := svc.CloseElapsedCycles(ownerID, testutil.Date(t, "2024-03-05"))
		testutil.AssertNoError(t, err)
		if closed != 2 {
			t.Fatalf("expected 2 cycles closed, got %d", closed)
		}

		header, rows, err := svc.GetCycleDetail(ownerID, testutil.Date(t, "2024-01-01"))
		testutil.AssertNoError(t, err)
		testutil.AssertAmount(t, "cycle 0 total budget", header.TotalBudgetBase, 500)
		testutil.AssertAmount(t, "cycle 0 total spent", header.TotalSpent, 420)
		testutil.AssertAmount(t, "cycle 0 over/under", header.OverUnderBase, 80)
		testutil.AssertAmount(t, "cycle 0 positive carry", header.CarryoverPositiveTotal, 80)
		if len(rows) != 1 {
			t.Fatalf("expected 1 category row, got %d", len(rows))
		}
		testutil.AssertAmount(t, "cycle 0 carryover out", rows[0].CarryoverOut, 80)
		testutil.AssertAmount(t, "cycle 0 running total", rows[0].CarryoverRunningTotal, 80)
		testutil.AssertAmount(t, "cycle 0 applied in", rows[0].CarryoverAppliedIn, 0)

		_, rows, err = svc.GetCycleDetail(ownerID, testutil.Date(t, "2024-01-31"))
		testutil.AssertNoError(t, err)
		if len(rows) != 1 {
			t.Fatalf("expected 1 category row, got %d", len(rows))
		}
		// Positive mode: the 60 deficit does not carry and cannot erode the
		// running surplus.
		testutil.AssertAmount(t, "cycle 1 applied in", rows[0].CarryoverAppliedIn, 80)
		testutil.AssertAmount(t, "cycle 1 carryover out", rows[0].CarryoverOut, 0)
		testutil.AssertAmount(t, "cycle 1 running total", rows[0].CarryoverRunningTotal, 80)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		ownerID := testutil.NewOwnerID()
		testutil.CreateTestSettings(t, db, ownerID, 30, testutil.Date(t, "2024-01-01"))
		rent := testutil.CreateTestCategoryNamed(t, db, ownerID, "Rent", nil, models.RolloverNone)
		testutil.CreateTestAllocation(t, db, ownerID, rent.ID, testutil.Date(t, "2024-01-01"), 1200)

		closed, err := svc.CloseElapsedCycles(ownerID, testutil.Date(t, "2024-02-15"))
		testutil.AssertNoError(t, err)
		if closed != 1 {
			t.Fatalf("expected 1 cycle closed, got %d", closed)
		}

		closed, err = svc.CloseElapsedCycles(ownerID, testutil.Date(t, "2024-02-15"))
		testutil.AssertNoError(t, err)
		if closed != 0 {
			t.Errorf("second close should be a no-op, closed %d", closed)
		}

		var count int64
		if err := db.Model(&models.CycleSnapshot{}).Where("owner_id = ?", ownerID).Count(&count).Error; err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count != 1 {
			t.Errorf("expected exactly 1 snapshot, got %d", count)
		}
	})

	t.Run("inactive leaves are omitted from rows", func(t *testing.T) {
		ownerID := testutil.NewOwnerID()
		testutil.CreateTestSettings(t, db, ownerID, 30, testutil.Date(t, "2024-01-01"))
		rent := testutil.CreateTestCategoryNamed(t, db, ownerID, "Rent", nil, models.RolloverNone)
		testutil.CreateTestCategoryNamed(t, db, ownerID, "Hobby", nil, models.RolloverBoth)
		testutil.CreateTestAllocation(t, db, ownerID, rent.ID, testutil.Date(t, "2024-01-01"), 1200)

		_, err := svc.CloseElapsedCycles(ownerID, testutil.Date(t, "2024-02-15"))
		testutil.AssertNoError(t, err)

		_, rows, err := svc.GetCycleDetail(ownerID, testutil.Date(t, "2024-01-01"))
		testutil.AssertNoError(t, err)
		if len(rows) != 1 || rows[0].CategoryName != "Rent" {
			t.Errorf("expected only the Rent row, got %d rows", len(rows))
		}
	})

	t.Run("nothing to do without settings or allocations", func(t *testing.T) {
		closed, err := svc.CloseElapsedCycles(testutil.NewOwnerID(), testutil.Date(t, "2024-02-15"))
		testutil.AssertNoError(t, err)
		if closed != 0 {
			t.Errorf("expected 0 closes, got %d", closed)
		}

		ownerID := testutil.NewOwnerID()
		testutil.CreateTestSettings(t, db, ownerID, 30, testutil.Date(t, "2024-01-01"))
		closed, err = svc.CloseElapsedCycles(ownerID, testutil.Date(t, "2024-02-15"))
		testutil.AssertNoError(t, err)
		if closed != 0 {
			t.Errorf("expected 0 closes with no allocations, got %d", closed)
		}
	})

	t.Run("snapshot rows survive category deletion", func(t *testing.T) {
		ownerID := testutil.NewOwnerID()
		testutil.CreateTestSettings(t, db, ownerID, 30, testutil.Date(t, "2024-01-01"))
		gym := testutil.CreateTestCategoryNamed(t, db, ownerID, "Gym", nil, models.RolloverNone)
		testutil.CreateTestAllocation(t, db, ownerID, gym.ID, testutil.Date(t, "2024-01-01"), 60)

		_, err := svc.CloseElapsedCycles(ownerID, testutil.Date(t, "2024-02-15"))
		testutil.AssertNoError(t, err)

		categorySvc := services.NewCategoryService(db)
		testutil.AssertNoError(t, categorySvc.DeleteCategory(ownerID, gym.ID))

		_, rows, err := svc.GetCycleDetail(ownerID, testutil.Date(t, "2024-01-01"))
		testutil.AssertNoError(t, err)
		if len(rows) != 1 || rows[0].CategoryName != "Gym" {
			t.Error("denormalized snapshot row should survive the deletion")
		}
	})
}

func TestGetHistory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	settingsSvc := services.NewSettingsService(db)
	svc := services.NewSnapshotService(db, settingsSvc)

	ownerID := testutil.NewOwnerID()
	testutil.CreateTestSettings(t, db, ownerID, 30, testutil.Date(t, "2024-01-01"))
	rent := testutil.CreateTestCategoryNamed(t, db, ownerID, "Rent", nil, models.RolloverNone)
	testutil.CreateTestAllocation(t, db, ownerID, rent.ID, testutil.Date(t, "2024-01-01"), 1200)

	// Listing lazily closes the three elapsed cycles.
	resp, err := svc.GetHistory(ownerID, testutil.Date(t, "2024-04-05"), pagination.PageRequest{})
	testutil.AssertNoError(t, err)

	if resp.TotalItems != 3 {
		t.Fatalf("expected 3 snapshots, got %d", resp.TotalItems)
	}
	if len(resp.Data) != 3 {
		t.Fatalf("expected 3 rows on page 1, got %d", len(resp.Data))
	}
	// Newest first.
	if !resp.Data[0].PeriodStart.After(resp.Data[2].PeriodStart) {
		t.Error("expected history ordered newest first")
	}

	paged, err := svc.GetHistory(ownerID, testutil.Date(t, "2024-04-05"), pagination.PageRequest{Page: 2, PageSize: 2})
	testutil.AssertNoError(t, err)
	if len(paged.Data) != 1 || paged.TotalPages != 2 {
		t.Errorf("expected 1 row on page 2 of 2, got %d rows / %d pages", len(paged.Data), paged.TotalPages)
	}
}

func TestGetCycleDetailNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	svc := services.NewSnapshotService(db, services.NewSettingsService(db))

	_, _, err := svc.GetCycleDetail(testutil.NewOwnerID(), testutil.Date(t, "2024-01-01"))
	testutil.AssertAppError(t, err, "SNAPSHOT_NOT_FOUND")
}

func TestRecordManualCycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	settingsSvc := services.NewSettingsService(db)
	svc := services.NewSnapshotService(db, settingsSvc)

	t.Run("backfills before recorded history", func(t *testing.T) {
		ownerID := testutil.NewOwnerID()
		testutil.CreateTestSettings(t, db, ownerID, 30, testutil.Date(t, "2024-01-01"))
		groceries := testutil.CreateTestCategoryNamed(t, db, ownerID, "Groceries", nil, models.RolloverBoth)

		snapshot, err := svc.RecordManualCycle(ownerID, testutil.Date(t, "2023-11-01"), 0, []services.ManualEntry{
			{CategoryID: groceries.ID, BudgetBase: 100, Spent: 150},
		})
		testutil.AssertNoError(t, err)

		if !snapshot.IsManual {
			t.Error("expected a manual snapshot")
		}
		if snapshot.PeriodLengthDays != 30 {
			t.Errorf("length should default from settings, got %d", snapshot.PeriodLengthDays)
		}
		testutil.AssertAmount(t, "over/under", snapshot.OverUnderBase, -50)

		_, rows, err := svc.GetCycleDetail(ownerID, testutil.Date(t, "2023-11-01"))
		testutil.AssertNoError(t, err)
		if len(rows) != 1 {
			t.Fatalf("expected 1 row, got %d", len(rows))
		}
		testutil.AssertAmount(t, "carryover out", rows[0].CarryoverOut, -50)
		testutil.AssertAmount(t, "running total", rows[0].CarryoverRunningTotal, -50)
	})

	t.Run("rejects a cycle at or after the earliest snapshot", func(t *testing.T) {
		ownerID := testutil.NewOwnerID()
		testutil.CreateTestSettings(t, db, ownerID, 30, testutil.Date(t, "2024-01-01"))
		groceries := testutil.CreateTestCategoryNamed(t, db, ownerID, "Groceries", nil, models.RolloverBoth)

		_, err := svc.RecordManualCycle(ownerID, testutil.Date(t, "2023-11-01"), 0, []services.ManualEntry{
			{CategoryID: groceries.ID, BudgetBase: 100, Spent: 80},
		})
		testutil.AssertNoError(t, err)

		_, err = svc.RecordManualCycle(ownerID, testutil.Date(t, "2023-12-01"), 0, []services.ManualEntry{
			{CategoryID: groceries.ID, BudgetBase: 100, Spent: 80},
		})
		testutil.AssertAppError(t, err, "MANUAL_CYCLE_OUT_OF_ORDER")
	})

	t.Run("skips orphan references but needs at least one real category", func(t *testing.T) {
		ownerID := testutil.NewOwnerID()
		testutil.CreateTestSettings(t, db, ownerID, 30, testutil.Date(t, "2024-01-01"))
		groceries := testutil.CreateTestCategoryNamed(t, db, ownerID, "Groceries", nil, models.RolloverNone)

		snapshot, err := svc.RecordManualCycle(ownerID, testutil.Date(t, "2023-10-02"), 0, []services.ManualEntry{
			{CategoryID: groceries.ID, BudgetBase: 100, Spent: 90},
			{CategoryID: testutil.NewOwnerID(), BudgetBase: 50, Spent: 10},
		})
		testutil.AssertNoError(t, err)
		testutil.AssertAmount(t, "only the real row counts", snapshot.TotalBudgetBase, 100)

		_, err = svc.RecordManualCycle(ownerID, testutil.Date(t, "2023-09-02"), 0, []services.ManualEntry{
			{CategoryID: testutil.NewOwnerID(), BudgetBase: 50, Spent: 10},
		})
		testutil.AssertAppError(t, err, "ORPHAN_CATEGORY_REFERENCE")
	})

	t.Run("rejects empty and invalid entries", func(t *testing.T) {
		ownerID := testutil.NewOwnerID()
		testutil.CreateTestSettings(t, db, ownerID, 30, testutil.Date(t, "2024-01-01"))
		groceries := testutil.CreateTestCategoryNamed(t, db, ownerID, "Groceries", nil, models.RolloverNone)

		_, err := svc.RecordManualCycle(ownerID, testutil.Date(t, "2023-11-01"), 0, nil)
		testutil.AssertAppError(t, err, "INVALID_INPUT")

		_, err = svc.RecordManualCycle(ownerID, testutil.Date(t, "2023-11-01"), 0, []services.ManualEntry{
			{CategoryID: groceries.ID, BudgetBase: -5, Spent: 0},
		})
		testutil.AssertAppError(t, err, "INVALID_AMOUNT")
	})

	t.Run("manual cycles do not seed the automatic close walk", func(t *testing.T) {
		ownerID := testutil.NewOwnerID()
		testutil.CreateTestSettings(t, db, ownerID, 30, testutil.Date(t, "2024-01-01"))
		groceries := testutil.CreateTestCategoryNamed(t, db, ownerID, "Groceries", nil, models.RolloverNone)

		_, err := svc.RecordManualCycle(ownerID, testutil.Date(t, "2023-06-01"), 0, []services.ManualEntry{
			{CategoryID: groceries.ID, BudgetBase: 100, Spent: 90},
		})
		testutil.AssertNoError(t, err)

		// The only allocation starts 2024-01-01; the walk must begin there, not
		// at the manual cycle from mid-2023.
		testutil.CreateTestAllocation(t, db, ownerID, groceries.ID, testutil.Date(t, "2024-01-01"), 400)

		closed, err := svc.CloseElapsedCycles(ownerID, testutil.Date(t, "2024-02-15"))
		testutil.AssertNoError(t, err)
		if closed != 1 {
			t.Errorf("expected exactly 1 automatic close, got %d", closed)
		}
	})
}

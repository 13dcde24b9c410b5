package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "cycleledger/internal/errors"
	"cycleledger/internal/models"
	"cycleledger/internal/pagination"
	"cycleledger/internal/services"
	"cycleledger/internal/uuid"
)

// --- mock snapshot service ---

type mockSnapshotService struct {
	closeElapsedCyclesFn func(ownerID string, today time.Time) (int, error)
	getHistoryFn         func(ownerID string, today time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.CycleSnapshot], error)
	getCycleDetailFn     func(ownerID string, periodStart time.Time) (*models.CycleSnapshot, []models.CategoryCycleSnapshot, error)
	recordManualCycleFn  func(ownerID string, periodStart time.Time, lengthDays int, entries []services.ManualEntry) (*models.CycleSnapshot, error)
}

func (m *mockSnapshotService) CloseElapsedCycles(ownerID string, today time.Time) (int, error) {
	if m.closeElapsedCyclesFn != nil {
		return m.closeElapsedCyclesFn(ownerID, today)
	}
	return 0, nil
}

func (m *mockSnapshotService) GetHistory(ownerID string, today time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.CycleSnapshot], error) {
	if m.getHistoryFn != nil {
		return m.getHistoryFn(ownerID, today, page)
	}
	resp := pagination.NewPageResponse([]models.CycleSnapshot{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockSnapshotService) GetCycleDetail(ownerID string, periodStart time.Time) (*models.CycleSnapshot, []models.CategoryCycleSnapshot, error) {
	if m.getCycleDetailFn != nil {
		return m.getCycleDetailFn(ownerID, periodStart)
	}
	return &models.CycleSnapshot{}, nil, nil
}

func (m *mockSnapshotService) RecordManualCycle(ownerID string, periodStart time.Time, lengthDays int, entries []services.ManualEntry) (*models.CycleSnapshot, error) {
	if m.recordManualCycleFn != nil {
		return m.recordManualCycleFn(ownerID, periodStart, lengthDays, entries)
	}
	return &models.CycleSnapshot{}, nil
}

var _ services.SnapshotServicer = (*mockSnapshotService)(nil)

func setupHistoryRouter(handler *HistoryHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectOwnerID(testOwnerID))
	auth.GET("/history", handler.GetHistory)
	auth.GET("/history/:periodStart", handler.GetCycleDetail)
	auth.POST("/history/manual", handler.RecordManualCycle)
	return r
}

func TestHistoryHandler_GetHistory(t *testing.T) {
	t.Run("returns the paginated listing", func(t *testing.T) {
		snapSvc := &mockSnapshotService{
			getHistoryFn: func(_ string, _ time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.CycleSnapshot], error) {
				resp := pagination.NewPageResponse([]models.CycleSnapshot{
					{ID: uuid.New(), PeriodStart: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
					{ID: uuid.New(), PeriodStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
				}, page.Page, page.PageSize, 2)
				return &resp, nil
			},
		}
		handler := NewHistoryHandler(snapSvc)
		r := setupHistoryRouter(handler)

		rec := doRequest(r, "GET", "/history", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["total_items"].(float64) != 2 {
			t.Errorf("expected 2 items, got %v", result["total_items"])
		}
	})

	t.Run("returns 400 on bad pagination", func(t *testing.T) {
		handler := NewHistoryHandler(&mockSnapshotService{})
		r := setupHistoryRouter(handler)

		rec := doRequest(r, "GET", "/history?page=0", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestHistoryHandler_GetCycleDetail(t *testing.T) {
	t.Run("returns header and rows", func(t *testing.T) {
		snapSvc := &mockSnapshotService{
			getCycleDetailFn: func(_ string, periodStart time.Time) (*models.CycleSnapshot, []models.CategoryCycleSnapshot, error) {
				return &models.CycleSnapshot{ID: uuid.New(), PeriodStart: periodStart, TotalSpent: 420},
					[]models.CategoryCycleSnapshot{{ID: uuid.New(), CategoryName: "Groceries"}}, nil
			},
		}
		handler := NewHistoryHandler(snapSvc)
		r := setupHistoryRouter(handler)

		rec := doRequest(r, "GET", "/history/2024-01-01", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		snapshot := result["snapshot"].(map[string]interface{})
		if snapshot["total_spent"].(float64) != 420 {
			t.Errorf("expected 420, got %v", snapshot["total_spent"])
		}
		if len(result["categories"].([]interface{})) != 1 {
			t.Error("expected 1 category row")
		}
	})

	t.Run("returns 400 on a malformed date", func(t *testing.T) {
		handler := NewHistoryHandler(&mockSnapshotService{})
		r := setupHistoryRouter(handler)

		rec := doRequest(r, "GET", "/history/january", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 404 when no snapshot exists", func(t *testing.T) {
		snapSvc := &mockSnapshotService{
			getCycleDetailFn: func(_ string, _ time.Time) (*models.CycleSnapshot, []models.CategoryCycleSnapshot, error) {
				return nil, nil, apperrors.ErrSnapshotNotFound
			},
		}
		handler := NewHistoryHandler(snapSvc)
		r := setupHistoryRouter(handler)

		rec := doRequest(r, "GET", "/history/2024-01-01", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "SNAPSHOT_NOT_FOUND")
	})
}

func TestHistoryHandler_RecordManualCycle(t *testing.T) {
	t.Run("returns 201 with the snapshot", func(t *testing.T) {
		var gotLength int
		snapSvc := &mockSnapshotService{
			recordManualCycleFn: func(_ string, periodStart time.Time, lengthDays int, entries []services.ManualEntry) (*models.CycleSnapshot, error) {
				gotLength = lengthDays
				return &models.CycleSnapshot{ID: uuid.New(), PeriodStart: periodStart, IsManual: true}, nil
			},
		}
		handler := NewHistoryHandler(snapSvc)
		r := setupHistoryRouter(handler)

		rec := doRequest(r, "POST", "/history/manual",
			`{"period_start":"2023-11-01","entries":[{"category_id":"`+uuid.New()+`","budget_base":100,"spent":150}]}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotLength != 0 {
			t.Errorf("omitted length should pass through as 0, got %d", gotLength)
		}
		snapshot := parseJSON(t, rec)["snapshot"].(map[string]interface{})
		if snapshot["is_manual"].(bool) != true {
			t.Error("expected a manual snapshot")
		}
	})

	t.Run("returns 400 on empty entries", func(t *testing.T) {
		handler := NewHistoryHandler(&mockSnapshotService{})
		r := setupHistoryRouter(handler)

		rec := doRequest(r, "POST", "/history/manual",
			`{"period_start":"2023-11-01","entries":[]}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 409 when out of order", func(t *testing.T) {
		snapSvc := &mockSnapshotService{
			recordManualCycleFn: func(_ string, _ time.Time, _ int, _ []services.ManualEntry) (*models.CycleSnapshot, error) {
				return nil, apperrors.ErrManualCycleOutOfOrder
			},
		}
		handler := NewHistoryHandler(snapSvc)
		r := setupHistoryRouter(handler)

		rec := doRequest(r, "POST", "/history/manual",
			`{"period_start":"2024-06-01","entries":[{"category_id":"`+uuid.New()+`","budget_base":100,"spent":80}]}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "MANUAL_CYCLE_OUT_OF_ORDER")
	})
}

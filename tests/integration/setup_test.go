package integration

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cycleledger/internal/handlers"
	"cycleledger/internal/logger"
	"cycleledger/internal/middleware"
	"cycleledger/internal/models"
	"cycleledger/internal/services"
	"cycleledger/internal/uuid"
	"cycleledger/internal/validator"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	allModels := []interface{}{
		&models.BudgetSettings{},
		&models.Category{},
		&models.Allocation{},
		&models.Transaction{},
		&models.CycleSnapshot{},
		&models.CategoryCycleSnapshot{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)

	// Services
	settingsService := services.NewSettingsService(db)
	categoryService := services.NewCategoryService(db)
	allocationService := services.NewAllocationService(db)
	snapshotService := services.NewSnapshotService(db, settingsService)
	setupService := services.NewSetupService(db, categoryService, settingsService)

	// Handlers
	settingsHandler := handlers.NewSettingsHandler(settingsService)
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	allocationHandler := handlers.NewAllocationHandler(allocationService)
	historyHandler := handlers.NewHistoryHandler(snapshotService)
	setupHandler := handlers.NewSetupHandler(setupService)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware())

	v1.GET("/settings", settingsHandler.GetSettings)
	v1.PUT("/settings", settingsHandler.UpdateSettings)
	v1.GET("/periods/current", settingsHandler.GetCurrentPeriod)

	categories := v1.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetCategoryTree)
	categories.GET("/:id", categoryHandler.GetCategory)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	allocations := v1.Group("/allocations")
	allocations.GET("/:categoryId", allocationHandler.GetAllocation)
	allocations.PUT("/:categoryId", allocationHandler.SetAllocations)

	history := v1.Group("/history")
	history.GET("", historyHandler.GetHistory)
	history.GET("/:periodStart", historyHandler.GetCycleDetail)
	history.POST("/manual", historyHandler.RecordManualCycle)

	setup := v1.Group("/setup")
	setup.POST("/preview", setupHandler.Preview)
	setup.POST("/commit", setupHandler.Commit)

	return &testApp{DB: db, Router: router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// newOwner mints an owner identity and a signed token for it, the way the
// external identity service would.
func newOwner(t *testing.T) (ownerID, token string) {
	t.Helper()

	ownerID = uuid.New()
	token, err := middleware.GenerateToken(ownerID)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return ownerID, token
}

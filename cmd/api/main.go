package main

import (
	"fmt"
	"net/http"
	"os"

	"cycleledger/internal/config"
	"cycleledger/internal/database"
	"cycleledger/internal/handlers"
	"cycleledger/internal/logger"
	"cycleledger/internal/middleware"
	"cycleledger/internal/services"
	"cycleledger/internal/validator"

	"github.com/gin-gonic/gin"
)

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()

	// Initialize services
	db := dbManager.DB()
	settingsService := services.NewSettingsService(db)
	categoryService := services.NewCategoryService(db)
	allocationService := services.NewAllocationService(db)
	snapshotService := services.NewSnapshotService(db, settingsService)
	setupService := services.NewSetupService(db, categoryService, settingsService)

	// Initialize handlers
	settingsHandler := handlers.NewSettingsHandler(settingsService)
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	allocationHandler := handlers.NewAllocationHandler(allocationService)
	historyHandler := handlers.NewHistoryHandler(snapshotService)
	setupHandler := handlers.NewSetupHandler(setupService)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group, all routes owner-scoped via JWT
	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware())

	// Budget settings and period computation
	v1.GET("/settings", settingsHandler.GetSettings)
	v1.PUT("/settings", settingsHandler.UpdateSettings)
	v1.GET("/periods/current", settingsHandler.GetCurrentPeriod)

	// Category routes
	categories := v1.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetCategoryTree)
	categories.GET("/:id", categoryHandler.GetCategory)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	// Allocation routes
	allocations := v1.Group("/allocations")
	allocations.GET("/:categoryId", allocationHandler.GetAllocation)
	allocations.PUT("/:categoryId", allocationHandler.SetAllocations)

	// Cycle history routes
	history := v1.Group("/history")
	history.GET("", historyHandler.GetHistory)
	history.GET("/:periodStart", historyHandler.GetCycleDetail)
	history.POST("/manual", historyHandler.RecordManualCycle)

	// Setup wizard routes
	setup := v1.Group("/setup")
	setup.POST("/preview", setupHandler.Preview)
	setup.POST("/commit", setupHandler.Commit)

	log.Infof("Starting cycleledger backend server on port %s", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}

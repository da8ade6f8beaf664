package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/zimlend/lending-api/internal/api"
	"github.com/zimlend/lending-api/internal/database"
	"github.com/zimlend/lending-api/internal/jobs"
	"github.com/zimlend/lending-api/internal/logger"
	"github.com/zimlend/lending-api/internal/middleware"
	"github.com/zimlend/lending-api/internal/notify"
	"github.com/zimlend/lending-api/internal/payments"
	"github.com/zimlend/lending-api/internal/repository"
	"github.com/zimlend/lending-api/internal/services"
	"github.com/zimlend/lending-api/pkg/config"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize configuration and logging
	cfg := config.New()
	appLog := logger.New()

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		appLog.Fatal("Failed to connect to database", err)
	}
	defer db.Close()

	// Run migrations
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		appLog.Fatal("Failed to run migrations", err)
	}

	// Wire services. The gateway is a stub until a provider integration is
	// configured; funding still works, transfers settle out of band.
	svcs := services.NewServices(db.DB, cfg, appLog, payments.NewManualGateway(appLog))

	// Background jobs: overdue sweep, payment reminders
	var notifier notify.Notifier
	if cfg.HasSMTP() {
		notifier = notify.NewEmailNotifier(cfg)
	}
	runner := jobs.NewRunner(repository.NewRepositories(db.DB), notifier, cfg, appLog)
	if err := runner.Start(); err != nil {
		appLog.Fatal("Failed to start job runner", err)
	}
	defer runner.Stop()

	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	r := gin.New()

	// Add security middleware
	r.Use(middleware.LoggingMiddleware(appLog))
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.CORSMiddleware(cfg))
	r.Use(middleware.InputValidationMiddleware(cfg))

	// Add rate limiting in production
	if cfg.EnableRateLimit {
		r.Use(middleware.RateLimitingMiddleware())
	}

	// Add recovery middleware
	r.Use(gin.Recovery())

	// Setup API routes
	api.SetupRoutes(r, db, svcs, cfg)

	appLog.Info("Server starting", "port", cfg.Port, "environment", cfg.Environment)
	if err := r.Run(":" + cfg.Port); err != nil {
		appLog.Fatal("Failed to start server", err)
	}
}

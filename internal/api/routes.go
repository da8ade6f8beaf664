package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zimlend/lending-api/internal/auth"
	"github.com/zimlend/lending-api/internal/database"
	"github.com/zimlend/lending-api/internal/models"
	"github.com/zimlend/lending-api/internal/services"
	"github.com/zimlend/lending-api/pkg/config"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, db *database.DB, svcs *services.Services, cfg *config.Config) {
	authHandler := NewAuthHandler(svcs.Auth)
	loanHandler := NewLoanHandler(svcs.Loan)
	scoringHandler := NewScoringHandler(svcs.Score, svcs.Loan)

	// Public routes
	public := r.Group("/api/v1")
	{
		public.POST("/auth/register", authHandler.Register)
		public.POST("/auth/login", authHandler.Login)
		public.POST("/auth/refresh", authHandler.RefreshToken)

		public.GET("/health", func(c *gin.Context) {
			if err := db.HealthCheck(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":    "degraded",
					"timestamp": time.Now(),
				})
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"status":    "ok",
				"db":        db.GetStats(),
				"timestamp": time.Now(),
			})
		})
	}

	// Protected routes
	protected := r.Group("/api/v1")
	protected.Use(auth.JWTMiddleware(cfg.JWTSecret))
	{
		// Loan application workflow
		protected.POST("/loans/applications", loanHandler.SubmitApplication)
		protected.POST("/loans/quote", loanHandler.Quote)
		protected.GET("/loans/:id/schedule", loanHandler.GetSchedule)
		protected.GET("/loans/:id/pricing", loanHandler.GetPricing)

		// Credit scores
		protected.GET("/scores/me", scoringHandler.GetMyScore)
		protected.GET("/scores/me/history", scoringHandler.GetMyScoreHistory)
		protected.POST("/scores/statement", scoringHandler.UploadStatement)

		// Repayments
		protected.GET("/installments/upcoming", scoringHandler.GetUpcomingInstallments)
	}

	// Admin and webhook-facing routes
	admin := r.Group("/api/v1")
	admin.Use(auth.JWTMiddleware(cfg.JWTSecret))
	admin.Use(auth.RequireRole(string(models.RoleAdmin)))
	{
		admin.POST("/loans/:id/approve", loanHandler.Review(true))
		admin.POST("/loans/:id/reject", loanHandler.Review(false))
		admin.POST("/loans/:id/fund", loanHandler.Fund)
		admin.POST("/loans/repayments", loanHandler.RecordRepayment)
		admin.POST("/scores/events", scoringHandler.PostEvent)
	}
}

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zimlend/lending-api/internal/auth"
	"github.com/zimlend/lending-api/internal/scoring"
	"github.com/zimlend/lending-api/internal/services"
)

const maxStatementSize = 2 << 20 // 2MB

// ScoringHandler handles credit score endpoints
type ScoringHandler struct {
	scoreService services.ScoreService
	loanService  services.LoanService
}

// NewScoringHandler creates a new scoring handler with service injection
func NewScoringHandler(scoreService services.ScoreService, loanService services.LoanService) *ScoringHandler {
	return &ScoringHandler{
		scoreService: scoreService,
		loanService:  loanService,
	}
}

// GetMyScore handles GET /scores/me
func (h *ScoringHandler) GetMyScore(c *gin.Context) {
	borrowerID, ok := auth.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	record, err := h.scoreService.GetScore(borrowerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"score":     record,
		"timestamp": time.Now(),
	})
}

// GetMyScoreHistory handles GET /scores/me/history
func (h *ScoringHandler) GetMyScoreHistory(c *gin.Context) {
	borrowerID, ok := auth.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = parsed
	}

	entries, err := h.scoreService.GetScoreHistory(borrowerID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"history":   entries,
		"timestamp": time.Now(),
	})
}

// UploadStatement handles POST /scores/statement: an HTML bank-statement
// export that cold-starts the borrower's score
func (h *ScoringHandler) UploadStatement(c *gin.Context) {
	borrowerID, ok := auth.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	file, _, err := c.Request.FormFile("statement")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "statement file is required"})
		return
	}
	defer file.Close()

	record, err := h.scoreService.ColdStartFromStatement(borrowerID, http.MaxBytesReader(c.Writer, file, maxStatementSize))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":   "Score initialized",
		"score":     record,
		"timestamp": time.Now(),
	})
}

// scoreEventPayload is the webhook-facing loan event body
type scoreEventPayload struct {
	BorrowerID uuid.UUID         `json:"borrower_id" binding:"required"`
	Type       scoring.EventType `json:"type" binding:"required"`
	DaysLate   int               `json:"days_late"`
	LoanID     *uuid.UUID        `json:"loan_id"`
	Amount     float64           `json:"amount"`
}

// PostEvent handles POST /scores/events (admin/webhook-facing)
func (h *ScoringHandler) PostEvent(c *gin.Context) {
	var payload scoreEventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event format: " + err.Error()})
		return
	}

	record, err := h.scoreService.ApplyEvent(payload.BorrowerID, scoring.LoanEvent{
		Type:       payload.Type,
		DaysLate:   payload.DaysLate,
		LoanID:     payload.LoanID,
		Amount:     payload.Amount,
		OccurredAt: time.Now(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"score":     record,
		"timestamp": time.Now(),
	})
}

// GetUpcomingInstallments handles GET /installments/upcoming
func (h *ScoringHandler) GetUpcomingInstallments(c *gin.Context) {
	borrowerID, ok := auth.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	days := 30
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 365"})
			return
		}
		days = parsed
	}

	installments, err := h.loanService.UpcomingInstallments(borrowerID, days)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"installments": installments,
		"timestamp":    time.Now(),
	})
}

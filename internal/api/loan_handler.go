package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zimlend/lending-api/internal/auth"
	"github.com/zimlend/lending-api/internal/models"
	"github.com/zimlend/lending-api/internal/services"
)

// LoanHandler handles loan application and schedule endpoints
type LoanHandler struct {
	loanService services.LoanService
}

// NewLoanHandler creates a new loan handler with service injection
func NewLoanHandler(loanService services.LoanService) *LoanHandler {
	return &LoanHandler{
		loanService: loanService,
	}
}

// applicationPayload is the borrower-facing application body; the borrower ID
// comes from the authenticated session, never the payload
type applicationPayload struct {
	Amount     float64         `json:"amount" binding:"required,gt=0"`
	TermMonths int             `json:"term_months" binding:"required,gt=0"`
	LoanType   models.LoanType `json:"loan_type"`
}

// SubmitApplication handles POST /loans/applications
func (h *LoanHandler) SubmitApplication(c *gin.Context) {
	borrowerID, ok := auth.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var payload applicationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid application format: " + err.Error()})
		return
	}

	result, err := h.loanService.SubmitApplication(&services.ApplicationRequest{
		BorrowerID: borrowerID,
		Amount:     payload.Amount,
		TermMonths: payload.TermMonths,
		LoanType:   payload.LoanType,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"loan":      result.Loan,
		"pricing":   result.Pricing,
		"schedule":  result.Schedule,
		"timestamp": time.Now(),
	})
}

// quotePayload is the no-persistence pricing request
type quotePayload struct {
	Amount     float64 `json:"amount" binding:"required,gt=0"`
	TermMonths int     `json:"term_months" binding:"required,gt=0"`
}

// Quote handles POST /loans/quote
func (h *LoanHandler) Quote(c *gin.Context) {
	borrowerID, ok := auth.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var payload quotePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quote format: " + err.Error()})
		return
	}

	quote, err := h.loanService.Quote(borrowerID, payload.Amount, payload.TermMonths)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pricing":   quote,
		"timestamp": time.Now(),
	})
}

// loanFromPath resolves the :id parameter and checks the caller may see the
// loan. Borrowers only see their own records; admins see everything.
func (h *LoanHandler) loanFromPath(c *gin.Context) (*models.Loan, bool) {
	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid loan ID"})
		return nil, false
	}

	loan, err := h.loanService.GetByID(loanID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}

	userID, _ := auth.UserIDFromContext(c)
	role, _ := c.Get(auth.UserRoleKey)
	if loan.BorrowerID != userID && role != string(models.RoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return nil, false
	}
	return loan, true
}

// GetSchedule handles GET /loans/:id/schedule
func (h *LoanHandler) GetSchedule(c *gin.Context) {
	loan, ok := h.loanFromPath(c)
	if !ok {
		return
	}

	installments, err := h.loanService.GetSchedule(loan.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"loan_id":   loan.ID,
		"schedule":  installments,
		"timestamp": time.Now(),
	})
}

// GetPricing handles GET /loans/:id/pricing
func (h *LoanHandler) GetPricing(c *gin.Context) {
	loan, ok := h.loanFromPath(c)
	if !ok {
		return
	}

	quote, err := h.loanService.GetPricing(loan.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"loan_id":   loan.ID,
		"pricing":   quote,
		"timestamp": time.Now(),
	})
}

// Review handles POST /loans/:id/approve and /loans/:id/reject (admin only,
// behind RequireRole)
func (h *LoanHandler) Review(approve bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		loanID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid loan ID"})
			return
		}

		loan, err := h.loanService.ReviewApplication(loanID, approve)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"loan":      loan,
			"timestamp": time.Now(),
		})
	}
}

// Fund handles POST /loans/:id/fund (admin only, behind RequireRole)
func (h *LoanHandler) Fund(c *gin.Context) {
	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid loan ID"})
		return
	}

	if err := h.loanService.HandleFunding(c.Request.Context(), loanID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Loan funded",
		"loan_id":   loanID,
		"timestamp": time.Now(),
	})
}

// repaymentPayload records a settlement against one installment
type repaymentPayload struct {
	InstallmentID uuid.UUID  `json:"installment_id" binding:"required"`
	PaidAt        *time.Time `json:"paid_at"`
}

// RecordRepayment handles POST /loans/repayments (admin/webhook-facing)
func (h *LoanHandler) RecordRepayment(c *gin.Context) {
	var payload repaymentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid repayment format: " + err.Error()})
		return
	}

	paidAt := time.Now()
	if payload.PaidAt != nil {
		paidAt = *payload.PaidAt
	}

	if err := h.loanService.RecordRepayment(payload.InstallmentID, paidAt); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Repayment recorded",
		"timestamp": time.Now(),
	})
}

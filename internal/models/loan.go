package models

import (
	"time"

	"github.com/google/uuid"
)

// LoanStatus represents a loan's lifecycle stage
type LoanStatus string

const (
	LoanStatusPending     LoanStatus = "pending"
	LoanStatusUnderReview LoanStatus = "under_review"
	LoanStatusApproved    LoanStatus = "approved"
	LoanStatusFunded      LoanStatus = "funded"
	LoanStatusActive      LoanStatus = "active"
	LoanStatusRepaid      LoanStatus = "repaid"
	LoanStatusDefaulted   LoanStatus = "defaulted"
	LoanStatusRejected    LoanStatus = "rejected"
)

// IsOpen reports whether the loan still blocks a new application.
// One application at a time per borrower.
func (s LoanStatus) IsOpen() bool {
	return s == LoanStatusPending || s == LoanStatusUnderReview
}

// IsCompleted reports whether the loan finished successfully
func (s LoanStatus) IsCompleted() bool {
	return s == LoanStatusRepaid
}

// LoanType distinguishes product lines; the fee schedule is shared
type LoanType string

const (
	LoanTypePersonal LoanType = "personal"
	LoanTypeBusiness LoanType = "business"
)

// Loan represents a loan record. The pricing snapshot attached at
// application time is immutable; re-quoting creates a new snapshot.
type Loan struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	BorrowerID   uuid.UUID  `json:"borrower_id" db:"borrower_id"`
	LoanType     LoanType   `json:"loan_type" db:"loan_type"`
	Amount       float64    `json:"amount" db:"amount"`
	InterestRate float64    `json:"interest_rate" db:"interest_rate"` // monthly, percent
	TermMonths   int        `json:"term_months" db:"term_months"`
	Status       LoanStatus `json:"status" db:"status"`
	PricingID    uuid.UUID  `json:"pricing_id" db:"pricing_id"`
	StartDate    *time.Time `json:"start_date" db:"start_date"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

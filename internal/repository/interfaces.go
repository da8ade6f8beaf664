package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/zimlend/lending-api/internal/models"
	"github.com/zimlend/lending-api/internal/schedule"
	"github.com/zimlend/lending-api/internal/scoring"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// ScoreRepository defines the interface for score data access.
// Upserts are guarded by optimistic versioning: the write commits only when
// the stored version still matches expectedVersion (0 means "must not exist
// yet"), otherwise a SCORE_UPDATE_CONFLICT error surfaces.
type ScoreRepository interface {
	GetScore(borrowerID uuid.UUID) (*scoring.ScoreRecord, error)
	UpsertScore(record *scoring.ScoreRecord, expectedVersion int) error
	AppendScoreHistory(entry *scoring.ScoreHistoryEntry) error
	GetScoreHistory(borrowerID uuid.UUID, limit int) ([]scoring.ScoreHistoryEntry, error)
}

// LoanRepository defines the interface for loan data access
type LoanRepository interface {
	GetByID(id uuid.UUID) (*models.Loan, error)
	Create(loan *models.Loan, pricingJSON []byte) error
	UpdateStatus(id uuid.UUID, status models.LoanStatus) error
	GetByBorrower(borrowerID uuid.UUID, statuses []models.LoanStatus) ([]models.Loan, error)
	HasOpenApplication(borrowerID uuid.UUID) (bool, error)
	GetPricingJSON(pricingID uuid.UUID) ([]byte, error)

	// MarkActive stamps the schedule start when funding settles
	MarkActive(id uuid.UUID, startDate time.Time) error

	// CompletedLoanSummary aggregates the borrower's repaid-loan history for
	// trust-loop population bonuses
	CompletedLoanSummary(borrowerID uuid.UUID) (*CompletedLoanSummary, error)
}

// InstallmentRepository defines the interface for schedule data access
type InstallmentRepository interface {
	InsertSchedule(loanID uuid.UUID, installments []schedule.Installment) error
	GetByID(id uuid.UUID) (*schedule.Installment, error)
	GetByLoan(loanID uuid.UUID) ([]schedule.Installment, error)
	UpdateStatus(id uuid.UUID, status schedule.InstallmentStatus, paidAt *time.Time) error

	// FindLatePending returns pending installments past grace across all
	// loans, for the overdue sweep
	FindLatePending(now time.Time) ([]schedule.Installment, error)

	// FindDueWithin returns reminder rows for pending installments due in
	// the next `days` days
	FindDueWithin(now time.Time, days int) ([]ReminderRow, error)
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(id uuid.UUID) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Create(user *models.User) error
}

// TransactionManager defines the interface for database transaction management
type TransactionManager interface {
	WithTransaction(fn func(repos *Repositories) error) error
}

// Repositories groups all repository interfaces
type Repositories struct {
	Score       ScoreRepository
	Loan        LoanRepository
	Installment InstallmentRepository
	User        UserRepository
	Tx          TransactionManager
}

// CompletedLoanSummary summarizes a borrower's repaid loans. A loan counts as
// on-time when none of its installments settled past grace.
type CompletedLoanSummary struct {
	CompletedLoans int
	OnTimeLoans    int
	LargestAmount  float64
}

// OnTimeRatePct returns the on-time percentage over repaid loans, 0 when
// there is no history
func (s *CompletedLoanSummary) OnTimeRatePct() float64 {
	if s.CompletedLoans == 0 {
		return 0
	}
	return float64(s.OnTimeLoans) / float64(s.CompletedLoans) * 100
}

// ReminderRow pairs an upcoming installment with the borrower it belongs to
type ReminderRow struct {
	Email       string
	BorrowerID  uuid.UUID
	Installment schedule.Installment
}

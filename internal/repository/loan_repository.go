package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/zimlend/lending-api/internal/models"
)

// loanRepository implements LoanRepository
type loanRepository struct {
	db dbExecutor
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db dbExecutor) LoanRepository {
	return &loanRepository{db: db}
}

// GetByID retrieves a loan by ID
func (r *loanRepository) GetByID(id uuid.UUID) (*models.Loan, error) {
	query := `
		SELECT id, borrower_id, loan_type, amount, interest_rate, term_months,
		       status, pricing_id, start_date, created_at, updated_at
		FROM loans
		WHERE id = $1
	`
	var loan models.Loan
	err := r.db.QueryRow(query, id).Scan(&loan.ID, &loan.BorrowerID, &loan.LoanType,
		&loan.Amount, &loan.InterestRate, &loan.TermMonths, &loan.Status,
		&loan.PricingID, &loan.StartDate, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return &loan, nil
}

// Create inserts a loan together with its immutable pricing snapshot
func (r *loanRepository) Create(loan *models.Loan, pricingJSON []byte) error {
	now := time.Now()
	loan.CreatedAt = now
	loan.UpdatedAt = now

	pricingQuery := `
		INSERT INTO loan_pricing (id, snapshot, created_at)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.Exec(pricingQuery, loan.PricingID, pricingJSON, now); err != nil {
		return fmt.Errorf("failed to insert pricing snapshot: %w", err)
	}

	loanQuery := `
		INSERT INTO loans
			(id, borrower_id, loan_type, amount, interest_rate, term_months,
			 status, pricing_id, start_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(loanQuery, loan.ID, loan.BorrowerID, loan.LoanType, loan.Amount,
		loan.InterestRate, loan.TermMonths, loan.Status, loan.PricingID,
		loan.StartDate, loan.CreatedAt, loan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert loan: %w", err)
	}
	return nil
}

// UpdateStatus transitions a loan's lifecycle status
func (r *loanRepository) UpdateStatus(id uuid.UUID, status models.LoanStatus) error {
	query := `UPDATE loans SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.Exec(query, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update loan status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByBorrower retrieves a borrower's loans, optionally filtered by status
// MarkActive moves a funded loan to active and stamps the schedule start
func (r *loanRepository) MarkActive(id uuid.UUID, startDate time.Time) error {
	query := `UPDATE loans SET status = $2, start_date = $3, updated_at = $4 WHERE id = $1`
	result, err := r.db.Exec(query, id, models.LoanStatusActive, startDate, time.Now())
	if err != nil {
		return fmt.Errorf("failed to activate loan: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *loanRepository) GetByBorrower(borrowerID uuid.UUID, statuses []models.LoanStatus) ([]models.Loan, error) {
	query := `
		SELECT id, borrower_id, loan_type, amount, interest_rate, term_months,
		       status, pricing_id, start_date, created_at, updated_at
		FROM loans
		WHERE borrower_id = $1
	`
	args := []interface{}{borrowerID}
	if len(statuses) > 0 {
		statusStrings := make([]string, len(statuses))
		for i, s := range statuses {
			statusStrings[i] = string(s)
		}
		query += ` AND status = ANY($2)`
		args = append(args, pq.Array(statusStrings))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	var loans []models.Loan
	for rows.Next() {
		var loan models.Loan
		err := rows.Scan(&loan.ID, &loan.BorrowerID, &loan.LoanType, &loan.Amount,
			&loan.InterestRate, &loan.TermMonths, &loan.Status, &loan.PricingID,
			&loan.StartDate, &loan.CreatedAt, &loan.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, loan)
	}
	return loans, nil
}

// HasOpenApplication reports whether the borrower already has a loan in a
// pending or under-review state. Called inside the application transaction so
// the check-and-insert pair is atomic.
func (r *loanRepository) HasOpenApplication(borrowerID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM loans
			WHERE borrower_id = $1 AND status IN ('pending', 'under_review')
		)
	`
	var exists bool
	if err := r.db.QueryRow(query, borrowerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check open applications: %w", err)
	}
	return exists, nil
}

// GetPricingJSON retrieves a stored pricing snapshot
func (r *loanRepository) GetPricingJSON(pricingID uuid.UUID) ([]byte, error) {
	var snapshot []byte
	err := r.db.QueryRow(`SELECT snapshot FROM loan_pricing WHERE id = $1`, pricingID).Scan(&snapshot)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get pricing snapshot: %w", err)
	}
	return snapshot, nil
}

// CompletedLoanSummary aggregates repaid-loan history. A loan is on-time when
// none of its installments settled after the grace window.
func (r *loanRepository) CompletedLoanSummary(borrowerID uuid.UUID) (*CompletedLoanSummary, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN NOT EXISTS (
		           SELECT 1 FROM installments i
		           WHERE i.loan_id = l.id
		             AND (i.status IN ('late', 'defaulted')
		                  OR (i.paid_at IS NOT NULL AND i.paid_at > i.grace_period_end))
		       ) THEN 1 ELSE 0 END), 0),
		       COALESCE(MAX(l.amount), 0)
		FROM loans l
		WHERE l.borrower_id = $1 AND l.status = 'repaid'
	`
	var summary CompletedLoanSummary
	err := r.db.QueryRow(query, borrowerID).Scan(&summary.CompletedLoans, &summary.OnTimeLoans, &summary.LargestAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize completed loans: %w", err)
	}
	return &summary, nil
}

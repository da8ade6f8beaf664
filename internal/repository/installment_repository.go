package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zimlend/lending-api/internal/schedule"
)

// installmentRepository implements InstallmentRepository
type installmentRepository struct {
	db dbExecutor
}

// NewInstallmentRepository creates a new installment repository
func NewInstallmentRepository(db dbExecutor) InstallmentRepository {
	return &installmentRepository{db: db}
}

const installmentColumns = `
	id, loan_id, installment_number, due_date, principal_amount, interest_amount,
	fee_amount, total_amount, remaining_balance, grace_period_end, is_first_payment,
	status, paid_at
`

// InsertSchedule writes a loan's full amortization table. Called inside the
// application transaction so the loan and its schedule commit together.
func (r *installmentRepository) InsertSchedule(loanID uuid.UUID, installments []schedule.Installment) error {
	query := `
		INSERT INTO installments
			(id, loan_id, installment_number, due_date, principal_amount, interest_amount,
			 fee_amount, total_amount, remaining_balance, grace_period_end, is_first_payment,
			 status, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	for _, inst := range installments {
		_, err := r.db.Exec(query, inst.ID, loanID, inst.InstallmentNumber, inst.DueDate,
			inst.PrincipalAmount, inst.InterestAmount, inst.FeeAmount, inst.TotalAmount,
			inst.RemainingBalance, inst.GracePeriodEnd, inst.IsFirstPayment,
			inst.Status, inst.PaidAt)
		if err != nil {
			return fmt.Errorf("failed to insert installment %d: %w", inst.InstallmentNumber, err)
		}
	}
	return nil
}

// GetByID retrieves a single installment
func (r *installmentRepository) GetByID(id uuid.UUID) (*schedule.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM installments WHERE id = $1`

	inst := &schedule.Installment{}
	err := r.db.QueryRow(query, id).Scan(
		&inst.ID, &inst.LoanID, &inst.InstallmentNumber, &inst.DueDate,
		&inst.PrincipalAmount, &inst.InterestAmount, &inst.FeeAmount, &inst.TotalAmount,
		&inst.RemainingBalance, &inst.GracePeriodEnd, &inst.IsFirstPayment,
		&inst.Status, &inst.PaidAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get installment: %w", err)
	}
	return inst, nil
}

// GetByLoan returns a loan's schedule in installment order
func (r *installmentRepository) GetByLoan(loanID uuid.UUID) ([]schedule.Installment, error) {
	query := `SELECT ` + installmentColumns + `
		FROM installments
		WHERE loan_id = $1
		ORDER BY installment_number
	`
	rows, err := r.db.Query(query, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query installments: %w", err)
	}
	defer rows.Close()

	var installments []schedule.Installment
	for rows.Next() {
		var inst schedule.Installment
		err := rows.Scan(&inst.ID, &inst.LoanID, &inst.InstallmentNumber, &inst.DueDate,
			&inst.PrincipalAmount, &inst.InterestAmount, &inst.FeeAmount, &inst.TotalAmount,
			&inst.RemainingBalance, &inst.GracePeriodEnd, &inst.IsFirstPayment,
			&inst.Status, &inst.PaidAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installment: %w", err)
		}
		installments = append(installments, inst)
	}
	return installments, nil
}

// UpdateStatus transitions one installment. pending -> paid/late happens
// exactly once at settlement; pending -> defaulted when abandoned.
func (r *installmentRepository) UpdateStatus(id uuid.UUID, status schedule.InstallmentStatus, paidAt *time.Time) error {
	query := `UPDATE installments SET status = $2, paid_at = $3 WHERE id = $1`
	result, err := r.db.Exec(query, id, status, paidAt)
	if err != nil {
		return fmt.Errorf("failed to update installment: %w", err)
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

// FindLatePending returns pending installments past their grace window
func (r *installmentRepository) FindLatePending(now time.Time) ([]schedule.Installment, error) {
	query := `SELECT ` + installmentColumns + `
		FROM installments
		WHERE status = 'pending' AND grace_period_end < $1
		ORDER BY grace_period_end
	`
	rows, err := r.db.Query(query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query late installments: %w", err)
	}
	defer rows.Close()

	var installments []schedule.Installment
	for rows.Next() {
		var inst schedule.Installment
		err := rows.Scan(&inst.ID, &inst.LoanID, &inst.InstallmentNumber, &inst.DueDate,
			&inst.PrincipalAmount, &inst.InterestAmount, &inst.FeeAmount, &inst.TotalAmount,
			&inst.RemainingBalance, &inst.GracePeriodEnd, &inst.IsFirstPayment,
			&inst.Status, &inst.PaidAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installment: %w", err)
		}
		installments = append(installments, inst)
	}
	return installments, nil
}

// FindDueWithin returns pending installments due in the next `days` days
// together with the borrower's email, for reminder delivery
func (r *installmentRepository) FindDueWithin(now time.Time, days int) ([]ReminderRow, error) {
	query := `
		SELECT u.email, l.borrower_id,
		       i.id, i.loan_id, i.installment_number, i.due_date, i.principal_amount,
		       i.interest_amount, i.fee_amount, i.total_amount, i.remaining_balance,
		       i.grace_period_end, i.is_first_payment, i.status, i.paid_at
		FROM installments i
		JOIN loans l ON l.id = i.loan_id
		JOIN users u ON u.id = l.borrower_id
		WHERE i.status = 'pending'
		  AND i.due_date > $1
		  AND i.due_date <= $2
		ORDER BY i.due_date
	`
	rows, err := r.db.Query(query, now, now.AddDate(0, 0, days))
	if err != nil {
		return nil, fmt.Errorf("failed to query upcoming installments: %w", err)
	}
	defer rows.Close()

	var reminders []ReminderRow
	for rows.Next() {
		var row ReminderRow
		inst := &row.Installment
		err := rows.Scan(&row.Email, &row.BorrowerID,
			&inst.ID, &inst.LoanID, &inst.InstallmentNumber, &inst.DueDate,
			&inst.PrincipalAmount, &inst.InterestAmount, &inst.FeeAmount, &inst.TotalAmount,
			&inst.RemainingBalance, &inst.GracePeriodEnd, &inst.IsFirstPayment,
			&inst.Status, &inst.PaidAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder row: %w", err)
		}
		reminders = append(reminders, row)
	}
	return reminders, nil
}

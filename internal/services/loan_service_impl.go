package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/zimlend/lending-api/internal/errors"
	"github.com/zimlend/lending-api/internal/logger"
	"github.com/zimlend/lending-api/internal/models"
	"github.com/zimlend/lending-api/internal/payments"
	"github.com/zimlend/lending-api/internal/pricing"
	"github.com/zimlend/lending-api/internal/repository"
	"github.com/zimlend/lending-api/internal/schedule"
	"github.com/zimlend/lending-api/internal/scoring"
)

// loanServiceImpl implements LoanService
type loanServiceImpl struct {
	repos      *repository.Repositories
	calculator *pricing.Calculator
	score      ScoreService
	gateway    payments.Gateway
	log        logger.Logger
}

// newLoanService creates a new loan service implementation
func newLoanService(repos *repository.Repositories, calculator *pricing.Calculator, score ScoreService, gateway payments.Gateway, log logger.Logger) LoanService {
	return &loanServiceImpl{
		repos:      repos,
		calculator: calculator,
		score:      score,
		gateway:    gateway,
		log:        log,
	}
}

// Quote prices a loan without persisting. Borrowers with no score yet are
// quoted at the base tier rate; the quote carries no loan limit guarantee.
func (s *loanServiceImpl) Quote(borrowerID uuid.UUID, amount float64, termMonths int) (*pricing.LoanPricing, error) {
	rate := scoring.InterestRateFor(scoring.MinScore)
	record, err := s.repos.Score.GetScore(borrowerID)
	if err == nil {
		rate = scoring.InterestRateFor(record.ScoreValue)
	} else if err != repository.ErrNotFound {
		return nil, errors.DatabaseError("failed to load score", err)
	}

	return s.calculator.PriceLoan(amount, rate, termMonths)
}

// SubmitApplication runs the full application workflow: resolve the
// borrower's score, price, build the schedule, and persist loan, pricing
// snapshot, and installments in one transaction. The one-open-application
// rule is checked inside that same transaction.
func (s *loanServiceImpl) SubmitApplication(req *ApplicationRequest) (*ApplicationResult, error) {
	record, err := s.repos.Score.GetScore(req.BorrowerID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errors.ScoreUnavailable("no score on record; submit a bank statement to get scored")
		}
		return nil, errors.DatabaseError("failed to load score", err)
	}

	if req.Amount > record.MaxLoanAmount {
		return nil, errors.InvalidLoanParameters(
			fmt.Sprintf("requested amount %.2f exceeds current loan limit %.2f", req.Amount, record.MaxLoanAmount))
	}

	loanType := req.LoanType
	if loanType == "" {
		loanType = models.LoanTypePersonal
	}

	rate := scoring.InterestRateFor(record.ScoreValue)
	quote, err := s.calculator.PriceLoan(req.Amount, rate, req.TermMonths)
	if err != nil {
		return nil, err
	}

	loanID := uuid.New()
	monthlyFee := quote.MonthlyBreakdown.TenureFee + quote.MonthlyBreakdown.CollectionFee
	installments, err := schedule.Build(loanID, req.Amount,
		quote.MonthlyBreakdown.Interest, quote.MonthlyBreakdown.Principal,
		monthlyFee, req.TermMonths, time.Now())
	if err != nil {
		return nil, err
	}

	pricingJSON, err := json.Marshal(quote)
	if err != nil {
		return nil, errors.InternalError("failed to encode pricing snapshot", err)
	}

	loan := &models.Loan{
		ID:           loanID,
		BorrowerID:   req.BorrowerID,
		LoanType:     loanType,
		Amount:       req.Amount,
		InterestRate: rate,
		TermMonths:   req.TermMonths,
		Status:       models.LoanStatusPending,
		PricingID:    quote.ID,
	}

	err = s.repos.Tx.WithTransaction(func(repos *repository.Repositories) error {
		open, err := repos.Loan.HasOpenApplication(req.BorrowerID)
		if err != nil {
			return errors.DatabaseError("failed to check open applications", err)
		}
		if open {
			return errors.PendingApplication(req.BorrowerID.String())
		}
		if err := repos.Loan.Create(loan, pricingJSON); err != nil {
			return errors.DatabaseError("failed to create loan", err)
		}
		if err := repos.Installment.InsertSchedule(loanID, installments); err != nil {
			return errors.DatabaseError("failed to persist schedule", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("application submitted",
		"loan_id", loanID.String(),
		"borrower_id", req.BorrowerID.String(),
		"amount", req.Amount,
		"rate", rate,
		"term_months", req.TermMonths)

	return &ApplicationResult{
		Loan:     loan,
		Pricing:  quote,
		Schedule: installments,
	}, nil
}

// GetByID returns a loan record
func (s *loanServiceImpl) GetByID(loanID uuid.UUID) (*models.Loan, error) {
	loan, err := s.repos.Loan.GetByID(loanID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errors.NotFound("loan not found", err)
		}
		return nil, errors.DatabaseError("failed to load loan", err)
	}
	return loan, nil
}

// GetSchedule returns a loan's amortization table
func (s *loanServiceImpl) GetSchedule(loanID uuid.UUID) ([]schedule.Installment, error) {
	installments, err := s.repos.Installment.GetByLoan(loanID)
	if err != nil {
		return nil, errors.DatabaseError("failed to load schedule", err)
	}
	if len(installments) == 0 {
		return nil, errors.NotFound("no schedule for loan", nil)
	}
	return installments, nil
}

// GetPricing returns the immutable pricing snapshot a loan was quoted at
func (s *loanServiceImpl) GetPricing(loanID uuid.UUID) (*pricing.LoanPricing, error) {
	loan, err := s.GetByID(loanID)
	if err != nil {
		return nil, err
	}

	raw, err := s.repos.Loan.GetPricingJSON(loan.PricingID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errors.NotFound("pricing snapshot not found", err)
		}
		return nil, errors.DatabaseError("failed to load pricing snapshot", err)
	}

	var quote pricing.LoanPricing
	if err := json.Unmarshal(raw, &quote); err != nil {
		return nil, errors.InternalError("failed to decode pricing snapshot", err)
	}
	return &quote, nil
}

// ReviewApplication records the credit decision on an open application
func (s *loanServiceImpl) ReviewApplication(loanID uuid.UUID, approve bool) (*models.Loan, error) {
	loan, err := s.GetByID(loanID)
	if err != nil {
		return nil, err
	}
	if !loan.Status.IsOpen() {
		return nil, errors.Conflict(
			fmt.Sprintf("loan %s is %s, cannot review", loanID, loan.Status), nil)
	}

	status := models.LoanStatusRejected
	if approve {
		status = models.LoanStatusApproved
	}
	if err := s.repos.Loan.UpdateStatus(loanID, status); err != nil {
		return nil, errors.DatabaseError("failed to record decision", err)
	}
	loan.Status = status

	s.log.Info("application reviewed",
		"loan_id", loanID.String(),
		"decision", string(status))
	return loan, nil
}

// HandleFunding disburses the net proceeds and activates the loan. The
// schedule keeps its quoted due dates; StartDate records settlement.
func (s *loanServiceImpl) HandleFunding(ctx context.Context, loanID uuid.UUID) error {
	loan, err := s.GetByID(loanID)
	if err != nil {
		return err
	}
	if loan.Status != models.LoanStatusApproved && loan.Status != models.LoanStatusFunded {
		return errors.Conflict(
			fmt.Sprintf("loan %s is %s, cannot fund", loanID, loan.Status), nil)
	}

	quote, err := s.GetPricing(loanID)
	if err != nil {
		return err
	}

	disbursement, err := s.gateway.Initiate(ctx, loanID, quote.NetAmountReceived)
	if err != nil {
		return errors.ServiceError("disbursement failed", err)
	}

	now := time.Now()
	if err := s.repos.Loan.MarkActive(loanID, now); err != nil {
		return errors.DatabaseError("failed to activate loan", err)
	}

	s.log.Info("loan funded",
		"loan_id", loanID.String(),
		"net_amount", quote.NetAmountReceived,
		"disbursement_ref", disbursement.Reference)

	event := scoring.LoanEvent{
		Type:       scoring.EventFunded,
		LoanID:     &loanID,
		Amount:     loan.Amount,
		OccurredAt: now,
	}
	if _, err := s.score.ApplyEvent(loan.BorrowerID, event); err != nil {
		// score credit is best-effort here; the loan is already active
		s.log.Error("failed to apply funding score event", err, "loan_id", loanID.String())
	}
	return nil
}

// RecordRepayment settles one installment. When it is the last outstanding
// one, the loan closes and the terminal score event fires.
func (s *loanServiceImpl) RecordRepayment(installmentID uuid.UUID, paidAt time.Time) error {
	inst, err := s.repos.Installment.GetByID(installmentID)
	if err != nil {
		if err == repository.ErrNotFound {
			return errors.NotFound("installment not found", err)
		}
		return errors.DatabaseError("failed to load installment", err)
	}
	if inst.Status == schedule.StatusPaid {
		return errors.Conflict("installment already settled", nil)
	}

	if err := s.repos.Installment.UpdateStatus(installmentID, schedule.StatusPaid, &paidAt); err != nil {
		return errors.DatabaseError("failed to settle installment", err)
	}

	loan, err := s.GetByID(inst.LoanID)
	if err != nil {
		return err
	}

	installments, err := s.repos.Installment.GetByLoan(inst.LoanID)
	if err != nil {
		return errors.DatabaseError("failed to load schedule", err)
	}

	outstanding := 0
	maxDaysLate := 0
	var lastDue time.Time
	for _, other := range installments {
		if other.ID == installmentID {
			other.Status = schedule.StatusPaid
			other.PaidAt = &paidAt
		}
		if other.Status != schedule.StatusPaid {
			outstanding++
			continue
		}
		if late := schedule.CheckLateness(other, paidAt); late.DaysLate > maxDaysLate {
			maxDaysLate = late.DaysLate
		}
		if other.DueDate.After(lastDue) {
			lastDue = other.DueDate
		}
	}

	s.log.Info("installment settled",
		"installment_id", installmentID.String(),
		"loan_id", inst.LoanID.String(),
		"installment_number", inst.InstallmentNumber,
		"outstanding", outstanding)

	if outstanding > 0 {
		return nil
	}

	if err := s.repos.Loan.UpdateStatus(inst.LoanID, models.LoanStatusRepaid); err != nil {
		return errors.DatabaseError("failed to close loan", err)
	}

	event := scoring.LoanEvent{
		LoanID:     &inst.LoanID,
		Amount:     loan.Amount,
		OccurredAt: paidAt,
	}
	switch {
	case maxDaysLate > 0:
		event.Type = scoring.EventRepaidLate
		event.DaysLate = maxDaysLate
	case paidAt.Before(lastDue):
		event.Type = scoring.EventRepaidEarly
	default:
		event.Type = scoring.EventRepaidOnTime
	}

	if _, err := s.score.ApplyEvent(loan.BorrowerID, event); err != nil {
		s.log.Error("failed to apply repayment score event", err, "loan_id", inst.LoanID.String())
	}

	s.log.Info("loan repaid",
		"loan_id", inst.LoanID.String(),
		"event", string(event.Type),
		"days_late", event.DaysLate)
	return nil
}

// UpcomingInstallments lists pending installments across the borrower's
// active and funded loans, soonest due first
func (s *loanServiceImpl) UpcomingInstallments(borrowerID uuid.UUID, days int) ([]schedule.Installment, error) {
	loans, err := s.repos.Loan.GetByBorrower(borrowerID,
		[]models.LoanStatus{models.LoanStatusFunded, models.LoanStatusActive})
	if err != nil {
		return nil, errors.DatabaseError("failed to load loans", err)
	}

	now := time.Now()
	var upcoming []schedule.Installment
	for _, loan := range loans {
		installments, err := s.repos.Installment.GetByLoan(loan.ID)
		if err != nil {
			return nil, errors.DatabaseError("failed to load schedule", err)
		}
		upcoming = append(upcoming, schedule.DueWithin(installments, now, days)...)
	}

	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].DueDate.Before(upcoming[j].DueDate)
	})
	return upcoming, nil
}

package services

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/zimlend/lending-api/internal/errors"
	"github.com/zimlend/lending-api/internal/logger"
	"github.com/zimlend/lending-api/internal/models"
	"github.com/zimlend/lending-api/internal/payments"
	"github.com/zimlend/lending-api/internal/repository"
	"github.com/zimlend/lending-api/internal/schedule"
	"github.com/zimlend/lending-api/internal/scoring"
)

func testLogger() logger.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logger.NewWithLogrus(l)
}

// MockScoreRepository implements ScoreRepository for testing
type MockScoreRepository struct {
	records map[uuid.UUID]scoring.ScoreRecord
	history []scoring.ScoreHistoryEntry

	// forceConflicts makes the next N upserts fail with a version conflict
	forceConflicts int
}

func NewMockScoreRepository() *MockScoreRepository {
	return &MockScoreRepository{records: make(map[uuid.UUID]scoring.ScoreRecord)}
}

func (m *MockScoreRepository) GetScore(borrowerID uuid.UUID) (*scoring.ScoreRecord, error) {
	record, ok := m.records[borrowerID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := record.Clone()
	return &clone, nil
}

func (m *MockScoreRepository) UpsertScore(record *scoring.ScoreRecord, expectedVersion int) error {
	if m.forceConflicts > 0 {
		m.forceConflicts--
		return errors.ScoreUpdateConflict(record.BorrowerID.String(), expectedVersion)
	}

	existing, ok := m.records[record.BorrowerID]
	if expectedVersion == 0 {
		if ok {
			return errors.ScoreUpdateConflict(record.BorrowerID.String(), 0)
		}
	} else if !ok || existing.Version != expectedVersion {
		return errors.ScoreUpdateConflict(record.BorrowerID.String(), expectedVersion)
	}

	stored := record.Clone()
	if expectedVersion > 0 {
		stored.Version = expectedVersion + 1
	}
	m.records[record.BorrowerID] = stored
	return nil
}

func (m *MockScoreRepository) AppendScoreHistory(entry *scoring.ScoreHistoryEntry) error {
	m.history = append(m.history, *entry)
	return nil
}

func (m *MockScoreRepository) GetScoreHistory(borrowerID uuid.UUID, limit int) ([]scoring.ScoreHistoryEntry, error) {
	var entries []scoring.ScoreHistoryEntry
	for i := len(m.history) - 1; i >= 0 && len(entries) < limit; i-- {
		if m.history[i].BorrowerID == borrowerID {
			entries = append(entries, m.history[i])
		}
	}
	return entries, nil
}

// MockLoanRepository implements LoanRepository for testing
type MockLoanRepository struct {
	loans   map[uuid.UUID]models.Loan
	pricing map[uuid.UUID][]byte
	summary repository.CompletedLoanSummary
}

func NewMockLoanRepository() *MockLoanRepository {
	return &MockLoanRepository{
		loans:   make(map[uuid.UUID]models.Loan),
		pricing: make(map[uuid.UUID][]byte),
	}
}

func (m *MockLoanRepository) GetByID(id uuid.UUID) (*models.Loan, error) {
	loan, ok := m.loans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &loan, nil
}

func (m *MockLoanRepository) Create(loan *models.Loan, pricingJSON []byte) error {
	if loan.ID == uuid.Nil {
		loan.ID = uuid.New()
	}
	now := time.Now()
	loan.CreatedAt = now
	loan.UpdatedAt = now
	m.loans[loan.ID] = *loan
	m.pricing[loan.PricingID] = pricingJSON
	return nil
}

func (m *MockLoanRepository) UpdateStatus(id uuid.UUID, status models.LoanStatus) error {
	loan, ok := m.loans[id]
	if !ok {
		return repository.ErrNotFound
	}
	loan.Status = status
	loan.UpdatedAt = time.Now()
	m.loans[id] = loan
	return nil
}

func (m *MockLoanRepository) MarkActive(id uuid.UUID, startDate time.Time) error {
	loan, ok := m.loans[id]
	if !ok {
		return repository.ErrNotFound
	}
	loan.Status = models.LoanStatusActive
	loan.StartDate = &startDate
	loan.UpdatedAt = time.Now()
	m.loans[id] = loan
	return nil
}

func (m *MockLoanRepository) GetByBorrower(borrowerID uuid.UUID, statuses []models.LoanStatus) ([]models.Loan, error) {
	var result []models.Loan
	for _, loan := range m.loans {
		if loan.BorrowerID != borrowerID {
			continue
		}
		if len(statuses) == 0 {
			result = append(result, loan)
			continue
		}
		for _, status := range statuses {
			if loan.Status == status {
				result = append(result, loan)
				break
			}
		}
	}
	return result, nil
}

func (m *MockLoanRepository) HasOpenApplication(borrowerID uuid.UUID) (bool, error) {
	for _, loan := range m.loans {
		if loan.BorrowerID == borrowerID && loan.Status.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockLoanRepository) GetPricingJSON(pricingID uuid.UUID) ([]byte, error) {
	raw, ok := m.pricing[pricingID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return raw, nil
}

func (m *MockLoanRepository) CompletedLoanSummary(borrowerID uuid.UUID) (*repository.CompletedLoanSummary, error) {
	summary := m.summary
	return &summary, nil
}

// MockInstallmentRepository implements InstallmentRepository for testing
type MockInstallmentRepository struct {
	installments map[uuid.UUID]schedule.Installment
}

func NewMockInstallmentRepository() *MockInstallmentRepository {
	return &MockInstallmentRepository{installments: make(map[uuid.UUID]schedule.Installment)}
}

func (m *MockInstallmentRepository) InsertSchedule(loanID uuid.UUID, installments []schedule.Installment) error {
	for _, inst := range installments {
		m.installments[inst.ID] = inst
	}
	return nil
}

func (m *MockInstallmentRepository) GetByID(id uuid.UUID) (*schedule.Installment, error) {
	inst, ok := m.installments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &inst, nil
}

func (m *MockInstallmentRepository) GetByLoan(loanID uuid.UUID) ([]schedule.Installment, error) {
	var result []schedule.Installment
	for _, inst := range m.installments {
		if inst.LoanID == loanID {
			result = append(result, inst)
		}
	}
	return result, nil
}

func (m *MockInstallmentRepository) UpdateStatus(id uuid.UUID, status schedule.InstallmentStatus, paidAt *time.Time) error {
	inst, ok := m.installments[id]
	if !ok {
		return repository.ErrNotFound
	}
	inst.Status = status
	inst.PaidAt = paidAt
	m.installments[id] = inst
	return nil
}

func (m *MockInstallmentRepository) FindLatePending(now time.Time) ([]schedule.Installment, error) {
	var result []schedule.Installment
	for _, inst := range m.installments {
		if inst.Status == schedule.StatusPending && inst.GracePeriodEnd.Before(now) {
			result = append(result, inst)
		}
	}
	return result, nil
}

func (m *MockInstallmentRepository) FindDueWithin(now time.Time, days int) ([]repository.ReminderRow, error) {
	cutoff := now.AddDate(0, 0, days)
	var result []repository.ReminderRow
	for _, inst := range m.installments {
		if inst.Status == schedule.StatusPending && inst.DueDate.After(now) && !inst.DueDate.After(cutoff) {
			result = append(result, repository.ReminderRow{Installment: inst})
		}
	}
	return result, nil
}

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	users map[uuid.UUID]models.User
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[uuid.UUID]models.User)}
}

func (m *MockUserRepository) GetByID(id uuid.UUID) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (m *MockUserRepository) GetByEmail(email string) (*models.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockUserRepository) Create(user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	m.users[user.ID] = *user
	return nil
}

// MockTransactionManager runs the callback against the same repositories
type MockTransactionManager struct {
	repos *repository.Repositories
}

func (m *MockTransactionManager) WithTransaction(fn func(repos *repository.Repositories) error) error {
	return fn(m.repos)
}

// MockGateway implements payments.Gateway for testing
type MockGateway struct {
	initiated []payments.Disbursement
	failNext  error
}

func (m *MockGateway) Initiate(ctx context.Context, loanID uuid.UUID, amount float64) (*payments.Disbursement, error) {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return nil, err
	}
	d := payments.Disbursement{
		Reference: "disb-" + loanID.String()[:8],
		LoanID:    loanID,
		Amount:    amount,
		Status:    payments.DisbursementPending,
		CreatedAt: time.Now(),
	}
	m.initiated = append(m.initiated, d)
	return &d, nil
}

func (m *MockGateway) CheckStatus(ctx context.Context, reference string) (payments.DisbursementStatus, error) {
	return payments.DisbursementSettled, nil
}

// testRepos wires all mocks into a Repositories bundle
func testRepos() (*repository.Repositories, *MockScoreRepository, *MockLoanRepository, *MockInstallmentRepository, *MockUserRepository) {
	scoreRepo := NewMockScoreRepository()
	loanRepo := NewMockLoanRepository()
	instRepo := NewMockInstallmentRepository()
	userRepo := NewMockUserRepository()

	repos := &repository.Repositories{
		Score:       scoreRepo,
		Loan:        loanRepo,
		Installment: instRepo,
		User:        userRepo,
	}
	repos.Tx = &MockTransactionManager{repos: repos}
	return repos, scoreRepo, loanRepo, instRepo, userRepo
}

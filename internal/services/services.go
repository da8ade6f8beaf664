package services

import (
	"context"
	"database/sql"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/zimlend/lending-api/internal/logger"
	"github.com/zimlend/lending-api/internal/models"
	"github.com/zimlend/lending-api/internal/payments"
	"github.com/zimlend/lending-api/internal/pricing"
	"github.com/zimlend/lending-api/internal/repository"
	"github.com/zimlend/lending-api/internal/schedule"
	"github.com/zimlend/lending-api/internal/scoring"
	"github.com/zimlend/lending-api/pkg/config"
)

// Services contains all application services
type Services struct {
	Loan  LoanService
	Score ScoreService
	Auth  AuthService
}

// ApplicationRequest is a borrower's loan application
type ApplicationRequest struct {
	BorrowerID uuid.UUID       `json:"borrower_id"`
	Amount     float64         `json:"amount"`
	TermMonths int             `json:"term_months"`
	LoanType   models.LoanType `json:"loan_type"`
}

// ApplicationResult is the outcome of a submitted application: the persisted
// loan, the pricing snapshot it was quoted at, and the full repayment schedule
type ApplicationResult struct {
	Loan     *models.Loan           `json:"loan"`
	Pricing  *pricing.LoanPricing   `json:"pricing"`
	Schedule []schedule.Installment `json:"schedule"`
}

// LoanService defines the interface for loan business logic
type LoanService interface {
	// Quote prices a loan for a borrower without persisting anything. Unscored
	// borrowers are quoted at the base (worst) tier rate.
	Quote(borrowerID uuid.UUID, amount float64, termMonths int) (*pricing.LoanPricing, error)

	SubmitApplication(req *ApplicationRequest) (*ApplicationResult, error)
	GetByID(loanID uuid.UUID) (*models.Loan, error)
	GetSchedule(loanID uuid.UUID) ([]schedule.Installment, error)
	GetPricing(loanID uuid.UUID) (*pricing.LoanPricing, error)

	// ReviewApplication moves a pending or under-review application to
	// approved or rejected
	ReviewApplication(loanID uuid.UUID, approve bool) (*models.Loan, error)

	// HandleFunding disburses net proceeds through the payment gateway, moves
	// the loan to active, stamps the schedule start, and credits the borrower
	// with a FUNDED score event.
	HandleFunding(ctx context.Context, loanID uuid.UUID) error

	// RecordRepayment settles one installment and, when it closes out the
	// loan, marks the loan repaid and emits the terminal score event.
	RecordRepayment(installmentID uuid.UUID, paidAt time.Time) error

	// UpcomingInstallments lists the borrower's pending installments across
	// active loans due within the next `days` days
	UpcomingInstallments(borrowerID uuid.UUID, days int) ([]schedule.Installment, error)
}

// ScoreService defines the interface for credit score business logic
type ScoreService interface {
	GetScore(borrowerID uuid.UUID) (*scoring.ScoreRecord, error)
	GetScoreHistory(borrowerID uuid.UUID, limit int) ([]scoring.ScoreHistoryEntry, error)

	// ColdStartFromStatement parses an HTML bank-statement export, derives
	// metrics, and initializes the borrower's score
	ColdStartFromStatement(borrowerID uuid.UUID, statementHTML io.Reader) (*scoring.ScoreRecord, error)

	// ApplyEvent runs a loan event through the trust loop and persists the
	// result, retrying a bounded number of times on concurrent-update conflict
	ApplyEvent(borrowerID uuid.UUID, event scoring.LoanEvent) (*scoring.ScoreRecord, error)
}

// LoginResponse is returned on successful authentication
type LoginResponse struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refresh_token"`
	User         models.User `json:"user"`
	ExpiresAt    time.Time   `json:"expires_at"`
}

// RegisterRequest is a new account registration
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"`
}

// AuthService defines the interface for authentication business logic
type AuthService interface {
	Login(email, password string) (*LoginResponse, error)
	Register(req *RegisterRequest) (*models.User, error)
	ValidateToken(token string) (*models.User, error)
	RefreshToken(token string) (*LoginResponse, error)
}

// NewServices creates a new Services instance with all dependencies
func NewServices(db *sql.DB, cfg *config.Config, log logger.Logger, gateway payments.Gateway) *Services {
	repos := repository.NewRepositories(db)
	engine := scoring.NewEngine(scoring.DefaultWeights())
	calculator := pricing.NewCalculator(pricing.DefaultFeeSchedule(), log)

	score := newScoreService(repos, engine, log)
	return &Services{
		Loan:  newLoanService(repos, calculator, score, gateway, log),
		Score: score,
		Auth:  newAuthService(repos, cfg),
	}
}

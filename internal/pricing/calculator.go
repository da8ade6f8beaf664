package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/zimlend/lending-api/internal/errors"
	"github.com/zimlend/lending-api/internal/logger"
)

// FeeSchedule holds the fee constants applied to every loan. Callers must
// derive ratios (net received, total cost) from these constants rather than
// hard-coding them; changing a constant changes every downstream number.
type FeeSchedule struct {
	ServiceFeePct    float64 // upfront, of principal
	InsuranceFeePct  float64 // upfront, of principal
	TenureFeePct     float64 // monthly, of principal
	CollectionFeePct float64 // monthly, of the flat monthly payment
	LateFeeDailyPct  float64 // per day late, of the missed payment
	LateFeeCapPct    float64 // cap, of the missed payment
	PlatformSharePct float64 // platform cut of any late fee; remainder to lender
}

// DefaultFeeSchedule returns the production fee constants. Under these the
// net amount received works out to 87% of principal.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		ServiceFeePct:    10.0,
		InsuranceFeePct:  3.0,
		TenureFeePct:     0.5,
		CollectionFeePct: 1.0,
		LateFeeDailyPct:  1.0,
		LateFeeCapPct:    20.0,
		PlatformSharePct: 50.0,
	}
}

// Loan parameter bounds
const (
	MinTermMonths = 1
	MaxTermMonths = 60
	MaxRatePct    = 100.0

	// A monthly rate above this is legal but logged as suspicious
	highRateWarnPct = 20.0
)

// UpfrontFees is the one-off deduction taken from the principal at disbursement
type UpfrontFees struct {
	Service   float64 `json:"service"`
	Insurance float64 `json:"insurance"`
	Total     float64 `json:"total"`
}

// MonthlyBreakdown is the composition of a single installment
type MonthlyBreakdown struct {
	Principal     float64 `json:"principal"`
	Interest      float64 `json:"interest"`
	TenureFee     float64 `json:"tenure_fee"`
	CollectionFee float64 `json:"collection_fee"`
	TotalPayment  float64 `json:"total_payment"`
}

// TotalCosts aggregates the cost of the loan over its full term
type TotalCosts struct {
	TotalInterest    float64 `json:"total_interest"`
	TotalUpfrontFees float64 `json:"total_upfront_fees"`
	TotalMonthlyFees float64 `json:"total_monthly_fees"`
	TotalRepayment   float64 `json:"total_repayment"`
}

// LoanPricing is an immutable quote for one application. Persisted as a
// snapshot on the loan record; re-quoting produces a new snapshot.
type LoanPricing struct {
	ID                      uuid.UUID        `json:"id"`
	RequestedAmount         float64          `json:"requested_amount"`
	InterestRate            float64          `json:"interest_rate"` // monthly, percent
	TermMonths              int              `json:"term_months"`
	UpfrontFees             UpfrontFees      `json:"upfront_fees"`
	NetAmountReceived       float64          `json:"net_amount_received"`
	MonthlyBreakdown        MonthlyBreakdown `json:"monthly_breakdown"`
	TotalCosts              TotalCosts       `json:"total_costs"`
	TrueAnnualEffectiveRate float64          `json:"true_annual_effective_rate"`
	QuotedAt                time.Time        `json:"quoted_at"`
}

// LateFeeResult is the split of a late-payment charge
type LateFeeResult struct {
	LateFee       float64 `json:"late_fee"`
	PlatformShare float64 `json:"platform_share"`
	LenderShare   float64 `json:"lender_share"`
	TotalDue      float64 `json:"total_due"`
}

// Calculator prices loans against a fixed fee schedule. Pure computation,
// safe for concurrent use.
type Calculator struct {
	fees FeeSchedule
	log  logger.Logger
}

// NewCalculator creates a calculator with the given fee schedule
func NewCalculator(fees FeeSchedule, log logger.Logger) *Calculator {
	return &Calculator{fees: fees, log: log}
}

// Fees returns the fee schedule in effect
func (c *Calculator) Fees() FeeSchedule {
	return c.fees
}

// PriceLoan converts loan terms into a full pricing quote.
//
// Interest is flat: computed once on the original principal and repeated
// every month, with straight-line principal repayment. This is the product's
// amortization model, not declining-balance.
func (c *Calculator) PriceLoan(loanAmount, interestRate float64, termMonths int) (*LoanPricing, error) {
	if loanAmount <= 0 {
		return nil, apperrors.InvalidLoanParameters(fmt.Sprintf("loan amount must be positive, got %.2f", loanAmount))
	}
	if interestRate < 0 || interestRate > MaxRatePct {
		return nil, apperrors.InvalidLoanParameters(fmt.Sprintf("interest rate must be between 0 and %.0f percent, got %.2f", MaxRatePct, interestRate))
	}
	if termMonths < MinTermMonths || termMonths > MaxTermMonths {
		return nil, apperrors.InvalidLoanParameters(fmt.Sprintf("term must be between %d and %d months, got %d", MinTermMonths, MaxTermMonths, termMonths))
	}
	if interestRate > highRateWarnPct && c.log != nil {
		c.log.Warn("pricing loan with unusually high monthly rate", "rate", interestRate, "amount", loanAmount)
	}

	serviceFee := round2(loanAmount * c.fees.ServiceFeePct / 100)
	insuranceFee := round2(loanAmount * c.fees.InsuranceFeePct / 100)
	upfront := UpfrontFees{
		Service:   serviceFee,
		Insurance: insuranceFee,
		Total:     round2(serviceFee + insuranceFee),
	}
	netReceived := round2(loanAmount - upfront.Total)

	monthlyPrincipal := round2(loanAmount / float64(termMonths))
	monthlyInterest := round2(loanAmount * interestRate / 100)
	flatPayment := monthlyPrincipal + monthlyInterest

	tenureFee := round2(loanAmount * c.fees.TenureFeePct / 100)
	collectionFee := round2(flatPayment * c.fees.CollectionFeePct / 100)

	monthly := MonthlyBreakdown{
		Principal:     monthlyPrincipal,
		Interest:      monthlyInterest,
		TenureFee:     tenureFee,
		CollectionFee: collectionFee,
		TotalPayment:  round2(flatPayment + tenureFee + collectionFee),
	}

	term := float64(termMonths)
	costs := TotalCosts{
		TotalInterest:    round2(monthlyInterest * term),
		TotalUpfrontFees: upfront.Total,
		TotalMonthlyFees: round2((tenureFee + collectionFee) * term),
	}
	costs.TotalRepayment = round2(monthly.TotalPayment * term)

	return &LoanPricing{
		ID:                      uuid.New(),
		RequestedAmount:         loanAmount,
		InterestRate:            interestRate,
		TermMonths:              termMonths,
		UpfrontFees:             upfront,
		NetAmountReceived:       netReceived,
		MonthlyBreakdown:        monthly,
		TotalCosts:              costs,
		TrueAnnualEffectiveRate: taer(costs.TotalRepayment, netReceived, termMonths),
		QuotedAt:                time.Now(),
	}, nil
}

// taer computes the blended annualized cost. This is the product's stated
// approximation, not an IRR solve, and must stay this exact formula.
func taer(totalRepayment, netReceived float64, termMonths int) float64 {
	if netReceived <= 0 {
		return 0
	}
	rate := (totalRepayment - netReceived) / netReceived / float64(termMonths) * 12 * 100
	return round2(rate)
}

// LateFee computes the charge for a payment that is daysLate overdue and how
// it splits between platform and lender. No fee accrues at or before zero
// days late.
func (c *Calculator) LateFee(paymentAmount float64, daysLate int) LateFeeResult {
	if daysLate <= 0 || paymentAmount <= 0 {
		return LateFeeResult{TotalDue: round2(math.Max(paymentAmount, 0))}
	}

	fee := paymentAmount * c.fees.LateFeeDailyPct / 100 * float64(daysLate)
	cap := paymentAmount * c.fees.LateFeeCapPct / 100
	if fee > cap {
		fee = cap
	}
	fee = round2(fee)

	platform := round2(fee * c.fees.PlatformSharePct / 100)
	return LateFeeResult{
		LateFee:       fee,
		PlatformShare: platform,
		LenderShare:   round2(fee - platform),
		TotalDue:      round2(paymentAmount + fee),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
